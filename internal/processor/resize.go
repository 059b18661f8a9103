package processor

import (
	"image"
	"math"

	"github.com/nfnt/resize"

	"imgpilot/internal/failure"
)

// TargetSize computes the output dimensions for a srcW x srcH image. The
// algorithm in policy plays no part in the math.
func TargetSize(srcW, srcH int, policy *ResizePolicy) (int, int, error) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, failure.New(failure.InvalidDimension, "resize", "source is %dx%d", srcW, srcH)
	}
	if policy == nil || (policy.Width == nil && policy.Height == nil) {
		return srcW, srcH, nil
	}
	if policy.Width != nil && *policy.Width <= 0 {
		return 0, 0, failure.New(failure.InvalidDimension, "resize", "width %d must be greater than 0", *policy.Width)
	}
	if policy.Height != nil && *policy.Height <= 0 {
		return 0, 0, failure.New(failure.InvalidDimension, "resize", "height %d must be greater than 0", *policy.Height)
	}

	var w, h int
	switch {
	case !policy.KeepAspect:
		w, h = srcW, srcH
		if policy.Width != nil {
			w = *policy.Width
		}
		if policy.Height != nil {
			h = *policy.Height
		}
	case policy.Width != nil && policy.Height != nil:
		bw, bh := *policy.Width, *policy.Height
		scale := math.Min(float64(bw)/float64(srcW), float64(bh)/float64(srcH))
		w = min(roundAtLeastOne(float64(srcW)*scale), bw)
		h = min(roundAtLeastOne(float64(srcH)*scale), bh)
	case policy.Width != nil:
		w = *policy.Width
		h = roundAtLeastOne(float64(srcH) * float64(w) / float64(srcW))
	default:
		h = *policy.Height
		w = roundAtLeastOne(float64(srcW) * float64(h) / float64(srcH))
	}

	if w <= 0 || h <= 0 {
		return 0, 0, failure.New(failure.InvalidDimension, "resize", "computed size %dx%d", w, h)
	}
	return w, h, nil
}

func roundAtLeastOne(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

// Resize resamples img according to policy. A policy without dimensions
// returns img unchanged.
func Resize(img image.Image, policy *ResizePolicy) (image.Image, error) {
	if policy == nil || (policy.Width == nil && policy.Height == nil) {
		return img, nil
	}
	b := img.Bounds()
	w, h, err := TargetSize(b.Dx(), b.Dy(), policy)
	if err != nil {
		return nil, err
	}
	return resize.Resize(uint(w), uint(h), img, interpolation(policy.Algorithm)), nil
}

// fitSquare downsamples img to fit inside a size x size box keeping aspect.
func fitSquare(img image.Image, size int, algo Algorithm) (image.Image, error) {
	return Resize(img, &ResizePolicy{Width: Dim(size), Height: Dim(size), KeepAspect: true, Algorithm: algo})
}

func interpolation(algo Algorithm) resize.InterpolationFunction {
	switch algo {
	case Bicubic:
		return resize.Bicubic
	case Bilinear:
		return resize.Bilinear
	case Nearest:
		return resize.NearestNeighbor
	default:
		return resize.Lanczos3
	}
}
