package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	xdraw "golang.org/x/image/draw"

	"imgpilot/internal/failure"
)

const (
	webpMethod = 6
	avifSpeed  = 6
)

// EncoderParams are the concrete parameters handed to an encoder. The same
// format and quality always yield the same params.
type EncoderParams struct {
	Format  Format
	Quality int
	Method  int
	Speed   int
	// Effort is the PNG compression effort, 0..9. It runs opposite to
	// quality: a higher quality setting selects less effort, which gives
	// faster encodes and larger files. Pixels are identical at every level.
	Effort int
}

func (p EncoderParams) String() string {
	switch p.Format {
	case FormatJPG:
		return fmt.Sprintf("jpg quality=%d", p.Quality)
	case FormatWebP:
		return fmt.Sprintf("webp quality=%d method=%d", p.Quality, p.Method)
	case FormatAVIF:
		return fmt.Sprintf("avif quality=%d speed=%d", p.Quality, p.Speed)
	case FormatPNG:
		return fmt.Sprintf("png effort=%d", p.Effort)
	case FormatICO:
		return fmt.Sprintf("ico sizes=%v", IconSizes)
	default:
		return string(p.Format)
	}
}

// ParamsFor maps a 0..100 quality onto the encoder parameters of format.
func ParamsFor(format Format, quality int) (EncoderParams, error) {
	q := min(max(quality, 0), 100)
	switch format {
	case FormatJPG:
		return EncoderParams{Format: format, Quality: max(q, 1)}, nil
	case FormatWebP:
		return EncoderParams{Format: format, Quality: q, Method: webpMethod}, nil
	case FormatAVIF:
		return EncoderParams{Format: format, Quality: q, Speed: avifSpeed}, nil
	case FormatPNG:
		effort := int(math.Round(float64(100-q) * 9 / 100))
		return EncoderParams{Format: format, Effort: effort}, nil
	case FormatICO:
		return EncoderParams{Format: format}, nil
	default:
		return EncoderParams{}, failure.New(failure.UnsupportedFormat, "encode", "no raster encoder for %q", format)
	}
}

func (p EncoderParams) pngLevel() png.CompressionLevel {
	switch {
	case p.Effort <= 0:
		return png.NoCompression
	case p.Effort <= 3:
		return png.BestSpeed
	case p.Effort <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// EncodeOptions carries the per-run inputs of Encode beyond the image.
type EncodeOptions struct {
	// Source is the path the image was read from; it is never written.
	Source string
	// Exif is the raw TIFF-structured EXIF blob to embed, if any.
	Exif      []byte
	Algorithm Algorithm
	Overwrite bool
}

// Encode writes img to dest in format and returns the bytes written and the
// parameters used. dest either appears complete or not at all.
func Encode(img image.Image, format Format, quality int, opts EncodeOptions, dest string) (int64, EncoderParams, error) {
	params, err := ParamsFor(format, quality)
	if err != nil {
		return 0, params, err
	}
	if err := checkDestination(opts.Source, dest, opts.Overwrite); err != nil {
		return 0, params, err
	}

	data, err := encodeBytes(img, params, opts.Algorithm)
	if err != nil {
		return 0, params, failure.Wrap(failure.EncodeError, "encode "+string(format), dest, err)
	}

	b := img.Bounds()
	data, _, err = embedExif(format, data, opts.Exif, b.Dx(), b.Dy(), !isOpaque(img))
	if err != nil {
		return 0, params, failure.Wrap(failure.EncodeError, "embed exif", dest, err)
	}

	n, err := writeAtomic(dest, data, opts.Overwrite)
	return n, params, err
}

func encodeBytes(img image.Image, params EncoderParams, algo Algorithm) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch params.Format {
	case FormatJPG:
		err = jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: params.Quality})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: params.pngLevel()}
		err = enc.Encode(&buf, img)
	case FormatWebP:
		err = webp.Encode(&buf, img, webp.Options{Quality: params.Quality, Method: params.Method})
	case FormatAVIF:
		err = avif.Encode(&buf, img, avif.Options{Quality: params.Quality, QualityAlpha: params.Quality, Speed: params.Speed})
	case FormatICO:
		return encodeICO(img, algo)
	default:
		return nil, failure.New(failure.UnsupportedFormat, "encode", "no raster encoder for %q", params.Format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flatten composites transparent images onto white, since JPEG has no alpha.
func flatten(img image.Image) image.Image {
	if isOpaque(img) {
		return img
	}
	b := img.Bounds()
	canvas := image.NewRGBA(b)
	xdraw.Draw(canvas, b, image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(canvas, b, img, b.Min, xdraw.Over)
	return canvas
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// checkDestination refuses to write over a source, and over an existing file
// unless overwrite is set.
func checkDestination(source, dest string, overwrite bool) error {
	if source != "" && samePath(source, dest) {
		return failure.New(failure.DestinationConflict, "destination", "%s would overwrite its source", dest)
	}
	if overwrite {
		return nil
	}
	if _, err := os.Lstat(dest); err == nil {
		return failure.New(failure.DestinationConflict, "destination", "%s already exists", dest)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return failure.Wrap(failure.WriteError, "stat", dest, err)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

// writeAtomic writes data to a temp file beside dest and renames it into
// place. The temp file never outlives the call.
func writeAtomic(dest string, data []byte, overwrite bool) (int64, error) {
	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, failure.Wrap(failure.WriteError, "mkdir", destDir, err)
	}

	tmpFile, err := os.CreateTemp(destDir, ".imgpilot-*.tmp")
	if err != nil {
		return 0, failure.Wrap(failure.WriteError, "create temp", destDir, err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return 0, failure.Wrap(failure.WriteError, "write", dest, err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return 0, failure.Wrap(failure.WriteError, "sync", dest, err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, failure.Wrap(failure.WriteError, "close", dest, err)
	}
	if err := os.Chmod(tmpFile.Name(), 0o644); err != nil {
		return 0, failure.Wrap(failure.WriteError, "chmod", dest, err)
	}

	if !overwrite {
		if _, err := os.Lstat(dest); err == nil {
			return 0, failure.New(failure.DestinationConflict, "rename", "%s already exists", dest)
		}
	}
	if err := replaceFile(tmpFile.Name(), dest); err != nil {
		return 0, failure.Wrap(failure.WriteError, "rename", dest, err)
	}

	return int64(len(data)), nil
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
