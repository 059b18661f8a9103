package processor

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpilot/internal/failure"
)

func TestTargetSize(t *testing.T) {
	cases := []struct {
		name   string
		w, h   int
		policy *ResizePolicy
		wantW  int
		wantH  int
	}{
		{"width keeps aspect", 400, 300, &ResizePolicy{Width: Dim(200), KeepAspect: true}, 200, 150},
		{"height keeps aspect", 400, 300, &ResizePolicy{Height: Dim(100), KeepAspect: true}, 133, 100},
		{"exact distorts", 400, 300, &ResizePolicy{Width: Dim(50), Height: Dim(50)}, 50, 50},
		{"width only without aspect", 400, 300, &ResizePolicy{Width: Dim(120)}, 120, 300},
		{"fit box width bound", 400, 300, &ResizePolicy{Width: Dim(200), Height: Dim(200), KeepAspect: true}, 200, 150},
		{"fit box height bound", 300, 400, &ResizePolicy{Width: Dim(200), Height: Dim(200), KeepAspect: true}, 150, 200},
		{"tiny rounds to one", 1000, 1, &ResizePolicy{Width: Dim(10), KeepAspect: true}, 10, 1},
		{"nil policy", 400, 300, nil, 400, 300},
		{"no dimensions", 400, 300, &ResizePolicy{KeepAspect: true}, 400, 300},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, err := TargetSize(tc.w, tc.h, tc.policy)
			require.NoError(t, err)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
		})
	}
}

func TestTargetSizeFitNeverExceedsBox(t *testing.T) {
	for _, src := range [][2]int{{1920, 1080}, {333, 777}, {17, 3}, {1, 1000}} {
		w, h, err := TargetSize(src[0], src[1], &ResizePolicy{Width: Dim(64), Height: Dim(48), KeepAspect: true})
		require.NoError(t, err)
		assert.LessOrEqual(t, w, 64)
		assert.LessOrEqual(t, h, 48)
		assert.GreaterOrEqual(t, w, 1)
		assert.GreaterOrEqual(t, h, 1)
	}
}

func TestTargetSizeInvalidDimension(t *testing.T) {
	_, _, err := TargetSize(400, 300, &ResizePolicy{Width: Dim(0), KeepAspect: true})
	require.Error(t, err)
	assert.Equal(t, failure.InvalidDimension, failure.KindOf(err))

	_, _, err = TargetSize(400, 300, &ResizePolicy{Height: Dim(-5)})
	assert.Equal(t, failure.InvalidDimension, failure.KindOf(err))
}

func TestResizeAlgorithmsShareDimensions(t *testing.T) {
	src := patternImage(400, 300)
	for _, algo := range []Algorithm{Lanczos, Bicubic, Bilinear, Nearest} {
		out, err := Resize(src, &ResizePolicy{Width: Dim(200), KeepAspect: true, Algorithm: algo})
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 200, 150), out.Bounds(), string(algo))
	}
}

func TestResizeNoopReturnsInput(t *testing.T) {
	src := patternImage(10, 10)
	out, err := Resize(src, &ResizePolicy{KeepAspect: true, Algorithm: Lanczos})
	require.NoError(t, err)
	assert.Same(t, src, out)
}
