package processor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpilot/internal/failure"
)

func TestInspectJPEGWithExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeJPEG(t, path, patternImage(64, 48), buildExifTIFF())

	in, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", in.Kind)
	assert.Equal(t, 64, in.Width)
	assert.Equal(t, 48, in.Height)
	assert.Equal(t, int64(len(readFile(t, path))), in.Size)
	assert.True(t, in.Exif.Present)
	assert.Equal(t, "TestCam", in.Exif.Model)
}

func TestInspectPNGWithoutExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.png")
	writePNG(t, path, patternImage(5, 9))

	in, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "png", in.Kind)
	assert.Equal(t, 9, in.Height)
	assert.False(t, in.Exif.Present)
}

func TestInspectUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello imgpilot"), 0o644))

	in, err := Inspect(path)
	assert.Equal(t, failure.UnsupportedFormat, failure.KindOf(err))
	assert.Equal(t, "unknown", in.Kind)
}
