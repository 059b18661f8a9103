package preset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpilot/internal/failure"
	"imgpilot/internal/processor"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	presets, err := Decode(strings.NewReader(`
presets:
  - name: thumbs
    width: 320
  - name: archive
    formats: [png, jpeg]
    quality: 0
    keep_aspect: false
    height: 100
    algorithm: nearest
    preserve_exif: true
`))
	require.NoError(t, err)
	require.Len(t, presets, 2)

	thumbs := presets[0]
	assert.Equal(t, []string{"webp"}, thumbs.Formats)
	require.NotNil(t, thumbs.Quality)
	assert.Equal(t, 80, *thumbs.Quality)
	require.NotNil(t, thumbs.KeepAspect)
	assert.True(t, *thumbs.KeepAspect)
	assert.Equal(t, "lanczos", thumbs.Algorithm)

	archive := presets[1]
	assert.Equal(t, 0, *archive.Quality)
	assert.False(t, *archive.KeepAspect)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader(`
presets:
  - name: typo
    qualty: 50
`))
	require.Error(t, err)
	assert.Equal(t, failure.InvalidConfiguration, failure.KindOf(err))
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"quality":   "presets:\n  - name: x\n    quality: 150\n",
		"format":    "presets:\n  - name: x\n    formats: [tga]\n",
		"width":     "presets:\n  - name: x\n    width: -3\n",
		"algorithm": "presets:\n  - name: x\n    algorithm: sharp\n",
		"name":      "presets:\n  - quality: 50\n",
		"duplicate": "presets:\n  - name: x\n  - name: x\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			require.Error(t, err)
			assert.Equal(t, failure.InvalidConfiguration, failure.KindOf(err))
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	presets, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, presets)
}

func TestBuiltinsResolve(t *testing.T) {
	s := NewStore()
	assert.Equal(t, []string{"jpeg-high-quality", "png-lossless", "web-balanced", "web-high-quality", "web-max-compression"}, s.Names())

	for _, name := range s.Names() {
		p, ok := s.Get(name)
		require.True(t, ok)
		require.NoError(t, p.Validate(), name)
		cfg, err := p.Config("out")
		require.NoError(t, err, name)
		assert.Nil(t, cfg.Resize, name)
	}

	p, _ := s.Get("web-max-compression")
	cfg, err := p.Config("")
	require.NoError(t, err)
	assert.Equal(t, []processor.Format{processor.FormatWebP}, cfg.Formats)
	assert.Equal(t, 60, cfg.Quality)
	assert.False(t, cfg.PreserveEXIF)
}

func TestConfigResize(t *testing.T) {
	presets, err := Decode(strings.NewReader("presets:\n  - name: w\n    formats: [jpeg, ico]\n    width: 640\n    algorithm: bicubic\n"))
	require.NoError(t, err)

	cfg, err := presets[0].Config("dist")
	require.NoError(t, err)
	assert.Equal(t, []processor.Format{processor.FormatJPG, processor.FormatICO}, cfg.Formats)
	require.NotNil(t, cfg.Resize)
	assert.Equal(t, 640, *cfg.Resize.Width)
	assert.Nil(t, cfg.Resize.Height)
	assert.True(t, cfg.Resize.KeepAspect)
	assert.Equal(t, processor.Bicubic, cfg.Resize.Algorithm)
	assert.Equal(t, "dist", cfg.OutputDir)
}

func TestConfigRejectsDuplicateFormats(t *testing.T) {
	presets, err := Decode(strings.NewReader("presets:\n  - name: d\n    formats: [jpg, jpeg]\n"))
	require.NoError(t, err)

	_, err = presets[0].Config("")
	assert.Equal(t, failure.InvalidConfiguration, failure.KindOf(err))
}

func TestLoadOverridesBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - name: web-balanced\n    quality: 70\n  - name: mine\n    formats: [avif]\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Names(), 6)

	p, ok := s.Get("web-balanced")
	require.True(t, ok)
	assert.Equal(t, 70, *p.Quality)
	assert.False(t, p.PreserveEXIF)
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Len(t, s.Names(), len(Builtins()))
}

func TestStoreSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "presets.yaml")
	s := NewStore()
	require.NoError(t, s.Put(Preset{Name: " icons ", Formats: []string{"ico"}}))
	assert.True(t, s.Delete("png-lossless"))
	assert.False(t, s.Delete("png-lossless"))
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	p, ok := loaded.Get("icons")
	require.True(t, ok)
	assert.Equal(t, 80, *p.Quality)

	// Load always layers the built-ins back in.
	_, ok = loaded.Get("png-lossless")
	assert.True(t, ok)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenHoldsOnlyFilePresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.Names())

	require.NoError(t, s.Put(Preset{Name: "thumbs", Formats: []string{"png"}, Width: intPtr(128)}))
	require.NoError(t, s.Save(path))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"thumbs"}, reopened.Names())
	assert.True(t, reopened.Delete(" thumbs "))
	require.NoError(t, reopened.Save(path))

	presets, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, presets)
}

func TestStorePutRejectsInvalid(t *testing.T) {
	s := NewStore()
	err := s.Put(Preset{Name: "bad", Quality: intPtr(101)})
	assert.Equal(t, failure.InvalidConfiguration, failure.KindOf(err))
	_, ok := s.Get("bad")
	assert.False(t, ok)
}
