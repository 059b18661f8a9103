package cmd

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpilot/internal/preset"
	"imgpilot/internal/processor"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	img.Set(0, 0, color.NRGBA{A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestCollectSources(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "a.png"))
	writeTestPNG(t, filepath.Join(dir, "nested", "b.PNG"))
	writeTestPNG(t, filepath.Join(dir, ".cache", "hidden.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake.jpg"), []byte("text"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0o644))

	sources, err := collectSources([]string{dir, filepath.Join(dir, "a.png"), filepath.Join(dir, "notes.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "nested", "b.PNG"),
		filepath.Join(dir, "notes.txt"),
	}, sources)
}

func TestCollectSourcesEmpty(t *testing.T) {
	_, err := collectSources([]string{t.TempDir()})
	assert.Error(t, err)

	_, err = collectSources([]string{filepath.Join(t.TempDir(), "missing.png")})
	assert.Error(t, err)
}

func TestConvertJSONReport(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "photo.png")
	writeTestPNG(t, src)
	out := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"convert", "--json", "-f", "jpg", "-f", "ico", "-q", "70", "--workers", "2", "-o", out, src})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())

	var report processor.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, 2, report.Succeeded)
	require.Len(t, report.Results, 2)
	assert.Equal(t, filepath.Join(out, "photo.jpg"), report.Results[0].OutputPath)
	assert.Equal(t, filepath.Join(out, "photo.ico"), report.Results[1].OutputPath)
	assert.FileExists(t, filepath.Join(out, "photo.ico"))
	assert.Equal(t, 2, appSettings.Workers)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &raw))
	assert.Contains(t, raw, "ratio")
	assert.Contains(t, raw, "saved_percent")
}

func TestPresetsSaveAndDelete(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".imgpilot", "presets.yaml")
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"presets", "save", "thumbs", "-f", "png", "-q", "60", "--width", "128", "--description", "small icons"})
	require.NoError(t, rootCmd.Execute())

	saved, err := preset.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "thumbs", saved[0].Name)
	assert.Equal(t, []string{"png"}, saved[0].Formats)
	assert.Equal(t, 60, *saved[0].Quality)
	require.NotNil(t, saved[0].Width)
	assert.Equal(t, 128, *saved[0].Width)
	assert.Nil(t, saved[0].Height)

	store, err := preset.Load(path)
	require.NoError(t, err)
	_, ok := store.Get("thumbs")
	assert.True(t, ok)

	rootCmd.SetArgs([]string{"presets", "delete", "thumbs"})
	require.NoError(t, rootCmd.Execute())
	remaining, err := preset.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	rootCmd.SetArgs([]string{"presets", "delete", "thumbs"})
	assert.Error(t, rootCmd.Execute())
}
