package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpilot/internal/rembg"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imgpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := Load("", nil)
	require.NoError(t, err)

	assert.Zero(t, s.Workers)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "console", s.Log.Format)
	assert.Equal(t, rembg.DefaultCommand, s.Rembg.Command)
	assert.Equal(t, rembg.DefaultModelURL, s.Rembg.ModelURL)
	assert.Equal(t, filepath.Join(home, ".imgpilot", "presets.yaml"), s.PresetsFile)
	assert.Empty(t, s.File)
}

func TestLoadFileInHomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".imgpilot")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "imgpilot.yaml"), []byte("workers: 3\n"), 0o644))

	s, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, filepath.Join(dir, "imgpilot.yaml"), s.File)
}

func TestLoadExplicitFile(t *testing.T) {
	path := writeSettings(t, `
workers: 2
tracer: vtracer
log:
  level: debug
  format: json
rembg:
  model: u2netp
  model_dir: /tmp/models
`)
	s, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Workers)
	assert.Equal(t, "vtracer", s.Tracer)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)

	rc := s.RemoverConfig()
	assert.Equal(t, "u2netp", rc.Model)
	assert.Equal(t, "/tmp/models", rc.ModelDir)
	assert.Equal(t, rembg.DefaultCommand, rc.Command)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeSettings(t, "workers: 2\nlog:\n  level: warn\n")
	t.Setenv("IMGPILOT_WORKERS", "7")
	t.Setenv("IMGPILOT_LOG_LEVEL", "error")

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Workers)
	assert.Equal(t, "error", s.Log.Level)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IMGPILOT_WORKERS", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	flags.String("log-level", "info", "")
	flags.String("log-format", "console", "")
	require.NoError(t, flags.Parse([]string{"--workers", "5"}))

	s, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Workers)
	assert.Equal(t, "info", s.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeSettings(t, "log:\n  format: xml\n")
	_, err := Load(path, nil)
	assert.Error(t, err)

	path = writeSettings(t, "workers: -1\n")
	_, err = Load(path, nil)
	assert.Error(t, err)
}
