// Package settings loads application settings from an optional YAML file,
// IMGPILOT_* environment variables and command line flags, in increasing
// order of precedence.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"imgpilot/internal/rembg"
)

const (
	EnvPrefix = "IMGPILOT"
	FileName  = "imgpilot"
)

type Settings struct {
	Workers     int    `mapstructure:"workers" validate:"min=0"`
	PresetsFile string `mapstructure:"presets_file"`

	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
		Format string `mapstructure:"format" validate:"oneof=console json"`
	} `mapstructure:"log"`

	Rembg struct {
		Command  string `mapstructure:"command" validate:"required"`
		Model    string `mapstructure:"model" validate:"required"`
		ModelDir string `mapstructure:"model_dir"`
		ModelURL string `mapstructure:"model_url" validate:"omitempty,url"`
	} `mapstructure:"rembg"`

	// Tracer names the external vectorizer. Empty selects the built-in
	// embedding vectorizer.
	Tracer string `mapstructure:"tracer"`

	// File is the settings file that was read, if any.
	File string `mapstructure:"-"`
}

// Dir is the per-user settings directory, ~/.imgpilot.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".imgpilot"
	}
	return filepath.Join(home, ".imgpilot")
}

// FlagKeys maps settings keys to the command line flags that override them.
var FlagKeys = map[string]string{
	"workers":    "workers",
	"log.level":  "log-level",
	"log.format": "log-format",
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("workers", 0)
	v.SetDefault("presets_file", filepath.Join(dir, "presets.yaml"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("rembg.command", rembg.DefaultCommand)
	v.SetDefault("rembg.model", rembg.DefaultModel)
	v.SetDefault("rembg.model_dir", filepath.Join(dir, "models"))
	v.SetDefault("rembg.model_url", rembg.DefaultModelURL)
	v.SetDefault("tracer", "")
}

// Load reads settings. An explicit path must exist; without one the file in
// Dir is used when present. Flags that were set on the command line win.
func Load(path string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
	}

	if flags != nil {
		for key, name := range FlagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.File = v.ConfigFileUsed()

	if err := validator.New().Struct(s); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// RemoverConfig converts the rembg section into the adapter's configuration.
func (s Settings) RemoverConfig() rembg.Config {
	return rembg.Config{
		Command:  s.Rembg.Command,
		Model:    s.Rembg.Model,
		ModelDir: s.Rembg.ModelDir,
		ModelURL: s.Rembg.ModelURL,
	}
}
