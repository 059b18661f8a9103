package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"imgpilot/internal/logging"
	"imgpilot/internal/settings"
)

var (
	configPath string

	appSettings settings.Settings
	logger      = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:           "imgpilot",
	Short:         "imgpilot - batch image conversion and optimization",
	Long:          "imgpilot converts, resizes and compresses images in bulk, writing WebP, AVIF, PNG, JPG, ICO and SVG outputs with a size report.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		l, err := logging.New(logging.Config{Level: s.Log.Level, Format: s.Log.Format}, os.Stderr)
		if err != nil {
			return err
		}
		appSettings = s
		logger = l
		if s.File != "" {
			logger.Debug("settings loaded", "file", s.File)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "settings file (default ~/.imgpilot/imgpilot.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console, json")
}
