package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"imgpilot/internal/preset"
	"imgpilot/internal/tui"
)

var presetsForce bool

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List, show and manage conversion presets",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := preset.Load(appSettings.PresetsFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range store.Names() {
			p, _ := store.Get(name)
			fmt.Fprintf(out, "%s  %s\n", presetNameStyle.Render(name), presetDescStyle.Render(p.Description))
		}
		return nil
	},
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := preset.Load(appSettings.PresetsFile)
		if err != nil {
			return err
		}
		p, ok := store.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown preset %q", args[0])
		}
		return preset.Encode(cmd.OutOrStdout(), []preset.Preset{p})
	},
}

var presetsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in presets to the presets file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appSettings.PresetsFile
		if _, err := os.Stat(path); err == nil && !presetsForce {
			return fmt.Errorf("%s already exists (use --force to replace it)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := preset.NewStore().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Presets written to: %s\n", path)
		return nil
	},
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a preset to the presets file, replacing one of the same name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appSettings.PresetsFile
		store, err := preset.Open(path)
		if err != nil {
			return err
		}
		if err := store.Put(presetFromFlags(cmd, args[0])); err != nil {
			return err
		}
		if err := store.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Preset %s saved to: %s\n", args[0], path)
		return nil
	},
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a preset from the presets file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appSettings.PresetsFile
		store, err := preset.Open(path)
		if err != nil {
			return err
		}
		if !store.Delete(args[0]) {
			return fmt.Errorf("preset %q is not defined in %s", args[0], path)
		}
		return store.Save(path)
	},
}

var (
	saveDescription string
	saveFormats     []string
	saveQuality     int
	saveWidth       int
	saveHeight      int
	saveKeepAspect  bool
	saveAlgorithm   string
	saveExif        bool
	saveRemoveBG    bool
)

func presetFromFlags(cmd *cobra.Command, name string) preset.Preset {
	flags := cmd.Flags()
	p := preset.Preset{
		Name:             name,
		Description:      saveDescription,
		Formats:          saveFormats,
		Quality:          &saveQuality,
		KeepAspect:       &saveKeepAspect,
		Algorithm:        saveAlgorithm,
		PreserveEXIF:     saveExif,
		RemoveBackground: saveRemoveBG,
	}
	if flags.Changed("width") {
		p.Width = &saveWidth
	}
	if flags.Changed("height") {
		p.Height = &saveHeight
	}
	return p
}

var (
	presetNameStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	presetDescStyle = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	presetsInitCmd.Flags().BoolVar(&presetsForce, "force", false, "replace an existing presets file")

	flags := presetsSaveCmd.Flags()
	flags.StringVar(&saveDescription, "description", "", "one-line description")
	flags.StringSliceVarP(&saveFormats, "format", "f", []string{"webp"}, "output formats (repeatable)")
	flags.IntVarP(&saveQuality, "quality", "q", 80, "quality 0-100")
	flags.IntVar(&saveWidth, "width", 0, "target width in pixels")
	flags.IntVar(&saveHeight, "height", 0, "target height in pixels")
	flags.BoolVar(&saveKeepAspect, "keep-aspect", true, "preserve the aspect ratio when resizing")
	flags.StringVar(&saveAlgorithm, "algorithm", "lanczos", "resize algorithm: lanczos, bicubic, bilinear, nearest")
	flags.BoolVar(&saveExif, "exif", false, "carry EXIF metadata into outputs that support it")
	flags.BoolVar(&saveRemoveBG, "remove-bg", false, "also write a background-removed PNG")

	presetsCmd.AddCommand(presetsListCmd, presetsShowCmd, presetsInitCmd, presetsSaveCmd, presetsDeleteCmd)
	rootCmd.AddCommand(presetsCmd)
}
