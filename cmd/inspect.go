package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"imgpilot/internal/processor"
	"imgpilot/internal/tui"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <path>...",
	Short: "Report type, dimensions, size and EXIF content of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := collectSources(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var found []processor.Inspection
		for i, path := range sources {
			in, err := processor.Inspect(path)
			if err != nil {
				logger.Warn("inspect failed", "path", path, "err", err)
				continue
			}
			if inspectJSON {
				found = append(found, in)
				continue
			}

			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s\n", inspectFileStyle.Render(in.Path))
			printField(out, "type", in.Kind)
			printField(out, "dimensions", fmt.Sprintf("%dx%d", in.Width, in.Height))
			printField(out, "size", tui.FormatBytes(in.Size))
			if !in.Exif.Present {
				printField(out, "exif", inspectDimStyle.Render("none"))
				continue
			}
			printField(out, "exif", fmt.Sprintf("%d tags", in.Exif.TagCount))
			if in.Exif.Make != "" || in.Exif.Model != "" {
				printField(out, "camera", in.Exif.Make+" "+in.Exif.Model)
			}
			if in.Exif.Captured != "" {
				printField(out, "captured", in.Exif.Captured)
			}
			if in.Exif.HasGPS {
				printField(out, "gps", "present")
			}
		}

		if inspectJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(found)
		}
		return nil
	},
}

func printField(out io.Writer, label, value string) {
	fmt.Fprintf(out, "  %s %s %s\n",
		inspectBulletStyle.Render("-"),
		inspectCategoryStyle.Render(label+":"),
		inspectValueStyle.Render(value),
	)
}

var (
	inspectFileStyle     = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	inspectCategoryStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	inspectValueStyle    = lipgloss.NewStyle().Foreground(tui.ColorInk)
	inspectDimStyle      = lipgloss.NewStyle().Foreground(tui.ColorDim)
	inspectBulletStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(inspectCmd)
}
