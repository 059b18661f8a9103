package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"imgpilot/internal/preset"
	"imgpilot/internal/processor"
	"imgpilot/internal/rembg"
	"imgpilot/internal/tui"
	"imgpilot/internal/vectorize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	convertFormats    []string
	convertQuality    int
	convertWidth      int
	convertHeight     int
	convertKeepAspect bool
	convertAlgorithm  string
	convertExif       bool
	convertOutputDir  string
	convertRemoveBG   bool
	convertOverwrite  bool
	convertPreset     string
	convertJSON       bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <path>...",
	Short: "Convert and optimize images into one or more formats",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := convertConfig(cmd)
		if err != nil {
			return err
		}
		sources, err := collectSources(args)
		if err != nil {
			return err
		}

		remover := appSettings.RemoverConfig()
		remover.Logger = logger
		var vectorizer processor.Vectorizer = vectorize.Embedder{}
		if appSettings.Tracer != "" {
			vectorizer = vectorize.Tracer{Command: appSettings.Tracer}
		}

		p := processor.New(processor.Options{
			Workers:    appSettings.Workers,
			Logger:     logger,
			Remover:    rembg.New(remover),
			Vectorizer: vectorizer,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		h, err := p.Submit(ctx, sources, cfg)
		if err != nil {
			return err
		}
		logger.Info("batch started", "id", h.ID(), "sources", len(sources), "formats", cfg.Formats)

		out := cmd.OutOrStdout()
		var report processor.Report
		if convertJSON || !isTerminal(out) {
			report = h.Wait()
		} else {
			report = watch(h, len(sources)*targetCount(cfg))
		}

		if convertJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, tui.RenderSummary(tui.ReportRows(report)))
			if failures := tui.RenderFailures(report); failures != "" {
				fmt.Fprintln(out, failures)
			}
		}

		if report.Failed > 0 {
			return fmt.Errorf("%d of %d outputs failed", report.Failed, len(report.Results))
		}
		return nil
	},
}

// watch shows live progress until the batch ends. Quitting the view cancels
// the batch.
func watch(h *processor.Handle, total int) processor.Report {
	program := tea.NewProgram(tui.NewModel(h.Events(), total))
	if _, err := program.Run(); err != nil {
		logger.Warn("progress view failed", "err", err)
	}
	select {
	case <-h.Done():
	default:
		h.Cancel()
	}
	return h.Wait()
}

func targetCount(cfg processor.Config) int {
	n := len(cfg.Formats)
	if cfg.RemoveBackground {
		n++
	}
	return n
}

// convertConfig builds the job configuration from an optional preset and the
// flags set on the command line, flags taking precedence.
func convertConfig(cmd *cobra.Command) (processor.Config, error) {
	flags := cmd.Flags()
	cfg := processor.Config{
		Quality:      convertQuality,
		PreserveEXIF: convertExif,
	}

	if convertPreset != "" {
		store, err := preset.Load(appSettings.PresetsFile)
		if err != nil {
			return processor.Config{}, err
		}
		p, ok := store.Get(convertPreset)
		if !ok {
			return processor.Config{}, fmt.Errorf("unknown preset %q", convertPreset)
		}
		cfg, err = p.Config("")
		if err != nil {
			return processor.Config{}, err
		}
		if flags.Changed("quality") {
			cfg.Quality = convertQuality
		}
		if flags.Changed("exif") {
			cfg.PreserveEXIF = convertExif
		}
	}

	if convertPreset == "" || flags.Changed("format") {
		cfg.Formats = cfg.Formats[:0]
		for _, name := range convertFormats {
			f, err := processor.ParseFormat(name)
			if err != nil {
				return processor.Config{}, err
			}
			cfg.Formats = append(cfg.Formats, f)
		}
	}

	if flags.Changed("width") || flags.Changed("height") {
		algo, err := processor.ParseAlgorithm(convertAlgorithm)
		if err != nil {
			return processor.Config{}, err
		}
		policy := &processor.ResizePolicy{KeepAspect: convertKeepAspect, Algorithm: algo}
		if flags.Changed("width") {
			policy.Width = processor.Dim(convertWidth)
		}
		if flags.Changed("height") {
			policy.Height = processor.Dim(convertHeight)
		}
		cfg.Resize = policy
	} else if cfg.Resize != nil {
		if flags.Changed("keep-aspect") {
			cfg.Resize.KeepAspect = convertKeepAspect
		}
		if flags.Changed("algorithm") {
			algo, err := processor.ParseAlgorithm(convertAlgorithm)
			if err != nil {
				return processor.Config{}, err
			}
			cfg.Resize.Algorithm = algo
		}
	}

	cfg.OutputDir = convertOutputDir
	cfg.RemoveBackground = cfg.RemoveBackground || convertRemoveBG
	cfg.Overwrite = convertOverwrite
	return cfg, cfg.Validate()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func init() {
	flags := convertCmd.Flags()
	flags.StringSliceVarP(&convertFormats, "format", "f", []string{"webp"}, "output formats: webp, avif, png, jpg, ico, svg (repeatable)")
	flags.IntVarP(&convertQuality, "quality", "q", 80, "quality 0-100")
	flags.IntVar(&convertWidth, "width", 0, "target width in pixels")
	flags.IntVar(&convertHeight, "height", 0, "target height in pixels")
	flags.BoolVar(&convertKeepAspect, "keep-aspect", true, "preserve the aspect ratio when resizing")
	flags.StringVar(&convertAlgorithm, "algorithm", "lanczos", "resize algorithm: lanczos, bicubic, bilinear, nearest")
	flags.BoolVar(&convertExif, "exif", false, "carry EXIF metadata into outputs that support it")
	flags.StringVarP(&convertOutputDir, "output", "o", "", "destination folder (default: next to each source)")
	flags.BoolVar(&convertRemoveBG, "remove-bg", false, "also write <name>_no_bg.png with the background removed")
	flags.BoolVar(&convertOverwrite, "overwrite", false, "replace existing output files")
	flags.StringVar(&convertPreset, "preset", "", "start from a named preset")
	flags.Int("workers", 0, "concurrent work units (default: number of CPUs)")
	flags.BoolVar(&convertJSON, "json", false, "print the batch report as JSON")

	rootCmd.AddCommand(convertCmd)
}
