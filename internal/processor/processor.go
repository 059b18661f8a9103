package processor

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"imgpilot/internal/failure"
)

// BackgroundRemover makes background pixels of an image transparent.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, img image.Image) (image.Image, error)
}

// Vectorizer turns a raster image into an SVG document. Larger tolerances
// allow more simplification.
type Vectorizer interface {
	Vectorize(ctx context.Context, img image.Image, tolerance float64) ([]byte, error)
}

// Options configures a Processor.
type Options struct {
	// Workers bounds the number of concurrently executing work units.
	// Zero selects runtime.NumCPU().
	Workers    int
	Logger     *slog.Logger
	Remover    BackgroundRemover
	Vectorizer Vectorizer
}

// Processor runs batches of work units on a bounded worker pool.
type Processor struct {
	workers    int
	logger     *slog.Logger
	remover    BackgroundRemover
	vectorizer Vectorizer
}

func New(opts Options) *Processor {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		workers:    workers,
		logger:     logger,
		remover:    opts.Remover,
		vectorizer: opts.Vectorizer,
	}
}

// Handle tracks a submitted batch.
type Handle struct {
	id     string
	events chan ProgressEvent
	cancel context.CancelFunc
	done   chan struct{}
	report Report
}

// ID identifies the run; it is repeated in the report.
func (h *Handle) ID() string {
	return h.id
}

// Events delivers one event per finished work unit and is closed when the
// batch ends. It is buffered for the whole batch, so a slow or absent reader
// never stalls the workers.
func (h *Handle) Events() <-chan ProgressEvent {
	return h.events
}

// Cancel stops the batch. Units not yet started are recorded as Cancelled.
// Calling it again, or after completion, does nothing.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the report is ready.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until every work unit is recorded and returns the report.
func (h *Handle) Wait() Report {
	<-h.done
	return h.report
}

// Submit validates cfg, plans one work unit per source and target, and starts
// the batch without waiting for it. Only an invalid configuration fails the
// whole submission.
func (p *Processor) Submit(ctx context.Context, sources []string, cfg Config) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	units := plan(sources, cfg)
	resolveDestinations(units, sources)
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:     uuid.NewString(),
		events: make(chan ProgressEvent, len(units)),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go p.run(runCtx, h, units, cfg)
	return h, nil
}

// Run submits a batch and waits for its report.
func (p *Processor) Run(ctx context.Context, sources []string, cfg Config) (Report, error) {
	h, err := p.Submit(ctx, sources, cfg)
	if err != nil {
		return Report{}, err
	}
	return h.Wait(), nil
}

// plan fans sources out into work units in report order.
func plan(sources []string, cfg Config) []workUnit {
	targets := make([]Target, 0, len(cfg.Formats)+1)
	for _, f := range cfg.Formats {
		targets = append(targets, Target{Format: f})
	}
	if cfg.RemoveBackground {
		targets = append(targets, Target{Format: FormatPNG, BackgroundRemoval: true})
	}

	units := make([]workUnit, 0, len(sources)*len(targets))
	for _, src := range sources {
		for _, target := range targets {
			units = append(units, workUnit{
				index:  len(units),
				source: src,
				target: target,
				dest:   DestinationFor(src, target, cfg.OutputDir),
			})
		}
	}
	return units
}

type unitResult struct {
	index  int
	result Result
}

func (p *Processor) run(ctx context.Context, h *Handle, units []workUnit, cfg Config) {
	defer h.cancel()

	jobs := make(chan workUnit)
	results := make(chan unitResult)

	workers := max(min(p.workers, len(units)), 1)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			p.worker(ctx, jobs, results, cfg)
		}()
	}

	ordered := make([]Result, len(units))
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		completed := 0
		for res := range results {
			ordered[res.index] = res.result
			completed++
			h.events <- ProgressEvent{Completed: completed, Total: len(units), Last: res.result}
		}
	}()

	// Every unit is handed out even after cancellation so each one is
	// recorded; workers turn late units into Cancelled results.
	for _, u := range units {
		jobs <- u
	}
	close(jobs)

	wg.Wait()
	close(results)
	<-collectorDone

	h.report = buildReport(h.id, ordered)
	p.logger.Info("batch complete",
		"id", h.id,
		"succeeded", h.report.Succeeded,
		"failed", h.report.Failed,
		"cancelled", h.report.Cancelled,
		"bytes_before", h.report.BytesBefore,
		"bytes_after", h.report.BytesAfter,
	)
	close(h.events)
	close(h.done)
}

func (p *Processor) worker(ctx context.Context, jobs <-chan workUnit, results chan<- unitResult, cfg Config) {
	for u := range jobs {
		var res Result
		if ctx.Err() != nil {
			res = Result{Source: u.source, Target: u.target}
			fail(&res, failure.New(failure.Cancelled, "schedule", "batch cancelled before start"))
		} else {
			res = p.execute(ctx, u, cfg)
		}

		if res.Status == StatusFailed && res.ErrorKind != failure.Cancelled {
			p.logger.Warn("work unit failed",
				"source", u.source,
				"target", u.target.String(),
				"kind", res.ErrorKind,
				"err", res.Message,
			)
		}
		results <- unitResult{index: u.index, result: res}
	}
}

func (p *Processor) execute(ctx context.Context, u workUnit, cfg Config) (res Result) {
	start := time.Now()
	res = Result{Source: u.source, Target: u.target}
	defer func() {
		res.Duration = time.Since(start)
	}()

	info, err := os.Stat(u.source)
	if err != nil {
		fail(&res, failure.Wrap(failure.WriteError, "stat source", u.source, err))
		return res
	}
	res.OriginalSize = info.Size()

	if u.conflict != nil {
		fail(&res, u.conflict)
		return res
	}
	if err := checkDestination(u.source, u.dest, cfg.Overwrite); err != nil {
		fail(&res, err)
		return res
	}

	data, err := os.ReadFile(u.source)
	if err != nil {
		fail(&res, failure.Wrap(failure.WriteError, "read source", u.source, err))
		return res
	}
	img, err := decodeSource(u.source, data)
	if err != nil {
		fail(&res, err)
		return res
	}
	img, err = Resize(img, cfg.Resize)
	if err != nil {
		fail(&res, err)
		return res
	}

	opts := EncodeOptions{
		Source:    u.source,
		Algorithm: Lanczos,
		Overwrite: cfg.Overwrite,
	}
	if cfg.Resize != nil {
		opts.Algorithm = cfg.Resize.Algorithm
	}
	if cfg.PreserveEXIF {
		opts.Exif = extractExif(data)
	}

	var (
		n        int64
		decision string
	)
	switch {
	case u.target.BackgroundRemoval:
		n, decision, err = p.removeBackground(ctx, img, cfg.Quality, opts, u.dest)
	case u.target.Format == FormatSVG:
		n, decision, err = p.vectorize(ctx, img, cfg.Quality, cfg.Overwrite, u.dest)
	default:
		var params EncoderParams
		n, params, err = Encode(img, u.target.Format, cfg.Quality, opts, u.dest)
		decision = params.String()
	}
	res.Decision = decision
	if err != nil {
		fail(&res, err)
		return res
	}

	res.Status = StatusSuccess
	res.OutputPath = u.dest
	res.OutputSize = n
	return res
}

func (p *Processor) removeBackground(ctx context.Context, img image.Image, quality int, opts EncodeOptions, dest string) (int64, string, error) {
	if p.remover == nil {
		return 0, "", failure.New(failure.TransformError, "remove background", "no background remover configured")
	}
	cut, err := p.remover.RemoveBackground(ctx, img)
	if err != nil {
		return 0, "", failure.Wrap(failure.TransformError, "remove background", "", err)
	}
	n, params, err := Encode(cut, FormatPNG, quality, opts, dest)
	return n, "no_bg " + params.String(), err
}

func (p *Processor) vectorize(ctx context.Context, img image.Image, quality int, overwrite bool, dest string) (int64, string, error) {
	if p.vectorizer == nil {
		return 0, "", failure.New(failure.TransformError, "vectorize", "no vectorizer configured")
	}
	tolerance := SimplifyTolerance(quality)
	decision := fmt.Sprintf("svg tolerance=%.2f", tolerance)

	doc, err := p.vectorizer.Vectorize(ctx, img, tolerance)
	if err != nil {
		return 0, decision, failure.Wrap(failure.TransformError, "vectorize", "", err)
	}
	n, err := writeAtomic(dest, doc, overwrite)
	return n, decision, err
}

// SimplifyTolerance maps quality onto the vectorizer's path simplification
// tolerance: 0.5 at high quality up to 2.0 at low quality.
func SimplifyTolerance(quality int) float64 {
	t := float64(100-quality) / 50
	return min(max(t, 0.5), 2.0)
}

func fail(res *Result, err error) {
	res.Status = StatusFailed
	res.ErrorKind = failure.KindOf(err)
	res.Message = failure.Message(err)
	res.OutputPath = ""
	res.OutputSize = 0
}

func buildReport(id string, results []Result) Report {
	report := Report{ID: id, Results: results}
	for _, res := range results {
		switch res.Status {
		case StatusSuccess:
			report.Succeeded++
			report.BytesBefore += res.OriginalSize
			report.BytesAfter += res.OutputSize
		default:
			report.Failed++
			if res.ErrorKind == failure.Cancelled {
				report.Cancelled++
			}
		}
	}
	return report
}
