package processor

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"imgpilot/internal/failure"
)

// Format is a requested output format.
type Format string

const (
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatICO  Format = "ico"
	FormatSVG  Format = "svg"
)

// Formats lists every output format in display order.
var Formats = []Format{FormatWebP, FormatAVIF, FormatPNG, FormatJPG, FormatICO, FormatSVG}

// Ext is the file extension written for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// SupportsEXIF reports whether EXIF can be embedded in this format.
func (f Format) SupportsEXIF() bool {
	switch f {
	case FormatJPG, FormatPNG, FormatWebP:
		return true
	default:
		return false
	}
}

// Algorithm selects the resampling filter.
type Algorithm string

const (
	Lanczos  Algorithm = "lanczos"
	Bicubic  Algorithm = "bicubic"
	Bilinear Algorithm = "bilinear"
	Nearest  Algorithm = "nearest"
)

// ResizePolicy describes the requested output size. A nil dimension is
// unconstrained.
type ResizePolicy struct {
	Width      *int      `json:"width,omitempty" validate:"required_without=Height,omitempty,gt=0"`
	Height     *int      `json:"height,omitempty" validate:"required_without=Width,omitempty,gt=0"`
	KeepAspect bool      `json:"keep_aspect"`
	Algorithm  Algorithm `json:"algorithm" validate:"required,oneof=lanczos bicubic bilinear nearest"`
}

// Dim returns a pointer to n, for building policies inline.
func Dim(n int) *int {
	return &n
}

// Config is the resolved configuration of one batch run. It is validated
// once by Submit and never changes during the run.
type Config struct {
	Formats          []Format      `json:"formats" validate:"required,min=1,unique,dive,oneof=webp avif png jpg ico svg"`
	Quality          int           `json:"quality" validate:"min=0,max=100"`
	Resize           *ResizePolicy `json:"resize,omitempty" validate:"omitempty"`
	PreserveEXIF     bool          `json:"preserve_exif"`
	OutputDir        string        `json:"output_dir,omitempty"`
	RemoveBackground bool          `json:"remove_background"`
	Overwrite        bool          `json:"overwrite"`
}

// Target is what a work unit produces: an output format, or the background
// removal route when BackgroundRemoval is set.
type Target struct {
	Format            Format `json:"format"`
	BackgroundRemoval bool   `json:"background_removal,omitempty"`
}

func (t Target) String() string {
	if t.BackgroundRemoval {
		return "no_bg"
	}
	return string(t.Format)
}

// workUnit pairs a source with a target. index is its position in the
// ordered report.
type workUnit struct {
	index  int
	source string
	target Target
	dest   string

	// conflict is set at plan time when dest may not be written.
	conflict error
}

// Status is the outcome of a work unit.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result records the outcome of one work unit.
type Result struct {
	Source       string        `json:"source"`
	Target       Target        `json:"target"`
	Status       Status        `json:"status"`
	OriginalSize int64         `json:"original_size_bytes"`
	OutputSize   int64         `json:"output_size_bytes,omitempty"`
	OutputPath   string        `json:"output_path,omitempty"`
	ErrorKind    failure.Kind  `json:"error_kind,omitempty"`
	Message      string        `json:"message,omitempty"`
	Decision     string        `json:"decision,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Report aggregates the results of a run. Results follow submission order:
// sources first, then targets within a source.
type Report struct {
	ID          string   `json:"id"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Cancelled   int      `json:"cancelled"`
	BytesBefore int64    `json:"bytes_before"`
	BytesAfter  int64    `json:"bytes_after"`
	Results     []Result `json:"results"`
}

// Ratio is output bytes over input bytes across successful units.
func (r Report) Ratio() float64 {
	if r.BytesBefore == 0 {
		return 0
	}
	return float64(r.BytesAfter) / float64(r.BytesBefore)
}

// SavedPercent is the share of input bytes saved across successful units.
func (r Report) SavedPercent() float64 {
	if r.BytesBefore == 0 {
		return 0
	}
	return float64(r.BytesBefore-r.BytesAfter) / float64(r.BytesBefore) * 100
}

// MarshalJSON adds the aggregate ratios to the encoded report.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		plain
		Ratio        float64 `json:"ratio"`
		SavedPercent float64 `json:"saved_percent"`
	}{plain(r), r.Ratio(), r.SavedPercent()})
}

// ProgressEvent is emitted once per finished work unit.
type ProgressEvent struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Last      Result `json:"last"`
}
