package processor

import (
	"bytes"
	"image"
	"os"

	"imgpilot/internal/failure"
	"imgpilot/pkg/imgutil"
)

// Inspection describes a source file without decoding its pixels.
type Inspection struct {
	Path   string       `json:"path"`
	Kind   string       `json:"kind"`
	Size   int64        `json:"size_bytes"`
	Width  int          `json:"width,omitempty"`
	Height int          `json:"height,omitempty"`
	Exif   ExifAnalysis `json:"exif"`
}

// Inspect reads path and reports its type, dimensions and EXIF summary.
// Unreadable EXIF is reported as absent.
func Inspect(path string) (Inspection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inspection{}, failure.Wrap(failure.WriteError, "read source", path, err)
	}

	kind := imgutil.SniffBytes(data)
	in := Inspection{Path: path, Kind: kind.String(), Size: int64(len(data))}
	if !kind.Decodable() {
		return in, failure.New(failure.UnsupportedFormat, "inspect", "%s: unsupported source type %s", path, kind)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return in, failure.Wrap(failure.EncodeError, "decode "+kind.String(), path, err)
	}
	in.Width, in.Height = cfg.Width, cfg.Height

	if analysis, err := AnalyzeExif(data); err == nil {
		in.Exif = analysis
	}
	return in, nil
}
