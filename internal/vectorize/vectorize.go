// Package vectorize turns raster images into SVG documents, either through an
// external tracer or by embedding the raster in an SVG wrapper.
package vectorize

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"imgpilot/internal/failure"
)

const DefaultTracer = "vtracer"

// Embedder wraps the PNG encoding of the image in an SVG <image> element.
// The output is lossless, so tolerance is ignored.
type Embedder struct{}

func (Embedder) Vectorize(ctx context.Context, img image.Image, _ float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, failure.Wrap(failure.Cancelled, "embed svg", "", err)
	}

	var raster bytes.Buffer
	if err := png.Encode(&raster, img); err != nil {
		return nil, failure.Wrap(failure.TransformError, "embed svg", "", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&doc, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", w, h, w, h)
	fmt.Fprintf(&doc, `  <image width="%d" height="%d" xlink:href="data:image/png;base64,`, w, h)
	doc.WriteString(base64.StdEncoding.EncodeToString(raster.Bytes()))
	doc.WriteString(`"/>` + "\n</svg>\n")
	return doc.Bytes(), nil
}

// Tracer runs an external tracing command, vtracer by default.
type Tracer struct {
	Command string
}

func (t Tracer) command() string {
	if t.Command == "" {
		return DefaultTracer
	}
	return t.Command
}

// SpeckleFilter converts a simplification tolerance into the tracer's
// speckle filter size in pixels.
func SpeckleFilter(tolerance float64) int {
	return int(math.Round(tolerance * 4))
}

func (t Tracer) Vectorize(ctx context.Context, img image.Image, tolerance float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, failure.Wrap(failure.Cancelled, "trace", "", err)
	}

	name := t.command()
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, failure.Wrap(failure.TransformError, "lookup tracer", name, err)
	}

	dir, err := os.MkdirTemp("", "imgpilot-trace-*")
	if err != nil {
		return nil, failure.Wrap(failure.TransformError, "create workspace", "", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.svg")
	f, err := os.Create(in)
	if err != nil {
		return nil, failure.Wrap(failure.TransformError, "write input", in, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, failure.Wrap(failure.TransformError, "write input", in, err)
	}
	if err := f.Close(); err != nil {
		return nil, failure.Wrap(failure.TransformError, "write input", in, err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"--input", in,
		"--output", out,
		"--filter_speckle", fmt.Sprint(SpeckleFilter(tolerance)),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, failure.Wrap(failure.Cancelled, "trace", "", ctx.Err())
		}
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		return nil, failure.New(failure.TransformError, "trace", "%s", msg)
	}

	doc, err := os.ReadFile(out)
	if err != nil {
		return nil, failure.Wrap(failure.TransformError, "read output", out, err)
	}
	if !bytes.Contains(doc, []byte("<svg")) {
		return nil, failure.New(failure.TransformError, "trace", "tracer output is not an svg document")
	}
	return doc, nil
}
