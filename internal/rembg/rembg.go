// Package rembg removes image backgrounds by running the external rembg tool
// against a locally cached segmentation model.
package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"imgpilot/internal/failure"
)

const (
	DefaultCommand  = "rembg"
	DefaultModel    = "u2net"
	DefaultModelURL = "https://github.com/danielgatis/rembg/releases/download/v0.0.0/u2net.onnx"
)

// Config selects the command and model used by a Remover. An empty ModelURL
// disables downloading; the model must then already be present in ModelDir.
type Config struct {
	Command  string
	Model    string
	ModelDir string
	ModelURL string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Remover is safe for concurrent use. The model is acquired at most once per
// Remover; a failed acquisition is retried by the next call.
type Remover struct {
	cfg Config

	mu    sync.Mutex
	ready bool
}

func New(cfg Config) *Remover {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ModelDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.ModelDir = filepath.Join(home, ".u2net")
		} else {
			cfg.ModelDir = ".u2net"
		}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Remover{cfg: cfg}
}

// ModelPath is where the model file is expected.
func (r *Remover) ModelPath() string {
	return filepath.Join(r.cfg.ModelDir, r.cfg.Model+".onnx")
}

// RemoveBackground returns img with its background made transparent.
func (r *Remover) RemoveBackground(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, failure.Wrap(failure.Cancelled, "remove background", "", err)
	}

	bin, err := exec.LookPath(r.cfg.Command)
	if err != nil {
		return nil, failure.Wrap(failure.ModelUnavailable, "lookup command", r.cfg.Command, err)
	}
	if err := r.ensureModel(ctx); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "imgpilot-rembg-*")
	if err != nil {
		return nil, failure.Wrap(failure.TransformError, "create workspace", "", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	if err := writePNG(in, img); err != nil {
		return nil, failure.Wrap(failure.TransformError, "write input", in, err)
	}

	cmd := exec.CommandContext(ctx, bin, "i", "-m", r.cfg.Model, in, out)
	cmd.Env = append(os.Environ(), "U2NET_HOME="+r.cfg.ModelDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, failure.Wrap(failure.Cancelled, "run "+r.cfg.Command, "", ctx.Err())
		}
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		return nil, failure.New(failure.TransformError, "run "+r.cfg.Command, "%s", msg)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, failure.Wrap(failure.TransformError, "read output", out, err)
	}
	cut, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, failure.Wrap(failure.TransformError, "decode output", out, err)
	}
	return cut, nil
}

func (r *Remover) ensureModel(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return nil
	}

	path := r.ModelPath()
	if _, err := os.Stat(path); err == nil {
		r.ready = true
		return nil
	}
	if r.cfg.ModelURL == "" {
		return failure.New(failure.ModelUnavailable, "locate model", "model %s not found in %s", r.cfg.Model, r.cfg.ModelDir)
	}

	r.cfg.Logger.Info("downloading model", "model", r.cfg.Model, "url", r.cfg.ModelURL)
	n, err := r.download(ctx, path)
	if err != nil {
		return failure.Wrap(failure.ModelUnavailable, "download model", path, err)
	}
	r.cfg.Logger.Info("model ready", "path", path, "bytes", n)
	r.ready = true
	return nil
}

func (r *Remover) download(ctx context.Context, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.ModelURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".model-*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, err
	}
	return n, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
