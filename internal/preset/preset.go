// Package preset stores named job configurations. Presets ship built in and
// can be extended or overridden from a YAML file.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"imgpilot/internal/failure"
	"imgpilot/internal/processor"
)

// Preset is the on-disk form of a job configuration. Pointer fields separate
// "unset" from an explicit zero so defaults only fill what the file omits.
type Preset struct {
	Name             string   `yaml:"name" validate:"required"`
	Description      string   `yaml:"description,omitempty"`
	Formats          []string `yaml:"formats" default:"[\"webp\"]" validate:"required,min=1,dive,oneof=webp avif png jpg jpeg ico svg"`
	Quality          *int     `yaml:"quality" default:"80" validate:"required,min=0,max=100"`
	Width            *int     `yaml:"width,omitempty" validate:"omitempty,gt=0"`
	Height           *int     `yaml:"height,omitempty" validate:"omitempty,gt=0"`
	KeepAspect       *bool    `yaml:"keep_aspect" default:"true"`
	Algorithm        string   `yaml:"algorithm" default:"lanczos" validate:"oneof=lanczos bicubic bilinear nearest"`
	PreserveEXIF     bool     `yaml:"preserve_exif"`
	RemoveBackground bool     `yaml:"remove_background,omitempty"`
}

type file struct {
	Presets []Preset `yaml:"presets"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func presetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// Builtins returns the presets available without a presets file.
func Builtins() []Preset {
	return []Preset{
		{Name: "web-balanced", Description: "WebP for the web, balanced size and quality", Formats: []string{"webp"}, Quality: intPtr(80), KeepAspect: boolPtr(true), Algorithm: "lanczos", PreserveEXIF: true},
		{Name: "web-high-quality", Description: "WebP with minimal visible loss", Formats: []string{"webp"}, Quality: intPtr(95), KeepAspect: boolPtr(true), Algorithm: "lanczos", PreserveEXIF: true},
		{Name: "web-max-compression", Description: "Smallest WebP, metadata dropped", Formats: []string{"webp"}, Quality: intPtr(60), KeepAspect: boolPtr(true), Algorithm: "lanczos", PreserveEXIF: false},
		{Name: "png-lossless", Description: "Lossless PNG", Formats: []string{"png"}, Quality: intPtr(80), KeepAspect: boolPtr(true), Algorithm: "lanczos", PreserveEXIF: true},
		{Name: "jpeg-high-quality", Description: "High quality JPEG", Formats: []string{"jpg"}, Quality: intPtr(90), KeepAspect: boolPtr(true), Algorithm: "lanczos", PreserveEXIF: true},
	}
}

// Decode reads a presets document. Unknown keys are rejected, omitted fields
// take their defaults and every preset is validated.
func Decode(r io.Reader) ([]Preset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, failure.Wrap(failure.InvalidConfiguration, "decode presets", "", err)
	}

	seen := make(map[string]bool, len(doc.Presets))
	for i := range doc.Presets {
		p := &doc.Presets[i]
		if err := defaults.Set(p); err != nil {
			return nil, failure.Wrap(failure.InvalidConfiguration, "preset defaults", p.Name, err)
		}
		p.Name = strings.TrimSpace(p.Name)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, failure.New(failure.InvalidConfiguration, "decode presets", "preset %q defined twice", p.Name)
		}
		seen[p.Name] = true
	}
	return doc.Presets, nil
}

// Encode writes presets in the format Decode reads.
func Encode(w io.Writer, presets []Preset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file{Presets: presets}); err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	return enc.Close()
}

// Validate checks the preset fields.
func (p Preset) Validate() error {
	if err := presetValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return failure.New(failure.InvalidConfiguration, "validate preset", "%s: %s", p.Name, strings.Join(msgs, ", "))
		}
		return failure.Wrap(failure.InvalidConfiguration, "validate preset", p.Name, err)
	}
	return nil
}

// Config resolves the preset into a job configuration writing to outputDir.
func (p Preset) Config(outputDir string) (processor.Config, error) {
	cfg := processor.Config{
		PreserveEXIF:     p.PreserveEXIF,
		OutputDir:        outputDir,
		RemoveBackground: p.RemoveBackground,
	}
	if p.Quality != nil {
		cfg.Quality = *p.Quality
	}
	for _, name := range p.Formats {
		f, err := processor.ParseFormat(name)
		if err != nil {
			return processor.Config{}, err
		}
		cfg.Formats = append(cfg.Formats, f)
	}
	if p.Width != nil || p.Height != nil {
		algo, err := processor.ParseAlgorithm(p.Algorithm)
		if err != nil {
			return processor.Config{}, err
		}
		cfg.Resize = &processor.ResizePolicy{
			Width:      p.Width,
			Height:     p.Height,
			KeepAspect: p.KeepAspect == nil || *p.KeepAspect,
			Algorithm:  algo,
		}
	}
	return cfg, cfg.Validate()
}

// Store holds built-in presets overlaid with those of a presets file.
type Store struct {
	presets map[string]Preset
}

// NewStore returns a store with the built-ins followed by extra, later
// entries replacing earlier ones of the same name.
func NewStore(extra ...Preset) *Store {
	return storeOf(Builtins(), extra)
}

func storeOf(base, extra []Preset) *Store {
	s := &Store{presets: make(map[string]Preset, len(base)+len(extra))}
	for _, p := range base {
		s.presets[p.Name] = p
	}
	for _, p := range extra {
		s.presets[p.Name] = p
	}
	return s
}

// Load builds a store from the presets file at path. A missing file yields
// the built-ins only.
func Load(path string) (*Store, error) {
	presets, err := ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStore(), nil
		}
		return nil, err
	}
	return NewStore(presets...), nil
}

// Open returns a store holding only the presets defined in the file at path,
// for editing that file. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	presets, err := ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storeOf(nil, nil), nil
		}
		return nil, err
	}
	return storeOf(nil, presets), nil
}

// ReadFile decodes the presets defined in the file at path.
func ReadFile(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data))
}

// Names lists preset names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Get(name string) (Preset, bool) {
	p, ok := s.presets[strings.TrimSpace(name)]
	return p, ok
}

// Put validates p and adds or replaces it.
func (s *Store) Put(p Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	if err := defaults.Set(&p); err != nil {
		return failure.Wrap(failure.InvalidConfiguration, "preset defaults", p.Name, err)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.presets[p.Name] = p
	return nil
}

// Delete removes a preset and reports whether it existed.
func (s *Store) Delete(name string) bool {
	name = strings.TrimSpace(name)
	if _, ok := s.presets[name]; !ok {
		return false
	}
	delete(s.presets, name)
	return true
}

// Save writes every preset in the store to path.
func (s *Store) Save(path string) error {
	presets := make([]Preset, 0, len(s.presets))
	for _, name := range s.Names() {
		presets = append(presets, s.presets[name])
	}
	return WriteFile(path, presets)
}

// WriteFile replaces the presets file at path atomically.
func WriteFile(path string, presets []Preset) error {
	var buf bytes.Buffer
	if err := Encode(&buf, presets); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".presets-*.tmp")
	if err != nil {
		return fmt.Errorf("save presets: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("save presets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save presets: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("save presets: %w", err)
	}
	return nil
}
