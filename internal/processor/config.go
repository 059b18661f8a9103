package processor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"imgpilot/internal/failure"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks cfg and reports every violated rule in one
// InvalidConfiguration failure.
func (cfg Config) Validate() error {
	err := configValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return failure.Wrap(failure.InvalidConfiguration, "validate", "", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return failure.New(failure.InvalidConfiguration, "validate", "%s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("%s: at least one value is required", field)
		}
		if fe.Tag() == "min" {
			return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
		}
		return fmt.Sprintf("%s: required", field)
	case "required_without":
		return fmt.Sprintf("%s: width or height is required", field)
	case "max":
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s: must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: %v is not one of [%s]", field, fe.Value(), fe.Param())
	case "unique":
		return fmt.Sprintf("%s: duplicate values", field)
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}

// ParseFormat maps user input (case-insensitive, "jpeg" accepted) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return FormatWebP, nil
	case "avif":
		return FormatAVIF, nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "ico":
		return FormatICO, nil
	case "svg":
		return FormatSVG, nil
	default:
		return "", failure.New(failure.UnsupportedFormat, "parse format", "unknown format %q", s)
	}
}

// ParseAlgorithm maps user input to an Algorithm. Empty input selects Lanczos.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lanczos":
		return Lanczos, nil
	case "bicubic":
		return Bicubic, nil
	case "bilinear":
		return Bilinear, nil
	case "nearest":
		return Nearest, nil
	default:
		return "", failure.New(failure.InvalidConfiguration, "parse algorithm", "unknown resize algorithm %q", s)
	}
}
