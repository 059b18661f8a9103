// Package failure carries the error taxonomy shared by the pipeline and its
// adapters. Every failure recorded in a batch report has exactly one Kind.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	InvalidConfiguration Kind = "InvalidConfiguration"
	InvalidDimension     Kind = "InvalidDimension"
	UnsupportedFormat    Kind = "UnsupportedFormat"
	EncodeError          Kind = "EncodeError"
	WriteError           Kind = "WriteError"
	DestinationConflict  Kind = "DestinationConflict"
	ModelUnavailable     Kind = "ModelUnavailable"
	TransformError       Kind = "TransformError"
	Cancelled            Kind = "Cancelled"
)

// Error is a classified failure. Op names the step that failed and Path the
// file involved, when there is one.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, failure.Of(k)) works
// regardless of op and path.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind && t.Op == "" && t.Path == "" && t.Err == nil
	}
	return false
}

// Of returns a bare sentinel for kind, for use with errors.Is.
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}

// New builds a failure with a formatted message.
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil. An err that already carries a
// kind keeps it.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		kind = Cancelled
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf reports the kind carried by err. Unclassified errors are treated as
// encoder failures, context cancellation as Cancelled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return EncodeError
}

// Message returns the human readable part of err without the kind prefix.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Err != nil {
		return fe.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
