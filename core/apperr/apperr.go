// Package apperr classifies client errors with cockroachdb markers so
// callers can tell validation, transport and permission failures apart
// without string matching.
package apperr

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/markers"
)

var (
	Validation       = errors.New("validation error")
	Transport        = errors.New("transport error")
	Permission       = errors.New("permission error")
	Unauthenticated  = errors.New("unauthenticated")
	NoPlayableSource = errors.New("no playable source")
	Cancelled        = errors.New("cancelled")
)

// detail carries user-facing text supplied by the backend.
type detail struct {
	cause error
	text  string
}

func (d *detail) Error() string { return d.cause.Error() }
func (d *detail) Unwrap() error { return d.cause }

// Message creates a new error marked with mark.
func Message(mark error, msg string) error {
	return markers.Mark(errors.New(msg), mark)
}

// Wrap wraps err with msg and marks it.
func Wrap(err error, mark error, msg string) error {
	return markers.Mark(errors.Wrap(err, msg), mark)
}

// WithDetail attaches backend-supplied user text to err.
func WithDetail(err error, text string) error {
	if text == "" {
		return err
	}
	return &detail{cause: err, text: text}
}

// Is reports whether err carries mark.
func Is(err error, mark error) bool {
	return err != nil && markers.Is(err, mark)
}

// UserMessage returns the text that should be shown to a person:
// backend detail when present, otherwise the error message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var d *detail
	if errors.As(err, &d) {
		return d.text
	}
	return err.Error()
}
