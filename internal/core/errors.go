// Package core implements the collection service: ingestion of text, PDF,
// and crawled web content into named vector collections, and grounded
// question answering against those collections with per-collection
// conversation history.
//
// This file defines the error taxonomy shared by the service and its
// transport layers. Every error that crosses the core boundary carries a
// Kind so callers can map failures to stable, user-visible categories
// without string matching.
package core

import (
	"errors"
	"fmt"
)

// Kind classifies a core error into one of the stable categories exposed to
// callers and transport layers.
type Kind int

const (
	// KindUnknown is the zero value for errors that were not classified.
	KindUnknown Kind = iota

	// KindValidation marks caller errors: missing collection name, empty
	// query, malformed input.
	KindValidation

	// KindNotFound marks reads against a collection that does not exist.
	KindNotFound

	// KindUpstream marks failures of an external dependency: embedding
	// provider, vector store, chat model, or crawler target.
	KindUpstream
)

// String returns the stable wire label for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a classified core error. It wraps the underlying cause (if any)
// so errors.Is / errors.As keep working through the classification layer.
type Error struct {
	// Kind is the stable category of this failure.
	Kind Kind

	// Msg is the human-readable description.
	Msg string

	// Err is the wrapped cause, nil for pure validation errors.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Upstreamf builds a KindUpstream error wrapping cause.
func Upstreamf(cause error, format string, args ...any) error {
	return &Error{Kind: KindUpstream, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the Kind of err, or KindUnknown when err is nil or was
// never classified.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is classified as KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
