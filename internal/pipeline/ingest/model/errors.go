package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedContainer = errors.New("unrecognized trace container")
	ErrMissingField          = errors.New("required field is missing")
	ErrNonNumericField       = errors.New("field is not numeric")
	ErrNegativeDuration      = errors.New("duration is negative")
	ErrNotAnObject           = errors.New("span record is not an object")
)

// CorpusReadError means a whole file was skipped.
type CorpusReadError struct {
	Path string
	Err  error
}

func (e *CorpusReadError) Error() string {
	return fmt.Sprintf("failed to read corpus file %s: %v", e.Path, e.Err)
}

func (e *CorpusReadError) Unwrap() error {
	return e.Err
}

// SpanFieldError means a single span was skipped; the rest of its trace is kept.
type SpanFieldError struct {
	SpanID string
	Field  string
	Err    error
}

func (e *SpanFieldError) Error() string {
	if e.SpanID == "" {
		return fmt.Sprintf("invalid span field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid field %s on span %s: %v", e.Field, e.SpanID, e.Err)
}

func (e *SpanFieldError) Unwrap() error {
	return e.Err
}
