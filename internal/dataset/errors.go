package dataset

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Stages wrap their failures in one of the
// typed errors below; callers classify with errors.Is against the sentinels.
//
// Policy (documented, not inferred):
//   - Row-local recoverable issues (one unparseable date, one empty payload)
//     degrade to a missing cell and never abort the batch.
//   - Structural issues (file access, header/arity mismatch, undecodable
//     payload syntax, out-of-domain weekday, unknown store-type key) abort
//     with the most specific error.
var (
	ErrIO         = errors.New("io error")
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation error")
	ErrSchema     = errors.New("schema error")
)

// IOError wraps a file-access failure.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return ErrIO }

// ParseError marks a structural mismatch in the raw input: wrong row arity,
// malformed CSV, undecodable structured payload.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}
func (e *ParseError) Unwrap() error { return ErrParse }

// ValidationError marks a value outside its declared domain.
type ValidationError struct {
	Line  int
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: field %q: %v", e.Line, e.Field, e.Err)
}
func (e *ValidationError) Unwrap() error { return ErrValidation }

// SchemaError marks a store-type key outside the canonical column set.
type SchemaError struct {
	Line int
	Key  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("line %d: store type %q not in canonical set", e.Line, e.Key)
}
func (e *SchemaError) Unwrap() error { return ErrSchema }
