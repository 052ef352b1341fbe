package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSource is returned when a required source folder or file is
	// absent. A run never proceeds on empty data.
	ErrMissingSource = errors.New("missing source")

	// ErrInvalidFolder is returned when a path that must be a directory does
	// not exist or is not a directory.
	ErrInvalidFolder = errors.New("invalid folder")
)

// ParseError reports a malformed cell in a source file. Readers stop at the
// first one; rows are never skipped to work around bad values.
type ParseError struct {
	File   string
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: column %s: cannot parse %q: %v", e.File, e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
