package jsondoc

import (
	"errors"
	"fmt"
)

// ErrTooLarge reports that input exceeds the configured size limit. It is
// checked before decoding begins, so no partial document is ever retained.
var ErrTooLarge = errors.New("document exceeds size limit")

// ErrTooDeep reports that input nesting exceeds the configured depth limit.
var ErrTooDeep = errors.New("document exceeds depth limit")

// A ParseError describes a failure to decode a document. Line is 1-based and
// Column is a 0-based byte offset in the line; both are zero when unknown.
type ParseError struct {
	Line, Column int
	Message      string

	err error
}

// Error satisfies the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse: %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return "parse: " + e.Message
}

// Unwrap supports error wrapping.
func (e *ParseError) Unwrap() error { return e.err }
