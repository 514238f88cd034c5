package rules

import (
	"fmt"
)

// ParseError describes why part of a rules document was rejected.
// Err is one of the parse sentinels in internal/types.
type ParseError struct {
	Path     string // location in the document, e.g. rules[0].condition.definition
	Fragment string // raw JSON of the offending object
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	msg := e.Err.Error()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, msg)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(path string, obj any, err error, format string, args ...any) *ParseError {
	return &ParseError{
		Path:     path,
		Fragment: fragment(obj),
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	}
}
