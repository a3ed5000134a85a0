package weft

import (
	"errors"
	"fmt"
	"strings"
)

// TemplateError represents a runtime failure while generating output,
// annotated with the template filename and the position of the event
// being processed when the failure surfaced.
type TemplateError struct {
	Filename string
	Line     int
	Column   int
	Cause    error
}

func (e *TemplateError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s: line %d, column %d: %v", e.Filename, e.Line, e.Column, e.Cause)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", e.Filename, e.Line, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Filename, e.Cause)
}

func (e *TemplateError) Unwrap() error { return e.Cause }

// NewTemplateError wraps a runtime evaluation failure with template
// position information. Errors that already carry a position are
// returned unchanged.
func NewTemplateError(cause error, filename string, pos Position) error {
	if cause == nil {
		return nil
	}
	var te *TemplateError
	var se *SyntaxError
	if errors.As(cause, &te) || errors.As(cause, &se) {
		return cause
	}
	return &TemplateError{
		Filename: filename,
		Line:     pos.Line,
		Column:   pos.Column,
		Cause:    cause,
	}
}

// SyntaxError represents a malformed expression or directive value
// found while parsing a template.
type SyntaxError struct {
	Message  string
	Filename string
	Line     int
	Column   int
	Cause    error
}

func (e *SyntaxError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("syntax error in %s at line %d, column %d: %s", e.Filename, e.Line, e.Column, msg)
	}
	if e.Line > 0 {
		return fmt.Sprintf("syntax error in %s at line %d: %s", e.Filename, e.Line, msg)
	}
	return fmt.Sprintf("syntax error in %s: %s", e.Filename, msg)
}

func (e *SyntaxError) Unwrap() error { return e.Cause }

// NewSyntaxError creates a syntax error with position information.
func NewSyntaxError(cause error, filename string, pos Position) error {
	if cause == nil {
		return nil
	}
	return &SyntaxError{
		Filename: filename,
		Line:     pos.Line,
		Column:   pos.Column,
		Cause:    cause,
	}
}

// BadDirectiveError is raised when parsing encounters an attribute in
// the directive namespace whose local name matches no registered
// directive. It aborts parsing immediately.
type BadDirectiveError struct {
	Name     string
	Filename string
	Line     int
}

func (e *BadDirectiveError) Error() string {
	return fmt.Sprintf("bad directive %q in %s at line %d", e.Name, e.Filename, e.Line)
}

// NewBadDirectiveError creates an unknown-directive parse error.
func NewBadDirectiveError(name, filename string, line int) error {
	return &BadDirectiveError{Name: name, Filename: filename, Line: line}
}

// NotFoundError is raised when a template loader cannot locate a
// template on its search path.
type NotFoundError struct {
	Name       string
	SearchPath []string
}

func (e *NotFoundError) Error() string {
	if len(e.SearchPath) == 0 {
		return fmt.Sprintf("template %q not found", e.Name)
	}
	return fmt.Sprintf("template %q not found (search path: %s)", e.Name, strings.Join(e.SearchPath, ", "))
}

// IsTemplateError checks whether an error is a runtime template error.
func IsTemplateError(err error) bool {
	var te *TemplateError
	return errors.As(err, &te)
}

// IsSyntaxError checks whether an error is a template syntax error.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsBadDirectiveError checks whether an error reports an unknown
// directive name.
func IsBadDirectiveError(err error) bool {
	var be *BadDirectiveError
	return errors.As(err, &be)
}

// IsNotFoundError checks whether an error reports a missing template.
func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
