package weft

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTemplateErrorFormatting(t *testing.T) {
	err := NewTemplateError(errors.New("boom"), "page.xml", Position{Line: 3, Column: 9})
	want := "page.xml: line 3, column 9: boom"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestTemplateErrorIdempotentWrapping(t *testing.T) {
	inner := NewTemplateError(errors.New("boom"), "page.xml", Position{Line: 3, Column: 9})
	outer := NewTemplateError(inner, "other.xml", Position{Line: 99, Column: 1})
	if outer != inner {
		t.Error("rewrapping replaced the original position")
	}

	syn := NewSyntaxError(errors.New("bad token"), "page.xml", Position{Line: 2, Column: 1})
	if wrapped := NewTemplateError(syn, "page.xml", Position{Line: 9, Column: 9}); wrapped != syn {
		t.Error("syntax error was rewrapped as a runtime error")
	}
}

func TestTemplateErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewTemplateError(fmt.Errorf("evaluating: %w", cause), "page.xml", Position{Line: 1, Column: 1})
	if !errors.Is(err, cause) {
		t.Error("errors.Is does not reach the cause")
	}
}

func TestErrorClassHelpers(t *testing.T) {
	templateErr := NewTemplateError(errors.New("x"), "f", Position{Line: 1, Column: 1})
	syntaxErr := NewSyntaxError(errors.New("x"), "f", Position{Line: 1, Column: 1})
	badDirective := NewBadDirectiveError("bogus", "f", 1)
	notFound := &NotFoundError{Name: "n", SearchPath: []string{"/tmp"}}

	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"template error", templateErr, IsTemplateError, true},
		{"template error negative", syntaxErr, IsTemplateError, false},
		{"syntax error", syntaxErr, IsSyntaxError, true},
		{"bad directive", badDirective, IsBadDirectiveError, true},
		{"bad directive negative", templateErr, IsBadDirectiveError, false},
		{"not found", notFound, IsNotFoundError, true},
		{"wrapped not found", fmt.Errorf("loading: %w", notFound), IsNotFoundError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("check = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotFoundErrorListsSearchPath(t *testing.T) {
	err := &NotFoundError{Name: "page.xml", SearchPath: []string{"/a", "/b"}}
	msg := err.Error()
	if !strings.Contains(msg, "/a") || !strings.Contains(msg, "/b") {
		t.Errorf("message %q does not list the search path", msg)
	}
}

func TestBadDirectiveErrorMessage(t *testing.T) {
	err := NewBadDirectiveError("frob", "page.xml", 7)
	msg := err.Error()
	if !strings.Contains(msg, "frob") || !strings.Contains(msg, "page.xml") || !strings.Contains(msg, "7") {
		t.Errorf("message %q is missing name, filename, or line", msg)
	}
}
