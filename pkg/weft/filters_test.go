package weft

import (
	"testing"
)

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "single line untouched",
			text: "  hello  ",
			want: "  hello  ",
		},
		{
			name: "trailing spaces before newline removed",
			text: "hello  \nworld",
			want: "hello\nworld",
		},
		{
			name: "trailing tabs removed",
			text: "a\t\nb",
			want: "a\nb",
		},
		{
			name: "blank line run collapsed",
			text: "a\n\n\n\nb",
			want: "a\n\nb",
		},
		{
			name: "single blank line kept",
			text: "a\n\nb",
			want: "a\n\nb",
		},
		{
			name: "indentation preserved",
			text: "\n  indented",
			want: "\n  indented",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collapseWhitespace(tt.text); got != tt.want {
				t.Errorf("collapseWhitespace(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestEvalFilterSplicesStreams(t *testing.T) {
	// A context value that is itself a stream is spliced into the
	// output rather than stringified.
	fragment := []Event{
		{Kind: KindStart, Tag: QName{Local: "b"}},
		{Kind: KindText, Text: "bold"},
		{Kind: KindEnd, Tag: QName{Local: "b"}},
	}
	source := `<p>${frag}</p>`
	got := render(t, source, map[string]any{"frag": fragment})
	if want := `<p><b>bold</b></p>`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEvalFilterAttributeInterpolation(t *testing.T) {
	source := `<a href="/user/${id}/edit" title="$kind">x</a>`
	got := render(t, source, map[string]any{"id": 42, "kind": "admin"})
	if want := `<a href="/user/42/edit" title="admin">x</a>`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEvalFilterNilVanishes(t *testing.T) {
	source := `<p>a${missing}b</p>`
	if got := render(t, source, nil); got != `<p>ab</p>` {
		t.Errorf("got %q, want %q", got, `<p>ab</p>`)
	}
}

func TestEvalFilterFormatsScalars(t *testing.T) {
	source := `<p>${n} ${f} ${b}</p>`
	got := render(t, source, map[string]any{"n": 42, "f": 1.5, "b": true})
	if want := `<p>42 1.5 true</p>`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
