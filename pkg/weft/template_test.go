package weft

import (
	"strings"
	"testing"
)

func compile(t *testing.T, source string) *Template {
	t.Helper()
	tmpl, err := NewTemplateString(source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return tmpl
}

func TestCompileDirectiveNamespaceAbsorbed(t *testing.T) {
	tmpl := compile(t, `<div `+nsDecl+`><b py:if="true">x</b></div>`)
	for _, ev := range tmpl.stream {
		if ev.Kind == KindStartNS && ev.NS.URI == NamespaceURI {
			t.Error("directive namespace declaration survived compilation")
		}
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "xmlns:py") {
		t.Errorf("directive namespace leaked into output: %q", out)
	}
}

func TestCompileCollapsesDirectiveSubtrees(t *testing.T) {
	tmpl := compile(t, `<div `+nsDecl+`><b py:if="x"><i py:if="y">z</i></b></div>`)

	var subs []*Sub
	for _, ev := range tmpl.stream {
		if ev.Kind == KindSub {
			subs = append(subs, ev.Sub)
		}
	}
	if len(subs) != 1 {
		t.Fatalf("top-level stream has %d SUB events, want 1", len(subs))
	}

	// The outer SUB holds the whole <b> subtree; the inner <i> scope
	// collapsed first and nests inside it.
	outer := subs[0]
	if outer.Events[0].Tag.Local != "b" {
		t.Fatalf("outer SUB starts with %v, want <b>", outer.Events[0])
	}
	inner := 0
	for _, ev := range outer.Events {
		if ev.Kind == KindSub {
			inner++
			if ev.Sub.Events[0].Tag.Local != "i" {
				t.Errorf("nested SUB starts with %v, want <i>", ev.Sub.Events[0])
			}
		}
	}
	if inner != 1 {
		t.Errorf("outer SUB contains %d nested SUB events, want 1", inner)
	}
}

func TestCompileSortsDirectivesCanonically(t *testing.T) {
	// Attribute order in source is attrs-before-if; canonical priority
	// puts if first.
	tmpl := compile(t, `<div `+nsDecl+`><b py:attrs="a" py:if="c">x</b></div>`)
	for _, ev := range tmpl.stream {
		if ev.Kind != KindSub {
			continue
		}
		dirs := ev.Sub.Directives
		if len(dirs) != 2 {
			t.Fatalf("got %d directives, want 2", len(dirs))
		}
		if _, ok := dirs[0].(*ifDirective); !ok {
			t.Errorf("directives[0] is %T, want *ifDirective", dirs[0])
		}
		if _, ok := dirs[1].(*attrsDirective); !ok {
			t.Errorf("directives[1] is %T, want *attrsDirective", dirs[1])
		}
		return
	}
	t.Fatal("no SUB event in compiled stream")
}

func TestCompileRejectsMalformedMarkup(t *testing.T) {
	_, err := NewTemplateString(`<div><b></div>`)
	if err == nil {
		t.Fatal("mismatched tags did not error")
	}
	if !IsSyntaxError(err) {
		t.Errorf("error %v is not a syntax error", err)
	}
}

func TestGenerateIdentityWithoutDirectives(t *testing.T) {
	source := `<html lang="en"><head><title>t</title></head><body>hi</body></html>`
	tmpl := compile(t, source)
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != source {
		t.Errorf("identity law violated:\n got  %q\n want %q", out, source)
	}
}

func TestGenerateIsRepeatable(t *testing.T) {
	// The compiled stream is immutable; generating twice against
	// different contexts yields independent results.
	tmpl := compile(t, `<p `+nsDecl+`><b py:if="show">${msg}</b></p>`)

	out1, err := tmpl.Render(map[string]any{"show": true, "msg": "one"})
	if err != nil {
		t.Fatal(err)
	}
	out2, err := tmpl.Render(map[string]any{"show": false})
	if err != nil {
		t.Fatal(err)
	}
	out3, err := tmpl.Render(map[string]any{"show": true, "msg": "three"})
	if err != nil {
		t.Fatal(err)
	}
	if out1 != `<p><b>one</b></p>` || out2 != `<p/>` || out3 != `<p><b>three</b></p>` {
		t.Errorf("got %q, %q, %q", out1, out2, out3)
	}
}

func TestGenerateIsLazy(t *testing.T) {
	// Pulling only the first event must not evaluate expressions
	// further into the document.
	tmpl := compile(t, `<div><p>${boom()}</p></div>`)
	boom := func() (any, error) {
		t.Error("expression beyond the consumed prefix was evaluated")
		return nil, nil
	}
	s := tmpl.Generate(NewContext(map[string]any{"boom": boom}))
	if _, err := s.Next(); err != nil {
		t.Fatal(err)
	}
}

func TestEngineParseAndLoad(t *testing.T) {
	engine := New(WithSearchPath(t.TempDir()))
	if _, err := engine.Load("nothing.xml"); !IsNotFoundError(err) {
		t.Errorf("Load through engine: error %v is not a not-found error", err)
	}

	tmpl, err := engine.Parse(strings.NewReader(`<p>x</p>`), "inline.xml")
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Filename() != "inline.xml" {
		t.Errorf("Filename() = %q, want inline.xml", tmpl.Filename())
	}
}
