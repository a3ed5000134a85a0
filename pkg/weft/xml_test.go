package weft

import (
	"testing"
)

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestParseMarkupEventSequence(t *testing.T) {
	events, err := parseMarkup([]byte(`<div a="1"><b>x</b></div>`), "test")
	if err != nil {
		t.Fatal(err)
	}
	want := []Kind{KindStart, KindStart, KindText, KindEnd, KindEnd}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d is %v, want %v", i, got[i], want[i])
		}
	}
	if v, ok := events[0].Attrs.Get("a"); !ok || v != "1" {
		t.Errorf("attribute a = (%q, %v), want (1, true)", v, ok)
	}
}

func TestParseMarkupNamespaceEvents(t *testing.T) {
	events, err := parseMarkup([]byte(`<root xmlns:x="urn:x"><x:item/></root>`), "test")
	if err != nil {
		t.Fatal(err)
	}
	want := []Kind{KindStartNS, KindStart, KindStart, KindEnd, KindEnd, KindEndNS}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d is %v, want %v", i, got[i], want[i])
		}
	}
	if events[0].NS.Prefix != "x" || events[0].NS.URI != "urn:x" {
		t.Errorf("namespace binding = %+v", events[0].NS)
	}
	if events[2].Tag.Space != "urn:x" {
		t.Errorf("item namespace = %q, want urn:x", events[2].Tag.Space)
	}
	// The xmlns attribute itself is lifted out of the attribute list.
	if len(events[1].Attrs) != 0 {
		t.Errorf("root kept %d attributes, want 0", len(events[1].Attrs))
	}
}

func TestParseMarkupPositions(t *testing.T) {
	source := "<div>\n  <b>x</b>\n</div>"
	events, err := parseMarkup([]byte(source), "test")
	if err != nil {
		t.Fatal(err)
	}
	// events: div, text, b, text, /b, text, /div
	if pos := events[0].Pos; pos.Line != 1 || pos.Column != 1 {
		t.Errorf("<div> at %+v, want line 1 column 1", pos)
	}
	if pos := events[2].Pos; pos.Line != 2 || pos.Column != 3 {
		t.Errorf("<b> at %+v, want line 2 column 3", pos)
	}
	if pos := events[6].Pos; pos.Line != 3 || pos.Column != 1 {
		t.Errorf("</div> at %+v, want line 3 column 1", pos)
	}
}

func TestParseMarkupMalformed(t *testing.T) {
	tests := []string{
		`<div>`,
		`<div></span>`,
		`<div`,
	}
	for _, source := range tests {
		if _, err := parseMarkup([]byte(source), "test"); err == nil {
			t.Errorf("parseMarkup(%q) did not error", source)
		}
	}
}
