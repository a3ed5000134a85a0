package weft

import (
	"testing"
)

func mkStep(tag string, attrs ...string) pathStep {
	step := pathStep{tag: QName{Local: tag}}
	for i := 0; i+1 < len(attrs); i += 2 {
		step.attrs = append(step.attrs, Attribute{
			Name:  QName{Local: attrs[i]},
			Value: attrs[i+1],
		})
	}
	return step
}

func TestPathMatches(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		ancestors []pathStep
		elem      pathStep
		want      bool
	}{
		{
			name:    "bare tag at root",
			pattern: "greeting",
			elem:    mkStep("greeting"),
			want:    true,
		},
		{
			name:      "bare tag at depth",
			pattern:   "greeting",
			ancestors: []pathStep{mkStep("html"), mkStep("body")},
			elem:      mkStep("greeting"),
			want:      true,
		},
		{
			name:    "bare tag wrong name",
			pattern: "greeting",
			elem:    mkStep("farewell"),
			want:    false,
		},
		{
			name:      "child step requires immediate parent",
			pattern:   "div/greeting",
			ancestors: []pathStep{mkStep("div")},
			elem:      mkStep("greeting"),
			want:      true,
		},
		{
			name:    "child step without parent",
			pattern: "div/greeting",
			elem:    mkStep("greeting"),
			want:    false,
		},
		{
			name:      "child step with intervening element",
			pattern:   "div/greeting",
			ancestors: []pathStep{mkStep("div"), mkStep("span")},
			elem:      mkStep("greeting"),
			want:      false,
		},
		{
			name:      "descendant step allows gaps",
			pattern:   "div//greeting",
			ancestors: []pathStep{mkStep("div"), mkStep("span")},
			elem:      mkStep("greeting"),
			want:      true,
		},
		{
			name:      "relative first step matches above root",
			pattern:   "div/greeting",
			ancestors: []pathStep{mkStep("html"), mkStep("div")},
			elem:      mkStep("greeting"),
			want:      true,
		},
		{
			name:      "absolute path anchors at root",
			pattern:   "/html/body",
			ancestors: []pathStep{mkStep("html")},
			elem:      mkStep("body"),
			want:      true,
		},
		{
			name:      "absolute path rejects deeper element",
			pattern:   "/body",
			ancestors: []pathStep{mkStep("html")},
			elem:      mkStep("body"),
			want:      false,
		},
		{
			name:    "wildcard with attribute presence",
			pattern: "*[@name]",
			elem:    mkStep("greeting", "name", "x"),
			want:    true,
		},
		{
			name:    "attribute presence missing",
			pattern: "*[@name]",
			elem:    mkStep("greeting"),
			want:    false,
		},
		{
			name:    "attribute equality",
			pattern: "a[@href='#top']",
			elem:    mkStep("a", "href", "#top"),
			want:    true,
		},
		{
			name:    "attribute equality mismatch",
			pattern: "a[@href='#top']",
			elem:    mkStep("a", "href", "#bottom"),
			want:    false,
		},
		{
			name:      "wildcard step in the middle",
			pattern:   "div/*/greeting",
			ancestors: []pathStep{mkStep("div"), mkStep("span")},
			elem:      mkStep("greeting"),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := ParsePath(tt.pattern)
			if err != nil {
				t.Fatalf("ParsePath(%q): %v", tt.pattern, err)
			}
			if got := path.Matches(tt.ancestors, tt.elem); got != tt.want {
				t.Errorf("Matches(%q, %v, %v) = %v, want %v", tt.pattern, tt.ancestors, tt.elem, got, tt.want)
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	tests := []string{
		"",
		"div/",
		"div[@name",
		"div[name]",
		"div[@href=#top]",
	}
	for _, pattern := range tests {
		if _, err := ParsePath(pattern); err == nil {
			t.Errorf("ParsePath(%q) did not error", pattern)
		}
	}
}

func TestSelect(t *testing.T) {
	events, err := parseMarkup([]byte(`<greeting name="Dude">Hi <b>there</b></greeting>`), "test")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("attribute", func(t *testing.T) {
		v, err := Select(events, "@name")
		if err != nil {
			t.Fatal(err)
		}
		if v != "Dude" {
			t.Errorf("select(@name) = %v, want Dude", v)
		}
	})

	t.Run("missing attribute is nil", func(t *testing.T) {
		v, err := Select(events, "@missing")
		if err != nil {
			t.Fatal(err)
		}
		if v != nil {
			t.Errorf("select(@missing) = %v, want nil", v)
		}
	})

	t.Run("text", func(t *testing.T) {
		v, err := Select(events, "text()")
		if err != nil {
			t.Fatal(err)
		}
		if v != "Hi there" {
			t.Errorf("select(text()) = %v, want %q", v, "Hi there")
		}
	})

	t.Run("subtree", func(t *testing.T) {
		v, err := Select(events, "b")
		if err != nil {
			t.Fatal(err)
		}
		s, ok := v.(Stream)
		if !ok {
			t.Fatalf("select(b) = %T, want Stream", v)
		}
		sub, err := drain(s)
		if err != nil {
			t.Fatal(err)
		}
		if len(sub) != 3 || sub[0].Tag.Local != "b" || sub[1].Text != "there" {
			t.Errorf("select(b) yielded %v", sub)
		}
	})
}
