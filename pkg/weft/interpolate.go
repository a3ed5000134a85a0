package weft

import "strings"

// Template text supports two interpolation forms: a braced form
// ${expr} and a short bareword form $name or $name.attr.path. A
// literal dollar sign is written doubled: "$$" escapes to "$".
//
// The braced form is scanned first across the whole text; literal
// residue is then scanned again for the short form. Every fragment is
// tagged with the position of the containing text event; the column is
// not advanced per fragment.

type segment struct {
	text string
	expr bool
}

// scanBraced splits text on ${...} occurrences. The closing brace is
// the one matching the opener, skipping braces nested inside the
// expression and braces inside string literals, so map literals like
// ${f({k: 'v'})} scan whole. An unmatched or empty form stays literal.
func scanBraced(text string) []segment {
	var segs []segment
	start := 0
	i := 0
	for i < len(text) {
		if text[i] == '$' && i+1 < len(text) && text[i+1] == '{' && (i == 0 || text[i-1] != '$') {
			if close := matchBrace(text, i+2); close > i+2 {
				segs = append(segs,
					segment{text: text[start:i]},
					segment{text: text[i+2 : close], expr: true})
				i = close + 1
				start = i
				continue
			}
		}
		i++
	}
	return append(segs, segment{text: text[start:]})
}

// matchBrace returns the index of the '}' closing a brace opened just
// before from, or -1 when the text ends first.
func matchBrace(text string, from int) int {
	depth := 0
	var quote byte
	for i := from; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// scanShort splits text on $name and $name.attr forms. Dots are only
// consumed when followed by a further identifier.
func scanShort(text string) []segment {
	var segs []segment
	start := 0
	i := 0
	for i < len(text) {
		if text[i] == '$' && i+1 < len(text) && isIdentStart(text[i+1]) && (i == 0 || text[i-1] != '$') {
			j := i + 1
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			for j < len(text) && text[j] == '.' && j+1 < len(text) && isIdentStart(text[j+1]) {
				j++
				for j < len(text) && isIdentPart(text[j]) {
					j++
				}
			}
			segs = append(segs,
				segment{text: text[start:i]},
				segment{text: text[i+1 : j], expr: true})
			i = j
			start = j
			continue
		}
		i++
	}
	return append(segs, segment{text: text[start:]})
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '_'
}

func unescapeDollar(s string) string {
	return strings.ReplaceAll(s, "$$", "$")
}

// interpolate splits raw text into alternating TEXT and EXPR events.
func interpolate(text string, pos Position) ([]Event, error) {
	var events []Event
	addExpr := func(src string) error {
		e, err := NewExpression(src)
		if err != nil {
			return err
		}
		events = append(events, Event{Kind: KindExpr, Expr: e, Pos: pos})
		return nil
	}
	addText := func(s string) {
		if s == "" {
			return
		}
		events = append(events, Event{Kind: KindText, Text: unescapeDollar(s), Pos: pos})
	}
	for _, seg := range scanBraced(text) {
		if seg.expr {
			if err := addExpr(seg.text); err != nil {
				return nil, err
			}
			continue
		}
		for _, sub := range scanShort(seg.text) {
			if sub.expr {
				if err := addExpr(sub.text); err != nil {
					return nil, err
				}
			} else {
				addText(sub.text)
			}
		}
	}
	return events, nil
}

// interpolateValue compiles an attribute value. Values without
// expressions come back as a plain string with nil parts.
func interpolateValue(value string) (string, []ValuePart, error) {
	var parts []ValuePart
	hasExpr := false
	addExpr := func(src string) error {
		e, err := NewExpression(src)
		if err != nil {
			return err
		}
		parts = append(parts, ValuePart{Expr: e})
		hasExpr = true
		return nil
	}
	addText := func(s string) {
		if s == "" {
			return
		}
		parts = append(parts, ValuePart{Text: unescapeDollar(s)})
	}
	for _, seg := range scanBraced(value) {
		if seg.expr {
			if err := addExpr(seg.text); err != nil {
				return "", nil, err
			}
			continue
		}
		for _, sub := range scanShort(seg.text) {
			if sub.expr {
				if err := addExpr(sub.text); err != nil {
					return "", nil, err
				}
			} else {
				addText(sub.text)
			}
		}
	}
	if !hasExpr {
		return unescapeDollar(value), nil, nil
	}
	return "", parts, nil
}
