package weft

import (
	"fmt"
	"io"
	"strings"
)

// evalFilter is the pre-filter that resolves EXPR events and
// interpolated attribute values against the context. Scalar results
// become text; nil vanishes; stream and event-slice results are spliced
// in place and recursively evaluated, which is how template function
// calls expand their bodies.
func (t *Template) evalFilter(s Stream, ctx *Context) Stream {
	var inner Stream
	return StreamFunc(func() (Event, error) {
		for {
			if inner != nil {
				ev, err := inner.Next()
				if err == io.EOF {
					inner = nil
					continue
				}
				if err != nil {
					return Event{}, err
				}
				return ev, nil
			}
			ev, err := s.Next()
			if err != nil {
				return Event{}, err
			}
			switch ev.Kind {
			case KindExpr:
				v, err := ev.Expr.Evaluate(ctx)
				if err != nil {
					return Event{}, NewTemplateError(err, t.filename, ev.Pos)
				}
				switch val := v.(type) {
				case nil:
					continue
				case Stream:
					inner = t.evalFilter(val, ctx)
					continue
				case []Event:
					inner = t.evalFilter(newSliceStream(val), ctx)
					continue
				default:
					text := formatValue(val)
					if text == "" {
						continue
					}
					return Event{Kind: KindText, Text: text, Pos: ev.Pos}, nil
				}
			case KindStart:
				attrs, err := t.evalAttributes(ev, ctx)
				if err != nil {
					return Event{}, err
				}
				ev.Attrs = attrs
				return ev, nil
			default:
				return ev, nil
			}
		}
	})
}

// evalAttributes materializes interpolated attribute values. Attributes
// without expression parts pass through untouched.
func (t *Template) evalAttributes(open Event, ctx *Context) (Attributes, error) {
	interpolated := false
	for _, a := range open.Attrs {
		if a.Parts != nil {
			interpolated = true
			break
		}
	}
	if !interpolated {
		return open.Attrs, nil
	}
	attrs := make(Attributes, len(open.Attrs))
	for i, a := range open.Attrs {
		if a.Parts == nil {
			attrs[i] = a
			continue
		}
		var b strings.Builder
		for _, p := range a.Parts {
			if p.Expr == nil {
				b.WriteString(p.Text)
				continue
			}
			v, err := p.Expr.Evaluate(ctx)
			if err != nil {
				return nil, NewTemplateError(err, t.filename, open.Pos)
			}
			b.WriteString(formatValue(v))
		}
		attrs[i] = Attribute{Name: a.Name, Value: b.String()}
	}
	return attrs, nil
}

// WhitespaceFilter returns the cosmetic post-filter: it trims trailing
// horizontal whitespace off every line and collapses runs of blank
// lines inside a text event down to one. It never feeds anything back
// into the engine.
func WhitespaceFilter() Filter {
	return func(s Stream, _ *Context) Stream {
		return StreamFunc(func() (Event, error) {
			ev, err := s.Next()
			if err != nil {
				return Event{}, err
			}
			if ev.Kind == KindText {
				ev.Text = collapseWhitespace(ev.Text)
			}
			return ev, nil
		})
	}
}

func collapseWhitespace(text string) string {
	if !strings.ContainsRune(text, '\n') {
		return text
	}
	lines := strings.Split(text, "\n")
	out := lines[:0]
	blanks := 0
	for i, line := range lines {
		if i < len(lines)-1 {
			line = strings.TrimRight(line, " \t")
		}
		interior := i > 0 && i < len(lines)-1
		if interior && line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// newIncludeFilter builds the pre-filter a loader attaches to every
// template it parses. It consumes include elements and splices in the
// referenced template's generated stream against the current context.
// Nested includes run through the included template's own filter, so
// depth is tracked on the context and bounded to catch cycles.
func newIncludeFilter(loader *Loader, t *Template) Filter {
	return func(s Stream, ctx *Context) Stream {
		var inner Stream
		return StreamFunc(func() (Event, error) {
			for {
				if inner != nil {
					ev, err := inner.Next()
					if err == io.EOF {
						inner = nil
						ctx.includeDepth--
						continue
					}
					if err != nil {
						return Event{}, err
					}
					return ev, nil
				}
				ev, err := s.Next()
				if err != nil {
					return Event{}, err
				}
				if ev.Kind != KindStart || ev.Tag.Space != xincludeNamespace || ev.Tag.Local != "include" {
					return ev, nil
				}
				href, ok := ev.Attrs.Get("href")
				if !ok {
					return Event{}, NewTemplateError(fmt.Errorf("include element is missing the href attribute"), t.filename, ev.Pos)
				}
				if _, err := collectSubtree(ev, s); err != nil {
					return Event{}, err
				}
				if max := loader.maxIncludeDepth(); ctx.includeDepth >= max {
					return Event{}, NewTemplateError(
						fmt.Errorf("include of %q exceeds depth limit %d; circular include?", href, max),
						t.filename, ev.Pos)
				}
				included, err := loader.Load(href)
				if err != nil {
					return Event{}, NewTemplateError(err, t.filename, ev.Pos)
				}
				ctx.includeDepth++
				inner = included.Generate(ctx)
			}
		})
	}
}
