package weft

import (
	"io"
	"strings"
)

// NamespaceURI is the namespace that marks template directive
// attributes. Declarations of this namespace are absorbed during
// parsing and never reach the output.
const NamespaceURI = "http://purl.org/kid/ns#"

// xincludeNamespace marks include elements, handled at generation time
// by a loader-bound pre-filter.
const xincludeNamespace = "http://www.w3.org/2001/XInclude"

// Filter transforms one event stream into another. Filters consume
// lazily and must produce lazily; nothing upstream runs until the
// filter's output is pulled.
type Filter func(Stream, *Context) Stream

// Template is a compiled template document: the intermediate event
// sequence produced by the single-pass compiler, plus the three filter
// chains generation runs through. The compiled stream is immutable
// once parsing completes and is safe to generate from concurrently,
// each generation with its own Context.
type Template struct {
	filename string
	stream   []Event

	preFilters  []Filter
	filters     []Filter
	postFilters []Filter
}

// NewTemplate parses template source into a compiled template. The
// filename is used only for error reporting.
func NewTemplate(source []byte, filename string) (*Template, error) {
	events, err := parseMarkup(source, filename)
	if err != nil {
		return nil, err
	}
	return NewTemplateFrom(events, filename)
}

// NewTemplateString parses template source given as a string.
func NewTemplateString(source string) (*Template, error) {
	return NewTemplate([]byte(source), "<string>")
}

// NewTemplateFrom compiles an already tokenized event sequence.
func NewTemplateFrom(events []Event, filename string) (*Template, error) {
	t := &Template{filename: filename}
	t.preFilters = []Filter{t.evalFilter}
	t.postFilters = []Filter{WhitespaceFilter()}
	if err := t.compile(events); err != nil {
		return nil, err
	}
	return t, nil
}

// Filename returns the name the template was parsed under.
func (t *Template) Filename() string { return t.filename }

type pendingKey struct {
	depth int
	tag   QName
}

type pendingScope struct {
	directives []Directive
	offset     int
}

// compile is the single forward pass that turns raw markup events into
// the intermediate representation. It partitions directive attributes
// off of open tags, interpolates text and attribute values, absorbs the
// directive namespace, and collapses each directive-carrying element's
// open..close slice into one SUB event. A depth counter plus a pending
// map keyed by (depth, tag) is all the bookkeeping required: closes
// arrive innermost-first, so nested scopes always collapse before their
// ancestor's close is reached and SUB nodes nest correctly.
func (t *Template) compile(events []Event) error {
	var out []Event
	depth := 0
	pending := make(map[pendingKey]pendingScope)
	prefixes := make(map[string][]string)

	for _, ev := range events {
		switch ev.Kind {
		case KindStartNS:
			prefixes[ev.NS.Prefix] = append(prefixes[ev.NS.Prefix], ev.NS.URI)
			if ev.NS.URI == NamespaceURI {
				continue
			}
			out = append(out, ev)

		case KindEndNS:
			stack := prefixes[ev.NS.Prefix]
			uri := ""
			if n := len(stack); n > 0 {
				uri = stack[n-1]
				prefixes[ev.NS.Prefix] = stack[:n-1]
			}
			if uri == NamespaceURI {
				continue
			}
			out = append(out, ev)

		case KindStart:
			var ordinary Attributes
			var dirs []rankedDirective
			for _, attr := range ev.Attrs {
				if attr.Name.Space == NamespaceURI {
					rank, construct, ok := directiveRank(attr.Name.Local)
					if !ok {
						return NewBadDirectiveError(attr.Name.Local, t.filename, ev.Pos.Line)
					}
					d, err := construct(t, attr.Value, ev.Pos)
					if err != nil {
						return NewSyntaxError(err, t.filename, ev.Pos)
					}
					dirs = append(dirs, rankedDirective{rank: rank, directive: d})
					continue
				}
				value, parts, err := interpolateValue(attr.Value)
				if err != nil {
					return NewSyntaxError(err, t.filename, ev.Pos)
				}
				ordinary = append(ordinary, Attribute{Name: attr.Name, Value: value, Parts: parts})
			}
			if len(dirs) > 0 {
				pending[pendingKey{depth: depth, tag: ev.Tag}] = pendingScope{
					directives: sortDirectives(dirs),
					offset:     len(out),
				}
			}
			open := ev
			open.Attrs = ordinary
			out = append(out, open)
			depth++

		case KindEnd:
			depth--
			out = append(out, ev)
			key := pendingKey{depth: depth, tag: ev.Tag}
			if scope, ok := pending[key]; ok {
				delete(pending, key)
				sub := make([]Event, len(out)-scope.offset)
				copy(sub, out[scope.offset:])
				out = append(out[:scope.offset], Event{
					Kind: KindSub,
					Pos:  ev.Pos,
					Sub:  &Sub{Directives: scope.directives, Events: sub},
				})
			}

		case KindText:
			fragments, err := interpolate(ev.Text, ev.Pos)
			if err != nil {
				return NewSyntaxError(err, t.filename, ev.Pos)
			}
			out = append(out, fragments...)

		default:
			out = append(out, ev)
		}
	}
	t.stream = out
	return nil
}

// Generate transforms the template against the given context data,
// returning the lazily produced output stream. Consuming one output
// event pulls at most the events needed to produce it through the
// filter chain and directive stack.
func (t *Template) Generate(ctx *Context) Stream {
	s := t.transform(newSliceStream(t.stream), ctx)
	for _, f := range t.postFilters {
		s = f(s, ctx)
	}
	return s
}

// transform runs one level of the recursive engine: pre-filters, then
// the registered runtime filters, then SUB expansion. Match replacement
// bodies and expanded substreams re-enter through here, so each level
// of expansion sees the full filter chain again.
func (t *Template) transform(s Stream, ctx *Context) Stream {
	for _, f := range t.preFilters {
		s = f(s, ctx)
	}
	for _, f := range t.filters {
		s = f(s, ctx)
	}
	return t.expand(s, ctx)
}

// expand resolves SUB events: the attached directives are applied in
// reverse of their canonical priority order, each wrapping the previous
// result, and the wrapped stream is recursively transformed before its
// output is spliced in place of the SUB node. Evaluation failures are
// rewrapped with the template filename and the position of the event
// being processed when they surface.
func (t *Template) expand(s Stream, ctx *Context) Stream {
	var inner Stream
	var pos Position
	return StreamFunc(func() (Event, error) {
		for {
			if inner != nil {
				ev, err := inner.Next()
				if err == io.EOF {
					inner = nil
					continue
				}
				if err != nil {
					return Event{}, NewTemplateError(err, t.filename, pos)
				}
				return ev, nil
			}
			ev, err := s.Next()
			if err == io.EOF {
				return Event{}, io.EOF
			}
			if err != nil {
				return Event{}, NewTemplateError(err, t.filename, pos)
			}
			pos = ev.Pos
			if ev.Kind == KindSub {
				body := Stream(newSliceStream(ev.Sub.Events))
				for i := len(ev.Sub.Directives) - 1; i >= 0; i-- {
					body = ev.Sub.Directives[i].Apply(body, ctx)
				}
				inner = t.transform(body, ctx)
				continue
			}
			return ev, nil
		}
	})
}

// Render generates against the given data and serializes the output to
// markup text.
func (t *Template) Render(data map[string]any) (string, error) {
	var b strings.Builder
	if err := Serialize(&b, t.Generate(NewContext(data))); err != nil {
		return "", err
	}
	return b.String(), nil
}
