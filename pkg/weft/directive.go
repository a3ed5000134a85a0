package weft

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Directive is a transform declaratively attached to the subtree of the
// element carrying it. Directives are constructed once at parse time
// from the attribute value and are immutable afterwards, except for the
// one-shot body capture performed by def and match.
//
// Apply receives a stream positioned so that the element's own open
// event is the first item, and returns the replacement stream. Lazy
// directives defer expression evaluation to the first pull so failures
// surface at the point the output is actually demanded.
type Directive interface {
	Apply(stream Stream, ctx *Context) Stream
}

// DirectiveConstructor builds a directive from its attribute value.
// The template is passed so that directives can register runtime
// filters during parsing.
type DirectiveConstructor func(t *Template, value string, pos Position) (Directive, error)

// builtinDirectives lists the eight built-in directives in canonical
// priority order, highest first. The parser sorts an element's
// directives into this order; the execution engine applies them in the
// exact reverse, so strip wraps innermost and def outermost. The two
// orders are deliberately inverses of each other: swapping either one
// changes which directive gates which on elements carrying several.
var builtinDirectives = []struct {
	name      string
	construct DirectiveConstructor
}{
	{"def", newDefDirective},
	{"match", newMatchDirective},
	{"for", newForDirective},
	{"if", newIfDirective},
	{"replace", newReplaceDirective},
	{"content", newContentDirective},
	{"attrs", newAttrsDirective},
	{"strip", newStripDirective},
}

func directiveRank(name string) (int, DirectiveConstructor, bool) {
	for i, d := range builtinDirectives {
		if d.name == name {
			return i, d.construct, true
		}
	}
	return 0, nil, false
}

// rankedDirective pairs a parsed directive with its canonical priority
// for parse-time sorting.
type rankedDirective struct {
	rank      int
	directive Directive
}

func sortDirectives(dirs []rankedDirective) []Directive {
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].rank < dirs[j].rank })
	out := make([]Directive, len(dirs))
	for i, d := range dirs {
		out[i] = d.directive
	}
	return out
}

// attrsDirective merges an evaluated mapping or pair list into the
// element's attributes. A nil value for a key removes that attribute;
// any other value is stringified and trimmed. A falsy expression leaves
// the attributes untouched.
type attrsDirective struct {
	expr *Expression
}

func newAttrsDirective(_ *Template, value string, _ Position) (Directive, error) {
	expr, err := NewExpression(value)
	if err != nil {
		return nil, err
	}
	return &attrsDirective{expr: expr}, nil
}

func (d *attrsDirective) Apply(s Stream, ctx *Context) Stream {
	return deferred(func() (Stream, error) {
		open, err := s.Next()
		if err != nil {
			return nil, err
		}
		v, err := d.expr.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		if isTruthy(v) {
			pairs, err := attrPairs(v)
			if err != nil {
				return nil, err
			}
			attrs := open.Attrs
			for _, p := range pairs {
				name := QName{Local: p.name}
				if p.value == nil {
					attrs = attrs.Remove(name)
				} else {
					attrs = attrs.Set(name, strings.TrimSpace(formatValue(p.value)))
				}
			}
			open.Attrs = attrs
		}
		return prepend(open, s), nil
	})
}

type attrPair struct {
	name  string
	value any
}

// attrPairs normalizes an attrs value into an ordered pair list. A pair
// list keeps its given order; a map is applied in sorted key order so
// output is deterministic.
func attrPairs(v any) ([]attrPair, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]attrPair, len(keys))
		for i, k := range keys {
			out[i] = attrPair{name: k, value: val[k]}
		}
		return out, nil
	case []any:
		out := make([]attrPair, 0, len(val))
		for _, item := range val {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("attrs pair list items must be [name, value] pairs, got %T", item)
			}
			name, ok := pair[0].(string)
			if !ok {
				return nil, fmt.Errorf("attrs pair name must be a string, got %T", pair[0])
			}
			out = append(out, attrPair{name: name, value: pair[1]})
		}
		return out, nil
	}
	return nil, fmt.Errorf("attrs value must be a mapping or pair list, got %T", v)
}

// contentDirective replaces the element's content with the expression
// result, keeping the wrapping element itself.
type contentDirective struct {
	expr *Expression
}

func newContentDirective(_ *Template, value string, _ Position) (Directive, error) {
	expr, err := NewExpression(value)
	if err != nil {
		return nil, err
	}
	return &contentDirective{expr: expr}, nil
}

func (d *contentDirective) Apply(s Stream, ctx *Context) Stream {
	return deferred(func() (Stream, error) {
		open, err := s.Next()
		if err != nil {
			return nil, err
		}
		var events []Event
		if open.Kind == KindStart {
			events = append(events, open)
		}
		events = append(events, Event{Kind: KindExpr, Expr: d.expr, Pos: open.Pos})
		// Discard the original content, keeping only the final close.
		var last Event
		have := false
		for {
			ev, err := s.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			last = ev
			have = true
		}
		if have {
			events = append(events, last)
		}
		return newSliceStream(events), nil
	})
}

// defParam is one formal parameter of a template function. Defaults are
// compiled expressions evaluated at call time against the invoking
// context.
type defParam struct {
	name string
	def  *Expression
}

// defDirective binds a named template function into the current scope.
// The function body is the element's full substream, captured once on
// first application and replayed per invocation under a frame mapping
// formal names to the supplied arguments.
type defDirective struct {
	name   string
	params []defParam

	once sync.Once
	body []Event
}

func newDefDirective(_ *Template, value string, _ Position) (Directive, error) {
	d := &defDirective{}
	if err := d.parseSignature(value); err != nil {
		return nil, err
	}
	return d, nil
}

// parseSignature accepts "name" or "name(arg, arg=default, ...)".
func (d *defDirective) parseSignature(value string) error {
	sig := strings.TrimSpace(value)
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		if !isIdentifier(sig) {
			return fmt.Errorf("invalid function name %q", sig)
		}
		d.name = sig
		return nil
	}
	if !strings.HasSuffix(sig, ")") {
		return fmt.Errorf("unclosed parameter list in %q", sig)
	}
	d.name = strings.TrimSpace(sig[:open])
	if !isIdentifier(d.name) {
		return fmt.Errorf("invalid function name %q", d.name)
	}
	inner := strings.TrimSpace(sig[open+1 : len(sig)-1])
	if inner == "" {
		return nil
	}
	for _, raw := range splitTopLevel(inner, ',') {
		part := strings.TrimSpace(raw)
		name := part
		var def *Expression
		if eq := indexTopLevel(part, '='); eq >= 0 {
			name = strings.TrimSpace(part[:eq])
			expr, err := NewExpression(strings.TrimSpace(part[eq+1:]))
			if err != nil {
				return err
			}
			def = expr
		}
		if !isIdentifier(name) {
			return fmt.Errorf("invalid parameter name %q", name)
		}
		d.params = append(d.params, defParam{name: name, def: def})
	}
	return nil
}

func (d *defDirective) Apply(s Stream, ctx *Context) Stream {
	return deferred(func() (Stream, error) {
		var captureErr error
		d.once.Do(func() {
			d.body, captureErr = drain(s)
		})
		if captureErr != nil {
			return nil, captureErr
		}
		ctx.Set(d.name, d.callable(ctx))
		return emptyStream(), nil
	})
}

// callable builds the function value bound under the directive's name.
// The expression language has no keyword-call syntax, so a trailing map
// argument whose keys overlap the formal names is taken as the named
// argument set.
func (d *defDirective) callable(ctx *Context) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		named := map[string]any{}
		if n := len(args); n > 0 {
			if m, ok := args[n-1].(map[string]any); ok && d.matchesParams(m) {
				named = m
				args = args[:n-1]
			}
		}
		frame := make(map[string]any, len(d.params))
		for _, p := range d.params {
			switch {
			case len(args) > 0:
				frame[p.name] = args[0]
				args = args[1:]
			case hasKey(named, p.name):
				frame[p.name] = named[p.name]
			case p.def != nil:
				v, err := p.def.Evaluate(ctx)
				if err != nil {
					return nil, err
				}
				frame[p.name] = v
			default:
				frame[p.name] = nil
			}
		}
		if len(args) > 0 {
			return nil, fmt.Errorf("too many arguments in call to %s", d.name)
		}
		body := d.body
		return newScopedStream(frame, ctx, func() Stream {
			return newSliceStream(body)
		}), nil
	}
}

func (d *defDirective) matchesParams(m map[string]any) bool {
	for _, p := range d.params {
		if hasKey(m, p.name) {
			return true
		}
	}
	return false
}

func hasKey(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}

// forDirective repeats its substream once per item of the evaluated
// iterable, each pass under a fresh frame binding the loop targets. An
// undefined iterable produces no output at all.
type forDirective struct {
	targets []string
	expr    *Expression
}

func newForDirective(_ *Template, value string, _ Position) (Directive, error) {
	targets, source, ok := strings.Cut(value, " in ")
	if !ok {
		return nil, fmt.Errorf("loop directive %q is missing the 'in' keyword", value)
	}
	d := &forDirective{}
	for _, name := range strings.Split(targets, ",") {
		name = strings.TrimSpace(name)
		if !isIdentifier(name) {
			return nil, fmt.Errorf("invalid loop target %q", name)
		}
		d.targets = append(d.targets, name)
	}
	expr, err := NewExpression(strings.TrimSpace(source))
	if err != nil {
		return nil, err
	}
	d.expr = expr
	return d, nil
}

func (d *forDirective) Apply(s Stream, ctx *Context) Stream {
	return deferred(func() (Stream, error) {
		v, err := d.expr.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return emptyStream(), nil
		}
		items, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("cannot iterate over %T value", v)
		}
		body, err := drain(s)
		if err != nil {
			return nil, err
		}
		idx := 0
		var current Stream
		return StreamFunc(func() (Event, error) {
			for {
				if current == nil {
					if idx >= len(items) {
						return Event{}, io.EOF
					}
					frame, err := d.bind(items[idx])
					if err != nil {
						return Event{}, err
					}
					idx++
					current = newScopedStream(frame, ctx, func() Stream {
						return newSliceStream(body)
					})
				}
				ev, err := current.Next()
				if err == io.EOF {
					current = nil
					continue
				}
				if err != nil {
					return Event{}, err
				}
				return ev, nil
			}
		}), nil
	})
}

// bind maps one produced item onto the loop targets. A single target
// binds the whole item; multiple targets destructure it positionally.
func (d *forDirective) bind(item any) (map[string]any, error) {
	frame := make(map[string]any, len(d.targets))
	if len(d.targets) == 1 {
		frame[d.targets[0]] = item
		return frame, nil
	}
	parts, ok := toSlice(item)
	if !ok || len(parts) < len(d.targets) {
		return nil, fmt.Errorf("cannot unpack %T value into %d loop targets", item, len(d.targets))
	}
	for i, name := range d.targets {
		frame[name] = parts[i]
	}
	return frame, nil
}

// ifDirective gates its substream on a truthy expression. The stream is
// passed through lazily when the condition holds; nothing is consumed
// or emitted when it does not.
type ifDirective struct {
	expr *Expression
}

func newIfDirective(_ *Template, value string, _ Position) (Directive, error) {
	expr, err := NewExpression(value)
	if err != nil {
		return nil, err
	}
	return &ifDirective{expr: expr}, nil
}

func (d *ifDirective) Apply(s Stream, ctx *Context) Stream {
	return deferred(func() (Stream, error) {
		v, err := d.expr.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		if isTruthy(v) {
			return s, nil
		}
		return emptyStream(), nil
	})
}

// matchDirective registers a structural pattern with the template's
// runtime filter list at parse time. Its body is captured once on first
// application and replayed in place of every output subtree the pattern
// matches; the definition site itself produces no output.
type matchDirective struct {
	path     *Path
	template *Template

	once sync.Once
	body []Event
}

func newMatchDirective(t *Template, value string, _ Position) (Directive, error) {
	path, err := ParsePath(value)
	if err != nil {
		return nil, err
	}
	d := &matchDirective{path: path, template: t}
	t.filters = append(t.filters, d.filter)
	return d, nil
}

func (d *matchDirective) Apply(s Stream, _ *Context) Stream {
	return deferred(func() (Stream, error) {
		var captureErr error
		d.once.Do(func() {
			d.body, captureErr = drain(s)
		})
		if captureErr != nil {
			return nil, captureErr
		}
		return emptyStream(), nil
	})
}

// filter is the runtime half of the directive. It watches the output
// stream for an element whose tag and ancestor chain satisfy the
// pattern, consumes that whole subtree, and splices in the replacement
// body instead. The body replay runs under a frame binding select, and
// re-enters the full transform, so replacement content composes with
// further directives and matches.
func (d *matchDirective) filter(s Stream, ctx *Context) Stream {
	var ancestors []pathStep
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
			case KindStart:
				here := pathStep{tag: ev.Tag, attrs: ev.Attrs}
				if d.path.Matches(ancestors, here) {
					matched, err := collectSubtree(ev, s)
					if err != nil {
						return Event{}, err
					}
					inner = d.replace(matched, ctx)
					continue
				}
				ancestors = append(ancestors, here)
			case KindEnd:
				if len(ancestors) > 0 {
					ancestors = ancestors[:len(ancestors)-1]
				}
			}
			return ev, nil
		}
	})
}

func (d *matchDirective) replace(matched []Event, ctx *Context) Stream {
	frame := map[string]any{
		"select": func(pattern string) (any, error) {
			return Select(matched, pattern)
		},
	}
	body := d.body
	t := d.template
	return newScopedStream(frame, ctx, func() Stream {
		return t.transform(newSliceStream(body), ctx)
	})
}

// collectSubtree buffers a full open..close subtree, the open event
// included, by depth counting.
func collectSubtree(open Event, s Stream) ([]Event, error) {
	events := []Event{open}
	depth := 1
	for depth > 0 {
		ev, err := s.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("unexpected end of stream inside <%s>", open.Tag)
		}
		if err != nil {
			return nil, err
		}
		switch ev.Kind {
		case KindStart:
			depth++
		case KindEnd:
			depth--
		}
		events = append(events, ev)
	}
	return events, nil
}

// replaceDirective substitutes the whole element, content and tags
// included, with a single expression result.
type replaceDirective struct {
	expr *Expression
}

func newReplaceDirective(_ *Template, value string, _ Position) (Directive, error) {
	expr, err := NewExpression(value)
	if err != nil {
		return nil, err
	}
	return &replaceDirective{expr: expr}, nil
}

func (d *replaceDirective) Apply(s Stream, _ *Context) Stream {
	return deferred(func() (Stream, error) {
		open, err := s.Next()
		if err != nil {
			return nil, err
		}
		return newSliceStream([]Event{
			{Kind: KindExpr, Expr: d.expr, Pos: open.Pos},
		}), nil
	})
}

// stripDirective unwraps the element when its expression is truthy,
// dropping the open and close tags but keeping everything in between.
// An empty directive value means always strip.
type stripDirective struct {
	expr *Expression
}

func newStripDirective(_ *Template, value string, _ Position) (Directive, error) {
	d := &stripDirective{}
	if strings.TrimSpace(value) != "" {
		expr, err := NewExpression(value)
		if err != nil {
			return nil, err
		}
		d.expr = expr
	}
	return d, nil
}

func (d *stripDirective) Apply(s Stream, ctx *Context) Stream {
	return deferred(func() (Stream, error) {
		strip := true
		if d.expr != nil {
			v, err := d.expr.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			strip = isTruthy(v)
		}
		if !strip {
			return s, nil
		}
		if _, err := s.Next(); err != nil {
			if err == io.EOF {
				return emptyStream(), nil
			}
			return nil, err
		}
		// Hold one event back so the final close tag is dropped too.
		var pending *Event
		return StreamFunc(func() (Event, error) {
			for {
				ev, err := s.Next()
				if err == io.EOF {
					return Event{}, io.EOF
				}
				if err != nil {
					return Event{}, err
				}
				if pending == nil {
					held := ev
					pending = &held
					continue
				}
				out := *pending
				held := ev
				pending = &held
				return out, nil
			}
		}), nil
	})
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

// splitTopLevel splits on sep, ignoring occurrences nested inside
// brackets or string literals, for parameter list parsing.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	start := 0
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func indexTopLevel(s string, sep byte) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			return i
		}
	}
	return -1
}
