package weft

import (
	"fmt"
	"strings"
)

// Path is a compiled structural pattern: child ("/") and descendant
// ("//") tag-name steps with optional attribute tests, matched against
// an element and its ancestor chain. The vocabulary is deliberately
// restricted:
//
//	greeting            any element named greeting, at any depth
//	div/greeting        a greeting whose parent is a div
//	div//greeting       a greeting anywhere below a div
//	*[@name]            any element carrying a name attribute
//	a[@href='#top']     an a element with that exact href
//
// A leading "/" anchors the first step to the document root; patterns
// without one are relative and match at any depth.
type Path struct {
	source string
	steps  []pathPattern
}

// pathPattern is one step of a path. The descendant flag records the
// separator preceding the step: true for "//" (or a relative first
// step), false for "/".
type pathPattern struct {
	tag        string
	descendant bool
	tests      []attrTest
}

type attrTest struct {
	attr     string
	value    string
	hasValue bool
}

// pathStep is one element on the candidate chain being matched: an open
// tag plus its attributes.
type pathStep struct {
	tag   QName
	attrs Attributes
}

// ParsePath compiles a pattern string.
func ParsePath(source string) (*Path, error) {
	s := strings.TrimSpace(source)
	if s == "" {
		return nil, fmt.Errorf("empty match pattern")
	}
	p := &Path{source: s}
	rest := s
	first := true
	for rest != "" {
		descendant := first
		switch {
		case strings.HasPrefix(rest, "//"):
			descendant = true
			rest = rest[2:]
		case strings.HasPrefix(rest, "/"):
			descendant = false
			rest = rest[1:]
		}
		step, remainder, err := parsePathStep(rest, s)
		if err != nil {
			return nil, err
		}
		step.descendant = descendant
		p.steps = append(p.steps, step)
		rest = remainder
		first = false
	}
	return p, nil
}

func parsePathStep(rest, source string) (pathPattern, string, error) {
	var step pathPattern
	i := 0
	for i < len(rest) && rest[i] != '/' && rest[i] != '[' {
		i++
	}
	step.tag = rest[:i]
	if step.tag == "" {
		return step, "", fmt.Errorf("match pattern %q has an empty step", source)
	}
	rest = rest[i:]
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return step, "", fmt.Errorf("match pattern %q has an unclosed predicate", source)
		}
		test, err := parseAttrTest(rest[1:end], source)
		if err != nil {
			return step, "", err
		}
		step.tests = append(step.tests, test)
		rest = rest[end+1:]
	}
	return step, rest, nil
}

func parseAttrTest(inner, source string) (attrTest, error) {
	var test attrTest
	inner = strings.TrimSpace(inner)
	if !strings.HasPrefix(inner, "@") {
		return test, fmt.Errorf("match pattern %q: predicate %q must test an attribute", source, inner)
	}
	inner = inner[1:]
	if eq := strings.IndexByte(inner, '='); eq >= 0 {
		test.attr = strings.TrimSpace(inner[:eq])
		value := strings.TrimSpace(inner[eq+1:])
		if len(value) < 2 || value[0] != value[len(value)-1] || (value[0] != '\'' && value[0] != '"') {
			return test, fmt.Errorf("match pattern %q: predicate value %s must be quoted", source, value)
		}
		test.value = value[1 : len(value)-1]
		test.hasValue = true
	} else {
		test.attr = strings.TrimSpace(inner)
	}
	if test.attr == "" {
		return test, fmt.Errorf("match pattern %q has an empty attribute test", source)
	}
	return test, nil
}

func (p *Path) String() string { return p.source }

// Matches reports whether an element with the given open ancestor chain
// satisfies the pattern.
func (p *Path) Matches(ancestors []pathStep, elem pathStep) bool {
	chain := make([]pathStep, 0, len(ancestors)+1)
	chain = append(chain, ancestors...)
	chain = append(chain, elem)
	return matchTail(p.steps, chain)
}

// matchTail matches the final step against the final chain element and
// recurses upward, backtracking over ancestor choices for descendant
// steps.
func matchTail(steps []pathPattern, chain []pathStep) bool {
	step := steps[len(steps)-1]
	if !step.matchElem(chain[len(chain)-1]) {
		return false
	}
	rest := steps[:len(steps)-1]
	parents := chain[:len(chain)-1]
	if len(rest) == 0 {
		if step.descendant {
			return true
		}
		return len(parents) == 0
	}
	if step.descendant {
		for k := len(parents); k >= 1; k-- {
			if matchTail(rest, parents[:k]) {
				return true
			}
		}
		return false
	}
	if len(parents) == 0 {
		return false
	}
	return matchTail(rest, parents)
}

func (s pathPattern) matchElem(elem pathStep) bool {
	if s.tag != "*" && s.tag != elem.tag.Local {
		return false
	}
	for _, test := range s.tests {
		value, ok := elem.attrs.Get(test.attr)
		if !ok {
			return false
		}
		if test.hasValue && value != test.value {
			return false
		}
	}
	return true
}

// Select queries a buffered subtree, rooted at its first event. Three
// query forms are supported: "@name" yields the root's attribute value,
// "text()" yields the concatenated character data of the whole subtree,
// and any path pattern yields a stream of the matching descendant
// subtrees.
func Select(events []Event, pattern string) (any, error) {
	pattern = strings.TrimSpace(pattern)
	if len(events) == 0 {
		return nil, nil
	}
	if strings.HasPrefix(pattern, "@") {
		name := pattern[1:]
		if events[0].Kind != KindStart {
			return nil, nil
		}
		if value, ok := events[0].Attrs.Get(name); ok {
			return value, nil
		}
		return nil, nil
	}
	if pattern == "text()" {
		var b strings.Builder
		for _, ev := range events {
			if ev.Kind == KindText {
				b.WriteString(ev.Text)
			}
		}
		return b.String(), nil
	}
	path, err := ParsePath(pattern)
	if err != nil {
		return nil, err
	}
	return newSliceStream(selectSubtrees(events, path)), nil
}

// selectSubtrees collects every subtree inside the root whose open
// event matches the path, the root's own children included.
func selectSubtrees(events []Event, path *Path) []Event {
	var out []Event
	var stack []pathStep
	skip := 0
	body := events
	if len(body) > 0 && body[0].Kind == KindStart {
		body = body[1 : len(body)-1]
	}
	for i := 0; i < len(body); i++ {
		ev := body[i]
		switch ev.Kind {
		case KindStart:
			if skip > 0 {
				skip++
				out = append(out, ev)
				continue
			}
			here := pathStep{tag: ev.Tag, attrs: ev.Attrs}
			if path.Matches(stack, here) {
				skip = 1
				out = append(out, ev)
				continue
			}
			stack = append(stack, here)
		case KindEnd:
			if skip > 0 {
				skip--
				out = append(out, ev)
				continue
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			if skip > 0 {
				out = append(out, ev)
			}
		}
	}
	return out
}
