package weft

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a stream event.
type Kind int

const (
	// KindStart is the opening tag of an element.
	KindStart Kind = iota
	// KindEnd is the closing tag of an element.
	KindEnd
	// KindText is character data.
	KindText
	// KindStartNS declares a namespace prefix binding.
	KindStartNS
	// KindEndNS ends a namespace prefix binding.
	KindEndNS
	// KindComment is a markup comment.
	KindComment
	// KindPI is a processing instruction.
	KindPI
	// KindDoctype is a document type declaration.
	KindDoctype
	// KindExpr carries a compiled expression to be evaluated during
	// generation. Produced only by the template compiler.
	KindExpr
	// KindSub carries a subprogram: a directive list plus the buffered
	// events the directives apply to. Produced only by the template
	// compiler.
	KindSub
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "START"
	case KindEnd:
		return "END"
	case KindText:
		return "TEXT"
	case KindStartNS:
		return "START-NS"
	case KindEndNS:
		return "END-NS"
	case KindComment:
		return "COMMENT"
	case KindPI:
		return "PI"
	case KindDoctype:
		return "DOCTYPE"
	case KindExpr:
		return "EXPR"
	case KindSub:
		return "SUB"
	default:
		return "UNKNOWN"
	}
}

// Position is a line/column pair pointing into the original template
// source. It is propagated verbatim from the markup parser and never
// recomputed.
type Position struct {
	Line   int
	Column int
}

// QName is a namespace-qualified name. Space holds the namespace URI,
// not the prefix; prefixes are tracked separately via namespace events.
type QName struct {
	Space string
	Local string
}

func (n QName) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// ValuePart is one fragment of an interpolated attribute value: either
// literal text or a compiled expression.
type ValuePart struct {
	Text string
	Expr *Expression
}

// Attribute is a single element attribute. After compilation, values
// containing interpolated expressions carry a Parts list; plain values
// keep only Value.
type Attribute struct {
	Name  QName
	Value string
	Parts []ValuePart
}

// Attributes is an ordered attribute collection. Source order is
// preserved; mutating operations return a new collection.
type Attributes []Attribute

// Get returns the value of the first attribute with the given local
// name.
func (a Attributes) Get(local string) (string, bool) {
	for _, attr := range a {
		if attr.Name.Local == local {
			return attr.Value, true
		}
	}
	return "", false
}

// Set returns a copy with the named attribute replaced in place, or
// appended if not present.
func (a Attributes) Set(name QName, value string) Attributes {
	out := make(Attributes, len(a))
	copy(out, a)
	for i, attr := range out {
		if attr.Name == name {
			out[i] = Attribute{Name: name, Value: value}
			return out
		}
	}
	return append(out, Attribute{Name: name, Value: value})
}

// Remove returns a copy with the named attribute removed.
func (a Attributes) Remove(name QName) Attributes {
	out := make(Attributes, 0, len(a))
	for _, attr := range a {
		if attr.Name != name {
			out = append(out, attr)
		}
	}
	return out
}

// NSBinding is a namespace prefix binding carried by KindStartNS and
// KindEndNS events. End events use only the prefix.
type NSBinding struct {
	Prefix string
	URI    string
}

// Sub is the payload of a KindSub event: the directives attached to an
// element, in canonical priority order, and the buffered events of its
// whole subtree (open through close, inclusive).
type Sub struct {
	Directives []Directive
	Events     []Event
}

// Event is one item of a template stream. The Kind selects which
// payload fields are meaningful. Events are treated as immutable:
// transforms produce new events rather than mutating existing ones.
type Event struct {
	Kind   Kind
	Pos    Position
	Tag    QName      // KindStart, KindEnd
	Attrs  Attributes // KindStart
	Text   string     // KindText, KindComment, KindDoctype, PI data
	Target string     // KindPI
	NS     NSBinding  // KindStartNS, KindEndNS
	Expr   *Expression
	Sub    *Sub
}

func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch e.Kind {
	case KindStart, KindEnd:
		fmt.Fprintf(&b, "(%s)", e.Tag)
	case KindText:
		fmt.Fprintf(&b, "(%q)", e.Text)
	case KindExpr:
		fmt.Fprintf(&b, "(%s)", e.Expr.Source)
	case KindSub:
		fmt.Fprintf(&b, "(%d directives, %d events)", len(e.Sub.Directives), len(e.Sub.Events))
	}
	return b.String()
}
