package weft

import (
	"fmt"
	"io"
	"strings"
)

// Serialize writes an output event stream back out as markup text.
// Namespace prefixes are resolved from the namespace events in the
// stream; elements with no content are collapsed to the empty-element
// form via one event of lookahead. Unevaluated EXPR or SUB events in
// the stream indicate the caller skipped generation and are an error.
func Serialize(w io.Writer, s Stream) error {
	ser := &serializer{w: w, prefixes: []map[string]string{{}}}
	for {
		ev, err := s.Next()
		if err == io.EOF {
			return ser.flush()
		}
		if err != nil {
			return err
		}
		if err := ser.write(ev); err != nil {
			return err
		}
	}
}

type serializer struct {
	w io.Writer

	// prefixes maps URI to prefix, one scope per open element.
	prefixes []map[string]string
	declared []NSBinding
	pending  *Event
}

func (ser *serializer) write(ev Event) error {
	switch ev.Kind {
	case KindStartNS:
		if err := ser.flush(); err != nil {
			return err
		}
		ser.declared = append(ser.declared, ev.NS)
		return nil
	case KindEndNS:
		return nil
	case KindEnd:
		if ser.pending != nil && ser.pending.Tag == ev.Tag {
			pending := *ser.pending
			ser.pending = nil
			err := ser.writeTag(pending, true)
			ser.popScope()
			return err
		}
		if err := ser.flush(); err != nil {
			return err
		}
		name := ser.qualify(ev.Tag)
		ser.popScope()
		_, err := fmt.Fprintf(ser.w, "</%s>", name)
		return err
	}
	if err := ser.flush(); err != nil {
		return err
	}
	switch ev.Kind {
	case KindStart:
		ser.pushScope()
		pending := ev
		ser.pending = &pending
		return nil
	case KindText:
		_, err := io.WriteString(ser.w, escapeText(ev.Text))
		return err
	case KindComment:
		_, err := fmt.Fprintf(ser.w, "<!--%s-->", ev.Text)
		return err
	case KindPI:
		_, err := fmt.Fprintf(ser.w, "<?%s %s?>", ev.Target, ev.Text)
		return err
	case KindDoctype:
		_, err := fmt.Fprintf(ser.w, "<!%s>", ev.Text)
		return err
	case KindExpr:
		return fmt.Errorf("unevaluated expression %q in output stream", ev.Expr.Source)
	case KindSub:
		return fmt.Errorf("unexpanded directive subtree in output stream")
	}
	return nil
}

// flush emits a held-back open tag once it is known the element has
// content.
func (ser *serializer) flush() error {
	if ser.pending == nil {
		return nil
	}
	pending := *ser.pending
	ser.pending = nil
	return ser.writeTag(pending, false)
}

func (ser *serializer) writeTag(ev Event, empty bool) error {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(ser.qualify(ev.Tag))
	for _, attr := range ev.Attrs {
		b.WriteByte(' ')
		b.WriteString(ser.qualify(attr.Name))
		b.WriteString(`="`)
		b.WriteString(escapeAttr(attr.Value))
		b.WriteByte('"')
	}
	for _, ns := range ser.takeDeclared() {
		b.WriteByte(' ')
		if ns.Prefix == "" {
			b.WriteString(`xmlns="`)
		} else {
			b.WriteString("xmlns:")
			b.WriteString(ns.Prefix)
			b.WriteString(`="`)
		}
		b.WriteString(escapeAttr(ns.URI))
		b.WriteByte('"')
	}
	if empty {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	_, err := io.WriteString(ser.w, b.String())
	return err
}

func (ser *serializer) pushScope() {
	scope := make(map[string]string, len(ser.declared))
	for _, ns := range ser.declared {
		scope[ns.URI] = ns.Prefix
	}
	ser.prefixes = append(ser.prefixes, scope)
}

func (ser *serializer) popScope() {
	if len(ser.prefixes) > 1 {
		ser.prefixes = ser.prefixes[:len(ser.prefixes)-1]
	}
}

func (ser *serializer) takeDeclared() []NSBinding {
	declared := ser.declared
	ser.declared = nil
	return declared
}

// qualify resolves a qualified name to its prefixed source form. A name
// whose namespace has no known prefix, or is bound to the default
// namespace, is written with its bare local name.
func (ser *serializer) qualify(name QName) string {
	if name.Space == "" {
		return name.Local
	}
	for i := len(ser.prefixes) - 1; i >= 0; i-- {
		if prefix, ok := ser.prefixes[i][name.Space]; ok {
			if prefix == "" {
				return name.Local
			}
			return prefix + ":" + name.Local
		}
	}
	return name.Local
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
