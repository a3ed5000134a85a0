package weft

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
)

// parseMarkup tokenizes raw markup into a positioned event sequence.
// Namespace declarations are lifted out of attribute lists and
// synthesized as KindStartNS events before the element's open event,
// with matching KindEndNS events after its close. Attribute source
// order is preserved.
func parseMarkup(source []byte, filename string) ([]Event, error) {
	index := indexLines(source)
	decoder := xml.NewDecoder(bytes.NewReader(source))

	var events []Event
	var declared [][]NSBinding
	for {
		offset := decoder.InputOffset()
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewSyntaxError(err, filename, index.position(decoder.InputOffset()))
		}
		pos := index.position(offset)
		switch t := tok.(type) {
		case xml.StartElement:
			var decls []NSBinding
			var attrs Attributes
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					decls = append(decls, NSBinding{Prefix: a.Name.Local, URI: a.Value})
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					decls = append(decls, NSBinding{URI: a.Value})
				default:
					attrs = append(attrs, Attribute{
						Name:  QName{Space: a.Name.Space, Local: a.Name.Local},
						Value: a.Value,
					})
				}
			}
			for _, d := range decls {
				events = append(events, Event{Kind: KindStartNS, NS: d, Pos: pos})
			}
			declared = append(declared, decls)
			events = append(events, Event{
				Kind:  KindStart,
				Tag:   QName{Space: t.Name.Space, Local: t.Name.Local},
				Attrs: attrs,
				Pos:   pos,
			})
		case xml.EndElement:
			events = append(events, Event{
				Kind: KindEnd,
				Tag:  QName{Space: t.Name.Space, Local: t.Name.Local},
				Pos:  pos,
			})
			if n := len(declared); n > 0 {
				decls := declared[n-1]
				declared = declared[:n-1]
				for i := len(decls) - 1; i >= 0; i-- {
					events = append(events, Event{
						Kind: KindEndNS,
						NS:   NSBinding{Prefix: decls[i].Prefix},
						Pos:  pos,
					})
				}
			}
		case xml.CharData:
			events = append(events, Event{Kind: KindText, Text: string(t), Pos: pos})
		case xml.Comment:
			events = append(events, Event{Kind: KindComment, Text: string(t), Pos: pos})
		case xml.ProcInst:
			events = append(events, Event{Kind: KindPI, Target: t.Target, Text: string(t.Inst), Pos: pos})
		case xml.Directive:
			events = append(events, Event{Kind: KindDoctype, Text: string(t), Pos: pos})
		}
	}
	return events, nil
}

// sourceIndex maps byte offsets to line/column positions.
type sourceIndex struct {
	starts []int
}

func indexLines(source []byte) *sourceIndex {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &sourceIndex{starts: starts}
}

func (x *sourceIndex) position(offset int64) Position {
	off := int(offset)
	line := sort.Search(len(x.starts), func(i int) bool {
		return x.starts[i] > off
	})
	return Position{Line: line, Column: off - x.starts[line-1] + 1}
}
