package label

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Parse builds a Document from raw label bytes. systemID is the
// absolute URI the label was read from; it attributes problems and
// anchors relative references.
func Parse(data []byte, systemID string) (*Document, error) {
	doc := &Document{SystemID: systemID}
	lines := lineOffsets(data)

	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*Node
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing label %s: %w", systemID, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Name:  t.Name,
				Attrs: append([]xml.Attr(nil), t.Attr...),
				Line:  lineAt(lines, start),
			}
			if len(stack) == 0 {
				if doc.Root != nil {
					return nil, fmt.Errorf("parsing label %s: multiple root elements", systemID)
				}
				doc.Root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		case xml.ProcInst:
			if t.Target == "xml-model" && doc.Root == nil {
				doc.models = append(doc.models, parseModelPI(string(t.Inst)))
			}
		}
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("parsing label %s: no root element", systemID)
	}
	return doc, nil
}

// parseModelPI extracts the href and schematypens pseudo-attributes
// from an xml-model processing instruction body.
func parseModelPI(inst string) modelPI {
	return modelPI{
		href:         pseudoAttr(inst, "href"),
		schemaTypens: pseudoAttr(inst, "schematypens"),
	}
}

func pseudoAttr(inst, name string) string {
	for _, quote := range []string{`"`, `'`} {
		marker := name + "=" + quote
		idx := strings.Index(inst, marker)
		if idx < 0 {
			continue
		}
		rest := inst[idx+len(marker):]
		if end := strings.Index(rest, quote); end >= 0 {
			return rest[:end]
		}
	}
	return ""
}

// lineOffsets returns the byte offset of the start of each line.
func lineOffsets(data []byte) []int64 {
	offsets := []int64{0}
	for i, b := range data {
		if b == '\n' {
			offsets = append(offsets, int64(i)+1)
		}
	}
	return offsets
}

// lineAt maps a byte offset to a 1-based line number.
func lineAt(offsets []int64, off int64) int {
	return sort.Search(len(offsets), func(i int) bool {
		return offsets[i] > off
	})
}
