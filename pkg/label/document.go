package label

import (
	"encoding/xml"
	"strings"
)

const (
	xmlNamespace = "http://www.w3.org/XML/1998/namespace"
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
)

// Node is one element of a parsed label, with the source line it
// started on.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Text     string
	Children []*Node
	Line     int
}

// Document is a parsed product label addressed by its absolute URI.
type Document struct {
	SystemID string
	Root     *Node

	// models holds xml-model processing instructions seen before the
	// root element, in document order.
	models []modelPI
}

type modelPI struct {
	href         string
	schemaTypens string
}

// Attr returns the value of the named attribute on n, or "".
func (n *Node) Attr(space, local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local && (space == "" || a.Name.Space == space) {
			return a.Value
		}
	}
	return ""
}

// ChildValue returns the trimmed text of the first child element with
// the given local name, its line, and whether such a child exists.
func (n *Node) ChildValue(local string) (string, int, bool) {
	for _, c := range n.Children {
		if c.Name.Local == local {
			return strings.TrimSpace(c.Text), c.Line, true
		}
	}
	return "", 0, false
}

// BaseAttributes returns every xml:base attribute value in the
// document, in document order. These mark XInclude origins in a merged
// document.
func (d *Document) BaseAttributes() []string {
	var bases []string
	d.walk(func(n *Node) {
		if v := n.Attr(xmlNamespace, "base"); v != "" {
			bases = append(bases, v)
		}
	})
	return bases
}

// FileObjects returns every file-object node in the label: File
// children of File_Area* elements plus standalone Document_File
// elements, in document order.
func (d *Document) FileObjects() []*Node {
	var objects []*Node
	d.walk(func(n *Node) {
		if strings.HasPrefix(n.Name.Local, "File_Area") {
			for _, c := range n.Children {
				if c.Name.Local == "File" {
					objects = append(objects, c)
				}
			}
		}
		if n.Name.Local == "Document_File" {
			objects = append(objects, n)
		}
	})
	return objects
}

// SchemaLocation is one namespace/location pair declared by the label.
type SchemaLocation struct {
	Namespace string
	Location  string
}

// SchemaLocations returns the xsi:schemaLocation pairs declared on the
// root element.
func (d *Document) SchemaLocations() []SchemaLocation {
	if d.Root == nil {
		return nil
	}
	fields := strings.Fields(d.Root.Attr(xsiNamespace, "schemaLocation"))
	var locs []SchemaLocation
	for i := 0; i+1 < len(fields); i += 2 {
		locs = append(locs, SchemaLocation{Namespace: fields[i], Location: fields[i+1]})
	}
	return locs
}

// SchematronReferences returns the href of every xml-model processing
// instruction whose schematypens is the ISO schematron namespace.
func (d *Document) SchematronReferences() []string {
	const schematronNS = "http://purl.oclc.org/dsdl/schematron"
	var refs []string
	for _, m := range d.models {
		if m.schemaTypens == schematronNS && m.href != "" {
			refs = append(refs, m.href)
		}
	}
	return refs
}

func (d *Document) walk(fn func(*Node)) {
	if d.Root == nil {
		return
	}
	var visit func(*Node)
	visit = func(n *Node) {
		fn(n)
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(d.Root)
}
