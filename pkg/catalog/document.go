package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// catalogNamespace is the OASIS XML Catalogs namespace.
const catalogNamespace = "urn:oasis:names:tc:entity:xmlns:xml:catalog"

type entryKind int

const (
	entrySystem entryKind = iota
	entryRewriteSystem
	entryPublic
	entryURI
	entryRewriteURI
	entryNextCatalog
)

// entry is a single catalog mapping. For rewrite entries, key is the
// start string and uri is the rewrite prefix. For nextCatalog entries,
// uri is the absolute location of the delegate catalog.
type entry struct {
	kind entryKind
	key  string
	uri  string

	// preferPublic records the prefer setting in effect where this
	// entry appeared, for public entries.
	preferPublic bool
}

// Document is one parsed OASIS XML Catalog file: an ordered list of
// entry mappings. Immutable once parsed.
type Document struct {
	location string
	base     *url.URL
	entries  []entry
}

// ParseDocument reads and parses a single catalog file. Relative uri
// attributes are resolved against the catalog file's own location.
// preferPublic is the application default, overridden by any prefer
// attribute on the catalog or group elements.
func ParseDocument(location string, preferPublic bool) (*Document, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", location, err)
	}
	defer f.Close()

	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("resolving catalog path %s: %w", location, err)
	}
	base := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}

	doc := &Document{location: location, base: base}

	// prefer is scoped: the catalog element sets the document default,
	// group elements may override it for their children.
	preferStack := []bool{preferPublic}

	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing catalog %s: %w", location, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != catalogNamespace && t.Name.Space != "" {
				continue
			}
			switch t.Name.Local {
			case "catalog", "group":
				prefer := preferStack[len(preferStack)-1]
				if v := attr(t, "prefer"); v != "" {
					prefer = v == "public"
				}
				preferStack = append(preferStack, prefer)
			case "system":
				doc.add(entrySystem, attr(t, "systemId"), doc.absolutize(attr(t, "uri")), false)
			case "rewriteSystem":
				doc.add(entryRewriteSystem, attr(t, "systemIdStartString"), doc.absolutize(attr(t, "rewritePrefix")), false)
			case "public":
				prefer := preferStack[len(preferStack)-1]
				doc.add(entryPublic, normalizePublicID(attr(t, "publicId")), doc.absolutize(attr(t, "uri")), prefer)
			case "uri":
				doc.add(entryURI, attr(t, "name"), doc.absolutize(attr(t, "uri")), false)
			case "rewriteURI":
				doc.add(entryRewriteURI, attr(t, "uriStartString"), doc.absolutize(attr(t, "rewritePrefix")), false)
			case "nextCatalog":
				doc.add(entryNextCatalog, "", doc.absolutize(attr(t, "catalog")), false)
			}
		case xml.EndElement:
			if (t.Name.Local == "catalog" || t.Name.Local == "group") && len(preferStack) > 1 {
				preferStack = preferStack[:len(preferStack)-1]
			}
		}
	}
	return doc, nil
}

func (d *Document) add(kind entryKind, key, uri string, prefer bool) {
	if uri == "" {
		return
	}
	d.entries = append(d.entries, entry{kind: kind, key: key, uri: uri, preferPublic: prefer})
}

// absolutize resolves a catalog uri attribute against the catalog
// file's own base.
func (d *Document) absolutize(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	return d.base.ResolveReference(u).String()
}

// resolveSystem returns the mapping for a system identifier: exact
// system entries first, then the longest matching rewriteSystem prefix.
func (d *Document) resolveSystem(systemID string) (string, bool) {
	systemID = unwrapPublicidURN(systemID)
	for _, e := range d.entries {
		if e.kind == entrySystem && e.key == systemID {
			return e.uri, true
		}
	}
	return d.rewrite(entryRewriteSystem, systemID)
}

// resolvePublic returns the mapping for a public identifier, honoring
// only entries where prefer=public was in effect.
func (d *Document) resolvePublic(publicID string) (string, bool) {
	publicID = normalizePublicID(publicID)
	for _, e := range d.entries {
		if e.kind == entryPublic && e.preferPublic && e.key == publicID {
			return e.uri, true
		}
	}
	return "", false
}

// resolveURI returns the mapping for a URI reference: exact uri
// entries first, then the longest matching rewriteURI prefix. A URN in
// the publicid namespace is unwrapped and resolved as a public
// identifier.
func (d *Document) resolveURI(uri string) (string, bool) {
	if strings.HasPrefix(uri, "urn:publicid:") {
		for _, e := range d.entries {
			if e.kind == entryPublic && e.key == unwrapPublicidURN(uri) {
				return e.uri, true
			}
		}
		return "", false
	}
	for _, e := range d.entries {
		if e.kind == entryURI && e.key == uri {
			return e.uri, true
		}
	}
	return d.rewrite(entryRewriteURI, uri)
}

func (d *Document) rewrite(kind entryKind, id string) (string, bool) {
	best := ""
	prefix := ""
	for _, e := range d.entries {
		if e.kind == kind && strings.HasPrefix(id, e.key) && len(e.key) > len(prefix) {
			prefix = e.key
			best = e.uri
		}
	}
	if best == "" {
		return "", false
	}
	return best + id[len(prefix):], true
}

// nextCatalogs returns the delegate catalog locations declared in this
// document, in order.
func (d *Document) nextCatalogs() []string {
	var next []string
	for _, e := range d.entries {
		if e.kind == entryNextCatalog {
			next = append(next, e.uri)
		}
	}
	return next
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// normalizePublicID collapses whitespace in a public identifier as
// required before comparison.
func normalizePublicID(id string) string {
	return strings.Join(strings.Fields(id), " ")
}

// unwrapPublicidURN converts a urn:publicid: URN into the public
// identifier it encodes. Other identifiers pass through unchanged.
func unwrapPublicidURN(id string) string {
	const prefix = "urn:publicid:"
	if !strings.HasPrefix(id, prefix) {
		return id
	}
	s := id[len(prefix):]
	r := strings.NewReplacer(
		"%2B", "+", "%3A", ":", "%2F", "/", "%3B", ";", "%27", "'",
		"%3F", "?", "%23", "#", "%25", "%",
		"+", " ", ":", "//", ";", "::",
	)
	return r.Replace(s)
}
