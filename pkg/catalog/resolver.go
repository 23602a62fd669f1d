package catalog

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adammathes/labelverify/pkg/report"
)

// Resolver maps external identifiers and namespace URIs to alternate
// locations using one or more OASIS XML Catalog files. It may be shared
// between several parsers and rule invocations; the parsed-catalog
// cache is guarded by a single mutex around the check-dirty/reparse
// sequence. A resolution that finds no mapping returns ("", nil):
// callers fall through to direct fetch.
type Resolver struct {
	mu       sync.Mutex
	catalogs []string
	set      *catalogSet
	dirty    bool

	preferPublic       bool
	useLiteralSystemID bool

	listener report.Listener
}

// NewResolver constructs a resolver over the given ordered list of
// catalog file locations. Prefer-public and use-literal-system-id both
// default to true.
func NewResolver(catalogs []string) *Resolver {
	return &Resolver{
		catalogs:           append([]string(nil), catalogs...),
		dirty:              true,
		preferPublic:       true,
		useLiteralSystemID: true,
	}
}

// CatalogList returns a copy of the configured catalog file list.
func (r *Resolver) CatalogList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.catalogs...)
}

// SetCatalogList replaces the catalog file list. Cached mappings from
// the previous list are replaced by mappings from the new list the next
// time the catalog is queried.
func (r *Resolver) SetCatalogList(catalogs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = true
	r.catalogs = append([]string(nil), catalogs...)
}

// Clear forces the cache of catalog mappings to be cleared.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = nil
}

// PreferPublic reports whether public matches are preferred over
// system matches in the absence of a prefer attribute in the catalog.
func (r *Resolver) PreferPublic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preferPublic
}

// SetPreferPublic sets the preference for whether system or public
// matches are preferred.
func (r *Resolver) SetPreferPublic(prefer bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferPublic = prefer
	r.dirty = true
}

// UseLiteralSystemID reports whether the literal (pre-absolutization)
// system identifier is used for catalog resolution when both it and
// the expanded form are available.
func (r *Resolver) UseLiteralSystemID() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.useLiteralSystemID
}

// SetUseLiteralSystemID sets the literal-vs-expanded preference.
func (r *Resolver) SetUseLiteralSystemID(literal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.useLiteralSystemID = literal
}

// SetListener attaches a problem sink for unresolvable-resource
// reporting from ResolveResource.
func (r *Resolver) SetListener(l report.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = l
}

// ResolveSystem returns the URI mapping in the catalog for the given
// system identifier, or "" if no mapping exists.
func (r *Resolver) ResolveSystem(systemID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureParsed(); err != nil {
		return "", err
	}
	if r.set == nil {
		return "", nil
	}
	return r.set.resolve(func(d *Document) (string, bool) {
		return d.resolveSystem(systemID)
	})
}

// ResolvePublic returns the URI mapping in the catalog for the given
// external identifier, or "" if no mapping exists. The system
// identifier is consulted first; public entries apply only where
// prefer=public is in effect or no system identifier was supplied.
func (r *Resolver) ResolvePublic(publicID, systemID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureParsed(); err != nil {
		return "", err
	}
	if r.set == nil {
		return "", nil
	}
	if systemID != "" {
		resolved, err := r.set.resolve(func(d *Document) (string, bool) {
			return d.resolveSystem(systemID)
		})
		if err != nil || resolved != "" {
			return resolved, err
		}
	}
	if publicID == "" {
		return "", nil
	}
	return r.set.resolve(func(d *Document) (string, bool) {
		if systemID == "" {
			// Without a system identifier every public entry is
			// eligible regardless of the prefer setting.
			publicID := normalizePublicID(publicID)
			for _, e := range d.entries {
				if e.kind == entryPublic && e.key == publicID {
					return e.uri, true
				}
			}
			return "", false
		}
		return d.resolvePublic(publicID)
	})
}

// ResolveURI returns the URI mapping in the catalog for the given URI
// reference, or "" if no mapping exists. URI comparison is case
// sensitive.
func (r *Resolver) ResolveURI(uri string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureParsed(); err != nil {
		return "", err
	}
	if r.set == nil {
		return "", nil
	}
	return r.set.resolve(func(d *Document) (string, bool) {
		return d.resolveURI(uri)
	})
}

// Identifier carries the external-identifier and namespace information
// for a general resolution request. SchemaInclude marks an XSD include
// (or redefine) context: a same-schema fragment whose namespace must
// not be consulted for catalog resolution.
type Identifier struct {
	Namespace        string
	PublicID         string
	LiteralSystemID  string
	ExpandedSystemID string
	BaseURI          string
	SchemaInclude    bool
}

// ResolveIdentifier resolves an identifier using the catalog. The
// namespace is interpreted against uri entries and takes precedence
// over the external identifier, except for schema includes. The system
// identifier used is the literal or expanded form per the resolver's
// use-literal-system-id preference.
func (r *Resolver) ResolveIdentifier(id Identifier) (string, error) {
	if id.Namespace != "" && !id.SchemaInclude {
		resolved, err := r.ResolveURI(id.Namespace)
		if err != nil || resolved != "" {
			return resolved, err
		}
	}
	systemID := id.LiteralSystemID
	if !r.UseLiteralSystemID() {
		systemID = id.ExpandedSystemID
	}
	if id.PublicID != "" && systemID != "" {
		return r.ResolvePublic(id.PublicID, systemID)
	}
	if systemID != "" {
		return r.ResolveSystem(systemID)
	}
	return "", nil
}

// ResolveResource resolves a generic resource request, as used for
// XInclude and XSD import scenarios outside a parse. It returns the
// resolved URI or "". Failures and unresolvable requests are reported
// to the attached listener rather than returned; resolution never
// panics.
func (r *Resolver) ResolveResource(namespaceURI, publicID, systemID, baseURI string) string {
	// Without a system identifier there is nothing to resolve.
	if systemID == "" {
		r.addProblem(report.Definition{
			Severity: report.Error,
			Type:     report.CatalogUnresolvableResource,
			Message:  "Cannot resolve a resource without a system identifier",
		}, baseURI)
		return ""
	}

	expanded, err := makeAbsolute(baseURI, systemID)
	if err != nil {
		r.addProblem(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message:  err.Error(),
		}, baseURI)
		return ""
	}

	resolved, err := r.resolveExpanded(namespaceURI, publicID, systemID, expanded)
	if err != nil {
		r.addProblem(report.Definition{
			Severity: report.Error,
			Type:     report.CatalogUnresolvableResource,
			Message:  err.Error(),
		}, baseURI)
		return ""
	}
	if resolved != "" {
		return resolved
	}

	if namespaceURI != "" {
		r.addProblem(report.Definition{
			Severity: report.Error,
			Type:     report.CatalogUnresolvableResource,
			Message: fmt.Sprintf("Could not resolve uri '%s' or namespace '%s' with the given catalog file.",
				systemID, namespaceURI),
		}, baseURI)
	}
	return ""
}

// resolveResource tries, in order: the absolutized system identifier
// as a URI reference, the namespace as a URI reference, then the
// external identifier with the literal/expanded preference applied.
func (r *Resolver) resolveResource(namespaceURI, publicID, systemID, baseURI string) (string, error) {
	expanded, err := makeAbsolute(baseURI, systemID)
	if err != nil {
		return "", err
	}
	return r.resolveExpanded(namespaceURI, publicID, systemID, expanded)
}

func (r *Resolver) resolveExpanded(namespaceURI, publicID, systemID, expanded string) (string, error) {
	// URIs specified in the catalog might be referencing the system
	// identifiers, so use those to do resolution.
	if expanded != "" {
		resolved, err := r.ResolveURI(expanded)
		if err != nil || resolved != "" {
			return resolved, err
		}
	}

	// The namespace is useful for resolving namespace aware grammars
	// such as XML schema. Let it take precedence over the external
	// identifier if one exists.
	if namespaceURI != "" {
		resolved, err := r.ResolveURI(namespaceURI)
		if err != nil || resolved != "" {
			return resolved, err
		}
	}

	if !r.UseLiteralSystemID() && expanded != "" {
		systemID = expanded
	}
	if publicID != "" && systemID != "" {
		return r.ResolvePublic(publicID, systemID)
	}
	if systemID != "" {
		return r.ResolveSystem(systemID)
	}
	return "", nil
}

// ResolveSchema resolves a schema location, letting a namespace
// mapping take precedence over the location hint.
func (r *Resolver) ResolveSchema(namespaceURI, systemID, baseURI string) (string, error) {
	return r.resolveResource(namespaceURI, "", systemID, baseURI)
}

// ResolveSchematron resolves a schematron location: first as a URI
// reference, then as a system identifier.
func (r *Resolver) ResolveSchematron(systemID string) (string, error) {
	if systemID == "" {
		return "", nil
	}
	resolved, err := r.ResolveURI(systemID)
	if err != nil || resolved != "" {
		return resolved, err
	}
	return r.ResolveSystem(systemID)
}

func (r *Resolver) addProblem(def report.Definition, baseURI string) {
	r.mu.Lock()
	l := r.listener
	r.mu.Unlock()
	if l != nil {
		l.AddProblem(report.NewProblem(def, report.Target{Location: baseURI}))
	}
}

// ensureParsed rebuilds the catalog set if the list changed since the
// last parse. Only the first catalog is parsed eagerly; the rest are
// registered and parsed on demand. Callers must hold mu. A parse
// failure leaves the dirty flag set so the next lookup retries.
func (r *Resolver) ensureParsed() error {
	if !r.dirty {
		return nil
	}
	if len(r.catalogs) == 0 {
		r.set = nil
		r.dirty = false
		return nil
	}
	set := &catalogSet{}
	first, err := ParseDocument(locationToPath(r.catalogs[0]), r.preferPublic)
	if err != nil {
		return err
	}
	set.parsed = append(set.parsed, first)
	set.pending = append(set.pending, r.catalogs[1:]...)
	set.pending = append(set.pending, first.nextCatalogs()...)
	set.preferPublic = r.preferPublic
	r.set = set
	r.dirty = false
	return nil
}

// catalogSet is the cached parsed structure for one catalog list:
// already-parsed documents in resolution order plus locations still to
// be parsed on demand (trailing list entries and nextCatalog
// delegates).
type catalogSet struct {
	preferPublic bool
	parsed       []*Document
	pending      []string
}

// resolve runs a per-document lookup across the set, parsing pending
// catalogs lazily until a match is found or the set is exhausted. A
// catalog that fails to parse fails this lookup only; documents parsed
// so far stay cached.
func (s *catalogSet) resolve(lookup func(*Document) (string, bool)) (string, error) {
	for _, d := range s.parsed {
		if resolved, ok := lookup(d); ok {
			return resolved, nil
		}
	}
	for len(s.pending) > 0 {
		next := s.pending[0]
		d, err := ParseDocument(locationToPath(next), s.preferPublic)
		if err != nil {
			return "", err
		}
		s.pending = s.pending[1:]
		s.parsed = append(s.parsed, d)
		s.pending = append(s.pending, d.nextCatalogs()...)
		if resolved, ok := lookup(d); ok {
			return resolved, nil
		}
	}
	return "", nil
}

// locationToPath maps a catalog location, which may be a plain path or
// a file URI (as produced by nextCatalog absolutization), to a
// filesystem path.
func locationToPath(location string) string {
	if !strings.HasPrefix(location, "file:") {
		return location
	}
	u, err := url.Parse(location)
	if err != nil || u.Path == "" {
		return location
	}
	return filepath.FromSlash(u.Path)
}

// makeAbsolute resolves a reference against a base URI. An empty base
// leaves the reference as is.
func makeAbsolute(baseURI, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("malformed reference %q: %w", ref, err)
	}
	if refURL.IsAbs() || baseURI == "" {
		return ref, nil
	}
	base, err := url.Parse(baseURI)
	if err != nil {
		return "", fmt.Errorf("malformed base URI %q: %w", baseURI, err)
	}
	return base.ResolveReference(refURL).String(), nil
}
