package validate

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/adammathes/labelverify/pkg/report"
)

// SchemaReferenceRule checks that the schema and schematron resources
// a label declares are resolvable, through the catalog when one is
// configured, falling back to direct dereference. Only resolvability
// is checked; validating against the schemas is a separate concern.
type SchemaReferenceRule struct{}

// IsApplicable applies the rule to parsed labels when the run forces
// label schema validation.
func (r *SchemaReferenceRule) IsApplicable(ctx *RuleContext, location string) bool {
	if !ctx.ForceLabelSchemaValidation() || ctx.LabelDocument() == nil {
		return false
	}
	p := locationPath(location)
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return false
	}
	return labelPattern.MatchString(filepath.Base(p))
}

func (r *SchemaReferenceRule) Execute(ctx *RuleContext) bool {
	doc := ctx.LabelDocument()
	target := report.Target{Location: doc.SystemID}
	resolver := ctx.CatalogResolver()
	pass := true

	labelURL, err := url.Parse(doc.SystemID)
	if err != nil {
		ctx.Listener().AddProblem(report.NewProblem(report.Definition{
			Severity: report.Fatal,
			Type:     report.InternalError,
			Message:  "Error occurred while reading the uri: " + err.Error(),
		}, target))
		return false
	}
	parent := parentURL(labelURL)

	for _, loc := range doc.SchemaLocations() {
		resolved := ""
		if resolver != nil {
			resolved, err = resolver.ResolveSchema(loc.Namespace, loc.Location, doc.SystemID)
			if err != nil {
				ctx.Listener().AddProblem(report.NewProblem(report.Definition{
					Severity: report.Error,
					Type:     report.CatalogUnresolvableResource,
					Message:  err.Error(),
				}, target))
				pass = false
				continue
			}
		}
		if !r.reachable(parent, resolved, loc.Location) {
			ctx.Listener().AddProblem(report.NewProblem(report.Definition{
				Severity: report.Error,
				Type:     report.CatalogUnresolvableResource,
				Message: fmt.Sprintf("Could not resolve schema '%s' for namespace '%s'",
					loc.Location, loc.Namespace),
			}, target))
			pass = false
		}
	}

	for _, href := range doc.SchematronReferences() {
		resolved := ""
		if resolver != nil {
			resolved, err = resolver.ResolveSchematron(href)
			if err != nil {
				ctx.Listener().AddProblem(report.NewProblem(report.Definition{
					Severity: report.Error,
					Type:     report.CatalogUnresolvableResource,
					Message:  err.Error(),
				}, target))
				pass = false
				continue
			}
		}
		if !r.reachable(parent, resolved, href) {
			ctx.Listener().AddProblem(report.NewProblem(report.Definition{
				Severity: report.Error,
				Type:     report.CatalogUnresolvableResource,
				Message:  fmt.Sprintf("Could not resolve schematron '%s'", href),
			}, target))
			pass = false
		}
	}
	return pass
}

// reachable tries the catalog-resolved location first, then the
// declared location against the label's parent directory.
func (r *SchemaReferenceRule) reachable(parent *url.URL, resolved, declared string) bool {
	candidate := resolved
	if candidate == "" {
		candidate = declared
	}
	u, err := resolveRef(parent, candidate)
	if err != nil {
		return false
	}
	if err := openReference(u); err != nil {
		log.Debug("schema reference unreachable", "ref", u.String(), "error", err)
		return false
	}
	return true
}
