package validate

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/adammathes/labelverify/pkg/catalog"
	"github.com/adammathes/labelverify/pkg/crawler"
	"github.com/adammathes/labelverify/pkg/label"
	"github.com/adammathes/labelverify/pkg/manifest"
	"github.com/adammathes/labelverify/pkg/report"
)

// Options configures a validation run.
type Options struct {
	// Catalogs is the ordered list of XML catalog files used to
	// redirect schema, schematron and entity lookups.
	Catalogs []string

	// ChecksumManifest is the path to a flat MD5 manifest file. Empty
	// means no manifest-side checksum reconciliation.
	ChecksumManifest string

	// SkipProductValidation skips the per-label file-object walk.
	// Data-content checking is disabled implicitly.
	SkipProductValidation bool

	// NoDataCheck disables data-content validation (PDF/A checks).
	NoDataCheck bool

	// ForceSchemaValidation checks that schema and schematron
	// references declared in each label are resolvable.
	ForceSchemaValidation bool

	// ExpandedSystemIDs resolves catalog lookups with the expanded
	// (absolutized) system identifier instead of the literal form.
	ExpandedSystemIDs bool

	// FileFilters are the wildcard file-name filters used when the
	// target is a directory. Defaults to ["*.xml"].
	FileFilters []string

	// PDFAChecker is the external PDF/A conformance service; nil
	// skips PDF/A checks.
	PDFAChecker PDFAChecker

	// AllowUnlabeledFiles permits files without labels in a bundle.
	AllowUnlabeledFiles bool

	// SpotCheck limits how many records content validation examines;
	// 0 checks everything.
	SpotCheck int
}

// Validate runs all validation rules on a target label file or
// directory and returns the collected report.
func Validate(target string) (*report.Report, error) {
	return ValidateWithOptions(target, Options{})
}

// ValidateWithOptions runs validation with the given options. The
// returned report carries every problem found; an error return means
// the run itself could not be set up, never that the target is
// invalid.
func ValidateWithOptions(target string, opts Options) (*report.Report, error) {
	rpt := report.NewReport()

	resolver := catalog.NewResolver(opts.Catalogs)
	resolver.SetListener(rpt)
	if opts.ExpandedSystemIDs {
		resolver.SetUseLiteralSystemID(false)
	}

	filters := opts.FileFilters
	if len(filters) == 0 {
		filters = []string{"*.xml"}
	}

	ctx := NewRuleContext()
	ctx.SetListener(rpt)
	ctx.SetCatalogs(opts.Catalogs)
	ctx.SetCatalogResolver(resolver)
	ctx.SetCheckData(!opts.NoDataCheck)
	ctx.SetSkipProductValidation(opts.SkipProductValidation)
	ctx.SetForceLabelSchemaValidation(opts.ForceSchemaValidation)
	ctx.SetFileFilters(filters)
	ctx.SetPDFAChecker(opts.PDFAChecker)
	ctx.SetAllowUnlabeledFiles(opts.AllowUnlabeledFiles)
	ctx.SetSpotCheck(opts.SpotCheck)
	ctx.SetCrawler(crawler.New(filters...))
	ctx.SetRuleManager(NewRuleManager(&SchemaReferenceRule{}, &FileReferenceRule{}))

	registry := &Registry{}
	ctx.SetTargetRegistrar(registry)

	fi, err := os.Stat(locationPath(target))
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target, err)
	}

	targets := []string{target}
	if fi.IsDir() {
		targets, err = ctx.Crawler().Crawl(locationPath(target))
		if err != nil {
			return nil, err
		}
		ctx.SetParentTarget(target)
	}

	if opts.ChecksumManifest != "" {
		base, err := manifestBase(target, fi.IsDir())
		if err != nil {
			return nil, err
		}
		entries, err := manifest.Load(opts.ChecksumManifest, base)
		if err != nil {
			return nil, err
		}
		ctx.SetChecksumManifest(entries)
	}

	for i, t := range targets {
		runTarget(ctx, t, i == 0 && !fi.IsDir())
	}
	return rpt, nil
}

// runTarget validates one label: parse it, then execute every
// applicable rule. Parse failures become problems, not run failures.
func runTarget(ctx *RuleContext, target string, root bool) {
	u, err := targetURL(target)
	if err != nil {
		ctx.Listener().AddProblem(report.NewProblem(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message:  fmt.Sprintf("Error occurred while building the target uri for %q: %s", target, err),
		}, report.Target{Location: target}))
		return
	}
	if err := ctx.SetTarget(u); err != nil {
		ctx.Listener().AddProblem(report.NewProblem(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message:  err.Error(),
		}, report.Target{Location: target}))
		return
	}
	ctx.SetRootTarget(root)
	ctx.SetLabelDocument(nil)
	if ctx.TargetRegistrar() != nil {
		ctx.TargetRegistrar().AddTarget(ctx.Target().String())
	}

	if labelPattern.MatchString(filepath.Base(locationPath(target))) {
		data, err := os.ReadFile(locationPath(target))
		if err != nil {
			ctx.Listener().AddProblem(report.NewProblem(report.Definition{
				Severity: report.Error,
				Type:     report.InternalError,
				Message:  fmt.Sprintf("Error occurred while reading the uri: %s", err),
			}, report.Target{Location: ctx.Target().String()}))
			return
		}
		doc, err := label.Parse(data, ctx.Target().String())
		if err != nil {
			ctx.Listener().AddProblem(report.NewProblem(report.Definition{
				Severity: report.Error,
				Type:     report.InternalError,
				Message:  err.Error(),
			}, report.Target{Location: ctx.Target().String()}))
			return
		}
		ctx.SetLabelDocument(doc)
	}

	for _, rule := range ctx.RuleManager().ApplicableRules(ctx, target) {
		passed := rule.Execute(ctx)
		log.Debug("rule executed", "target", target, "passed", passed)
	}
}

// targetURL converts a target location to an absolute URL. Plain
// paths become file URLs.
func targetURL(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err == nil && u.IsAbs() {
		return u, nil
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

// manifestBase returns the URL manifest entries resolve against: the
// target directory itself, or the label's parent directory.
func manifestBase(target string, isDir bool) (*url.URL, error) {
	u, err := targetURL(target)
	if err != nil {
		return nil, err
	}
	if isDir {
		if u.Path[len(u.Path)-1] != '/' {
			u.Path += "/"
		}
		return u, nil
	}
	return parentURL(u), nil
}

// Registry is an in-memory target registrar recording every target a
// run visits.
type Registry struct {
	mu        sync.Mutex
	locations []string
}

// AddTarget records a visited target.
func (r *Registry) AddTarget(location string) {
	r.mu.Lock()
	r.locations = append(r.locations, location)
	r.mu.Unlock()
}

// Targets returns the recorded targets in visit order.
func (r *Registry) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.locations...)
}
