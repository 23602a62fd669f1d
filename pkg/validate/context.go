package validate

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/adammathes/labelverify/pkg/catalog"
	"github.com/adammathes/labelverify/pkg/crawler"
	"github.com/adammathes/labelverify/pkg/label"
	"github.com/adammathes/labelverify/pkg/report"
)

// TargetRegistrar records targets as the run discovers them. Owned by
// the run orchestrator.
type TargetRegistrar interface {
	AddTarget(location string)
}

// PDFAChecker reports whether a referenced PDF conforms to PDF/A. The
// concrete checker is an external service; a nil checker skips the
// check.
type PDFAChecker interface {
	Conforms(ref *url.URL) (bool, error)
}

// RuleContext is the shared state for one validation run. It is built
// once by the orchestrator and lent to every rule invocation. Fields
// are reached only through typed accessors; a field that was never set
// reads as its documented zero default.
type RuleContext struct {
	target       *url.URL
	listener     report.Listener
	registrar    TargetRegistrar
	ruleManager  *RuleManager
	parentTarget string
	crawler      *crawler.Crawler

	checksumManifest   map[string]string
	catalogs           []string
	catalogResolver    *catalog.Resolver
	labelDocument      *label.Document
	pdfaChecker        PDFAChecker
	registeredProducts map[string][]string
	fileFilters        []string

	checkData                  bool
	spotCheck                  int
	allowUnlabeledFiles        bool
	skipProductValidation      bool
	rootTarget                 bool
	forceLabelSchemaValidation bool
}

// NewRuleContext returns a context with data-content checking enabled,
// matching the tool's default run configuration.
func NewRuleContext() *RuleContext {
	return &RuleContext{checkData: true}
}

// Target returns the current validation target, or nil if none is set.
func (c *RuleContext) Target() *url.URL { return c.target }

// SetTarget normalizes the target to an absolute URL with clean path
// segments and stores it. Normalization happens exactly once here so
// repeated reads are stable.
func (c *RuleContext) SetTarget(target *url.URL) error {
	if target == nil {
		return fmt.Errorf("nil target")
	}
	u := *target
	if u.Scheme == "" {
		abs, err := filepath.Abs(u.Path)
		if err != nil {
			return fmt.Errorf("normalizing target %s: %w", target, err)
		}
		u = url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	}
	u.Path = path.Clean(u.Path)
	c.target = &u
	return nil
}

// Listener returns the problem sink for the run.
func (c *RuleContext) Listener() report.Listener { return c.listener }

func (c *RuleContext) SetListener(l report.Listener) { c.listener = l }

// TargetRegistrar returns the registrar recording discovered targets.
func (c *RuleContext) TargetRegistrar() TargetRegistrar { return c.registrar }

func (c *RuleContext) SetTargetRegistrar(r TargetRegistrar) { c.registrar = r }

// RuleManager returns the manager used to find other rules to apply.
func (c *RuleContext) RuleManager() *RuleManager { return c.ruleManager }

func (c *RuleContext) SetRuleManager(m *RuleManager) { c.ruleManager = m }

// ParentTarget returns the parent target location, or "" if there is
// none.
func (c *RuleContext) ParentTarget() string { return c.parentTarget }

func (c *RuleContext) SetParentTarget(location string) { c.parentTarget = location }

// Crawler returns the crawler enumerating candidate targets.
func (c *RuleContext) Crawler() *crawler.Crawler { return c.crawler }

func (c *RuleContext) SetCrawler(cr *crawler.Crawler) { c.crawler = cr }

// ChecksumManifest returns the map of absolute resource URI to
// expected MD5 digest, or nil when no manifest is active. Read-only to
// rules.
func (c *RuleContext) ChecksumManifest() map[string]string { return c.checksumManifest }

func (c *RuleContext) SetChecksumManifest(m map[string]string) { c.checksumManifest = m }

// Catalogs returns the configured catalog file list.
func (c *RuleContext) Catalogs() []string { return c.catalogs }

func (c *RuleContext) SetCatalogs(catalogs []string) { c.catalogs = catalogs }

// CatalogResolver returns the shared catalog resolver instance.
func (c *RuleContext) CatalogResolver() *catalog.Resolver { return c.catalogResolver }

func (c *RuleContext) SetCatalogResolver(r *catalog.Resolver) { c.catalogResolver = r }

// LabelDocument returns the parsed label for the current target, or
// nil if the parser has not produced one.
func (c *RuleContext) LabelDocument() *label.Document { return c.labelDocument }

func (c *RuleContext) SetLabelDocument(d *label.Document) { c.labelDocument = d }

// PDFAChecker returns the PDF/A conformance service, or nil.
func (c *RuleContext) PDFAChecker() PDFAChecker { return c.pdfaChecker }

func (c *RuleContext) SetPDFAChecker(p PDFAChecker) { c.pdfaChecker = p }

// RegisteredProducts returns the map of registered product
// identifiers.
func (c *RuleContext) RegisteredProducts() map[string][]string { return c.registeredProducts }

func (c *RuleContext) SetRegisteredProducts(m map[string][]string) { c.registeredProducts = m }

// FileFilters returns the wildcard file-name filters for crawling.
func (c *RuleContext) FileFilters() []string { return c.fileFilters }

func (c *RuleContext) SetFileFilters(filters []string) { c.fileFilters = filters }

// CheckData reports whether data-content validation is enabled.
func (c *RuleContext) CheckData() bool { return c.checkData }

func (c *RuleContext) SetCheckData(flag bool) { c.checkData = flag }

// SpotCheck returns how many lines or records to check during content
// validation; 0 means check everything.
func (c *RuleContext) SpotCheck() int { return c.spotCheck }

func (c *RuleContext) SetSpotCheck(n int) { c.spotCheck = n }

// AllowUnlabeledFiles reports whether unlabeled files are allowed in a
// bundle or collection.
func (c *RuleContext) AllowUnlabeledFiles() bool { return c.allowUnlabeledFiles }

func (c *RuleContext) SetAllowUnlabeledFiles(flag bool) { c.allowUnlabeledFiles = flag }

// SkipProductValidation reports whether product-level validation is
// skipped.
func (c *RuleContext) SkipProductValidation() bool { return c.skipProductValidation }

// SetSkipProductValidation sets whether product-level validation is
// skipped. Skipping it also disables data-content checking: content
// validation is meaningless without product-level traversal.
func (c *RuleContext) SetSkipProductValidation(flag bool) {
	c.skipProductValidation = flag
	if flag {
		c.checkData = false
	}
}

// RootTarget reports whether the current target is the root target of
// the run.
func (c *RuleContext) RootTarget() bool { return c.rootTarget }

func (c *RuleContext) SetRootTarget(flag bool) { c.rootTarget = flag }

// ForceLabelSchemaValidation reports whether schema and schematron
// references declared in a label should be checked for resolvability.
func (c *RuleContext) ForceLabelSchemaValidation() bool { return c.forceLabelSchemaValidation }

func (c *RuleContext) SetForceLabelSchemaValidation(flag bool) { c.forceLabelSchemaValidation = flag }
