package validate

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/adammathes/labelverify/pkg/label"
	"github.com/adammathes/labelverify/pkg/report"
)

var labelPattern = regexp.MustCompile(`(?i)\.xml$`)

// FileReferenceRule validates every file reference a label makes: the
// label's own checksum, XInclude targets, and the file objects the
// label declares, reconciling declared checksums and sizes against the
// files on disk. It reports one problem per violation and keeps going
// past individual failures so a single run surfaces everything.
type FileReferenceRule struct{}

// IsApplicable applies the rule only to readable, non-directory
// targets named *.xml for which a parsed label document is present.
func (r *FileReferenceRule) IsApplicable(ctx *RuleContext, location string) bool {
	p := locationPath(location)
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return false
	}
	if ctx.LabelDocument() == nil {
		return false
	}
	return labelPattern.MatchString(filepath.Base(p))
}

// Execute runs the walk and pushes the collected problems, in
// discovery order, to the context's listener. The returned flag is
// true iff no ERROR or FATAL problem was emitted.
func (r *FileReferenceRule) Execute(ctx *RuleContext) bool {
	doc := ctx.LabelDocument()
	log.Debug("validating file references", "label", doc.SystemID)

	problems := r.validate(ctx)
	for _, p := range problems {
		ctx.Listener().AddProblem(p)
	}
	for _, p := range problems {
		if p.Severity == report.Error || p.Severity == report.Fatal {
			return false
		}
	}
	return true
}

func (r *FileReferenceRule) validate(ctx *RuleContext) []report.Problem {
	doc := ctx.LabelDocument()
	target := report.Target{Location: doc.SystemID}
	manifest := ctx.ChecksumManifest()
	var problems []report.Problem

	labelURL, err := url.Parse(doc.SystemID)
	if err != nil {
		return append(problems, report.NewProblem(report.Definition{
			Severity: report.Fatal,
			Type:     report.InternalError,
			Message:  "Error occurred while reading the uri: " + err.Error(),
		}, target))
	}
	parent := parentURL(labelURL)

	// Checksum validation on the label itself. A nil declared value
	// means there is no label-side value to compare.
	ps, err := handleChecksum(target, labelURL, -1, nil, manifest)
	if err != nil {
		problems = append(problems, report.NewProblem(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message: fmt.Sprintf("Error occurred while calculating checksum for %s: %s",
				path.Base(labelURL.Path), err),
		}, target))
	}
	problems = append(problems, ps...)

	// xml:base attributes in the merged document mark XInclude
	// origins.
	bases := doc.BaseAttributes()
	log.Debug("xinclude origins", "label", doc.SystemID, "count", len(bases))
	for _, base := range bases {
		problems = append(problems, r.checkXInclude(target, parent, base, manifest)...)
	}

	if !ctx.SkipProductValidation() {
		for _, obj := range doc.FileObjects() {
			problems = append(problems, r.checkFileObject(ctx, target, parent, obj, manifest)...)
		}
	}
	return problems
}

// checkXInclude verifies one XInclude origin: reachability, casing,
// and manifest-side checksum.
func (r *FileReferenceRule) checkXInclude(target report.Target, parent *url.URL, base string, manifest map[string]string) []report.Problem {
	var problems []report.Problem
	refURL, err := resolveRef(parent, base)
	if err != nil {
		return append(problems, report.NewProblem(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message:  fmt.Sprintf("Error occurred while building the uri reference %q: %s", base, err),
		}, target))
	}
	if err := openReference(refURL); err != nil {
		return append(problems, report.NewProblem(report.Definition{
			Severity: report.Error,
			Type:     report.MissingReferencedFile,
			Message:  "URI reference does not exist: " + refURL.String(),
		}, target))
	}

	problems = append(problems, checkCase(target, refURL, -1)...)

	ps, err := handleChecksum(target, refURL, -1, nil, manifest)
	if err != nil {
		problems = append(problems, report.NewProblem(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message: fmt.Sprintf("Error occurred while calculating checksum for %s: %s",
				path.Base(refURL.Path), err),
		}, target))
	}
	return append(problems, ps...)
}

// checkFileObject validates one File or Document_File node: name
// presence, PDF/A conformance, reachability, casing, checksum and
// filesize reconciliation.
func (r *FileReferenceRule) checkFileObject(ctx *RuleContext, target report.Target, parent *url.URL, obj *label.Node, manifest map[string]string) []report.Problem {
	var problems []report.Problem

	name, _, hasName := obj.ChildValue("file_name")
	if !hasName || name == "" {
		return append(problems, report.NewProblemAt(report.Definition{
			Severity: report.Error,
			Type:     report.UnknownValue,
			Message:  "Missing 'file_name' element tag",
		}, target, obj.Line, -1))
	}
	checksum, _, hasChecksum := obj.ChildValue("md5_checksum")
	directory, _, _ := obj.ChildValue("directory_path_name")
	filesize, _, hasFilesize := obj.ChildValue("file_size")

	refURL, err := resolveRef(parent, joinRef(directory, name))
	if err != nil {
		return append(problems, report.NewProblemAt(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message:  fmt.Sprintf("Error occurred while building the uri reference %q: %s", name, err),
		}, target, obj.Line, -1))
	}
	log.Debug("checking file reference", "label", target.Location, "ref", refURL.String())

	// PDF references get an external PDF/A conformance check when
	// content validation is on. A negative result does not block the
	// remaining checks.
	if strings.HasSuffix(name, ".pdf") && ctx.CheckData() && ctx.PDFAChecker() != nil {
		conforms, err := ctx.PDFAChecker().Conforms(refURL)
		if err != nil || !conforms {
			problems = append(problems, report.NewProblemAt(report.Definition{
				Severity: report.Warning,
				Type:     report.NonPDFAFile,
				Message:  refURL.String() + " is not valid PDF/A file or does not exist",
			}, target, obj.Line, -1))
		}
	}

	if err := openReference(refURL); err != nil {
		// Nothing to check against a missing file: checksum and
		// filesize are skipped.
		return append(problems, report.NewProblemAt(report.Definition{
			Severity: report.Error,
			Type:     report.MissingReferencedFile,
			Message:  "URI reference does not exist: " + refURL.String(),
		}, target, obj.Line, -1))
	}

	problems = append(problems, checkCase(target, refURL, obj.Line)...)

	var declaredChecksum *string
	if hasChecksum {
		declaredChecksum = &checksum
	}
	ps, err := handleChecksum(target, refURL, obj.Line, declaredChecksum, manifest)
	if err != nil {
		problems = append(problems, report.NewProblemAt(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message: fmt.Sprintf("Error occurred while calculating checksum for %s: %s",
				path.Base(refURL.Path), err),
		}, target, obj.Line, -1))
	}
	problems = append(problems, ps...)

	var declaredFilesize *string
	if hasFilesize {
		declaredFilesize = &filesize
	}
	ps, err = handleFilesize(target, refURL, obj.Line, declaredFilesize)
	if err != nil {
		problems = append(problems, report.NewProblemAt(report.Definition{
			Severity: report.Error,
			Type:     report.InternalError,
			Message: fmt.Sprintf("Error occurred while calculating filesize for %s: %s",
				path.Base(refURL.Path), err),
		}, target, obj.Line, -1))
	}
	return append(problems, ps...)
}

// checkCase reports a warning when the reference exists but its
// trailing path component is cased differently on disk. The check is
// independent of any checksum or filesize outcome.
func checkCase(target report.Target, ref *url.URL, line int) []report.Problem {
	mismatch, err := caseMismatch(ref)
	if err != nil {
		return []report.Problem{report.NewProblemAt(report.Definition{
			Severity: report.Fatal,
			Type:     report.InternalError,
			Message: fmt.Sprintf("Error occurred while checking for the existence of the uri reference '%s': %s",
				ref, err),
		}, target, line, -1)}
	}
	if mismatch {
		return []report.Problem{report.NewProblemAt(report.Definition{
			Severity: report.Warning,
			Type:     report.FileReferenceCaseMismatch,
			Message:  fmt.Sprintf("File reference '%s' exists but the case doesn't match", ref),
		}, target, line, -1)}
	}
	return nil
}

// handleChecksum reconciles the computed digest of ref against the
// checksum manifest and, independently, against the value declared in
// the label. declared is nil when the label has no value to compare
// (e.g. the label's own checksum), empty when the field is present but
// blank.
func handleChecksum(target report.Target, ref *url.URL, line int, declared *string, manifest map[string]string) ([]report.Problem, error) {
	if len(manifest) == 0 && (declared == nil || *declared == "") {
		// Nothing to resolve against; intentionally silent.
		return nil, nil
	}

	digest, err := md5Of(ref)
	if err != nil {
		return nil, err
	}
	var problems []report.Problem

	if len(manifest) > 0 {
		if supplied, ok := manifest[ref.String()]; ok {
			if supplied != digest {
				problems = append(problems, report.NewProblemAt(report.Definition{
					Severity: report.Error,
					Type:     report.ChecksumMismatch,
					Message: fmt.Sprintf("Generated checksum '%s' does not match supplied checksum '%s' in the manifest for '%s'",
						digest, supplied, ref),
				}, target, line, -1))
			} else {
				problems = append(problems, report.NewProblemAt(report.Definition{
					Severity: report.Info,
					Type:     report.ChecksumMatches,
					Message: fmt.Sprintf("Generated checksum '%s' matches the supplied checksum '%s' in the manifest for '%s'",
						digest, supplied, ref),
				}, target, line, -1))
			}
		} else {
			problems = append(problems, report.NewProblemAt(report.Definition{
				Severity: report.Error,
				Type:     report.MissingChecksum,
				Message:  fmt.Sprintf("No checksum found in the manifest for '%s'", ref),
			}, target, line, -1))
		}
	}

	if declared != nil {
		switch {
		case *declared == "":
			problems = append(problems, report.NewProblemAt(report.Definition{
				Severity: report.Info,
				Type:     report.MissingChecksumInfo,
				Message:  fmt.Sprintf("No checksum to compare against in the product label for '%s'", ref),
			}, target, line, -1))
		case *declared != digest:
			problems = append(problems, report.NewProblemAt(report.Definition{
				Severity: report.Error,
				Type:     report.ChecksumMismatch,
				Message: fmt.Sprintf("Generated checksum '%s' does not match supplied checksum '%s' in the product label for '%s'",
					digest, *declared, ref),
			}, target, line, -1))
		default:
			problems = append(problems, report.NewProblemAt(report.Definition{
				Severity: report.Info,
				Type:     report.ChecksumMatches,
				Message: fmt.Sprintf("Generated checksum '%s' matches the supplied checksum '%s' in the product label for '%s'",
					digest, *declared, ref),
			}, target, line, -1))
		}
	}
	return problems, nil
}

// handleFilesize compares the actual byte length of ref against the
// size declared in the label. A nil declared value emits nothing; an
// empty one distinguishes "field present but blank" at INFO level.
func handleFilesize(target report.Target, ref *url.URL, line int, declared *string) ([]report.Problem, error) {
	if declared == nil {
		return nil, nil
	}
	if *declared == "" {
		return []report.Problem{report.NewProblemAt(report.Definition{
			Severity: report.Info,
			Type:     report.MissingFilesizeInfo,
			Message:  fmt.Sprintf("No filesize to compare against in the product label for '%s'", ref),
		}, target, line, -1)}, nil
	}

	size, err := sizeOf(ref)
	if err != nil {
		return nil, err
	}
	generated := strconv.FormatInt(size, 10)
	if generated != *declared {
		return []report.Problem{report.NewProblemAt(report.Definition{
			Severity: report.Error,
			Type:     report.FilesizeMismatch,
			Message: fmt.Sprintf("Generated filesize '%s' does not match supplied filesize '%s' in the product label for '%s'",
				generated, *declared, ref),
		}, target, line, -1)}, nil
	}
	return []report.Problem{report.NewProblemAt(report.Definition{
		Severity: report.Info,
		Type:     report.FilesizeMatches,
		Message: fmt.Sprintf("Generated filesize '%s' matches the supplied filesize '%s' in the product label for '%s'",
			generated, *declared, ref),
	}, target, line, -1)}, nil
}

// joinRef joins an optional directory path and a file name into one
// relative reference.
func joinRef(directory, name string) string {
	if directory == "" {
		return name
	}
	return directory + "/" + name
}

// resolveRef resolves a relative reference from a label against the
// label's parent directory URL.
func resolveRef(parent *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return parent.ResolveReference(u), nil
}

// locationPath maps a target location, which may be a plain path or a
// file URL, to a filesystem path.
func locationPath(location string) string {
	if !strings.HasPrefix(location, "file:") {
		return location
	}
	u, err := url.Parse(location)
	if err != nil || u.Path == "" {
		return location
	}
	return filepath.FromSlash(u.Path)
}
