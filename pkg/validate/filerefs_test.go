package validate

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/adammathes/labelverify/pkg/label"
	"github.com/adammathes/labelverify/pkg/report"
)

// MD5("hello")
const helloDigest = "5d41402abc4b2a76b9719d911017c592"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testFileURL(t *testing.T, p string) *url.URL {
	t.Helper()
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
}

func labelWithFile(name, checksum, filesize string) string {
	body := fmt.Sprintf("      <file_name>%s</file_name>\n", name)
	if checksum != "-" {
		body += fmt.Sprintf("      <md5_checksum>%s</md5_checksum>\n", checksum)
	}
	if filesize != "-" {
		body += fmt.Sprintf("      <file_size unit=\"byte\">%s</file_size>\n", filesize)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<Product_Observational xmlns="http://pds.nasa.gov/pds4/pds/v1">
  <File_Area_Observational>
    <File>
` + body + `    </File>
  </File_Area_Observational>
</Product_Observational>
`
}

func contextFor(t *testing.T, labelPath string) (*RuleContext, *report.Report) {
	t.Helper()
	rpt := report.NewReport()
	ctx := NewRuleContext()
	ctx.SetListener(rpt)
	u := testFileURL(t, labelPath)
	if err := ctx.SetTarget(u); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(labelPath)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := label.Parse(data, u.String())
	if err != nil {
		t.Fatal(err)
	}
	ctx.SetLabelDocument(doc)
	return ctx, rpt
}

func problemTypes(rpt *report.Report) []report.ProblemType {
	var types []report.ProblemType
	for _, p := range rpt.Problems {
		types = append(types, p.Type)
	}
	return types
}

func countType(rpt *report.Report, pt report.ProblemType) int {
	n := 0
	for _, p := range rpt.Problems {
		if p.Type == pt {
			n++
		}
	}
	return n
}

func TestChecksumAndFilesizeMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image.img", "hello")
	lp := writeFile(t, dir, "image.xml", labelWithFile("image.img", helloDigest, "5"))

	ctx, rpt := contextFor(t, lp)
	rule := &FileReferenceRule{}
	if !rule.IsApplicable(ctx, lp) {
		t.Fatal("rule should apply to a parsed label")
	}
	if !rule.Execute(ctx) {
		t.Errorf("expected pass, got problems: %v", rpt.Problems)
	}
	if got := countType(rpt, report.ChecksumMatches); got != 1 {
		t.Errorf("CHECKSUM_MATCHES = %d, want 1 (%v)", got, problemTypes(rpt))
	}
	if got := countType(rpt, report.FilesizeMatches); got != 1 {
		t.Errorf("FILESIZE_MATCHES = %d, want 1 (%v)", got, problemTypes(rpt))
	}
	if !rpt.IsValid() {
		t.Errorf("report should be valid: %v", rpt.Problems)
	}
}

func TestChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image.img", "HELLO")
	lp := writeFile(t, dir, "image.xml", labelWithFile("image.img", helloDigest, "-"))

	ctx, rpt := contextFor(t, lp)
	if (&FileReferenceRule{}).Execute(ctx) {
		t.Error("expected failure")
	}
	if got := countType(rpt, report.ChecksumMismatch); got != 1 {
		t.Errorf("CHECKSUM_MISMATCH = %d, want 1 (%v)", got, problemTypes(rpt))
	}
}

func TestFilesizeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image.img", "hello")
	lp := writeFile(t, dir, "image.xml", labelWithFile("image.img", "-", "11"))

	ctx, rpt := contextFor(t, lp)
	if (&FileReferenceRule{}).Execute(ctx) {
		t.Error("expected failure")
	}
	if got := countType(rpt, report.FilesizeMismatch); got != 1 {
		t.Errorf("FILESIZE_MISMATCH = %d, want 1 (%v)", got, problemTypes(rpt))
	}
}

func TestBlankChecksumAndFilesize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image.img", "hello")
	lp := writeFile(t, dir, "image.xml", labelWithFile("image.img", "", ""))

	ctx, rpt := contextFor(t, lp)
	if !(&FileReferenceRule{}).Execute(ctx) {
		t.Errorf("blank fields are informational only: %v", rpt.Problems)
	}
	// Without a manifest a blank checksum has nothing to reconcile
	// against and stays silent; a blank filesize is still flagged.
	if got := countType(rpt, report.MissingChecksumInfo); got != 0 {
		t.Errorf("MISSING_CHECKSUM_INFO = %d, want 0 (%v)", got, problemTypes(rpt))
	}
	if got := countType(rpt, report.MissingFilesizeInfo); got != 1 {
		t.Errorf("MISSING_FILESIZE_INFO = %d, want 1 (%v)", got, problemTypes(rpt))
	}
}

func TestBlankChecksumWithoutManifestIsSilent(t *testing.T) {
	dir := t.TempDir()
	ref := testFileURL(t, writeFile(t, dir, "image.img", "hello"))
	target := report.Target{Location: "file:///archive/image.xml"}

	blank := ""
	problems, err := handleChecksum(target, ref, -1, &blank, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}
}

func TestBlankChecksumWithManifest(t *testing.T) {
	dir := t.TempDir()
	ref := testFileURL(t, writeFile(t, dir, "image.img", "hello"))
	target := report.Target{Location: "file:///archive/image.xml"}

	blank := ""
	problems, err := handleChecksum(target, ref, -1, &blank,
		map[string]string{ref.String(): helloDigest})
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 2 {
		t.Fatalf("problems = %d, want 2 (%v)", len(problems), problems)
	}
	if problems[0].Type != report.ChecksumMatches || problems[1].Type != report.MissingChecksumInfo {
		t.Errorf("unexpected problem types: %v %v", problems[0].Type, problems[1].Type)
	}
}

func TestMissingReferencedFileSkipsRemainingChecks(t *testing.T) {
	dir := t.TempDir()
	lp := writeFile(t, dir, "image.xml", labelWithFile("image.img", helloDigest, "5"))

	ctx, rpt := contextFor(t, lp)
	if (&FileReferenceRule{}).Execute(ctx) {
		t.Error("expected failure")
	}
	if got := countType(rpt, report.MissingReferencedFile); got != 1 {
		t.Errorf("MISSING_REFERENCED_FILE = %d, want 1 (%v)", got, problemTypes(rpt))
	}
	if len(rpt.Problems) != 1 {
		t.Errorf("missing file should yield exactly one problem, got %v", problemTypes(rpt))
	}
}

func TestMissingFileName(t *testing.T) {
	dir := t.TempDir()
	lp := writeFile(t, dir, "image.xml", `<?xml version="1.0"?>
<Product_Observational xmlns="http://pds.nasa.gov/pds4/pds/v1">
  <File_Area_Observational>
    <File>
      <md5_checksum>`+helloDigest+`</md5_checksum>
    </File>
  </File_Area_Observational>
</Product_Observational>
`)

	ctx, rpt := contextFor(t, lp)
	if (&FileReferenceRule{}).Execute(ctx) {
		t.Error("expected failure")
	}
	if got := countType(rpt, report.UnknownValue); got != 1 {
		t.Errorf("UNKNOWN_VALUE = %d, want 1 (%v)", got, problemTypes(rpt))
	}
	if rpt.Problems[0].Line != 4 {
		t.Errorf("problem line = %d, want 4", rpt.Problems[0].Line)
	}
}

func TestDirectoryPathName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data/image.img", "hello")
	lp := writeFile(t, dir, "image.xml", `<?xml version="1.0"?>
<Product_Observational xmlns="http://pds.nasa.gov/pds4/pds/v1">
  <File_Area_Observational>
    <File>
      <file_name>image.img</file_name>
      <directory_path_name>data</directory_path_name>
      <md5_checksum>`+helloDigest+`</md5_checksum>
    </File>
  </File_Area_Observational>
</Product_Observational>
`)

	ctx, rpt := contextFor(t, lp)
	if !(&FileReferenceRule{}).Execute(ctx) {
		t.Errorf("expected pass: %v", rpt.Problems)
	}
	if got := countType(rpt, report.ChecksumMatches); got != 1 {
		t.Errorf("CHECKSUM_MATCHES = %d, want 1 (%v)", got, problemTypes(rpt))
	}
}

func TestSkipProductValidation(t *testing.T) {
	dir := t.TempDir()
	lp := writeFile(t, dir, "image.xml", labelWithFile("missing.img", helloDigest, "5"))

	ctx, rpt := contextFor(t, lp)
	ctx.SetSkipProductValidation(true)
	if !(&FileReferenceRule{}).Execute(ctx) {
		t.Errorf("expected pass when product validation is skipped: %v", rpt.Problems)
	}
	if len(rpt.Problems) != 0 {
		t.Errorf("expected no problems, got %v", problemTypes(rpt))
	}
}

func TestXIncludeOriginMissing(t *testing.T) {
	dir := t.TempDir()
	lp := writeFile(t, dir, "merged.xml", `<?xml version="1.0"?>
<Product_Bundle xmlns="http://pds.nasa.gov/pds4/pds/v1">
  <Chapter xml:base="chapter1.xml"/>
</Product_Bundle>
`)

	ctx, rpt := contextFor(t, lp)
	if (&FileReferenceRule{}).Execute(ctx) {
		t.Error("expected failure")
	}
	if got := countType(rpt, report.MissingReferencedFile); got != 1 {
		t.Errorf("MISSING_REFERENCED_FILE = %d, want 1 (%v)", got, problemTypes(rpt))
	}
}

func TestManifestReconciliation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image.img", "hello")
	writeFile(t, dir, "other.img", "other")
	lp := writeFile(t, dir, "image.xml", `<?xml version="1.0"?>
<Product_Observational xmlns="http://pds.nasa.gov/pds4/pds/v1">
  <File_Area_Observational>
    <File>
      <file_name>image.img</file_name>
    </File>
    <File>
      <file_name>other.img</file_name>
    </File>
  </File_Area_Observational>
</Product_Observational>
`)

	ctx, rpt := contextFor(t, lp)
	ctx.SetChecksumManifest(map[string]string{
		testFileURL(t, filepath.Join(dir, "image.img")).String(): helloDigest,
		testFileURL(t, lp).String():                              helloDigest,
	})
	(&FileReferenceRule{}).Execute(ctx)

	// image.img matches, the label itself mismatches, other.img has no
	// manifest entry.
	if got := countType(rpt, report.ChecksumMatches); got != 1 {
		t.Errorf("CHECKSUM_MATCHES = %d, want 1 (%v)", got, problemTypes(rpt))
	}
	if got := countType(rpt, report.ChecksumMismatch); got != 1 {
		t.Errorf("CHECKSUM_MISMATCH = %d, want 1 (%v)", got, problemTypes(rpt))
	}
	if got := countType(rpt, report.MissingChecksum); got != 1 {
		t.Errorf("MISSING_CHECKSUM = %d, want 1 (%v)", got, problemTypes(rpt))
	}
}

func TestManifestAndLabelChecksumsAreIndependent(t *testing.T) {
	dir := t.TempDir()
	ref := testFileURL(t, writeFile(t, dir, "image.img", "hello"))
	target := report.Target{Location: "file:///archive/image.xml"}

	declared := helloDigest
	problems, err := handleChecksum(target, ref, 5, &declared,
		map[string]string{ref.String(): "ffffffffffffffffffffffffffffffff"})
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 2 {
		t.Fatalf("problems = %d, want 2 (manifest and label compared separately)", len(problems))
	}
	if problems[0].Type != report.ChecksumMismatch || problems[1].Type != report.ChecksumMatches {
		t.Errorf("unexpected problem types: %v %v", problems[0].Type, problems[1].Type)
	}
}

func TestCaseMismatchWarning(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Image.IMG", "hello")

	mismatch, err := caseMismatch(testFileURL(t, filepath.Join(dir, "image.img")))
	if err != nil {
		t.Fatal(err)
	}
	if !mismatch {
		t.Error("expected case mismatch")
	}

	mismatch, err = caseMismatch(testFileURL(t, filepath.Join(dir, "Image.IMG")))
	if err != nil {
		t.Fatal(err)
	}
	if mismatch {
		t.Error("exact name should not mismatch")
	}
}

type stubPDFAChecker struct {
	conforms bool
	err      error
}

func (s stubPDFAChecker) Conforms(*url.URL) (bool, error) { return s.conforms, s.err }

func TestPDFAConformance(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.pdf", "%PDF-1.4 not really")
	lp := writeFile(t, dir, "doc.xml", `<?xml version="1.0"?>
<Product_Document xmlns="http://pds.nasa.gov/pds4/pds/v1">
  <Document_File>
    <file_name>doc.pdf</file_name>
  </Document_File>
</Product_Document>
`)

	ctx, rpt := contextFor(t, lp)
	ctx.SetPDFAChecker(stubPDFAChecker{conforms: false})
	if !(&FileReferenceRule{}).Execute(ctx) {
		t.Errorf("a PDF/A warning must not fail the rule: %v", rpt.Problems)
	}
	if got := countType(rpt, report.NonPDFAFile); got != 1 {
		t.Errorf("NON_PDFA_FILE = %d, want 1 (%v)", got, problemTypes(rpt))
	}

	// Data-content checking off: no PDF/A problems.
	ctx2, rpt2 := contextFor(t, lp)
	ctx2.SetPDFAChecker(stubPDFAChecker{conforms: false})
	ctx2.SetCheckData(false)
	(&FileReferenceRule{}).Execute(ctx2)
	if got := countType(rpt2, report.NonPDFAFile); got != 0 {
		t.Errorf("NON_PDFA_FILE = %d, want 0 with data checks off", got)
	}
}

func TestIsApplicable(t *testing.T) {
	dir := t.TempDir()
	lp := writeFile(t, dir, "image.xml", labelWithFile("image.img", "-", "-"))
	writeFile(t, dir, "notes.txt", "notes")

	ctx, _ := contextFor(t, lp)
	rule := &FileReferenceRule{}
	if !rule.IsApplicable(ctx, lp) {
		t.Error("should apply to an xml label")
	}
	if rule.IsApplicable(ctx, filepath.Join(dir, "notes.txt")) {
		t.Error("should not apply to a non-xml file")
	}
	if rule.IsApplicable(ctx, dir) {
		t.Error("should not apply to a directory")
	}
	ctx.SetLabelDocument(nil)
	if rule.IsApplicable(ctx, lp) {
		t.Error("should not apply without a parsed label")
	}
}
