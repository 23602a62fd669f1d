package godog_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/adammathes/labelverify/pkg/report"
	"github.com/adammathes/labelverify/pkg/validate"
)

// testdataRoot returns the absolute path to the testdata directory.
func testdataRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "testdata")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root (no go.mod)")
		}
		dir = parent
	}
}

func TestFeatures(t *testing.T) {
	root := testdataRoot(t)
	featuresDir := filepath.Join(root, "features")
	fixturesDir := filepath.Join(root, "fixtures")

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, fixturesDir)
		},
		Options: &godog.Options{
			Format:        "pretty",
			Paths:         []string{featuresDir},
			TestingT:      t,
			StopOnFailure: false,
			Strict:        false,
		},
	}

	if suite.Run() != 0 {
		// Non-zero means failures occurred; godog already reported them
		// through the testing.T integration.
	}
}

// scenarioState holds per-scenario state for step definitions.
type scenarioState struct {
	fixturesDir string
	basePath    string // relative path inside fixtures, e.g. "references"
	opts        validate.Options
	result      *report.Report
	lastMessage string

	// assertedIndices tracks which problem indices have been explicitly
	// asserted. Used by the "no other errors or warnings" step.
	assertedIndices map[int]bool
}

func (s *scenarioState) fixturePath(name string) string {
	return filepath.Join(s.fixturesDir, s.basePath, filepath.FromSlash(name))
}

func (s *scenarioState) markAsserted(idx int) {
	if s.assertedIndices == nil {
		s.assertedIndices = make(map[int]bool)
	}
	s.assertedIndices[idx] = true
}

func (s *scenarioState) check(name string) error {
	s.result = nil
	s.lastMessage = ""
	s.assertedIndices = nil

	path := s.fixturePath(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("fixture lookup: %w", err)
	}
	rpt, err := validate.ValidateWithOptions(path, s.opts)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	s.result = rpt
	return nil
}

func formatProblems(problems []report.Problem) string {
	if len(problems) == 0 {
		return "  (none)"
	}
	var lines []string
	for _, p := range problems {
		lines = append(lines, "  "+p.String())
	}
	return strings.Join(lines, "\n")
}

func initializeScenario(ctx *godog.ScenarioContext, fixturesDir string) {
	s := &scenarioState{fixturesDir: fixturesDir}

	// ================================================================
	// Given steps
	// ================================================================

	ctx.Step(`^test files located at '([^']*)'$`, func(path string) error {
		s.basePath = strings.Trim(path, "/")
		return nil
	})

	ctx.Step(`^the checker with default settings$`, func() error {
		s.opts = validate.Options{}
		return nil
	})

	ctx.Step(`^the checker configured with catalog '([^']*)'$`, func(name string) error {
		s.opts.Catalogs = append(s.opts.Catalogs, s.fixturePath(name))
		return nil
	})

	ctx.Step(`^the checker configured with checksum manifest '([^']*)'$`, func(name string) error {
		s.opts.ChecksumManifest = s.fixturePath(name)
		return nil
	})

	ctx.Step(`^the checker configured to skip product validation$`, func() error {
		s.opts.SkipProductValidation = true
		return nil
	})

	ctx.Step(`^the checker configured to verify schema references$`, func() error {
		s.opts.ForceSchemaValidation = true
		return nil
	})

	ctx.Step(`^the checker configured to use expanded system identifiers$`, func() error {
		s.opts.ExpandedSystemIDs = true
		return nil
	})

	// ================================================================
	// When steps
	// ================================================================

	ctx.Step(`^checking label '([^']*)'$`, func(name string) error {
		return s.check(name)
	})

	ctx.Step(`^checking directory '([^']*)'$`, func(name string) error {
		return s.check(name)
	})

	// ================================================================
	// Then steps
	// ================================================================

	ctx.Step(`^no errors or warnings are reported$`, func() error {
		if s.result == nil {
			return fmt.Errorf("no validation result available")
		}
		var issues []string
		for i, p := range s.result.Problems {
			if s.assertedIndices[i] {
				continue
			}
			if p.Severity == report.Fatal || p.Severity == report.Error || p.Severity == report.Warning {
				issues = append(issues, p.String())
			}
		}
		if len(issues) > 0 {
			return fmt.Errorf("expected no errors or warnings, but got:\n  %s", strings.Join(issues, "\n  "))
		}
		return nil
	})

	ctx.Step(`^no other errors or warnings are reported$`, func() error {
		if s.result == nil {
			return fmt.Errorf("no validation result available")
		}
		var unexpected []string
		for i, p := range s.result.Problems {
			if s.assertedIndices[i] {
				continue
			}
			if p.Severity == report.Fatal || p.Severity == report.Error || p.Severity == report.Warning {
				unexpected = append(unexpected, p.String())
			}
		}
		if len(unexpected) > 0 {
			return fmt.Errorf("unexpected errors/warnings:\n  %s", strings.Join(unexpected, "\n  "))
		}
		return nil
	})

	ctx.Step(`^problem ([A-Z_]+) is reported (\d+) times?$`, func(ptype string, n int) error {
		if s.result == nil {
			return fmt.Errorf("no validation result available")
		}
		count := 0
		for i, p := range s.result.Problems {
			if p.Type == report.ProblemType(ptype) {
				count++
				s.lastMessage = p.Message
				s.markAsserted(i)
			}
		}
		if count != n {
			return fmt.Errorf("expected %s reported %d times, got %d.\nGot problems:\n%s",
				ptype, n, count, formatProblems(s.result.Problems))
		}
		return nil
	})

	ctx.Step(`^problem ([A-Z_]+) is reported$`, func(ptype string) error {
		if s.result == nil {
			return fmt.Errorf("no validation result available")
		}
		for i, p := range s.result.Problems {
			if p.Type == report.ProblemType(ptype) {
				s.lastMessage = p.Message
				s.markAsserted(i)
				return nil
			}
		}
		return fmt.Errorf("expected problem %s but it was not reported.\nGot problems:\n%s",
			ptype, formatProblems(s.result.Problems))
	})

	ctx.Step(`^the message contains '([^']*)'$`, func(text string) error {
		if s.lastMessage == "" {
			return fmt.Errorf("no message asserted yet")
		}
		if !strings.Contains(s.lastMessage, text) {
			return fmt.Errorf("message %q does not contain %q", s.lastMessage, text)
		}
		return nil
	})

	ctx.Step(`^the report is valid$`, func() error {
		if s.result == nil {
			return fmt.Errorf("no validation result available")
		}
		if !s.result.IsValid() {
			return fmt.Errorf("expected a valid report, got:\n%s", formatProblems(s.result.Problems))
		}
		return nil
	})

	ctx.Step(`^the report is invalid$`, func() error {
		if s.result == nil {
			return fmt.Errorf("no validation result available")
		}
		if s.result.IsValid() {
			return fmt.Errorf("expected an invalid report")
		}
		return nil
	})
}
