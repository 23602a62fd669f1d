package report

import (
	"encoding/json"
	"fmt"
)

// Severity levels for validation problems.
type Severity string

const (
	Fatal   Severity = "FATAL"
	Error   Severity = "ERROR"
	Warning Severity = "WARNING"
	Info    Severity = "INFO"
)

// ProblemType identifies the kind of validation finding.
type ProblemType string

const (
	MissingReferencedFile       ProblemType = "MISSING_REFERENCED_FILE"
	ChecksumMismatch            ProblemType = "CHECKSUM_MISMATCH"
	ChecksumMatches             ProblemType = "CHECKSUM_MATCHES"
	FilesizeMismatch            ProblemType = "FILESIZE_MISMATCH"
	FilesizeMatches             ProblemType = "FILESIZE_MATCHES"
	FileReferenceCaseMismatch   ProblemType = "FILE_REFERENCE_CASE_MISMATCH"
	MissingChecksum             ProblemType = "MISSING_CHECKSUM"
	MissingChecksumInfo         ProblemType = "MISSING_CHECKSUM_INFO"
	MissingFilesizeInfo         ProblemType = "MISSING_FILESIZE_INFO"
	CatalogUnresolvableResource ProblemType = "CATALOG_UNRESOLVABLE_RESOURCE"
	InternalError               ProblemType = "INTERNAL_ERROR"
	UnknownValue                ProblemType = "UNKNOWN_VALUE"
	NonPDFAFile                 ProblemType = "NON_PDFA_FILE"
)

// Definition pairs a severity with a problem type and a human-readable
// message. Definitions are value types and never mutated.
type Definition struct {
	Severity Severity    `json:"severity"`
	Type     ProblemType `json:"type"`
	Message  string      `json:"message"`
}

// Target identifies the label (or referenced resource) a problem is
// attributed to, by its absolute URI.
type Target struct {
	Location string `json:"location"`
}

// Problem is a single validation finding against a target, with an
// optional source location. Line and Column are -1 when unknown.
type Problem struct {
	Definition
	Target Target `json:"target"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// NewProblem creates a problem with no source location.
func NewProblem(def Definition, target Target) Problem {
	return Problem{Definition: def, Target: target, Line: -1, Column: -1}
}

// NewProblemAt creates a problem with a source location.
func NewProblemAt(def Definition, target Target, line, column int) Problem {
	return Problem{Definition: def, Target: target, Line: line, Column: column}
}

// MarshalJSON leaves line and column out of the encoding when no
// source location is known.
func (p Problem) MarshalJSON() ([]byte, error) {
	type located struct {
		Definition
		Target Target `json:"target"`
		Line   *int   `json:"line,omitempty"`
		Column *int   `json:"column,omitempty"`
	}
	out := located{Definition: p.Definition, Target: p.Target}
	if p.Line > 0 {
		out.Line = &p.Line
	}
	if p.Column > 0 {
		out.Column = &p.Column
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the -1 sentinel for absent locations.
func (p *Problem) UnmarshalJSON(data []byte) error {
	type plain Problem
	decoded := plain{Line: -1, Column: -1}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Problem(decoded)
	return nil
}

func (p Problem) String() string {
	if p.Line > 0 {
		return fmt.Sprintf("%s(%s): %s [%s:%d]", p.Severity, p.Type, p.Message, p.Target.Location, p.Line)
	}
	return fmt.Sprintf("%s(%s): %s [%s]", p.Severity, p.Type, p.Message, p.Target.Location)
}

// Listener receives problems as they are discovered. Implementations
// must tolerate calls from multiple goroutines when validations run in
// parallel.
type Listener interface {
	AddProblem(Problem)
}
