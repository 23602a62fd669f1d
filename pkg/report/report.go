package report

import "sync"

// Report collects all problems from a validation run. It implements
// Listener; appends are serialized so concurrent rule invocations can
// share one report.
type Report struct {
	mu       sync.Mutex
	Problems []Problem `json:"problems"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

// AddProblem appends a problem to the report.
func (r *Report) AddProblem(p Problem) {
	r.mu.Lock()
	r.Problems = append(r.Problems, p)
	r.mu.Unlock()
}

func (r *Report) count(sev Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.Problems {
		if p.Severity == sev {
			n++
		}
	}
	return n
}

// FatalCount returns the number of FATAL problems.
func (r *Report) FatalCount() int { return r.count(Fatal) }

// ErrorCount returns the number of ERROR problems.
func (r *Report) ErrorCount() int { return r.count(Error) }

// WarningCount returns the number of WARNING problems.
func (r *Report) WarningCount() int { return r.count(Warning) }

// InfoCount returns the number of INFO problems.
func (r *Report) InfoCount() int { return r.count(Info) }

// IsValid returns true if there are no FATAL or ERROR problems.
func (r *Report) IsValid() bool {
	return r.FatalCount() == 0 && r.ErrorCount() == 0
}
