package report

import (
	"encoding/json"
	"io"
)

// JSONOutput is the machine-readable report. The baseline comparison
// tool reads it back, so problem entries keep every field of Problem.
type JSONOutput struct {
	Valid    bool      `json:"valid"`
	Summary  Summary   `json:"summary"`
	Problems []Problem `json:"problems"`
}

// Summary tallies a report by severity.
type Summary struct {
	Fatal    int `json:"fatal"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// WriteJSON writes the report as indented JSON to w. An empty report
// encodes problems as an empty array, never null.
func (r *Report) WriteJSON(w io.Writer) error {
	out := JSONOutput{
		Valid: r.IsValid(),
		Summary: Summary{
			Fatal:    r.FatalCount(),
			Errors:   r.ErrorCount(),
			Warnings: r.WarningCount(),
			Infos:    r.InfoCount(),
		},
		Problems: r.Problems,
	}
	if out.Problems == nil {
		out.Problems = []Problem{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
