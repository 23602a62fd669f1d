package report

import (
	"fmt"
	"io"
)

// WriteText writes one line per problem to w, then a single verdict
// line. This is the stderr output of the command line tool.
func (r *Report) WriteText(w io.Writer) {
	for _, p := range r.Problems {
		fmt.Fprintln(w, p.String())
	}
	switch {
	case !r.IsValid():
		fmt.Fprintf(w, "Validation failed: %d fatal, %d error(s), %d warning(s).\n",
			r.FatalCount(), r.ErrorCount(), r.WarningCount())
	case r.WarningCount() > 0:
		fmt.Fprintf(w, "Validation passed with %d warning(s).\n", r.WarningCount())
	default:
		fmt.Fprintln(w, "Validation passed.")
	}
}
