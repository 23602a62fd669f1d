// Command labelcompare runs the checker against a target and compares
// the problems found with a previously saved JSON report, printing
// what appeared and what disappeared. Useful for catching regressions
// across checker changes against a fixed archive.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/adammathes/labelverify/pkg/report"
	"github.com/adammathes/labelverify/pkg/validate"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: labelcompare <target> <baseline.json>")
	fmt.Fprintln(os.Stderr, "       labelcompare -save <target> <baseline.json>")
	os.Exit(2)
}

func main() {
	args := os.Args[1:]
	save := false
	if len(args) > 0 && args[0] == "-save" {
		save = true
		args = args[1:]
	}
	if len(args) != 2 {
		usage()
	}
	target, baselinePath := args[0], args[1]

	rpt, err := validate.Validate(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}

	if save {
		f, err := os.Create(baselinePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		if err := rpt.WriteJSON(f); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Saved baseline with %d problems to %s\n", len(rpt.Problems), baselinePath)
		return
	}

	baseline, err := loadBaseline(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}

	added, removed := diff(baseline.Problems, rpt.Problems)
	for _, k := range added {
		fmt.Printf("+ %s\n", k)
	}
	for _, k := range removed {
		fmt.Printf("- %s\n", k)
	}
	if len(added) == 0 && len(removed) == 0 {
		fmt.Println("No discrepancies.")
		return
	}
	fmt.Printf("%d new, %d no longer reported\n", len(added), len(removed))
	os.Exit(1)
}

func loadBaseline(path string) (*report.JSONOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out report.JSONOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	return &out, nil
}

// key identifies a problem for comparison. Messages carry generated
// digests and sizes, so severity, type and target are enough to line
// reports up without false churn.
func key(p report.Problem) string {
	return fmt.Sprintf("%s(%s) %s", p.Severity, p.Type, p.Target.Location)
}

// diff returns the problem keys only in current (added) and only in
// baseline (removed), each sorted and counted by multiplicity.
func diff(baseline, current []report.Problem) (added, removed []string) {
	base := map[string]int{}
	for _, p := range baseline {
		base[key(p)]++
	}
	cur := map[string]int{}
	for _, p := range current {
		cur[key(p)]++
	}
	for k, n := range cur {
		for i := base[k]; i < n; i++ {
			added = append(added, k)
		}
	}
	for k, n := range base {
		for i := cur[k]; i < n; i++ {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
