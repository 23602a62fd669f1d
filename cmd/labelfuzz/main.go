// Command labelfuzz generates randomized product bundles with injected
// reference and integrity faults, runs the checker over each, and
// reports faults the checker failed to flag.
package main

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adammathes/labelverify/pkg/report"
	"github.com/adammathes/labelverify/pkg/validate"
)

// Fault describes a single mutation applied to a generated bundle.
type Fault struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Expect is the problem type the checker must report for this
	// fault, or "" when the fault is benign.
	Expect report.ProblemType `json:"expect,omitempty"`
}

// BundleSpec describes the parameters used to generate a bundle.
type BundleSpec struct {
	ID       int     `json:"id"`
	Faults   []Fault `json:"faults"`
	Dir      string  `json:"dir"`
	Products int     `json:"num_products"`
}

// faultFunc mutates a bundle builder to inject a fault.
type faultFunc struct {
	name        string
	description string
	expect      report.ProblemType
	apply       func(b *bundleBuilder, rng *rand.Rand)
	weight      int
}

var allFaults = []faultFunc{
	{
		name:        "missing_data_file",
		description: "Reference a data file that is never written",
		expect:      report.MissingReferencedFile,
		weight:      4,
		apply: func(b *bundleBuilder, rng *rand.Rand) {
			b.pick(rng).omitData = true
		},
	},
	{
		name:        "corrupt_checksum",
		description: "Declare a checksum that does not match the data",
		expect:      report.ChecksumMismatch,
		weight:      4,
		apply: func(b *bundleBuilder, rng *rand.Rand) {
			b.pick(rng).corruptChecksum = true
		},
	},
	{
		name:        "wrong_filesize",
		description: "Declare a file size off by a random amount",
		expect:      report.FilesizeMismatch,
		weight:      4,
		apply: func(b *bundleBuilder, rng *rand.Rand) {
			b.pick(rng).sizeDelta = 1 + rng.Intn(100)
		},
	},
	{
		// Benign without a checksum manifest: a blank checksum has
		// nothing to reconcile against and is not reported.
		name:        "blank_checksum",
		description: "Leave the md5_checksum element empty",
		weight:      2,
		apply: func(b *bundleBuilder, rng *rand.Rand) {
			b.pick(rng).blankChecksum = true
		},
	},
	{
		name:        "blank_filesize",
		description: "Leave the file_size element empty",
		expect:      report.MissingFilesizeInfo,
		weight:      2,
		apply: func(b *bundleBuilder, rng *rand.Rand) {
			b.pick(rng).blankFilesize = true
		},
	},
	{
		name:        "missing_file_name",
		description: "Drop the file_name element from a file object",
		expect:      report.UnknownValue,
		weight:      2,
		apply: func(b *bundleBuilder, rng *rand.Rand) {
			b.pick(rng).omitName = true
		},
	},
	{
		name:        "truncated_label",
		description: "Cut the label off mid-element",
		expect:      report.InternalError,
		weight:      1,
		apply: func(b *bundleBuilder, rng *rand.Rand) {
			b.pick(rng).truncate = true
		},
	},
}

// productSpec is one product in a generated bundle.
type productSpec struct {
	id   int
	data []byte

	omitData        bool
	corruptChecksum bool
	blankChecksum   bool
	blankFilesize   bool
	omitName        bool
	truncate        bool
	sizeDelta       int
}

type bundleBuilder struct {
	products []*productSpec
	faulted  map[int]bool
}

// pick selects a product that has no fault yet, so one fault cannot
// mask another's expected problem.
func (b *bundleBuilder) pick(rng *rand.Rand) *productSpec {
	if b.faulted == nil {
		b.faulted = map[int]bool{}
	}
	var clean []*productSpec
	for _, p := range b.products {
		if !b.faulted[p.id] {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		clean = b.products
	}
	p := clean[rng.Intn(len(clean))]
	b.faulted[p.id] = true
	return p
}

func newBuilder(numProducts int, rng *rand.Rand) *bundleBuilder {
	b := &bundleBuilder{}
	for i := 0; i < numProducts; i++ {
		data := make([]byte, 64+rng.Intn(4096))
		rng.Read(data)
		b.products = append(b.products, &productSpec{id: i, data: data})
	}
	return b
}

// build writes the bundle under dir: one label per product plus its
// data file.
func (b *bundleBuilder) build(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0755); err != nil {
		return err
	}
	for _, p := range b.products {
		dataName := fmt.Sprintf("product_%04d.img", p.id)
		if !p.omitData {
			if err := os.WriteFile(filepath.Join(dir, "data", dataName), p.data, 0644); err != nil {
				return err
			}
		}
		label := p.label(dataName)
		if p.truncate {
			label = label[:len(label)/2]
		}
		name := fmt.Sprintf("product_%04d.xml", p.id)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(label), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (p *productSpec) label(dataName string) string {
	sum := md5.Sum(p.data)
	digest := hex.EncodeToString(sum[:])
	if p.corruptChecksum {
		digest = strings.Repeat("0", 32)
	}
	size := strconv.Itoa(len(p.data) + p.sizeDelta)

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<Product_Observational xmlns="http://pds.nasa.gov/pds4/pds/v1">` + "\n")
	fmt.Fprintf(&sb, "  <Identification_Area>\n    <logical_identifier>urn:nasa:pds:fuzz:data:product_%04d</logical_identifier>\n  </Identification_Area>\n", p.id)
	sb.WriteString("  <File_Area_Observational>\n    <File>\n")
	if !p.omitName {
		fmt.Fprintf(&sb, "      <file_name>%s</file_name>\n", dataName)
		sb.WriteString("      <directory_path_name>data</directory_path_name>\n")
	}
	if p.blankChecksum {
		sb.WriteString("      <md5_checksum></md5_checksum>\n")
	} else {
		fmt.Fprintf(&sb, "      <md5_checksum>%s</md5_checksum>\n", digest)
	}
	if p.blankFilesize {
		sb.WriteString("      <file_size unit=\"byte\"></file_size>\n")
	} else {
		fmt.Fprintf(&sb, "      <file_size unit=\"byte\">%s</file_size>\n", size)
	}
	sb.WriteString("    </File>\n  </File_Area_Observational>\n</Product_Observational>\n")
	return sb.String()
}

func generateBundle(id int, outDir string, rng *rand.Rand) (*BundleSpec, error) {
	numProducts := 1 + rng.Intn(5)
	b := newBuilder(numProducts, rng)

	spec := &BundleSpec{
		ID:       id,
		Dir:      filepath.Join(outDir, fmt.Sprintf("bundle_%04d", id)),
		Products: numProducts,
	}

	numFaults := rng.Intn(3)
	if numFaults > numProducts {
		numFaults = numProducts
	}
	total := 0
	for _, f := range allFaults {
		total += f.weight
	}
	for i := 0; i < numFaults; i++ {
		n := rng.Intn(total)
		for _, f := range allFaults {
			n -= f.weight
			if n < 0 {
				f.apply(b, rng)
				spec.Faults = append(spec.Faults, Fault{
					Name:        f.name,
					Description: f.description,
					Expect:      f.expect,
				})
				break
			}
		}
	}

	if err := b.build(spec.Dir); err != nil {
		return nil, err
	}
	return spec, nil
}

// checkBundle runs the checker and returns the expected problem types
// it failed to report.
func checkBundle(spec *BundleSpec) ([]report.ProblemType, error) {
	rpt, err := validate.Validate(spec.Dir)
	if err != nil {
		return nil, err
	}
	seen := map[report.ProblemType]bool{}
	for _, p := range rpt.Problems {
		seen[p.Type] = true
	}
	var missed []report.ProblemType
	for _, f := range spec.Faults {
		if f.Expect != "" && !seen[f.Expect] {
			missed = append(missed, f.Expect)
		}
	}
	return missed, nil
}

func main() {
	count := flag.Int("n", 100, "number of bundles to generate")
	outDir := flag.String("out", "fuzz-corpus", "output directory")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	keep := flag.Bool("keep", false, "keep generated bundles instead of deleting clean ones")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	fmt.Printf("seed: %d\n", *seed)

	var specs []*BundleSpec
	failures := 0
	for i := 0; i < *count; i++ {
		spec, err := generateBundle(i, *outDir, rng)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate %d: %v\n", i, err)
			os.Exit(1)
		}
		specs = append(specs, spec)

		missed, err := checkBundle(spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "check %s: %v\n", spec.Dir, err)
			os.Exit(1)
		}
		if len(missed) > 0 {
			failures++
			fmt.Printf("MISSED %s: %v\n", spec.Dir, missed)
			continue
		}
		if !*keep {
			os.RemoveAll(spec.Dir)
		}
	}

	manifest, err := json.MarshalIndent(specs, "", "  ")
	if err == nil {
		os.WriteFile(filepath.Join(*outDir, "manifest.json"), manifest, 0644)
	}
	fmt.Printf("%d bundles, %d with missed faults\n", *count, failures)
	if failures > 0 {
		os.Exit(1)
	}
}
