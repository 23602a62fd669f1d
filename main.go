package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/adammathes/labelverify/pkg/config"
	"github.com/adammathes/labelverify/pkg/report"
	"github.com/adammathes/labelverify/pkg/validate"
)

const version = "0.1.0"

var (
	flagCatalogs         []string
	flagChecksumManifest string
	flagSkipProducts     bool
	flagNoDataCheck      bool
	flagForceSchema      bool
	flagExpandedIDs      bool
	flagFilters          []string
	flagJSON             string
	flagVerbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "labelverify <target>...",
	Short: "Reference and integrity checker for XML product labels",
	Long: `labelverify checks XML product labels and the files they reference:
every referenced file must exist, match the case recorded on disk, and
agree with the MD5 checksums and file sizes declared in the label and
in an optional checksum manifest. Schema and schematron references can
be resolved through OASIS XML catalogs.

Exit Codes:
  0 - No errors
  1 - Errors found
  2 - Fatal problems, or the run could not start`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringArrayVarP(&flagCatalogs, "catalog", "C", nil, "XML catalog file used to resolve schema and schematron references (repeatable)")
	rootCmd.Flags().StringVarP(&flagChecksumManifest, "checksum-manifest", "M", "", "checksum manifest file with MD5 digests of the files to check")
	rootCmd.Flags().BoolVar(&flagSkipProducts, "skip-product-validation", false, "skip file-object validation within each label")
	rootCmd.Flags().BoolVarP(&flagNoDataCheck, "no-data-check", "D", false, "disable data content validation")
	rootCmd.Flags().BoolVar(&flagForceSchema, "force-schema-validation", false, "check that declared schema and schematron references resolve")
	rootCmd.Flags().BoolVar(&flagExpandedIDs, "expanded-system-ids", false, "resolve catalog lookups with expanded instead of literal system identifiers")
	rootCmd.Flags().StringArrayVar(&flagFilters, "filter", nil, "wildcard file filter for directory targets (repeatable, default \"*.xml\")")
	rootCmd.Flags().StringVarP(&flagJSON, "json", "j", "", "also write the JSON report to this file (\"-\" for stdout only)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log.SetLevel(log.WarnLevel)
	if flagVerbose {
		log.SetLevel(log.DebugLevel)
	}

	merged := report.NewReport()
	for _, target := range args {
		opts, err := optionsFor(target)
		if err != nil {
			return err
		}
		r, err := validate.ValidateWithOptions(target, opts)
		if err != nil {
			return err
		}
		for _, p := range r.Problems {
			merged.AddProblem(p)
		}
	}

	merged.WriteText(os.Stderr)
	if err := merged.WriteJSON(os.Stdout); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	if flagJSON != "" && flagJSON != "-" {
		if err := writeJSONFile(merged, flagJSON); err != nil {
			return fmt.Errorf("writing JSON: %w", err)
		}
	}

	if merged.FatalCount() > 0 {
		os.Exit(2)
	}
	if merged.ErrorCount() > 0 {
		os.Exit(1)
	}
	return nil
}

// optionsFor builds run options for one target, starting from a
// labelverify.yaml next to the target and letting flags override it.
func optionsFor(target string) (validate.Options, error) {
	opts := validate.Options{
		Catalogs:              flagCatalogs,
		ChecksumManifest:      flagChecksumManifest,
		SkipProductValidation: flagSkipProducts,
		NoDataCheck:           flagNoDataCheck,
		ForceSchemaValidation: flagForceSchema,
		ExpandedSystemIDs:     flagExpandedIDs,
		FileFilters:           flagFilters,
	}

	dir := target
	if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
		dir = filepath.Dir(target)
	}
	cfg, err := config.Load(dir)
	if errors.Is(err, config.ErrConfigNotFound) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("loading %s: %w", filepath.Join(dir, config.ConfigFileName), err)
	}
	log.Debug("loaded run config", "dir", dir)

	if len(opts.Catalogs) == 0 {
		opts.Catalogs = cfg.Catalogs
	}
	if opts.ChecksumManifest == "" {
		opts.ChecksumManifest = cfg.ChecksumManifest
	}
	if !opts.SkipProductValidation {
		opts.SkipProductValidation = cfg.SkipProductValidation
	}
	if !opts.NoDataCheck {
		opts.NoDataCheck = cfg.NoDataCheck
	}
	if !opts.ForceSchemaValidation {
		opts.ForceSchemaValidation = cfg.ForceSchemaValidation
	}
	if !opts.ExpandedSystemIDs {
		opts.ExpandedSystemIDs = cfg.ExpandedSystemIDs
	}
	if len(opts.FileFilters) == 0 {
		opts.FileFilters = cfg.FileFilters
	}
	return opts, nil
}

func writeJSONFile(r *report.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.WriteJSON(f)
}
