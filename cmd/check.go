package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/h4x3rotab/repoview/internal/scanner"
)

// ErrBrokenLinks is returned by check --fail when the scan found broken links.
var ErrBrokenLinks = errors.New("broken links found")

var (
	checkFormat string
	checkFail   bool
)

var checkCmd = &cobra.Command{
	Use:     "check [repo]",
	Aliases: []string{"c"},
	Short:   "Scan a repository once for broken internal links",
	Long: `Render every markdown document in the repository, resolve each internal
link and image against the repository, and print the links that do not
resolve.

Examples:
  repoview check                  # Table report for the current directory
  repoview check docs -f json     # JSON report
  repoview check --fail           # Exit non-zero when links are broken`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "table", "Output format (table|json|yaml)")
	checkCmd.Flags().BoolVar(&checkFail, "fail", false, "Exit with an error when broken links are found")

	AddFlagValidation(checkCmd, "format", func(format string) error {
		return ValidateFormat(format, reportFormats)
	})
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	result, err := a.scanner.ScanOnce(ctx, a.scanOptions())
	if err != nil {
		return fmt.Errorf("scanning %s: %w", a.sandbox.Root(), err)
	}

	if err := writeReport(cmd.OutOrStdout(), result, checkFormat); err != nil {
		return err
	}
	if checkFail && len(result.Broken) > 0 {
		return fmt.Errorf("%d %w", len(result.Broken), ErrBrokenLinks)
	}

	return nil
}

func writeReport(w io.Writer, result *scanner.ScanResult, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(result)
	case "table", "":
		return writeReportTable(w, result)
	default:
		return ValidateFormat(format, reportFormats)
	}
}

func writeReportTable(w io.Writer, result *scanner.ScanResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(result.Broken) > 0 {
		fmt.Fprintln(tw, "SOURCE\tKIND\tREASON\tURL\tTARGET")
		fmt.Fprintln(tw, "------\t----\t------\t---\t------")
		for _, b := range result.Broken {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Source, b.Kind, b.Reason, b.URL, b.Target)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintf(tw, "Files: %d  URLs: %d  Broken: %d  (%dms)\n",
		result.FilesScanned, result.URLsChecked, len(result.Broken), result.DurationMs)

	return tw.Flush()
}
