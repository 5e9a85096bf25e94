package main

import (
	"fmt"

	"github.com/liamcoop/carprice/artifacts"
	"github.com/liamcoop/carprice/features"
	"github.com/spf13/cobra"
)

var verifyWarnings bool

// verifyCmd checks an artifact bundle against the category tables
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the artifacts match the category tables",
	Long: `Load the artifact bundle and compare its columns with the category
tables used to encode requests.

Errors mean predictions would be silently wrong and the server refuses to
start in strict mode. Warnings list categories the model never saw; they are
priced as the baseline category.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyWarnings, "warnings", false, "List every warning instead of a count")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bundle, release, err := loadBundle(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer release()

	out := cmd.OutOrStdout()
	report := artifacts.CheckConsistency(bundle, features.DefaultTables())

	fmt.Fprintf(out, "%s %s (%s, %d columns)\n",
		headingColor.Sprint("Bundle:"), bundle.Name, bundle.Regressor.Kind(), len(bundle.Columns))

	for _, issue := range report.Errors {
		fmt.Fprintf(out, "%s %s\n", errorColor.Sprint("error:"), issue)
	}
	if verifyWarnings {
		for _, issue := range report.Warnings {
			fmt.Fprintf(out, "%s %s\n", warnColor.Sprint("warning:"), issue)
		}
	} else if len(report.Warnings) > 0 {
		fmt.Fprintf(out, "%s %d categories have no column (use --warnings to list)\n",
			warnColor.Sprint("warning:"), len(report.Warnings))
	}

	if !report.OK() {
		return report.Err()
	}
	fmt.Fprintln(out, priceColor.Sprint("ok"))
	return nil
}
