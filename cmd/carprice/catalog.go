package main

import (
	"fmt"
	"strings"

	"github.com/liamcoop/carprice/dataset"
	"github.com/liamcoop/carprice/features"
	"github.com/spf13/cobra"
)

var catalogDataset string

// catalogCmd lists the accepted category labels
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the accepted values of every categorical field",
	Long: `Print the category tables in code order.

With --dataset the reference listings are loaded as well and any label they
use that the tables do not know is reported.`,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().StringVar(&catalogDataset, "dataset", "", "Reference listings CSV (overrides dataset.path)")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Dataset.Path
	if catalogDataset != "" {
		path = catalogDataset
	}

	out := cmd.OutOrStdout()
	tables := features.DefaultTables()

	for _, f := range features.Fields {
		table, err := tables.Lookup(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", headingColor.Sprint(f))
		for i, label := range table.Labels() {
			fmt.Fprintf(out, "  %s %s\n", dimColor.Sprintf("%2d", i+1), label)
		}
	}

	if path == "" {
		return nil
	}

	ds, err := dataset.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s: %d listings, %d skipped\n", headingColor.Sprint("Dataset"), ds.Path, ds.Len(), ds.Skipped)
	if lo, hi, ok := ds.YearRange(); ok {
		fmt.Fprintf(out, "  years %d - %d, max km %d\n", lo, hi, ds.MaxKm())
	}

	uncovered := ds.Uncovered(tables)
	for _, f := range features.Fields {
		if labels := uncovered[f]; len(labels) > 0 {
			fmt.Fprintf(out, "%s %s values not in the table: %s\n",
				warnColor.Sprint("warning:"), f, strings.Join(labels, ", "))
		}
	}
	return nil
}
