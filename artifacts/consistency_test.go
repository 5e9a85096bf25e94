package artifacts

import (
	"strconv"
	"strings"
	"testing"

	"github.com/liamcoop/carprice/features"
	"github.com/liamcoop/carprice/model"
)

// fullColumns returns year, km_driven and one indicator per table code
func fullColumns(tables features.Tables) features.Columns {
	cols := features.Columns{features.ColumnYear, features.ColumnKmDriven}
	for _, f := range features.Fields {
		table, _ := tables.Lookup(f)
		for code := 1; code <= table.Len(); code++ {
			cols = append(cols, features.IndicatorColumn(f, strconv.Itoa(code)))
		}
	}
	return cols
}

func bundleFor(t *testing.T, cols features.Columns) *Bundle {
	t.Helper()
	r, err := model.NewLinear(0, make([]float64, len(cols)))
	if err != nil {
		t.Fatalf("NewLinear() failed: %v", err)
	}
	return &Bundle{Regressor: r, Columns: cols}
}

func TestCheckConsistencyClean(t *testing.T) {
	tables := features.DefaultTables()
	report := CheckConsistency(bundleFor(t, fullColumns(tables)), tables)

	if !report.OK() {
		t.Fatalf("expected no errors, got %v", report.Errors)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", report.Warnings)
	}
	if report.Err() != nil {
		t.Errorf("Err() = %v, want nil", report.Err())
	}
}

func TestCheckConsistencyWarnsOnBaselineCategories(t *testing.T) {
	tables := features.DefaultTables()
	report := CheckConsistency(bundleFor(t, testColumns), tables)

	if !report.OK() {
		t.Fatalf("expected no errors, got %v", report.Errors)
	}

	// testColumns covers 2 brands, 2 fuels and one code of each other field
	total := 0
	for _, f := range features.Fields {
		table, _ := tables.Lookup(f)
		total += table.Len()
	}
	if want := total - 7; len(report.Warnings) != want {
		t.Errorf("got %d warnings, want %d", len(report.Warnings), want)
	}
}

func TestCheckConsistencyErrors(t *testing.T) {
	testCases := []struct {
		name    string
		columns features.Columns
		wantCol string
	}{
		{
			name:    "Missing year",
			columns: features.Columns{"km_driven", "name_1"},
			wantCol: "year",
		},
		{
			name:    "Unknown prefix",
			columns: features.Columns{"year", "km_driven", "colour_1"},
			wantCol: "colour_1",
		},
		{
			name:    "Label suffix from a different encoding",
			columns: features.Columns{"year", "km_driven", "fuel_Diesel"},
			wantCol: "fuel_Diesel",
		},
		{
			name:    "Code outside table",
			columns: features.Columns{"year", "km_driven", "transmission_3"},
			wantCol: "transmission_3",
		},
		{
			name:    "Code zero",
			columns: features.Columns{"year", "km_driven", "owner_0"},
			wantCol: "owner_0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			report := CheckConsistency(bundleFor(t, tc.columns), features.DefaultTables())
			if report.OK() {
				t.Fatal("expected errors")
			}
			found := false
			for _, issue := range report.Errors {
				if issue.Column == tc.wantCol {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for column %s: %v", tc.wantCol, report.Errors)
			}
			if err := report.Err(); err == nil || !strings.Contains(err.Error(), tc.wantCol) {
				t.Errorf("Err() = %v, want mention of %s", err, tc.wantCol)
			}
		})
	}
}

func TestCheckConsistencyFeatureCount(t *testing.T) {
	b := bundleFor(t, testColumns)
	b.Columns = b.Columns[:4]

	report := CheckConsistency(b, features.DefaultTables())
	if report.OK() {
		t.Fatal("expected a feature count error")
	}
	if !strings.Contains(report.Errors[0].Message, "expects 9 features") {
		t.Errorf("unexpected first error: %v", report.Errors[0])
	}
}

func TestCheckConsistencyMissingTable(t *testing.T) {
	tables := features.DefaultTables()
	delete(tables, features.FieldOwner)

	report := CheckConsistency(bundleFor(t, testColumns), tables)
	if report.OK() {
		t.Fatal("expected errors for missing owner table")
	}
}
