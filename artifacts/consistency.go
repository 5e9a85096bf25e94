package artifacts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/liamcoop/carprice/features"
)

// Issue is a single finding of the consistency check
type Issue struct {
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Column == "" {
		return i.Message
	}
	return i.Column + ": " + i.Message
}

// Report lists what CheckConsistency found. Errors mean the bundle and the
// category tables disagree and predictions would be silently wrong.
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// OK reports whether no errors were found
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Err summarizes the errors, or returns nil
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, issue := range r.Errors {
		msgs[i] = issue.String()
	}
	return fmt.Errorf("artifact/codec mismatch: %s", strings.Join(msgs, "; "))
}

func (r *Report) errorf(column, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(column, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Column: column, Message: fmt.Sprintf(format, args...)})
}

// CheckConsistency compares the expected columns of a bundle with the
// category tables the codec will use. It cannot prove the tables match the
// training encoding, but it catches every skew visible from the column names.
func CheckConsistency(b *Bundle, tables features.Tables) Report {
	var r Report

	if b.Regressor != nil && b.Regressor.NumFeatures() != len(b.Columns) {
		r.errorf("", "regressor expects %d features but %d columns were supplied",
			b.Regressor.NumFeatures(), len(b.Columns))
	}

	for _, numeric := range []string{features.ColumnYear, features.ColumnKmDriven} {
		if !b.Columns.Contains(numeric) {
			r.errorf(numeric, "numeric column missing")
		}
	}

	covered := make(map[features.Field]map[int]bool, len(features.Fields))
	for _, f := range features.Fields {
		covered[f] = make(map[int]bool)
	}

	for _, col := range b.Columns {
		if col == features.ColumnYear || col == features.ColumnKmDriven {
			continue
		}

		field, suffix, ok := splitIndicator(col)
		if !ok {
			r.errorf(col, "column matches no numeric input or category prefix")
			continue
		}

		table, err := tables.Lookup(field)
		if err != nil {
			r.errorf(col, "no category table for field %s", field)
			continue
		}

		code, err := strconv.Atoi(suffix)
		if err != nil {
			r.errorf(col, "indicator suffix %q is not a category code; the model was trained on a different encoding", suffix)
			continue
		}
		if _, ok := table.Label(code); !ok {
			r.errorf(col, "code %d is outside the %s table (1..%d)", code, field, table.Len())
			continue
		}
		covered[field][code] = true
	}

	for _, f := range features.Fields {
		table, err := tables.Lookup(f)
		if err != nil {
			r.errorf("", "no category table for field %s", f)
			continue
		}
		for code, label := range table.Labels() {
			if !covered[f][code+1] {
				r.warnf(features.IndicatorColumn(f, strconv.Itoa(code+1)),
					"%s %q has no column; the model never saw it and treats it as the baseline", f, label)
			}
		}
	}

	return r
}

func splitIndicator(col string) (features.Field, string, bool) {
	for _, f := range features.Fields {
		prefix := f.Prefix() + "_"
		if strings.HasPrefix(col, prefix) && len(col) > len(prefix) {
			return f, col[len(prefix):], true
		}
	}
	return "", "", false
}
