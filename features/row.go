package features

import (
	"fmt"
	"strings"
)

// Row is a single feature row: an insertion-ordered map of column name to value
type Row struct {
	names  []string
	values []float64
	index  map[string]int
}

// NewRow creates an empty row with room for n columns
func NewRow(n int) *Row {
	return &Row{
		names:  make([]string, 0, n),
		values: make([]float64, 0, n),
		index:  make(map[string]int, n),
	}
}

// Set stores a value. New names are appended; existing names keep their position.
func (r *Row) Set(name string, v float64) {
	if i, ok := r.index[name]; ok {
		r.values[i] = v
		return
	}
	r.index[name] = len(r.names)
	r.names = append(r.names, name)
	r.values = append(r.values, v)
}

// Get returns the value of a column
func (r *Row) Get(name string) (float64, bool) {
	i, ok := r.index[name]
	if !ok {
		return 0, false
	}
	return r.values[i], true
}

// Has reports whether the column is present
func (r *Row) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Len returns the number of columns
func (r *Row) Len() int { return len(r.names) }

// Columns returns a copy of the column names in order
func (r *Row) Columns() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Values returns a copy of the values in column order
func (r *Row) Values() []float64 {
	out := make([]float64, len(r.values))
	copy(out, r.values)
	return out
}

// Map returns the row as a plain map, losing the order
func (r *Row) Map() map[string]float64 {
	out := make(map[string]float64, len(r.names))
	for i, name := range r.names {
		out[name] = r.values[i]
	}
	return out
}

func (r *Row) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%g", name, r.values[i])
	}
	b.WriteByte('}')
	return b.String()
}

// Columns is the ordered list of feature names a regressor was fit against
type Columns []string

// MaxColumns bounds the size of an expected column list
const MaxColumns = 10000

// Validate checks that the list is usable as an expected column layout
func (c Columns) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("expected columns cannot be empty")
	}
	if len(c) > MaxColumns {
		return fmt.Errorf("expected columns contain %d names, maximum allowed is %d", len(c), MaxColumns)
	}

	seen := make(map[string]int, len(c))
	for i, name := range c {
		if name == "" {
			return fmt.Errorf("column %d has an empty name", i)
		}
		if strings.TrimSpace(name) != name {
			return fmt.Errorf("column %d has leading/trailing whitespace: %q", i, name)
		}
		if j, dup := seen[name]; dup {
			return fmt.Errorf("column %q appears at positions %d and %d", name, j, i)
		}
		seen[name] = i
	}
	return nil
}

// Contains reports whether name is one of the columns
func (c Columns) Contains(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}
