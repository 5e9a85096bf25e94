// Package dataset loads the reference listings CSV used to populate
// selection lists and default input bounds. Inference never reads it.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/liamcoop/carprice/features"
)

// Required header columns
const (
	ColName         = "name"
	ColYear         = "year"
	ColSellingPrice = "selling_price"
	ColKmDriven     = "km_driven"
	ColFuel         = "fuel"
	ColSellerType   = "seller_type"
	ColTransmission = "transmission"
	ColOwner        = "owner"
)

var requiredColumns = []string{
	ColName, ColYear, ColSellingPrice, ColKmDriven, ColFuel, ColSellerType, ColTransmission, ColOwner,
}

// Listing is one row of the reference dataset
type Listing struct {
	features.RawInput
	SellingPrice float64 `json:"selling_price"`
	Model        string  `json:"model"`
}

// Dataset holds the parsed listings
type Dataset struct {
	Path    string
	Rows    []Listing
	Skipped int
}

// Load reads the CSV at path
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	ds.Path = path
	return ds, nil
}

// Read parses CSV listings from r. The header must contain every required
// column; extra columns are ignored. Rows with a wrong field count or
// unparsable numbers are counted in Skipped.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("header is missing column %q", col)
		}
	}

	ds := &Dataset{}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				ds.Skipped++
				continue
			}
			return nil, err
		}
		if len(rec) != len(header) {
			ds.Skipped++
			continue
		}

		listing, ok := parseListing(rec, index)
		if !ok {
			ds.Skipped++
			continue
		}
		ds.Rows = append(ds.Rows, listing)
	}
	return ds, nil
}

func parseListing(rec []string, index map[string]int) (Listing, bool) {
	get := func(col string) string { return strings.TrimSpace(rec[index[col]]) }

	year, err := strconv.Atoi(get(ColYear))
	if err != nil {
		return Listing{}, false
	}
	km, err := strconv.Atoi(get(ColKmDriven))
	if err != nil {
		return Listing{}, false
	}
	price, err := strconv.ParseFloat(get(ColSellingPrice), 64)
	if err != nil {
		return Listing{}, false
	}

	brand, model := SplitName(get(ColName))
	if brand == "" {
		return Listing{}, false
	}

	return Listing{
		RawInput: features.RawInput{
			Brand:        brand,
			Year:         year,
			KmDriven:     km,
			Fuel:         get(ColFuel),
			SellerType:   get(ColSellerType),
			Transmission: get(ColTransmission),
			Owner:        get(ColOwner),
		},
		SellingPrice: price,
		Model:        model,
	}, true
}

// SplitName separates the brand (first space-delimited token) from the
// rest of a listing name
func SplitName(name string) (brand, model string) {
	name = strings.TrimSpace(name)
	brand, model, _ = strings.Cut(name, " ")
	return brand, strings.TrimSpace(model)
}

// Len returns the number of parsed rows
func (d *Dataset) Len() int { return len(d.Rows) }

// Brands returns the distinct brands in sorted order
func (d *Dataset) Brands() []string {
	brands := d.Labels(features.FieldBrand)
	sort.Strings(brands)
	return brands
}

// Labels returns the distinct values of a field in first-appearance order
func (d *Dataset) Labels(f features.Field) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range d.Rows {
		v := row.Value(f)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// YearRange returns the oldest and newest model years, or ok=false when
// the dataset has no rows
func (d *Dataset) YearRange() (minYear, maxYear int, ok bool) {
	if len(d.Rows) == 0 {
		return 0, 0, false
	}
	minYear, maxYear = d.Rows[0].Year, d.Rows[0].Year
	for _, row := range d.Rows[1:] {
		minYear = min(minYear, row.Year)
		maxYear = max(maxYear, row.Year)
	}
	return minYear, maxYear, true
}

// MaxKm returns the largest km_driven value, or 0 for an empty dataset
func (d *Dataset) MaxKm() int {
	var m int
	for _, row := range d.Rows {
		m = max(m, row.KmDriven)
	}
	return m
}

// Uncovered returns, per field, the dataset labels absent from the tables.
// These are inputs the codec will reject even though they appear in the
// reference data.
func (d *Dataset) Uncovered(tables features.Tables) map[features.Field][]string {
	out := make(map[features.Field][]string)
	for _, f := range features.Fields {
		table, err := tables.Lookup(f)
		if err != nil {
			continue
		}
		for _, label := range d.Labels(f) {
			if _, ok := table.Code(label); !ok {
				out[f] = append(out[f], label)
			}
		}
	}
	return out
}
