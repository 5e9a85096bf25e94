package features

import "fmt"

// CategoryTable maps category labels to integer codes.
// Codes start at 1 and follow the order of the labels it was built from.
type CategoryTable struct {
	field  Field
	labels []string
	codes  map[string]int
}

// NewCategoryTable builds a table from labels in code order
func NewCategoryTable(field Field, labels ...string) (*CategoryTable, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("table %s must contain at least one label", field)
	}

	t := &CategoryTable{
		field:  field,
		labels: make([]string, len(labels)),
		codes:  make(map[string]int, len(labels)),
	}
	for i, label := range labels {
		if label == "" {
			return nil, fmt.Errorf("table %s has an empty label at position %d", field, i)
		}
		if _, dup := t.codes[label]; dup {
			return nil, fmt.Errorf("table %s has duplicate label %q", field, label)
		}
		t.labels[i] = label
		t.codes[label] = i + 1
	}
	return t, nil
}

// MustCategoryTable is NewCategoryTable for static tables
func MustCategoryTable(field Field, labels ...string) *CategoryTable {
	t, err := NewCategoryTable(field, labels...)
	if err != nil {
		panic(err)
	}
	return t
}

// Field returns the field the table encodes
func (t *CategoryTable) Field() Field { return t.field }

// Len returns the number of labels
func (t *CategoryTable) Len() int { return len(t.labels) }

// Code looks up a label. Matching is exact and case-sensitive.
func (t *CategoryTable) Code(label string) (int, bool) {
	code, ok := t.codes[label]
	return code, ok
}

// Label returns the label for a code
func (t *CategoryTable) Label(code int) (string, bool) {
	if code < 1 || code > len(t.labels) {
		return "", false
	}
	return t.labels[code-1], true
}

// Labels returns a copy of the labels in code order
func (t *CategoryTable) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Tables groups the category tables of every field
type Tables map[Field]*CategoryTable

// Lookup returns the table of a field
func (ts Tables) Lookup(f Field) (*CategoryTable, error) {
	t, ok := ts[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	return t, nil
}

// These must stay identical to the encoding used when the shipped
// regressor was trained, including spelling and order.
var (
	ownerLabels = []string{
		"First Owner", "Second Owner", "Fourth & Above Owner", "Third Owner", "Test Drive Car",
	}
	fuelLabels = []string{
		"Petrol", "Diesel", "CNG", "LPG", "Electric",
	}
	sellerTypeLabels = []string{
		"Individual", "Dealer", "Trustmark Dealer",
	}
	transmissionLabels = []string{
		"Manual", "Automatic",
	}
	brandLabels = []string{
		"Maruti", "Hyundai", "Datsun", "Honda", "Tata", "Chevrolet",
		"Toyota", "Jaguar", "Mercedes-Benz", "Audi", "Skoda", "Jeep",
		"BMW", "Mahindra", "Ford", "Nissan", "Renault", "Fiat",
		"Volkswagen", "Volvo", "Mitsubishi", "Land", "Daewoo", "MG",
		"Force", "Isuzu", "OpelCorsa", "Ambassador", "Kia",
	}
)

var defaultTables = Tables{
	FieldBrand:        MustCategoryTable(FieldBrand, brandLabels...),
	FieldFuel:         MustCategoryTable(FieldFuel, fuelLabels...),
	FieldSellerType:   MustCategoryTable(FieldSellerType, sellerTypeLabels...),
	FieldTransmission: MustCategoryTable(FieldTransmission, transmissionLabels...),
	FieldOwner:        MustCategoryTable(FieldOwner, ownerLabels...),
}

// DefaultTables returns the frozen training-time tables.
// Tables are immutable so the same instances are shared.
func DefaultTables() Tables {
	out := make(Tables, len(defaultTables))
	for f, t := range defaultTables {
		out[f] = t
	}
	return out
}
