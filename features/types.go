package features

import (
	"errors"
	"fmt"
)

// Field identifies one categorical input of a vehicle
type Field string

const (
	FieldBrand        Field = "brand"
	FieldFuel         Field = "fuel"
	FieldSellerType   Field = "seller_type"
	FieldTransmission Field = "transmission"
	FieldOwner        Field = "owner"
)

// Numeric column names, in the order the builder emits them
const (
	ColumnYear     = "year"
	ColumnKmDriven = "km_driven"
)

// Fields lists the categorical fields in the order their indicator
// columns are emitted by Build
var Fields = []Field{FieldBrand, FieldFuel, FieldSellerType, FieldTransmission, FieldOwner}

// Prefix returns the one-hot column prefix used for the field.
// Brand columns keep the "name" prefix of the training dataset.
func (f Field) Prefix() string {
	if f == FieldBrand {
		return "name"
	}
	return string(f)
}

// ParseField converts a field name into a Field
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// RawInput holds the form values for a single prediction request
type RawInput struct {
	Brand        string `json:"name"`
	Year         int    `json:"year"`
	KmDriven     int    `json:"km_driven"`
	Fuel         string `json:"fuel"`
	SellerType   string `json:"seller_type"`
	Transmission string `json:"transmission"`
	Owner        string `json:"owner"`
}

// Value returns the raw categorical value for a field
func (in RawInput) Value(f Field) string {
	switch f {
	case FieldBrand:
		return in.Brand
	case FieldFuel:
		return in.Fuel
	case FieldSellerType:
		return in.SellerType
	case FieldTransmission:
		return in.Transmission
	case FieldOwner:
		return in.Owner
	}
	return ""
}

// Validate checks the numeric fields. Categorical values are checked
// by the codec.
func (in RawInput) Validate() error {
	if in.Year <= 0 {
		return fmt.Errorf("%w: year must be positive, got %d", ErrInvalidInput, in.Year)
	}
	if in.KmDriven < 0 {
		return fmt.Errorf("%w: km_driven must be non-negative, got %d", ErrInvalidInput, in.KmDriven)
	}
	return nil
}

// Facts converts the input into the map form used by rule expressions
func (in RawInput) Facts() map[string]any {
	return map[string]any{
		"name":         in.Brand,
		"year":         in.Year,
		"km_driven":    in.KmDriven,
		"fuel":         in.Fuel,
		"seller_type":  in.SellerType,
		"transmission": in.Transmission,
		"owner":        in.Owner,
	}
}

var (
	// ErrUnknownCategory is matched by every UnknownCategoryError
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownField is returned when a field name has no table
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidInput is returned for out-of-range numeric input
	ErrInvalidInput = errors.New("invalid input")

	// ErrColumnMismatch is matched by every ColumnMismatchError
	ErrColumnMismatch = errors.New("column mismatch")
)

// UnknownCategoryError reports a categorical value absent from its table
type UnknownCategoryError struct {
	Field Field
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for field %s", e.Value, e.Field)
}

func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory
}

// ColumnMismatchError reports an aligned row whose columns differ from the
// expected columns. It always indicates a defect in the builder or aligner.
type ColumnMismatchError struct {
	Missing    []string
	Unexpected []string
	// FirstMisordered is the first index where names differ, or -1
	FirstMisordered int
}

func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("column mismatch: missing=%v unexpected=%v first_misordered=%d",
		e.Missing, e.Unexpected, e.FirstMisordered)
}

func (e *ColumnMismatchError) Is(target error) bool {
	return target == ErrColumnMismatch
}
