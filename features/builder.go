package features

// Build encodes the categorical fields of in and expands them into a one-hot row.
//
// The row holds year and km_driven followed by one indicator column per
// field, named "<prefix>_<code>" and set to 1. Categories that were not
// observed are absent from the row; Align fills them in.
func Build(codec *Codec, in RawInput) (*Row, error) {
	row := NewRow(2 + len(Fields))
	row.Set(ColumnYear, float64(in.Year))
	row.Set(ColumnKmDriven, float64(in.KmDriven))

	for _, f := range Fields {
		suffix, err := codec.EncodeLabel(f, in.Value(f))
		if err != nil {
			return nil, err
		}
		row.Set(IndicatorColumn(f, suffix), 1)
	}
	return row, nil
}

// IndicatorColumn returns the one-hot column name of a field category
func IndicatorColumn(f Field, suffix string) string {
	return f.Prefix() + "_" + suffix
}
