package features

// Align reindexes row to exactly the expected columns.
// Expected names missing from row are set to 0, names not expected are
// dropped, and the result follows the expected order.
func Align(row *Row, expected Columns) *Row {
	out := NewRow(len(expected))
	for _, name := range expected {
		v, _ := row.Get(name)
		out.Set(name, v)
	}
	return out
}

// VerifyAligned checks that row holds exactly the expected columns in order.
// Align always satisfies this; a failure means the row was built elsewhere
// or the aligner is broken, and no prediction should be served from it.
func VerifyAligned(row *Row, expected Columns) error {
	names := row.names
	if len(names) == len(expected) {
		same := true
		for i := range names {
			if names[i] != expected[i] {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}

	mismatch := &ColumnMismatchError{FirstMisordered: -1}
	for _, name := range expected {
		if !row.Has(name) {
			mismatch.Missing = append(mismatch.Missing, name)
		}
	}
	for _, name := range names {
		if !expected.Contains(name) {
			mismatch.Unexpected = append(mismatch.Unexpected, name)
		}
	}
	n := min(len(names), len(expected))
	for i := 0; i < n; i++ {
		if names[i] != expected[i] {
			mismatch.FirstMisordered = i
			break
		}
	}
	return mismatch
}
