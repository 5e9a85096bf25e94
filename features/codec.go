package features

import (
	"errors"
	"strconv"
)

// CodecOption configures a Codec
type CodecOption func(*Codec)

// WithPassThroughUnknown keeps unknown labels instead of rejecting them.
// The label then expands to a "<prefix>_<label>" column that no trained
// model expects, so every indicator of that field ends up 0. Only for
// reproducing predictions made by the legacy form.
func WithPassThroughUnknown(enabled bool) CodecOption {
	return func(c *Codec) { c.passThrough = enabled }
}

// Codec maps categorical values to integer codes using fixed tables.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	tables      Tables
	passThrough bool
}

// NewCodec creates a codec over the given tables
func NewCodec(tables Tables, opts ...CodecOption) *Codec {
	c := &Codec{tables: make(Tables, len(tables))}
	for f, t := range tables {
		c.tables[f] = t
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultCodec creates a strict codec over DefaultTables
func NewDefaultCodec(opts ...CodecOption) *Codec {
	return NewCodec(DefaultTables(), opts...)
}

// Tables returns the tables used by the codec
func (c *Codec) Tables() Tables {
	out := make(Tables, len(c.tables))
	for f, t := range c.tables {
		out[f] = t
	}
	return out
}

// PassThroughUnknown reports whether unknown labels are kept
func (c *Codec) PassThroughUnknown() bool { return c.passThrough }

// Encode returns the code of value in the field's table.
// An absent value yields an UnknownCategoryError, even in pass-through mode.
func (c *Codec) Encode(field Field, value string) (int, error) {
	t, err := c.tables.Lookup(field)
	if err != nil {
		return 0, err
	}
	code, ok := t.Code(value)
	if !ok {
		return 0, &UnknownCategoryError{Field: field, Value: value}
	}
	return code, nil
}

// EncodeLabel returns the one-hot column suffix for value: its code in
// decimal, or the raw label for unknown values in pass-through mode.
func (c *Codec) EncodeLabel(field Field, value string) (string, error) {
	code, err := c.Encode(field, value)
	if err == nil {
		return strconv.Itoa(code), nil
	}
	if c.passThrough && errors.Is(err, ErrUnknownCategory) {
		return value, nil
	}
	return "", err
}
