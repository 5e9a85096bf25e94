// Package predictor turns raw car descriptions into price estimates using a
// loaded artifact bundle.
package predictor

import (
	"fmt"

	"github.com/liamcoop/carprice/artifacts"
	"github.com/liamcoop/carprice/features"
	"github.com/liamcoop/carprice/model"
)

// Predictor runs codec, builder, aligner and regressor for one bundle.
// It holds no mutable state and is safe for concurrent use.
type Predictor struct {
	codec     *features.Codec
	regressor model.Regressor
	columns   features.Columns
	bundle    *artifacts.Bundle
}

// New creates a predictor. The bundle must have a regressor whose feature
// count matches its columns, otherwise an artifacts.LoadError is returned.
func New(bundle *artifacts.Bundle, codec *features.Codec) (*Predictor, error) {
	if bundle == nil {
		return nil, &artifacts.LoadError{Source: "predictor", Err: fmt.Errorf("no bundle")}
	}
	if codec == nil {
		codec = features.NewDefaultCodec()
	}
	if err := bundle.Validate(); err != nil {
		return nil, &artifacts.LoadError{Source: bundle.Name, Err: err}
	}

	cols := make(features.Columns, len(bundle.Columns))
	copy(cols, bundle.Columns)

	return &Predictor{
		codec:     codec,
		regressor: bundle.Regressor,
		columns:   cols,
		bundle:    bundle,
	}, nil
}

// Predict returns the estimated price for in
func (p *Predictor) Predict(in features.RawInput) (float64, error) {
	_, price, err := p.PredictVector(in)
	return price, err
}

// PredictVector returns the aligned row fed to the regressor along with the
// price. Negative estimates are floored at 0.
func (p *Predictor) PredictVector(in features.RawInput) (*features.Row, float64, error) {
	row, err := p.Vector(in)
	if err != nil {
		return nil, 0, err
	}

	price, err := p.regressor.Predict(row.Values())
	if err != nil {
		return row, 0, err
	}
	if price < 0 {
		price = 0
	}
	return row, price, nil
}

// Vector validates and encodes in, then aligns it to the bundle columns
func (p *Predictor) Vector(in features.RawInput) (*features.Row, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	row, err := features.Build(p.codec, in)
	if err != nil {
		return nil, err
	}

	aligned := features.Align(row, p.columns)
	if err := features.VerifyAligned(aligned, p.columns); err != nil {
		return nil, err
	}
	return aligned, nil
}

// Columns returns a copy of the expected columns
func (p *Predictor) Columns() features.Columns {
	out := make(features.Columns, len(p.columns))
	copy(out, p.columns)
	return out
}

// Bundle returns the bundle the predictor was built from
func (p *Predictor) Bundle() *artifacts.Bundle { return p.bundle }

// Codec returns the codec used for categorical fields
func (p *Predictor) Codec() *features.Codec { return p.codec }
