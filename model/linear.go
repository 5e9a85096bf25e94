package model

import "fmt"

// KindLinear identifies Linear artifacts
const KindLinear = "linear"

// Linear is an ordinary least squares style regressor: intercept + w·x
type Linear struct {
	intercept    float64
	coefficients []float64
}

// NewLinear creates a linear regressor. The coefficient slice is copied.
func NewLinear(intercept float64, coefficients []float64) (*Linear, error) {
	if len(coefficients) == 0 {
		return nil, fmt.Errorf("linear regressor needs at least one coefficient")
	}
	w := make([]float64, len(coefficients))
	copy(w, coefficients)
	return &Linear{intercept: intercept, coefficients: w}, nil
}

// Predict returns intercept + sum(w[i] * x[i])
func (m *Linear) Predict(x []float64) (float64, error) {
	if err := checkRow(KindLinear, x, len(m.coefficients)); err != nil {
		return 0, err
	}
	sum := m.intercept
	for i, v := range x {
		sum += m.coefficients[i] * v
	}
	return checkOutput(KindLinear, sum)
}

func (m *Linear) NumFeatures() int { return len(m.coefficients) }

func (m *Linear) Kind() string { return KindLinear }

// Intercept returns the bias term
func (m *Linear) Intercept() float64 { return m.intercept }

// Coefficients returns a copy of the weights
func (m *Linear) Coefficients() []float64 {
	out := make([]float64, len(m.coefficients))
	copy(out, m.coefficients)
	return out
}
