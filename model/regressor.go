package model

import (
	"errors"
	"fmt"
	"math"
)

// Regressor is a trained function from a feature row to a price.
// Implementations are immutable once decoded and safe for concurrent use.
type Regressor interface {
	// Predict returns the estimate for a single row in column order
	Predict(x []float64) (float64, error)

	// NumFeatures is the row length the regressor was fit against
	NumFeatures() int

	// Kind names the regressor family ("linear", "tree_ensemble")
	Kind() string
}

// ErrInvocation is matched by every InvocationError
var ErrInvocation = errors.New("model invocation failed")

// InvocationError reports a regressor rejecting its input row. It is
// deterministic for a given artifact and row, so callers must not retry.
type InvocationError struct {
	Kind   string
	Reason string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s regressor rejected row: %s", e.Kind, e.Reason)
}

func (e *InvocationError) Is(target error) bool {
	return target == ErrInvocation
}

func checkRow(kind string, x []float64, want int) error {
	if len(x) != want {
		return &InvocationError{Kind: kind, Reason: fmt.Sprintf("row has %d features, want %d", len(x), want)}
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvocationError{Kind: kind, Reason: fmt.Sprintf("feature %d is not finite", i)}
		}
	}
	return nil
}

func checkOutput(kind string, y float64) (float64, error) {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, &InvocationError{Kind: kind, Reason: "prediction is not finite"}
	}
	return y, nil
}
