package model

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Artifact encodings
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// FormatFromPath picks an encoding from a file extension
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("cannot infer artifact format from %q (use .json, .msgpack or .mpk)", path)
	}
}

// document is the serialized form shared by all regressor kinds
type document struct {
	Kind         string    `json:"kind" msgpack:"kind"`
	NumFeatures  int       `json:"n_features,omitempty" msgpack:"n_features,omitempty"`
	Intercept    float64   `json:"intercept,omitempty" msgpack:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty" msgpack:"coefficients,omitempty"`
	Aggregation  string    `json:"aggregation,omitempty" msgpack:"aggregation,omitempty"`
	BaseScore    float64   `json:"base_score,omitempty" msgpack:"base_score,omitempty"`
	LearningRate float64   `json:"learning_rate,omitempty" msgpack:"learning_rate,omitempty"`
	Trees        []Tree    `json:"trees,omitempty" msgpack:"trees,omitempty"`
}

// Unmarshal decodes data in the given format
func Unmarshal(format string, data []byte, v any) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatMsgpack:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported artifact format %q", format)
	}
}

// Marshal encodes v in the given format
func Marshal(format string, v any) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatMsgpack:
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", format)
	}
}

// Decode builds a Regressor from a serialized artifact
func Decode(format string, data []byte) (Regressor, error) {
	var doc document
	if err := Unmarshal(format, data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s regressor: %w", format, err)
	}

	switch doc.Kind {
	case KindLinear:
		if doc.NumFeatures != 0 && doc.NumFeatures != len(doc.Coefficients) {
			return nil, fmt.Errorf("linear regressor declares %d features but has %d coefficients",
				doc.NumFeatures, len(doc.Coefficients))
		}
		return NewLinear(doc.Intercept, doc.Coefficients)
	case KindTreeEnsemble:
		return NewTreeEnsemble(EnsembleConfig{
			NumFeatures:  doc.NumFeatures,
			Aggregation:  doc.Aggregation,
			BaseScore:    doc.BaseScore,
			LearningRate: doc.LearningRate,
			Trees:        doc.Trees,
		})
	case "":
		return nil, fmt.Errorf("regressor artifact has no kind")
	default:
		return nil, fmt.Errorf("unknown regressor kind %q", doc.Kind)
	}
}

// Encode serializes a Regressor produced by this package
func Encode(format string, r Regressor) ([]byte, error) {
	var doc document
	switch m := r.(type) {
	case *Linear:
		doc = document{
			Kind:         KindLinear,
			NumFeatures:  m.NumFeatures(),
			Intercept:    m.Intercept(),
			Coefficients: m.Coefficients(),
		}
	case *TreeEnsemble:
		cfg := m.Config()
		doc = document{
			Kind:         KindTreeEnsemble,
			NumFeatures:  cfg.NumFeatures,
			Aggregation:  cfg.Aggregation,
			BaseScore:    cfg.BaseScore,
			LearningRate: cfg.LearningRate,
			Trees:        cfg.Trees,
		}
	default:
		return nil, fmt.Errorf("cannot encode regressor of type %T", r)
	}
	return Marshal(format, doc)
}
