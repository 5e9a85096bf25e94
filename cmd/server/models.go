package main

import (
	"time"

	"github.com/liamcoop/carprice/admission"
	"github.com/liamcoop/carprice/artifacts"
	"github.com/liamcoop/carprice/features"
	"github.com/liamcoop/carprice/internal/logger"
	"github.com/liamcoop/carprice/summary"
)

// API request and response models

// PredictRequest is the body of POST /api/v1/predict
type PredictRequest struct {
	Car      features.RawInput `json:"car"`
	Purchase *summary.Purchase `json:"purchase,omitempty"`
}

// ModelInfo identifies the artifact that produced a price
type ModelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version,omitempty"`
	Kind    string `json:"kind"`
	Columns int    `json:"columns"`
}

// VectorEntry is one aligned column sent to the regressor
type VectorEntry struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// PredictResponse is returned for a successful prediction
type PredictResponse struct {
	ID             string              `json:"id"`
	Price          float64             `json:"price"`
	Summary        summary.Summary     `json:"summary"`
	Comparison     *summary.Comparison `json:"comparison,omitempty"`
	Model          ModelInfo           `json:"model"`
	Vector         []VectorEntry       `json:"vector,omitempty"`
	EvaluationTime string              `json:"evaluationTime"`
}

// ErrorResponse is the body of every error
type ErrorResponse struct {
	Error      string                `json:"error"`
	Details    string                `json:"details,omitempty"`
	Field      string                `json:"field,omitempty"`
	Value      string                `json:"value,omitempty"`
	Allowed    []string              `json:"allowed,omitempty"`
	Violations []admission.Violation `json:"violations,omitempty"`
}

// HealthResponse is returned by GET /api/v1/health
type HealthResponse struct {
	Status    string    `json:"status"`
	Model     ModelInfo `json:"model"`
	Database  string    `json:"database,omitempty"`
	Admission bool      `json:"admission"`
	Rules     int       `json:"rules,omitempty"`
}

// YearRange is an inclusive range of model years
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// CatalogResponse lists the accepted category labels and reference data stats
type CatalogResponse struct {
	Labels      map[features.Field][]string `json:"labels"`
	Bounds      admission.Bounds            `json:"bounds"`
	Dataset     *DatasetStats               `json:"dataset,omitempty"`
	PassThrough bool                        `json:"passThroughUnknown"`
}

// DatasetStats summarizes the reference listings
type DatasetStats struct {
	Path      string                      `json:"path"`
	Listings  int                         `json:"listings"`
	Skipped   int                         `json:"skipped"`
	Brands    []string                    `json:"brands"`
	Years     *YearRange                  `json:"years,omitempty"`
	MaxKm     int                         `json:"maxKm"`
	Uncovered map[features.Field][]string `json:"uncovered,omitempty"`
}

// ConsistencyResponse wraps the artifact/codec consistency report
type ConsistencyResponse struct {
	OK     bool             `json:"ok"`
	Strict bool             `json:"strict"`
	Report artifacts.Report `json:"report"`
}

// CreateRuleRequest is the body of POST /api/v1/rules
type CreateRuleRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Active     *bool  `json:"active,omitempty"`
}

// UpdateRuleRequest is the body of PUT /api/v1/rules/{ruleId}
type UpdateRuleRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Active     *bool  `json:"active,omitempty"`
}

// RulesListResponse lists admission rules
type RulesListResponse struct {
	Rules []*admission.Rule `json:"rules"`
}

// StatsResponse is returned by GET /api/v1/stats
type StatsResponse struct {
	Uptime   string       `json:"uptime"`
	Counters logger.Stats `json:"counters"`
}

// startedAt is the process start time reported by /stats
var startedAt = time.Now()
