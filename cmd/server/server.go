package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/liamcoop/carprice/admission"
	"github.com/liamcoop/carprice/artifacts"
	"github.com/liamcoop/carprice/config"
	"github.com/liamcoop/carprice/dataset"
	"github.com/liamcoop/carprice/features"
	"github.com/liamcoop/carprice/internal/logger"
	"github.com/liamcoop/carprice/model"
	"github.com/liamcoop/carprice/predictor"
	"github.com/liamcoop/carprice/summary"
)

const slowRequestThreshold = 2 * time.Second

// Components are the loaded dependencies of a Server.
// DB, Admission and Dataset are optional.
type Components struct {
	DB        *sql.DB
	Bundle    *artifacts.Bundle
	Codec     *features.Codec
	Admission *admission.Engine
	Dataset   *dataset.Dataset
	Bounds    admission.Bounds
}

type Server struct {
	cfg       *config.Config
	db        *sql.DB
	predictor *predictor.Predictor
	admission *admission.Engine
	dataset   *dataset.Dataset
	bounds    admission.Bounds
	report    artifacts.Report
	router    *chi.Mux
	now       func() time.Time
}

// NewServer builds the predictor, runs the consistency check and wires the
// routes. In strict mode a bundle that disagrees with the codec tables is
// refused.
func NewServer(cfg *config.Config, c Components) (*Server, error) {
	codec := c.Codec
	if codec == nil {
		codec = features.NewDefaultCodec(features.WithPassThroughUnknown(cfg.Features.PassThroughUnknown))
	}

	p, err := predictor.New(c.Bundle, codec)
	if err != nil {
		return nil, err
	}

	report := artifacts.CheckConsistency(c.Bundle, codec.Tables())
	for _, w := range report.Warnings {
		logger.Debug("artifact consistency warning", "column", w.Column, "message", w.Message)
	}
	if len(report.Warnings) > 0 {
		logger.Info("categories without a model column", "count", len(report.Warnings))
	}
	if !report.OK() {
		if cfg.Artifacts.StrictConsistency {
			return nil, report.Err()
		}
		logger.Warn("artifact/codec mismatch ignored (strict_consistency=false)", "error", report.Err())
	}

	s := &Server{
		cfg:       cfg,
		db:        c.DB,
		predictor: p,
		admission: c.Admission,
		dataset:   c.Dataset,
		bounds:    c.Bounds,
		report:    report,
		now:       time.Now,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.GetRequestTimeout()))
	r.Use(slowRequests)

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/stats", s.handleStats)

	r.Post("/api/v1/predict", s.handlePredict)
	r.Get("/api/v1/catalog", s.handleCatalog)
	r.Get("/api/v1/consistency", s.handleConsistency)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)
		r.Get("/{ruleId}", s.handleGetRule)
		r.Put("/{ruleId}", s.handleUpdateRule)
		r.Delete("/{ruleId}", s.handleDeleteRule)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestIDHeader echoes the request id assigned by middleware.RequestID
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

func slowRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if elapsed := time.Since(start); elapsed > slowRequestThreshold {
			logger.WarnSlowRequest()
			logger.Warn("slow request", "path", r.URL.Path, "duration", elapsed.String())
		}
	})
}

func (s *Server) modelInfo() ModelInfo {
	b := s.predictor.Bundle()
	return ModelInfo{
		ID:      b.ID.String(),
		Name:    b.Name,
		Version: b.Version,
		Kind:    b.Regressor.Kind(),
		Columns: len(b.Columns),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Model:     s.modelInfo(),
		Admission: s.admission != nil,
	}

	if s.admission != nil {
		if rules, err := s.admission.ListRules(); err == nil {
			resp.Rules = len(rules)
		}
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Database = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsResponse{
		Uptime:   time.Since(startedAt).Round(time.Second).String(),
		Counters: logger.Snapshot(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	startTime := time.Now()

	if err := req.Car.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid input", err)
		return
	}
	if req.Purchase != nil {
		if err := req.Purchase.Validate(req.Car, s.now()); err != nil {
			respondError(w, http.StatusBadRequest, "invalid purchase", err)
			return
		}
	}

	if s.admission != nil {
		decision, err := s.admission.Check(req.Car)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "admission check failed", err)
			return
		}
		if err := decision.Err(); err != nil {
			logger.Rejections.Add(1)
			writeError(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:      "input rejected",
				Details:    err.Error(),
				Violations: decision.Violations,
			})
			return
		}
	}

	row, price, err := s.predictor.PredictVector(req.Car)
	if err != nil {
		s.respondPredictionError(w, err)
		return
	}
	logger.Predictions.Add(1)

	now := s.now()
	resp := PredictResponse{
		ID:      uuid.NewString(),
		Price:   price,
		Summary: summary.Compute(req.Car, price, now),
		Model:   s.modelInfo(),
	}
	if req.Purchase != nil {
		cmp := summary.Compare(price, *req.Purchase, req.Car.KmDriven, now)
		resp.Comparison = &cmp
	}
	if r.URL.Query().Get("explain") == "true" {
		cols, vals := row.Columns(), row.Values()
		resp.Vector = make([]VectorEntry, len(cols))
		for i := range cols {
			resp.Vector[i] = VectorEntry{Column: cols[i], Value: vals[i]}
		}
	}
	resp.EvaluationTime = time.Since(startTime).String()

	logger.Debug("prediction served", "id", resp.ID, "price", price, "brand", req.Car.Brand, "year", req.Car.Year)
	respondJSON(w, http.StatusOK, resp)
}

// respondPredictionError maps predictor errors to HTTP statuses
func (s *Server) respondPredictionError(w http.ResponseWriter, err error) {
	var unknown *features.UnknownCategoryError
	switch {
	case errors.As(err, &unknown):
		logger.UnknownCategory.Add(1)
		body := ErrorResponse{
			Error:   "unknown category",
			Details: err.Error(),
			Field:   string(unknown.Field),
			Value:   unknown.Value,
		}
		if table, lookupErr := s.predictor.Codec().Tables().Lookup(unknown.Field); lookupErr == nil {
			body.Allowed = table.Labels()
		}
		writeError(w, http.StatusUnprocessableEntity, body)

	case errors.Is(err, features.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid input", err)

	case errors.Is(err, features.ErrColumnMismatch):
		logger.Logger.Error("aligned row does not match artifact columns", "error", err)
		respondError(w, http.StatusInternalServerError, "prediction unavailable", nil)

	case errors.Is(err, model.ErrInvocation):
		logger.Logger.Error("regressor rejected row", "error", err)
		respondError(w, http.StatusInternalServerError, "prediction unavailable", nil)

	default:
		respondError(w, http.StatusInternalServerError, "prediction failed", err)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	tables := s.predictor.Codec().Tables()
	resp := CatalogResponse{
		Labels:      make(map[features.Field][]string, len(tables)),
		Bounds:      s.bounds,
		PassThrough: s.predictor.Codec().PassThroughUnknown(),
	}
	for _, f := range features.Fields {
		if table, err := tables.Lookup(f); err == nil {
			resp.Labels[f] = table.Labels()
		}
	}

	if ds := s.dataset; ds != nil {
		stats := &DatasetStats{
			Path:      ds.Path,
			Listings:  ds.Len(),
			Skipped:   ds.Skipped,
			Brands:    ds.Brands(),
			MaxKm:     ds.MaxKm(),
			Uncovered: ds.Uncovered(tables),
		}
		if lo, hi, ok := ds.YearRange(); ok {
			stats.Years = &YearRange{Min: lo, Max: hi}
		}
		resp.Dataset = stats
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConsistencyResponse{
		OK:     s.report.OK(),
		Strict: s.cfg.Artifacts.StrictConsistency,
		Report: s.report,
	})
}

// Rule management

func (s *Server) rulesEngine(w http.ResponseWriter) (*admission.Engine, bool) {
	if s.admission == nil {
		respondError(w, http.StatusNotFound, "admission rules are disabled", nil)
		return nil, false
	}
	return s.admission, true
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.rulesEngine(w)
	if !ok {
		return
	}

	rules, err := engine.ListRules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if rules == nil {
		rules = []*admission.Rule{}
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.rulesEngine(w)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" || req.Expression == "" {
		respondError(w, http.StatusBadRequest, "name and expression are required", nil)
		return
	}

	rule := &admission.Rule{
		ID:         req.ID,
		Name:       req.Name,
		Expression: req.Expression,
		Active:     true,
	}
	if rule.ID == "" {
		rule.ID = "rule-" + uuid.NewString()
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := engine.AddRule(rule); err != nil {
		if errors.Is(err, admission.ErrRuleExists) {
			respondError(w, http.StatusConflict, "rule already exists", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	logger.Info("admission rule created", "id", rule.ID, "expression", rule.Expression)
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.rulesEngine(w)
	if !ok {
		return
	}

	rule, err := engine.GetRule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondRuleError(w, err, "failed to get rule")
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.rulesEngine(w)
	if !ok {
		return
	}
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	existing, err := engine.GetRule(ruleID)
	if err != nil {
		respondRuleError(w, err, "failed to get rule")
		return
	}

	rule := &admission.Rule{
		ID:         ruleID,
		Name:       existing.Name,
		Expression: existing.Expression,
		Active:     existing.Active,
	}
	if req.Name != "" {
		rule.Name = req.Name
	}
	if req.Expression != "" {
		rule.Expression = req.Expression
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := engine.UpdateRule(rule); err != nil {
		if errors.Is(err, admission.ErrRuleNotFound) {
			respondRuleError(w, err, "failed to update rule")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to update rule", err)
		return
	}

	logger.Info("admission rule updated", "id", rule.ID, "expression", rule.Expression, "active", rule.Active)
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.rulesEngine(w)
	if !ok {
		return
	}
	ruleID := chi.URLParam(r, "ruleId")

	if err := engine.DeleteRule(ruleID); err != nil {
		respondRuleError(w, err, "failed to delete rule")
		return
	}

	logger.Info("admission rule deleted", "id", ruleID)
	w.WriteHeader(http.StatusNoContent)
}

func respondRuleError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, admission.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	respondError(w, http.StatusInternalServerError, message, err)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	body := ErrorResponse{Error: message}
	if err != nil {
		body.Details = err.Error()
	}
	writeError(w, status, body)
}

// writeError counts the failure once and writes body.
// Log lines for 5xx go straight to the slog logger so they are not counted again.
func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
		logger.Logger.Error("request failed", "status", status, "error", body.Error, "details", body.Details)
	case status >= 400:
		logger.WarnHttp4xx(status)
	}
	respondJSON(w, status, body)
}

// String renders a one-line description for startup logs
func (s *Server) String() string {
	info := s.modelInfo()
	return fmt.Sprintf("%s v%d (%s, %d columns)", info.Name, info.Version, info.Kind, info.Columns)
}
