//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/liamcoop/carprice/artifacts"
	"github.com/liamcoop/carprice/config"
	"github.com/liamcoop/carprice/model"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations
func setupTestDB(t *testing.T) (*sql.DB, string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../../migrations/000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}
	return db, connStr, cleanup
}

// TestEndToEnd_PublishBootstrapPredict covers the database-backed path:
// publish an artifact, bootstrap from PostgreSQL, price a car and manage rules.
func TestEndToEnd_PublishBootstrapPredict(t *testing.T) {
	db, connStr, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	b := testBundle(t)
	data, err := model.Encode(model.FormatMsgpack, b.Regressor)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	version, err := artifacts.NewPostgresStore(db, "car-price").Publish(ctx, model.FormatMsgpack, data, testColumns)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Database.URL = connStr
	cfg.Artifacts.Source = config.SourcePostgres
	cfg.Admission.Store = config.SourcePostgres
	cfg.Bounds = testBounds()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	components, err := Bootstrap(ctx, cfg)
	if err != nil {
		t.Fatalf("Bootstrap() failed: %v", err)
	}
	defer components.DB.Close()

	if components.Bundle.Version != version {
		t.Errorf("bootstrapped version %d, published %d", components.Bundle.Version, version)
	}

	server, err := NewServer(cfg, components)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	ts := httptest.NewServer(server)
	defer ts.Close()
	baseURL := ts.URL + "/api/v1"

	t.Log("Step 1: health reports the database")
	health := getJSON[HealthResponse](t, baseURL+"/health", http.StatusOK)
	if health.Database != "ok" || health.Rules != 2 {
		t.Errorf("unexpected health: %+v", health)
	}

	t.Log("Step 2: price the worked example")
	pred := postJSON[PredictResponse](t, baseURL+"/predict", `{"car":`+workedCar+`}`, http.StatusOK)
	if pred.Price != 230000 || pred.Model.Version != version {
		t.Errorf("unexpected prediction: %+v", pred)
	}

	t.Log("Step 3: a rule added over HTTP is persisted")
	postJSON[map[string]any](t, baseURL+"/rules",
		`{"id":"low-km-only","name":"Low km only","expression":"car.km_driven < 30000"}`, http.StatusCreated)

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM admission_rules`).Scan(&count); err != nil {
		t.Fatalf("count rules: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 stored rules, got %d", count)
	}

	t.Log("Step 4: the new rule rejects the worked example")
	rejected := postJSON[ErrorResponse](t, baseURL+"/predict", `{"car":`+workedCar+`}`, http.StatusUnprocessableEntity)
	if len(rejected.Violations) != 1 || rejected.Violations[0].RuleID != "low-km-only" {
		t.Errorf("unexpected violations: %+v", rejected.Violations)
	}

	t.Log("Step 5: a second bootstrap keeps operator rules and does not reseed")
	again, err := Bootstrap(ctx, cfg)
	if err != nil {
		t.Fatalf("second Bootstrap() failed: %v", err)
	}
	defer again.DB.Close()
	rules, err := again.Admission.ListRules()
	if err != nil {
		t.Fatalf("ListRules() failed: %v", err)
	}
	if len(rules) != 3 {
		t.Errorf("expected 3 rules after restart, got %d", len(rules))
	}
}

func getJSON[T any](t *testing.T, url string, wantStatus int) T {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return readJSON[T](t, resp, wantStatus)
}

func postJSON[T any](t *testing.T, url, body string, wantStatus int) T {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return readJSON[T](t, resp, wantStatus)
}

func readJSON[T any](t *testing.T, resp *http.Response, wantStatus int) T {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d, got %d", wantStatus, resp.StatusCode)
	}
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}
