package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// clearEnv blanks every override so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "PORT", "LOG_LEVEL", "ERROR_SAMPLE_RATE", "ARTIFACT_DIR", "ARTIFACT_SOURCE", "DATASET_PATH"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if !cfg.Artifacts.StrictConsistency {
		t.Error("strict consistency should default to true")
	}
	if cfg.Features.PassThroughUnknown {
		t.Error("pass-through should default to false")
	}
	if cfg.UsesDatabase() {
		t.Error("defaults should not need a database")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "carprice.yaml")
	content := `
server:
  port: "9090"
  request_timeout: 5s
artifacts:
  dir: /srv/models
  model_file: model.msgpack
  strict_consistency: false
features:
  pass_through_unknown: true
bounds:
  min_year: 1990
  max_year: 2020
  max_km: 300000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.GetRequestTimeout() != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout != "30s" {
		t.Error("unset keys should keep their defaults")
	}
	if cfg.Artifacts.Dir != "/srv/models" || cfg.Artifacts.ModelFile != "model.msgpack" || cfg.Artifacts.StrictConsistency {
		t.Errorf("artifacts = %+v", cfg.Artifacts)
	}
	if cfg.Artifacts.ColumnsFile != "columns.json" {
		t.Errorf("columns file default lost: %q", cfg.Artifacts.ColumnsFile)
	}
	if !cfg.Features.PassThroughUnknown {
		t.Error("pass_through_unknown not applied")
	}
	if cfg.Bounds.MinYear != 1990 || cfg.Bounds.MaxYear != 2020 || cfg.Bounds.MaxKm != 300000 {
		t.Errorf("bounds = %+v", cfg.Bounds)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [unclosed"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db/carprice")
	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ERROR_SAMPLE_RATE", "50")
	t.Setenv("ARTIFACT_DIR", "/models")
	t.Setenv("ARTIFACT_SOURCE", "POSTGRES")
	t.Setenv("DATASET_PATH", "/data/cardetails.csv")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	got := []string{cfg.Database.URL, cfg.Server.Port, cfg.Logging.Level, cfg.Artifacts.Dir, cfg.Artifacts.Source, cfg.Dataset.Path}
	want := []string{"postgres://u:p@db/carprice", "7000", "debug", "/models", "postgres", "/data/cardetails.csv"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}
	if cfg.Logging.ErrorSampleRate != 50 {
		t.Errorf("ErrorSampleRate = %d", cfg.Logging.ErrorSampleRate)
	}
	if !cfg.UsesDatabase() {
		t.Error("postgres source should need a database")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestEnvOverrideIgnoresBadSampleRate(t *testing.T) {
	clearEnv(t)
	t.Setenv("ERROR_SAMPLE_RATE", "-3")

	cfg, _ := Load("")
	if cfg.Logging.ErrorSampleRate != 1 {
		t.Errorf("ErrorSampleRate = %d, want default 1", cfg.Logging.ErrorSampleRate)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Unknown source", func(c *Config) { c.Artifacts.Source = "s3" }, "artifacts.source"},
		{"Postgres without url", func(c *Config) { c.Artifacts.Source = SourcePostgres }, "DATABASE_URL"},
		{"Empty dir", func(c *Config) { c.Artifacts.Dir = "" }, "artifacts.dir"},
		{"Empty name", func(c *Config) { c.Artifacts.Name = "" }, "artifacts.name"},
		{"Unknown rule store", func(c *Config) { c.Admission.Store = "redis" }, "admission.store"},
		{"Rule store without url", func(c *Config) { c.Admission.Store = SourcePostgres }, "DATABASE_URL"},
		{"Inverted bounds", func(c *Config) { c.Bounds.MinYear = 2030; c.Bounds.MaxYear = 2000 }, "bounds"},
		{"Bad timeout", func(c *Config) { c.Server.ReadTimeout = "soon" }, "server.read_timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "carprice.yaml")
	cfg := DefaultConfig()
	cfg.Dataset.Path = "cardetails.csv"
	cfg.Admission.CacheTTL = "30s"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if loaded.GetCacheTTL() != 30*time.Second {
		t.Errorf("GetCacheTTL() = %v", loaded.GetCacheTTL())
	}
}
