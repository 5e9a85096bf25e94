package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/liamcoop/carprice/admission"
	"github.com/liamcoop/carprice/artifacts"
	"github.com/liamcoop/carprice/config"
	"github.com/liamcoop/carprice/dataset"
	"github.com/liamcoop/carprice/features"
	"github.com/liamcoop/carprice/internal/logger"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.ErrorSampleRate); err != nil {
		logger.Fatal("invalid logging config", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := Bootstrap(ctx, cfg)
	if err != nil {
		logger.Fatal("startup failed", "error", err)
	}
	if components.DB != nil {
		defer components.DB.Close()
	}

	server, err := NewServer(cfg, components)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port, "model", server.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// Bootstrap loads everything the server needs before it accepts requests.
// The artifact bundle and the dataset load concurrently; the server starts
// only after both have finished.
func Bootstrap(ctx context.Context, cfg *config.Config) (Components, error) {
	var c Components

	if cfg.UsesDatabase() {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return c, err
		}
		c.DB = db
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		store, err := artifactStore(cfg, c.DB)
		if err != nil {
			return err
		}
		bundle, err := store.Load(gctx)
		if err != nil {
			return err
		}
		logger.Info("artifacts loaded",
			"source", cfg.Artifacts.Source,
			"name", bundle.Name,
			"version", bundle.Version,
			"kind", bundle.Regressor.Kind(),
			"columns", len(bundle.Columns))
		c.Bundle = bundle
		return nil
	})

	if cfg.Dataset.Path != "" {
		g.Go(func() error {
			ds, err := dataset.Load(cfg.Dataset.Path)
			if err != nil {
				return err
			}
			logger.Info("dataset loaded", "path", ds.Path, "listings", ds.Len(), "skipped", ds.Skipped)
			c.Dataset = ds
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		closeDB(c.DB)
		return Components{}, err
	}

	c.Codec = features.NewDefaultCodec(features.WithPassThroughUnknown(cfg.Features.PassThroughUnknown))
	c.Bounds = boundsFor(cfg, c.Dataset)

	if cfg.Admission.Enabled {
		engine, err := admissionEngine(cfg, c.DB, c.Bounds)
		if err != nil {
			closeDB(c.DB)
			return Components{}, err
		}
		c.Admission = engine
	}

	return c, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func closeDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

func artifactStore(cfg *config.Config, db *sql.DB) (artifacts.Store, error) {
	switch cfg.Artifacts.Source {
	case config.SourceFile:
		store := artifacts.NewFileStore(cfg.Artifacts.Dir)
		store.Name = cfg.Artifacts.Name
		if cfg.Artifacts.ModelFile != "" {
			store.ModelFile = cfg.Artifacts.ModelFile
		}
		if cfg.Artifacts.ColumnsFile != "" {
			store.ColumnsFile = cfg.Artifacts.ColumnsFile
		}
		return store, nil
	case config.SourcePostgres:
		return artifacts.NewPostgresStore(db, cfg.Artifacts.Name), nil
	default:
		return nil, fmt.Errorf("unsupported artifact source %q", cfg.Artifacts.Source)
	}
}

// boundsFor narrows the year bounds to the dataset when configured to
func boundsFor(cfg *config.Config, ds *dataset.Dataset) admission.Bounds {
	b := cfg.Bounds
	if ds == nil || !cfg.Dataset.BoundsFromData {
		return b
	}
	if lo, hi, ok := ds.YearRange(); ok {
		b.MinYear, b.MaxYear = lo, hi
		logger.Info("year bounds taken from dataset", "min", lo, "max", hi)
	}
	return b
}

func admissionEngine(cfg *config.Config, db *sql.DB, bounds admission.Bounds) (*admission.Engine, error) {
	var store admission.RuleStore
	switch cfg.Admission.Store {
	case config.SourcePostgres:
		store = admission.NewPostgresRuleStore(db)
	default:
		store = admission.NewInMemoryRuleStore()
	}

	engine, err := admission.NewEngine(store, admission.CacheConfig{TTL: cfg.GetCacheTTL()})
	if err != nil {
		return nil, fmt.Errorf("failed to create admission engine: %w", err)
	}

	if cfg.Admission.SeedBounds {
		added, err := engine.EnsureRules(admission.BoundRules(bounds))
		if err != nil {
			return nil, fmt.Errorf("failed to seed bound rules: %w", err)
		}
		logger.Info("admission rules seeded", "added", added)
	}
	return engine, nil
}
