// Command carprice prices a car from the command line and manages the model
// artifacts the server loads.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/liamcoop/carprice/artifacts"
	"github.com/liamcoop/carprice/config"
	"github.com/liamcoop/carprice/internal/logger"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	artifactDir string
	databaseURL string
	modelName   string
	noColor     bool

	timeNow = time.Now
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	priceColor   = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "carprice",
	Short: "Used car price prediction",
	Long: `carprice encodes a car description into the feature row the trained
regressor expects and prints the predicted selling price.

It also checks artifact bundles against the category tables and publishes
them to PostgreSQL for the server to load.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&artifactDir, "artifacts", "a", "", "Artifact directory (overrides artifacts.dir)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database", "", "Database URL (overrides database.url)")
	rootCmd.PersistentFlags().StringVar(&modelName, "name", "", "Model name (overrides artifacts.name)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the persistent flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if artifactDir != "" {
		cfg.Artifacts.Dir = artifactDir
	}
	if databaseURL != "" {
		cfg.Database.URL = databaseURL
	}
	if modelName != "" {
		cfg.Artifacts.Name = modelName
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.ErrorSampleRate); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileStore(cfg *config.Config) *artifacts.FileStore {
	store := artifacts.NewFileStore(cfg.Artifacts.Dir)
	store.Name = cfg.Artifacts.Name
	if cfg.Artifacts.ModelFile != "" {
		store.ModelFile = cfg.Artifacts.ModelFile
	}
	if cfg.Artifacts.ColumnsFile != "" {
		store.ColumnsFile = cfg.Artifacts.ColumnsFile
	}
	return store
}

// loadBundle loads the bundle from the configured source
func loadBundle(ctx context.Context, cfg *config.Config) (*artifacts.Bundle, func(), error) {
	if cfg.Artifacts.Source != config.SourcePostgres {
		b, err := fileStore(cfg).Load(ctx)
		return b, func() {}, err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	b, err := artifacts.NewPostgresStore(db, cfg.Artifacts.Name).Load(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return b, func() { db.Close() }, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required: use --database, database.url or DATABASE_URL")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
