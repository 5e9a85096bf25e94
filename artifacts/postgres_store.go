package artifacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/carprice/model"
	_ "github.com/lib/pq"
)

// PostgresStore keeps versioned artifact bundles in the model_artifacts table.
// Exactly one version per model name is active.
type PostgresStore struct {
	db   *sql.DB
	name string
}

// VersionInfo describes a stored bundle without decoding it
type VersionInfo struct {
	ID          uuid.UUID `json:"id"`
	Version     int       `json:"version"`
	Format      string    `json:"format"`
	ColumnCount int       `json:"columnCount"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewPostgresStore creates a store for the named model
func NewPostgresStore(db *sql.DB, name string) *PostgresStore {
	return &PostgresStore{
		db:   db,
		name: name,
	}
}

// Load decodes the active version of the model
func (s *PostgresStore) Load(ctx context.Context) (*Bundle, error) {
	b, err := s.loadActive(ctx)
	if err != nil {
		return nil, &LoadError{Source: "postgres:" + s.name, Err: err}
	}
	return b, nil
}

func (s *PostgresStore) loadActive(ctx context.Context) (*Bundle, error) {
	var (
		b         Bundle
		blob      []byte
		colsJSON  []byte
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, version, model_format, model_blob, columns, created_at
		FROM model_artifacts
		WHERE name = $1 AND active = true
	`, s.name).Scan(&b.ID, &b.Version, &b.Format, &blob, &colsJSON, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active version of model %s", s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active artifact: %w", err)
	}

	regressor, err := model.Decode(b.Format, blob)
	if err != nil {
		return nil, err
	}
	cols, err := DecodeColumns(model.FormatJSON, colsJSON)
	if err != nil {
		return nil, err
	}

	b.Name = s.name
	b.Regressor = regressor
	b.Columns = cols
	b.CreatedAt = createdAt
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Publish stores a new version and makes it the active one.
// The artifact is decoded and validated first so a corrupt upload can
// never become active.
func (s *PostgresStore) Publish(ctx context.Context, format string, modelData []byte, cols []string) (int, error) {
	regressor, err := model.Decode(format, modelData)
	if err != nil {
		return 0, fmt.Errorf("refusing to publish: %w", err)
	}
	candidate := &Bundle{Regressor: regressor, Columns: cols}
	if err := candidate.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to publish: %w", err)
	}

	colsJSON, err := json.Marshal(cols)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal columns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockName(ctx, tx); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE model_artifacts
		SET active = false
		WHERE name = $1
	`, s.name); err != nil {
		return 0, fmt.Errorf("failed to deactivate old versions: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO model_artifacts (id, name, version, model_format, model_blob, columns, active, created_at)
		SELECT $1::uuid, $2::text, COALESCE(MAX(version), 0) + 1, $3::text, $4::bytea, $5::jsonb, true, NOW()
		FROM model_artifacts
		WHERE name = $2
		RETURNING version
	`, uuid.New(), s.name, format, modelData, string(colsJSON)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artifact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit artifact: %w", err)
	}
	return version, nil
}

// Activate switches the active version, e.g. to roll back a bad publish
func (s *PostgresStore) Activate(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockName(ctx, tx); err != nil {
		return err
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM model_artifacts WHERE name = $1 AND version = $2)
	`, s.name, version).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check version existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("model %s has no version %d", s.name, version)
	}

	// Deactivate first: at most one active row per name is enforced by index
	if _, err := tx.ExecContext(ctx, `
		UPDATE model_artifacts
		SET active = false
		WHERE name = $1 AND active = true
	`, s.name); err != nil {
		return fmt.Errorf("failed to deactivate old versions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE model_artifacts
		SET active = true
		WHERE name = $1 AND version = $2
	`, s.name, version); err != nil {
		return fmt.Errorf("failed to activate version: %w", err)
	}

	return tx.Commit()
}

// lockName serializes writers of one model name until tx ends.
// Row locks do nothing before the first version exists, so an advisory lock
// keyed by the name is used instead.
func (s *PostgresStore) lockName(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		SELECT pg_advisory_xact_lock(hashtext($1))
	`, s.name); err != nil {
		return fmt.Errorf("failed to lock model versions: %w", err)
	}
	return nil
}

// ListVersions returns every stored version, newest first
func (s *PostgresStore) ListVersions(ctx context.Context) ([]VersionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, model_format, jsonb_array_length(columns), active, created_at
		FROM model_artifacts
		WHERE name = $1
		ORDER BY version DESC
	`, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []VersionInfo
	for rows.Next() {
		var v VersionInfo
		if err := rows.Scan(&v.ID, &v.Version, &v.Format, &v.ColumnCount, &v.Active, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}
