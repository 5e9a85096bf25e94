package admission

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRuleStore is a RuleStore on the admission_rules table
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

// Add inserts a new rule
func (s *PostgresRuleStore) Add(rule *Rule) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO admission_rules (id, name, expression, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO NOTHING
	`, rule.ID, rule.Name, rule.Expression, rule.Active, now)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// Get retrieves a rule by id
func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	var rule Rule
	err := s.db.QueryRow(`
		SELECT id, name, expression, active, created_at, updated_at
		FROM admission_rules
		WHERE id = $1
	`, id).Scan(
		&rule.ID,
		&rule.Name,
		&rule.Expression,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return &rule, nil
}

// List returns every rule
func (s *PostgresRuleStore) List() ([]*Rule, error) {
	return s.query(`
		SELECT id, name, expression, active, created_at, updated_at
		FROM admission_rules
		ORDER BY created_at ASC, id ASC
	`)
}

// ListActive returns the active rules
func (s *PostgresRuleStore) ListActive() ([]*Rule, error) {
	return s.query(`
		SELECT id, name, expression, active, created_at, updated_at
		FROM admission_rules
		WHERE active = true
		ORDER BY created_at ASC, id ASC
	`)
}

func (s *PostgresRuleStore) query(q string) ([]*Rule, error) {
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Expression, &r.Active,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return out, nil
}

// Update modifies an existing rule, preserving created_at
func (s *PostgresRuleStore) Update(rule *Rule) error {
	var createdAt time.Time
	now := time.Now().UTC()
	err := s.db.QueryRow(`
		UPDATE admission_rules
		SET name = $1, expression = $2, active = $3, updated_at = $4
		WHERE id = $5
		RETURNING created_at
	`, rule.Name, rule.Expression, rule.Active, now, rule.ID).Scan(&createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rule.CreatedAt = createdAt
	rule.UpdatedAt = now
	return nil
}

// Delete removes a rule
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM admission_rules
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	return nil
}
