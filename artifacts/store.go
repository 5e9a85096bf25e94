package artifacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/carprice/features"
	"github.com/liamcoop/carprice/model"
)

// ErrArtifactLoad is matched by every LoadError
var ErrArtifactLoad = errors.New("artifact load failed")

// LoadError reports a missing or corrupt artifact. It is fatal at startup.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load artifacts from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool {
	return target == ErrArtifactLoad
}

// Bundle is the immutable pair produced by a training run: a regressor and
// the ordered columns it was fit against.
type Bundle struct {
	ID        uuid.UUID
	Name      string
	Version   int
	Format    string
	Regressor model.Regressor
	Columns   features.Columns
	CreatedAt time.Time
}

// Validate checks that the regressor and columns belong together
func (b *Bundle) Validate() error {
	if b.Regressor == nil {
		return fmt.Errorf("bundle has no regressor")
	}
	if err := b.Columns.Validate(); err != nil {
		return err
	}
	if n := b.Regressor.NumFeatures(); n != len(b.Columns) {
		return fmt.Errorf("regressor expects %d features but %d columns were supplied", n, len(b.Columns))
	}
	return nil
}

// Store provides the active artifact bundle
type Store interface {
	// Load returns the active bundle or a LoadError
	Load(ctx context.Context) (*Bundle, error)
}

// InMemoryStore serves a bundle built in process
type InMemoryStore struct {
	bundle *Bundle
}

// NewInMemoryStore creates a store around an existing bundle
func NewInMemoryStore(b *Bundle) *InMemoryStore {
	return &InMemoryStore{bundle: b}
}

// Load returns the wrapped bundle
func (s *InMemoryStore) Load(ctx context.Context) (*Bundle, error) {
	if s.bundle == nil {
		return nil, &LoadError{Source: "memory", Err: errors.New("no bundle configured")}
	}
	if err := s.bundle.Validate(); err != nil {
		return nil, &LoadError{Source: "memory", Err: err}
	}
	return s.bundle, nil
}

// DecodeColumns decodes an expected column list
func DecodeColumns(format string, data []byte) (features.Columns, error) {
	var cols []string
	if err := model.Unmarshal(format, data, &cols); err != nil {
		return nil, fmt.Errorf("failed to decode %s columns: %w", format, err)
	}
	return features.Columns(cols), nil
}

// EncodeColumns serializes an expected column list
func EncodeColumns(format string, cols features.Columns) ([]byte, error) {
	return model.Marshal(format, []string(cols))
}

// contentID derives a stable bundle id from the artifact bytes
func contentID(parts ...[]byte) uuid.UUID {
	var data []byte
	for _, p := range parts {
		data = append(data, p...)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, data)
}
