package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liamcoop/carprice/model"
)

// Default file names inside an artifact directory
const (
	DefaultModelFile   = "model.json"
	DefaultColumnsFile = "columns.json"
)

// FileStore reads a bundle from two files in a directory.
// The encoding of each file follows its extension.
type FileStore struct {
	Dir         string
	ModelFile   string
	ColumnsFile string
	Name        string
}

// NewFileStore creates a store for dir using the default file names
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		Dir:         dir,
		ModelFile:   DefaultModelFile,
		ColumnsFile: DefaultColumnsFile,
		Name:        filepath.Base(dir),
	}
}

// Paths returns the model and columns file paths
func (s *FileStore) Paths() (modelPath, columnsPath string) {
	return filepath.Join(s.Dir, s.ModelFile), filepath.Join(s.Dir, s.ColumnsFile)
}

// Load reads, decodes and validates both files
func (s *FileStore) Load(ctx context.Context) (*Bundle, error) {
	b, err := s.load()
	if err != nil {
		return nil, &LoadError{Source: s.Dir, Err: err}
	}
	return b, nil
}

// ReadRaw returns the undecoded model bytes, their format and the decoded
// columns. Used when publishing file artifacts to another store.
func (s *FileStore) ReadRaw() (format string, modelData []byte, cols []string, err error) {
	raw, err := s.read()
	if err != nil {
		return "", nil, nil, err
	}
	decoded, err := DecodeColumns(raw.columnsFormat, raw.columns)
	if err != nil {
		return "", nil, nil, err
	}
	return raw.modelFormat, raw.model, decoded, nil
}

type rawFiles struct {
	modelFormat   string
	model         []byte
	columnsFormat string
	columns       []byte
}

func (s *FileStore) read() (*rawFiles, error) {
	modelPath, columnsPath := s.Paths()
	raw := &rawFiles{}

	var err error
	if raw.modelFormat, err = model.FormatFromPath(modelPath); err != nil {
		return nil, err
	}
	if raw.model, err = os.ReadFile(modelPath); err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	if raw.columnsFormat, err = model.FormatFromPath(columnsPath); err != nil {
		return nil, err
	}
	if raw.columns, err = os.ReadFile(columnsPath); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return raw, nil
}

func (s *FileStore) load() (*Bundle, error) {
	raw, err := s.read()
	if err != nil {
		return nil, err
	}
	regressor, err := model.Decode(raw.modelFormat, raw.model)
	if err != nil {
		return nil, err
	}
	cols, err := DecodeColumns(raw.columnsFormat, raw.columns)
	if err != nil {
		return nil, err
	}

	modelPath, _ := s.Paths()
	info, err := os.Stat(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	b := &Bundle{
		ID:        contentID(raw.model, raw.columns),
		Name:      s.Name,
		Format:    raw.modelFormat,
		Regressor: regressor,
		Columns:   cols,
		CreatedAt: info.ModTime(),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteFiles stores a bundle as a model and a columns file in dir.
// Formats follow the file extensions.
func WriteFiles(dir, modelFile, columnsFile string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	format, err := model.FormatFromPath(modelFile)
	if err != nil {
		return err
	}
	data, err := model.Encode(format, b.Regressor)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, modelFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	colsFormat, err := model.FormatFromPath(columnsFile)
	if err != nil {
		return err
	}
	colsData, err := EncodeColumns(colsFormat, b.Columns)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, columnsFile), colsData, 0644); err != nil {
		return fmt.Errorf("failed to write columns: %w", err)
	}
	return nil
}
