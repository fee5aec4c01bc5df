package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const indexFileMode = 0644

const DefaultIndexFilename = "output_data.json"

// JSONStore keeps the index in a single indented JSON file. Writes go to a
// temporary file in the same directory and are renamed into place.
type JSONStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	return &JSONStore{path: path, logger: logger}
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) Load(ctx context.Context) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *JSONStore) Save(ctx context.Context, ix *Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ix)
}

func (s *JSONStore) SetLabel(ctx context.Context, videoName string, clip int, labelName string, labels LabelIndexer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, err := s.read()
	if err != nil {
		return 0, err
	}

	entry, ok := ix.Entry(videoName)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrVideoNotFound, videoName)
	}
	if err := checkSlot(entry, clip); err != nil {
		return 0, err
	}
	label, err := resolveLabel(labels, labelName)
	if err != nil {
		return 0, err
	}

	previous := entry.Labels[clip]
	entry.Labels[clip] = label

	if err := s.write(ix); err != nil {
		return 0, err
	}
	return previous, nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) read() (*Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to read annotation index: %w", err)
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("failed to parse annotation index %s: %w", s.path, err)
	}
	return &ix, nil
}

func (s *JSONStore) write(ix *Index) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.MarshalIndent(ix, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode annotation index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".output_data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(indexFileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set index file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write annotation index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync annotation index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close annotation index: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace annotation index: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("annotation index written", "path", s.path, "videos", len(ix.VideoList))
	}
	return nil
}
