package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/plan"
)

// runDocument is the on-disk shape of one user's generation record.
type runDocument struct {
	Status generation.Status `json:"status"`
	Input  *plan.Input        `json:"input,omitempty"`
	Data   *plan.Accumulated  `json:"data,omitempty"`
}

// FileStore keeps one JSON document per user under basePath. It is meant for
// a single process; writes are serialized by a mutex and replace the file
// atomically.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

// NewFileStore creates a FileStore and ensures the base directory exists.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

// fileName makes the user ID safe and reversible as a file name.
func fileName(userID string) string {
	return strings.ReplaceAll(url.PathEscape(userID), ":", "%3A") + ".json"
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.basePath, fileName(userID))
}

func (s *FileStore) load(userID string) (*runDocument, error) {
	data, err := os.ReadFile(s.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var doc runDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run file: %w", err)
	}
	return &doc, nil
}

func (s *FileStore) save(doc *runDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write run file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close run file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(doc.Status.UserID)); err != nil {
		return fmt.Errorf("failed to replace run file: %w", err)
	}
	return nil
}

func (s *FileStore) GetStatus(_ context.Context, userID string) (*generation.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(userID)
	if err != nil || doc == nil {
		return nil, err
	}
	return &doc.Status, nil
}

func (s *FileStore) SetStatus(_ context.Context, status generation.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(status.UserID)
	if err != nil {
		return err
	}
	if doc == nil {
		return s.save(&runDocument{Status: generation.PrepareSet(nil, status)})
	}
	doc.Status = generation.PrepareSet(&doc.Status, status)
	return s.save(doc)
}

func (s *FileStore) DeleteStatus(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove run file: %w", err)
	}
	return nil
}

func (s *FileStore) GetAccumulatedData(_ context.Context, userID string) (*plan.Accumulated, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(userID)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Data, nil
}

func (s *FileStore) GetInputSnapshot(_ context.Context, userID string) (*plan.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(userID)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Input, nil
}

func (s *FileStore) CreateIfIdle(_ context.Context, status generation.Status, input plan.Input) (generation.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(status.UserID)
	if err != nil {
		return generation.Status{}, false, err
	}
	var existing *generation.Status
	if doc != nil {
		existing = &doc.Status
	}
	next, ok := generation.PrepareCreate(existing, status)
	if !ok {
		return next, false, nil
	}

	in := input
	err = s.save(&runDocument{
		Status: next,
		Input:  &in,
		Data:   &plan.Accumulated{InputSnapshot: input},
	})
	if err != nil {
		return generation.Status{}, false, err
	}
	return next, true, nil
}

func (s *FileStore) CompareAndSwap(_ context.Context, userID string, expectedVersion int64, status generation.Status, data *plan.Accumulated) (*generation.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(userID)
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return nil, false, nil
	}
	next, ok := generation.PrepareSwap(&doc.Status, expectedVersion, status)
	if !ok {
		return &doc.Status, false, nil
	}

	doc.Status = next
	if data != nil {
		doc.Data = data
	}
	if err := s.save(doc); err != nil {
		return nil, false, err
	}
	return &next, true, nil
}

// GeneratingUsers lists users whose run is still marked as generating.
func (s *FileStore) GeneratingUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.basePath, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob run files: %w", err)
	}

	var users []string
	for _, match := range matches {
		userID, err := url.PathUnescape(strings.TrimSuffix(filepath.Base(match), ".json"))
		if err != nil {
			continue
		}
		doc, err := s.load(userID)
		if err != nil {
			return nil, err
		}
		if doc != nil && doc.Status.IsGenerating {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users, nil
}
