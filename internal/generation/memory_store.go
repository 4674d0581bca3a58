package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"ai-fitness-coach/internal/plan"
)

type memoryRecord struct {
	status Status
	input  plan.Input
	data   []byte
}

// MemoryStore keeps generation records in process memory. Accumulators are
// stored as JSON so callers never share nested values with the store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) GetStatus(_ context.Context, userID string) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	st := rec.status
	return &st, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[status.UserID]
	if !ok {
		s.records[status.UserID] = &memoryRecord{status: PrepareSet(nil, status)}
		return nil
	}
	rec.status = PrepareSet(&rec.status, status)
	return nil
}

func (s *MemoryStore) DeleteStatus(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

func (s *MemoryStore) GetAccumulatedData(_ context.Context, userID string) (*plan.Accumulated, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok || rec.data == nil {
		return nil, nil
	}
	var acc plan.Accumulated
	if err := json.Unmarshal(rec.data, &acc); err != nil {
		return nil, fmt.Errorf("failed to decode accumulated data: %w", err)
	}
	return &acc, nil
}

func (s *MemoryStore) GetInputSnapshot(_ context.Context, userID string) (*plan.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	in := rec.input
	return &in, nil
}

func (s *MemoryStore) CreateIfIdle(_ context.Context, status Status, input plan.Input) (Status, bool, error) {
	data, err := json.Marshal(plan.Accumulated{InputSnapshot: input})
	if err != nil {
		return Status{}, false, fmt.Errorf("failed to encode accumulated data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *Status
	if rec, ok := s.records[status.UserID]; ok {
		existing = &rec.status
	}
	next, ok := PrepareCreate(existing, status)
	if !ok {
		return next, false, nil
	}
	s.records[status.UserID] = &memoryRecord{status: next, input: input, data: data}
	return next, true, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, userID string, expectedVersion int64, status Status, data *plan.Accumulated) (*Status, bool, error) {
	var encoded []byte
	if data != nil {
		var err error
		if encoded, err = json.Marshal(data); err != nil {
			return nil, false, fmt.Errorf("failed to encode accumulated data: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, false, nil
	}
	next, ok := PrepareSwap(&rec.status, expectedVersion, status)
	if !ok {
		cur := rec.status
		return &cur, false, nil
	}
	rec.status = next
	if encoded != nil {
		rec.data = encoded
	}
	return &next, true, nil
}

// GeneratingUsers lists users whose run is still marked as generating.
func (s *MemoryStore) GeneratingUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []string
	for userID, rec := range s.records {
		if rec.status.IsGenerating {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users, nil
}
