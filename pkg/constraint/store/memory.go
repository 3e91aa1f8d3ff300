package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage. All data is lost
// when the process exits.
//
// MemoryStore is thread-safe using sync.RWMutex. CAS checks and writes
// happen under one write lock, so the version check is atomic.
type MemoryStore struct {
	// states maps composite key (limit_id\x00subject_id) to state.
	states map[string]*RateLimitState

	// mu protects access to states.
	mu sync.RWMutex

	// maxEntries bounds the map; CAS creates fail above it.
	maxEntries int
}

// MemoryStoreConfig configures the memory store.
type MemoryStoreConfig struct {
	// MaxEntries is the maximum number of buckets to hold.
	// Default: 100,000
	MaxEntries int
}

// NewMemoryStore creates an in-memory store with default settings.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(MemoryStoreConfig{})
}

// NewMemoryStoreWithConfig creates an in-memory store with custom
// configuration.
func NewMemoryStoreWithConfig(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 100000
	}
	return &MemoryStore{
		states:     make(map[string]*RateLimitState),
		maxEntries: cfg.MaxEntries,
	}
}

func stateKey(limitID, subjectID string) string {
	return limitID + "\x00" + subjectID
}

// Load retrieves the state for a bucket.
func (m *MemoryStore) Load(ctx context.Context, limitID, subjectID string) (*RateLimitState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Copy so callers can mutate freely before the next CAS.
	return m.states[stateKey(limitID, subjectID)].Clone(), nil
}

// CompareAndSwap persists state if the stored version matches.
func (m *MemoryStore) CompareAndSwap(ctx context.Context, state *RateLimitState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.LimitID == "" || state.SubjectID == "" {
		return fmt.Errorf("limit id and subject id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := stateKey(state.LimitID, state.SubjectID)
	now := time.Now().UTC()
	current, exists := m.states[key]

	if state.Version == 0 {
		if exists {
			return &ConflictError{LimitID: state.LimitID, SubjectID: state.SubjectID, Expected: 0}
		}
		if len(m.states) >= m.maxEntries {
			return fmt.Errorf("store full: %d buckets", len(m.states))
		}
		state.Version = 1
		state.CreatedAt = now
		state.UpdatedAt = now
		m.states[key] = state.Clone()
		return nil
	}

	if !exists || current.Version != state.Version {
		return &ConflictError{LimitID: state.LimitID, SubjectID: state.SubjectID, Expected: state.Version}
	}
	state.Version++
	state.CreatedAt = current.CreatedAt
	state.UpdatedAt = now
	m.states[key] = state.Clone()
	return nil
}

// Delete removes a bucket.
func (m *MemoryStore) Delete(ctx context.Context, limitID, subjectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, stateKey(limitID, subjectID))
	return nil
}

// Cleanup removes buckets not updated since olderThan.
func (m *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key, state := range m.states {
		if state.UpdatedAt.Before(olderThan) {
			delete(m.states, key)
			deleted++
		}
	}
	return deleted, nil
}

// Close releases resources. The memory store holds none.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of live buckets.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
