package store

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"clearinghouse/internal/keyring/models"
	"clearinghouse/pkg/platform/sentinel"
)

type entryKey struct {
	pid     string
	docType string
}

// InMemory keeps keyring entries in a map guarded by a RWMutex.
type InMemory struct {
	mu      sync.RWMutex
	entries map[entryKey]models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[entryKey]models.Entry)}
}

// Put inserts the entry for (e.Pid, e.DocTypeID), or updates its schema when
// the stored entry has the same key. A different key is ErrAlreadyUsed.
func (s *InMemory) Put(_ context.Context, e *models.Entry) error {
	cp := *e
	cp.Key = slices.Clone(e.Key)
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey{e.Pid, e.DocTypeID}
	if cur, ok := s.entries[k]; ok {
		if !bytes.Equal(cur.Key, e.Key) {
			return fmt.Errorf("keyring entry %s/%s: %w", e.Pid, e.DocTypeID, sentinel.ErrAlreadyUsed)
		}
		cp.CreatedAt = cur.CreatedAt
	}
	s.entries[k] = cp
	return nil
}

// Delete removes the entry; deleting a missing entry is not an error.
func (s *InMemory) Delete(_ context.Context, pid, docTypeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey{pid, docTypeID})
	return nil
}

func (s *InMemory) Get(_ context.Context, pid, docTypeID string) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryKey{pid, docTypeID}]
	if !ok {
		return nil, fmt.Errorf("keyring entry %s/%s: %w", pid, docTypeID, sentinel.ErrNotFound)
	}
	e.Key = slices.Clone(e.Key)
	return &e, nil
}
