package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"clearinghouse/internal/document/models"
	"clearinghouse/pkg/platform/sentinel"
)

type location struct {
	pid   string
	index int
}

// InMemory keeps each pid's log as a slice in append order.
type InMemory struct {
	mu   sync.RWMutex
	logs map[string][]*models.Document
	byID map[string]location
}

func NewInMemory() *InMemory {
	return &InMemory{
		logs: make(map[string][]*models.Document),
		byID: make(map[string]location),
	}
}

// Insert appends d to its pid's log. d.Seq must be the next sequence number
// and d.DocumentID must be unused.
func (s *InMemory) Insert(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byID[d.DocumentID]; taken {
		return fmt.Errorf("document %s: %w", d.DocumentID, sentinel.ErrAlreadyUsed)
	}
	log := s.logs[d.Pid]
	if d.Seq != int64(len(log))+1 {
		return fmt.Errorf("document seq %d under %q: %w", d.Seq, d.Pid, sentinel.ErrAlreadyUsed)
	}
	s.logs[d.Pid] = append(log, clone(d))
	s.byID[d.DocumentID] = location{pid: d.Pid, index: len(log)}
	return nil
}

// Head returns the last document under pid.
func (s *InMemory) Head(_ context.Context, pid string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.logs[pid]
	if len(log) == 0 {
		return nil, fmt.Errorf("head of %q: %w", pid, sentinel.ErrNotFound)
	}
	return clone(log[len(log)-1]), nil
}

func (s *InMemory) Get(_ context.Context, pid, documentID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.byID[documentID]
	if !ok || loc.pid != pid {
		return nil, fmt.Errorf("document %s under %q: %w", documentID, pid, sentinel.ErrNotFound)
	}
	return clone(s.logs[pid][loc.index]), nil
}

// List returns pid's documents in append order.
func (s *InMemory) List(_ context.Context, pid string) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.logs[pid]
	out := make([]*models.Document, len(log))
	for i, d := range log {
		out[i] = clone(d)
	}
	return out, nil
}

// Tamper rewrites a stored document in place. Test hook for chain
// verification; not reachable from the service.
func (s *InMemory) Tamper(pid string, seq int64, fn func(d *models.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log := s.logs[pid]; seq >= 1 && int(seq) <= len(log) {
		fn(log[seq-1])
	}
}

func clone(d *models.Document) *models.Document {
	cp := *d
	cp.HashChainPrev = slices.Clone(d.HashChainPrev)
	cp.Hash = slices.Clone(d.Hash)
	cp.SealedPayload = slices.Clone(d.SealedPayload)
	cp.Header.RecipientConnector = slices.Clone(d.Header.RecipientConnector)
	cp.Header.RecipientAgent = slices.Clone(d.Header.RecipientAgent)
	if d.Header.SecurityToken != nil {
		token := *d.Header.SecurityToken
		cp.Header.SecurityToken = &token
	}
	return &cp
}
