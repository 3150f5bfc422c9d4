package store

import (
	"context"
	"fmt"
	"sync"

	"clearinghouse/internal/process/models"
	"clearinghouse/pkg/platform/sentinel"
)

// InMemory keeps processes in a map guarded by a RWMutex.
type InMemory struct {
	mu        sync.RWMutex
	processes map[string]*models.Process
}

func NewInMemory() *InMemory {
	return &InMemory{processes: make(map[string]*models.Process)}
}

// Create stores p unless its pid is already taken.
func (s *InMemory) Create(_ context.Context, p *models.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.processes[p.Pid]; exists {
		return fmt.Errorf("process %q: %w", p.Pid, sentinel.ErrAlreadyUsed)
	}
	s.processes[p.Pid] = p.Clone()
	return nil
}

func (s *InMemory) FindByPid(_ context.Context, pid string) (*models.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processes[pid]
	if !ok {
		return nil, fmt.Errorf("process %q: %w", pid, sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}
