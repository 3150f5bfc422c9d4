package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clearinghouse/internal/process/models"
	"clearinghouse/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestCreateOnce() {
	p := &models.Process{Pid: "pid-1", Owners: []string{"connector-a"}, CreatedAt: time.Now()}
	s.Require().NoError(s.store.Create(s.ctx, p))
	s.Require().ErrorIs(s.store.Create(s.ctx, p), sentinel.ErrAlreadyUsed)
}

func (s *InMemorySuite) TestReturnsCopies() {
	p := &models.Process{Pid: "pid-1", Owners: []string{"connector-a"}, CreatedAt: time.Now()}
	s.Require().NoError(s.store.Create(s.ctx, p))
	p.Owners[0] = "mutated"

	found, err := s.store.FindByPid(s.ctx, "pid-1")
	s.Require().NoError(err)
	s.Equal([]string{"connector-a"}, found.Owners)

	found.Owners[0] = "mutated"
	again, err := s.store.FindByPid(s.ctx, "pid-1")
	s.Require().NoError(err)
	s.Equal("connector-a", again.Owners[0])
}

func (s *InMemorySuite) TestNotFound() {
	_, err := s.store.FindByPid(s.ctx, "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
