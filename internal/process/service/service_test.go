package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"clearinghouse/internal/process/models"
	"clearinghouse/internal/process/store"
	dErrors "clearinghouse/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.service = New(s.store)
}

func (s *ServiceSuite) TestCreate() {
	s.Run("stores owners in order", func() {
		p, err := s.service.Create(s.ctx, "pid-create", []string{"connector-a", "connector-b"})
		s.Require().NoError(err)
		s.Equal([]string{"connector-a", "connector-b"}, p.Owners)

		owners, err := s.service.Owners(s.ctx, "pid-create")
		s.Require().NoError(err)
		s.Equal([]string{"connector-a", "connector-b"}, owners)
	})

	s.Run("second create conflicts", func() {
		_, err := s.service.Create(s.ctx, "pid-twice", []string{"connector-a"})
		s.Require().NoError(err)

		_, err = s.service.Create(s.ctx, "pid-twice", []string{"connector-b"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		owners, err := s.service.Owners(s.ctx, "pid-twice")
		s.Require().NoError(err)
		s.Equal([]string{"connector-a"}, owners)
	})

	s.Run("rejects an empty owner set", func() {
		_, err := s.service.Create(s.ctx, "pid-empty", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestIsOwner() {
	_, err := s.service.Create(s.ctx, "pid-owned", []string{"connector-a"})
	s.Require().NoError(err)

	s.Run("owner", func() {
		ok, err := s.service.IsOwner(s.ctx, "pid-owned", "connector-a")
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("non-owner", func() {
		ok, err := s.service.IsOwner(s.ctx, "pid-owned", "connector-b")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("unknown pid is not found", func() {
		ok, err := s.service.IsOwner(s.ctx, "pid-unknown", "connector-a")
		s.False(ok)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestEnsure() {
	s.Run("creates with subject as sole owner", func() {
		p, created, err := s.service.Ensure(s.ctx, "pid-implicit", "connector-a")
		s.Require().NoError(err)
		s.True(created)
		s.Equal([]string{"connector-a"}, p.Owners)
	})

	s.Run("returns existing process untouched", func() {
		_, err := s.service.Create(s.ctx, "pid-existing", []string{"connector-a"})
		s.Require().NoError(err)

		p, created, err := s.service.Ensure(s.ctx, "pid-existing", "connector-b")
		s.Require().NoError(err)
		s.False(created)
		s.Equal([]string{"connector-a"}, p.Owners)
	})

	s.Run("concurrent callers agree on one creator", func() {
		const callers = 32
		var wg sync.WaitGroup
		var creations atomic.Int32
		owners := make(chan string, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p, created, err := s.service.Ensure(s.ctx, "pid-race", "connector-"+string(rune('a'+i%26)))
				if err != nil {
					return
				}
				if created {
					creations.Add(1)
				}
				owners <- p.Owners[0]
			}(i)
		}
		wg.Wait()
		close(owners)

		s.Equal(int32(1), creations.Load())
		var first string
		for o := range owners {
			if first == "" {
				first = o
			}
			s.Equal(first, o)
		}
	})
}

type failingStore struct{ err error }

func (f failingStore) Create(context.Context, *models.Process) error { return f.err }
func (f failingStore) FindByPid(context.Context, string) (*models.Process, error) {
	return nil, f.err
}

func (s *ServiceSuite) TestStoreFailures() {
	s.Run("storage fault is internal", func() {
		svc := New(failingStore{err: errors.New("connection reset")})
		_, err := svc.Owners(s.ctx, "pid")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("deadline is a timeout", func() {
		svc := New(failingStore{err: context.DeadlineExceeded})
		_, err := svc.Create(s.ctx, "pid", []string{"connector-a"})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}
