//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clearinghouse/internal/process/models"
	"clearinghouse/internal/process/store"
	"clearinghouse/pkg/platform/sentinel"
	"clearinghouse/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "processes"))
}

func (s *PostgresStoreSuite) TestRoundTripsOwnersInOrder() {
	ctx := context.Background()
	p := &models.Process{
		Pid:       "pid-pg",
		Owners:    []string{"7A:2B:DD:keyid:CB:8C", "connector-b"},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByPid(ctx, "pid-pg")
	s.Require().NoError(err)
	s.Equal(p.Owners, found.Owners)
	s.True(p.CreatedAt.Equal(found.CreatedAt))
}

func (s *PostgresStoreSuite) TestUnknownPid() {
	_, err := s.store.FindByPid(context.Background(), "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// Concurrent creation of the same pid must yield exactly one winner.
func (s *PostgresStoreSuite) TestConcurrentCreateSinglesWinner() {
	ctx := context.Background()
	const goroutines = 25

	var wg sync.WaitGroup
	var success, conflict atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, &models.Process{Pid: "pid-race", Owners: []string{"connector-a"}, CreatedAt: time.Now()})
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflict.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), success.Load())
	s.Equal(int32(goroutines-1), conflict.Load())
}
