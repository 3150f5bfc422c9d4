//go:build integration

package store_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clearinghouse/internal/keyring/models"
	"clearinghouse/internal/keyring/store"
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
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "keyring_entries"))
}

func newEntry(pid, docType string, keyByte byte) *models.Entry {
	return &models.Entry{
		Pid:       pid,
		DocTypeID: docType,
		Key:       bytes.Repeat([]byte{keyByte}, models.KeySize),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	e := newEntry("pid-pg", "SENSOR_READING", 9)
	e.Schema = models.SchemaJSON
	s.Require().NoError(s.store.Put(ctx, e))

	got, err := s.store.Get(ctx, "pid-pg", "SENSOR_READING")
	s.Require().NoError(err)
	s.Equal(e.Key, got.Key)
	s.Equal(models.SchemaJSON, got.Schema)
	s.True(e.CreatedAt.Equal(got.CreatedAt))

	_, err = s.store.Get(ctx, models.GlobalScope, "SENSOR_READING")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPutRefusesAnotherKey() {
	ctx := context.Background()
	e := newEntry("pid-pg", "IDS_MESSAGE", 3)
	s.Require().NoError(s.store.Put(ctx, e))

	sameKey := *e
	sameKey.Schema = models.SchemaJSON
	s.Require().NoError(s.store.Put(ctx, &sameKey))

	s.ErrorIs(s.store.Put(ctx, newEntry("pid-pg", "IDS_MESSAGE", 4)), sentinel.ErrAlreadyUsed)

	got, err := s.store.Get(ctx, "pid-pg", "IDS_MESSAGE")
	s.Require().NoError(err)
	s.Equal(e.Key, got.Key)
	s.Equal(models.SchemaJSON, got.Schema)
}

func (s *PostgresStoreSuite) TestDeleteThenInsertWithAnotherKey() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, newEntry("pid-pg", "IDS_MESSAGE", 3)))
	s.Require().NoError(s.store.Delete(ctx, "pid-pg", "IDS_MESSAGE"))
	s.Require().NoError(s.store.Delete(ctx, "pid-pg", "IDS_MESSAGE"))

	_, err := s.store.Get(ctx, "pid-pg", "IDS_MESSAGE")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.NoError(s.store.Put(ctx, newEntry("pid-pg", "IDS_MESSAGE", 4)))
}

// TestConcurrentRegistration verifies that racing registrations with
// different keys leave exactly one key in place.
func (s *PostgresStoreSuite) TestConcurrentRegistration() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var stored, refused atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(keyByte byte) {
			defer wg.Done()
			err := s.store.Put(ctx, newEntry("pid-race", "IDS_MESSAGE", keyByte))
			switch {
			case err == nil:
				stored.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				refused.Add(1)
			}
		}(byte(i + 1))
	}
	wg.Wait()

	s.Equal(int32(1), stored.Load())
	s.Equal(int32(goroutines-1), refused.Load())
}
