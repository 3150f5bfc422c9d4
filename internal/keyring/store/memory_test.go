package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"clearinghouse/internal/keyring/models"
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

func (s *InMemorySuite) entry(pid, docType string) *models.Entry {
	return &models.Entry{Pid: pid, DocTypeID: docType, Key: bytes.Repeat([]byte{1}, models.KeySize)}
}

func (s *InMemorySuite) TestPutIsUpsert() {
	s.Require().NoError(s.store.Put(s.ctx, s.entry("pid-1", "IDS_MESSAGE")))
	replacement := s.entry("pid-1", "IDS_MESSAGE")
	replacement.Schema = models.SchemaJSON
	s.Require().NoError(s.store.Put(s.ctx, replacement))

	got, err := s.store.Get(s.ctx, "pid-1", "IDS_MESSAGE")
	s.Require().NoError(err)
	s.Equal(models.SchemaJSON, got.Schema)
}

func (s *InMemorySuite) TestDeleteIsIdempotent() {
	s.Require().NoError(s.store.Put(s.ctx, s.entry("pid-1", "IDS_MESSAGE")))
	s.Require().NoError(s.store.Delete(s.ctx, "pid-1", "IDS_MESSAGE"))
	s.Require().NoError(s.store.Delete(s.ctx, "pid-1", "IDS_MESSAGE"))

	_, err := s.store.Get(s.ctx, "pid-1", "IDS_MESSAGE")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestScopedByPid() {
	s.Require().NoError(s.store.Put(s.ctx, s.entry("pid-1", "IDS_MESSAGE")))
	_, err := s.store.Get(s.ctx, "pid-2", "IDS_MESSAGE")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestPutKeepsTheOriginalKey() {
	s.Require().NoError(s.store.Put(s.ctx, s.entry("pid-1", "IDS_MESSAGE")))
	rekeyed := s.entry("pid-1", "IDS_MESSAGE")
	rekeyed.Key = bytes.Repeat([]byte{2}, models.KeySize)

	s.ErrorIs(s.store.Put(s.ctx, rekeyed), sentinel.ErrAlreadyUsed)

	got, err := s.store.Get(s.ctx, "pid-1", "IDS_MESSAGE")
	s.Require().NoError(err)
	s.Equal(bytes.Repeat([]byte{1}, models.KeySize), got.Key)

	s.Require().NoError(s.store.Delete(s.ctx, "pid-1", "IDS_MESSAGE"))
	s.NoError(s.store.Put(s.ctx, rekeyed), "a deleted entry may come back with another key")
}
