package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"clearinghouse/internal/keyring/metrics"
	"clearinghouse/internal/keyring/models"
	"clearinghouse/internal/keyring/service/mocks"
	"clearinghouse/internal/keyring/store"
	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/platform/sentinel"
)

var masterSecret = []byte("0123456789abcdef0123456789abcdef")

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, masterSecret, WithMetrics(s.metrics))
}

func (s *ServiceSuite) TestInsert() {
	s.Run("derives a stable key when none is supplied", func() {
		first, err := s.service.Insert(s.ctx, "pid-1", "IDS_MESSAGE", models.Material{})
		s.Require().NoError(err)
		s.Len(first.Key, models.KeySize)

		s.Require().NoError(s.service.Delete(s.ctx, "pid-1", "IDS_MESSAGE"))
		second, err := s.service.Insert(s.ctx, "pid-1", "IDS_MESSAGE", models.Material{})
		s.Require().NoError(err)
		s.Equal(first.Key, second.Key)
	})

	s.Run("derived keys differ per pid and doc type", func() {
		a, err := s.service.Insert(s.ctx, "pid-a", "IDS_MESSAGE", models.Material{})
		s.Require().NoError(err)
		b, err := s.service.Insert(s.ctx, "pid-b", "IDS_MESSAGE", models.Material{})
		s.Require().NoError(err)
		c, err := s.service.Insert(s.ctx, "pid-a", "INVOICE", models.Material{})
		s.Require().NoError(err)

		s.NotEqual(a.Key, b.Key)
		s.NotEqual(a.Key, c.Key)
	})

	s.Run("refuses to replace an entry with a different key", func() {
		first, err := s.service.Insert(s.ctx, "pid-k", "IDS_MESSAGE", models.Material{})
		s.Require().NoError(err)

		_, err = s.service.Insert(s.ctx, "pid-k", "IDS_MESSAGE", models.Material{Key: bytes.Repeat([]byte{1}, models.KeySize)})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		kept, err := s.service.Lookup(s.ctx, "pid-k", "IDS_MESSAGE")
		s.Require().NoError(err)
		s.Equal(first.Key, kept.Key)
	})

	s.Run("same key re-registration updates the schema", func() {
		_, err := s.service.Insert(s.ctx, "pid-s", "IDS_MESSAGE", models.Material{})
		s.Require().NoError(err)
		_, err = s.service.Insert(s.ctx, "pid-s", "IDS_MESSAGE", models.Material{Schema: models.SchemaJSON})
		s.Require().NoError(err)

		e, err := s.service.Lookup(s.ctx, "pid-s", "IDS_MESSAGE")
		s.Require().NoError(err)
		s.Equal(models.SchemaJSON, e.Schema)
	})

	s.Run("rejects a wrong sized key", func() {
		_, err := s.service.Insert(s.ctx, "pid-1", "IDS_MESSAGE", models.Material{Key: []byte("short")})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestGet() {
	s.Require().NoError(s.service.SeedGlobal(s.ctx, []string{"IDS_MESSAGE"}))
	_, err := s.service.Insert(s.ctx, "pid-own", "IDS_MESSAGE", models.Material{Schema: models.SchemaJSON})
	s.Require().NoError(err)

	s.Run("pid entry wins over global", func() {
		e, err := s.service.Get(s.ctx, "pid-own", "IDS_MESSAGE")
		s.Require().NoError(err)
		s.Equal("pid-own", e.Pid)
		s.Equal(models.SchemaJSON, e.Schema)
	})

	s.Run("falls back to global scope", func() {
		e, err := s.service.Get(s.ctx, "pid-other", "IDS_MESSAGE")
		s.Require().NoError(err)
		s.Equal(models.GlobalScope, e.Pid)
	})

	s.Run("unregistered doc type is keyring missing", func() {
		_, err := s.service.Get(s.ctx, "pid-other", "INVOICE")
		s.True(dErrors.HasCode(err, dErrors.CodeKeyringMissing))
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Lookups.WithLabelValues("pid")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Lookups.WithLabelValues("global")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Lookups.WithLabelValues("miss")))
}

func (s *ServiceSuite) TestLookup() {
	s.Require().NoError(s.service.SeedGlobal(s.ctx, []string{"IDS_MESSAGE"}))

	s.Run("matches the exact scope only", func() {
		e, err := s.service.Lookup(s.ctx, models.GlobalScope, "IDS_MESSAGE")
		s.Require().NoError(err)
		s.Equal(models.GlobalScope, e.Pid)

		_, err = s.service.Lookup(s.ctx, "pid-1", "IDS_MESSAGE")
		s.True(dErrors.HasCode(err, dErrors.CodeKeyringMissing))
	})

	s.Run("a pid entry does not change what the global scope resolves to", func() {
		global, err := s.service.Lookup(s.ctx, models.GlobalScope, "IDS_MESSAGE")
		s.Require().NoError(err)
		_, err = s.service.Insert(s.ctx, "pid-1", "IDS_MESSAGE", models.Material{})
		s.Require().NoError(err)

		again, err := s.service.Lookup(s.ctx, models.GlobalScope, "IDS_MESSAGE")
		s.Require().NoError(err)
		s.Equal(global.KeyID(), again.KeyID())
	})

	s.Run("deleted entry is keyring missing", func() {
		s.Require().NoError(s.service.Delete(s.ctx, "pid-1", "IDS_MESSAGE"))
		_, err := s.service.Lookup(s.ctx, "pid-1", "IDS_MESSAGE")
		s.True(dErrors.HasCode(err, dErrors.CodeKeyringMissing))
	})
}

func (s *ServiceSuite) TestStoreFailures() {
	ctrl := gomock.NewController(s.T())
	mockStore := mocks.NewMockStore(ctrl)
	svc := New(mockStore, masterSecret)

	s.Run("lookup fault is internal, not missing", func() {
		mockStore.EXPECT().Get(gomock.Any(), "pid-1", "IDS_MESSAGE").Return(nil, errors.New("conn refused"))
		_, err := svc.Get(s.ctx, "pid-1", "IDS_MESSAGE")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("global lookup fault is internal", func() {
		gomock.InOrder(
			mockStore.EXPECT().Get(gomock.Any(), "pid-1", "IDS_MESSAGE").Return(nil, sentinel.ErrNotFound),
			mockStore.EXPECT().Get(gomock.Any(), models.GlobalScope, "IDS_MESSAGE").Return(nil, context.DeadlineExceeded),
		)
		_, err := svc.Get(s.ctx, "pid-1", "IDS_MESSAGE")
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("exact lookup fault is internal", func() {
		mockStore.EXPECT().Get(gomock.Any(), "pid-1", "IDS_MESSAGE").Return(nil, errors.New("conn refused"))
		_, err := svc.Lookup(s.ctx, "pid-1", "IDS_MESSAGE")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("put fault is internal", func() {
		mockStore.EXPECT().Put(gomock.Any(), gomock.Any()).Return(errors.New("READONLY"))
		_, err := svc.Insert(s.ctx, "pid-1", "IDS_MESSAGE", models.Material{})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("missing master secret cannot derive", func() {
		_, err := New(mockStore, nil).Insert(s.ctx, "pid-1", "IDS_MESSAGE", models.Material{})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
