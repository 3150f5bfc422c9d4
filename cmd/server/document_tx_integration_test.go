//go:build integration

package main

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	documentservice "clearinghouse/internal/document/service"
	documentstore "clearinghouse/internal/document/store"
	"clearinghouse/internal/ids"
	keyring "clearinghouse/internal/keyring/models"
	"clearinghouse/pkg/testutil/containers"
)

type DocumentTxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	service  *documentservice.Service
}

func TestDocumentTxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(DocumentTxSuite))
}

func (s *DocumentTxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	store := documentstore.NewPostgres(s.postgres.Pool)
	s.service = documentservice.New(store, newDocumentPostgresTx(s.postgres.Pool, 0))
}

func (s *DocumentTxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "documents"))
}

// Appends racing on one pid through separate connections must still form a
// single linear chain.
func (s *DocumentTxSuite) TestConcurrentAppendsShareOneChain() {
	ctx := context.Background()
	entry := &keyring.Entry{Key: make([]byte, keyring.KeySize)}
	const goroutines = 25

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			header := ids.IdsMessage{
				ID:              fmt.Sprintf("msg-%d", i),
				TypeMessage:     ids.MessageTypeLog,
				ModelVersion:    "4.0.0",
				Issued:          "2026-05-01T10:00:00Z",
				IssuerConnector: "https://connector-a.example",
				SenderAgent:     "https://connector-a.example/agent",
				Payload:         fmt.Sprintf(`{"n":%d}`, i),
			}
			if _, err := s.service.Append(ctx, "pid-race", "IDS_MESSAGE", header, entry); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	v, err := s.service.Verify(ctx, "pid-race")
	s.Require().NoError(err)
	s.Equal(goroutines, v.Documents)
	s.True(v.Valid, v.Reason)
}
