package receipts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"clearinghouse/internal/document/models"
)

func TestRecordIsKeyedByPid(t *testing.T) {
	p := New(nil, "clearinghouse.receipts")
	receipt := models.Receipt{
		DocumentID: "0190a4c2-0000-7000-8000-000000000001",
		Pid:        "pid-1",
		ReceivedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		ChainHash:  "ab12",
	}

	rec, err := p.record(receipt)
	require.NoError(t, err)
	assert.Equal(t, "clearinghouse.receipts", rec.Topic)
	assert.Equal(t, []byte("pid-1"), rec.Key)

	var decoded models.Receipt
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, receipt, decoded)
}

func TestPublishAfterCloseFails(t *testing.T) {
	client, err := kgo.NewClient(kgo.SeedBrokers("127.0.0.1:1"))
	require.NoError(t, err)
	p := New(client, "clearinghouse.receipts")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx), "second close is a no-op")

	err = p.Publish(ctx, models.Receipt{Pid: "pid-1"})
	assert.ErrorIs(t, err, ErrClosed)
}
