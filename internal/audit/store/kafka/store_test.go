package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"certledger/internal/audit"
)

type recordingProducer struct {
	records []*kgo.Record
	err     error
}

func (p *recordingProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestAppendProducesKeyedJSON(t *testing.T) {
	producer := &recordingProducer{}
	store := New(producer, "certledger.audit")
	event := audit.Event{
		Timestamp: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Action:    audit.ActionCertificateIssued,
		Subject:   "CERT-9",
		TxHash:    "feed",
	}

	require.NoError(t, store.Append(context.Background(), event))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "certledger.audit", rec.Topic)
	assert.Equal(t, []byte("CERT-9"), rec.Key)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "certificate_issued", string(rec.Headers[0].Value))

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestAppendReturnsProduceError(t *testing.T) {
	producer := &recordingProducer{err: errors.New("broker down")}
	store := New(producer, "t")
	err := store.Append(context.Background(), audit.Event{Action: audit.ActionCertificateVerified, Subject: "x"})
	assert.ErrorContains(t, err, "broker down")
}
