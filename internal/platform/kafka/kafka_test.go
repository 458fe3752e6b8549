package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"

	"certledger/internal/platform/config"
)

type fakeAdmin struct {
	resps  kadm.CreateTopicResponses
	err    error
	topics []string
}

func (f *fakeAdmin) CreateTopics(_ context.Context, _ int32, _ int16, _ map[string]*string, topics ...string) (kadm.CreateTopicResponses, error) {
	f.topics = append(f.topics, topics...)
	return f.resps, f.err
}

func TestEnsureTopic(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		admin := &fakeAdmin{resps: kadm.CreateTopicResponses{"audit": {Topic: "audit"}}}
		require.NoError(t, EnsureTopic(context.Background(), admin, "audit"))
		assert.Equal(t, []string{"audit"}, admin.topics)
	})

	t.Run("already exists", func(t *testing.T) {
		admin := &fakeAdmin{resps: kadm.CreateTopicResponses{"audit": {Topic: "audit", Err: kerr.TopicAlreadyExists}}}
		assert.NoError(t, EnsureTopic(context.Background(), admin, "audit"))
	})

	t.Run("broker refuses", func(t *testing.T) {
		admin := &fakeAdmin{resps: kadm.CreateTopicResponses{"audit": {Topic: "audit", Err: kerr.TopicAuthorizationFailed}}}
		assert.ErrorIs(t, EnsureTopic(context.Background(), admin, "audit"), kerr.TopicAuthorizationFailed)
	})

	t.Run("request fails", func(t *testing.T) {
		admin := &fakeAdmin{err: errors.New("no brokers")}
		assert.ErrorContains(t, EnsureTopic(context.Background(), admin, "audit"), "no brokers")
	})
}

func TestNewClientRequiresBrokers(t *testing.T) {
	_, err := NewClient(context.Background(), config.KafkaConfig{})
	assert.ErrorContains(t, err, "brokers are required")
}
