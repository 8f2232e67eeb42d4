package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusDeliversSynchronously(t *testing.T) {
	b := NewLocalBus()
	var got []Event
	_, err := b.Subscribe(TopicMintSubmitted, func(ctx context.Context, e Event) {
		got = append(got, e)
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), Event{
		Topic:   TopicMintSubmitted,
		Payload: []byte(`{"id":1}`),
	}))

	require.Len(t, got, 1)
	assert.Equal(t, TopicMintSubmitted, got[0].Topic)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestLocalBusTopicIsolation(t *testing.T) {
	b := NewLocalBus()
	var calls int
	_, err := b.Subscribe(TopicCertificateIssued, func(ctx context.Context, e Event) { calls++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicAuditDecided}))
	assert.Zero(t, calls)
}

func TestLocalBusUnsubscribe(t *testing.T) {
	b := NewLocalBus()
	var calls int
	cancel, err := b.Subscribe(TopicAuditDecided, func(ctx context.Context, e Event) { calls++ })
	require.NoError(t, err)

	cancel()
	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicAuditDecided}))
	assert.Zero(t, calls)
}
