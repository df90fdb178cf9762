package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type published struct {
	channel string
	message interface{}
}

type fakePublisher struct {
	published []published
	streams   []map[string]interface{}
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) {
	f.published = append(f.published, published{channel: channel, message: message})
}

func (f *fakePublisher) XAdd(_ context.Context, stream string, values map[string]interface{}) string {
	f.streams = append(f.streams, values)
	return "1-0"
}

func TestNotifier_Notify(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, zaptest.NewLogger(t))
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return at }

	sent := n.Notify(context.Background(), Event{
		Type:        EventSnapshotWritten,
		LedgerIndex: 32570,
		LedgerHash:  "ABC",
		Path:        "data/32570.json",
		Accounts:    12,
	})

	_, err := uuid.Parse(sent.RunID)
	require.NoError(t, err)
	assert.Equal(t, at, sent.At)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "richlist:snapshot.written", pub.published[0].channel)
	var got Event
	require.NoError(t, json.Unmarshal(pub.published[0].message.([]byte), &got))
	assert.Equal(t, sent, got)

	require.Len(t, pub.streams, 1)
	assert.Equal(t, "32570", pub.streams[0]["ledgerIndex"])
	assert.Equal(t, sent.RunID, pub.streams[0]["runId"])
}

func TestNotifier_KeepsRunID(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, nil)
	runID := NewRunID()

	n.Notify(context.Background(), Event{RunID: runID, Type: EventSnapshotWritten})
	sent := n.Notify(context.Background(), Event{RunID: runID, Type: EventStatsWritten})

	assert.Equal(t, runID, sent.RunID)
	require.Len(t, pub.published, 2)
	assert.Equal(t, "richlist:stats.written", pub.published[1].channel)
}

func TestNotifier_Disabled(t *testing.T) {
	var n *Notifier
	ev := n.Notify(context.Background(), Event{Type: EventStatsWritten})
	assert.NotEmpty(t, ev.RunID)

	n = NewNotifier(nil, nil)
	assert.NotPanics(t, func() { n.Notify(context.Background(), Event{Type: EventStatsWritten}) })
}

func TestNewNotifierFromEnv_Disabled(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	n, closeFn := NewNotifierFromEnv(context.Background(), zaptest.NewLogger(t))
	defer closeFn()
	require.NotNil(t, n)
	assert.Nil(t, n.pub)
}
