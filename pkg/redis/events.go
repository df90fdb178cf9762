package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xrplstats/richlist/pkg/utils"
)

// Event types. Each is published on the channel ChannelPrefix+type.
const (
	EventSnapshotWritten = "snapshot.written"
	EventStatsWritten    = "stats.written"

	ChannelPrefix = "richlist:"
	EventStream   = "richlist:events"
)

// Event announces a file the pipeline finished writing.
type Event struct {
	RunID       string    `json:"runId"`
	Type        string    `json:"type"`
	LedgerIndex uint64    `json:"ledgerIndex"`
	LedgerHash  string    `json:"ledgerHash"`
	Path        string    `json:"path"`
	Accounts    int       `json:"accounts"`
	At          time.Time `json:"at"`
}

// Publisher is the subset of *Client the Notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{})
	XAdd(ctx context.Context, stream string, values map[string]interface{}) string
}

// Notifier publishes completion events. A nil *Notifier, or one without a publisher, drops them.
type Notifier struct {
	pub    Publisher
	logger *zap.Logger
	now    func() time.Time
}

// NewNotifier returns a notifier publishing through pub.
func NewNotifier(pub Publisher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, logger: logger, now: time.Now}
}

// NewRunID returns an identifier shared by the events of one pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

// Notify publishes ev on its channel and appends it to the event stream.
// It fills in RunID and At when they are unset and returns the event as sent.
func (n *Notifier) Notify(ctx context.Context, ev Event) Event {
	if ev.RunID == "" {
		ev.RunID = NewRunID()
	}
	if ev.At.IsZero() && n != nil {
		ev.At = n.now().UTC()
	}
	if n == nil || n.pub == nil {
		return ev
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("Failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return ev
	}
	n.pub.Publish(ctx, ChannelPrefix+ev.Type, payload)
	id := n.pub.XAdd(ctx, EventStream, map[string]interface{}{
		"type":        ev.Type,
		"runId":       ev.RunID,
		"ledgerIndex": strconv.FormatUint(ev.LedgerIndex, 10),
		"payload":     string(payload),
	})
	n.logger.Debug("Published event",
		zap.String("type", ev.Type),
		zap.String("run_id", ev.RunID),
		zap.String("stream_id", id))
	return ev
}

// NewNotifierFromEnv connects to Redis when REDIS_ENABLED is true and returns a notifier with its closer.
// A failed connection disables events rather than failing the caller.
func NewNotifierFromEnv(ctx context.Context, logger *zap.Logger) (*Notifier, func()) {
	if !utils.EnvBool("REDIS_ENABLED", false) {
		logger.Debug("Redis disabled - completion events will not be published")
		return NewNotifier(nil, logger), func() {}
	}
	client, err := NewClient(ctx, logger)
	if err != nil {
		logger.Warn("Failed to initialize Redis client - completion events will be disabled", zap.Error(err))
		return NewNotifier(nil, logger), func() {}
	}
	return NewNotifier(client, logger), func() { _ = client.Close() }
}
