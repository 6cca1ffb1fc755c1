// Package projection maintains the read-side "recent activity" feed in Redis.
// It is fed live by a bus subscription and rebuilt from the log via the
// replayer after a restart or cache loss. The cache is always disposable;
// the event log is the source of truth.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rxledger/internal/eventstore"
	"rxledger/internal/eventstore/replayer"
)

const defaultKey = "rxledger:recent-activity"

// Entry is one item of the activity feed.
type Entry struct {
	EventID       string    `json:"eventId"`
	EventType     string    `json:"eventType"`
	AggregateType string    `json:"aggregateType"`
	AggregateID   string    `json:"aggregateId"`
	UserID        string    `json:"userId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// RecentActivity keeps the newest N events in a capped Redis list.
type RecentActivity struct {
	rdb    redis.Cmdable
	logger *slog.Logger
	key    string
	limit  int64
}

func NewRecentActivity(rdb redis.Cmdable, logger *slog.Logger, limit int64) *RecentActivity {
	if limit <= 0 {
		limit = 100
	}
	return &RecentActivity{rdb: rdb, logger: logger, key: defaultKey, limit: limit}
}

// Register subscribes the projection to every event kind the registry knows.
func (p *RecentActivity) Register(bus *eventstore.Bus, reg *eventstore.Registry) {
	for _, eventType := range reg.Types() {
		bus.Subscribe(eventType, p.handle)
	}
}

func (p *RecentActivity) handle(ctx context.Context, env eventstore.Envelope) error {
	entry := Entry{
		EventID:       env.EventID.String(),
		EventType:     env.EventType,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID.String(),
		OccurredAt:    env.OccurredAt,
	}
	if env.UserID != uuid.Nil {
		entry.UserID = env.UserID.String()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.LPush(ctx, p.key, raw)
	pipe.LTrim(ctx, p.key, 0, p.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push activity entry: %w", err)
	}
	return nil
}

// List returns up to n most recent entries, newest first.
func (p *RecentActivity) List(ctx context.Context, n int64) ([]Entry, error) {
	if n <= 0 || n > p.limit {
		n = p.limit
	}
	raws, err := p.rdb.LRange(ctx, p.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read activity feed: %w", err)
	}

	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			p.logger.WarnContext(ctx, "dropping malformed activity entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Rebuild clears the feed and replays every registered event kind through
// the bus, repopulating the cache from the log.
func (p *RecentActivity) Rebuild(ctx context.Context, rep *replayer.Replayer, reg *eventstore.Registry) error {
	if err := p.rdb.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("clear activity feed: %w", err)
	}

	for _, eventType := range reg.Types() {
		result, err := rep.ReplayByType(ctx, eventType)
		if err != nil {
			return fmt.Errorf("rebuild activity feed: %w", err)
		}
		p.logger.InfoContext(ctx, "replayed events into activity feed",
			"event_type", eventType,
			"delivered", result.Delivered,
			"skipped", result.Skipped,
		)
	}
	return nil
}
