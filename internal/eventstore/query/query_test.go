package query

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rxledger/internal/eventstore"
	"rxledger/internal/eventstore/store/memory"
)

type fixture struct {
	store *memory.InMemoryStore
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewInMemoryStore()
	return &fixture{
		store: store,
		svc:   New(store, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func (f *fixture) insert(t *testing.T, eventType string, occurredAt time.Time) eventstore.StoredEvent {
	t.Helper()
	event := eventstore.StoredEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		EventVersion:  "v1",
		AggregateType: "user",
		AggregateID:   uuid.New(),
		CorrelationID: uuid.New(),
		UserID:        uuid.New(),
		OccurredAt:    occurredAt,
		Payload:       map[string]any{},
	}
	require.NoError(t, f.store.Insert(context.Background(), &event))
	return event
}

func TestRecent_PagesMostRecentFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	for i := range 5 {
		f.insert(t, "UserLoggedIn", base.Add(time.Duration(i)*time.Minute))
	}

	first, err := f.svc.Recent(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, first[0].OccurredAt.After(first[1].OccurredAt))

	second, err := f.svc.Recent(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.True(t, first[1].OccurredAt.After(second[0].OccurredAt))
}

func TestRecent_ClampsPageAndSize(t *testing.T) {
	f := newFixture(t)
	f.insert(t, "UserLoggedIn", time.Now().UTC())

	events, err := f.svc.Recent(context.Background(), -3, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1, "negative page and zero size fall back to defaults")

	events, err = f.svc.Recent(context.Background(), 0, 100000)
	require.NoError(t, err)
	assert.Len(t, events, 1, "oversized requests are clamped, not rejected")
}

func TestByTypeAndByTypes(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.insert(t, "UserLoggedIn", now)
	f.insert(t, "UserLoggedOut", now.Add(time.Minute))
	f.insert(t, "SettingsChanged", now.Add(2*time.Minute))

	logins, err := f.svc.ByType(context.Background(), "UserLoggedIn")
	require.NoError(t, err)
	assert.Len(t, logins, 1)

	sessions, err := f.svc.ByTypes(context.Background(), []string{"UserLoggedIn", "UserLoggedOut"})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestCorrelated(t *testing.T) {
	f := newFixture(t)
	correlationID := uuid.New()

	event := f.insert(t, "PrescriptionReceived", time.Now().UTC())
	linked := eventstore.StoredEvent{
		EventID:       uuid.New(),
		EventType:     "PrescriptionFilled",
		EventVersion:  "v1",
		AggregateType: "prescription",
		AggregateID:   event.AggregateID,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		Payload:       map[string]any{},
	}
	require.NoError(t, f.store.Insert(context.Background(), &linked))

	trace, err := f.svc.Correlated(context.Background(), correlationID)
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, linked.EventID, trace[0].EventID)
}

func TestByUser(t *testing.T) {
	f := newFixture(t)
	event := f.insert(t, "UserLoggedIn", time.Now().UTC())
	f.insert(t, "UserLoggedIn", time.Now().UTC())

	personal, err := f.svc.ByUser(context.Background(), event.UserID)
	require.NoError(t, err)
	require.Len(t, personal, 1)
	assert.Equal(t, event.EventID, personal[0].EventID)
}

func TestBetween(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	f.insert(t, "UserLoggedIn", base)
	f.insert(t, "UserLoggedIn", base.Add(time.Hour))
	f.insert(t, "UserLoggedIn", base.Add(2*time.Hour))

	window, err := f.svc.Between(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, window, 2, "range bounds are inclusive")
}

func TestBetween_InvalidRange(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	_, err := f.svc.Between(context.Background(), now, now.Add(-time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.insert(t, "UserLoggedIn", now)
	f.insert(t, "UserLoggedIn", now)
	f.insert(t, "SettingsChanged", now)

	stats, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, map[string]int64{"UserLoggedIn": 2, "SettingsChanged": 1}, stats.CountsByType)
}

func TestStatistics_EmptyLog(t *testing.T) {
	f := newFixture(t)

	stats, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
	assert.Empty(t, stats.CountsByType)
}
