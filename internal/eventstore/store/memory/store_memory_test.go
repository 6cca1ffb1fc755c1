package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rxledger/internal/eventstore"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) newEvent(eventType string, occurredAt time.Time) eventstore.StoredEvent {
	return eventstore.StoredEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		EventVersion:  "v1",
		AggregateType: "user",
		AggregateID:   uuid.New(),
		CorrelationID: uuid.New(),
		OccurredAt:    occurredAt,
		Payload:       map[string]any{},
	}
}

func (s *InMemoryStoreSuite) TestInsert() {
	ctx := context.Background()

	s.Run("assigns monotonic sequence numbers", func() {
		first := s.newEvent("UserLoggedIn", time.Now().UTC())
		second := s.newEvent("UserLoggedIn", time.Now().UTC())

		s.NoError(s.store.Insert(ctx, &first))
		s.NoError(s.store.Insert(ctx, &second))

		s.Equal(int64(1), first.SequenceNumber)
		s.Equal(int64(2), second.SequenceNumber)
	})

	s.Run("sets stored-at when missing", func() {
		event := s.newEvent("UserLoggedIn", time.Now().UTC())
		s.NoError(s.store.Insert(ctx, &event))
		s.False(event.StoredAt.IsZero())
	})

	s.Run("rejects duplicate event ids and burns the sequence", func() {
		event := s.newEvent("UserLoggedIn", time.Now().UTC())
		s.NoError(s.store.Insert(ctx, &event))

		dup := event
		dup.SequenceNumber = 0
		s.ErrorIs(s.store.Insert(ctx, &dup), eventstore.ErrDuplicateEvent)

		next := s.newEvent("UserLoggedIn", time.Now().UTC())
		s.NoError(s.store.Insert(ctx, &next))
		s.Greater(next.SequenceNumber, event.SequenceNumber+1, "failed insert leaves a gap")
	})
}

func (s *InMemoryStoreSuite) TestExistsByEventID() {
	ctx := context.Background()
	event := s.newEvent("UserLoggedIn", time.Now().UTC())
	s.NoError(s.store.Insert(ctx, &event))

	exists, err := s.store.ExistsByEventID(ctx, event.EventID)
	s.NoError(err)
	s.True(exists)

	exists, err = s.store.ExistsByEventID(ctx, uuid.New())
	s.NoError(err)
	s.False(exists)
}

func (s *InMemoryStoreSuite) TestFindByAggregate() {
	ctx := context.Background()
	aggregateID := uuid.New()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	// Inserted newest-first to prove reads sort by sequence, not insertion
	// shape.
	for i := 2; i >= 0; i-- {
		event := s.newEvent("SettingsChanged", base.Add(time.Duration(i)*time.Minute))
		event.AggregateID = aggregateID
		s.NoError(s.store.Insert(ctx, &event))
	}
	other := s.newEvent("SettingsChanged", base)
	s.NoError(s.store.Insert(ctx, &other))

	history, err := s.store.FindByAggregate(ctx, "user", aggregateID)
	s.NoError(err)
	s.Len(history, 3)
	for i := 1; i < len(history); i++ {
		s.Less(history[i-1].SequenceNumber, history[i].SequenceNumber)
	}
}

func (s *InMemoryStoreSuite) TestFindSinceSequence() {
	ctx := context.Background()
	aggregateID := uuid.New()

	var sequences []int64
	for range 3 {
		event := s.newEvent("SettingsChanged", time.Now().UTC())
		event.AggregateID = aggregateID
		s.NoError(s.store.Insert(ctx, &event))
		sequences = append(sequences, event.SequenceNumber)
	}

	tail, err := s.store.FindSinceSequence(ctx, "user", aggregateID, sequences[0])
	s.NoError(err)
	s.Len(tail, 2)
	s.Equal(sequences[1], tail[0].SequenceNumber)
}

func (s *InMemoryStoreSuite) TestFindByType() {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	older := s.newEvent("UserLoggedIn", base)
	newer := s.newEvent("UserLoggedIn", base.Add(time.Hour))
	unrelated := s.newEvent("UserLoggedOut", base)
	s.NoError(s.store.Insert(ctx, &older))
	s.NoError(s.store.Insert(ctx, &newer))
	s.NoError(s.store.Insert(ctx, &unrelated))

	events, err := s.store.FindByType(ctx, "UserLoggedIn")
	s.NoError(err)
	s.Len(events, 2)
	s.Equal(newer.EventID, events[0].EventID, "most recent business time first")
}

func (s *InMemoryStoreSuite) TestFindByTypes() {
	ctx := context.Background()
	now := time.Now().UTC()

	login := s.newEvent("UserLoggedIn", now)
	logout := s.newEvent("UserLoggedOut", now)
	settings := s.newEvent("SettingsChanged", now)
	s.NoError(s.store.Insert(ctx, &login))
	s.NoError(s.store.Insert(ctx, &logout))
	s.NoError(s.store.Insert(ctx, &settings))

	events, err := s.store.FindByTypes(ctx, []string{"UserLoggedIn", "UserLoggedOut"})
	s.NoError(err)
	s.Len(events, 2)
}

func (s *InMemoryStoreSuite) TestFindByCorrelation() {
	ctx := context.Background()
	correlationID := uuid.New()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	second := s.newEvent("PrescriptionFilled", base.Add(time.Minute))
	second.CorrelationID = correlationID
	first := s.newEvent("PrescriptionReceived", base)
	first.CorrelationID = correlationID
	s.NoError(s.store.Insert(ctx, &second))
	s.NoError(s.store.Insert(ctx, &first))

	trace, err := s.store.FindByCorrelation(ctx, correlationID)
	s.NoError(err)
	s.Len(trace, 2)
	s.Equal(first.EventID, trace[0].EventID, "causal chains read oldest first")
}

func (s *InMemoryStoreSuite) TestFindBetween() {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	inside := s.newEvent("UserLoggedIn", base.Add(time.Minute))
	boundary := s.newEvent("UserLoggedIn", base)
	outside := s.newEvent("UserLoggedIn", base.Add(time.Hour))
	s.NoError(s.store.Insert(ctx, &inside))
	s.NoError(s.store.Insert(ctx, &boundary))
	s.NoError(s.store.Insert(ctx, &outside))

	window, err := s.store.FindBetween(ctx, base, base.Add(30*time.Minute))
	s.NoError(err)
	s.Len(window, 2)
	s.Equal(boundary.EventID, window[0].EventID, "start bound is inclusive")
}

func (s *InMemoryStoreSuite) TestPage() {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		event := s.newEvent("UserLoggedIn", base.Add(time.Duration(i)*time.Minute))
		s.NoError(s.store.Insert(ctx, &event))
	}

	s.Run("slices in descending business time", func() {
		page, err := s.store.Page(ctx, 0, 2)
		s.NoError(err)
		s.Len(page, 2)
		s.True(page[0].OccurredAt.After(page[1].OccurredAt))
	})

	s.Run("last page is short", func() {
		page, err := s.store.Page(ctx, 2, 2)
		s.NoError(err)
		s.Len(page, 1)
	})

	s.Run("page beyond the end is empty", func() {
		page, err := s.store.Page(ctx, 10, 2)
		s.NoError(err)
		s.Empty(page)
	})
}

func (s *InMemoryStoreSuite) TestCounts() {
	ctx := context.Background()
	now := time.Now().UTC()
	for range 2 {
		event := s.newEvent("UserLoggedIn", now)
		s.NoError(s.store.Insert(ctx, &event))
	}
	settings := s.newEvent("SettingsChanged", now)
	s.NoError(s.store.Insert(ctx, &settings))

	total, err := s.store.CountAll(ctx)
	s.NoError(err)
	s.Equal(int64(3), total)

	logins, err := s.store.CountByType(ctx, "UserLoggedIn")
	s.NoError(err)
	s.Equal(int64(2), logins)

	counts, err := s.store.CountByEachType(ctx)
	s.NoError(err)
	s.Equal(map[string]int64{"UserLoggedIn": 2, "SettingsChanged": 1}, counts)
}

func (s *InMemoryStoreSuite) TestClearKeepsSequenceCounter() {
	ctx := context.Background()

	event := s.newEvent("UserLoggedIn", time.Now().UTC())
	s.NoError(s.store.Insert(ctx, &event))
	s.store.Clear()

	next := s.newEvent("UserLoggedIn", time.Now().UTC())
	s.NoError(s.store.Insert(ctx, &next))
	s.Greater(next.SequenceNumber, event.SequenceNumber, "sequence numbers are never reused")

	total, err := s.store.CountAll(ctx)
	s.NoError(err)
	s.Equal(int64(1), total)
}
