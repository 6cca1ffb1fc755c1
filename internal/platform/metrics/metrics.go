package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the event store.
type Metrics struct {
	EventsPublished    prometheus.Counter
	DuplicatesSkipped  prometheus.Counter
	PublishFailures    prometheus.Counter
	SubscriberFailures prometheus.Counter
	EventsReplayed     prometheus.Counter
	ReplaySkipped      prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rxledger_events_published_total",
			Help: "Total number of domain events durably recorded",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rxledger_events_duplicates_skipped_total",
			Help: "Total number of publishes skipped as idempotent duplicates",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rxledger_events_publish_failures_total",
			Help: "Total number of publishes that aborted the enclosing transaction",
		}),
		SubscriberFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rxledger_events_subscriber_failures_total",
			Help: "Total number of subscriber handler errors and panics",
		}),
		EventsReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rxledger_events_replayed_total",
			Help: "Total number of historical events redelivered to subscribers",
		}),
		ReplaySkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rxledger_events_replay_skipped_total",
			Help: "Total number of historical events skipped during replay",
		}),
	}
}

func (m *Metrics) IncrementEventsPublished() {
	m.EventsPublished.Inc()
}

func (m *Metrics) IncrementDuplicatesSkipped() {
	m.DuplicatesSkipped.Inc()
}

func (m *Metrics) IncrementPublishFailures() {
	m.PublishFailures.Inc()
}

func (m *Metrics) IncrementSubscriberFailures() {
	m.SubscriberFailures.Inc()
}

func (m *Metrics) IncrementEventsReplayed() {
	m.EventsReplayed.Inc()
}

func (m *Metrics) IncrementReplaySkipped() {
	m.ReplaySkipped.Inc()
}
