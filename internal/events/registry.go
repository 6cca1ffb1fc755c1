package events

import (
	"rxledger/internal/eventstore"
	"rxledger/internal/eventstore/codec"
)

// RegisterAll installs the decode rules for every event kind this deployment
// understands. Called once at startup; types introduced by later deployments
// are skipped with a warning during replay rather than failing it.
func RegisterAll(reg *eventstore.Registry) {
	reg.Register(TypeUserLoggedIn, decodeRule[UserLoggedInPayload]())
	reg.Register(TypeUserLoggedOut, decodeRule[UserLoggedOutPayload]())
	reg.Register(TypeSettingsChanged, decodeRule[SettingsChangedPayload]())
	reg.Register(TypePrescriptionFilled, decodeRule[PrescriptionFilledPayload]())
	reg.Register(TypePrescriptionReceived, decodeRule[PrescriptionReceivedPayload]())
	reg.Register(TypeStockLevelChanged, decodeRule[StockLevelChangedPayload]())
}

// decodeRule rebuilds a typed envelope from a stored row: identity fields are
// carried over verbatim, the structural payload is decoded into P.
func decodeRule[P any]() eventstore.DecodeFunc {
	return func(stored eventstore.StoredEvent) (eventstore.Envelope, error) {
		payload, err := codec.Decode[P](stored.Payload)
		if err != nil {
			return eventstore.Envelope{}, err
		}
		return eventstore.Envelope{
			EventID:       stored.EventID,
			EventType:     stored.EventType,
			EventVersion:  stored.EventVersion,
			AggregateType: stored.AggregateType,
			AggregateID:   stored.AggregateID,
			OccurredAt:    stored.OccurredAt,
			UserID:        stored.UserID,
			CausationID:   stored.CausationID,
			CorrelationID: stored.CorrelationID,
			Payload:       payload,
		}, nil
	}
}
