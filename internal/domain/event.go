package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventUserCreated    EventType = "backoffice.user.created"
	EventEntryPosted    EventType = "backoffice.ledger.entry.posted"
	EventBalanceChanged EventType = "backoffice.wallet.balance.changed"
	EventGameBlocked    EventType = "backoffice.game.blocked"
	EventGameUnblocked  EventType = "backoffice.game.unblocked"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateUser   AggregateType = "user"
	AggregateWallet AggregateType = "wallet"
	AggregateGame   AggregateType = "game"
)

// OutboxDraft is the payload written to the event_outbox table. Rows are
// inserted in the same transaction as the state change they describe and
// published asynchronously by the outbox poller.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
