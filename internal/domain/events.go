package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewEntryPostedEvent creates the standard wallet event for a ledger entry.
func NewEntryPostedEvent(entry *LedgerEntry) OutboxDraft {
	payload, _ := json.Marshal(entry)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateWallet,
		AggregateID:   entry.UserID.String(),
		EventType:     EventEntryPosted,
		PartitionKey:  entry.UserID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewBalanceChangedEvent creates the push-channel event for a balance change.
func NewBalanceChangedEvent(userID uuid.UUID, balances Balances) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"user_id":  userID.String(),
		"coins":    balances.Coins,
		"balance":  balances.Balance,
		"exposure": balances.Exposure,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateWallet,
		AggregateID:   userID.String(),
		EventType:     EventBalanceChanged,
		PartitionKey:  userID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewUserCreatedEvent creates a user lifecycle event.
func NewUserCreatedEvent(user *User, email string) OutboxDraft {
	parent := ""
	if user.ParentID != nil {
		parent = user.ParentID.String()
	}
	payload, _ := json.Marshal(map[string]string{
		"user_id":   user.ID.String(),
		"parent_id": parent,
		"role":      string(user.Role),
		"email":     email,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateUser,
		AggregateID:   user.ID.String(),
		EventType:     EventUserCreated,
		PartitionKey:  user.ID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewGameBlockEvent creates a block/unblock event for a game.
func NewGameBlockEvent(gameID string, level BlockLevel, actorID uuid.UUID, blocked bool) OutboxDraft {
	evtType := EventGameBlocked
	if !blocked {
		evtType = EventGameUnblocked
	}
	payload, _ := json.Marshal(map[string]string{
		"game_id": gameID,
		"level":   string(level),
		"actor":   actorID.String(),
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateGame,
		AggregateID:   gameID,
		EventType:     evtType,
		PartitionKey:  gameID,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
