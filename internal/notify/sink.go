// Package notify pushes balance updates to connected back-office clients.
package notify

import (
	"github.com/google/uuid"

	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/infra"
)

// Sink receives balance change notifications after a transaction commits.
// Delivery is best-effort; a lost notification never affects the ledger.
type Sink interface {
	NotifyBalanceChanged(userID uuid.UUID, balances domain.Balances)
}

// WSSink pushes notifications to the user's websocket room.
type WSSink struct {
	hub *infra.WSHub
}

// NewWSSink creates a websocket-backed sink.
func NewWSSink(hub *infra.WSHub) *WSSink {
	return &WSSink{hub: hub}
}

func (s *WSSink) NotifyBalanceChanged(userID uuid.UUID, balances domain.Balances) {
	s.hub.PublishToUser(userID.String(), "balance.changed", map[string]interface{}{
		"userId":   userID.String(),
		"coins":    balances.Coins,
		"balance":  balances.Balance,
		"exposure": balances.Exposure,
	})
}

// NoopSink discards all notifications.
type NoopSink struct{}

func (NoopSink) NotifyBalanceChanged(uuid.UUID, domain.Balances) {}

var (
	_ Sink = (*WSSink)(nil)
	_ Sink = NoopSink{}
)
