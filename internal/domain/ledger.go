package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntryType enumerates all ledger entry types.
type EntryType string

const (
	EntryDeposit    EntryType = "deposit"
	EntryWithdrawal EntryType = "withdrawal"
	EntryGive       EntryType = "give" // debit side of a hierarchy transfer
	EntryTake       EntryType = "take" // credit side of a hierarchy transfer
	EntryBetPlaced  EntryType = "bet_placed"
	EntryWin        EntryType = "win"
	EntryTie        EntryType = "tie"
	EntryLose       EntryType = "lose"
	EntryCommission EntryType = "commission"
)

// EntryStatus is the lifecycle state of a ledger entry.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
	StatusPaid      EntryStatus = "paid"
)

// BalanceKind selects which of the three balance columns an amount applies to.
type BalanceKind string

const (
	KindCoins    BalanceKind = "coins"
	KindWallet   BalanceKind = "wallet"
	KindExposure BalanceKind = "exposure"
)

// BalanceUpdate describes which balance columns change and by how much.
// The repository turns this into server-side arithmetic SET clauses.
type BalanceUpdate struct {
	Coins    int64
	Balance  int64
	Exposure int64
}

// HasCoinsDelta reports whether the coins column changes.
func (u BalanceUpdate) HasCoinsDelta() bool { return u.Coins != 0 }

// HasBalanceDelta reports whether the wallet column changes.
func (u BalanceUpdate) HasBalanceDelta() bool { return u.Balance != 0 }

// HasExposureDelta reports whether the exposure column changes.
func (u BalanceUpdate) HasExposureDelta() bool { return u.Exposure != 0 }

// KindDelta builds a BalanceUpdate applying a signed amount to one kind.
// The switch is exhaustive over the closed kind enum; unknown kinds are
// rejected rather than silently ignored.
func KindDelta(kind BalanceKind, amount int64) (BalanceUpdate, error) {
	switch kind {
	case KindCoins:
		return BalanceUpdate{Coins: amount}, nil
	case KindWallet:
		return BalanceUpdate{Balance: amount}, nil
	case KindExposure:
		return BalanceUpdate{Exposure: amount}, nil
	default:
		return BalanceUpdate{}, ErrInvalidArgument("unknown balance kind: " + string(kind))
	}
}

// LedgerEntry is an append-only audit row: at CreatedAt, the user's
// balances became the *_After snapshots because of this event. Entries are
// never updated or deleted.
//
// Exactly one of Debit/Credit is nonzero, with one documented exception:
// lose/tie settlement markers carry zero on both sides because the stake
// was already debited by the matching bet_placed entry.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	RoundID       *string         `json:"round_id,omitempty"`
	Type          EntryType       `json:"type"`
	Debit         int64           `json:"debit"`
	Credit        int64           `json:"credit"`
	CoinsAfter    int64           `json:"coins_after"`
	BalanceAfter  int64           `json:"balance_after"`
	ExposureAfter int64           `json:"exposure_after"`
	Status        EntryStatus     `json:"status"`
	Description   string          `json:"description,omitempty"`
	Metadata      json.RawMessage `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AppendParams is the input to the atomic Append primitive. Amount is
// signed and applies to Kind; ExposureDelta additionally adjusts exposure
// for operations that commit or release stake in the same entry.
type AppendParams struct {
	UserID        uuid.UUID
	Kind          BalanceKind
	Amount        int64
	ExposureDelta int64
	Type          EntryType
	Status        EntryStatus
	RoundID       *string
	Description   string
	Metadata      json.RawMessage
}

// LedgerFilter narrows ListForUser results.
type LedgerFilter struct {
	From   *time.Time
	To     *time.Time
	Status EntryStatus // "" matches all
}

// TransferResult reports the post-commit balances of a hierarchy transfer.
type TransferResult struct {
	OwnerBalance  int64        `json:"owner_balance"`
	TargetBalance int64        `json:"target_balance"`
	OwnerEntry    *LedgerEntry `json:"owner_entry"`
	TargetEntry   *LedgerEntry `json:"target_entry"`
}

// SettlementResult reports the outcome of a bet placement or settlement.
type SettlementResult struct {
	Entry *LedgerEntry `json:"entry"`
	User  *User        `json:"user"`
}
