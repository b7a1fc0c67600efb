// Package ledger implements the hierarchical ledger and balance-transfer
// engine. Every balance mutation in the system flows through Engine.Append
// inside a single database transaction, so the users row and its
// append-only audit entry can never diverge.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/repository"
)

// Engine provides the foundational ledger operations:
//  1. LockUserForUpdate — row-level pessimistic lock
//  2. Append — atomic balance update + append-only insert + outbox event
//
// plus the transfer and settlement commands built on them.
type Engine struct {
	users  repository.UserRepository
	ledger repository.LedgerRepository
	outbox repository.OutboxRepository

	// allowNegative permits bet placement to drive the wallet negative.
	// Off by default; hierarchy transfers ignore it and always require funds.
	allowNegative bool
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(
	users repository.UserRepository,
	ledger repository.LedgerRepository,
	outbox repository.OutboxRepository,
	allowNegative bool,
) *Engine {
	return &Engine{
		users:         users,
		ledger:        ledger,
		outbox:        outbox,
		allowNegative: allowNegative,
	}
}

// LockUserForUpdate acquires a row-level lock and returns the user.
// Must be called within a transaction.
func (e *Engine) LockUserForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.User, error) {
	user, err := e.users.LockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", userID.String())
	}
	return user, nil
}

// Append atomically applies a signed amount to one balance kind and records
// the resulting snapshot as an immutable ledger entry.
//
// Steps, all within the caller's transaction:
//  1. Update the users row with server-side arithmetic (RETURNING the result)
//  2. Insert the entry carrying the post-update snapshots
//  3. Insert the entry-posted and balance-changed outbox events
func (e *Engine) Append(ctx context.Context, tx pgx.Tx, params domain.AppendParams) (*domain.LedgerEntry, *domain.User, error) {
	delta, err := domain.KindDelta(params.Kind, params.Amount)
	if err != nil {
		return nil, nil, err
	}
	delta.Exposure += params.ExposureDelta

	updated, err := e.users.ApplyDelta(ctx, tx, params.UserID, delta)
	if err != nil {
		return nil, nil, fmt.Errorf("apply balance delta: %w", err)
	}
	if updated == nil {
		return nil, nil, domain.ErrNotFound("user", params.UserID.String())
	}

	credit, debit := params.Amount, int64(0)
	if credit < 0 {
		debit, credit = -credit, 0
	}

	entry, err := e.ledger.Insert(ctx, tx, params, debit, credit, updated.Balances)
	if err != nil {
		return nil, nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := e.outbox.Insert(ctx, tx, domain.NewEntryPostedEvent(entry)); err != nil {
		return nil, nil, fmt.Errorf("insert outbox event: %w", err)
	}
	if err := e.outbox.Insert(ctx, tx, domain.NewBalanceChangedEvent(updated.ID, updated.Balances)); err != nil {
		return nil, nil, fmt.Errorf("insert outbox event: %w", err)
	}

	return entry, updated, nil
}

// GetEntry returns a single ledger entry or NOT_FOUND.
func (e *Engine) GetEntry(ctx context.Context, db repository.DBTX, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := e.ledger.FindByID(ctx, db, entryID)
	if err != nil {
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}
	if entry == nil {
		return nil, domain.ErrNotFound("ledger entry", entryID.String())
	}
	return entry, nil
}

// ListForUser returns a user's ledger history newest first.
func (e *Engine) ListForUser(ctx context.Context, db repository.DBTX, userID uuid.UUID, page, pageSize int, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	user, err := e.users.FindByID(ctx, db, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", userID.String())
	}
	return e.ledger.ListForUser(ctx, db, userID, page, pageSize, filter)
}

// ListByRound returns every entry of a casino round, oldest first.
func (e *Engine) ListByRound(ctx context.Context, db repository.DBTX, roundID string) ([]domain.LedgerEntry, error) {
	if err := domain.ValidateRoundID(roundID); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}
	return e.ledger.ListByRound(ctx, db, roundID)
}
