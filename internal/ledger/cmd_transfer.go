package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierbet/backoffice/internal/domain"
)

// TransferParams is the input to ExecuteTransfer.
type TransferParams struct {
	OwnerID  uuid.UUID
	TargetID uuid.UUID
	Amount   int64
}

// ExecuteTransfer moves Amount from the owner's wallet to the target's,
// writing a give entry on the owner and a take entry on the target.
//
// Preconditions, checked in order, first failure wins:
//  1. Amount > 0 and owner != target
//  2. both accounts exist
//  3. the accounts are in a direct parent/child relationship (either way)
//  4. the owner's wallet covers the amount
//
// Both user rows are locked in deterministic ID order before the balance
// reads, so two concurrent transfers over the same accounts serialize and
// never both pass the sufficiency check on a stale balance.
func (e *Engine) ExecuteTransfer(ctx context.Context, tx pgx.Tx, params TransferParams) (*domain.TransferResult, error) {
	if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}
	if params.OwnerID == params.TargetID {
		return nil, domain.ErrInvalidArgument("cannot transfer to self")
	}

	owner, target, err := e.lockPair(ctx, tx, params.OwnerID, params.TargetID)
	if err != nil {
		return nil, err
	}

	ownerIsParent := target.ParentID != nil && *target.ParentID == owner.ID
	targetIsParent := owner.ParentID != nil && *owner.ParentID == target.ID
	if !ownerIsParent && !targetIsParent {
		return nil, domain.ErrUnauthorized("no parent-child relationship between accounts")
	}

	if owner.Balance < params.Amount {
		return nil, domain.ErrInsufficientFunds()
	}

	ownerEntry, ownerAfter, err := e.Append(ctx, tx, domain.AppendParams{
		UserID:      owner.ID,
		Kind:        domain.KindWallet,
		Amount:      -params.Amount,
		Type:        domain.EntryGive,
		Description: fmt.Sprintf("transfer to %s", shortID(target.ID)),
	})
	if err != nil {
		return nil, fmt.Errorf("transfer debit: %w", err)
	}

	targetEntry, targetAfter, err := e.Append(ctx, tx, domain.AppendParams{
		UserID:      target.ID,
		Kind:        domain.KindWallet,
		Amount:      params.Amount,
		Type:        domain.EntryTake,
		Description: fmt.Sprintf("transfer from %s", shortID(owner.ID)),
	})
	if err != nil {
		return nil, fmt.Errorf("transfer credit: %w", err)
	}

	return &domain.TransferResult{
		OwnerBalance:  ownerAfter.Balance,
		TargetBalance: targetAfter.Balance,
		OwnerEntry:    ownerEntry,
		TargetEntry:   targetEntry,
	}, nil
}

// lockPair locks both user rows, always in ascending ID order regardless of
// transfer direction, so concurrent opposite-direction transfers between
// the same pair cannot deadlock.
func (e *Engine) lockPair(ctx context.Context, tx pgx.Tx, ownerID, targetID uuid.UUID) (owner, target *domain.User, err error) {
	first, second := ownerID, targetID
	if strings.Compare(targetID.String(), ownerID.String()) < 0 {
		first, second = targetID, ownerID
	}

	a, err := e.LockUserForUpdate(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := e.LockUserForUpdate(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}

	if a.ID == ownerID {
		return a, b, nil
	}
	return b, a, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
