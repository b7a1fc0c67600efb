package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierbet/backoffice/internal/domain"
)

// BetResultParams is the input to ExecuteBetResult.
type BetResultParams struct {
	UserID   uuid.UUID
	RoundID  string
	IsWinner bool
	Amount   int64 // winnings; ignored for losses
}

// ExecuteBetResult settles a previously placed bet. Winners are credited
// Amount with the commission recomputed on the winnings; losers get a
// zero-amount lose marker because the stake was already debited at
// placement. Both outcomes release the round's exposure.
//
// The original bet_placed entry must exist for (user, round) and a round
// may only be settled once; a retry fails with CONFLICT instead of
// paying twice.
func (e *Engine) ExecuteBetResult(ctx context.Context, tx pgx.Tx, params BetResultParams) (*domain.SettlementResult, error) {
	if err := domain.ValidateRoundID(params.RoundID); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}
	if params.IsWinner {
		if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
			return nil, domain.ErrInvalidArgument(err.Error())
		}
	}

	player, err := e.LockUserForUpdate(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("settle bet: %w", err)
	}

	bet, err := e.ledger.FindSettlement(ctx, tx, params.UserID, params.RoundID, domain.EntryBetPlaced)
	if err != nil {
		return nil, fmt.Errorf("find original bet: %w", err)
	}
	if bet == nil {
		return nil, domain.ErrNotFound("original bet for round", params.RoundID)
	}

	settled, err := e.ledger.FindSettlement(ctx, tx, params.UserID, params.RoundID,
		domain.EntryWin, domain.EntryTie, domain.EntryLose)
	if err != nil {
		return nil, fmt.Errorf("check prior settlement: %w", err)
	}
	if settled != nil {
		return nil, domain.ErrConflict(fmt.Sprintf("round %s already settled as %s", params.RoundID, settled.Type))
	}

	stake := bet.Debit
	roundID := params.RoundID

	if params.IsWinner {
		commission := params.Amount * player.CommissionRate / 100
		meta := mergeMeta(bet.Metadata, map[string]interface{}{
			"winnings":   params.Amount,
			"commission": commission,
		})
		entry, updated, err := e.Append(ctx, tx, domain.AppendParams{
			UserID:        params.UserID,
			Kind:          domain.KindWallet,
			Amount:        params.Amount,
			ExposureDelta: -stake,
			Type:          domain.EntryWin,
			RoundID:       &roundID,
			Description:   fmt.Sprintf("won round %s", roundID),
			Metadata:      meta,
		})
		if err != nil {
			return nil, fmt.Errorf("credit win: %w", err)
		}
		return &domain.SettlementResult{Entry: entry, User: updated}, nil
	}

	// Loss marker: wallet untouched, stake forfeited and exposure released.
	meta := mergeMeta(bet.Metadata, map[string]interface{}{
		"forfeited": stake,
	})
	entry, updated, err := e.Append(ctx, tx, domain.AppendParams{
		UserID:        params.UserID,
		Kind:          domain.KindWallet,
		Amount:        0,
		ExposureDelta: -stake,
		Type:          domain.EntryLose,
		RoundID:       &roundID,
		Description:   fmt.Sprintf("lost round %s", roundID),
		Metadata:      meta,
	})
	if err != nil {
		return nil, fmt.Errorf("record loss: %w", err)
	}
	return &domain.SettlementResult{Entry: entry, User: updated}, nil
}
