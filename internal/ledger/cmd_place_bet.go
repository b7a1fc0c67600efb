package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierbet/backoffice/internal/domain"
)

// PlaceBetParams is the input to ExecutePlaceBet.
type PlaceBetParams struct {
	UserID  uuid.UUID
	RoundID string
	Stake   int64
}

// ExecutePlaceBet deducts the stake from a player's wallet and commits it
// as exposure for the round. The player's commission on the stake is
// computed up front and carried in the entry metadata; it is applied to
// balances outside this engine.
//
// A second placement for the same (user, round) fails with CONFLICT.
// The wallet may only go negative when the engine was configured for it.
func (e *Engine) ExecutePlaceBet(ctx context.Context, tx pgx.Tx, params PlaceBetParams) (*domain.SettlementResult, error) {
	if err := domain.ValidatePositiveAmount(params.Stake); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}
	if err := domain.ValidateRoundID(params.RoundID); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}

	player, err := e.LockUserForUpdate(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("place bet: %w", err)
	}
	if player.Role != domain.RolePlayer {
		return nil, domain.ErrUnauthorized("only players may place bets")
	}
	if player.BlockingLevel != domain.BlockNone {
		return nil, domain.ErrForbidden("account is blocked from betting")
	}

	existing, err := e.ledger.FindSettlement(ctx, tx, params.UserID, params.RoundID, domain.EntryBetPlaced)
	if err != nil {
		return nil, fmt.Errorf("check prior bet: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict(fmt.Sprintf("bet already placed for round %s", params.RoundID))
	}

	if !e.allowNegative && player.Balance < params.Stake {
		return nil, domain.ErrInsufficientFunds()
	}

	commission := params.Stake * player.CommissionRate / 100
	meta := mergeMeta(nil, map[string]interface{}{
		"stake":      params.Stake,
		"commission": commission,
	})

	roundID := params.RoundID
	entry, updated, err := e.Append(ctx, tx, domain.AppendParams{
		UserID:        params.UserID,
		Kind:          domain.KindWallet,
		Amount:        -params.Stake,
		ExposureDelta: params.Stake,
		Type:          domain.EntryBetPlaced,
		RoundID:       &roundID,
		Description:   fmt.Sprintf("bet placed on round %s", roundID),
		Metadata:      meta,
	})
	if err != nil {
		return nil, fmt.Errorf("place bet post: %w", err)
	}

	return &domain.SettlementResult{Entry: entry, User: updated}, nil
}
