package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/gameblock"
	"github.com/tierbet/backoffice/internal/guard"
	"github.com/tierbet/backoffice/internal/hierarchy"
	"github.com/tierbet/backoffice/internal/ledger"
	"github.com/tierbet/backoffice/internal/notify"
)

// WalletService orchestrates transfers, bets and game blocks. Every
// mutation runs the ledger engine inside a single database transaction;
// notifications go out only after commit.
type WalletService struct {
	pool      *pgxpool.Pool
	engine    *ledger.Engine
	authority *gameblock.Authority
	store     *hierarchy.Store
	sink      notify.Sink
	limiter   *guard.RateLimiter
	logger    *slog.Logger
}

// NewWalletService creates a WalletService.
func NewWalletService(
	pool *pgxpool.Pool,
	engine *ledger.Engine,
	authority *gameblock.Authority,
	store *hierarchy.Store,
	sink notify.Sink,
	limiter *guard.RateLimiter,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		pool:      pool,
		engine:    engine,
		authority: authority,
		store:     store,
		sink:      sink,
		limiter:   limiter,
		logger:    logger,
	}
}

// Give moves amount from the actor's wallet to a direct relative's.
func (s *WalletService) Give(ctx context.Context, actorID, targetID uuid.UUID, amount int64) (*domain.TransferResult, error) {
	return s.transfer(ctx, actorID, actorID, targetID, amount)
}

// Take pulls amount from a direct child's wallet back into the actor's.
// Only the child's own parent may take.
func (s *WalletService) Take(ctx context.Context, actorID, childID uuid.UUID, amount int64) (*domain.TransferResult, error) {
	child, err := s.store.GetUser(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child.ParentID == nil || *child.ParentID != actorID {
		return nil, domain.ErrUnauthorized("only the direct parent may take funds")
	}
	return s.transfer(ctx, actorID, childID, actorID, amount)
}

func (s *WalletService) transfer(ctx context.Context, actorID, ownerID, targetID uuid.UUID, amount int64) (*domain.TransferResult, error) {
	if res := s.limiter.Check(ctx, "transfer:"+actorID.String()); !res.Allowed {
		return nil, &domain.AppError{Code: "RATE_LIMITED", Message: res.Reason, Status: 429}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.ExecuteTransfer(ctx, tx, ledger.TransferParams{
		OwnerID:  ownerID,
		TargetID: targetID,
		Amount:   amount,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("transfer completed",
		"actor_id", actorID, "owner_id", ownerID, "target_id", targetID, "amount", amount)

	s.notifyFromEntry(result.OwnerEntry)
	s.notifyFromEntry(result.TargetEntry)

	return result, nil
}

// PlaceBet debits a player's stake for a round. The engine rejects the
// placement under the row lock when the account carries a betting block.
func (s *WalletService) PlaceBet(ctx context.Context, playerID uuid.UUID, roundID string, stake int64) (*domain.SettlementResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.ExecutePlaceBet(ctx, tx, ledger.PlaceBetParams{
		UserID:  playerID,
		RoundID: roundID,
		Stake:   stake,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("bet placed", "user_id", playerID, "round_id", roundID, "stake", stake)
	s.sink.NotifyBalanceChanged(result.User.ID, result.User.Balances)

	return result, nil
}

// SettleBet records the outcome of a player's round.
func (s *WalletService) SettleBet(ctx context.Context, playerID uuid.UUID, roundID string, isWinner bool, amount int64) (*domain.SettlementResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.engine.ExecuteBetResult(ctx, tx, ledger.BetResultParams{
		UserID:   playerID,
		RoundID:  roundID,
		IsWinner: isWinner,
		Amount:   amount,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("bet settled",
		"user_id", playerID, "round_id", roundID, "winner", isWinner, "amount", amount)
	s.sink.NotifyBalanceChanged(result.User.ID, result.User.Balances)

	return result, nil
}

// GetBalance returns the live balances of an account the actor may read.
func (s *WalletService) GetBalance(ctx context.Context, actorID, targetID uuid.UUID) (*domain.User, error) {
	if actorID != targetID {
		actor, err := s.store.GetUser(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if actor.Role != domain.RoleAdmin {
			ok, err := s.store.IsAncestor(ctx, actorID, targetID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, domain.ErrForbidden("account is outside your downline")
			}
		}
	}
	return s.store.GetUser(ctx, targetID)
}

// ListLedger returns an account's ledger page, newest first.
func (s *WalletService) ListLedger(ctx context.Context, actorID, targetID uuid.UUID, page, pageSize int, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	if actorID != targetID {
		actor, err := s.store.GetUser(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if actor.Role != domain.RoleAdmin {
			ok, err := s.store.IsAncestor(ctx, actorID, targetID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, domain.ErrForbidden("account is outside your downline")
			}
		}
	}
	return s.engine.ListForUser(ctx, s.pool, targetID, page, pageSize, filter)
}

// GetEntry returns a single ledger entry. Accessible to the entry's owner,
// admins, and the owner's ancestors.
func (s *WalletService) GetEntry(ctx context.Context, actorID, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := s.engine.GetEntry(ctx, s.pool, entryID)
	if err != nil {
		return nil, err
	}
	if actorID != entry.UserID {
		actor, err := s.store.GetUser(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if actor.Role != domain.RoleAdmin {
			ok, err := s.store.IsAncestor(ctx, actorID, entry.UserID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, domain.ErrForbidden("account is outside your downline")
			}
		}
	}
	return entry, nil
}

// ListRound returns every ledger entry of a casino round, oldest first.
func (s *WalletService) ListRound(ctx context.Context, roundID string) ([]domain.LedgerEntry, error) {
	return s.engine.ListByRound(ctx, s.pool, roundID)
}

// BlockGame raises a game's block to the actor's tier.
func (s *WalletService) BlockGame(ctx context.Context, gameID string, actorID uuid.UUID) (*domain.GameBlock, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	block, err := s.authority.Block(ctx, tx, gameID, actorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("game blocked", "game_id", gameID, "actor_id", actorID, "level", block.Level)
	return block, nil
}

// UnblockGame clears a game's block if the actor outranks the blocker.
func (s *WalletService) UnblockGame(ctx context.Context, gameID string, actorID uuid.UUID) (*domain.GameBlock, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	block, err := s.authority.Unblock(ctx, tx, gameID, actorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("game unblocked", "game_id", gameID, "actor_id", actorID)
	return block, nil
}

// BlockBetting raises a player's betting restriction to the actor's tier.
func (s *WalletService) BlockBetting(ctx context.Context, actorID, playerID uuid.UUID) (*domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	player, err := s.authority.BlockBetting(ctx, tx, actorID, playerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("betting blocked", "player_id", playerID, "actor_id", actorID, "level", player.BlockingLevel)
	return player, nil
}

// UnblockBetting clears a player's betting restriction.
func (s *WalletService) UnblockBetting(ctx context.Context, actorID, playerID uuid.UUID) (*domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	player, err := s.authority.UnblockBetting(ctx, tx, actorID, playerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("betting unblocked", "player_id", playerID, "actor_id", actorID)
	return player, nil
}

// CanPlay reports whether a game is playable for the given player.
func (s *WalletService) CanPlay(ctx context.Context, gameID string, playerID uuid.UUID) (bool, error) {
	return s.authority.CanPlay(ctx, gameID, playerID)
}

func (s *WalletService) notifyFromEntry(entry *domain.LedgerEntry) {
	if entry == nil {
		return
	}
	s.sink.NotifyBalanceChanged(entry.UserID, domain.Balances{
		Coins:    entry.CoinsAfter,
		Balance:  entry.BalanceAfter,
		Exposure: entry.ExposureAfter,
	})
}
