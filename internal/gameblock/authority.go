// Package gameblock implements the hierarchy-aware game blocking lattice.
// Block levels only escalate through Block; downgrades require an explicit
// authorized Unblock. The package shares the tree-traversal primitives with
// the ledger engine via the hierarchy store and never touches balances.
package gameblock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/hierarchy"
	"github.com/tierbet/backoffice/internal/repository"
)

// Authority decides who may block or unblock a game and whether a player
// may still see it. It also owns the per-user betting restriction, which
// follows the same tier rules but applies to one account instead of a game.
type Authority struct {
	store  *hierarchy.Store
	blocks repository.GameBlockRepository
	users  repository.UserRepository
	outbox repository.OutboxRepository
	db     repository.DBTX
}

// NewAuthority creates a game block authority.
func NewAuthority(store *hierarchy.Store, blocks repository.GameBlockRepository, users repository.UserRepository, outbox repository.OutboxRepository, db repository.DBTX) *Authority {
	return &Authority{store: store, blocks: blocks, users: users, outbox: outbox, db: db}
}

// Block escalates the game's block level to the acting user's tier.
// Admins impose level_1, super-agents level_2, agents level_3; players may
// not block. Re-applying the current level succeeds and records the actor;
// applying a weaker level than the current one fails with
// INVALID_TRANSITION.
func (a *Authority) Block(ctx context.Context, tx pgx.Tx, gameID string, actorID uuid.UUID) (*domain.GameBlock, error) {
	role, err := a.store.GetRole(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if role == domain.RolePlayer {
		return nil, domain.ErrUnauthorized("players may not block games")
	}

	target := domain.BlockLevelForRole(role)
	gb, err := a.blocks.LockForUpdate(ctx, tx, gameID)
	if err != nil {
		return nil, fmt.Errorf("lock game block: %w", err)
	}

	if target.Severity() < gb.Level.Severity() {
		return nil, domain.ErrInvalidTransition(fmt.Sprintf(
			"cannot downgrade game %s from %s to %s via block", gameID, gb.Level, target))
	}

	gb.Level = target
	if !gb.Contains(actorID) {
		gb.BlockedBy = append(gb.BlockedBy, actorID)
	}
	if err := a.blocks.Save(ctx, tx, gb); err != nil {
		return nil, fmt.Errorf("save game block: %w", err)
	}
	if err := a.outbox.Insert(ctx, tx, domain.NewGameBlockEvent(gameID, gb.Level, actorID, true)); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}
	return gb, nil
}

// Unblock resets a game to NONE and clears the blocker set. Permitted for
// admins, for anyone strictly more privileged than the user who imposed
// the current block, and for that blocker themselves.
func (a *Authority) Unblock(ctx context.Context, tx pgx.Tx, gameID string, actorID uuid.UUID) (*domain.GameBlock, error) {
	actor, err := a.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	gb, err := a.blocks.LockForUpdate(ctx, tx, gameID)
	if err != nil {
		return nil, fmt.Errorf("lock game block: %w", err)
	}
	if gb.Level == domain.BlockNone {
		return gb, nil
	}

	if actor.Role != domain.RoleAdmin {
		blockerID, blockerRole, err := a.currentBlocker(ctx, gb)
		if err != nil {
			return nil, err
		}
		if actorID != blockerID && actor.Role.Rank() <= blockerRole.Rank() {
			return nil, domain.ErrUnauthorized(fmt.Sprintf(
				"%s may not lift a %s block", actor.Role, gb.Level))
		}
	}

	gb.Level = domain.BlockNone
	gb.BlockedBy = nil
	if err := a.blocks.Save(ctx, tx, gb); err != nil {
		return nil, fmt.Errorf("save game block: %w", err)
	}
	if err := a.outbox.Insert(ctx, tx, domain.NewGameBlockEvent(gameID, domain.BlockNone, actorID, false)); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}
	return gb, nil
}

// CanPlay reports whether a player may open the game. NONE means yes; an
// admin block means no for everyone; otherwise the game is hidden exactly
// for players downline of a recorded blocker.
func (a *Authority) CanPlay(ctx context.Context, gameID string, playerID uuid.UUID) (bool, error) {
	if _, err := a.store.GetUser(ctx, playerID); err != nil {
		return false, err
	}

	gb, err := a.blocks.Find(ctx, a.db, gameID)
	if err != nil {
		return false, fmt.Errorf("find game block: %w", err)
	}
	if gb == nil || gb.Level == domain.BlockNone {
		return true, nil
	}
	if gb.Level == domain.BlockLevel1 {
		return false, nil
	}

	for _, blockerID := range gb.BlockedBy {
		isAnc, err := a.store.IsAncestor(ctx, blockerID, playerID)
		if err != nil {
			return false, err
		}
		if isAnc {
			return false, nil
		}
	}
	return true, nil
}

// BlockBetting raises a player's betting restriction to the acting user's
// tier, which makes every bet placement for that account fail. The actor
// must be an admin or an ancestor of the player, and the same monotonicity
// rule as game blocks applies: a weaker tier cannot lower an existing
// restriction via BlockBetting.
func (a *Authority) BlockBetting(ctx context.Context, tx pgx.Tx, actorID, playerID uuid.UUID) (*domain.User, error) {
	actor, err := a.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RolePlayer {
		return nil, domain.ErrUnauthorized("players may not block accounts")
	}

	player, err := a.lockPlayer(ctx, tx, actorID, actor.Role, playerID)
	if err != nil {
		return nil, err
	}

	target := domain.BlockLevelForRole(actor.Role)
	if target.Severity() < player.BlockingLevel.Severity() {
		return nil, domain.ErrInvalidTransition(fmt.Sprintf(
			"cannot downgrade account %s from %s to %s via block", playerID, player.BlockingLevel, target))
	}

	if err := a.users.UpdateBlockingLevel(ctx, tx, playerID, target); err != nil {
		return nil, fmt.Errorf("update blocking level: %w", err)
	}
	player.BlockingLevel = target
	return player, nil
}

// UnblockBetting clears a player's betting restriction. Permitted for
// admins and for ancestors whose tier is at least as privileged as the one
// that imposed the restriction.
func (a *Authority) UnblockBetting(ctx context.Context, tx pgx.Tx, actorID, playerID uuid.UUID) (*domain.User, error) {
	actor, err := a.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RolePlayer {
		return nil, domain.ErrUnauthorized("players may not unblock accounts")
	}

	player, err := a.lockPlayer(ctx, tx, actorID, actor.Role, playerID)
	if err != nil {
		return nil, err
	}
	if player.BlockingLevel == domain.BlockNone {
		return player, nil
	}

	if actor.Role != domain.RoleAdmin {
		blockerRole := domain.RoleForBlockLevel(player.BlockingLevel)
		if actor.Role.Rank() < blockerRole.Rank() {
			return nil, domain.ErrUnauthorized(fmt.Sprintf(
				"%s may not lift a %s betting block", actor.Role, player.BlockingLevel))
		}
	}

	if err := a.users.UpdateBlockingLevel(ctx, tx, playerID, domain.BlockNone); err != nil {
		return nil, fmt.Errorf("update blocking level: %w", err)
	}
	player.BlockingLevel = domain.BlockNone
	return player, nil
}

// lockPlayer locks the target row and checks it is a player inside the
// actor's downline.
func (a *Authority) lockPlayer(ctx context.Context, tx pgx.Tx, actorID uuid.UUID, actorRole domain.Role, playerID uuid.UUID) (*domain.User, error) {
	player, err := a.users.LockForUpdate(ctx, tx, playerID)
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if player == nil {
		return nil, domain.ErrNotFound("user", playerID.String())
	}
	if player.Role != domain.RolePlayer {
		return nil, domain.ErrInvalidArgument("only player accounts can be blocked from betting")
	}

	if actorRole != domain.RoleAdmin {
		isAnc, err := a.store.IsAncestor(ctx, actorID, playerID)
		if err != nil {
			return nil, err
		}
		if !isAnc {
			return nil, domain.ErrForbidden("account is outside your downline")
		}
	}
	return player, nil
}

// currentBlocker resolves who imposed the block at the current level: the
// most recent entrant in the blocker set whose role maps to that level.
func (a *Authority) currentBlocker(ctx context.Context, gb *domain.GameBlock) (uuid.UUID, domain.Role, error) {
	want := domain.RoleForBlockLevel(gb.Level)
	for i := len(gb.BlockedBy) - 1; i >= 0; i-- {
		role, err := a.store.GetRole(ctx, gb.BlockedBy[i])
		if err != nil {
			return uuid.Nil, "", err
		}
		if role == want {
			return gb.BlockedBy[i], role, nil
		}
	}
	// Level set but no matching blocker on record: corrupted state.
	return uuid.Nil, "", domain.ErrDataIntegrity(fmt.Sprintf(
		"game %s is %s but no %s blocker is recorded", gb.GameID, gb.Level, want))
}
