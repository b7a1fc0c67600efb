package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierbet/backoffice/internal/domain"
)

type gameBlockRepo struct{}

// NewGameBlockRepository returns a pgx-backed GameBlockRepository.
func NewGameBlockRepository() GameBlockRepository {
	return &gameBlockRepo{}
}

func (r *gameBlockRepo) Find(ctx context.Context, db DBTX, gameID string) (*domain.GameBlock, error) {
	row := db.QueryRow(ctx, `
		SELECT game_id, level, blocked_by, updated_at
		FROM game_blocks WHERE game_id = $1`, gameID)
	return scanGameBlock(row)
}

// LockForUpdate upserts a NONE row first so the subsequent FOR UPDATE always
// has something to lock; concurrent block calls on the same game serialize
// on that row.
func (r *gameBlockRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, gameID string) (*domain.GameBlock, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO game_blocks (game_id, level, blocked_by)
		VALUES ($1, $2, '{}')
		ON CONFLICT (game_id) DO NOTHING`,
		gameID, string(domain.BlockNone))
	if err != nil {
		return nil, fmt.Errorf("upsert game block: %w", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT game_id, level, blocked_by, updated_at
		FROM game_blocks WHERE game_id = $1 FOR UPDATE`, gameID)
	return scanGameBlock(row)
}

func (r *gameBlockRepo) Save(ctx context.Context, db DBTX, block *domain.GameBlock) error {
	ids := block.BlockedBy
	if ids == nil {
		ids = []uuid.UUID{}
	}
	_, err := db.Exec(ctx, `
		UPDATE game_blocks
		SET level = $1, blocked_by = $2, updated_at = now()
		WHERE game_id = $3`,
		string(block.Level), ids, block.GameID)
	if err != nil {
		return fmt.Errorf("save game block: %w", err)
	}
	return nil
}

func scanGameBlock(row pgx.Row) (*domain.GameBlock, error) {
	var gb domain.GameBlock
	err := row.Scan(&gb.GameID, &gb.Level, &gb.BlockedBy, &gb.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan game block: %w", err)
	}
	return &gb, nil
}
