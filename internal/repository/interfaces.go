package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tierbet/backoffice/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// UserRepository provides access to the users hierarchy table.
type UserRepository interface {
	// FindByID returns a user by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the user.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)

	// Create inserts a new user.
	Create(ctx context.Context, db DBTX, user *domain.User) error

	// ApplyDelta atomically adjusts balance columns with server-side arithmetic
	// and returns the post-update row.
	ApplyDelta(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta domain.BalanceUpdate) (*domain.User, error)

	// ListChildren returns all users whose parent_id equals parentID.
	ListChildren(ctx context.Context, db DBTX, parentID uuid.UUID) ([]domain.User, error)

	// UpdateBlockingLevel sets the per-user restriction tier.
	UpdateBlockingLevel(ctx context.Context, db DBTX, userID uuid.UUID, level domain.BlockLevel) error
}

// LedgerRepository provides access to the append-only ledger_entries table.
type LedgerRepository interface {
	// Insert creates a new ledger entry carrying the post-update balance
	// snapshots. Returns the inserted row. Entries are never updated or deleted.
	Insert(ctx context.Context, db DBTX, params domain.AppendParams, debit, credit int64, balances domain.Balances) (*domain.LedgerEntry, error)

	// FindByID returns an entry by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.LedgerEntry, error)

	// FindSettlement returns the entry of the given type for (userID, roundID),
	// or nil. Used for duplicate-settlement and original-bet checks.
	FindSettlement(ctx context.Context, db DBTX, userID uuid.UUID, roundID string, types ...domain.EntryType) (*domain.LedgerEntry, error)

	// ListForUser returns a user's entries newest first with page/pageSize
	// pagination and optional date-range/status filters.
	ListForUser(ctx context.Context, db DBTX, userID uuid.UUID, page, pageSize int, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)

	// ListByRound returns all entries of a casino round, oldest first.
	ListByRound(ctx context.Context, db DBTX, roundID string) ([]domain.LedgerEntry, error)
}

// GameBlockRepository provides access to the game_blocks table.
type GameBlockRepository interface {
	// Find returns the block state for a game, or nil if never blocked.
	Find(ctx context.Context, db DBTX, gameID string) (*domain.GameBlock, error)

	// LockForUpdate upserts a NONE row if absent, then locks and returns it.
	LockForUpdate(ctx context.Context, tx pgx.Tx, gameID string) (*domain.GameBlock, error)

	// Save persists the level and blocker set.
	Save(ctx context.Context, db DBTX, block *domain.GameBlock) error
}

// AuthUserRepository provides access to auth_users.
type AuthUserRepository interface {
	// FindByEmail returns an auth user by email, or nil if absent.
	FindByEmail(ctx context.Context, db DBTX, email string) (*domain.AuthUser, error)

	// Create inserts a new auth user.
	Create(ctx context.Context, db DBTX, user *domain.AuthUser) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the
	// state change it describes).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublishedRows returns pending events for the outbox poller.
	FetchUnpublishedRows(ctx context.Context, db DBTX, limit int) ([]OutboxRow, error)

	// MarkPublished removes delivered events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}

// OutboxRow is an outbox event plus its sequence ID, as read by the poller.
type OutboxRow struct {
	SeqID int64
	domain.OutboxDraft
}
