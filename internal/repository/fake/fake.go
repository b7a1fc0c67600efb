// Package fake provides in-memory repository implementations for unit
// tests. The fakes ignore the db/tx handles; callers pass nil.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/repository"
)

// UserRepo is an in-memory UserRepository.
type UserRepo struct {
	mu    sync.Mutex
	Users map[uuid.UUID]*domain.User
}

// NewUserRepo creates an empty in-memory user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{Users: make(map[uuid.UUID]*domain.User)}
}

// Add stores a copy of the user and returns its ID. Defaults mirror the
// users table: an unset blocking level means NONE.
func (r *UserRepo) Add(u domain.User) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.BlockingLevel == "" {
		u.BlockingLevel = domain.BlockNone
	}
	r.Users[u.ID] = &u
	return u.ID
}

func (r *UserRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) LockForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.FindByID(ctx, nil, id)
}

func (r *UserRepo) Create(_ context.Context, _ repository.DBTX, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.Users[user.ID] = &cp
	return nil
}

func (r *UserRepo) ApplyDelta(_ context.Context, _ pgx.Tx, userID uuid.UUID, delta domain.BalanceUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok {
		return nil, nil
	}
	u.Coins += delta.Coins
	u.Balance += delta.Balance
	u.Exposure += delta.Exposure
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *UserRepo) ListChildren(_ context.Context, _ repository.DBTX, parentID uuid.UUID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.Users {
		if u.ParentID != nil && *u.ParentID == parentID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *UserRepo) UpdateBlockingLevel(_ context.Context, _ repository.DBTX, userID uuid.UUID, level domain.BlockLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok {
		return domain.ErrNotFound("user", userID.String())
	}
	u.BlockingLevel = level
	return nil
}

// LedgerRepo is an in-memory LedgerRepository. Entries keep insertion order.
type LedgerRepo struct {
	mu      sync.Mutex
	Entries []domain.LedgerEntry
	clock   time.Time
}

// NewLedgerRepo creates an empty in-memory ledger repository.
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{clock: time.Now()}
}

func (r *LedgerRepo) Insert(_ context.Context, _ repository.DBTX, params domain.AppendParams, debit, credit int64, balances domain.Balances) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := params.Status
	if status == "" {
		status = domain.StatusCompleted
	}
	r.clock = r.clock.Add(time.Millisecond)
	entry := domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        params.UserID,
		RoundID:       params.RoundID,
		Type:          params.Type,
		Debit:         debit,
		Credit:        credit,
		CoinsAfter:    balances.Coins,
		BalanceAfter:  balances.Balance,
		ExposureAfter: balances.Exposure,
		Status:        status,
		Description:   params.Description,
		Metadata:      params.Metadata,
		CreatedAt:     r.clock,
	}
	r.Entries = append(r.Entries, entry)
	cp := entry
	return &cp, nil
}

func (r *LedgerRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Entries {
		if r.Entries[i].ID == id {
			cp := r.Entries[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *LedgerRepo) FindSettlement(_ context.Context, _ repository.DBTX, userID uuid.UUID, roundID string, types ...domain.EntryType) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Entries {
		e := r.Entries[i]
		if e.UserID != userID || e.RoundID == nil || *e.RoundID != roundID {
			continue
		}
		for _, t := range types {
			if e.Type == t {
				cp := e
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *LedgerRepo) ListForUser(_ context.Context, _ repository.DBTX, userID uuid.UUID, page, pageSize int, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var matched []domain.LedgerEntry
	for i := len(r.Entries) - 1; i >= 0; i-- { // newest first
		e := r.Entries[i]
		if e.UserID != userID {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		matched = append(matched, e)
	}

	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (r *LedgerRepo) ListByRound(_ context.Context, _ repository.DBTX, roundID string) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.Entries {
		if e.RoundID != nil && *e.RoundID == roundID {
			out = append(out, e)
		}
	}
	return out, nil
}

// LastForUser returns the newest entry for a user, or nil.
func (r *LedgerRepo) LastForUser(userID uuid.UUID) *domain.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Entries) - 1; i >= 0; i-- {
		if r.Entries[i].UserID == userID {
			cp := r.Entries[i]
			return &cp
		}
	}
	return nil
}

// GameBlockRepo is an in-memory GameBlockRepository.
type GameBlockRepo struct {
	mu     sync.Mutex
	Blocks map[string]*domain.GameBlock
}

// NewGameBlockRepo creates an empty in-memory game block repository.
func NewGameBlockRepo() *GameBlockRepo {
	return &GameBlockRepo{Blocks: make(map[string]*domain.GameBlock)}
}

func (r *GameBlockRepo) Find(_ context.Context, _ repository.DBTX, gameID string) (*domain.GameBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gb, ok := r.Blocks[gameID]
	if !ok {
		return nil, nil
	}
	cp := *gb
	cp.BlockedBy = append([]uuid.UUID(nil), gb.BlockedBy...)
	return &cp, nil
}

func (r *GameBlockRepo) LockForUpdate(_ context.Context, _ pgx.Tx, gameID string) (*domain.GameBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gb, ok := r.Blocks[gameID]
	if !ok {
		gb = &domain.GameBlock{GameID: gameID, Level: domain.BlockNone, UpdatedAt: time.Now()}
		r.Blocks[gameID] = gb
	}
	cp := *gb
	cp.BlockedBy = append([]uuid.UUID(nil), gb.BlockedBy...)
	return &cp, nil
}

func (r *GameBlockRepo) Save(_ context.Context, _ repository.DBTX, block *domain.GameBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *block
	cp.BlockedBy = append([]uuid.UUID(nil), block.BlockedBy...)
	cp.UpdatedAt = time.Now()
	r.Blocks[block.GameID] = &cp
	return nil
}

// OutboxRepo is an in-memory OutboxRepository.
type OutboxRepo struct {
	mu     sync.Mutex
	Drafts []domain.OutboxDraft
}

// NewOutboxRepo creates an empty in-memory outbox repository.
func NewOutboxRepo() *OutboxRepo {
	return &OutboxRepo{}
}

func (r *OutboxRepo) Insert(_ context.Context, _ repository.DBTX, draft domain.OutboxDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Drafts = append(r.Drafts, draft)
	return nil
}

func (r *OutboxRepo) FetchUnpublishedRows(_ context.Context, _ repository.DBTX, limit int) ([]repository.OutboxRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []repository.OutboxRow
	for i, d := range r.Drafts {
		if i >= limit {
			break
		}
		rows = append(rows, repository.OutboxRow{SeqID: int64(i + 1), OutboxDraft: d})
	}
	return rows, nil
}

func (r *OutboxRepo) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	return nil
}

var (
	_ repository.UserRepository      = (*UserRepo)(nil)
	_ repository.LedgerRepository    = (*LedgerRepo)(nil)
	_ repository.GameBlockRepository = (*GameBlockRepo)(nil)
	_ repository.OutboxRepository    = (*OutboxRepo)(nil)
)
