package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tierbet/backoffice/internal/domain"
)

const userColumns = `id, parent_id, role, coins, balance, exposure, commission_rate, blocking_level, currency, created_at, updated_at`

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	return scanUser(row)
}

func (r *userRepo) Create(ctx context.Context, db DBTX, user *domain.User) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, parent_id, role, coins, balance, exposure, commission_rate, blocking_level, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID,
		user.ParentID,
		string(user.Role),
		Int64ToNumeric(user.Coins),
		Int64ToNumeric(user.Balance),
		Int64ToNumeric(user.Exposure),
		user.CommissionRate,
		string(user.BlockingLevel),
		user.Currency,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// ApplyDelta uses server-side arithmetic with dynamic SET clauses so two
// concurrent writers can never clobber each other's balance reads.
func (r *userRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta domain.BalanceUpdate) (*domain.User, error) {
	setClauses := []string{"updated_at = now()"}
	args := []interface{}{}
	argIdx := 1

	if delta.HasCoinsDelta() {
		setClauses = append(setClauses, fmt.Sprintf("coins = coins + $%d", argIdx))
		args = append(args, Int64ToNumeric(delta.Coins))
		argIdx++
	}
	if delta.HasBalanceDelta() {
		setClauses = append(setClauses, fmt.Sprintf("balance = balance + $%d", argIdx))
		args = append(args, Int64ToNumeric(delta.Balance))
		argIdx++
	}
	if delta.HasExposureDelta() {
		setClauses = append(setClauses, fmt.Sprintf("exposure = exposure + $%d", argIdx))
		args = append(args, Int64ToNumeric(delta.Exposure))
		argIdx++
	}

	args = append(args, userID)
	query := fmt.Sprintf(`
		UPDATE users SET %s
		WHERE id = $%d
		RETURNING `+userColumns,
		strings.Join(setClauses, ", "), argIdx)

	row := tx.QueryRow(ctx, query, args...)
	return scanUser(row)
}

func (r *userRepo) ListChildren(ctx context.Context, db DBTX, parentID uuid.UUID) ([]domain.User, error) {
	rows, err := db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE parent_id = $1 ORDER BY created_at ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUserValues(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepo) UpdateBlockingLevel(ctx context.Context, db DBTX, userID uuid.UUID, level domain.BlockLevel) error {
	tag, err := db.Exec(ctx,
		`UPDATE users SET blocking_level = $1, updated_at = now() WHERE id = $2`,
		string(level), userID)
	if err != nil {
		return fmt.Errorf("update blocking level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user", userID.String())
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u, err := scanUserValues(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func scanUserValues(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var coinsNum, balNum, expNum pgtype.Numeric
	err := row.Scan(&u.ID, &u.ParentID, &u.Role, &coinsNum, &balNum, &expNum,
		&u.CommissionRate, &u.BlockingLevel, &u.Currency, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	var convErr error
	u.Coins, convErr = NumericToInt64(coinsNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert coins: %w", convErr)
	}
	u.Balance, convErr = NumericToInt64(balNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert balance: %w", convErr)
	}
	u.Exposure, convErr = NumericToInt64(expNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert exposure: %w", convErr)
	}

	return &u, nil
}
