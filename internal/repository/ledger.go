package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tierbet/backoffice/internal/domain"
)

const entryColumns = `id, user_id, round_id, type, debit, credit, coins_after, balance_after, exposure_after, status, description, metadata, created_at`

type ledgerRepo struct{}

// NewLedgerRepository returns a pgx-backed LedgerRepository.
func NewLedgerRepository() LedgerRepository {
	return &ledgerRepo{}
}

func (r *ledgerRepo) Insert(ctx context.Context, db DBTX, params domain.AppendParams, debit, credit int64, balances domain.Balances) (*domain.LedgerEntry, error) {
	meta := params.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	status := params.Status
	if status == "" {
		status = domain.StatusCompleted
	}

	row := db.QueryRow(ctx, `
		INSERT INTO ledger_entries
		  (user_id, round_id, type, debit, credit, coins_after, balance_after, exposure_after, status, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+entryColumns,
		params.UserID,
		params.RoundID,
		string(params.Type),
		Int64ToNumeric(debit),
		Int64ToNumeric(credit),
		Int64ToNumeric(balances.Coins),
		Int64ToNumeric(balances.Balance),
		Int64ToNumeric(balances.Exposure),
		string(status),
		params.Description,
		meta,
	)
	return scanEntry(row)
}

func (r *ledgerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	return scanEntry(row)
}

func (r *ledgerRepo) FindSettlement(ctx context.Context, db DBTX, userID uuid.UUID, roundID string, types ...domain.EntryType) (*domain.LedgerEntry, error) {
	typeStrs := make([]string, len(types))
	for i, t := range types {
		typeStrs[i] = string(t)
	}
	row := db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND round_id = $2 AND type = ANY($3)
		ORDER BY created_at ASC
		LIMIT 1`,
		userID, roundID, typeStrs)
	return scanEntry(row)
}

func (r *ledgerRepo) ListForUser(ctx context.Context, db DBTX, userID uuid.UUID, page, pageSize int, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1`
	args := []interface{}{userID}
	argIdx := 2

	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (r *ledgerRepo) ListByRound(ctx context.Context, db DBTX, roundID string) ([]domain.LedgerEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE round_id = $1
		ORDER BY created_at ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("query round entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e, err := scanEntryValues(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func scanEntryValues(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var debitNum, creditNum, coinsNum, balNum, expNum pgtype.Numeric
	err := row.Scan(&e.ID, &e.UserID, &e.RoundID, &e.Type,
		&debitNum, &creditNum, &coinsNum, &balNum, &expNum,
		&e.Status, &e.Description, &e.Metadata, &e.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}

	for _, conv := range []struct {
		dst *int64
		src pgtype.Numeric
		col string
	}{
		{&e.Debit, debitNum, "debit"},
		{&e.Credit, creditNum, "credit"},
		{&e.CoinsAfter, coinsNum, "coins_after"},
		{&e.BalanceAfter, balNum, "balance_after"},
		{&e.ExposureAfter, expNum, "exposure_after"},
	} {
		v, convErr := NumericToInt64(conv.src)
		if convErr != nil {
			return nil, fmt.Errorf("convert %s: %w", conv.col, convErr)
		}
		*conv.dst = v
	}

	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntryValues(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
