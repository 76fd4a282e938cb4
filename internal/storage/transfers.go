package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/core"
)

// TransferFilter narrows ListTransfers. AccountID matches either side.
type TransferFilter struct {
	AccountID int64
	Page
}

func (f TransferFilter) where() (string, []interface{}) {
	if f.AccountID > 0 {
		return " WHERE from_account_id = ? OR to_account_id = ?", []interface{}{f.AccountID, f.AccountID}
	}
	return "", nil
}

const transferColumns = `id, from_account_id, to_account_id, from_amount, to_amount, from_currency, to_currency,
	exchange_rate, description, transfer_date, created_at, updated_at`

func scanTransfer(s scanner) (core.Transfer, error) {
	var (
		t                core.Transfer
		fromCur, toCur   string
		date             string
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.FromAmount, &t.ToAmount, &fromCur, &toCur,
		&t.ExchangeRate, &t.Description, &date, &created, &updated); err != nil {
		return core.Transfer{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Transfer{}, err
	}
	t.FromCurrency = core.Currency(fromCur)
	t.ToCurrency = core.Currency(toCur)
	t.Date = d
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func exchangeRateArg(t core.Transfer) sql.NullString {
	if !t.ExchangeRate.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: t.ExchangeRate.Decimal.String(), Valid: true}
}

func (q *Queries) InsertTransfer(ctx context.Context, t core.Transfer, now time.Time) (core.Transfer, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO transfers (from_account_id, to_account_id, from_amount, to_amount, from_currency, to_currency,
		                       exchange_rate, description, transfer_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+transferColumns,
		t.FromAccountID, t.ToAccountID, t.FromAmount.String(), t.ToAmount.String(),
		string(t.FromCurrency), string(t.ToCurrency), exchangeRateArg(t), t.Description,
		formatDate(t.Date), formatTime(now), formatTime(now))
	return scanTransfer(row)
}

func (q *Queries) GetTransfer(ctx context.Context, id int64) (core.Transfer, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = ?`, id)
	t, err := scanTransfer(row)
	if err != nil {
		return core.Transfer{}, notFound(err, core.ErrTransferNotFound)
	}
	return t, nil
}

func (q *Queries) ListTransfers(ctx context.Context, f TransferFilter) ([]core.Transfer, error) {
	where, args := f.where()
	limit, offset := f.Page.args()
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers`+where+
			` ORDER BY transfer_date DESC, created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) CountTransfers(ctx context.Context, f TransferFilter) (int, error) {
	where, args := f.where()
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers`+where, args...).Scan(&n)
	return n, err
}

func (q *Queries) UpdateTransfer(ctx context.Context, t core.Transfer, now time.Time) (core.Transfer, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE transfers
		 SET from_amount = ?, to_amount = ?, exchange_rate = ?, description = ?, transfer_date = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+transferColumns,
		t.FromAmount.String(), t.ToAmount.String(), exchangeRateArg(t), t.Description,
		formatDate(t.Date), formatTime(now), t.ID)
	updated, err := scanTransfer(row)
	if err != nil {
		return core.Transfer{}, notFound(err, core.ErrTransferNotFound)
	}
	return updated, nil
}

func (q *Queries) DeleteTransfer(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrTransferNotFound
	}
	return nil
}

// applyTransfer moves t's amounts between its accounts. It fails without
// writing when the source cannot cover FromAmount or when either account's
// currency no longer matches t.
func (q *Queries) applyTransfer(ctx context.Context, t core.Transfer, now time.Time) error {
	from, err := q.GetAccount(ctx, t.FromAccountID)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	to, err := q.GetAccount(ctx, t.ToAccountID)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if from.Currency != t.FromCurrency || to.Currency != t.ToCurrency {
		return fmt.Errorf("%w: account currency changed while the transfer was prepared", core.ErrConflict)
	}
	if from.Balance.LessThan(t.FromAmount) {
		return &core.InsufficientFundsError{AccountID: from.ID, Balance: from.Balance, Required: t.FromAmount}
	}
	if err := q.SetBalance(ctx, from.ID, from.Balance.Sub(t.FromAmount), now); err != nil {
		return err
	}
	return q.SetBalance(ctx, to.ID, to.Balance.Add(t.ToAmount), now)
}

func (q *Queries) reverseTransfer(ctx context.Context, t core.Transfer, now time.Time) error {
	if _, err := q.adjustBalance(ctx, t.FromAccountID, t.FromAmount, now); err != nil {
		return err
	}
	_, err := q.adjustBalance(ctx, t.ToAccountID, t.ToAmount.Neg(), now)
	return err
}

// CreateTransfer stores t and moves the money in one transaction.
func (r *SQLiteRepository) CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	var out core.Transfer
	err := r.inTx(ctx, func(q *Queries) error {
		now := r.now()
		if err := q.applyTransfer(ctx, t, now); err != nil {
			return err
		}
		var err error
		out, err = q.InsertTransfer(ctx, t, now)
		return err
	})
	if err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: %w", err)
	}
	slog.InfoContext(ctx, "Transfer posted",
		"transfer_id", out.ID,
		"from_account_id", out.FromAccountID,
		"to_account_id", out.ToAccountID,
		"from_amount", out.FromAmount.String(),
		"to_amount", out.ToAmount.String())
	return out, nil
}

func (r *SQLiteRepository) GetTransfer(ctx context.Context, id int64) (core.Transfer, error) {
	t, err := r.queries.GetTransfer(ctx, id)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("get transfer %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransfers(ctx context.Context, f TransferFilter) ([]core.Transfer, int, error) {
	items, err := r.queries.ListTransfers(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	total, err := r.queries.CountTransfers(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}
	return items, total, nil
}

// UpdateTransfer reverses the stored transfer and applies t in its place.
// The accounts of a transfer never change.
func (r *SQLiteRepository) UpdateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	var out core.Transfer
	err := r.inTx(ctx, func(q *Queries) error {
		old, err := q.GetTransfer(ctx, t.ID)
		if err != nil {
			return err
		}
		t.FromAccountID, t.ToAccountID = old.FromAccountID, old.ToAccountID
		now := r.now()
		if err := q.reverseTransfer(ctx, old, now); err != nil {
			return err
		}
		if err := q.applyTransfer(ctx, t, now); err != nil {
			return err
		}
		out, err = q.UpdateTransfer(ctx, t, now)
		return err
	})
	if err != nil {
		return core.Transfer{}, fmt.Errorf("update transfer %d: %w", t.ID, err)
	}
	return out, nil
}

// DeleteTransfer removes the transfer and restores both balances.
func (r *SQLiteRepository) DeleteTransfer(ctx context.Context, id int64) (core.Transfer, error) {
	var old core.Transfer
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		if old, err = q.GetTransfer(ctx, id); err != nil {
			return err
		}
		if err := q.reverseTransfer(ctx, old, r.now()); err != nil {
			return err
		}
		return q.DeleteTransfer(ctx, id)
	})
	if err != nil {
		return core.Transfer{}, fmt.Errorf("delete transfer %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Transfer reversed", "transfer_id", id)
	return old, nil
}
