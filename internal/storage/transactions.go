package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"conti/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero fields match everything.
type TransactionFilter struct {
	AccountID  int64
	CategoryID int64
	From, To   core.Date
	Page
}

func (f TransactionFilter) where() (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.AccountID > 0 {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CategoryID > 0 {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "transaction_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "transaction_date <= ?")
		args = append(args, formatDate(f.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const transactionColumns = `id, account_id, amount, currency, category_id, description, transaction_date, created_at, updated_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                core.Transaction
		currency, date   string
		category         sql.NullInt64
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.AccountID, &t.Amount, &currency, &category, &t.Description, &date, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Currency = core.Currency(currency)
	t.CategoryID = idPtr(category)
	t.Date = d
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction, now time.Time) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO transactions (account_id, amount, currency, category_id, description, transaction_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+transactionColumns,
		t.AccountID, t.Amount.String(), string(t.Currency), nullableID(t.CategoryID), t.Description,
		formatDate(t.Date), formatTime(now), formatTime(now))
	return scanTransaction(row)
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, core.ErrTransactionNotFound)
	}
	return t, nil
}

// ListTransactions returns matching transactions, newest date first.
func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	where, args := f.where()
	limit, offset := f.Page.args()
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions`+where+
			` ORDER BY transaction_date DESC, created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) CountTransactions(ctx context.Context, f TransactionFilter) (int, error) {
	where, args := f.where()
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&n)
	return n, err
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction, now time.Time) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE transactions
		 SET amount = ?, category_id = ?, description = ?, transaction_date = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+transactionColumns,
		t.Amount.String(), nullableID(t.CategoryID), t.Description, formatDate(t.Date), formatTime(now), t.ID)
	updated, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, core.ErrTransactionNotFound)
	}
	return updated, nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (q *Queries) requireCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	_, err := q.GetCategory(ctx, *id)
	return err
}

// CreateTransaction stores t and posts its amount to the account balance in
// one transaction. The currency is taken from the account.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.requireCategory(ctx, t.CategoryID); err != nil {
			return err
		}
		now := r.now()
		acc, err := q.adjustBalance(ctx, t.AccountID, t.Amount, now)
		if err != nil {
			return err
		}
		t.Currency = acc.Currency
		out, err = q.InsertTransaction(ctx, t, now)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction posted",
		"transaction_id", out.ID,
		"account_id", out.AccountID,
		"amount", out.Amount.String(),
		"currency", out.Currency)
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, int, error) {
	items, err := r.queries.ListTransactions(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	total, err := r.queries.CountTransactions(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return items, total, nil
}

// TransactionsInPeriod returns every transaction dated inside the month.
func (r *SQLiteRepository) TransactionsInPeriod(ctx context.Context, p core.Period) ([]core.Transaction, error) {
	first := core.NewDate(p.Year, p.Month, 1)
	last := core.DateOf(first.AddDate(0, 1, -1))
	items, err := r.queries.ListTransactions(ctx, TransactionFilter{From: first, To: last})
	if err != nil {
		return nil, fmt.Errorf("list transactions for %d-%02d: %w", p.Year, p.Month, err)
	}
	return items, nil
}

// UpdateTransaction reverses the stored amount and posts the new one.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := r.inTx(ctx, func(q *Queries) error {
		old, err := q.GetTransaction(ctx, t.ID)
		if err != nil {
			return err
		}
		if err := q.requireCategory(ctx, t.CategoryID); err != nil {
			return err
		}
		now := r.now()
		if !old.Amount.Equal(t.Amount) {
			if _, err := q.adjustBalance(ctx, old.AccountID, t.Amount.Sub(old.Amount), now); err != nil {
				return err
			}
		}
		out, err = q.UpdateTransaction(ctx, t, now)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	return out, nil
}

// DeleteTransaction removes the transaction and reverses its posting.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var old core.Transaction
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		if old, err = q.GetTransaction(ctx, id); err != nil {
			return err
		}
		if _, err := q.adjustBalance(ctx, old.AccountID, old.Amount.Neg(), r.now()); err != nil {
			return err
		}
		return q.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction reversed",
		"transaction_id", id,
		"account_id", old.AccountID,
		"amount", old.Amount.String())
	return old, nil
}
