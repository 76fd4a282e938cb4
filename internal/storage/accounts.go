package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/core"

	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, name, currency, balance, description, created_at, updated_at`

func scanAccount(s scanner) (core.Account, error) {
	var (
		a                core.Account
		currency         string
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.Name, &currency, &a.Balance, &a.Description, &created, &updated); err != nil {
		return core.Account{}, err
	}
	a.Currency = core.Currency(currency)
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return a, nil
}

func (q *Queries) InsertAccount(ctx context.Context, a core.Account, now time.Time) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO accounts (name, currency, balance, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING `+accountColumns,
		a.Name, string(a.Currency), a.Balance.String(), a.Description, formatTime(now), formatTime(now))
	return scanAccount(row)
}

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return core.Account{}, notFound(err, core.ErrAccountNotFound)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, p Page) ([]core.Account, error) {
	limit, offset := p.args()
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) CountAccounts(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

func (q *Queries) UpdateAccount(ctx context.Context, a core.Account, now time.Time) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE accounts SET name = ?, currency = ?, balance = ?, description = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+accountColumns,
		a.Name, string(a.Currency), a.Balance.String(), a.Description, formatTime(now), a.ID)
	updated, err := scanAccount(row)
	if err != nil {
		return core.Account{}, notFound(err, core.ErrAccountNotFound)
	}
	return updated, nil
}

func (q *Queries) SetBalance(ctx context.Context, id int64, balance decimal.Decimal, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), formatTime(now), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func (q *Queries) DeleteAccount(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

// CountPostings counts transactions and transfers that touch the account.
func (q *Queries) CountPostings(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM transactions WHERE account_id = ?) +
		   (SELECT COUNT(*) FROM transfers WHERE from_account_id = ? OR to_account_id = ?)`,
		accountID, accountID, accountID).Scan(&n)
	return n, err
}

// adjustBalance adds delta to the account balance and returns the account as
// it was before the change.
func (q *Queries) adjustBalance(ctx context.Context, id int64, delta decimal.Decimal, now time.Time) (core.Account, error) {
	a, err := q.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if err := q.SetBalance(ctx, id, a.Balance.Add(delta), now); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	created, err := r.queries.InsertAccount(ctx, a, r.now())
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	slog.InfoContext(ctx, "Account saved to SQLite",
		"account_id", created.ID,
		"currency", created.Currency,
		"balance", created.Balance.String())
	return created, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := r.queries.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// ListAccounts returns one page of accounts and the total count.
func (r *SQLiteRepository) ListAccounts(ctx context.Context, p Page) ([]core.Account, int, error) {
	items, err := r.queries.ListAccounts(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	total, err := r.queries.CountAccounts(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}
	return items, total, nil
}

// UpdateAccount stores a. The currency may only change while the account
// has no postings.
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	var out core.Account
	err := r.inTx(ctx, func(q *Queries) error {
		current, err := q.GetAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		if current.Currency != a.Currency {
			n, err := q.CountPostings(ctx, a.ID)
			if err != nil {
				return fmt.Errorf("count postings: %w", err)
			}
			if n > 0 {
				return core.ErrCurrencyLocked
			}
		}
		out, err = q.UpdateAccount(ctx, a, r.now())
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %d: %w", a.ID, err)
	}
	return out, nil
}

// DeleteAccount removes the account with its transactions and transfers.
// Counterpart accounts of removed transfers get their side reversed.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) (core.Account, error) {
	var deleted core.Account
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		if deleted, err = q.GetAccount(ctx, id); err != nil {
			return err
		}
		transfers, err := q.ListTransfers(ctx, TransferFilter{AccountID: id})
		if err != nil {
			return fmt.Errorf("list transfers: %w", err)
		}
		now := r.now()
		for _, t := range transfers {
			switch {
			case t.FromAccountID == id:
				_, err = q.adjustBalance(ctx, t.ToAccountID, t.ToAmount.Neg(), now)
			case t.ToAccountID == id:
				_, err = q.adjustBalance(ctx, t.FromAccountID, t.FromAmount, now)
			}
			if err != nil {
				return fmt.Errorf("reverse transfer %d: %w", t.ID, err)
			}
		}
		return q.DeleteAccount(ctx, id)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("delete account %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Account deleted", "account_id", id)
	return deleted, nil
}
