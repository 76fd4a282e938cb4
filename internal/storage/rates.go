package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/core"
	"conti/internal/rates"

	"github.com/shopspring/decimal"
)

var _ rates.Store = (*SQLiteRepository)(nil)

const rateColumns = `id, currency, rate_to_usd, effective_from, effective_to, created_at`

func scanRate(s scanner) (core.ExchangeRate, error) {
	var (
		r              core.ExchangeRate
		currency, from string
		to             sql.NullString
		created        string
	)
	if err := s.Scan(&r.ID, &currency, &r.RateToUSD, &from, &to, &created); err != nil {
		return core.ExchangeRate{}, err
	}
	d, err := parseDate(from)
	if err != nil {
		return core.ExchangeRate{}, err
	}
	r.Currency = core.Currency(currency)
	r.EffectiveFrom = d
	if to.Valid {
		end, err := parseDate(to.String)
		if err != nil {
			return core.ExchangeRate{}, err
		}
		r.EffectiveTo = &end
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}

func (q *Queries) InsertRate(ctx context.Context, r core.ExchangeRate, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO currency_rates (currency, rate_to_usd, effective_from, effective_to, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(r.Currency), r.RateToUSD.String(), formatDate(r.EffectiveFrom), nullableDate(r.EffectiveTo), formatTime(now))
	return err
}

func (q *Queries) ActiveRate(ctx context.Context, currency core.Currency, on core.Date) (core.ExchangeRate, error) {
	day := formatDate(on)
	row := q.db.QueryRowContext(ctx,
		`SELECT `+rateColumns+` FROM currency_rates
		 WHERE currency = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)
		 ORDER BY effective_from DESC, id DESC
		 LIMIT 1`,
		string(currency), day, day)
	return scanRate(row)
}

// ActiveRateRows returns every row in force on the given day; callers pick
// the winner per currency.
func (q *Queries) ActiveRateRows(ctx context.Context, on core.Date) ([]core.ExchangeRate, error) {
	day := formatDate(on)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+rateColumns+` FROM currency_rates
		 WHERE effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)`,
		day, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRates(rows)
}

func (q *Queries) ListRates(ctx context.Context, f rates.Filter) ([]core.ExchangeRate, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	var (
		rows *sql.Rows
		err  error
	)
	if f.Currency != "" {
		rows, err = q.db.QueryContext(ctx,
			`SELECT `+rateColumns+` FROM currency_rates WHERE currency = ?
			 ORDER BY effective_from DESC, id DESC LIMIT ?`, string(f.Currency), limit)
	} else {
		rows, err = q.db.QueryContext(ctx,
			`SELECT `+rateColumns+` FROM currency_rates
			 ORDER BY effective_from DESC, id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRates(rows)
}

func collectRates(rows *sql.Rows) ([]core.ExchangeRate, error) {
	var out []core.ExchangeRate
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ActiveRate(ctx context.Context, currency core.Currency, on core.Date) (core.ExchangeRate, error) {
	if currency == core.USD {
		return rates.USDRate(on), nil
	}
	rate, err := r.queries.ActiveRate(ctx, currency, on)
	if err != nil {
		return core.ExchangeRate{}, notFound(err, &core.RateNotFoundError{Currency: currency})
	}
	return rate, nil
}

func (r *SQLiteRepository) ActiveRates(ctx context.Context, on core.Date) (map[core.Currency]decimal.Decimal, error) {
	rows, err := r.queries.ActiveRateRows(ctx, on)
	if err != nil {
		return nil, fmt.Errorf("load active rates: %w", err)
	}
	out := map[core.Currency]decimal.Decimal{core.USD: decimal.NewFromInt(1)}
	for c, row := range rates.Latest(rows, on) {
		out[c] = row.RateToUSD
	}
	return out, nil
}

// ImportRates appends rows in one transaction. Nothing is written when any
// row is invalid.
func (r *SQLiteRepository) ImportRates(ctx context.Context, rows []core.ExchangeRate) (int, error) {
	if err := rates.Check(rows); err != nil {
		return 0, err
	}
	err := r.inTx(ctx, func(q *Queries) error {
		now := r.now()
		for i, row := range rows {
			if err := q.InsertRate(ctx, row, now); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import rates: %w", err)
	}
	slog.InfoContext(ctx, "Exchange rates imported", "count", len(rows))
	return len(rows), nil
}

func (r *SQLiteRepository) ListRates(ctx context.Context, f rates.Filter) ([]core.ExchangeRate, error) {
	out, err := r.queries.ListRates(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	return out, nil
}
