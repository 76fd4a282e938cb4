package storage

import (
	"context"
	"fmt"
	"time"

	"conti/internal/core"
)

func scanSettings(s scanner) (core.Settings, error) {
	var (
		st               core.Settings
		currency         string
		created, updated string
	)
	if err := s.Scan(&currency, &created, &updated); err != nil {
		return core.Settings{}, err
	}
	st.DefaultCurrency = core.Currency(currency)
	st.CreatedAt = parseTime(created)
	st.UpdatedAt = parseTime(updated)
	return st, nil
}

func (q *Queries) EnsureSettings(ctx context.Context, defaults core.Settings, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO user_settings (id, default_currency, created_at, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		string(defaults.DefaultCurrency), formatTime(now), formatTime(now))
	return err
}

func (q *Queries) GetSettings(ctx context.Context) (core.Settings, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT default_currency, created_at, updated_at FROM user_settings WHERE id = 1`)
	return scanSettings(row)
}

func (q *Queries) UpdateSettings(ctx context.Context, s core.Settings, now time.Time) (core.Settings, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE user_settings SET default_currency = ?, updated_at = ? WHERE id = 1
		 RETURNING default_currency, created_at, updated_at`,
		string(s.DefaultCurrency), formatTime(now))
	return scanSettings(row)
}

// GetSettings returns the settings row, creating it with defaults first.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (core.Settings, error) {
	var out core.Settings
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.EnsureSettings(ctx, core.DefaultSettings(), r.now()); err != nil {
			return err
		}
		var err error
		out, err = q.GetSettings(ctx)
		return err
	})
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateSettings(ctx context.Context, s core.Settings) (core.Settings, error) {
	var out core.Settings
	err := r.inTx(ctx, func(q *Queries) error {
		now := r.now()
		if err := q.EnsureSettings(ctx, core.DefaultSettings(), now); err != nil {
			return err
		}
		var err error
		out, err = q.UpdateSettings(ctx, s, now)
		return err
	})
	if err != nil {
		return core.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return out, nil
}
