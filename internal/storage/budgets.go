package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"conti/internal/core"
)

// BudgetFilter narrows ListBudgets. Zero fields match everything.
type BudgetFilter struct {
	Year       int
	Month      int
	CategoryID int64
	Page
}

func (f BudgetFilter) where() (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Year > 0 {
		conds = append(conds, "budget_year = ?")
		args = append(args, f.Year)
	}
	if f.Month > 0 {
		conds = append(conds, "budget_month = ?")
		args = append(args, f.Month)
	}
	if f.CategoryID > 0 {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const budgetColumns = `id, budget_year, budget_month, category_id, planned_amount, currency, created_at, updated_at`

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                core.Budget
		currency         string
		created, updated string
	)
	if err := s.Scan(&b.ID, &b.Year, &b.Month, &b.CategoryID, &b.PlannedAmount, &currency, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	b.Currency = core.Currency(currency)
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	return b, nil
}

func (q *Queries) InsertBudget(ctx context.Context, b core.Budget, now time.Time) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO budgets (budget_year, budget_month, category_id, planned_amount, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+budgetColumns,
		b.Year, b.Month, b.CategoryID, b.PlannedAmount.String(), string(b.Currency), formatTime(now), formatTime(now))
	created, err := scanBudget(row)
	if isUniqueViolation(err) {
		return core.Budget{}, core.ErrDuplicateBudget
	}
	return created, err
}

func (q *Queries) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, notFound(err, core.ErrBudgetNotFound)
	}
	return b, nil
}

func (q *Queries) ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	where, args := f.where()
	limit, offset := f.Page.args()
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets`+where+
			` ORDER BY budget_year DESC, budget_month DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) CountBudgets(ctx context.Context, f BudgetFilter) (int, error) {
	where, args := f.where()
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM budgets`+where, args...).Scan(&n)
	return n, err
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget, now time.Time) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE budgets
		 SET budget_year = ?, budget_month = ?, category_id = ?, planned_amount = ?, currency = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+budgetColumns,
		b.Year, b.Month, b.CategoryID, b.PlannedAmount.String(), string(b.Currency), formatTime(now), b.ID)
	updated, err := scanBudget(row)
	if isUniqueViolation(err) {
		return core.Budget{}, core.ErrDuplicateBudget
	}
	if err != nil {
		return core.Budget{}, notFound(err, core.ErrBudgetNotFound)
	}
	return updated, nil
}

func (q *Queries) DeleteBudget(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrBudgetNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	var out core.Budget
	err := r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetCategory(ctx, b.CategoryID); err != nil {
			return err
		}
		var err error
		out, err = q.InsertBudget(ctx, b, r.now())
		return err
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget created",
		"budget_id", out.ID,
		"category_id", out.CategoryID,
		"year", out.Year,
		"month", out.Month)
	return out, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := r.queries.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, int, error) {
	items, err := r.queries.ListBudgets(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list budgets: %w", err)
	}
	total, err := r.queries.CountBudgets(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count budgets: %w", err)
	}
	return items, total, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	var out core.Budget
	err := r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetCategory(ctx, b.CategoryID); err != nil {
			return err
		}
		var err error
		out, err = q.UpdateBudget(ctx, b, r.now())
		return err
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id int64) (core.Budget, error) {
	var old core.Budget
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		if old, err = q.GetBudget(ctx, id); err != nil {
			return err
		}
		return q.DeleteBudget(ctx, id)
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("delete budget %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Budget deleted", "budget_id", id)
	return old, nil
}
