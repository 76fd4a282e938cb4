package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"conti/internal/category"
	"conti/internal/core"
)

// CategoryFilter narrows ListCategories. A nil ParentID with RootsOnly set
// returns only top-level categories.
type CategoryFilter struct {
	Type      core.CategoryType
	ParentID  *int64
	RootsOnly bool
	Page
}

func (f CategoryFilter) where() (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	switch {
	case f.ParentID != nil:
		conds = append(conds, "parent_id = ?")
		args = append(args, *f.ParentID)
	case f.RootsOnly:
		conds = append(conds, "parent_id IS NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const categoryColumns = `id, name, description, type, parent_id, created_at, updated_at`

func scanCategory(s scanner) (core.Category, error) {
	var (
		c                core.Category
		kind             string
		parent           sql.NullInt64
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &kind, &parent, &created, &updated); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(kind)
	c.ParentID = idPtr(parent)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func (q *Queries) InsertCategory(ctx context.Context, c core.Category, now time.Time) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, description, type, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING `+categoryColumns,
		c.Name, c.Description, string(c.Type), nullableID(c.ParentID), formatTime(now), formatTime(now))
	return scanCategory(row)
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, notFound(err, core.ErrCategoryNotFound)
	}
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context, f CategoryFilter) ([]core.Category, error) {
	where, args := f.where()
	limit, offset := f.Page.args()
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories`+where+` ORDER BY name COLLATE NOCASE, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CountCategories(ctx context.Context, f CategoryFilter) (int, error) {
	where, args := f.where()
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`+where, args...).Scan(&n)
	return n, err
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category, now time.Time) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE categories SET name = ?, description = ?, type = ?, parent_id = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+categoryColumns,
		c.Name, c.Description, string(c.Type), nullableID(c.ParentID), formatTime(now), c.ID)
	updated, err := scanCategory(row)
	if err != nil {
		return core.Category{}, notFound(err, core.ErrCategoryNotFound)
	}
	return updated, nil
}

func (q *Queries) DeleteCategories(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

func (q *Queries) loadTree(ctx context.Context) (*category.Tree, error) {
	all, err := q.ListCategories(ctx, CategoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return category.NewTree(all), nil
}

// CategoryTree returns a snapshot of the whole hierarchy.
func (r *SQLiteRepository) CategoryTree(ctx context.Context) (*category.Tree, error) {
	return r.queries.loadTree(ctx)
}

// CreateCategory validates c against the current hierarchy and stores it.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	var out core.Category
	err := r.inTx(ctx, func(q *Queries) error {
		if c.ParentID != nil {
			tree, err := q.loadTree(ctx)
			if err != nil {
				return err
			}
			if err := tree.ValidateParent(c, *c.ParentID); err != nil {
				return err
			}
		}
		var err error
		out, err = q.InsertCategory(ctx, c, r.now())
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "category_id", out.ID, "type", out.Type)
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, f CategoryFilter) ([]core.Category, int, error) {
	items, err := r.queries.ListCategories(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	total, err := r.queries.CountCategories(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}
	return items, total, nil
}

// UpdateCategory validates the new parent and type of c against the stored
// hierarchy before writing.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	var out core.Category
	err := r.inTx(ctx, func(q *Queries) error {
		tree, err := q.loadTree(ctx)
		if err != nil {
			return err
		}
		current, ok := tree.Get(c.ID)
		if !ok {
			return core.ErrCategoryNotFound
		}
		if current.Type != c.Type {
			if err := tree.ValidateTypeChange(c.ID, c.Type); err != nil {
				return err
			}
		}
		if c.ParentID != nil {
			if err := tree.ValidateParent(c, *c.ParentID); err != nil {
				return err
			}
		}
		out, err = q.UpdateCategory(ctx, c, r.now())
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return out, nil
}

// DeleteCategory removes the category and everything below it. Transactions
// keep their rows with the category cleared; budgets of removed categories
// are deleted.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) (core.Category, error) {
	var (
		deleted core.Category
		ids     []int64
	)
	err := r.inTx(ctx, func(q *Queries) error {
		tree, err := q.loadTree(ctx)
		if err != nil {
			return err
		}
		c, ok := tree.Get(id)
		if !ok {
			return core.ErrCategoryNotFound
		}
		deleted = c
		ids = tree.CascadeSet(id)
		return q.DeleteCategories(ctx, ids)
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("delete category %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Category deleted", "category_id", id, "cascade", len(ids))
	return deleted, nil
}
