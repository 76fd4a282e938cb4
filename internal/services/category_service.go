package services

import (
	"context"
	"fmt"
	"strings"

	"conti/internal/amqp"
	"conti/internal/category"
	"conti/internal/core"
	"conti/internal/storage"
)

type CategoryStore interface {
	CategoryTree(ctx context.Context) (*category.Tree, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context, f storage.CategoryFilter) ([]core.Category, int, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) (core.Category, error)
}

type NewCategory struct {
	Name        string
	Description string
	Type        core.CategoryType
	ParentID    *int64
}

// CategoryUpdate is a partial update. ClearParent moves the category to the
// top level and wins over ParentID.
type CategoryUpdate struct {
	Name        *string
	Description *string
	Type        *core.CategoryType
	ParentID    *int64
	ClearParent bool
}

type CategoryService struct {
	store CategoryStore
	events
}

func NewCategoryService(store CategoryStore, pub Publisher) *CategoryService {
	return &CategoryService{store: store, events: events{pub: pub}}
}

func (s *CategoryService) Create(ctx context.Context, in NewCategory) (core.Category, error) {
	c := core.Category{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		ParentID:    in.ParentID,
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventCreated, amqp.EntityCategory, created.ID))
	return created, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) List(ctx context.Context, f storage.CategoryFilter) ([]core.Category, int, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, core.ErrInvalidCategoryType
	}
	items, total, err := s.store.ListCategories(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return items, total, nil
}

// Hierarchy returns the top-level categories with their children, optionally
// restricted to one type.
func (s *CategoryService) Hierarchy(ctx context.Context, kind *core.CategoryType) ([]category.Node, error) {
	if kind != nil && !kind.Valid() {
		return nil, core.ErrInvalidCategoryType
	}
	tree, err := s.store.CategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Hierarchy(kind), nil
}

func (s *CategoryService) Update(ctx context.Context, id int64, u CategoryUpdate) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if u.Name != nil {
		c.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		c.Description = strings.TrimSpace(*u.Description)
	}
	if u.Type != nil {
		c.Type = *u.Type
	}
	switch {
	case u.ClearParent:
		c.ParentID = nil
	case u.ParentID != nil:
		c.ParentID = u.ParentID
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	out, err := s.store.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventUpdated, amqp.EntityCategory, id))
	return out, nil
}

// Delete removes the category, its children and their budgets.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if _, err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventDeleted, amqp.EntityCategory, id))
	return nil
}
