package services

import (
	"context"
	"fmt"

	"conti/internal/amqp"
	"conti/internal/budget"
	"conti/internal/category"
	"conti/internal/core"
	"conti/internal/fx"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
)

type BudgetStore interface {
	CategoryTree(ctx context.Context) (*category.Tree, error)
	TransactionsInPeriod(ctx context.Context, p core.Period) ([]core.Transaction, error)
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, id int64) (core.Budget, error)
	ListBudgets(ctx context.Context, f storage.BudgetFilter) ([]core.Budget, int, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, id int64) (core.Budget, error)
}

// NewBudget plans an amount for a category and month. An empty Currency
// means the settings default currency.
type NewBudget struct {
	Year          int
	Month         int
	CategoryID    int64
	PlannedAmount decimal.Decimal
	Currency      core.Currency
}

type BudgetUpdate struct {
	Year          *int
	Month         *int
	CategoryID    *int64
	PlannedAmount *decimal.Decimal
	Currency      *core.Currency
}

// BudgetList is one page of budgets. Summary covers every budget of the
// month and is only set when the filter names both year and month.
type BudgetList struct {
	Items   []budget.View
	Total   int
	Summary *budget.Summary
}

type BudgetService struct {
	store    BudgetStore
	settings *SettingsService
	rates    *RateService
	events
}

func NewBudgetService(store BudgetStore, settings *SettingsService, rates *RateService, pub Publisher) *BudgetService {
	return &BudgetService{store: store, settings: settings, rates: rates, events: events{pub: pub}}
}

func (s *BudgetService) Create(ctx context.Context, in NewBudget) (budget.View, error) {
	b := core.Budget{
		Year:          in.Year,
		Month:         in.Month,
		CategoryID:    in.CategoryID,
		PlannedAmount: core.RoundAmount(in.PlannedAmount),
		Currency:      in.Currency,
	}
	if b.Currency == "" {
		c, err := s.settings.DefaultCurrency(ctx)
		if err != nil {
			return budget.View{}, err
		}
		b.Currency = c
	}
	if err := b.Validate(); err != nil {
		return budget.View{}, err
	}

	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return budget.View{}, err
	}
	s.publish(ctx, budgetEvent(amqp.EventCreated, created))
	return s.view(ctx, created)
}

// Get returns the budget with its actual amount.
func (s *BudgetService) Get(ctx context.Context, id int64) (budget.View, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return budget.View{}, err
	}
	return s.view(ctx, b)
}

func (s *BudgetService) List(ctx context.Context, f storage.BudgetFilter) (BudgetList, error) {
	items, total, err := s.store.ListBudgets(ctx, f)
	if err != nil {
		return BudgetList{}, fmt.Errorf("list budgets: %w", err)
	}
	calc, err := s.calculator(ctx)
	if err != nil {
		return BudgetList{}, err
	}
	views, err := calc.views(ctx, items)
	if err != nil {
		return BudgetList{}, err
	}
	out := BudgetList{Items: views, Total: total}

	if f.Year > 0 && f.Month > 0 {
		period := core.Period{Year: f.Year, Month: f.Month}
		if err := period.Validate(); err != nil {
			return BudgetList{}, err
		}
		summary, err := s.summarize(ctx, calc, period)
		if err != nil {
			return BudgetList{}, err
		}
		out.Summary = &summary
	}
	return out, nil
}

// Summary totals every budget of the month in the default currency.
func (s *BudgetService) Summary(ctx context.Context, period core.Period) (budget.Summary, error) {
	if err := period.Validate(); err != nil {
		return budget.Summary{}, err
	}
	calc, err := s.calculator(ctx)
	if err != nil {
		return budget.Summary{}, err
	}
	return s.summarize(ctx, calc, period)
}

// Views returns every budget of the month with its actual amount.
func (s *BudgetService) Views(ctx context.Context, period core.Period) ([]budget.View, error) {
	all, _, err := s.store.ListBudgets(ctx, storage.BudgetFilter{Year: period.Year, Month: period.Month})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	calc, err := s.calculator(ctx)
	if err != nil {
		return nil, err
	}
	return calc.views(ctx, all)
}

func (s *BudgetService) summarize(ctx context.Context, calc *actuals, period core.Period) (budget.Summary, error) {
	all, _, err := s.store.ListBudgets(ctx, storage.BudgetFilter{Year: period.Year, Month: period.Month})
	if err != nil {
		return budget.Summary{}, fmt.Errorf("list budgets: %w", err)
	}
	views, err := calc.views(ctx, all)
	if err != nil {
		return budget.Summary{}, err
	}
	reporting, err := s.settings.DefaultCurrency(ctx)
	if err != nil {
		return budget.Summary{}, err
	}
	return budget.Summarize(period, views, reporting, calc.conv), nil
}

func (s *BudgetService) Update(ctx context.Context, id int64, u BudgetUpdate) (budget.View, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return budget.View{}, err
	}
	prevYear, prevMonth := b.Year, b.Month
	if u.Year != nil {
		b.Year = *u.Year
	}
	if u.Month != nil {
		b.Month = *u.Month
	}
	if u.CategoryID != nil {
		b.CategoryID = *u.CategoryID
	}
	if u.PlannedAmount != nil {
		b.PlannedAmount = core.RoundAmount(*u.PlannedAmount)
	}
	if u.Currency != nil {
		b.Currency = *u.Currency
	}
	if err := b.Validate(); err != nil {
		return budget.View{}, err
	}

	out, err := s.store.UpdateBudget(ctx, b)
	if err != nil {
		return budget.View{}, err
	}
	s.publish(ctx, budgetEvent(amqp.EventUpdated, out).MovedFrom(prevYear, prevMonth))
	return s.view(ctx, out)
}

func (s *BudgetService) Delete(ctx context.Context, id int64) error {
	old, err := s.store.DeleteBudget(ctx, id)
	if err != nil {
		return err
	}
	s.publish(ctx, budgetEvent(amqp.EventDeleted, old))
	return nil
}

func (s *BudgetService) view(ctx context.Context, b core.Budget) (budget.View, error) {
	calc, err := s.calculator(ctx)
	if err != nil {
		return budget.View{}, err
	}
	views, err := calc.views(ctx, []core.Budget{b})
	if err != nil {
		return budget.View{}, err
	}
	return views[0], nil
}

// actuals computes budget views against one category snapshot and one rate
// snapshot, loading each month's transactions once.
type actuals struct {
	store   BudgetStore
	tree    *category.Tree
	conv    fx.Converter
	periods map[core.Period][]core.Transaction
}

func (s *BudgetService) calculator(ctx context.Context) (*actuals, error) {
	tree, err := s.store.CategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := s.rates.Converter(ctx)
	if err != nil {
		return nil, err
	}
	return &actuals{
		store:   s.store,
		tree:    tree,
		conv:    conv,
		periods: make(map[core.Period][]core.Transaction),
	}, nil
}

func (a *actuals) views(ctx context.Context, budgets []core.Budget) ([]budget.View, error) {
	out := make([]budget.View, 0, len(budgets))
	for _, b := range budgets {
		period := core.Period{Year: b.Year, Month: b.Month}
		txns, ok := a.periods[period]
		if !ok {
			var err error
			if txns, err = a.store.TransactionsInPeriod(ctx, period); err != nil {
				return nil, err
			}
			a.periods[period] = txns
		}

		v := budget.View{Budget: b, Actual: budget.Actual{Amount: decimal.Zero}}
		if cat, ok := a.tree.Get(b.CategoryID); ok {
			v.CategoryName = cat.Name
			v.Kind = cat.Type
			v.Actual = budget.Compute(b, cat.Type, a.tree.Descendants(b.CategoryID), txns, a.conv)
		}
		out = append(out, v)
	}
	return out, nil
}

func budgetEvent(event amqp.EventType, b core.Budget) *amqp.LedgerEvent {
	return amqp.NewLedgerEvent(event, amqp.EntityBudget, b.ID).InPeriod(b.Year, b.Month)
}
