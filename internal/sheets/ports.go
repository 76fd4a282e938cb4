// Package sheets defines the snapshot export port and the row layout shared
// by its adapters.
package sheets

import (
	"context"
	"sort"

	"conti/internal/core"

	"github.com/shopspring/decimal"
)

type (
	// BalanceSnapshot is the portfolio total at one point in time.
	BalanceSnapshot struct {
		Date            core.Date
		DefaultCurrency core.Currency
		Total           decimal.Decimal
		Breakdown       map[core.Currency]decimal.Decimal
	}

	// BudgetRow is one budget of an exported month.
	BudgetRow struct {
		Year     int
		Month    int
		Category string
		Planned  decimal.Decimal
		Actual   decimal.Decimal
		Currency core.Currency
	}

	// SnapshotWriter stores exported snapshots.
	SnapshotWriter interface {
		WriteBalances(ctx context.Context, s BalanceSnapshot) error
		WriteBudgets(ctx context.Context, period core.Period, rows []BudgetRow) error
	}
)

// Values lays the snapshot out as one sheet row: date, default currency,
// total, then currency/amount pairs in currency order.
func (s BalanceSnapshot) Values() []any {
	out := []any{s.Date.String(), string(s.DefaultCurrency), core.RoundAmount(s.Total).StringFixed(core.AmountPlaces)}
	currencies := make([]core.Currency, 0, len(s.Breakdown))
	for c := range s.Breakdown {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })
	for _, c := range currencies {
		out = append(out, string(c), core.RoundAmount(s.Breakdown[c]).StringFixed(core.AmountPlaces))
	}
	return out
}

func (r BudgetRow) Values() []any {
	return []any{
		r.Year,
		r.Month,
		r.Category,
		core.RoundAmount(r.Planned).StringFixed(core.AmountPlaces),
		core.RoundAmount(r.Actual).StringFixed(core.AmountPlaces),
		string(r.Currency),
	}
}
