// Package budget derives actual spending and income for monthly budgets.
package budget

import (
	"conti/internal/core"
	"conti/internal/fx"

	"github.com/shopspring/decimal"
)

// Actual is the realised amount for a budget, in the budget's currency.
// Unconverted counts transactions whose native amount was added because no
// rate was available.
type Actual struct {
	Amount      decimal.Decimal
	Unconverted int
}

// View pairs a budget with its category type and computed actual.
type View struct {
	Budget       core.Budget
	CategoryName string
	Kind         core.CategoryType
	Actual       Actual
}

// Summary aggregates a month of budgets in one reporting currency.
type Summary struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	Currency        core.Currency   `json:"currency"`
	TotalPlanned    decimal.Decimal `json:"total_planned"`
	TotalActual     decimal.Decimal `json:"total_actual"`
	IncomePlanned   decimal.Decimal `json:"income_planned"`
	IncomeActual    decimal.Decimal `json:"income_actual"`
	ExpensePlanned  decimal.Decimal `json:"expense_planned"`
	ExpenseActual   decimal.Decimal `json:"expense_actual"`
	CategoriesCount int             `json:"categories_count"`
}

// Counts reports whether a signed transaction amount belongs to a budget of
// the given kind.
func Counts(kind core.CategoryType, amount decimal.Decimal) bool {
	switch kind {
	case core.Expense:
		return amount.IsNegative()
	case core.Income:
		return amount.IsPositive()
	}
	return false
}

// Compute sums the transactions that fall inside b's month, belong to one of
// categoryIDs and match kind. Each counted amount is taken in absolute value
// and converted into the budget currency.
func Compute(b core.Budget, kind core.CategoryType, categoryIDs map[int64]bool, txns []core.Transaction, conv fx.Converter) Actual {
	period := core.Period{Year: b.Year, Month: b.Month}
	out := Actual{Amount: decimal.Zero}

	for _, tx := range txns {
		if tx.CategoryID == nil || !categoryIDs[*tx.CategoryID] {
			continue
		}
		if !period.Contains(tx.Date) || !Counts(kind, tx.Amount) {
			continue
		}
		abs := tx.Amount.Abs()
		amount, ok := fx.AmountOr(conv.Outcome(abs, tx.Currency, b.Currency), abs)
		if !ok {
			out.Unconverted++
		}
		out.Amount = out.Amount.Add(amount)
	}
	return out
}

// Summarize totals planned and actual amounts across views in the reporting
// currency, partitioned by category type. Amounts that cannot be converted
// contribute their native value.
func Summarize(period core.Period, views []View, reporting core.Currency, conv fx.Converter) Summary {
	s := Summary{
		Year:            period.Year,
		Month:           period.Month,
		Currency:        reporting,
		TotalPlanned:    decimal.Zero,
		TotalActual:     decimal.Zero,
		IncomePlanned:   decimal.Zero,
		IncomeActual:    decimal.Zero,
		ExpensePlanned:  decimal.Zero,
		ExpenseActual:   decimal.Zero,
		CategoriesCount: len(views),
	}

	for _, v := range views {
		planned, _ := fx.AmountOr(conv.Outcome(v.Budget.PlannedAmount, v.Budget.Currency, reporting), v.Budget.PlannedAmount)
		actual, _ := fx.AmountOr(conv.Outcome(v.Actual.Amount, v.Budget.Currency, reporting), v.Actual.Amount)

		s.TotalPlanned = s.TotalPlanned.Add(planned)
		s.TotalActual = s.TotalActual.Add(actual)
		switch v.Kind {
		case core.Income:
			s.IncomePlanned = s.IncomePlanned.Add(planned)
			s.IncomeActual = s.IncomeActual.Add(actual)
		case core.Expense:
			s.ExpensePlanned = s.ExpensePlanned.Add(planned)
			s.ExpenseActual = s.ExpenseActual.Add(actual)
		}
	}
	return s
}
