package budget

import (
	"testing"

	"conti/internal/core"
	"conti/internal/fx"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func id(v int64) *int64 { return &v }

func tx(amount string, c core.Currency, cat *int64, date core.Date) core.Transaction {
	return core.Transaction{AccountID: 1, Amount: dec(amount), Currency: c, CategoryID: cat, Date: date}
}

var conv = fx.NewConverter(fx.Table{core.EUR: dec("1.10")})

func TestCompute(t *testing.T) {
	march := func(day int) core.Date { return core.NewDate(2024, 3, day) }
	groceries := core.Budget{Year: 2024, Month: 3, CategoryID: 10, PlannedAmount: dec("500"), Currency: core.EUR}
	salary := core.Budget{Year: 2024, Month: 3, CategoryID: 20, PlannedAmount: dec("3000"), Currency: core.EUR}
	cats := map[int64]bool{10: true, 11: true}

	tests := []struct {
		name            string
		budget          core.Budget
		kind            core.CategoryType
		categories      map[int64]bool
		txns            []core.Transaction
		wantAmount      string
		wantUnconverted int
	}{
		{
			name:       "no transactions",
			budget:     groceries,
			kind:       core.Expense,
			categories: cats,
			wantAmount: "0",
		},
		{
			name:       "expense counts negatives in absolute value",
			budget:     groceries,
			kind:       core.Expense,
			categories: cats,
			txns: []core.Transaction{
				tx("-120.50", core.EUR, id(10), march(3)),
				tx("-30", core.EUR, id(10), march(20)),
			},
			wantAmount: "150.50",
		},
		{
			name:       "child category counts and income is ignored",
			budget:     groceries,
			kind:       core.Expense,
			categories: cats,
			txns: []core.Transaction{
				tx("-40", core.EUR, id(11), march(5)),
				tx("25", core.EUR, id(10), march(6)),
			},
			wantAmount: "40",
		},
		{
			name:       "other months and categories are ignored",
			budget:     groceries,
			kind:       core.Expense,
			categories: cats,
			txns: []core.Transaction{
				tx("-40", core.EUR, id(10), core.NewDate(2024, 2, 29)),
				tx("-40", core.EUR, id(10), core.NewDate(2023, 3, 10)),
				tx("-40", core.EUR, id(99), march(10)),
				tx("-40", core.EUR, nil, march(10)),
			},
			wantAmount: "0",
		},
		{
			name:       "income counts positives",
			budget:     salary,
			kind:       core.Income,
			categories: map[int64]bool{20: true},
			txns: []core.Transaction{
				tx("2800", core.EUR, id(20), march(1)),
				tx("-100", core.EUR, id(20), march(2)),
			},
			wantAmount: "2800",
		},
		{
			name:       "foreign transactions are converted",
			budget:     groceries,
			kind:       core.Expense,
			categories: cats,
			txns: []core.Transaction{
				tx("-110", core.USD, id(10), march(7)),
			},
			wantAmount: "100",
		},
		{
			name:       "missing rate falls back to native amount",
			budget:     groceries,
			kind:       core.Expense,
			categories: cats,
			txns: []core.Transaction{
				tx("-10", core.EUR, id(10), march(7)),
				tx("-50", core.CHF, id(10), march(8)),
			},
			wantAmount:      "60",
			wantUnconverted: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.budget, tt.kind, tt.categories, tt.txns, conv)
			assert.True(t, got.Amount.Equal(dec(tt.wantAmount)), "got %s want %s", got.Amount, tt.wantAmount)
			assert.Equal(t, tt.wantUnconverted, got.Unconverted)
		})
	}
}

func TestSummarize(t *testing.T) {
	views := []View{
		{
			Budget: core.Budget{CategoryID: 1, PlannedAmount: dec("500"), Currency: core.EUR},
			Kind:   core.Expense,
			Actual: Actual{Amount: dec("400")},
		},
		{
			Budget: core.Budget{CategoryID: 2, PlannedAmount: dec("100"), Currency: core.USD},
			Kind:   core.Expense,
			Actual: Actual{Amount: dec("20")},
		},
		{
			Budget: core.Budget{CategoryID: 3, PlannedAmount: dec("3000"), Currency: core.USD},
			Kind:   core.Income,
			Actual: Actual{Amount: dec("3100")},
		},
	}

	s := Summarize(core.Period{Year: 2024, Month: 3}, views, core.USD, conv)

	assert.Equal(t, 2024, s.Year)
	assert.Equal(t, 3, s.Month)
	assert.Equal(t, core.USD, s.Currency)
	assert.Equal(t, 3, s.CategoriesCount)
	assert.True(t, s.ExpensePlanned.Equal(dec("650")), "expense planned %s", s.ExpensePlanned)
	assert.True(t, s.ExpenseActual.Equal(dec("460")), "expense actual %s", s.ExpenseActual)
	assert.True(t, s.IncomePlanned.Equal(dec("3000")))
	assert.True(t, s.IncomeActual.Equal(dec("3100")))
	assert.True(t, s.TotalPlanned.Equal(dec("3650")))
	assert.True(t, s.TotalActual.Equal(dec("3560")))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(core.Period{Year: 2024, Month: 1}, nil, core.EUR, conv)

	assert.Zero(t, s.CategoriesCount)
	assert.True(t, s.TotalPlanned.IsZero())
	assert.True(t, s.TotalActual.IsZero())
}
