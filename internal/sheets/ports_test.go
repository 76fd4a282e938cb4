package sheets

import (
	"testing"

	"conti/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBalanceSnapshot_Values(t *testing.T) {
	snap := BalanceSnapshot{
		Date:            core.NewDate(2024, 6, 15),
		DefaultCurrency: core.USD,
		Total:           decimal.RequireFromString("210.004"),
		Breakdown: map[core.Currency]decimal.Decimal{
			core.USD: decimal.NewFromInt(100),
			core.EUR: decimal.RequireFromString("100.5"),
		},
	}

	assert.Equal(t, []any{"2024-06-15", "USD", "210.00", "EUR", "100.50", "USD", "100.00"}, snap.Values())
}

func TestBudgetRow_Values(t *testing.T) {
	row := BudgetRow{
		Year: 2024, Month: 6, Category: "Food",
		Planned: decimal.NewFromInt(300), Actual: decimal.RequireFromString("70.126"),
		Currency: core.EUR,
	}
	assert.Equal(t, []any{2024, 6, "Food", "300.00", "70.13", "EUR"}, row.Values())
}
