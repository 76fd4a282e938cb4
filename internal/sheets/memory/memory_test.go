package memory

import (
	"context"
	"testing"

	"conti/internal/core"
	ports "conti/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Balances(t *testing.T) {
	s := New()
	snap := ports.BalanceSnapshot{Date: core.NewDate(2024, 6, 1), DefaultCurrency: core.USD, Total: decimal.NewFromInt(10)}

	require.NoError(t, s.WriteBalances(context.Background(), snap))
	require.NoError(t, s.WriteBalances(context.Background(), snap))

	got := s.Balances()
	assert.Len(t, got, 2)
	got[0].Total = decimal.Zero
	assert.True(t, s.Balances()[0].Total.Equal(decimal.NewFromInt(10)), "returned slice is a copy")
}

func TestStore_BudgetsReplacePeriod(t *testing.T) {
	s := New()
	june := core.Period{Year: 2024, Month: 6}
	ctx := context.Background()

	require.NoError(t, s.WriteBudgets(ctx, june, []ports.BudgetRow{{Category: "Food"}, {Category: "Rent"}}))
	require.NoError(t, s.WriteBudgets(ctx, june, []ports.BudgetRow{{Category: "Food"}}))

	assert.Len(t, s.Budgets(june), 1)
	assert.Empty(t, s.Budgets(core.Period{Year: 2024, Month: 7}))
}
