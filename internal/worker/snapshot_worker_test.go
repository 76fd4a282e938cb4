package worker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"conti/internal/amqp"
	"conti/internal/budget"
	"conti/internal/core"
	"conti/internal/portfolio"
	"conti/internal/services"
	"conti/internal/sheets/memory"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBalances struct {
	total portfolio.TotalBalance
	err   error
	calls int
}

func (f *fakeBalances) TotalBalance(context.Context) (portfolio.TotalBalance, error) {
	f.calls++
	return f.total, f.err
}

type fakeBudgets struct {
	views   []budget.View
	periods []core.Period
}

func (f *fakeBudgets) Views(_ context.Context, p core.Period) ([]budget.View, error) {
	f.periods = append(f.periods, p)
	return f.views, nil
}

func newTestWorker() (*SnapshotWorker, *fakeBalances, *fakeBudgets, *memory.Store) {
	balances := &fakeBalances{total: portfolio.TotalBalance{
		TotalBalance:      decimal.NewFromInt(210),
		DefaultCurrency:   core.USD,
		CurrencyBreakdown: map[core.Currency]decimal.Decimal{core.EUR: decimal.NewFromInt(100), core.USD: decimal.NewFromInt(100)},
	}}
	budgets := &fakeBudgets{views: []budget.View{{
		Budget:       core.Budget{Year: 2024, Month: 5, PlannedAmount: decimal.NewFromInt(300), Currency: core.EUR},
		CategoryName: "Food",
		Kind:         core.Expense,
		Actual:       budget.Actual{Amount: decimal.NewFromInt(70)},
	}}}
	store := memory.New()
	w := NewSnapshotWorker(balances, budgets, store)
	w.today = func() core.Date { return core.NewDate(2024, 6, 15) }
	return w, balances, budgets, store
}

func TestHandleEvent_Routing(t *testing.T) {
	tests := []struct {
		name         string
		msg          *amqp.LedgerEvent
		wantBalances int
		wantPeriods  []core.Period
	}{
		{
			name:         "transaction touches both, in its own month",
			msg:          amqp.NewLedgerEvent(amqp.EventCreated, amqp.EntityTransaction, 1).InPeriod(2024, 5),
			wantBalances: 1,
			wantPeriods:  []core.Period{{Year: 2024, Month: 5}},
		},
		{
			name:         "transfer touches balances only",
			msg:          amqp.NewLedgerEvent(amqp.EventDeleted, amqp.EntityTransfer, 2),
			wantBalances: 1,
		},
		{
			name:         "moved transaction re-exports the month it left",
			msg:          amqp.NewLedgerEvent(amqp.EventUpdated, amqp.EntityTransaction, 1).InPeriod(2024, 6).MovedFrom(2024, 5),
			wantBalances: 1,
			wantPeriods:  []core.Period{{Year: 2024, Month: 6}, {Year: 2024, Month: 5}},
		},
		{
			name:        "budget kept in its month exports once",
			msg:         amqp.NewLedgerEvent(amqp.EventUpdated, amqp.EntityBudget, 4).InPeriod(2024, 5).MovedFrom(2024, 5),
			wantPeriods: []core.Period{{Year: 2024, Month: 5}},
		},
		{
			name:        "category defaults to the current month",
			msg:         amqp.NewLedgerEvent(amqp.EventUpdated, amqp.EntityCategory, 3),
			wantPeriods: []core.Period{{Year: 2024, Month: 6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, balances, budgets, _ := newTestWorker()
			require.NoError(t, w.HandleEvent(context.Background(), tt.msg))
			assert.Equal(t, tt.wantBalances, balances.calls)
			assert.Equal(t, tt.wantPeriods, budgets.periods)
		})
	}
}

func TestHandleEvent_DropsRatesForRateAndSettingsEvents(t *testing.T) {
	tests := []struct {
		entity amqp.Entity
		want   int
	}{
		{amqp.EntityRate, 1},
		{amqp.EntitySettings, 1},
		{amqp.EntityTransaction, 0},
		{amqp.EntityAccount, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			w, _, _, _ := newTestWorker()
			dropped := 0
			w.DropRatesOn(func() { dropped++ })

			require.NoError(t, w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventUpdated, tt.entity, 0)))
			assert.Equal(t, tt.want, dropped)
		})
	}
}

// The API process imports rates into the shared database; the worker's own
// cached snapshot must not hide them from the export the event triggers.
func TestHandleEvent_RateImportExportsNewRates(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "conti.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	apiRates := services.NewRateService(repo, nil, nil)
	workerRates := services.NewRateService(repo, nil, nil)
	settings := services.NewSettingsService(repo, nil)
	accounts := services.NewAccountService(repo, settings, workerRates, nil)
	budgets := services.NewBudgetService(repo, settings, workerRates, nil)

	_, err = apiRates.ImportJSON(ctx, strings.NewReader(
		`[{"currency_from":"EUR","currency_to":"USD","rate":"1.10","effective_from":"2020-01-01"}]`))
	require.NoError(t, err)
	_, err = accounts.Create(ctx, services.NewAccount{Name: "Savings", Currency: core.EUR, Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	out := memory.New()
	w := NewSnapshotWorker(accounts, budgets, out)
	w.DropRatesOn(workerRates.Snapshots().Clear)

	require.NoError(t, w.ExportBalances(ctx))
	require.Len(t, out.Balances(), 1)
	assert.True(t, out.Balances()[0].Total.Equal(decimal.NewFromInt(110)), "got %s", out.Balances()[0].Total)

	_, err = apiRates.ImportJSON(ctx, strings.NewReader(
		`[{"currency_from":"EUR","currency_to":"USD","rate":"2.00","effective_from":"2021-01-01"}]`))
	require.NoError(t, err)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventImported, amqp.EntityRate, 0).WithCount(1)))
	snaps := out.Balances()
	require.Len(t, snaps, 2)
	assert.True(t, snaps[1].Total.Equal(decimal.NewFromInt(200)), "got %s", snaps[1].Total)
}

func TestExportAll_WritesSnapshots(t *testing.T) {
	w, _, _, store := newTestWorker()

	require.NoError(t, w.ExportAll(context.Background()))

	snaps := store.Balances()
	require.Len(t, snaps, 1)
	assert.Equal(t, core.NewDate(2024, 6, 15), snaps[0].Date)
	assert.True(t, snaps[0].Total.Equal(decimal.NewFromInt(210)))

	rows := store.Budgets(core.Period{Year: 2024, Month: 6})
	require.Len(t, rows, 1)
	assert.Equal(t, "Food", rows[0].Category)
	assert.True(t, rows[0].Actual.Equal(decimal.NewFromInt(70)))
}

func TestHandleEvent_ReportsFailures(t *testing.T) {
	w, balances, budgets, _ := newTestWorker()
	balances.err = errors.New("db locked")

	err := w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventCreated, amqp.EntityTransaction, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
	assert.Len(t, budgets.periods, 1, "budget export still runs")
}

func TestRunPeriodic_StopsOnCancel(t *testing.T) {
	w, balances, _, _ := newTestWorker()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.RunPeriodic(ctx, time.Hour) }()

	require.Eventually(t, func() bool { return store(w).Balances() != nil }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop")
	}
	assert.GreaterOrEqual(t, balances.calls, 1)
}

func store(w *SnapshotWorker) *memory.Store {
	return w.writer.(*memory.Store)
}
