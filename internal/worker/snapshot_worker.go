// Package worker exports balance and budget snapshots when the ledger
// changes, and on a fixed interval.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/budget"
	"conti/internal/core"
	"conti/internal/portfolio"
	"conti/internal/sheets"
)

type (
	Balances interface {
		TotalBalance(ctx context.Context) (portfolio.TotalBalance, error)
	}

	Budgets interface {
		Views(ctx context.Context, period core.Period) ([]budget.View, error)
	}
)

// SnapshotWorker writes snapshots through a sheets.SnapshotWriter.
type SnapshotWorker struct {
	balances Balances
	budgets  Budgets
	writer   sheets.SnapshotWriter
	today    func() core.Date

	// dropRates forgets cached rate snapshots; nil when nothing is cached.
	dropRates func()
}

func NewSnapshotWorker(balances Balances, budgets Budgets, writer sheets.SnapshotWriter) *SnapshotWorker {
	return &SnapshotWorker{
		balances: balances,
		budgets:  budgets,
		writer:   writer,
		today:    core.Today,
	}
}

// DropRatesOn registers the function that clears cached rate snapshots.
// It runs before exporting for rate and settings events, which are written
// by another process.
func (w *SnapshotWorker) DropRatesOn(fn func()) {
	w.dropRates = fn
}

// HandleEvent exports whatever the event can have changed. Budget snapshots
// cover the event's month, or the current month when it carries none, and
// also the month an updated entity moved out of.
func (w *SnapshotWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", msg.EventID,
		"event", msg.Event,
		"entity", msg.Entity,
		"entity_id", msg.ID)

	if w.dropRates != nil && (msg.Entity == amqp.EntityRate || msg.Entity == amqp.EntitySettings) {
		w.dropRates()
	}

	periods := []core.Period{core.PeriodOf(w.today())}
	if msg.Year > 0 && msg.Month > 0 {
		periods[0] = core.Period{Year: msg.Year, Month: msg.Month}
	}
	if msg.PrevYear > 0 && msg.PrevMonth > 0 {
		periods = append(periods, core.Period{Year: msg.PrevYear, Month: msg.PrevMonth})
	}

	var errs []error
	if affectsBalances(msg.Entity) {
		if err := w.ExportBalances(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if affectsBudgets(msg.Entity) {
		for _, period := range periods {
			if err := w.ExportBudgets(ctx, period); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func affectsBalances(e amqp.Entity) bool {
	switch e {
	case amqp.EntityAccount, amqp.EntityTransaction, amqp.EntityTransfer, amqp.EntityRate, amqp.EntitySettings:
		return true
	}
	return false
}

func affectsBudgets(e amqp.Entity) bool {
	switch e {
	case amqp.EntityTransaction, amqp.EntityBudget, amqp.EntityCategory, amqp.EntityRate, amqp.EntitySettings:
		return true
	}
	return false
}

// ExportBalances writes today's total balance.
func (w *SnapshotWorker) ExportBalances(ctx context.Context) error {
	total, err := w.balances.TotalBalance(ctx)
	if err != nil {
		return fmt.Errorf("total balance: %w", err)
	}
	if len(total.Skipped) > 0 {
		slog.WarnContext(ctx, "Accounts left out of the balance snapshot for missing rates",
			"currencies", total.Skipped)
	}
	snap := sheets.BalanceSnapshot{
		Date:            w.today(),
		DefaultCurrency: total.DefaultCurrency,
		Total:           total.TotalBalance,
		Breakdown:       total.CurrencyBreakdown,
	}
	if err := w.writer.WriteBalances(ctx, snap); err != nil {
		return fmt.Errorf("write balances: %w", err)
	}
	return nil
}

// ExportBudgets writes every budget of period with its actual amount.
func (w *SnapshotWorker) ExportBudgets(ctx context.Context, period core.Period) error {
	views, err := w.budgets.Views(ctx, period)
	if err != nil {
		return fmt.Errorf("budget views %d-%02d: %w", period.Year, period.Month, err)
	}
	rows := make([]sheets.BudgetRow, len(views))
	for i, v := range views {
		rows[i] = sheets.BudgetRow{
			Year:     v.Budget.Year,
			Month:    v.Budget.Month,
			Category: v.CategoryName,
			Planned:  v.Budget.PlannedAmount,
			Actual:   v.Actual.Amount,
			Currency: v.Budget.Currency,
		}
	}
	if err := w.writer.WriteBudgets(ctx, period, rows); err != nil {
		return fmt.Errorf("write budgets: %w", err)
	}
	return nil
}

// ExportAll writes balances and the current month's budgets.
func (w *SnapshotWorker) ExportAll(ctx context.Context) error {
	return errors.Join(
		w.ExportBalances(ctx),
		w.ExportBudgets(ctx, core.PeriodOf(w.today())),
	)
}

// RunPeriodic exports once immediately and then every interval until ctx is
// done. Export failures are logged and do not stop the loop.
func (w *SnapshotWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	w.exportLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.exportLogged(ctx)
		}
	}
}

func (w *SnapshotWorker) exportLogged(ctx context.Context) {
	start := time.Now()
	if err := w.ExportAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic export failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Periodic export completed", "duration_ms", time.Since(start).Milliseconds())
}
