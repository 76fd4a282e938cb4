// Package memory keeps exported snapshots in process memory. It backs the
// worker when no spreadsheet is configured, and tests.
package memory

import (
	"context"
	"sync"

	"conti/internal/core"
	ports "conti/internal/sheets"
)

type Store struct {
	mu       sync.Mutex
	balances []ports.BalanceSnapshot
	budgets  map[core.Period][]ports.BudgetRow
}

var _ ports.SnapshotWriter = (*Store)(nil)

func New() *Store {
	return &Store{budgets: make(map[core.Period][]ports.BudgetRow)}
}

// WriteBalances appends the snapshot.
func (s *Store) WriteBalances(_ context.Context, snap ports.BalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append(s.balances, snap)
	return nil
}

// WriteBudgets replaces the rows stored for period.
func (s *Store) WriteBudgets(_ context.Context, period core.Period, rows []ports.BudgetRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[period] = append([]ports.BudgetRow(nil), rows...)
	return nil
}

func (s *Store) Balances() []ports.BalanceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.BalanceSnapshot(nil), s.balances...)
}

func (s *Store) Budgets(period core.Period) []ports.BudgetRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.BudgetRow(nil), s.budgets[period]...)
}
