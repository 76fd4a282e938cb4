// Package rates holds the exchange-rate table: the Store contract, an
// in-memory implementation, batch import normalisation and the default seed.
package rates

import (
	"context"
	"sort"
	"sync"
	"time"

	"conti/internal/core"

	"github.com/shopspring/decimal"
)

// Store is the persistence contract of the rate table.
type Store interface {
	// ActiveRate returns the row in force for currency on day on.
	// USD never hits the table. Missing rows yield *core.RateNotFoundError.
	ActiveRate(ctx context.Context, currency core.Currency, on core.Date) (core.ExchangeRate, error)
	// ActiveRates returns every rate in force on day on, USD included.
	ActiveRates(ctx context.Context, on core.Date) (map[core.Currency]decimal.Decimal, error)
	// ImportRates stores every row or none of them.
	ImportRates(ctx context.Context, rows []core.ExchangeRate) (int, error)
	// ListRates returns stored rows, newest first.
	ListRates(ctx context.Context, filter Filter) ([]core.ExchangeRate, error)
}

// Filter narrows ListRates. Zero values mean no restriction.
type Filter struct {
	Currency core.Currency
	Limit    int
}

// USDRate is the synthetic row returned for the pivot currency.
func USDRate(on core.Date) core.ExchangeRate {
	return core.ExchangeRate{Currency: core.USD, RateToUSD: decimal.NewFromInt(1), EffectiveFrom: on}
}

// Check validates rows destined for storage. Stores call it before touching
// any state so a bad batch leaves the table unchanged.
func Check(rows []core.ExchangeRate) error {
	verr := &core.ValidationError{}
	for i, r := range rows {
		row := i + 1
		if !r.Currency.Supported() {
			verr.Add(row, "currency", "unsupported currency "+string(r.Currency))
		} else if r.Currency == core.USD {
			verr.Add(row, "currency", "USD is the pivot currency and has no stored rate")
		}
		if !r.RateToUSD.IsPositive() {
			verr.Add(row, "rate_to_usd", "must be greater than zero")
		}
		if r.EffectiveFrom.IsZero() {
			verr.Add(row, "effective_from", "is required")
		}
		if r.EffectiveTo != nil && r.EffectiveTo.Before(r.EffectiveFrom) {
			verr.Add(row, "effective_to", "must not precede effective_from")
		}
	}
	return verr.Err()
}

// Latest picks, per currency, the row in force on day on: the greatest
// effective_from, ties broken by the greatest id.
func Latest(rows []core.ExchangeRate, on core.Date) map[core.Currency]core.ExchangeRate {
	out := make(map[core.Currency]core.ExchangeRate)
	for _, r := range rows {
		if !r.ActiveOn(on) {
			continue
		}
		cur, ok := out[r.Currency]
		if !ok || cur.EffectiveFrom.Before(r.EffectiveFrom) ||
			(cur.EffectiveFrom.Equal(r.EffectiveFrom.Time) && r.ID > cur.ID) {
			out[r.Currency] = r
		}
	}
	return out
}

// MemoryStore keeps the rate table in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   []core.ExchangeRate
	nextID int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) ActiveRate(_ context.Context, currency core.Currency, on core.Date) (core.ExchangeRate, error) {
	if currency == core.USD {
		return USDRate(on), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := Latest(s.rows, on)[currency]
	if !ok {
		return core.ExchangeRate{}, &core.RateNotFoundError{Currency: currency}
	}
	return r, nil
}

func (s *MemoryStore) ActiveRates(_ context.Context, on core.Date) (map[core.Currency]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[core.Currency]decimal.Decimal{core.USD: decimal.NewFromInt(1)}
	for c, r := range Latest(s.rows, on) {
		out[c] = r.RateToUSD
	}
	return out, nil
}

func (s *MemoryStore) ImportRates(_ context.Context, rows []core.ExchangeRate) (int, error) {
	if err := Check(rows); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, r := range rows {
		r.ID = s.nextID
		s.nextID++
		r.CreatedAt = now
		s.rows = append(s.rows, r)
	}
	return len(rows), nil
}

func (s *MemoryStore) ListRates(_ context.Context, filter Filter) ([]core.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ExchangeRate, 0, len(s.rows))
	for _, r := range s.rows {
		if filter.Currency != "" && r.Currency != filter.Currency {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveFrom.Equal(out[j].EffectiveFrom.Time) {
			return out[j].EffectiveFrom.Before(out[i].EffectiveFrom)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
