package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/fx"
	"conti/internal/rates"
)

const (
	defaultSnapshotTTL  = 5 * time.Minute
	defaultSnapshotDays = 8
)

// RateService reads and imports exchange rates and hands out converters
// over cached per-day snapshots of the active rates.
type RateService struct {
	store     rates.Store
	snapshots *cache.LRUCache[fx.Table]
	today     func() core.Date
	events
}

// NewRateService wires the service. A nil snapshots cache gets a default
// one with a five minute TTL.
func NewRateService(store rates.Store, snapshots *cache.LRUCache[fx.Table], pub Publisher) *RateService {
	if snapshots == nil {
		snapshots = cache.NewLRUCache[fx.Table](defaultSnapshotDays, defaultSnapshotTTL)
	}
	return &RateService{
		store:     store,
		snapshots: snapshots,
		today:     core.Today,
		events:    events{pub: pub},
	}
}

// Snapshots exposes the cache so it can be registered for cleanup.
func (s *RateService) Snapshots() *cache.LRUCache[fx.Table] {
	return s.snapshots
}

// Table returns the active rates on day on, USD included.
func (s *RateService) Table(ctx context.Context, on core.Date) (fx.Table, error) {
	return s.snapshots.GetOrLoad(on.String(), func() (fx.Table, error) {
		active, err := s.store.ActiveRates(ctx, on)
		if err != nil {
			return nil, fmt.Errorf("load active rates: %w", err)
		}
		return fx.Table(active), nil
	})
}

// Converter returns a converter over today's rates.
func (s *RateService) Converter(ctx context.Context) (fx.Converter, error) {
	table, err := s.Table(ctx, s.today())
	if err != nil {
		return fx.Converter{}, err
	}
	return fx.NewConverter(table), nil
}

// Current returns today's rate to USD for every currency that has one.
func (s *RateService) Current(ctx context.Context) (fx.Table, error) {
	table, err := s.Table(ctx, s.today())
	if err != nil {
		return nil, err
	}
	out := make(fx.Table, len(table))
	for c, r := range table {
		out[c] = r
	}
	return out, nil
}

// Active returns the row in force for currency today.
func (s *RateService) Active(ctx context.Context, currency core.Currency) (core.ExchangeRate, error) {
	return s.store.ActiveRate(ctx, currency, s.today())
}

func (s *RateService) List(ctx context.Context, filter rates.Filter) ([]core.ExchangeRate, error) {
	if filter.Currency != "" && !filter.Currency.Supported() {
		return nil, core.ErrUnsupportedCurrency
	}
	rows, err := s.store.ListRates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	return rows, nil
}

// Import normalises a batch of quotes and stores all of them or none.
func (s *RateService) Import(ctx context.Context, batch []rates.ImportRow) (int, error) {
	rows, err := rates.Normalize(batch, s.today())
	if err != nil {
		return 0, err
	}
	n, err := s.store.ImportRates(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("import rates: %w", err)
	}
	s.snapshots.Clear()

	slog.InfoContext(ctx, "Exchange rates imported", "count", n)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventImported, amqp.EntityRate, 0).WithCount(n))
	return n, nil
}

func (s *RateService) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	batch, err := rates.DecodeJSON(r)
	if err != nil {
		return 0, err
	}
	return s.Import(ctx, batch)
}

func (s *RateService) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	batch, err := rates.DecodeCSV(r)
	if err != nil {
		return 0, err
	}
	return s.Import(ctx, batch)
}

// Seed stores the bundled default rates when the table is empty.
func (s *RateService) Seed(ctx context.Context) (int, error) {
	n, err := rates.SeedDefaults(ctx, s.store, s.today())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.snapshots.Clear()
		slog.InfoContext(ctx, "Default exchange rates seeded", "count", n)
	}
	return n, nil
}
