package rates

import (
	"context"
	_ "embed"
	"fmt"

	"conti/internal/core"

	"github.com/pelletier/go-toml/v2"
)

//go:embed defaults.toml
var defaultsTOML []byte

type seedFile struct {
	Rates []struct {
		Currency  string `toml:"currency"`
		RateToUSD string `toml:"rate_to_usd"`
	} `toml:"rates"`
}

// DefaultSeed returns the bundled starter rates, effective from the given day.
func DefaultSeed(effectiveFrom core.Date) ([]core.ExchangeRate, error) {
	var f seedFile
	if err := toml.Unmarshal(defaultsTOML, &f); err != nil {
		return nil, fmt.Errorf("decode default rates: %w", err)
	}
	batch := make([]ImportRow, len(f.Rates))
	for i, r := range f.Rates {
		batch[i] = ImportRow{
			CurrencyFrom:  r.Currency,
			CurrencyTo:    string(core.USD),
			Rate:          r.RateToUSD,
			EffectiveFrom: effectiveFrom.String(),
		}
	}
	return Normalize(batch, effectiveFrom)
}

// SeedDefaults imports the bundled rates when the store holds no rows yet.
// It reports how many rows were written.
func SeedDefaults(ctx context.Context, store Store, today core.Date) (int, error) {
	existing, err := store.ListRates(ctx, Filter{Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("list rates: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	seed, err := DefaultSeed(today)
	if err != nil {
		return 0, err
	}
	n, err := store.ImportRates(ctx, seed)
	if err != nil {
		return 0, fmt.Errorf("import default rates: %w", err)
	}
	return n, nil
}
