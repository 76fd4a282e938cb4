package rates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"conti/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalize(t *testing.T) {
	today := core.NewDate(2025, 5, 10)

	tests := []struct {
		name     string
		batch    []ImportRow
		wantErr  bool
		wantRows []string // row numbers expected in the validation error
		check    func(t *testing.T, out []core.ExchangeRate)
	}{
		{
			name:  "quote into USD is stored as given",
			batch: []ImportRow{{CurrencyFrom: "eur", CurrencyTo: "USD", Rate: "1.10", EffectiveFrom: "2025-01-01"}},
			check: func(t *testing.T, out []core.ExchangeRate) {
				require.Len(t, out, 1)
				assert.Equal(t, core.EUR, out[0].Currency)
				assert.True(t, out[0].RateToUSD.Equal(dec("1.10")))
				assert.Equal(t, "2025-01-01", out[0].EffectiveFrom.String())
				assert.Nil(t, out[0].EffectiveTo)
			},
		},
		{
			name:  "empty currency_to and date default to USD and today",
			batch: []ImportRow{{CurrencyFrom: "JPY", Rate: "0.0067"}},
			check: func(t *testing.T, out []core.ExchangeRate) {
				require.Len(t, out, 1)
				assert.Equal(t, today.String(), out[0].EffectiveFrom.String())
			},
		},
		{
			name:  "quote out of USD is inverted",
			batch: []ImportRow{{CurrencyFrom: "USD", CurrencyTo: "EUR", Rate: "0.8"}},
			check: func(t *testing.T, out []core.ExchangeRate) {
				require.Len(t, out, 1)
				assert.Equal(t, core.EUR, out[0].Currency)
				assert.True(t, out[0].RateToUSD.Equal(dec("1.25")), "got %s", out[0].RateToUSD)
			},
		},
		{
			name: "negative rate rejects the whole batch",
			batch: []ImportRow{
				{CurrencyFrom: "EUR", Rate: "1.1"},
				{CurrencyFrom: "GBP", Rate: "-5"},
			},
			wantErr:  true,
			wantRows: []string{"row 2"},
		},
		{
			name: "every offending row is listed",
			batch: []ImportRow{
				{CurrencyFrom: "XYZ", Rate: "1"},
				{CurrencyFrom: "EUR", Rate: "1.1"},
				{CurrencyFrom: "EUR", CurrencyTo: "GBP", Rate: "0.85"},
				{CurrencyFrom: "EUR", Rate: "1.1", EffectiveFrom: "2025-02-01", EffectiveTo: "2025-01-01"},
			},
			wantErr:  true,
			wantRows: []string{"row 1", "row 3", "row 4"},
		},
		{
			name:     "empty batch",
			batch:    nil,
			wantErr:  true,
			wantRows: []string{"batch is empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.batch, today)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, out)
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr))
				for _, r := range tt.wantRows {
					assert.Contains(t, err.Error(), r)
				}
				assert.NotContains(t, err.Error(), "row 2: currency", "valid rows must not be reported")
				return
			}
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("envelope with numeric and string rates", func(t *testing.T) {
		rows, err := DecodeJSON(strings.NewReader(`{"rates":[
			{"currency_from":"EUR","currency_to":"USD","rate":1.08,"effective_from":"2025-01-01"},
			{"currency_from":"JPY","rate_to_usd":"0.0067"}
		]}`))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "1.08", rows[0].Rate)
		assert.Equal(t, "0.0067", rows[1].Rate)
		assert.Equal(t, "", rows[1].CurrencyTo)
	})

	t.Run("bare array", func(t *testing.T) {
		rows, err := DecodeJSON(strings.NewReader(`[{"currency_from":"GBP","rate":"1.26"}]`))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "GBP", rows[0].CurrencyFrom)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeJSON(strings.NewReader(`{"rates": [`))
		assert.ErrorIs(t, err, core.ErrInvalid)
	})
}

func TestDecodeCSV(t *testing.T) {
	t.Run("original column names", func(t *testing.T) {
		rows, err := DecodeCSV(strings.NewReader(
			"currency_from,rate_to_usd,effective_from,effective_to\n" +
				"EUR,1.08,2025-01-01,\n" +
				"\n" +
				"RUB,0.011,2025-01-01,2025-12-31\n"))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "1.08", rows[0].Rate)
		assert.Equal(t, "2025-12-31", rows[1].EffectiveTo)
	})

	t.Run("missing rate column", func(t *testing.T) {
		_, err := DecodeCSV(strings.NewReader("currency_from,currency_to\nEUR,USD\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing column rate")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DecodeCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, core.ErrInvalid)
	})
}

func TestMemoryStore_ActiveRate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	end := core.NewDate(2025, 2, 28)

	_, err := s.ImportRates(ctx, []core.ExchangeRate{
		{Currency: core.EUR, RateToUSD: dec("1.05"), EffectiveFrom: core.NewDate(2025, 1, 1)},
		{Currency: core.EUR, RateToUSD: dec("1.10"), EffectiveFrom: core.NewDate(2025, 3, 1)},
		{Currency: core.GBP, RateToUSD: dec("1.30"), EffectiveFrom: core.NewDate(2025, 1, 1), EffectiveTo: &end},
	})
	require.NoError(t, err)

	r, err := s.ActiveRate(ctx, core.EUR, core.NewDate(2025, 2, 15))
	require.NoError(t, err)
	assert.True(t, r.RateToUSD.Equal(dec("1.05")))

	r, err = s.ActiveRate(ctx, core.EUR, core.NewDate(2025, 6, 1))
	require.NoError(t, err)
	assert.True(t, r.RateToUSD.Equal(dec("1.10")))

	_, err = s.ActiveRate(ctx, core.GBP, core.NewDate(2025, 6, 1))
	var rnf *core.RateNotFoundError
	require.ErrorAs(t, err, &rnf)
	assert.Equal(t, core.GBP, rnf.Currency)

	usd, err := s.ActiveRate(ctx, core.USD, core.NewDate(2025, 6, 1))
	require.NoError(t, err)
	assert.True(t, usd.RateToUSD.Equal(decimal.NewFromInt(1)))

	// A re-import of the same effective date supersedes the earlier row.
	_, err = s.ImportRates(ctx, []core.ExchangeRate{
		{Currency: core.EUR, RateToUSD: dec("1.12"), EffectiveFrom: core.NewDate(2025, 3, 1)},
	})
	require.NoError(t, err)
	all, err := s.ActiveRates(ctx, core.NewDate(2025, 6, 1))
	require.NoError(t, err)
	assert.True(t, all[core.EUR].Equal(dec("1.12")))
	assert.True(t, all[core.USD].Equal(decimal.NewFromInt(1)))
	_, hasGBP := all[core.GBP]
	assert.False(t, hasGBP)

	history, err := s.ListRates(ctx, Filter{Currency: core.EUR})
	require.NoError(t, err)
	assert.Len(t, history, 3, "superseded rows are kept")
}

func TestMemoryStore_ImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.ImportRates(ctx, []core.ExchangeRate{
		{Currency: core.EUR, RateToUSD: dec("1.1"), EffectiveFrom: core.NewDate(2025, 1, 1)},
		{Currency: core.GBP, RateToUSD: dec("-5"), EffectiveFrom: core.NewDate(2025, 1, 1)},
	})
	require.ErrorIs(t, err, core.ErrInvalid)

	rows, err := s.ListRates(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	today := core.NewDate(2025, 1, 1)

	n, err := SeedDefaults(ctx, s, today)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	r, err := s.ActiveRate(ctx, core.EUR, today)
	require.NoError(t, err)
	assert.True(t, r.RateToUSD.Equal(dec("1.08")))

	n, err = SeedDefaults(ctx, s, today)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a populated table is a no-op")
}
