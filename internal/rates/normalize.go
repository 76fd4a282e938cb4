package rates

import (
	"strings"

	"conti/internal/core"

	"github.com/shopspring/decimal"
)

// inversePrecision is the number of decimal places kept when a USD-based
// quote has to be flipped into a rate_to_usd.
const inversePrecision = 16

// ImportRow is one raw quote as submitted by a client: one unit of
// CurrencyFrom buys Rate units of CurrencyTo. Empty CurrencyTo means USD and
// empty EffectiveFrom means today.
type ImportRow struct {
	CurrencyFrom  string
	CurrencyTo    string
	Rate          string
	EffectiveFrom string
	EffectiveTo   string
}

// Normalize validates a batch of quotes and turns them into USD-pivot rows.
// Quotes into USD are stored as given. Quotes out of USD are inverted.
// Quotes between two non-USD currencies are rejected because the table only
// holds one leg per currency. Any problem rejects the whole batch with a
// *core.ValidationError listing every offending row.
func Normalize(batch []ImportRow, today core.Date) ([]core.ExchangeRate, error) {
	verr := &core.ValidationError{}
	if len(batch) == 0 {
		verr.Add(0, "rates", "batch is empty")
		return nil, verr
	}

	out := make([]core.ExchangeRate, 0, len(batch))
	for i, in := range batch {
		row := i + 1
		bad := false

		from, err := core.ParseCurrency(in.CurrencyFrom)
		if err != nil {
			verr.Add(row, "currency_from", "unsupported currency "+quote(in.CurrencyFrom))
			bad = true
		}
		to := core.USD
		if strings.TrimSpace(in.CurrencyTo) != "" {
			if to, err = core.ParseCurrency(in.CurrencyTo); err != nil {
				verr.Add(row, "currency_to", "unsupported currency "+quote(in.CurrencyTo))
				bad = true
			}
		}
		if !bad {
			switch {
			case from == to:
				verr.Add(row, "currency_to", "must differ from currency_from")
				bad = true
			case from != core.USD && to != core.USD:
				verr.Add(row, "currency_to", "one side of the pair must be USD")
				bad = true
			}
		}

		rate, err := core.ParseRate(in.Rate)
		if err != nil {
			verr.Add(row, "rate", "must be a number greater than zero")
			bad = true
		}

		effFrom := today
		if strings.TrimSpace(in.EffectiveFrom) != "" {
			if effFrom, err = core.ParseDate(in.EffectiveFrom); err != nil {
				verr.Add(row, "effective_from", "must be a YYYY-MM-DD date")
				bad = true
			}
		}
		var effTo *core.Date
		if strings.TrimSpace(in.EffectiveTo) != "" {
			d, err := core.ParseDate(in.EffectiveTo)
			if err != nil {
				verr.Add(row, "effective_to", "must be a YYYY-MM-DD date")
				bad = true
			} else if d.Before(effFrom) {
				verr.Add(row, "effective_to", "must not precede effective_from")
				bad = true
			} else {
				effTo = &d
			}
		}
		if bad {
			continue
		}

		currency, rateToUSD := from, rate
		if from == core.USD {
			currency = to
			rateToUSD = decimal.NewFromInt(1).DivRound(rate, inversePrecision)
		}
		out = append(out, core.ExchangeRate{
			Currency:      currency,
			RateToUSD:     rateToUSD,
			EffectiveFrom: effFrom,
			EffectiveTo:   effTo,
		})
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func quote(s string) string {
	return `"` + strings.TrimSpace(s) + `"`
}
