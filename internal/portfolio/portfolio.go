// Package portfolio aggregates account balances into the user's default
// currency.
package portfolio

import (
	"sort"

	"conti/internal/core"
	"conti/internal/fx"

	"github.com/shopspring/decimal"
)

// PercentagePlaces is the precision of PercentageOfTotal.
const PercentagePlaces = 4

// AccountView is an account with its balance expressed in the default
// currency. Conversion is fx.Converted, or fx.NotConverted when a rate is
// missing.
type AccountView struct {
	Account           core.Account
	DefaultCurrency   core.Currency
	Conversion        fx.Outcome
	PercentageOfTotal decimal.Decimal
}

// Converted returns the balance in the default currency, if available.
func (v AccountView) Converted() (fx.Converted, bool) {
	c, ok := v.Conversion.(fx.Converted)
	return c, ok
}

// TotalBalance is the portfolio-wide read model.
type TotalBalance struct {
	TotalBalance      decimal.Decimal
	DefaultCurrency   core.Currency
	CurrencyBreakdown map[core.Currency]decimal.Decimal
	Accounts          []AccountView
	// Skipped lists native currencies whose accounts could not be converted
	// and therefore do not contribute to TotalBalance.
	Skipped []core.Currency
}

// View converts a single account. It never fails: a missing rate yields
// fx.NotConverted so listings degrade instead of erroring.
func View(acc core.Account, defaultCurrency core.Currency, conv fx.Converter) AccountView {
	return AccountView{
		Account:           acc,
		DefaultCurrency:   defaultCurrency,
		Conversion:        conv.Outcome(acc.Balance, acc.Currency, defaultCurrency),
		PercentageOfTotal: decimal.Zero,
	}
}

// Total converts every account, sums the converted balances, builds the
// native per-currency breakdown and fills each view's share of the total.
func Total(accounts []core.Account, defaultCurrency core.Currency, conv fx.Converter) TotalBalance {
	out := TotalBalance{
		TotalBalance:      decimal.Zero,
		DefaultCurrency:   defaultCurrency,
		CurrencyBreakdown: make(map[core.Currency]decimal.Decimal),
		Accounts:          make([]AccountView, 0, len(accounts)),
	}

	skipped := make(map[core.Currency]bool)
	for _, acc := range accounts {
		out.CurrencyBreakdown[acc.Currency] = out.CurrencyBreakdown[acc.Currency].Add(acc.Balance)

		v := View(acc, defaultCurrency, conv)
		if c, ok := v.Converted(); ok {
			out.TotalBalance = out.TotalBalance.Add(c.Amount)
		} else {
			skipped[acc.Currency] = true
		}
		out.Accounts = append(out.Accounts, v)
	}

	for i := range out.Accounts {
		out.Accounts[i].PercentageOfTotal = Share(out.Accounts[i], out.TotalBalance)
	}
	for c := range skipped {
		out.Skipped = append(out.Skipped, c)
	}
	sort.Slice(out.Skipped, func(i, j int) bool { return out.Skipped[i] < out.Skipped[j] })
	return out
}

// Share is the view's converted balance divided by total. A zero total or an
// unconverted view yields zero.
func Share(v AccountView, total decimal.Decimal) decimal.Decimal {
	c, ok := v.Converted()
	if !ok || total.IsZero() {
		return decimal.Zero
	}
	return c.Amount.DivRound(total, PercentagePlaces)
}
