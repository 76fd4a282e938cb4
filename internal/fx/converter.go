// Package fx converts amounts between currencies by pivoting through USD.
//
// Rates are "one unit of X buys r(X) dollars". Converting from A to B is
// therefore amount * r(A) / r(B), and the composite multiplier r(A)/r(B) is
// reported alongside the converted amount. Same-currency conversion is the
// identity with a rate of exactly 1.
package fx

import (
	"errors"

	"conti/internal/core"

	"github.com/shopspring/decimal"
)

// divisionPrecision is the number of decimal places kept by every division.
const divisionPrecision = 16

var one = decimal.NewFromInt(1)

// RateSource resolves the rate to USD of a currency.
type RateSource interface {
	RateToUSD(currency core.Currency) (decimal.Decimal, error)
}

// Table is an immutable snapshot of active rates. USD is implicit.
type Table map[core.Currency]decimal.Decimal

func (t Table) RateToUSD(currency core.Currency) (decimal.Decimal, error) {
	if currency == core.USD {
		return one, nil
	}
	r, ok := t[currency]
	if !ok || !r.IsPositive() {
		return decimal.Zero, &core.RateNotFoundError{Currency: currency}
	}
	return r, nil
}

// Conversion is the result of a successful conversion.
type Conversion struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

// Converter performs conversions against a RateSource.
type Converter struct {
	rates RateSource
}

func NewConverter(rates RateSource) Converter {
	return Converter{rates: rates}
}

// Rate returns the composite multiplier r(from)/r(to).
func (c Converter) Rate(from, to core.Currency) (decimal.Decimal, error) {
	if from == to {
		return one, nil
	}
	rFrom, err := c.rates.RateToUSD(from)
	if err != nil {
		return decimal.Zero, err
	}
	rTo, err := c.rates.RateToUSD(to)
	if err != nil {
		return decimal.Zero, err
	}
	return rFrom.DivRound(rTo, divisionPrecision), nil
}

// Convert converts amount from one currency to another. The amount is taken
// to USD first and then divided by the target rate, so no precision is lost
// to an intermediate rounded composite rate.
func (c Converter) Convert(amount decimal.Decimal, from, to core.Currency) (Conversion, error) {
	if from == to {
		return Conversion{Amount: amount, Rate: one}, nil
	}
	rFrom, err := c.rates.RateToUSD(from)
	if err != nil {
		return Conversion{}, err
	}
	rTo, err := c.rates.RateToUSD(to)
	if err != nil {
		return Conversion{}, err
	}
	usd := amount.Mul(rFrom)
	return Conversion{
		Amount: usd.DivRound(rTo, divisionPrecision),
		Rate:   rFrom.DivRound(rTo, divisionPrecision),
	}, nil
}

// Outcome converts like Convert but folds failure into the result.
func (c Converter) Outcome(amount decimal.Decimal, from, to core.Currency) Outcome {
	conv, err := c.Convert(amount, from, to)
	if err != nil {
		missing := from
		var rnf *core.RateNotFoundError
		if errors.As(err, &rnf) {
			missing = rnf.Currency
		}
		return NotConverted{Currency: missing, Err: err}
	}
	return Converted{Amount: conv.Amount, Rate: conv.Rate}
}
