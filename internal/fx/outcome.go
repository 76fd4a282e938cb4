package fx

import (
	"conti/internal/core"

	"github.com/shopspring/decimal"
)

// Outcome is either Converted or NotConverted.
type Outcome interface {
	outcome()
}

// Converted carries the amount in the target currency and the rate used.
type Converted struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

// NotConverted records that a rate was missing for Currency.
type NotConverted struct {
	Currency core.Currency
	Err      error
}

func (Converted) outcome()    {}
func (NotConverted) outcome() {}

// AmountOr returns the converted amount, or fallback when o is NotConverted.
func AmountOr(o Outcome, fallback decimal.Decimal) (decimal.Decimal, bool) {
	if c, ok := o.(Converted); ok {
		return c.Amount, true
	}
	return fallback, false
}
