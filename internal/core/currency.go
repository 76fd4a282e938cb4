package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Currency is an upper-case ISO 4217 code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	CHF Currency = "CHF"
	CNY Currency = "CNY"
	RUB Currency = "RUB"
)

// Pivot is the currency every cross-currency conversion is routed through.
const Pivot = USD

var supportedCurrencies = []Currency{USD, EUR, GBP, JPY, CAD, AUD, CHF, CNY, RUB}

// SupportedCurrencies returns the recognised currency codes in a stable order.
func SupportedCurrencies() []Currency {
	return append([]Currency(nil), supportedCurrencies...)
}

// ParseCurrency normalises s and checks it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Supported() {
		return "", fmt.Errorf("%w %q", ErrUnsupportedCurrency, s)
	}
	return c, nil
}

// Supported reports whether c is one of the recognised codes.
func (c Currency) Supported() bool {
	for _, s := range supportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

func (c Currency) String() string { return string(c) }

// UnmarshalJSON accepts any casing and rejects unknown codes.
func (c *Currency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: currency must be a string", ErrInvalid)
	}
	parsed, err := ParseCurrency(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
