package core

import (
	"strings"
)

// Currency is an ISO 4217 code supported by the ledger.
type Currency string

const (
	USD Currency = "USD"
	INR Currency = "INR"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
)

var supportedCurrencies = []Currency{USD, INR, EUR, GBP, CAD, AUD}

// SupportedCurrencies returns every currency the ledger accepts, in a stable order.
func SupportedCurrencies() []Currency {
	out := make([]Currency, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// IsSupported reports whether c is one of the ledger currencies.
func (c Currency) IsSupported() bool {
	for _, s := range supportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// MinorUnits is the number of decimal places used when rounding amounts in c.
func (c Currency) MinorUnits() int32 {
	return 2
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalizes s and checks that it is supported.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsSupported() {
		return "", ErrUnsupportedCurrency
	}
	return c, nil
}
