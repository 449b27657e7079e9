// Package fx converts amounts between ledger currencies using historical,
// live or fixed exchange rates.
package fx

import (
	"fmt"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// Source selects where a conversion rate comes from.
type Source string

const (
	SourceHistorical Source = "historical"
	SourceLive       Source = "live"
	SourceFixed      Source = "fixed"
)

func (s Source) Valid() bool {
	return s == SourceHistorical || s == SourceLive || s == SourceFixed
}

// fixedPerUSD holds units of each currency per one US dollar. These are the
// fallback values used when no live rate can be fetched.
var fixedPerUSD = map[core.Currency]decimal.Decimal{
	core.USD: decimal.NewFromInt(1),
	core.INR: decimal.RequireFromString("83.25"),
	core.EUR: decimal.RequireFromString("0.85"),
	core.GBP: decimal.RequireFromString("0.79"),
	core.CAD: decimal.RequireFromString("1.25"),
	core.AUD: decimal.RequireFromString("1.35"),
}

var (
	one             = decimal.NewFromInt(1)
	baseRateBound   = decimal.NewFromInt(200)
	boundMultiplier = decimal.NewFromInt(3)
)

// FixedRate returns the constant rate from one currency to another, crossing
// through USD when neither side is the dollar.
func FixedRate(from, to core.Currency) (decimal.Decimal, error) {
	if from == to {
		if !from.IsSupported() {
			return decimal.Zero, &core.ConversionError{From: from, To: to, Err: core.ErrUnsupportedCurrency}
		}
		return one, nil
	}
	f, ok := fixedPerUSD[from]
	if !ok {
		return decimal.Zero, &core.ConversionError{From: from, To: to, Err: core.ErrUnsupportedCurrency}
	}
	t, ok := fixedPerUSD[to]
	if !ok {
		return decimal.Zero, &core.ConversionError{From: from, To: to, Err: core.ErrUnsupportedCurrency}
	}
	if from == core.USD {
		return t, nil
	}
	return t.Div(f), nil
}

// RateBound is the exclusive upper limit accepted for a manually entered
// rate between from and to.
func RateBound(from, to core.Currency) (decimal.Decimal, error) {
	if isUSDINR(from, to) {
		return baseRateBound, nil
	}
	ref, err := FixedRate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Max(baseRateBound, ref.Mul(boundMultiplier)), nil
}

// ValidateRate rejects a manually entered rate outside (0, bound). It runs
// before a record carrying the rate is stored.
func ValidateRate(from, to core.Currency, rate decimal.Decimal) error {
	if from == to {
		return &core.ConversionError{From: from, To: to, Err: core.ErrUnsupportedPair}
	}
	bound, err := RateBound(from, to)
	if err != nil {
		return err
	}
	if !rate.IsPositive() || !rate.LessThan(bound) {
		return core.NewValidationError("exchange_rate",
			fmt.Errorf("%w: %s %s->%s must be in (0, %s)", core.ErrInvalidRate, rate, from, to, bound))
	}
	return nil
}

func isUSDINR(a, b core.Currency) bool {
	return (a == core.USD && b == core.INR) || (a == core.INR && b == core.USD)
}

// apply multiplies amount by rate and rounds to the target's minor units.
func apply(amount, rate decimal.Decimal, to core.Currency) decimal.Decimal {
	return core.RoundTo(amount.Mul(rate), to)
}
