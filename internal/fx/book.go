package fx

import (
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// RateBook is a resolved set of rates into one target currency. Converting
// through a book does no I/O.
type RateBook struct {
	Target   core.Currency                     `json:"target"`
	Rates    map[core.Currency]decimal.Decimal `json:"rates"`
	Source   Source                            `json:"source"`
	Fallback bool                              `json:"fallback"`
	AsOf     time.Time                         `json:"as_of"`
}

// Rate returns the from->Target rate.
func (b *RateBook) Rate(from core.Currency) (decimal.Decimal, error) {
	if from == b.Target && from.IsSupported() {
		return one, nil
	}
	r, ok := b.Rates[from]
	if !ok {
		return decimal.Zero, &core.ConversionError{From: from, To: b.Target, Err: core.ErrUnsupportedCurrency}
	}
	return r, nil
}

// Convert expresses amount in the book's target currency.
func (b *RateBook) Convert(amount decimal.Decimal, from core.Currency) (decimal.Decimal, error) {
	if from == b.Target {
		if !from.IsSupported() {
			return decimal.Zero, &core.ConversionError{From: from, To: b.Target, Err: core.ErrUnsupportedCurrency}
		}
		return amount, nil
	}
	r, err := b.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	return apply(amount, r, b.Target), nil
}

// ConvertHistorical converts with the rate stored on a record when it has
// one. The stored rate takes the amount into quote; if quote differs from the
// target the book's current rate covers the remaining hop.
func (b *RateBook) ConvertHistorical(amount decimal.Decimal, from core.Currency, rate decimal.NullDecimal, quote core.Currency) (decimal.Decimal, error) {
	if !from.IsSupported() {
		return decimal.Zero, &core.ConversionError{From: from, To: b.Target, Err: core.ErrUnsupportedCurrency}
	}
	if from == b.Target || !rate.Valid || quote == "" || quote == from {
		return b.Convert(amount, from)
	}
	if !quote.IsSupported() {
		return decimal.Zero, &core.ConversionError{From: from, To: quote, Err: core.ErrUnsupportedCurrency}
	}
	if !rate.Decimal.IsPositive() {
		return decimal.Zero, &core.ConversionError{From: from, To: quote, Err: core.ErrInvalidRate}
	}
	inQuote := apply(amount, rate.Decimal, quote)
	if quote == b.Target {
		return inQuote, nil
	}
	return b.Convert(inQuote, quote)
}
