// Package core holds the ledger domain: currencies, money records, loan
// balance arithmetic and the error taxonomy shared by every layer.
//
// This file contains functions for parsing monetary amounts and exchange
// rates from user input.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// maxRatePlaces is the precision kept for user-entered exchange rates.
const maxRatePlaces = 6

// ParseAmount converts a decimal string to an amount with two decimal places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Only positive values are allowed.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil (half-up)
//	ParseAmount("12.344") -> 12.34, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parsePositiveDecimal(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate parses a user-entered exchange rate, keeping up to six decimal
// places. Bounds are checked by the conversion service, not here.
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := parsePositiveDecimal(s)
	if err != nil {
		return decimal.Zero, ErrInvalidRate
	}
	d = d.Round(maxRatePlaces)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	return d, nil
}

func parsePositiveDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if len(parts[0]) > 15 {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromString(s)
}

// RoundTo rounds d to the minor-unit precision of c.
func RoundTo(d decimal.Decimal, c Currency) decimal.Decimal {
	return d.Round(c.MinorUnits())
}
