package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"12.345", "12.35", true}, // half-up rounding
		{"12.344", "12.34", true},
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e5", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestParseRate(t *testing.T) {
	got, err := ParseRate("83.123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "83.123457" {
		t.Fatalf("expected 83.123457, got %s", got)
	}
	if _, err := ParseRate("0"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for zero, got %v", err)
	}
	if _, err := ParseRate("-3"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for negative, got %v", err)
	}
}

func TestParseCurrency(t *testing.T) {
	for _, in := range []string{"usd", " INR ", "Eur", "gbp", "CAD", "aud"} {
		if _, err := ParseCurrency(in); err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
	}
	for _, in := range []string{"", "JPY", "US"} {
		if _, err := ParseCurrency(in); !errors.Is(err, ErrUnsupportedCurrency) {
			t.Fatalf("%q: expected ErrUnsupportedCurrency, got %v", in, err)
		}
	}
}
