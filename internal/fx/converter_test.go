package fx

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stubProvider serves a fixed table or an error and counts calls.
type stubProvider struct {
	rates map[core.Currency]map[core.Currency]decimal.Decimal
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Latest(ctx context.Context, base core.Currency) (map[core.Currency]decimal.Decimal, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rates[base], nil
}

func TestIdentityConversionIsExact(t *testing.T) {
	c := NewConverter(nil, time.Second)
	amount := dec("1234.56789")
	for _, cur := range core.SupportedCurrencies() {
		for _, src := range []Source{SourceHistorical, SourceLive, SourceFixed} {
			res, err := c.Convert(context.Background(), Request{Amount: amount, From: cur, To: cur, Source: src})
			if err != nil {
				t.Fatalf("%s/%s: unexpected error %v", cur, src, err)
			}
			if !res.Amount.Equal(amount) || res.Amount.Exponent() != amount.Exponent() {
				t.Fatalf("%s/%s: expected exact %s, got %s", cur, src, amount, res.Amount)
			}
			if res.Fallback {
				t.Fatalf("%s/%s: identity must not report fallback", cur, src)
			}
		}
	}
}

func TestHistoricalRateUsedVerbatim(t *testing.T) {
	p := &stubProvider{rates: map[core.Currency]map[core.Currency]decimal.Decimal{
		core.USD: {core.INR: dec("90")},
	}}
	c := NewConverter(p, time.Second)
	res, err := c.Convert(context.Background(), Request{
		Amount:         dec("1000"),
		From:           core.USD,
		To:             core.INR,
		Source:         SourceHistorical,
		HistoricalRate: decimal.NewNullDecimal(dec("83.0")),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Amount.Equal(dec("83000")) || res.Source != SourceHistorical {
		t.Fatalf("expected 83000 historical, got %s %s", res.Amount, res.Source)
	}
	if p.calls.Load() != 0 {
		t.Fatalf("historical conversion must not hit the live provider")
	}
}

func TestHistoricalWithoutRateFallsThroughToLive(t *testing.T) {
	p := &stubProvider{rates: map[core.Currency]map[core.Currency]decimal.Decimal{
		core.USD: {core.INR: dec("84.5")},
	}}
	c := NewConverter(p, time.Second)
	res, err := c.Convert(context.Background(), Request{Amount: dec("10"), From: core.USD, To: core.INR, Source: SourceHistorical})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Amount.Equal(dec("845")) || res.Source != SourceLive || res.Fallback {
		t.Fatalf("expected live 845, got %+v", res)
	}
}

func TestLiveFailureFallsBackToFixed(t *testing.T) {
	cases := map[string]*stubProvider{
		"error":   {err: errors.New("network down")},
		"timeout": {delay: time.Second},
		"missing": {rates: map[core.Currency]map[core.Currency]decimal.Decimal{core.USD: {core.EUR: dec("0.9")}}},
	}
	for name, p := range cases {
		c := NewConverter(p, 20*time.Millisecond)
		res, err := c.Convert(context.Background(), Request{Amount: dec("2"), From: core.USD, To: core.INR, Source: SourceLive})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if !res.Fallback || res.Source != SourceFixed {
			t.Fatalf("%s: expected fallback flag, got %+v", name, res)
		}
		if !res.Amount.Equal(dec("166.5")) {
			t.Fatalf("%s: expected 166.50 at fixed rate, got %s", name, res.Amount)
		}
	}
}

func TestNilProviderFallsBack(t *testing.T) {
	c := NewConverter(nil, time.Second)
	res, err := c.Convert(context.Background(), Request{Amount: dec("1"), From: core.EUR, To: core.USD, Source: SourceLive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fallback {
		t.Fatalf("expected fallback without a provider")
	}
}

func TestConvertRoundsToTwoPlaces(t *testing.T) {
	c := NewConverter(nil, time.Second)
	res, err := c.Convert(context.Background(), Request{
		Amount:         dec("10.555"),
		From:           core.EUR,
		To:             core.GBP,
		Source:         SourceHistorical,
		HistoricalRate: decimal.NewNullDecimal(dec("0.857")),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10.555 * 0.857 = 9.045635
	if res.Amount.String() != "9.05" {
		t.Fatalf("expected 9.05, got %s", res.Amount)
	}
}

func TestRoundTripWithinOneCent(t *testing.T) {
	c := NewConverter(nil, time.Second)
	ctx := context.Background()
	rates := []string{"0.5", "1", "45.678", "83", "83.25", "120.1234", "199.99"}
	amounts := []string{"0.01", "0.99", "1", "12.34", "1000", "99999.99", "123456.78"}
	cent := dec("0.01")
	for _, r := range rates {
		rate := dec(r)
		back := one.Div(rate)
		for _, a := range amounts {
			amount := dec(a)
			there, err := c.Convert(ctx, Request{Amount: amount, From: core.USD, To: core.INR, Source: SourceHistorical, HistoricalRate: decimal.NewNullDecimal(rate)})
			if err != nil {
				t.Fatalf("forward: %v", err)
			}
			again, err := c.Convert(ctx, Request{Amount: there.Amount, From: core.INR, To: core.USD, Source: SourceHistorical, HistoricalRate: decimal.NewNullDecimal(back)})
			if err != nil {
				t.Fatalf("back: %v", err)
			}
			if diff := again.Amount.Sub(amount).Abs(); diff.GreaterThan(cent) {
				t.Fatalf("rate %s amount %s: round trip drifted by %s", r, a, diff)
			}
		}
	}

	// The fixed table honours the same bound.
	for _, a := range amounts {
		amount := dec(a)
		there, _ := c.Convert(ctx, Request{Amount: amount, From: core.USD, To: core.INR, Source: SourceFixed})
		again, _ := c.Convert(ctx, Request{Amount: there.Amount, From: core.INR, To: core.USD, Source: SourceFixed})
		if diff := again.Amount.Sub(amount).Abs(); diff.GreaterThan(cent) {
			t.Fatalf("fixed amount %s: round trip drifted by %s", a, diff)
		}
	}
}

func TestUnsupportedCurrencyIsConversionError(t *testing.T) {
	c := NewConverter(nil, time.Second)
	_, err := c.Convert(context.Background(), Request{Amount: dec("1"), From: "JPY", To: core.USD, Source: SourceFixed})
	var ce *core.ConversionError
	if !errors.As(err, &ce) || !errors.Is(err, core.ErrConversion) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if _, err := c.Convert(context.Background(), Request{Amount: dec("1"), From: core.USD, To: core.INR, Source: "guess"}); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestValidateRate(t *testing.T) {
	cases := []struct {
		from, to core.Currency
		rate     string
		ok       bool
	}{
		{core.USD, core.INR, "83.25", true},
		{core.USD, core.INR, "199.99", true},
		{core.USD, core.INR, "200", false},
		{core.USD, core.INR, "0", false},
		{core.INR, core.USD, "-0.01", false},
		{core.INR, core.USD, "0.012", true},
		{core.EUR, core.GBP, "0.93", true},
		{core.EUR, core.GBP, "250", false},
		// INR per GBP is ~105, so 3x the reference exceeds the base bound.
		{core.GBP, core.INR, "250", true},
		{core.GBP, core.INR, "400", false},
	}
	for _, tc := range cases {
		err := ValidateRate(tc.from, tc.to, dec(tc.rate))
		if tc.ok && err != nil {
			t.Fatalf("%s->%s %s: expected ok, got %v", tc.from, tc.to, tc.rate, err)
		}
		if !tc.ok && !errors.Is(err, core.ErrInvalidRate) {
			t.Fatalf("%s->%s %s: expected ErrInvalidRate, got %v", tc.from, tc.to, tc.rate, err)
		}
	}
	if err := ValidateRate(core.USD, core.USD, dec("1")); !errors.Is(err, core.ErrUnsupportedPair) {
		t.Fatalf("same-currency rate should be rejected, got %v", err)
	}
	if err := ValidateRate(core.USD, "JPY", dec("150")); !errors.Is(err, core.ErrConversion) {
		t.Fatalf("unsupported pair should be a conversion error, got %v", err)
	}
}

func TestFixedRateCrossesThroughUSD(t *testing.T) {
	r, err := FixedRate(core.EUR, core.INR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 83.25 / 0.85
	if got := r.Round(4).String(); got != "97.9412" {
		t.Fatalf("expected 97.9412, got %s", got)
	}
}
