package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds a live rate lookup.
const DefaultTimeout = 5 * time.Second

var ErrUnknownSource = errors.New("unknown rate source")

// Provider fetches live rates. Latest returns units of each currency per one
// unit of base.
type Provider interface {
	Name() string
	Latest(ctx context.Context, base core.Currency) (map[core.Currency]decimal.Decimal, error)
}

// Request describes one conversion. HistoricalRate, when valid, is quoted
// From->To and is used verbatim for SourceHistorical.
type Request struct {
	Amount         decimal.Decimal
	From           core.Currency
	To             core.Currency
	Source         Source
	HistoricalRate decimal.NullDecimal
}

// Result is a converted amount and the rate that produced it. Fallback is set
// when a live rate was requested but the fixed table was used instead.
type Result struct {
	Amount   decimal.Decimal `json:"amount"`
	Rate     decimal.Decimal `json:"rate"`
	Source   Source          `json:"source"`
	Fallback bool            `json:"fallback"`
}

// Converter is the single entry point for currency conversion.
type Converter struct {
	provider Provider
	timeout  time.Duration
	now      func() time.Time
}

// NewConverter builds a Converter. A nil provider makes every live request
// resolve to the fixed table with Fallback set.
func NewConverter(provider Provider, timeout time.Duration) *Converter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Converter{provider: provider, timeout: timeout, now: time.Now}
}

// Convert expresses req.Amount in req.To. Identity conversions return the
// amount unchanged; everything else is rounded to two decimals.
func (c *Converter) Convert(ctx context.Context, req Request) (Result, error) {
	if !req.From.IsSupported() || !req.To.IsSupported() {
		return Result{}, &core.ConversionError{From: req.From, To: req.To, Err: core.ErrUnsupportedCurrency}
	}
	if !req.Source.Valid() {
		return Result{}, &core.ConversionError{From: req.From, To: req.To, Err: fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)}
	}
	if req.From == req.To {
		return Result{Amount: req.Amount, Rate: one, Source: req.Source}, nil
	}

	switch req.Source {
	case SourceHistorical:
		if req.HistoricalRate.Valid {
			rate := req.HistoricalRate.Decimal
			if !rate.IsPositive() {
				return Result{}, core.NewValidationError("exchange_rate", core.ErrInvalidRate)
			}
			return Result{Amount: apply(req.Amount, rate, req.To), Rate: rate, Source: SourceHistorical}, nil
		}
		return c.convertLive(ctx, req)
	case SourceLive:
		return c.convertLive(ctx, req)
	default:
		rate, err := FixedRate(req.From, req.To)
		if err != nil {
			return Result{}, err
		}
		return Result{Amount: apply(req.Amount, rate, req.To), Rate: rate, Source: SourceFixed}, nil
	}
}

func (c *Converter) convertLive(ctx context.Context, req Request) (Result, error) {
	rate, fallback, err := c.LiveRate(ctx, req.From, req.To)
	if err != nil {
		return Result{}, err
	}
	src := SourceLive
	if fallback {
		src = SourceFixed
	}
	return Result{Amount: apply(req.Amount, rate, req.To), Rate: rate, Source: src, Fallback: fallback}, nil
}

// LiveRate returns the current from->to rate. When the provider is missing,
// fails, times out or lacks the pair, the fixed rate is returned with
// fallback set.
func (c *Converter) LiveRate(ctx context.Context, from, to core.Currency) (decimal.Decimal, bool, error) {
	fixed, err := FixedRate(from, to)
	if err != nil {
		return decimal.Zero, false, err
	}
	if from == to {
		return one, false, nil
	}
	rates, err := c.latest(ctx, from)
	if err != nil {
		slog.WarnContext(ctx, "Live rate unavailable, using fixed rate",
			"from", from, "to", to, "error", err)
		return fixed, true, nil
	}
	rate, ok := rates[to]
	if !ok || !rate.IsPositive() {
		slog.WarnContext(ctx, "Live rate missing pair, using fixed rate", "from", from, "to", to)
		return fixed, true, nil
	}
	return rate, false, nil
}

// Book resolves the rate from every supported currency into target with a
// single provider call, so the records of one aggregation share the same
// rates.
func (c *Converter) Book(ctx context.Context, target core.Currency) (*RateBook, error) {
	if !target.IsSupported() {
		return nil, &core.ConversionError{From: target, To: target, Err: core.ErrUnsupportedCurrency}
	}
	book := &RateBook{
		Target: target,
		Rates:  make(map[core.Currency]decimal.Decimal, len(fixedPerUSD)),
		Source: SourceLive,
		AsOf:   c.now().UTC(),
	}

	live, err := c.latest(ctx, target)
	if err != nil {
		slog.WarnContext(ctx, "Live rates unavailable, using fixed table", "target", target, "error", err)
		book.Fallback = true
		book.Source = SourceFixed
	}
	for _, cur := range core.SupportedCurrencies() {
		if cur == target {
			book.Rates[cur] = one
			continue
		}
		// live holds target->cur; the book needs cur->target.
		if r, ok := live[cur]; ok && r.IsPositive() {
			book.Rates[cur] = one.Div(r)
			continue
		}
		fixed, err := FixedRate(cur, target)
		if err != nil {
			return nil, err
		}
		book.Rates[cur] = fixed
		if !book.Fallback {
			book.Fallback = true
			slog.WarnContext(ctx, "Live rate missing currency, using fixed rate", "currency", cur, "target", target)
		}
	}
	return book, nil
}

// FixedBook is the rate book built from the fixed table only.
func FixedBook(target core.Currency) (*RateBook, error) {
	return NewConverter(nil, 0).fixedBook(target)
}

func (c *Converter) fixedBook(target core.Currency) (*RateBook, error) {
	if !target.IsSupported() {
		return nil, &core.ConversionError{From: target, To: target, Err: core.ErrUnsupportedCurrency}
	}
	book := &RateBook{Target: target, Rates: map[core.Currency]decimal.Decimal{}, Source: SourceFixed, AsOf: c.now().UTC()}
	for _, cur := range core.SupportedCurrencies() {
		r, err := FixedRate(cur, target)
		if err != nil {
			return nil, err
		}
		book.Rates[cur] = r
	}
	return book, nil
}

func (c *Converter) latest(ctx context.Context, base core.Currency) (map[core.Currency]decimal.Decimal, error) {
	if c.provider == nil {
		return nil, errors.New("no live rate provider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.provider.Latest(ctx, base)
}

// ProviderName reports the configured live provider, or "fixed".
func (c *Converter) ProviderName() string {
	if c.provider == nil {
		return string(SourceFixed)
	}
	return c.provider.Name()
}
