package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/fx"
	"fintrack/internal/storage"

	"github.com/shopspring/decimal"
)

type flusher interface {
	Flush()
}

// RateRefresher pulls a fresh rate table from the live provider and appends
// it to the stored rate history.
type RateRefresher struct {
	provider fx.Provider
	store    RateStore
	base     core.Currency
	now      func() time.Time
}

// NewRateRefresher builds a refresher for base. A nil provider turns Refresh
// into a no-op.
func NewRateRefresher(provider fx.Provider, store RateStore, base core.Currency) *RateRefresher {
	return &RateRefresher{provider: provider, store: store, base: base, now: time.Now}
}

// Refresh fetches and saves one snapshot. A cached provider is flushed first
// so the fetch reaches the upstream source.
func (r *RateRefresher) Refresh(ctx context.Context) (storage.RateSnapshot, error) {
	if r.provider == nil {
		slog.DebugContext(ctx, "No live rate provider configured, skipping refresh")
		return storage.RateSnapshot{}, nil
	}
	if f, ok := r.provider.(flusher); ok {
		f.Flush()
	}

	rates, err := r.provider.Latest(ctx, r.base)
	if err != nil {
		return storage.RateSnapshot{}, &core.ConversionError{From: r.base, To: r.base, Err: err}
	}

	kept := make(map[core.Currency]decimal.Decimal, len(rates))
	for cur, rate := range rates {
		if !cur.IsSupported() || cur == r.base {
			continue
		}
		if err := fx.ValidateRate(r.base, cur, rate); err != nil {
			slog.WarnContext(ctx, "Discarding out-of-bounds live rate",
				"base", r.base, "quote", cur, "rate", rate.String(), "error", err)
			continue
		}
		kept[cur] = rate
	}
	if len(kept) == 0 {
		return storage.RateSnapshot{}, &core.ConversionError{From: r.base, To: r.base, Err: fmt.Errorf("provider %s returned no usable rates", r.provider.Name())}
	}

	snap := storage.RateSnapshot{
		Base:      r.base,
		Rates:     kept,
		Source:    r.provider.Name(),
		FetchedAt: r.now().UTC(),
	}
	if err := r.store.SaveRates(ctx, snap); err != nil {
		return storage.RateSnapshot{}, fmt.Errorf("save rates: %w", err)
	}
	slog.InfoContext(ctx, "Exchange rates refreshed",
		"base", r.base,
		"source", snap.Source,
		"count", len(kept))
	return snap, nil
}

// Latest returns the newest stored snapshot.
func (r *RateRefresher) Latest(ctx context.Context) (storage.RateSnapshot, error) {
	return r.store.LatestRates(ctx, r.base)
}
