package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// GetProfile returns the stored profile, or a zero profile for userID when
// none has been saved yet.
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	row, err := r.queries.GetProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{UserID: userID}, nil
	}
	if err != nil {
		return core.Profile{}, &core.PersistenceError{Op: "get profile", Err: err}
	}
	updated, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return core.Profile{}, &core.PersistenceError{Op: "decode profile", Err: err}
	}
	return core.Profile{
		UserID:             row.UserID,
		Email:              row.Email,
		FullName:           row.FullName,
		CurrencyPreference: core.Currency(row.CurrencyPreference),
		Timezone:           row.Timezone,
		UpdatedAt:          updated,
	}, nil
}

func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	p.UpdatedAt = r.now().UTC()
	err := r.queries.UpsertProfile(ctx, ProfileRow{
		UserID:             p.UserID,
		Email:              p.Email,
		FullName:           p.FullName,
		CurrencyPreference: string(p.CurrencyPreference),
		Timezone:           p.Timezone,
		UpdatedAt:          p.UpdatedAt.Format(timeLayout),
	})
	if err != nil {
		return core.Profile{}, &core.PersistenceError{Op: "upsert profile", Err: err}
	}
	return p, nil
}

// RateSnapshot is one persisted fetch of live rates for a base currency.
type RateSnapshot struct {
	Base      core.Currency                     `json:"base"`
	Rates     map[core.Currency]decimal.Decimal `json:"rates"`
	Source    string                            `json:"source"`
	FetchedAt time.Time                         `json:"fetched_at"`
}

// SaveRates appends a snapshot to the rate history in one transaction.
func (r *SQLiteRepository) SaveRates(ctx context.Context, s RateSnapshot) error {
	at := s.FetchedAt.UTC().Format(timeLayout)
	return r.withTx(ctx, func(q *Queries) error {
		for quote, rate := range s.Rates {
			err := q.CreateExchangeRate(ctx, ExchangeRateRow{
				Base:      string(s.Base),
				Quote:     string(quote),
				Rate:      rate.String(),
				Source:    s.Source,
				FetchedAt: at,
			})
			if err != nil {
				return &core.PersistenceError{Op: "save exchange rate", Err: err}
			}
		}
		return nil
	})
}

// LatestRates returns the newest stored snapshot for base.
func (r *SQLiteRepository) LatestRates(ctx context.Context, base core.Currency) (RateSnapshot, error) {
	rows, err := r.queries.LatestExchangeRates(ctx, string(base))
	if err != nil {
		return RateSnapshot{}, &core.PersistenceError{Op: "latest exchange rates", Err: err}
	}
	if len(rows) == 0 {
		return RateSnapshot{}, fmt.Errorf("rates for %s: %w", base, core.ErrNotFound)
	}
	snap := RateSnapshot{Base: base, Rates: make(map[core.Currency]decimal.Decimal, len(rows)), Source: rows[0].Source}
	if snap.FetchedAt, err = time.Parse(timeLayout, rows[0].FetchedAt); err != nil {
		return RateSnapshot{}, &core.PersistenceError{Op: "decode exchange rate", Err: err}
	}
	for _, row := range rows {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return RateSnapshot{}, &core.PersistenceError{Op: "decode exchange rate", Err: err}
		}
		snap.Rates[core.Currency(row.Quote)] = rate
	}
	return snap, nil
}
