package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/fx"
	"fintrack/internal/ledger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = 5 * time.Minute
)

// AllCategories as DashboardQuery.TopN keeps every category row.
const AllCategories = -1

// DashboardQuery selects the currency and period of a snapshot. An empty
// Currency uses the user's preference, then the service default.
type DashboardQuery struct {
	Currency core.Currency
	Window   core.Window
	Range    core.DateRange
	// TopN caps the category rows. Zero uses the service default.
	TopN int
	// Refresh reloads records instead of using cached lists.
	Refresh bool
}

// DashboardService loads a user's records and folds them into a snapshot.
type DashboardService struct {
	records   RecordStore
	profiles  ProfileStore
	converter *fx.Converter
	cache     cache.Cache[[]core.Record]
	reporting core.Currency
	topN      int
	now       func() time.Time
}

var _ Invalidator = (*DashboardService)(nil)

func NewDashboardService(records RecordStore, profiles ProfileStore, converter *fx.Converter, recordCache cache.Cache[[]core.Record], reporting core.Currency, topN int) *DashboardService {
	if recordCache == nil {
		recordCache = cache.NewLRUCache[[]core.Record](defaultCacheSize, defaultCacheTTL)
	}
	if topN <= 0 {
		topN = ledger.DefaultTopN
	}
	return &DashboardService{
		records:   records,
		profiles:  profiles,
		converter: converter,
		cache:     recordCache,
		reporting: reporting,
		topN:      topN,
		now:       time.Now,
	}
}

// Snapshot returns the dashboard for userID.
func (s *DashboardService) Snapshot(ctx context.Context, userID string, q DashboardQuery) (ledger.Snapshot, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load profile: %w", err)
	}
	currency, rng, err := s.resolve(profile, q)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	if q.Refresh {
		s.InvalidateUser(userID)
	}
	records, err := s.loadAll(ctx, userID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	book, err := s.converter.Book(ctx, currency)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	topN := q.TopN
	if topN == 0 {
		topN = s.topN
	}
	snap := ledger.Aggregate(records, book, ledger.Options{Range: rng, TopN: topN})
	if warn := snap.Warning(); warn != nil {
		slog.WarnContext(ctx, "Dashboard built from partial data", "user_id", userID, "warning", warn)
	}
	return snap, nil
}

// WriteCategoryCSV writes the category breakdown of the snapshot as CSV and
// reports the currency it is expressed in.
func (s *DashboardService) WriteCategoryCSV(ctx context.Context, w io.Writer, userID string, q DashboardQuery) (core.Currency, error) {
	snap, err := s.Snapshot(ctx, userID, q)
	if err != nil {
		return "", err
	}
	if err := ledger.WriteCSV(w, snap.Categories); err != nil {
		return "", err
	}
	return snap.Currency, nil
}

// resolve picks the currency and date range. Named windows are evaluated in
// the user's time zone.
func (s *DashboardService) resolve(p core.Profile, q DashboardQuery) (core.Currency, core.DateRange, error) {
	currency := q.Currency
	if currency == "" {
		currency = p.CurrencyPreference
	}
	if currency == "" {
		currency = s.reporting
	}
	if !currency.IsSupported() {
		return "", core.DateRange{}, core.NewValidationError("currency", core.ErrUnsupportedCurrency)
	}

	if !q.Range.IsUnbounded() {
		if err := q.Range.Validate(); err != nil {
			return "", core.DateRange{}, err
		}
		return currency, q.Range, nil
	}
	now := s.now()
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			now = now.In(loc)
		}
	}
	rng, err := q.Window.Range(now)
	if err != nil {
		return "", core.DateRange{}, err
	}
	return currency, rng, nil
}

// loadAll fetches every kind concurrently, serving each from the cache
// when possible.
func (s *DashboardService) loadAll(ctx context.Context, userID string) ([]core.Record, error) {
	kinds := core.Kinds()
	results := make([][]core.Record, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			recs, err := s.load(gctx, userID, kind)
			if err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []core.Record
	for _, recs := range results {
		all = append(all, recs...)
	}
	return all, nil
}

func (s *DashboardService) load(ctx context.Context, userID string, kind core.Kind) ([]core.Record, error) {
	key := cacheKey(userID, kind)
	if recs, ok := s.cache.Get(key); ok {
		return recs, nil
	}
	recs, err := s.records.ListRecords(ctx, userID, kind, core.AllTime)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, recs)
	return recs, nil
}

// Invalidate drops the cached records of one kind for userID.
func (s *DashboardService) Invalidate(userID string, kind core.Kind) {
	s.cache.Delete(cacheKey(userID, kind))
}

// InvalidateUser drops every cached list for userID.
func (s *DashboardService) InvalidateUser(userID string) {
	s.cache.DeletePrefix(userID + ":")
}

func cacheKey(userID string, kind core.Kind) string {
	return userID + ":" + string(kind)
}
