package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/fx"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// DefaultTransferCategory files transfers that arrive without a category.
const DefaultTransferCategory = "International Transfers"

// LedgerService validates and persists money records, then invalidates
// cached views and announces the change.
type LedgerService struct {
	records     RecordStore
	loans       LoanStore
	converter   *fx.Converter
	publisher   Publisher
	invalidator Invalidator
	reporting   core.Currency
	events      *log.StructuredLogger
}

// LedgerOption configures optional collaborators.
type LedgerOption func(*LedgerService)

// WithPublisher announces every change through p.
func WithPublisher(p Publisher) LedgerOption {
	return func(s *LedgerService) { s.publisher = p }
}

// WithInvalidator drops cached views after every change.
func WithInvalidator(i Invalidator) LedgerOption {
	return func(s *LedgerService) { s.invalidator = i }
}

func NewLedgerService(records RecordStore, loans LoanStore, converter *fx.Converter, reporting core.Currency, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		records:   records,
		loans:     loans,
		converter: converter,
		reporting: reporting,
		events:    log.NewStructuredLogger(log.New(log.Config{Component: log.ComponentLedger, Handler: slog.Default().Handler()})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) List(ctx context.Context, userID string, kind core.Kind, rng core.DateRange) ([]core.Record, error) {
	if !kind.Valid() {
		return nil, core.NewValidationError("kind", core.ErrInvalidKind)
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return s.records.ListRecords(ctx, userID, kind, rng)
}

// Get returns the record id of kind owned by userID.
func (s *LedgerService) Get(ctx context.Context, userID string, kind core.Kind, id string) (core.Record, error) {
	rec, err := s.records.GetRecord(ctx, userID, id)
	if err != nil {
		return core.Record{}, err
	}
	if rec.Kind != kind {
		return core.Record{}, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return rec, nil
}

// Create validates rec and stores it as a new record.
func (s *LedgerService) Create(ctx context.Context, rec core.Record) (core.Record, error) {
	rec.ID = ""
	if err := s.prepare(ctx, &rec); err != nil {
		return core.Record{}, err
	}
	saved, err := s.records.InsertRecord(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("save %s: %w", rec.Kind, err)
	}
	s.changed(ctx, saved, amqp.OpUpsert, log.OpCreate)
	return saved, nil
}

// Update replaces an existing record. The kind cannot change.
func (s *LedgerService) Update(ctx context.Context, rec core.Record) (core.Record, error) {
	if rec.ID == "" {
		return core.Record{}, fmt.Errorf("%s: %w", rec.Kind, core.ErrNotFound)
	}
	if err := s.prepare(ctx, &rec); err != nil {
		return core.Record{}, err
	}
	saved, err := s.records.UpdateRecord(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("update %s: %w", rec.Kind, err)
	}
	s.changed(ctx, saved, amqp.OpUpsert, log.OpUpdate)
	return saved, nil
}

// Delete removes the record id of kind. Deleting a loan removes its payments.
func (s *LedgerService) Delete(ctx context.Context, userID string, kind core.Kind, id string) error {
	rec, err := s.Get(ctx, userID, kind, id)
	if err != nil {
		return err
	}
	if err := s.records.DeleteRecord(ctx, userID, id); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	s.changed(ctx, rec, amqp.OpDelete, log.OpDelete)
	return nil
}

// prepare fills derived fields, then checks the record and its entry rate.
func (s *LedgerService) prepare(ctx context.Context, rec *core.Record) error {
	rec.Normalize()
	switch rec.Kind {
	case core.KindTransfer:
		if t := rec.Transfer; t != nil {
			if rec.Category == "" {
				rec.Category = DefaultTransferCategory
			}
			if t.Status == "" {
				t.Status = core.TransferPending
			}
			if t.AmountReceived.IsZero() {
				switch {
				case t.ReceivedCurrency == rec.Currency:
					t.AmountReceived = rec.Amount
				case rec.RateAtEntry.Valid:
					t.AmountReceived = core.RoundTo(rec.Amount.Mul(rec.RateAtEntry.Decimal), t.ReceivedCurrency)
				}
			}
		}
	case core.KindIncome:
		s.defaultIncomeRate(ctx, rec)
	}

	if err := rec.Validate(); err != nil {
		return err
	}
	if rate, quote, ok := rec.HistoricalRate(); ok {
		if err := fx.ValidateRate(rec.Currency, quote, rate); err != nil {
			return err
		}
	}
	return nil
}

// defaultIncomeRate records the live rate into the reporting currency for
// foreign income entered without one. A fixed fallback rate is never stored:
// the record stays unrated so later snapshots value it at the rate then
// current and report the fallback themselves.
func (s *LedgerService) defaultIncomeRate(ctx context.Context, rec *core.Record) {
	if rec.RateAtEntry.Valid || rec.Currency == s.reporting || !rec.Currency.IsSupported() || s.converter == nil {
		return
	}
	rate, fallback, err := s.converter.LiveRate(ctx, rec.Currency, s.reporting)
	if err != nil {
		return
	}
	if fallback {
		slog.WarnContext(ctx, "Live rate unavailable, income left without an entry rate",
			"currency", rec.Currency,
			"quote", s.reporting)
		return
	}
	rec.RateAtEntry.Decimal, rec.RateAtEntry.Valid = rate.Round(6), true
	rec.RateQuote = s.reporting
	slog.DebugContext(ctx, "Income rate defaulted",
		"currency", rec.Currency,
		"quote", s.reporting,
		"rate", rate.String())
}

func (s *LedgerService) ListLoanPayments(ctx context.Context, userID, loanID string) ([]core.LoanPayment, error) {
	if _, err := s.Get(ctx, userID, core.KindLoan, loanID); err != nil {
		return nil, err
	}
	return s.loans.ListLoanPayments(ctx, userID, loanID)
}

// AddLoanPayment records a payment and returns it with the updated loan.
func (s *LedgerService) AddLoanPayment(ctx context.Context, p core.LoanPayment) (core.LoanPayment, core.Record, error) {
	p.ID = ""
	if err := p.Validate(); err != nil {
		return core.LoanPayment{}, core.Record{}, err
	}
	saved, loan, err := s.loans.InsertLoanPayment(ctx, p)
	if err != nil {
		return core.LoanPayment{}, core.Record{}, fmt.Errorf("record loan payment: %w", err)
	}
	s.changed(ctx, loan, amqp.OpUpsert, log.OpUpdate)
	return saved, loan, nil
}

func (s *LedgerService) UpdateLoanPayment(ctx context.Context, p core.LoanPayment) (core.LoanPayment, core.Record, error) {
	if err := p.Validate(); err != nil {
		return core.LoanPayment{}, core.Record{}, err
	}
	saved, loan, err := s.loans.UpdateLoanPayment(ctx, p)
	if err != nil {
		return core.LoanPayment{}, core.Record{}, fmt.Errorf("update loan payment: %w", err)
	}
	s.changed(ctx, loan, amqp.OpUpsert, log.OpUpdate)
	return saved, loan, nil
}

// DeleteLoanPayment removes a payment and restores its principal.
func (s *LedgerService) DeleteLoanPayment(ctx context.Context, userID, paymentID string) (core.Record, error) {
	_, loan, err := s.loans.DeleteLoanPayment(ctx, userID, paymentID)
	if err != nil {
		return core.Record{}, fmt.Errorf("delete loan payment: %w", err)
	}
	s.changed(ctx, loan, amqp.OpUpsert, log.OpUpdate)
	return loan, nil
}

// HistoryQuery selects the currency and filters of a transaction history.
// An empty Currency uses the service's reporting currency.
type HistoryQuery struct {
	Currency core.Currency
	Filter   ledger.HistoryFilter
}

var historyKinds = []core.Kind{core.KindIncome, core.KindTransfer, core.KindScheduledPayment, core.KindExpense}

// History returns every movement of money for userID, newest first, with
// inflow and outflow totals in the requested currency.
func (s *LedgerService) History(ctx context.Context, userID string, q HistoryQuery) (ledger.History, error) {
	currency := q.Currency
	if currency == "" {
		currency = s.reporting
	}
	if !currency.IsSupported() {
		return ledger.History{}, core.NewValidationError("currency", core.ErrUnsupportedCurrency)
	}
	if q.Filter.Type != "" && !q.Filter.Type.Valid() {
		return ledger.History{}, core.NewValidationError("type", core.ErrInvalidKind)
	}
	if err := q.Filter.Range.Validate(); err != nil {
		return ledger.History{}, err
	}

	var entries []ledger.HistoryEntry
	for _, kind := range historyKinds {
		recs, err := s.records.ListRecords(ctx, userID, kind, q.Filter.Range)
		if err != nil {
			return ledger.History{}, fmt.Errorf("load %s history: %w", kind, err)
		}
		for _, r := range recs {
			if e, ok := ledger.RecordEntry(r); ok {
				entries = append(entries, e)
			}
		}
	}

	// Repayments are dated on their own, so every loan is scanned.
	loans, err := s.records.ListRecords(ctx, userID, core.KindLoan, core.DateRange{})
	if err != nil {
		return ledger.History{}, fmt.Errorf("load loans: %w", err)
	}
	for _, loan := range loans {
		payments, err := s.loans.ListLoanPayments(ctx, userID, loan.ID)
		if err != nil {
			return ledger.History{}, fmt.Errorf("load payments of loan %s: %w", loan.ID, err)
		}
		for _, p := range payments {
			entries = append(entries, ledger.LoanPaymentEntry(p, loan))
		}
	}

	book, err := s.converter.Book(ctx, currency)
	if err != nil {
		return ledger.History{}, err
	}
	h := ledger.BuildHistory(entries, book, q.Filter)
	if len(h.Skipped) > 0 {
		slog.WarnContext(ctx, "History built from partial data", "user_id", userID, "skipped", len(h.Skipped))
	}
	return h, nil
}

// changed runs the side effects of a committed write. Failures here never
// undo the write.
func (s *LedgerService) changed(ctx context.Context, rec core.Record, op amqp.Op, logOp string) {
	s.events.LogRecordChanged(ctx, logOp, rec.UserID, rec.ID, string(rec.Kind), rec.Amount.String(), string(rec.Currency))
	if s.invalidator != nil {
		s.invalidator.Invalidate(rec.UserID, rec.Kind)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChanged(ctx, rec.UserID, string(rec.Kind), rec.ID, op); err != nil {
		level := slog.LevelError
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Failed to publish record change", "id", rec.ID, "op", op, "error", err)
	}
}
