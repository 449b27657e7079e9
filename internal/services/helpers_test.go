package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func payment(id, userID string, due core.Date, freq core.Frequency) core.Record {
	return core.Record{
		ID:         id,
		UserID:     userID,
		Kind:       core.KindScheduledPayment,
		Amount:     dec("1200"),
		Currency:   core.INR,
		OccurredOn: due,
		Category:   "Housing",
		Payment: &core.PaymentDetails{
			Name:        "Rent",
			Recipient:   "Landlord",
			IsRecurring: freq != core.FrequencyOnce,
			Frequency:   freq,
			Status:      core.PaymentPending,
		},
	}
}

func incomeRecord(userID, amount string, cur core.Currency, on core.Date) core.Record {
	return core.Record{
		UserID: userID, Kind: core.KindIncome, Amount: dec(amount), Currency: cur, OccurredOn: on,
		Category: "Salary", Income: &core.IncomeDetails{Source: "ACME"},
	}
}

func expenseRecord(userID, amount string, cur core.Currency, on core.Date, category string) core.Record {
	return core.Record{
		UserID: userID, Kind: core.KindExpense, Amount: dec(amount), Currency: cur, OccurredOn: on,
		Category: category, Expense: &core.ExpenseDetails{Name: category},
	}
}

func loanRecord(userID, principal string) core.Record {
	return core.Record{
		UserID: userID, Kind: core.KindLoan, Currency: core.INR, OccurredOn: core.NewDate(2024, 1, 1),
		Loan: &core.LoanDetails{Name: "Car", Lender: "Bank", Principal: dec(principal), CurrentBalance: dec(principal)},
	}
}

// stubProvider serves fixed tables per base currency.
type stubProvider struct {
	mu     sync.Mutex
	tables map[core.Currency]map[core.Currency]decimal.Decimal
	err    error
	calls  int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Latest(_ context.Context, base core.Currency) (map[core.Currency]decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	t, ok := p.tables[base]
	if !ok {
		return nil, errors.New("no table for " + string(base))
	}
	return t, nil
}

type published struct {
	userID, kind, id string
	op               amqp.Op
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishRecordChanged(_ context.Context, userID, kind, id string, op amqp.Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{userID, kind, id, op})
	return nil
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type invalidation struct {
	userID string
	kind   core.Kind
}

type fakeInvalidator struct {
	calls []invalidation
}

func (f *fakeInvalidator) Invalidate(userID string, kind core.Kind) {
	f.calls = append(f.calls, invalidation{userID, kind})
}

type fakeMailer struct {
	sent []Reminder
	err  error
}

func (m *fakeMailer) SendReminder(_ context.Context, r Reminder) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, r)
	return nil
}

var testNow = time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC)
