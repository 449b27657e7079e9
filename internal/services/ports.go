// Package services orchestrates the domain packages: it validates and
// persists records, keeps caches and the mirror in step, and assembles the
// dashboard.
package services

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// RecordStore persists money records. *storage.SQLiteRepository implements it.
type RecordStore interface {
	ListRecords(ctx context.Context, userID string, kind core.Kind, rng core.DateRange) ([]core.Record, error)
	GetRecord(ctx context.Context, userID, id string) (core.Record, error)
	InsertRecord(ctx context.Context, rec core.Record) (core.Record, error)
	UpdateRecord(ctx context.Context, rec core.Record) (core.Record, error)
	DeleteRecord(ctx context.Context, userID, id string) error
}

// LoanStore applies loan payments together with the loan balance.
type LoanStore interface {
	ListLoanPayments(ctx context.Context, userID, loanID string) ([]core.LoanPayment, error)
	InsertLoanPayment(ctx context.Context, p core.LoanPayment) (core.LoanPayment, core.Record, error)
	UpdateLoanPayment(ctx context.Context, p core.LoanPayment) (core.LoanPayment, core.Record, error)
	DeleteLoanPayment(ctx context.Context, userID, paymentID string) (core.LoanPayment, core.Record, error)
}

// PendingPayments finds scheduled payments across all users.
type PendingPayments interface {
	ListPendingPaymentsDueBefore(ctx context.Context, before core.Date) ([]core.Record, error)
}

// PaymentStore settles scheduled payments. SettlePayment marks a pending
// payment paid and inserts its next occurrence atomically, reporting
// core.ErrAlreadySettled when the payment was settled meanwhile.
type PaymentStore interface {
	PendingPayments
	SettlePayment(ctx context.Context, paid core.Record, next *core.Record) (core.Record, *core.Record, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (core.Profile, error)
	UpsertProfile(ctx context.Context, p core.Profile) (core.Profile, error)
}

type RateStore interface {
	SaveRates(ctx context.Context, s storage.RateSnapshot) error
	LatestRates(ctx context.Context, base core.Currency) (storage.RateSnapshot, error)
}

// Publisher announces record changes. *amqp.Client implements it.
type Publisher interface {
	PublishRecordChanged(ctx context.Context, userID, kind, id string, op amqp.Op) error
}

// Invalidator drops cached state derived from a user's records of one kind.
type Invalidator interface {
	Invalidate(userID string, kind core.Kind)
}

var (
	_ RecordStore     = (*storage.SQLiteRepository)(nil)
	_ LoanStore       = (*storage.SQLiteRepository)(nil)
	_ PendingPayments = (*storage.SQLiteRepository)(nil)
	_ PaymentStore    = (*storage.SQLiteRepository)(nil)
	_ ProfileStore    = (*storage.SQLiteRepository)(nil)
	_ RateStore       = (*storage.SQLiteRepository)(nil)
	_ Publisher       = (*amqp.Client)(nil)
)
