package storage

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
)

func newScheduled(user string, due core.Date) core.Record {
	return core.Record{
		UserID: user, Kind: core.KindScheduledPayment, Amount: dec("1200"), Currency: core.INR, OccurredOn: due,
		Payment: &core.PaymentDetails{Name: "Rent", IsRecurring: true, Frequency: core.FrequencyMonthly, Status: core.PaymentPending},
	}
}

// settled returns rec marked paid and its pending successor due on next.
func settled(rec core.Record, next core.Date) (core.Record, core.Record) {
	paid := rec
	p := *rec.Payment
	p.Status = core.PaymentPaid
	paid.Payment = &p

	following := rec
	following.ID = ""
	following.OccurredOn = next
	np := *rec.Payment
	following.Payment = &np
	return paid, following
}

func TestSettlePayment(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	rent, err := repo.InsertRecord(ctx, newScheduled("u1", core.NewDate(2025, 1, 31)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	paid, next := settled(rent, core.NewDate(2025, 2, 28))
	saved, created, err := repo.SettlePayment(ctx, paid, &next)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if saved.Payment.Status != core.PaymentPaid || created == nil || created.ID == "" || created.ID == rent.ID {
		t.Fatalf("unexpected settle result %+v %+v", saved.Payment, created)
	}
	got, err := repo.GetRecord(ctx, "u1", rent.ID)
	if err != nil || got.Payment.Status != core.PaymentPaid {
		t.Fatalf("stored payment not paid: %v %+v", err, got.Payment)
	}

	// A stale copy of the same pending payment must not settle twice.
	if _, _, err := repo.SettlePayment(ctx, paid, &next); !errors.Is(err, core.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
	pending, err := repo.ListPendingPaymentsDueBefore(ctx, core.NewDate(2026, 1, 1))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("expected only the next occurrence pending, got %+v", pending)
	}
}

func TestSettlePaymentRollsBackWhenNextFails(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	rent, err := repo.InsertRecord(ctx, newScheduled("u1", core.NewDate(2025, 1, 31)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	paid, next := settled(rent, core.NewDate(2025, 2, 28))
	next.ID = rent.ID // primary key conflict
	if _, _, err := repo.SettlePayment(ctx, paid, &next); !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	got, err := repo.GetRecord(ctx, "u1", rent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Payment.Status != core.PaymentPending {
		t.Fatalf("payment must stay pending after a failed settlement, got %s", got.Payment.Status)
	}
}

func TestSettlePaymentUnknown(t *testing.T) {
	repo := newTestRepo(t)
	rec := newScheduled("u1", core.NewDate(2025, 1, 31))
	rec.ID = "missing"
	paid, _ := settled(rec, core.NewDate(2025, 2, 28))
	if _, _, err := repo.SettlePayment(context.Background(), paid, nil); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
