package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// PaymentService settles scheduled payments and rolls recurring ones
// forward to their next due date.
type PaymentService struct {
	ledger  *LedgerService
	store   PaymentStore
	autoPay DuenessChecker
}

func NewPaymentService(ledger *LedgerService, store PaymentStore) *PaymentService {
	return &PaymentService{
		ledger:  ledger,
		store:   store,
		autoPay: mustChecker(DueAutoPay),
	}
}

// MarkPaid settles the payment id. For a recurring payment the next
// occurrence is created as pending and returned as well. Marking a paid
// payment again is a no-op.
func (s *PaymentService) MarkPaid(ctx context.Context, userID, id string) (core.Record, *core.Record, error) {
	rec, err := s.ledger.Get(ctx, userID, core.KindScheduledPayment, id)
	if err != nil {
		return core.Record{}, nil, err
	}
	paid, next, err := s.settle(ctx, rec)
	if errors.Is(err, core.ErrAlreadySettled) {
		current, err := s.ledger.Get(ctx, userID, core.KindScheduledPayment, id)
		return current, nil, err
	}
	return paid, next, err
}

// settle marks rec paid and schedules its next occurrence in one write. It
// returns core.ErrAlreadySettled when another caller settled rec first.
func (s *PaymentService) settle(ctx context.Context, rec core.Record) (core.Record, *core.Record, error) {
	if rec.Payment.Status == core.PaymentPaid {
		return rec, nil, nil
	}

	paid := rec
	paidDetails := *rec.Payment
	paidDetails.Status = core.PaymentPaid
	paid.Payment = &paidDetails
	if err := s.ledger.prepare(ctx, &paid); err != nil {
		return core.Record{}, nil, err
	}

	var next *core.Record
	if due, ok := paid.Payment.Frequency.Next(paid.OccurredOn); paid.Payment.IsRecurring && ok {
		following := paid
		following.ID = ""
		following.OccurredOn = due
		nextDetails := *paid.Payment
		nextDetails.Status = core.PaymentPending
		following.Payment = &nextDetails
		if err := s.ledger.prepare(ctx, &following); err != nil {
			return core.Record{}, nil, fmt.Errorf("schedule next payment: %w", err)
		}
		next = &following
	}

	saved, created, err := s.store.SettlePayment(ctx, paid, next)
	if err != nil {
		return core.Record{}, nil, fmt.Errorf("settle payment %s: %w", rec.ID, err)
	}
	s.ledger.changed(ctx, saved, amqp.OpUpsert, log.OpUpdate)
	if created == nil {
		return saved, nil, nil
	}
	s.ledger.changed(ctx, *created, amqp.OpUpsert, log.OpCreate)

	slog.InfoContext(ctx, "Scheduled next recurring payment",
		"id", created.ID,
		"previous_id", saved.ID,
		"due", created.OccurredOn.String(),
		"frequency", created.Payment.Frequency)
	return saved, created, nil
}

// ProcessAutoPay settles every auto-pay payment due on or before today and
// returns how many were settled. One failing payment does not stop the
// others.
func (s *PaymentService) ProcessAutoPay(ctx context.Context, now time.Time) (int, error) {
	if s.ledger == nil || s.store == nil {
		return 0, fmt.Errorf("payment service not properly initialized")
	}
	today := core.DateOf(now)
	pending, err := s.store.ListPendingPaymentsDueBefore(ctx, today.AddDays(1))
	if err != nil {
		return 0, fmt.Errorf("list pending payments: %w", err)
	}

	processed := 0
	for _, rec := range pending {
		if !s.autoPay.IsDue(rec, today) {
			continue
		}
		_, _, err := s.settle(ctx, rec)
		if errors.Is(err, core.ErrAlreadySettled) {
			slog.DebugContext(ctx, "Scheduled payment settled elsewhere", "id", rec.ID)
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to auto-pay scheduled payment",
				"id", rec.ID,
				"user_id", rec.UserID,
				"error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Auto-pay processing complete",
		"processed", processed,
		"total_checked", len(pending),
		"processing_date", today.String())
	return processed, nil
}
