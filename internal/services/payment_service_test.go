package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/fx"
	"fintrack/internal/storage"
)

func newPayments(t *testing.T) (*PaymentService, *storage.SQLiteRepository) {
	t.Helper()
	repo := newRepo(t)
	ledger := NewLedgerService(repo, repo, fx.NewConverter(nil, 0), core.INR)
	return NewPaymentService(ledger, repo), repo
}

func insertPayment(t *testing.T, repo *storage.SQLiteRepository, rec core.Record) core.Record {
	t.Helper()
	rec.ID = ""
	saved, err := repo.InsertRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("insert payment: %v", err)
	}
	return saved
}

func TestMarkPaidRollsRecurringForward(t *testing.T) {
	ctx := context.Background()
	svc, repo := newPayments(t)
	rent := insertPayment(t, repo, payment("", "u1", core.NewDate(2025, 1, 31), core.FrequencyMonthly))

	paid, next, err := svc.MarkPaid(ctx, "u1", rent.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Payment.Status != core.PaymentPaid {
		t.Fatalf("expected paid, got %s", paid.Payment.Status)
	}
	if next == nil {
		t.Fatalf("expected next occurrence")
	}
	if next.ID == rent.ID || next.Payment.Status != core.PaymentPending {
		t.Fatalf("unexpected next occurrence %+v", next.Payment)
	}
	if got := next.OccurredOn.String(); got != "2025-02-28" {
		t.Fatalf("expected next due 2025-02-28, got %s", got)
	}

	again, none, err := svc.MarkPaid(ctx, "u1", rent.ID)
	if err != nil || none != nil || again.Payment.Status != core.PaymentPaid {
		t.Fatalf("second mark paid should be a no-op, got %v %v", none, err)
	}
}

func TestMarkPaidOneOff(t *testing.T) {
	svc, repo := newPayments(t)
	once := insertPayment(t, repo, payment("", "u1", core.NewDate(2025, 8, 1), core.FrequencyOnce))

	_, next, err := svc.MarkPaid(context.Background(), "u1", once.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if next != nil {
		t.Fatalf("one-off payment must not recur, got %+v", next)
	}
}

func TestMarkPaidWrongKindOrUser(t *testing.T) {
	ctx := context.Background()
	svc, repo := newPayments(t)
	exp, err := repo.InsertRecord(ctx, expenseRecord("u1", "10", core.INR, core.NewDate(2025, 8, 1), "Food"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := svc.MarkPaid(ctx, "u1", exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for expense, got %v", err)
	}
	rent := insertPayment(t, repo, payment("", "u1", core.NewDate(2025, 8, 1), core.FrequencyOnce))
	if _, _, err := svc.MarkPaid(ctx, "u2", rent.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
}

func TestProcessAutoPay(t *testing.T) {
	ctx := context.Background()
	svc, repo := newPayments(t)

	dueToday := payment("", "u1", core.DateOf(testNow), core.FrequencyMonthly)
	dueToday.Payment.AutoPay = true
	overdue := payment("", "u2", core.NewDate(2025, 8, 1), core.FrequencyOnce)
	overdue.Payment.AutoPay = true
	future := payment("", "u1", core.NewDate(2025, 8, 20), core.FrequencyOnce)
	future.Payment.AutoPay = true
	manual := payment("", "u1", core.NewDate(2025, 8, 10), core.FrequencyOnce)

	for _, p := range []core.Record{dueToday, overdue, future, manual} {
		insertPayment(t, repo, p)
	}

	n, err := svc.ProcessAutoPay(ctx, testNow)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 settled, got %d", n)
	}

	pending, err := repo.ListPendingPaymentsDueBefore(ctx, core.NewDate(2026, 1, 1))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	dues := map[string]bool{}
	for _, p := range pending {
		dues[p.OccurredOn.String()] = true
	}
	for _, want := range []string{"2025-08-10", "2025-08-20", "2025-09-15"} {
		if !dues[want] {
			t.Fatalf("expected pending payment due %s, have %v", want, dues)
		}
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending payments, got %d", len(pending))
	}

	n, _ = svc.ProcessAutoPay(ctx, testNow)
	if n != 0 {
		t.Fatalf("second run should settle nothing, got %d", n)
	}
}

// failingSettleStore fails the next-occurrence write the way a storage
// error inside the settlement transaction would.
type failingSettleStore struct {
	*storage.SQLiteRepository
}

func (f failingSettleStore) SettlePayment(context.Context, core.Record, *core.Record) (core.Record, *core.Record, error) {
	return core.Record{}, nil, &core.PersistenceError{Op: "create next payment", Err: errors.New("disk full")}
}

func TestMarkPaidFailedSettlementLeavesPaymentPending(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	pub := &fakePublisher{}
	ledger := NewLedgerService(repo, repo, fx.NewConverter(nil, 0), core.INR, WithPublisher(pub))
	svc := NewPaymentService(ledger, failingSettleStore{repo})
	rent := insertPayment(t, repo, payment("", "u1", core.NewDate(2025, 1, 31), core.FrequencyMonthly))

	paid, next, err := svc.MarkPaid(ctx, "u1", rent.ID)
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if paid.ID != "" || next != nil {
		t.Fatalf("failed settlement must not report a paid payment, got %+v %+v", paid, next)
	}
	got, err := repo.GetRecord(ctx, "u1", rent.ID)
	if err != nil || got.Payment.Status != core.PaymentPending {
		t.Fatalf("payment should stay pending, got %v %+v", err, got.Payment)
	}
	if msgs := pub.sent(); len(msgs) != 0 {
		t.Fatalf("nothing committed, nothing should be published: %+v", msgs)
	}
}

func TestSettleStaleCopyCreatesOneSuccessor(t *testing.T) {
	ctx := context.Background()
	svc, repo := newPayments(t)
	rent := payment("", "u1", core.DateOf(testNow), core.FrequencyMonthly)
	rent.Payment.AutoPay = true
	rent = insertPayment(t, repo, rent)

	// Auto-pay listed the payment before the user marked it paid.
	stale, err := repo.ListPendingPaymentsDueBefore(ctx, core.DateOf(testNow).AddDays(1))
	if err != nil || len(stale) != 1 {
		t.Fatalf("list pending: %v %d", err, len(stale))
	}
	if _, next, err := svc.MarkPaid(ctx, "u1", rent.ID); err != nil || next == nil {
		t.Fatalf("mark paid: %v %v", next, err)
	}
	if _, _, err := svc.settle(ctx, stale[0]); !errors.Is(err, core.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled for the stale copy, got %v", err)
	}

	pending, err := repo.ListPendingPaymentsDueBefore(ctx, core.NewDate(2026, 1, 1))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected exactly one successor, got %d", len(pending))
	}
}
