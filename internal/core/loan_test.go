package core

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLoan(principal string) *LoanDetails {
	l := &LoanDetails{Name: "Car", Principal: dec(principal), CurrentBalance: dec(principal)}
	l.syncStatus()
	return l
}

func TestLoanPaymentThenDeleteRestoresBalance(t *testing.T) {
	l := newLoan("100000")
	p := LoanPayment{Amount: dec("35000"), Principal: dec("30000"), Interest: dec("5000"), PaidOn: NewDate(2025, 2, 1)}
	if err := p.Validate(); err != nil {
		t.Fatalf("payment should be valid: %v", err)
	}

	if err := l.ApplyPayment(p.Principal); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !l.CurrentBalance.Equal(dec("70000")) {
		t.Fatalf("expected 70000 after payment, got %s", l.CurrentBalance)
	}

	if err := l.RevertPayment(p.Principal); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if !l.CurrentBalance.Equal(dec("100000")) {
		t.Fatalf("expected balance restored to 100000, got %s", l.CurrentBalance)
	}
	if l.Status != LoanActive {
		t.Fatalf("expected active, got %s", l.Status)
	}
}

func TestLoanPaidOffAndReversal(t *testing.T) {
	l := newLoan("500")
	if err := l.ApplyPayment(dec("500")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.Status != LoanPaidOff || !l.CurrentBalance.IsZero() {
		t.Fatalf("expected paid_off at zero, got %s/%s", l.Status, l.CurrentBalance)
	}
	// Correcting the payment down re-opens the loan.
	if err := l.AdjustPayment(dec("500"), dec("450")); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if l.Status != LoanActive || !l.CurrentBalance.Equal(dec("50")) {
		t.Fatalf("expected active with 50, got %s/%s", l.Status, l.CurrentBalance)
	}
}

func TestLoanRejectsOverpayment(t *testing.T) {
	l := newLoan("100")
	err := l.ApplyPayment(dec("100.01"))
	if !errors.Is(err, ErrOverpayment) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected overpayment validation error, got %v", err)
	}
	if !l.CurrentBalance.Equal(dec("100")) {
		t.Fatalf("rejected payment must not change balance, got %s", l.CurrentBalance)
	}

	if err := l.ApplyPayment(dec("60")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := l.AdjustPayment(dec("60"), dec("101")); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected overpayment on adjust, got %v", err)
	}
	if !l.CurrentBalance.Equal(dec("40")) {
		t.Fatalf("rejected adjust must not change balance, got %s", l.CurrentBalance)
	}
}

func TestLoanInterestNeverMovesBalance(t *testing.T) {
	l := newLoan("1000")
	p := LoanPayment{Amount: dec("150"), Principal: dec("100"), Interest: dec("50"), PaidOn: NewDate(2025, 1, 1)}
	if err := l.ApplyPayment(p.Principal); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !l.CurrentBalance.Equal(dec("900")) {
		t.Fatalf("expected 900, got %s", l.CurrentBalance)
	}
}

// Random insert/edit/delete sequences keep the balance non-negative and the
// status consistent with it after every step.
func TestLoanBalanceInvariantsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		l := newLoan("1000")
		var payments []decimal.Decimal
		for step := 0; step < 50; step++ {
			switch op := rng.Intn(3); {
			case op == 0 || len(payments) == 0:
				p := decimal.NewFromInt(int64(rng.Intn(400)))
				if err := l.ApplyPayment(p); err == nil {
					payments = append(payments, p)
				} else if !errors.Is(err, ErrOverpayment) {
					t.Fatalf("unexpected error: %v", err)
				}
			case op == 1:
				i := rng.Intn(len(payments))
				np := decimal.NewFromInt(int64(rng.Intn(400)))
				if err := l.AdjustPayment(payments[i], np); err == nil {
					payments[i] = np
				}
			default:
				i := rng.Intn(len(payments))
				if err := l.RevertPayment(payments[i]); err != nil {
					t.Fatalf("revert: %v", err)
				}
				payments = append(payments[:i], payments[i+1:]...)
			}

			if l.CurrentBalance.IsNegative() {
				t.Fatalf("run %d step %d: negative balance %s", run, step, l.CurrentBalance)
			}
			if (l.Status == LoanPaidOff) != l.CurrentBalance.IsZero() {
				t.Fatalf("run %d step %d: status %s with balance %s", run, step, l.Status, l.CurrentBalance)
			}
			paid := decimal.Zero
			for _, p := range payments {
				paid = paid.Add(p)
			}
			if !l.CurrentBalance.Equal(dec("1000").Sub(paid)) {
				t.Fatalf("run %d step %d: balance %s does not match payments %s", run, step, l.CurrentBalance, paid)
			}
		}
	}
}

func TestLoanPaymentValidate(t *testing.T) {
	bads := []LoanPayment{
		{Amount: dec("100"), Principal: dec("80"), Interest: dec("10"), PaidOn: NewDate(2025, 1, 1)},
		{Amount: dec("0"), Principal: dec("0"), Interest: dec("0"), PaidOn: NewDate(2025, 1, 1)},
		{Amount: dec("10"), Principal: dec("-5"), Interest: dec("15"), PaidOn: NewDate(2025, 1, 1)},
		{Amount: dec("10"), Principal: dec("10"), Interest: dec("0")},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestLoanProgress(t *testing.T) {
	cases := []struct {
		principal, balance, want string
	}{
		{"100000", "70000", "30"},
		{"1000", "0", "100"},
		{"0", "0", "0"},
		{"200", "200", "0"},
	}
	for _, tc := range cases {
		l := LoanDetails{Principal: dec(tc.principal), CurrentBalance: dec(tc.balance)}
		if got := l.Progress(); !got.Equal(dec(tc.want)) {
			t.Fatalf("%s/%s: expected %s, got %s", tc.principal, tc.balance, tc.want, got)
		}
	}
}
