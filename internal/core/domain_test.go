package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validIncome() Record {
	return Record{
		Kind:       KindIncome,
		Amount:     dec("1000"),
		Currency:   USD,
		OccurredOn: NewDate(2025, 1, 15),
		Category:   "Salary",
		Income:     &IncomeDetails{Source: "ACME", IsRecurring: true, Frequency: FrequencyMonthly},
	}
}

func TestRecordValidate(t *testing.T) {
	good := validIncome()
	good.RateAtEntry = decimal.NewNullDecimal(dec("83"))
	good.RateQuote = INR
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutations := []func(r *Record){
		func(r *Record) { r.Kind = "bonus" },
		func(r *Record) { r.Currency = "JPY" },
		func(r *Record) { r.Amount = dec("0") },
		func(r *Record) { r.OccurredOn = Date{} },
		func(r *Record) { r.Income = nil },
		func(r *Record) { r.Income.Source = " " },
		func(r *Record) { r.Income.Frequency = FrequencyOnce },
		func(r *Record) { r.RateAtEntry = decimal.NewNullDecimal(dec("-1")) },
		func(r *Record) { r.RateQuote = USD },
		func(r *Record) { r.Category = string(make([]byte, MaxCategoryLength+1)) },
	}
	for i, mutate := range mutations {
		r := good
		inc := *good.Income
		r.Income = &inc
		mutate(&r)
		err := r.Validate()
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestRecordNormalizeLoan(t *testing.T) {
	r := Record{
		Kind:       KindLoan,
		Currency:   INR,
		OccurredOn: NewDate(2024, 6, 1),
		Loan:       &LoanDetails{Name: "Home", Principal: dec("100000"), CurrentBalance: dec("0")},
	}
	r.Normalize()
	if r.Loan.Status != LoanPaidOff || !r.Amount.IsZero() {
		t.Fatalf("expected paid_off with mirrored amount, got %s/%s", r.Loan.Status, r.Amount)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("normalized loan should validate: %v", err)
	}

	r.Loan.CurrentBalance = dec("10")
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("stale amount/status should be rejected, got %v", err)
	}
}

func TestRecordTransferRequiresRateAcrossCurrencies(t *testing.T) {
	r := Record{
		Kind:       KindTransfer,
		Amount:     dec("500"),
		Currency:   USD,
		OccurredOn: NewDate(2025, 3, 3),
		Transfer: &TransferDetails{
			RecipientName:    "Mum",
			RecipientCountry: "IN",
			ReceivedCurrency: INR,
			Status:           TransferCompleted,
		},
	}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected missing rate error, got %v", err)
	}
	r.RateAtEntry = decimal.NewNullDecimal(dec("83.1"))
	r.Normalize()
	if r.RateQuote != INR {
		t.Fatalf("transfer rate should be quoted in received currency, got %q", r.RateQuote)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestRecordScheduledPaymentFrequency(t *testing.T) {
	r := Record{
		Kind:       KindScheduledPayment,
		Amount:     dec("20"),
		Currency:   EUR,
		OccurredOn: NewDate(2025, 5, 1),
		Payment:    &PaymentDetails{Name: "Gym", IsRecurring: true, Frequency: FrequencyMonthly, ReminderDays: 3},
	}
	r.Normalize()
	if r.Payment.Status != PaymentPending {
		t.Fatalf("expected default pending status, got %q", r.Payment.Status)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	r.Payment.Frequency = FrequencyOnce
	if err := r.Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("recurring payment with once frequency should fail, got %v", err)
	}
}

func TestCategoryOrDefault(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindIncome, DefaultIncomeCategory},
		{KindExpense, DefaultExpenseCategory},
		{KindScheduledPayment, DefaultExpenseCategory},
		{KindTransfer, DefaultExpenseCategory},
	}
	for _, tt := range tests {
		if got := (Record{Kind: tt.kind, Category: "  "}).CategoryOrDefault(); got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.kind, tt.want, got)
		}
	}
	if got := (Record{Category: "Rent"}).CategoryOrDefault(); got != "Rent" {
		t.Fatalf("expected Rent, got %q", got)
	}
}

func TestProfileValidate(t *testing.T) {
	if err := (Profile{CurrencyPreference: INR, Timezone: "UTC"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Profile{CurrencyPreference: "XYZ"}).Validate(); err == nil {
		t.Fatalf("expected error for unsupported currency")
	}
	if err := (Profile{Timezone: "Mars/Olympus"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}
