package core

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LoanPayment is one instalment against a loan. Only Principal moves the
// loan balance; Interest is tracked for reporting.
type LoanPayment struct {
	ID        string          `json:"id"`
	LoanID    string          `json:"loan_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Principal decimal.Decimal `json:"principal_amount"`
	Interest  decimal.Decimal `json:"interest_amount"`
	PaidOn    Date            `json:"payment_date"`
	Method    string          `json:"payment_method,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (p LoanPayment) Validate() error {
	if p.Principal.IsNegative() {
		return NewValidationError("principal_amount", ErrInvalidAmount)
	}
	if p.Interest.IsNegative() {
		return NewValidationError("interest_amount", ErrInvalidAmount)
	}
	if !p.Amount.IsPositive() {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	if !p.Amount.Equal(p.Principal.Add(p.Interest)) {
		return NewValidationError("amount", ErrPaymentMismatch)
	}
	if err := p.PaidOn.Validate(); err != nil {
		return NewValidationError("payment_date", err)
	}
	if len(p.Notes) > MaxDescriptionLength {
		return NewValidationError("notes", ErrTooLong)
	}
	return nil
}

// ApplyPayment reduces the balance by principal. A principal larger than the
// balance is rejected and leaves the loan unchanged.
func (l *LoanDetails) ApplyPayment(principal decimal.Decimal) error {
	if principal.IsNegative() {
		return NewValidationError("principal_amount", ErrInvalidAmount)
	}
	if principal.GreaterThan(l.CurrentBalance) {
		return NewValidationError("principal_amount", ErrOverpayment)
	}
	l.CurrentBalance = l.CurrentBalance.Sub(principal)
	l.syncStatus()
	return nil
}

// AdjustPayment moves the balance by the difference between an edited
// payment's old and new principal.
func (l *LoanDetails) AdjustPayment(oldPrincipal, newPrincipal decimal.Decimal) error {
	if oldPrincipal.IsNegative() || newPrincipal.IsNegative() {
		return NewValidationError("principal_amount", ErrInvalidAmount)
	}
	delta := newPrincipal.Sub(oldPrincipal)
	if delta.GreaterThan(l.CurrentBalance) {
		return NewValidationError("principal_amount", ErrOverpayment)
	}
	l.CurrentBalance = l.CurrentBalance.Sub(delta)
	l.syncStatus()
	return nil
}

// RevertPayment restores principal to the balance after a payment is deleted.
func (l *LoanDetails) RevertPayment(principal decimal.Decimal) error {
	if principal.IsNegative() {
		return NewValidationError("principal_amount", ErrInvalidAmount)
	}
	l.CurrentBalance = l.CurrentBalance.Add(principal)
	l.syncStatus()
	return nil
}

// Progress is the share of principal repaid, in percent. A zero principal
// has zero progress.
func (l LoanDetails) Progress() decimal.Decimal {
	if !l.Principal.IsPositive() {
		return decimal.Zero
	}
	return l.Principal.Sub(l.CurrentBalance).Div(l.Principal).Mul(hundred)
}

func (l LoanDetails) expectedStatus() LoanStatus {
	if l.CurrentBalance.IsZero() {
		return LoanPaidOff
	}
	return LoanActive
}

func (l *LoanDetails) syncStatus() {
	l.Status = l.expectedStatus()
}
