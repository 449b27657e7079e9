package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxCategoryLength    = 50
	MaxReminderDays      = 30

	// Records saved without a category are grouped by direction so
	// uncategorized inflows never net against uncategorized outflows.
	DefaultIncomeCategory  = "Other Income"
	DefaultExpenseCategory = "Other Expenses"
)

// Kind discriminates the variants of Record.
type Kind string

const (
	KindIncome           Kind = "income"
	KindLoan             Kind = "loan"
	KindTransfer         Kind = "transfer"
	KindScheduledPayment Kind = "scheduled_payment"
	KindExpense          Kind = "expense"
)

var allKinds = []Kind{KindIncome, KindLoan, KindTransfer, KindScheduledPayment, KindExpense}

// Kinds returns every record kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

func (k Kind) Valid() bool {
	for _, v := range allKinds {
		if k == v {
			return true
		}
	}
	return false
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// Frequency is the recurrence of incomes and scheduled payments.
type Frequency string

const (
	FrequencyOnce      Frequency = "once"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Next returns the occurrence after d. A one-off frequency has none.
func (f Frequency) Next(d Date) (Date, bool) {
	switch f {
	case FrequencyWeekly:
		return d.AddDays(7), true
	case FrequencyMonthly:
		return d.AddMonths(1), true
	case FrequencyQuarterly:
		return d.AddMonths(3), true
	case FrequencyYearly:
		return d.AddMonths(12), true
	default:
		return Date{}, false
	}
}

type LoanStatus string

const (
	LoanActive  LoanStatus = "active"
	LoanPaidOff LoanStatus = "paid_off"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

func (s TransferStatus) Valid() bool {
	return s == TransferPending || s == TransferCompleted || s == TransferFailed
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid
}

// IncomeDetails are the income-only fields of a Record.
type IncomeDetails struct {
	Source      string    `json:"source"`
	IsRecurring bool      `json:"is_recurring"`
	Frequency   Frequency `json:"recurring_frequency,omitempty"`
}

// LoanDetails are the loan-only fields of a Record. The record Amount
// mirrors CurrentBalance.
type LoanDetails struct {
	Name           string          `json:"name"`
	Lender         string          `json:"lender"`
	LoanType       string          `json:"loan_type"`
	Principal      decimal.Decimal `json:"principal"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	EndDate        Date            `json:"end_date"`
	Status         LoanStatus      `json:"status"`
}

// TransferDetails are the transfer-only fields. Amount sent is the record
// Amount and the exchange rate is the record RateAtEntry quoted in
// ReceivedCurrency.
type TransferDetails struct {
	RecipientName    string          `json:"recipient_name"`
	RecipientCountry string          `json:"recipient_country"`
	AmountReceived   decimal.Decimal `json:"amount_received"`
	ReceivedCurrency Currency        `json:"received_currency"`
	FeeAmount        decimal.Decimal `json:"fee_amount"`
	Method           string          `json:"transfer_method"`
	Purpose          string          `json:"purpose"`
	Status           TransferStatus  `json:"status"`
	ReferenceNumber  string          `json:"reference_number"`
}

// PaymentDetails are the scheduled-payment fields. The due date is the
// record OccurredOn.
type PaymentDetails struct {
	Name         string        `json:"name"`
	Recipient    string        `json:"recipient"`
	IsRecurring  bool          `json:"is_recurring"`
	Frequency    Frequency     `json:"frequency"`
	AutoPay      bool          `json:"auto_pay"`
	ReminderDays int           `json:"reminder_days"`
	Status       PaymentStatus `json:"status"`
}

// ExpenseDetails are the monthly-expense fields.
type ExpenseDetails struct {
	Name          string `json:"name"`
	PaymentMethod string `json:"payment_method"`
}

// Record is one money record owned by a user. Exactly one of the detail
// pointers is set, matching Kind.
type Record struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Kind        Kind                `json:"kind"`
	Amount      decimal.Decimal     `json:"amount"`
	Currency    Currency            `json:"currency"`
	OccurredOn  Date                `json:"occurred_on"`
	Category    string              `json:"category,omitempty"`
	Description string              `json:"description,omitempty"`
	RateAtEntry decimal.NullDecimal `json:"rate_at_entry"`
	RateQuote   Currency            `json:"rate_quote,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	Income   *IncomeDetails   `json:"income,omitempty"`
	Loan     *LoanDetails     `json:"loan,omitempty"`
	Transfer *TransferDetails `json:"transfer,omitempty"`
	Payment  *PaymentDetails  `json:"payment,omitempty"`
	Expense  *ExpenseDetails  `json:"expense,omitempty"`
}

// HistoricalRate returns the rate stored at entry and the currency it
// converts into.
func (r Record) HistoricalRate() (decimal.Decimal, Currency, bool) {
	if !r.RateAtEntry.Valid || r.RateQuote == "" {
		return decimal.Zero, "", false
	}
	return r.RateAtEntry.Decimal, r.RateQuote, true
}

// CategoryOrDefault returns the category, or the default for the record's
// direction when unset.
func (r Record) CategoryOrDefault() string {
	if c := strings.TrimSpace(r.Category); c != "" {
		return c
	}
	if r.Kind == KindIncome {
		return DefaultIncomeCategory
	}
	return DefaultExpenseCategory
}

// Normalize derives the fields that mirror others: a loan's Amount and
// status follow its balance, a transfer's rate is quoted in the received
// currency.
func (r *Record) Normalize() {
	r.Category = strings.TrimSpace(r.Category)
	r.Description = strings.TrimSpace(r.Description)
	switch r.Kind {
	case KindLoan:
		if r.Loan != nil {
			r.Loan.syncStatus()
			r.Amount = r.Loan.CurrentBalance
		}
	case KindTransfer:
		if r.Transfer != nil && r.RateAtEntry.Valid {
			r.RateQuote = r.Transfer.ReceivedCurrency
		}
	case KindScheduledPayment:
		if r.Payment != nil && r.Payment.Status == "" {
			r.Payment.Status = PaymentPending
		}
	}
}

// Validate checks field-level constraints. Rate bounds depend on reference
// rates and are checked by the conversion service.
func (r Record) Validate() error {
	if !r.Kind.Valid() {
		return NewValidationError("kind", ErrInvalidKind)
	}
	if !r.Currency.IsSupported() {
		return NewValidationError("currency", ErrUnsupportedCurrency)
	}
	if err := r.OccurredOn.Validate(); err != nil {
		return NewValidationError("occurred_on", err)
	}
	if len(r.Category) > MaxCategoryLength {
		return NewValidationError("category", ErrTooLong)
	}
	if len(r.Description) > MaxDescriptionLength {
		return NewValidationError("description", ErrTooLong)
	}
	if r.RateAtEntry.Valid {
		if !r.RateAtEntry.Decimal.IsPositive() {
			return NewValidationError("rate_at_entry", ErrInvalidRate)
		}
		if !r.RateQuote.IsSupported() {
			return NewValidationError("rate_quote", ErrUnsupportedCurrency)
		}
		if r.RateQuote == r.Currency {
			return NewValidationError("rate_quote", ErrUnsupportedPair)
		}
	}

	switch r.Kind {
	case KindIncome:
		return r.validateIncome()
	case KindLoan:
		return r.validateLoan()
	case KindTransfer:
		return r.validateTransfer()
	case KindScheduledPayment:
		return r.validatePayment()
	case KindExpense:
		return r.validateExpense()
	}
	return nil
}

func (r Record) validateIncome() error {
	if r.Income == nil {
		return NewValidationError("income", ErrInvalidKind)
	}
	if !r.Amount.IsPositive() {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	if err := validateName("source", r.Income.Source); err != nil {
		return err
	}
	if r.Income.IsRecurring {
		if !r.Income.Frequency.Valid() || r.Income.Frequency == FrequencyOnce {
			return NewValidationError("recurring_frequency", ErrInvalidFrequency)
		}
	}
	return nil
}

func (r Record) validateLoan() error {
	l := r.Loan
	if l == nil {
		return NewValidationError("loan", ErrInvalidKind)
	}
	if err := validateName("name", l.Name); err != nil {
		return err
	}
	if l.Principal.IsNegative() {
		return NewValidationError("principal", ErrInvalidAmount)
	}
	if l.CurrentBalance.IsNegative() {
		return NewValidationError("current_balance", ErrInvalidAmount)
	}
	if l.InterestRate.IsNegative() || l.MonthlyPayment.IsNegative() {
		return NewValidationError("interest_rate", ErrInvalidAmount)
	}
	if !r.Amount.Equal(l.CurrentBalance) {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	if l.Status != l.expectedStatus() {
		return NewValidationError("status", ErrInvalidStatus)
	}
	if r.RateAtEntry.Valid {
		return NewValidationError("rate_at_entry", ErrInvalidRate)
	}
	return nil
}

func (r Record) validateTransfer() error {
	t := r.Transfer
	if t == nil {
		return NewValidationError("transfer", ErrInvalidKind)
	}
	if !r.Amount.IsPositive() {
		return NewValidationError("amount_sent", ErrInvalidAmount)
	}
	if err := validateName("recipient_name", t.RecipientName); err != nil {
		return err
	}
	if !t.ReceivedCurrency.IsSupported() {
		return NewValidationError("received_currency", ErrUnsupportedCurrency)
	}
	if t.AmountReceived.IsNegative() || t.FeeAmount.IsNegative() {
		return NewValidationError("amount_received", ErrInvalidAmount)
	}
	if !t.Status.Valid() {
		return NewValidationError("status", ErrInvalidStatus)
	}
	if t.ReceivedCurrency != r.Currency && !r.RateAtEntry.Valid {
		return NewValidationError("exchange_rate", ErrInvalidRate)
	}
	return nil
}

func (r Record) validatePayment() error {
	p := r.Payment
	if p == nil {
		return NewValidationError("payment", ErrInvalidKind)
	}
	if !r.Amount.IsPositive() {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	if err := validateName("name", p.Name); err != nil {
		return err
	}
	if !p.Frequency.Valid() {
		return NewValidationError("frequency", ErrInvalidFrequency)
	}
	if p.IsRecurring == (p.Frequency == FrequencyOnce) {
		return NewValidationError("frequency", ErrInvalidFrequency)
	}
	if p.ReminderDays < 0 || p.ReminderDays > MaxReminderDays {
		return NewValidationError("reminder_days", ErrInvalidAmount)
	}
	if !p.Status.Valid() {
		return NewValidationError("status", ErrInvalidStatus)
	}
	return nil
}

func (r Record) validateExpense() error {
	if r.Expense == nil {
		return NewValidationError("expense", ErrInvalidKind)
	}
	if !r.Amount.IsPositive() {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	return validateName("name", r.Expense.Name)
}

func validateName(field, s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return NewValidationError(field, ErrEmptyName)
	}
	if len(s) > MaxNameLength {
		return NewValidationError(field, ErrTooLong)
	}
	return nil
}

// Profile holds per-user preferences.
type Profile struct {
	UserID             string    `json:"user_id"`
	Email              string    `json:"email"`
	FullName           string    `json:"full_name"`
	CurrencyPreference Currency  `json:"currency_preference"`
	Timezone           string    `json:"timezone"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (p Profile) Validate() error {
	if len(p.FullName) > MaxNameLength {
		return NewValidationError("full_name", ErrTooLong)
	}
	if p.CurrencyPreference != "" && !p.CurrencyPreference.IsSupported() {
		return NewValidationError("currency_preference", ErrUnsupportedCurrency)
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return NewValidationError("timezone", err)
		}
	}
	return nil
}
