package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/fx"

	"github.com/shopspring/decimal"
)

// EntryType labels one line of the transaction history.
type EntryType string

const (
	EntryIncome      EntryType = "income"
	EntryTransfer    EntryType = "transfer"
	EntryLoanPayment EntryType = "loan_payment"
	EntryPayment     EntryType = "payment"
	EntryExpense     EntryType = "expense"
)

// LoanPaymentCategory files loan repayments in the history.
const LoanPaymentCategory = "Loan Payments"

func (t EntryType) Valid() bool {
	switch t {
	case EntryIncome, EntryTransfer, EntryLoanPayment, EntryPayment, EntryExpense:
		return true
	}
	return false
}

// HistoryEntry is money that actually moved. Amount is signed: inflows are
// positive, outflows negative, in the entry's own currency.
type HistoryEntry struct {
	ID           string          `json:"id"`
	Type         EntryType       `json:"type"`
	Date         core.Date       `json:"date"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Counterparty string          `json:"counterparty,omitempty"`
	Status       string          `json:"status,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     core.Currency   `json:"currency"`
	// Converted is Amount in the history's currency.
	Converted decimal.Decimal `json:"converted"`

	rate  decimal.NullDecimal
	quote core.Currency
	// excluded entries are listed but left out of the totals.
	excluded bool
}

// HistoryFilter narrows the timeline. Zero values match everything.
type HistoryFilter struct {
	Search   string
	Type     EntryType
	Category string
	Range    core.DateRange
}

func (f HistoryFilter) match(e HistoryEntry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
		return false
	}
	if !f.Range.Contains(e.Date) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		for _, field := range []string{e.Description, e.Category, e.Counterparty} {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	}
	return true
}

// History is the filtered timeline, newest first, with totals in Currency.
type History struct {
	Currency     core.Currency        `json:"currency"`
	Entries      []HistoryEntry       `json:"entries"`
	Count        int                  `json:"count"`
	TotalIn      decimal.Decimal      `json:"total_in"`
	TotalOut     decimal.Decimal      `json:"total_out"`
	Net          decimal.Decimal      `json:"net"`
	RateFallback bool                 `json:"rate_fallback"`
	Skipped      []core.SkippedRecord `json:"skipped"`
}

// RecordEntry maps a record onto the timeline. Loans are balances and
// pending scheduled payments have not moved money, so neither appears.
func RecordEntry(r core.Record) (HistoryEntry, bool) {
	e := HistoryEntry{
		ID:          r.ID,
		Date:        r.OccurredOn,
		Category:    r.CategoryOrDefault(),
		Description: r.Description,
		Amount:      r.Amount.Neg(),
		Currency:    r.Currency,
		rate:        r.RateAtEntry,
		quote:       r.RateQuote,
	}
	switch r.Kind {
	case core.KindIncome:
		if r.Income == nil {
			return HistoryEntry{}, false
		}
		e.Type = EntryIncome
		e.Amount = r.Amount
		e.Counterparty = r.Income.Source
	case core.KindTransfer:
		if r.Transfer == nil {
			return HistoryEntry{}, false
		}
		e.Type = EntryTransfer
		e.Counterparty = r.Transfer.RecipientName
		e.Status = string(r.Transfer.Status)
		e.excluded = r.Transfer.Status == core.TransferFailed
		if e.Description == "" {
			e.Description = strings.TrimSpace(fmt.Sprintf("Transfer to %s %s", r.Transfer.RecipientName, r.Transfer.RecipientCountry))
		}
	case core.KindScheduledPayment:
		if r.Payment == nil || r.Payment.Status != core.PaymentPaid {
			return HistoryEntry{}, false
		}
		e.Type = EntryPayment
		e.Counterparty = r.Payment.Recipient
		e.Status = string(r.Payment.Status)
		if e.Description == "" {
			e.Description = r.Payment.Name
		}
	case core.KindExpense:
		if r.Expense == nil {
			return HistoryEntry{}, false
		}
		e.Type = EntryExpense
		if e.Description == "" {
			e.Description = r.Expense.Name
		}
	default:
		return HistoryEntry{}, false
	}
	return e, true
}

// LoanPaymentEntry maps a repayment of loan onto the timeline. It is an
// outflow in the loan's currency.
func LoanPaymentEntry(p core.LoanPayment, loan core.Record) HistoryEntry {
	name := "Loan"
	lender := ""
	if loan.Loan != nil {
		name, lender = loan.Loan.Name, loan.Loan.Lender
	}
	desc := "Payment for " + name
	if p.Notes != "" {
		desc += ": " + p.Notes
	}
	return HistoryEntry{
		ID:           p.ID,
		Type:         EntryLoanPayment,
		Date:         p.PaidOn,
		Category:     LoanPaymentCategory,
		Description:  desc,
		Counterparty: lender,
		Amount:       p.Amount.Neg(),
		Currency:     loan.Currency,
	}
}

// BuildHistory filters entries, converts them with book and sorts them
// newest first. An entry whose currency cannot be converted is dropped and
// listed in Skipped.
func BuildHistory(entries []HistoryEntry, book *fx.RateBook, f HistoryFilter) History {
	h := History{
		Currency:     book.Target,
		Entries:      []HistoryEntry{},
		TotalIn:      decimal.Zero,
		TotalOut:     decimal.Zero,
		Net:          decimal.Zero,
		RateFallback: book.Fallback,
		Skipped:      []core.SkippedRecord{},
	}
	for _, e := range entries {
		if !f.match(e) {
			continue
		}
		v, err := book.ConvertHistorical(e.Amount.Abs(), e.Currency, e.rate, e.quote)
		if err != nil {
			h.Skipped = append(h.Skipped, core.SkippedRecord{ID: e.ID, Kind: core.Kind(e.Type), Reason: err.Error()})
			continue
		}
		if e.Amount.IsNegative() {
			v = v.Neg()
		}
		e.Converted = v
		h.Entries = append(h.Entries, e)
		if e.excluded {
			continue
		}
		if v.IsPositive() {
			h.TotalIn = h.TotalIn.Add(v)
		} else {
			h.TotalOut = h.TotalOut.Add(v.Abs())
		}
	}
	sort.Slice(h.Entries, func(i, j int) bool {
		a, b := h.Entries[i], h.Entries[j]
		if a.Date.After(b.Date) || b.Date.After(a.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID < b.ID
	})
	h.Count = len(h.Entries)
	h.Net = h.TotalIn.Sub(h.TotalOut)
	return h
}

// WriteHistoryCSV writes the timeline with two-decimal amounts.
func WriteHistoryCSV(w io.Writer, h History) error {
	cw := csv.NewWriter(w)
	header := []string{"Date", "Type", "Category", "Description", "Counterparty", "Status", "Amount", "Currency", "Converted " + string(h.Currency)}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range h.Entries {
		rec := []string{
			e.Date.String(), string(e.Type), e.Category, e.Description, e.Counterparty, e.Status,
			e.Amount.StringFixed(2), string(e.Currency), e.Converted.StringFixed(2),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
