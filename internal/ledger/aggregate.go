// Package ledger folds money records into a reporting snapshot expressed in
// one currency.
package ledger

import (
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/fx"

	"github.com/shopspring/decimal"
)

// DefaultTopN caps the category breakdown shown on the dashboard.
const DefaultTopN = 5

var hundred = decimal.NewFromInt(100)

// Totals are converted sums by record kind.
type Totals struct {
	Income       decimal.Decimal `json:"income"`
	Debt         decimal.Decimal `json:"debt"`
	Transfers    decimal.Decimal `json:"transfers"`
	TransferFees decimal.Decimal `json:"transfer_fees"`
	Scheduled    decimal.Decimal `json:"scheduled"`
	Expenses     decimal.Decimal `json:"expenses"`
}

// LoanProgress reports repayment of one loan. Progress is unitless so it is
// computed on the loan's own currency.
type LoanProgress struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Currency           core.Currency   `json:"currency"`
	Principal          decimal.Decimal `json:"principal"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	ConvertedPrincipal decimal.Decimal `json:"converted_principal"`
	ConvertedBalance   decimal.Decimal `json:"converted_balance"`
	ProgressPercent    decimal.Decimal `json:"progress_percent"`
	Status             core.LoanStatus `json:"status"`
}

// MonthTrend is income against outflows for one calendar month.
type MonthTrend struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Outflows decimal.Decimal `json:"outflows"`
}

// Snapshot is the derived dashboard view. It is never persisted.
type Snapshot struct {
	Currency            core.Currency        `json:"currency"`
	Range               core.DateRange       `json:"range"`
	Totals              Totals               `json:"totals"`
	NetPosition         decimal.Decimal      `json:"net_position"`
	Categories          []CategoryTotal      `json:"categories"`
	Loans               []LoanProgress       `json:"loans"`
	AverageLoanProgress decimal.Decimal      `json:"average_loan_progress"`
	Trends              []MonthTrend         `json:"trends"`
	RecordCount         int                  `json:"record_count"`
	Skipped             []core.SkippedRecord `json:"skipped"`
	RateFallback        bool                 `json:"rate_fallback"`
	RatesAsOf           time.Time            `json:"rates_as_of"`
}

// Warning returns a PartialAggregationWarning when records were skipped.
func (s Snapshot) Warning() error {
	if len(s.Skipped) == 0 {
		return nil
	}
	return &core.PartialAggregationWarning{Skipped: s.Skipped}
}

// Options restrict and shape an aggregation.
type Options struct {
	Range core.DateRange
	// TopN caps the category list; zero or less keeps every category.
	TopN int
}

// Aggregate folds records into a snapshot using the rates in book.
//
// Flow records (income, transfers, scheduled payments, expenses) are kept
// when their date falls in opts.Range. Loans are balances, not flows, and are
// always included. A record whose currency cannot be converted is skipped and
// listed in Snapshot.Skipped; it never aborts the fold. Failed transfers moved
// no money and are left out.
func Aggregate(records []core.Record, book *fx.RateBook, opts Options) Snapshot {
	snap := Snapshot{
		Currency:            book.Target,
		Range:               opts.Range,
		Totals:              zeroTotals(),
		NetPosition:         decimal.Zero,
		Categories:          []CategoryTotal{},
		Loans:               []LoanProgress{},
		AverageLoanProgress: decimal.Zero,
		Trends:              []MonthTrend{},
		Skipped:             []core.SkippedRecord{},
		RateFallback:        book.Fallback,
		RatesAsOf:           book.AsOf,
	}

	byCategory := map[string]decimal.Decimal{}
	trends := map[string]*MonthTrend{}
	skip := func(r core.Record, reason string) {
		snap.Skipped = append(snap.Skipped, core.SkippedRecord{ID: r.ID, Kind: r.Kind, Reason: reason})
	}
	flow := func(r core.Record) (decimal.Decimal, bool) {
		v, err := book.ConvertHistorical(r.Amount, r.Currency, r.RateAtEntry, r.RateQuote)
		if err != nil {
			skip(r, err.Error())
			return decimal.Zero, false
		}
		return v, true
	}
	trend := func(d core.Date) *MonthTrend {
		key := d.Format("2006-01")
		t, ok := trends[key]
		if !ok {
			t = &MonthTrend{Month: key, Income: decimal.Zero, Outflows: decimal.Zero}
			trends[key] = t
		}
		return t
	}

	for _, r := range records {
		if r.Kind == core.KindLoan {
			if r.Loan == nil {
				skip(r, "missing loan details")
				continue
			}
			bal, err := book.Convert(r.Loan.CurrentBalance, r.Currency)
			if err != nil {
				skip(r, err.Error())
				continue
			}
			principal, err := book.Convert(r.Loan.Principal, r.Currency)
			if err != nil {
				skip(r, err.Error())
				continue
			}
			snap.RecordCount++
			snap.Totals.Debt = snap.Totals.Debt.Add(bal)
			snap.Loans = append(snap.Loans, LoanProgress{
				ID:                 r.ID,
				Name:               r.Loan.Name,
				Currency:           r.Currency,
				Principal:          r.Loan.Principal,
				CurrentBalance:     r.Loan.CurrentBalance,
				ConvertedPrincipal: principal,
				ConvertedBalance:   bal,
				ProgressPercent:    r.Loan.Progress().Round(2),
				Status:             r.Loan.Status,
			})
			continue
		}

		if !opts.Range.Contains(r.OccurredOn) {
			continue
		}

		switch r.Kind {
		case core.KindIncome:
			v, ok := flow(r)
			if !ok {
				continue
			}
			snap.Totals.Income = snap.Totals.Income.Add(v)
			cat := r.CategoryOrDefault()
			byCategory[cat] = byCategory[cat].Add(v)
			t := trend(r.OccurredOn)
			t.Income = t.Income.Add(v)

		case core.KindTransfer:
			if r.Transfer == nil {
				skip(r, "missing transfer details")
				continue
			}
			if r.Transfer.Status == core.TransferFailed {
				continue
			}
			v, ok := flow(r)
			if !ok {
				continue
			}
			fee := decimal.Zero
			if r.Transfer.FeeAmount.IsPositive() {
				f, err := book.ConvertHistorical(r.Transfer.FeeAmount, r.Currency, r.RateAtEntry, r.RateQuote)
				if err != nil {
					skip(r, err.Error())
					continue
				}
				fee = f
			}
			snap.Totals.Transfers = snap.Totals.Transfers.Add(v)
			snap.Totals.TransferFees = snap.Totals.TransferFees.Add(fee)
			cat := r.CategoryOrDefault()
			byCategory[cat] = byCategory[cat].Sub(v)
			t := trend(r.OccurredOn)
			t.Outflows = t.Outflows.Add(v).Add(fee)

		case core.KindScheduledPayment, core.KindExpense:
			v, ok := flow(r)
			if !ok {
				continue
			}
			if r.Kind == core.KindScheduledPayment {
				snap.Totals.Scheduled = snap.Totals.Scheduled.Add(v)
			} else {
				snap.Totals.Expenses = snap.Totals.Expenses.Add(v)
			}
			cat := r.CategoryOrDefault()
			byCategory[cat] = byCategory[cat].Sub(v)
			t := trend(r.OccurredOn)
			t.Outflows = t.Outflows.Add(v)

		default:
			skip(r, core.ErrInvalidKind.Error())
			continue
		}
		snap.RecordCount++
	}

	snap.NetPosition = NetPosition(snap.Totals)
	snap.Categories = RankCategories(byCategory, snap.Totals.Income, opts.TopN)
	snap.AverageLoanProgress = averageProgress(snap.Loans)
	sort.Slice(snap.Loans, func(i, j int) bool {
		if snap.Loans[i].Name != snap.Loans[j].Name {
			return snap.Loans[i].Name < snap.Loans[j].Name
		}
		return snap.Loans[i].ID < snap.Loans[j].ID
	})
	for _, t := range trends {
		snap.Trends = append(snap.Trends, *t)
	}
	sort.Slice(snap.Trends, func(i, j int) bool { return snap.Trends[i].Month < snap.Trends[j].Month })
	sort.Slice(snap.Skipped, func(i, j int) bool {
		if snap.Skipped[i].Kind != snap.Skipped[j].Kind {
			return snap.Skipped[i].Kind < snap.Skipped[j].Kind
		}
		return snap.Skipped[i].ID < snap.Skipped[j].ID
	})
	return snap
}

// NetPosition is income minus debt minus scheduled and monthly outflows. All
// inputs are already in the same currency.
func NetPosition(t Totals) decimal.Decimal {
	return t.Income.Sub(t.Debt).Sub(t.Scheduled.Add(t.Expenses))
}

// averageProgress is the share of all principal repaid, so larger loans
// weigh more. Sums are in the reporting currency.
func averageProgress(loans []LoanProgress) decimal.Decimal {
	principal, balance := decimal.Zero, decimal.Zero
	for _, l := range loans {
		principal = principal.Add(l.ConvertedPrincipal)
		balance = balance.Add(l.ConvertedBalance)
	}
	if !principal.IsPositive() {
		return decimal.Zero
	}
	return principal.Sub(balance).Div(principal).Mul(hundred).Round(2)
}

func zeroTotals() Totals {
	return Totals{
		Income:       decimal.Zero,
		Debt:         decimal.Zero,
		Transfers:    decimal.Zero,
		TransferFees: decimal.Zero,
		Scheduled:    decimal.Zero,
		Expenses:     decimal.Zero,
	}
}
