package sheets

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

// RecordMirror keeps an external copy of records, one row per record id.
type RecordMirror interface {
	Upsert(ctx context.Context, rec core.Record) error
	Delete(ctx context.Context, id string) error
}

// Header names the mirrored columns in order.
var Header = []string{
	"ID", "User", "Kind", "Date", "Amount", "Currency",
	"Category", "Description", "Label", "Status", "Updated",
}

// Row renders rec in Header order.
func Row(rec core.Record) []string {
	label, status := details(rec)
	return []string{
		rec.ID,
		rec.UserID,
		string(rec.Kind),
		rec.OccurredOn.String(),
		rec.Amount.StringFixed(2),
		string(rec.Currency),
		guardFormula(rec.CategoryOrDefault()),
		guardFormula(rec.Description),
		guardFormula(label),
		status,
		rec.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

func details(rec core.Record) (label, status string) {
	switch {
	case rec.Income != nil:
		return rec.Income.Source, ""
	case rec.Loan != nil:
		return rec.Loan.Name, string(rec.Loan.Status)
	case rec.Transfer != nil:
		return rec.Transfer.RecipientName, string(rec.Transfer.Status)
	case rec.Payment != nil:
		return rec.Payment.Name, string(rec.Payment.Status)
	case rec.Expense != nil:
		return rec.Expense.Name, ""
	}
	return "", ""
}

// guardFormula quotes user text that a spreadsheet would evaluate.
func guardFormula(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
