package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryTotal is one row of the category breakdown. Income is positive,
// outflows negative; Percentage is the share of total income.
type CategoryTotal struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// RankCategories turns per-category sums into rows sorted by absolute amount,
// largest first, ties broken by name. Percentages are |amount| over
// totalIncome and are zero when there is no income. topN <= 0 keeps all rows.
func RankCategories(sums map[string]decimal.Decimal, totalIncome decimal.Decimal, topN int) []CategoryTotal {
	rows := make([]CategoryTotal, 0, len(sums))
	for name, amount := range sums {
		pct := decimal.Zero
		if totalIncome.IsPositive() {
			pct = amount.Abs().Div(totalIncome).Mul(hundred).Round(2)
		}
		rows = append(rows, CategoryTotal{Name: name, Amount: amount, Percentage: pct})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Amount.Abs().Cmp(rows[j].Amount.Abs()); c != 0 {
			return c > 0
		}
		return rows[i].Name < rows[j].Name
	})
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

var csvHeader = []string{"Category", "Amount", "Percentage"}

// WriteCSV writes the breakdown with two-decimal amounts and a trailing
// percent sign on shares.
func WriteCSV(w io.Writer, rows []CategoryTotal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.Name, r.Amount.StringFixed(2), r.Percentage.StringFixed(2) + "%"}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %q: %w", r.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
