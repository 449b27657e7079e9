package memory

import (
	"context"
	"testing"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

func TestMirrorUpsertAndDelete(t *testing.T) {
	m := New()
	ctx := context.Background()
	rec := core.Record{
		ID:         "rec-1",
		UserID:     "user-1",
		Kind:       core.KindExpense,
		Amount:     decimal.RequireFromString("12.5"),
		Currency:   core.INR,
		OccurredOn: core.NewDate(2025, 8, 1),
		Expense:    &core.ExpenseDetails{Name: "Internet"},
	}

	if err := m.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec.Amount = decimal.RequireFromString("15")
	if err := m.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	row, ok := m.Row("rec-1")
	if !ok {
		t.Fatal("row missing")
	}
	if row[4] != "15.00" || row[6] != core.DefaultExpenseCategory || row[8] != "Internet" {
		t.Fatalf("unexpected row %v", row)
	}
	if ids := m.IDs(); len(ids) != 1 {
		t.Fatalf("expected one row, got %v", ids)
	}

	if err := m.Delete(ctx, "rec-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, "rec-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, ok := m.Row("rec-1"); ok {
		t.Fatal("row should be gone")
	}
}
