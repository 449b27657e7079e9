package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Fixed-width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context, userID string, kind core.Kind, rng core.DateRange) ([]core.Record, error) {
	rows, err := r.queries.ListRecords(ctx, ListRecordsParams{
		UserID: userID,
		Kind:   string(kind),
		Start:  rng.Start.String(),
		End:    rng.End.String(),
	})
	if err != nil {
		return nil, &core.PersistenceError{Op: "list records", Err: err}
	}
	return toRecords(rows)
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, userID, id string) (core.Record, error) {
	row, err := r.queries.GetRecord(ctx, id, userID)
	if err != nil {
		return core.Record{}, notFoundOr("get record", id, err)
	}
	return toRecord(row)
}

// InsertRecord stores rec, assigning an id and timestamps.
func (r *SQLiteRepository) InsertRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := r.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	row, err := fromRecord(rec)
	if err != nil {
		return core.Record{}, err
	}
	if err := r.queries.CreateRecord(ctx, row); err != nil {
		return core.Record{}, &core.PersistenceError{Op: "create record", Err: err}
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"kind", rec.Kind,
		"amount", rec.Amount.String(),
		"currency", rec.Currency)
	return rec, nil
}

// UpdateRecord overwrites an existing record of the same kind and owner.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	existing, err := r.GetRecord(ctx, rec.UserID, rec.ID)
	if err != nil {
		return core.Record{}, err
	}
	if existing.Kind != rec.Kind {
		return core.Record{}, core.NewValidationError("kind", core.ErrInvalidKind)
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = r.now().UTC()
	if err := r.update(ctx, r.queries, rec); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func (r *SQLiteRepository) update(ctx context.Context, q *Queries, rec core.Record) error {
	row, err := fromRecord(rec)
	if err != nil {
		return err
	}
	n, err := q.UpdateRecord(ctx, row)
	if err != nil {
		return &core.PersistenceError{Op: "update record", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteRecord removes a record; a loan's payments go with it.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteRecord(ctx, id, userID)
	if err != nil {
		return &core.PersistenceError{Op: "delete record", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Record deleted from SQLite", "id", id)
	return nil
}

// ListPendingPaymentsDueBefore returns pending scheduled payments of every
// user due strictly before the given day.
func (r *SQLiteRepository) ListPendingPaymentsDueBefore(ctx context.Context, before core.Date) ([]core.Record, error) {
	rows, err := r.queries.ListPendingPaymentsDueBefore(ctx, before.String())
	if err != nil {
		return nil, &core.PersistenceError{Op: "list pending payments", Err: err}
	}
	return toRecords(rows)
}

func notFoundOr(op, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}
	return &core.PersistenceError{Op: op, Err: err}
}

func toRecords(rows []RecordRow) ([]core.Record, error) {
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(row RecordRow) (core.Record, error) {
	fail := func(field string, err error) (core.Record, error) {
		return core.Record{}, &core.PersistenceError{Op: "decode record " + row.ID + " " + field, Err: err}
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return fail("amount", err)
	}
	occurred, err := core.ParseDate(row.OccurredOn)
	if err != nil {
		return fail("occurred_on", err)
	}
	rec := core.Record{
		ID:          row.ID,
		UserID:      row.UserID,
		Kind:        core.Kind(row.Kind),
		Amount:      amount,
		Currency:    core.Currency(row.Currency),
		OccurredOn:  occurred,
		Category:    row.Category,
		Description: row.Description,
		RateQuote:   core.Currency(row.RateQuote),
	}
	if row.RateAtEntry.Valid {
		rate, err := decimal.NewFromString(row.RateAtEntry.String)
		if err != nil {
			return fail("rate_at_entry", err)
		}
		rec.RateAtEntry = decimal.NewNullDecimal(rate)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, row.CreatedAt); err != nil {
		return fail("created_at", err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, row.UpdatedAt); err != nil {
		return fail("updated_at", err)
	}

	var target any
	switch rec.Kind {
	case core.KindIncome:
		rec.Income = &core.IncomeDetails{}
		target = rec.Income
	case core.KindLoan:
		rec.Loan = &core.LoanDetails{}
		target = rec.Loan
	case core.KindTransfer:
		rec.Transfer = &core.TransferDetails{}
		target = rec.Transfer
	case core.KindScheduledPayment:
		rec.Payment = &core.PaymentDetails{}
		target = rec.Payment
	case core.KindExpense:
		rec.Expense = &core.ExpenseDetails{}
		target = rec.Expense
	default:
		return fail("kind", core.ErrInvalidKind)
	}
	if err := json.Unmarshal([]byte(row.Details), target); err != nil {
		return fail("details", err)
	}
	return rec, nil
}

func fromRecord(rec core.Record) (RecordRow, error) {
	var details any
	switch rec.Kind {
	case core.KindIncome:
		details = rec.Income
	case core.KindLoan:
		details = rec.Loan
	case core.KindTransfer:
		details = rec.Transfer
	case core.KindScheduledPayment:
		details = rec.Payment
	case core.KindExpense:
		details = rec.Expense
	default:
		return RecordRow{}, core.NewValidationError("kind", core.ErrInvalidKind)
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return RecordRow{}, &core.PersistenceError{Op: "encode details", Err: err}
	}
	row := RecordRow{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Kind:        string(rec.Kind),
		Amount:      rec.Amount.String(),
		Currency:    string(rec.Currency),
		OccurredOn:  rec.OccurredOn.String(),
		Category:    rec.Category,
		Description: rec.Description,
		RateQuote:   string(rec.RateQuote),
		Details:     string(raw),
		CreatedAt:   rec.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   rec.UpdatedAt.UTC().Format(timeLayout),
	}
	if rec.RateAtEntry.Valid {
		row.RateAtEntry = sql.NullString{String: rec.RateAtEntry.Decimal.String(), Valid: true}
	}
	return row, nil
}
