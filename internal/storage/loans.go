package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// withTx runs fn in one transaction, committing only when fn succeeds.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.PersistenceError{Op: "begin transaction", Err: err}
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &core.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

func (r *SQLiteRepository) loadLoan(ctx context.Context, q *Queries, userID, loanID string) (core.Record, error) {
	row, err := q.GetRecord(ctx, loanID, userID)
	if err != nil {
		return core.Record{}, notFoundOr("get loan", loanID, err)
	}
	rec, err := toRecord(row)
	if err != nil {
		return core.Record{}, err
	}
	if rec.Kind != core.KindLoan || rec.Loan == nil {
		return core.Record{}, fmt.Errorf("loan %s: %w", loanID, core.ErrNotFound)
	}
	return rec, nil
}

func (r *SQLiteRepository) saveLoan(ctx context.Context, q *Queries, loan core.Record) (core.Record, error) {
	loan.Amount = loan.Loan.CurrentBalance
	loan.UpdatedAt = r.now().UTC()
	if err := r.update(ctx, q, loan); err != nil {
		return core.Record{}, err
	}
	return loan, nil
}

func (r *SQLiteRepository) ListLoanPayments(ctx context.Context, userID, loanID string) ([]core.LoanPayment, error) {
	rows, err := r.queries.ListLoanPayments(ctx, loanID, userID)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list loan payments", Err: err}
	}
	out := make([]core.LoanPayment, 0, len(rows))
	for _, row := range rows {
		p, err := toLoanPayment(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// InsertLoanPayment records p and lowers the loan balance by its principal
// in the same transaction.
func (r *SQLiteRepository) InsertLoanPayment(ctx context.Context, p core.LoanPayment) (core.LoanPayment, core.Record, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = r.now().UTC()

	var loan core.Record
	err := r.withTx(ctx, func(q *Queries) error {
		var err error
		if loan, err = r.loadLoan(ctx, q, p.UserID, p.LoanID); err != nil {
			return err
		}
		if err := loan.Loan.ApplyPayment(p.Principal); err != nil {
			return err
		}
		if loan, err = r.saveLoan(ctx, q, loan); err != nil {
			return err
		}
		if err := q.CreateLoanPayment(ctx, fromLoanPayment(p)); err != nil {
			return &core.PersistenceError{Op: "create loan payment", Err: err}
		}
		return nil
	})
	if err != nil {
		return core.LoanPayment{}, core.Record{}, err
	}

	slog.InfoContext(ctx, "Loan payment recorded",
		"id", p.ID,
		"loan_id", p.LoanID,
		"principal", p.Principal.String(),
		"balance", loan.Loan.CurrentBalance.String(),
		"status", loan.Loan.Status)
	return p, loan, nil
}

// UpdateLoanPayment rewrites a payment and moves the loan balance by the
// principal delta only.
func (r *SQLiteRepository) UpdateLoanPayment(ctx context.Context, p core.LoanPayment) (core.LoanPayment, core.Record, error) {
	var loan core.Record
	err := r.withTx(ctx, func(q *Queries) error {
		row, err := q.GetLoanPayment(ctx, p.ID, p.UserID)
		if err != nil {
			return notFoundOr("get loan payment", p.ID, err)
		}
		old, err := toLoanPayment(row)
		if err != nil {
			return err
		}
		p.LoanID = old.LoanID
		p.CreatedAt = old.CreatedAt

		if loan, err = r.loadLoan(ctx, q, p.UserID, p.LoanID); err != nil {
			return err
		}
		if err := loan.Loan.AdjustPayment(old.Principal, p.Principal); err != nil {
			return err
		}
		if loan, err = r.saveLoan(ctx, q, loan); err != nil {
			return err
		}
		if _, err := q.UpdateLoanPayment(ctx, fromLoanPayment(p)); err != nil {
			return &core.PersistenceError{Op: "update loan payment", Err: err}
		}
		return nil
	})
	if err != nil {
		return core.LoanPayment{}, core.Record{}, err
	}
	return p, loan, nil
}

// DeleteLoanPayment removes a payment and restores its principal to the loan.
func (r *SQLiteRepository) DeleteLoanPayment(ctx context.Context, userID, paymentID string) (core.LoanPayment, core.Record, error) {
	var (
		loan core.Record
		old  core.LoanPayment
	)
	err := r.withTx(ctx, func(q *Queries) error {
		row, err := q.GetLoanPayment(ctx, paymentID, userID)
		if err != nil {
			return notFoundOr("get loan payment", paymentID, err)
		}
		if old, err = toLoanPayment(row); err != nil {
			return err
		}
		if loan, err = r.loadLoan(ctx, q, userID, old.LoanID); err != nil {
			return err
		}
		if err := loan.Loan.RevertPayment(old.Principal); err != nil {
			return err
		}
		if loan, err = r.saveLoan(ctx, q, loan); err != nil {
			return err
		}
		if _, err := q.DeleteLoanPayment(ctx, paymentID, userID); err != nil {
			return &core.PersistenceError{Op: "delete loan payment", Err: err}
		}
		return nil
	})
	if err != nil {
		return core.LoanPayment{}, core.Record{}, err
	}
	return old, loan, nil
}

func toLoanPayment(row LoanPaymentRow) (core.LoanPayment, error) {
	fail := func(field string, err error) (core.LoanPayment, error) {
		return core.LoanPayment{}, &core.PersistenceError{Op: "decode loan payment " + row.ID + " " + field, Err: err}
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return fail("amount", err)
	}
	principal, err := decimal.NewFromString(row.PrincipalAmount)
	if err != nil {
		return fail("principal_amount", err)
	}
	interest, err := decimal.NewFromString(row.InterestAmount)
	if err != nil {
		return fail("interest_amount", err)
	}
	paidOn, err := core.ParseDate(row.PaymentDate)
	if err != nil {
		return fail("payment_date", err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return fail("created_at", err)
	}
	return core.LoanPayment{
		ID:        row.ID,
		LoanID:    row.LoanID,
		UserID:    row.UserID,
		Amount:    amount,
		Principal: principal,
		Interest:  interest,
		PaidOn:    paidOn,
		Method:    row.PaymentMethod,
		Notes:     row.Notes,
		CreatedAt: created,
	}, nil
}

func fromLoanPayment(p core.LoanPayment) LoanPaymentRow {
	return LoanPaymentRow{
		ID:              p.ID,
		LoanID:          p.LoanID,
		UserID:          p.UserID,
		Amount:          p.Amount.String(),
		PrincipalAmount: p.Principal.String(),
		InterestAmount:  p.Interest.String(),
		PaymentDate:     p.PaidOn.String(),
		PaymentMethod:   p.Method,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt.UTC().Format(timeLayout),
	}
}
