package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// RecordRow mirrors the records table. Decimal columns are TEXT.
type RecordRow struct {
	ID          string
	UserID      string
	Kind        string
	Amount      string
	Currency    string
	OccurredOn  string
	Category    string
	Description string
	RateAtEntry sql.NullString
	RateQuote   string
	Details     string
	CreatedAt   string
	UpdatedAt   string
}

const recordColumns = `id, user_id, kind, amount, currency, occurred_on, category, description,
	rate_at_entry, rate_quote, details, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (RecordRow, error) {
	var r RecordRow
	err := row.Scan(&r.ID, &r.UserID, &r.Kind, &r.Amount, &r.Currency, &r.OccurredOn, &r.Category,
		&r.Description, &r.RateAtEntry, &r.RateQuote, &r.Details, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const createRecord = `INSERT INTO records (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecord(ctx context.Context, r RecordRow) error {
	_, err := q.db.ExecContext(ctx, createRecord, r.ID, r.UserID, r.Kind, r.Amount, r.Currency, r.OccurredOn,
		r.Category, r.Description, r.RateAtEntry, r.RateQuote, r.Details, r.CreatedAt, r.UpdatedAt)
	return err
}

const updateRecord = `UPDATE records
SET amount = ?, currency = ?, occurred_on = ?, category = ?, description = ?,
	rate_at_entry = ?, rate_quote = ?, details = ?, updated_at = ?
WHERE id = ? AND user_id = ? AND kind = ?`

func (q *Queries) UpdateRecord(ctx context.Context, r RecordRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecord, r.Amount, r.Currency, r.OccurredOn, r.Category, r.Description,
		r.RateAtEntry, r.RateQuote, r.Details, r.UpdatedAt, r.ID, r.UserID, r.Kind)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// settlePayment only matches a payment that is still pending, so two
// concurrent settlements cannot both succeed.
const settlePayment = `UPDATE records
SET details = ?, updated_at = ?
WHERE id = ? AND user_id = ? AND kind = 'scheduled_payment'
	AND json_extract(details, '$.status') = 'pending'`

func (q *Queries) SettlePayment(ctx context.Context, r RecordRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, settlePayment, r.Details, r.UpdatedAt, r.ID, r.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteRecord = `DELETE FROM records WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteRecord(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRecord, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getRecord = `SELECT ` + recordColumns + ` FROM records WHERE id = ? AND user_id = ?`

func (q *Queries) GetRecord(ctx context.Context, id, userID string) (RecordRow, error) {
	return scanRecord(q.db.QueryRowContext(ctx, getRecord, id, userID))
}

// Empty bounds leave that side of the range open.
const listRecords = `SELECT ` + recordColumns + ` FROM records
WHERE user_id = ? AND kind = ?
	AND (? = '' OR occurred_on >= ?)
	AND (? = '' OR occurred_on < ?)
ORDER BY occurred_on DESC, created_at DESC`

type ListRecordsParams struct {
	UserID string
	Kind   string
	Start  string
	End    string
}

func (q *Queries) ListRecords(ctx context.Context, arg ListRecordsParams) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecords, arg.UserID, arg.Kind, arg.Start, arg.Start, arg.End, arg.End)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

const listPendingPaymentsDueBefore = `SELECT ` + recordColumns + ` FROM records
WHERE kind = 'scheduled_payment'
	AND json_extract(details, '$.status') = 'pending'
	AND occurred_on < ?
ORDER BY occurred_on ASC`

func (q *Queries) ListPendingPaymentsDueBefore(ctx context.Context, before string) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingPaymentsDueBefore, before)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]RecordRow, error) {
	defer rows.Close()
	var items []RecordRow
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LoanPaymentRow mirrors the loan_payments table.
type LoanPaymentRow struct {
	ID              string
	LoanID          string
	UserID          string
	Amount          string
	PrincipalAmount string
	InterestAmount  string
	PaymentDate     string
	PaymentMethod   string
	Notes           string
	CreatedAt       string
}

const loanPaymentColumns = `id, loan_id, user_id, amount, principal_amount, interest_amount,
	payment_date, payment_method, notes, created_at`

func scanLoanPayment(row interface{ Scan(...any) error }) (LoanPaymentRow, error) {
	var p LoanPaymentRow
	err := row.Scan(&p.ID, &p.LoanID, &p.UserID, &p.Amount, &p.PrincipalAmount, &p.InterestAmount,
		&p.PaymentDate, &p.PaymentMethod, &p.Notes, &p.CreatedAt)
	return p, err
}

const createLoanPayment = `INSERT INTO loan_payments (` + loanPaymentColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateLoanPayment(ctx context.Context, p LoanPaymentRow) error {
	_, err := q.db.ExecContext(ctx, createLoanPayment, p.ID, p.LoanID, p.UserID, p.Amount, p.PrincipalAmount,
		p.InterestAmount, p.PaymentDate, p.PaymentMethod, p.Notes, p.CreatedAt)
	return err
}

const updateLoanPayment = `UPDATE loan_payments
SET amount = ?, principal_amount = ?, interest_amount = ?, payment_date = ?, payment_method = ?, notes = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateLoanPayment(ctx context.Context, p LoanPaymentRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateLoanPayment, p.Amount, p.PrincipalAmount, p.InterestAmount,
		p.PaymentDate, p.PaymentMethod, p.Notes, p.ID, p.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteLoanPayment = `DELETE FROM loan_payments WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteLoanPayment(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteLoanPayment, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getLoanPayment = `SELECT ` + loanPaymentColumns + ` FROM loan_payments WHERE id = ? AND user_id = ?`

func (q *Queries) GetLoanPayment(ctx context.Context, id, userID string) (LoanPaymentRow, error) {
	return scanLoanPayment(q.db.QueryRowContext(ctx, getLoanPayment, id, userID))
}

const listLoanPayments = `SELECT ` + loanPaymentColumns + ` FROM loan_payments
WHERE loan_id = ? AND user_id = ?
ORDER BY payment_date DESC, created_at DESC`

func (q *Queries) ListLoanPayments(ctx context.Context, loanID, userID string) ([]LoanPaymentRow, error) {
	rows, err := q.db.QueryContext(ctx, listLoanPayments, loanID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LoanPaymentRow
	for rows.Next() {
		p, err := scanLoanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type ProfileRow struct {
	UserID             string
	Email              string
	FullName           string
	CurrencyPreference string
	Timezone           string
	UpdatedAt          string
}

const getProfile = `SELECT user_id, email, full_name, currency_preference, timezone, updated_at
FROM profiles WHERE user_id = ?`

func (q *Queries) GetProfile(ctx context.Context, userID string) (ProfileRow, error) {
	var p ProfileRow
	err := q.db.QueryRowContext(ctx, getProfile, userID).Scan(&p.UserID, &p.Email, &p.FullName,
		&p.CurrencyPreference, &p.Timezone, &p.UpdatedAt)
	return p, err
}

const upsertProfile = `INSERT INTO profiles (user_id, email, full_name, currency_preference, timezone, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	email = excluded.email,
	full_name = excluded.full_name,
	currency_preference = excluded.currency_preference,
	timezone = excluded.timezone,
	updated_at = excluded.updated_at`

func (q *Queries) UpsertProfile(ctx context.Context, p ProfileRow) error {
	_, err := q.db.ExecContext(ctx, upsertProfile, p.UserID, p.Email, p.FullName, p.CurrencyPreference,
		p.Timezone, p.UpdatedAt)
	return err
}

type ExchangeRateRow struct {
	Base      string
	Quote     string
	Rate      string
	Source    string
	FetchedAt string
}

const createExchangeRate = `INSERT INTO exchange_rates (base, quote, rate, source, fetched_at)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateExchangeRate(ctx context.Context, r ExchangeRateRow) error {
	_, err := q.db.ExecContext(ctx, createExchangeRate, r.Base, r.Quote, r.Rate, r.Source, r.FetchedAt)
	return err
}

// Latest snapshot for base: every quote fetched at the newest fetched_at.
const latestExchangeRates = `SELECT base, quote, rate, source, fetched_at FROM exchange_rates
WHERE base = ? AND fetched_at = (SELECT MAX(fetched_at) FROM exchange_rates WHERE base = ?)
ORDER BY quote`

func (q *Queries) LatestExchangeRates(ctx context.Context, base string) ([]ExchangeRateRow, error) {
	rows, err := q.db.QueryContext(ctx, latestExchangeRates, base, base)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExchangeRateRow
	for rows.Next() {
		var r ExchangeRateRow
		if err := rows.Scan(&r.Base, &r.Quote, &r.Rate, &r.Source, &r.FetchedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
