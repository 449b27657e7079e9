// This file implements decoding and sanitizing of request data shared by
// the handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"fintrack/internal/core"
	"fintrack/internal/fx"
	"fintrack/internal/ledger"
	"fintrack/internal/services"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup and control characters from free text.
// Entities produced by the policy are decoded again since values are stored
// as plain text, not HTML.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// decodeJSON reads one JSON object from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// sanitizeRecord cleans every free-text field of rec in place.
func sanitizeRecord(rec *core.Record) {
	rec.Category = sanitizeText(rec.Category)
	rec.Description = sanitizeText(rec.Description)
	switch {
	case rec.Income != nil:
		rec.Income.Source = sanitizeText(rec.Income.Source)
	case rec.Loan != nil:
		rec.Loan.Name = sanitizeText(rec.Loan.Name)
		rec.Loan.Lender = sanitizeText(rec.Loan.Lender)
		rec.Loan.LoanType = sanitizeText(rec.Loan.LoanType)
	case rec.Transfer != nil:
		rec.Transfer.RecipientName = sanitizeText(rec.Transfer.RecipientName)
		rec.Transfer.RecipientCountry = sanitizeText(rec.Transfer.RecipientCountry)
		rec.Transfer.Method = sanitizeText(rec.Transfer.Method)
		rec.Transfer.Purpose = sanitizeText(rec.Transfer.Purpose)
		rec.Transfer.ReferenceNumber = sanitizeText(rec.Transfer.ReferenceNumber)
	case rec.Payment != nil:
		rec.Payment.Name = sanitizeText(rec.Payment.Name)
		rec.Payment.Recipient = sanitizeText(rec.Payment.Recipient)
	case rec.Expense != nil:
		rec.Expense.Name = sanitizeText(rec.Expense.Name)
		rec.Expense.PaymentMethod = sanitizeText(rec.Expense.PaymentMethod)
	}
}

// keepOnlyDetails drops detail blocks that do not belong to kind so a body
// cannot smuggle in a second variant.
func keepOnlyDetails(rec *core.Record, kind core.Kind) {
	if kind != core.KindIncome {
		rec.Income = nil
	}
	if kind != core.KindLoan {
		rec.Loan = nil
	}
	if kind != core.KindTransfer {
		rec.Transfer = nil
	}
	if kind != core.KindScheduledPayment {
		rec.Payment = nil
	}
	if kind != core.KindExpense {
		rec.Expense = nil
	}
}

// ParseDateRange reads start and end (YYYY-MM-DD) or a named window.
// Explicit dates win over the window.
func ParseDateRange(query url.Values) (core.DateRange, core.Window, error) {
	var rng core.DateRange
	for _, p := range []struct {
		key string
		dst *core.Date
	}{{"start", &rng.Start}, {"end", &rng.End}} {
		v := strings.TrimSpace(query.Get(p.key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return core.DateRange{}, "", core.NewValidationError(p.key, core.ErrInvalidDate)
		}
		*p.dst = d
	}
	if err := rng.Validate(); err != nil {
		return core.DateRange{}, "", err
	}
	return rng, core.Window(strings.TrimSpace(query.Get("window"))), nil
}

// ParseDashboardQuery reads currency, window, start, end, top and refresh.
func ParseDashboardQuery(query url.Values) (services.DashboardQuery, error) {
	var q services.DashboardQuery
	if v := strings.TrimSpace(query.Get("currency")); v != "" {
		cur, err := core.ParseCurrency(v)
		if err != nil {
			return q, core.NewValidationError("currency", err)
		}
		q.Currency = cur
	}
	rng, window, err := ParseDateRange(query)
	if err != nil {
		return q, err
	}
	q.Range, q.Window = rng, window
	if v := strings.TrimSpace(query.Get("top")); v != "" {
		n, err := parseTop(v)
		if err != nil {
			return q, err
		}
		q.TopN = n
	}
	if v := strings.TrimSpace(query.Get("refresh")); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("%w: refresh must be a boolean", errBadRequest)
		}
		q.Refresh = refresh
	}
	return q, nil
}

// ParseHistoryQuery reads currency, start, end, window, q, type and
// category. Without dates or a window the whole history is returned.
func ParseHistoryQuery(query url.Values, now time.Time) (services.HistoryQuery, error) {
	var q services.HistoryQuery
	if v := strings.TrimSpace(query.Get("currency")); v != "" {
		cur, err := core.ParseCurrency(v)
		if err != nil {
			return q, core.NewValidationError("currency", err)
		}
		q.Currency = cur
	}
	rng, window, err := ParseDateRange(query)
	if err != nil {
		return q, err
	}
	if rng.IsUnbounded() && window != "" {
		if rng, err = window.Range(now); err != nil {
			return q, err
		}
	}
	q.Filter.Range = rng
	if v := strings.ToLower(strings.TrimSpace(query.Get("type"))); v != "" && v != "all" {
		t := ledger.EntryType(v)
		if !t.Valid() {
			return q, core.NewValidationError("type", core.ErrInvalidKind)
		}
		q.Filter.Type = t
	}
	if v := sanitizeText(query.Get("category")); !strings.EqualFold(v, "all") {
		q.Filter.Category = v
	}
	q.Filter.Search = sanitizeText(query.Get("q"))
	return q, nil
}

// parseTop reads a category cap; "0" and "all" keep every category.
func parseTop(v string) (int, error) {
	if strings.EqualFold(v, "all") {
		return services.AllCategories, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, core.NewValidationError("top", core.ErrInvalidAmount)
	}
	if n == 0 {
		return services.AllCategories, nil
	}
	return n, nil
}

// ParseConvertRequest reads amount, from, to, source and an optional rate.
func ParseConvertRequest(query url.Values) (fx.Request, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(query.Get("amount")))
	if err != nil {
		return fx.Request{}, core.NewValidationError("amount", core.ErrInvalidAmount)
	}
	from, err := core.ParseCurrency(query.Get("from"))
	if err != nil {
		return fx.Request{}, core.NewValidationError("from", err)
	}
	to, err := core.ParseCurrency(query.Get("to"))
	if err != nil {
		return fx.Request{}, core.NewValidationError("to", err)
	}
	req := fx.Request{Amount: amount, From: from, To: to, Source: fx.SourceLive}
	if v := strings.TrimSpace(query.Get("source")); v != "" {
		req.Source = fx.Source(strings.ToLower(v))
		if !req.Source.Valid() {
			return fx.Request{}, core.NewValidationError("source", fx.ErrUnknownSource)
		}
	}
	if v := strings.TrimSpace(query.Get("rate")); v != "" {
		rate, err := core.ParseRate(v)
		if err != nil {
			return fx.Request{}, core.NewValidationError("rate", err)
		}
		req.HistoricalRate = decimal.NewNullDecimal(rate)
	}
	return req, nil
}
