package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/fx"
	"fintrack/internal/identity"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"

	"github.com/go-chi/chi/v5"
)

// Deps are the collaborators behind the API.
type Deps struct {
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Payments  *services.PaymentService
	Profiles  *services.ProfileService
	Rates     *services.RateRefresher
	Converter *fx.Converter
	Reporting core.Currency
	// Ready reports whether backing stores answer. Nil means always ready.
	Ready func(ctx context.Context) error
}

type handlers struct {
	Deps
}

func userID(r *http.Request) string {
	u, _ := identity.FromContext(r.Context())
	return u.ID
}

func kindParam(r *http.Request) (core.Kind, error) {
	k, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", fmt.Errorf("record kind %q: %w", chi.URLParam(r, "kind"), core.ErrNotFound)
	}
	return k, nil
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]string{"status": "ready"}).Write(w)
}

func (h *handlers) handleListRecords(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	rng, window, err := ParseDateRange(r.URL.Query())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if rng.IsUnbounded() {
		if rng, err = window.Range(time.Now()); err != nil {
			FromError(r, err).Write(w)
			return
		}
	}
	recs, err := h.Ledger.List(r.Context(), userID(r), kind, rng)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"records": recs, "count": len(recs)}).Write(w)
}

func (h *handlers) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	rec, err := h.Ledger.Get(r.Context(), userID(r), kind, chi.URLParam(r, "id"))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(rec).Write(w)
}

// readRecord decodes a record body for kind owned by the caller.
func (h *handlers) readRecord(w http.ResponseWriter, r *http.Request) (core.Record, error) {
	kind, err := kindParam(r)
	if err != nil {
		return core.Record{}, err
	}
	var rec core.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		return core.Record{}, err
	}
	rec.Kind = kind
	rec.UserID = userID(r)
	keepOnlyDetails(&rec, kind)
	sanitizeRecord(&rec)
	return rec, nil
}

func (h *handlers) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.readRecord(w, r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	saved, err := h.Ledger.Create(r.Context(), rec)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/records/"+string(saved.Kind)+"/"+saved.ID).
		Data(saved).
		Write(w)
}

func (h *handlers) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.readRecord(w, r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	rec.ID = chi.URLParam(r, "id")
	if _, err := h.Ledger.Get(r.Context(), rec.UserID, rec.Kind, rec.ID); err != nil {
		FromError(r, err).Write(w)
		return
	}
	saved, err := h.Ledger.Update(r.Context(), rec)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(saved).Write(w)
}

func (h *handlers) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if err := h.Ledger.Delete(r.Context(), userID(r), kind, chi.URLParam(r, "id")); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type loanPaymentResponse struct {
	Payment core.LoanPayment `json:"payment"`
	Loan    core.Record      `json:"loan"`
}

func (h *handlers) handleListLoanPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Ledger.ListLoanPayments(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"payments": payments, "count": len(payments)}).Write(w)
}

func (h *handlers) readLoanPayment(w http.ResponseWriter, r *http.Request) (core.LoanPayment, error) {
	var p core.LoanPayment
	if err := decodeJSON(w, r, &p); err != nil {
		return core.LoanPayment{}, err
	}
	p.UserID = userID(r)
	p.LoanID = chi.URLParam(r, "id")
	p.Method = sanitizeText(p.Method)
	p.Notes = sanitizeText(p.Notes)
	return p, nil
}

func (h *handlers) handleAddLoanPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.readLoanPayment(w, r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	saved, loan, err := h.Ledger.AddLoanPayment(r.Context(), p)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(loanPaymentResponse{Payment: saved, Loan: loan}).Write(w)
}

func (h *handlers) handleUpdateLoanPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.readLoanPayment(w, r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	p.ID = chi.URLParam(r, "paymentID")
	if err := h.belongsToLoan(r, p.LoanID, p.ID); err != nil {
		FromError(r, err).Write(w)
		return
	}
	saved, loan, err := h.Ledger.UpdateLoanPayment(r.Context(), p)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(loanPaymentResponse{Payment: saved, Loan: loan}).Write(w)
}

func (h *handlers) handleDeleteLoanPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if err := h.belongsToLoan(r, chi.URLParam(r, "id"), paymentID); err != nil {
		FromError(r, err).Write(w)
		return
	}
	loan, err := h.Ledger.DeleteLoanPayment(r.Context(), userID(r), paymentID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"loan": loan}).Write(w)
}

// belongsToLoan reports ErrNotFound unless paymentID is a payment of the
// caller's loan loanID.
func (h *handlers) belongsToLoan(r *http.Request, loanID, paymentID string) error {
	payments, err := h.Ledger.ListLoanPayments(r.Context(), userID(r), loanID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.ID == paymentID {
			return nil
		}
	}
	return fmt.Errorf("loan payment %s: %w", paymentID, core.ErrNotFound)
}

func (h *handlers) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	paid, next, err := h.Payments.MarkPaid(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"payment": paid, "next": next}).Write(w)
}

func (h *handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := ParseDashboardQuery(r.URL.Query())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	snap, err := h.Dashboard.Snapshot(r.Context(), userID(r), q)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	resp := NewJSONResponse().Data(snap)
	if snap.RateFallback {
		resp.Header("Warning", `199 fintrack "fixed exchange rates used"`)
	}
	resp.Write(w)
}

// handleCategoryCSV exports every category unless top is given. The file is
// built before anything is sent so failures still get a JSON error.
func (h *handlers) handleCategoryCSV(w http.ResponseWriter, r *http.Request) {
	q, err := ParseDashboardQuery(r.URL.Query())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if !r.URL.Query().Has("top") {
		q.TopN = services.AllCategories
	}
	var buf bytes.Buffer
	cur, err := h.Dashboard.WriteCategoryCSV(r.Context(), &buf, userID(r), q)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="categories-`+strings.ToLower(string(cur))+`.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to send category CSV", "error", err)
	}
}

// historyQuery parses the history filters and resolves the currency: the
// query wins, then the caller's preference, then the reporting currency.
func (h *handlers) historyQuery(r *http.Request) (services.HistoryQuery, error) {
	q, err := ParseHistoryQuery(r.URL.Query(), time.Now())
	if err != nil {
		return q, err
	}
	if q.Currency == "" {
		p, err := h.Profiles.Get(r.Context(), userID(r))
		if err != nil {
			return q, err
		}
		q.Currency = p.CurrencyPreference
	}
	return q, nil
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	q, err := h.historyQuery(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	hist, err := h.Ledger.History(r.Context(), userID(r), q)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	resp := NewJSONResponse().Data(hist)
	if hist.RateFallback {
		resp.Header("Warning", `199 fintrack "fixed exchange rates used"`)
	}
	resp.Write(w)
}

func (h *handlers) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.historyQuery(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	hist, err := h.Ledger.History(r.Context(), userID(r), q)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := ledger.WriteHistoryCSV(&buf, hist); err != nil {
		FromError(r, err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="history-`+strings.ToLower(string(hist.Currency))+`.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to send history CSV", "error", err)
	}
}

type ratesResponse struct {
	Book   *fx.RateBook          `json:"book"`
	Stored *storage.RateSnapshot `json:"stored,omitempty"`
}

func (h *handlers) handleRates(w http.ResponseWriter, r *http.Request) {
	target := h.Reporting
	if v := r.URL.Query().Get("currency"); v != "" {
		cur, err := core.ParseCurrency(v)
		if err != nil {
			FromError(r, core.NewValidationError("currency", err)).Write(w)
			return
		}
		target = cur
	}
	book, err := h.Converter.Book(r.Context(), target)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	resp := ratesResponse{Book: book}
	if h.Rates != nil && target == h.Reporting {
		snap, err := h.Rates.Latest(r.Context())
		switch {
		case err == nil:
			resp.Stored = &snap
		case !errors.Is(err, core.ErrNotFound):
			FromError(r, err).Write(w)
			return
		}
	}
	NewJSONResponse().Data(resp).Write(w)
}

func (h *handlers) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, err := ParseConvertRequest(r.URL.Query())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if req.HistoricalRate.Valid && req.From != req.To {
		if err := fx.ValidateRate(req.From, req.To, req.HistoricalRate.Decimal); err != nil {
			FromError(r, err).Write(w)
			return
		}
	}
	res, err := h.Converter.Convert(r.Context(), req)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(res).Write(w)
}

func (h *handlers) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.Get(r.Context(), userID(r))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if p.Email == "" {
		if u, ok := identity.FromContext(r.Context()); ok {
			p.Email = u.Email
		}
	}
	NewJSONResponse().Data(p).Write(w)
}

func (h *handlers) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p core.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		FromError(r, err).Write(w)
		return
	}
	p.FullName = sanitizeText(p.FullName)
	p.Email = sanitizeText(p.Email)
	saved, err := h.Profiles.Update(r.Context(), userID(r), p)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	h.Dashboard.InvalidateUser(saved.UserID)
	NewJSONResponse().Data(saved).Write(w)
}
