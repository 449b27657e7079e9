package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fintrack/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/records/expense/1").
		Data(map[string]string{"id": "1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("Location") != "/api/v1/records/expense/1" {
		t.Errorf("Location header missing")
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["id"] != "1" {
		t.Errorf("Body = %q (%v)", w.Body.String(), err)
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Data("ignored").Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("expected empty 204, got %d %q", w.Code, w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Data(make(chan int)).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"validation", fmt.Errorf("save: %w", core.NewValidationError("amount", core.ErrInvalidAmount)), http.StatusUnprocessableEntity, "amount"},
		{"bad request", fmt.Errorf("%w: malformed JSON", errBadRequest), http.StatusBadRequest, ""},
		{"not found", fmt.Errorf("record x: %w", core.ErrNotFound), http.StatusNotFound, ""},
		{"unsupported", &core.ConversionError{From: "JPY", To: core.INR, Err: core.ErrUnsupportedCurrency}, http.StatusBadRequest, ""},
		{"provider down", &core.ConversionError{From: core.USD, To: core.INR, Err: errors.New("timeout")}, http.StatusBadGateway, ""},
		{"persistence", &core.PersistenceError{Op: "insert", Err: errors.New("disk I/O error")}, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
			FromError(r, tt.err).Write(w)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var body ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Field != tt.field {
				t.Fatalf("field = %q, want %q", body.Field, tt.field)
			}
			if tt.status == http.StatusInternalServerError && body.Error != "internal error" {
				t.Fatalf("internal details leaked: %q", body.Error)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("unexpected response %d %q", w.Code, w.Header().Get("Allow"))
	}
}
