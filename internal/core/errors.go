package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRate         = errors.New("invalid exchange rate")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidKind         = errors.New("invalid record kind")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrEmptyName           = errors.New("empty name")
	ErrTooLong             = errors.New("value too long")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrUnsupportedPair     = errors.New("unsupported currency pair")
	ErrOverpayment         = errors.New("principal exceeds current balance")
	ErrPaymentMismatch     = errors.New("amount must equal principal plus interest")
	ErrNotFound            = errors.New("record not found")
	ErrAlreadySettled      = errors.New("payment already settled")
)

// Category errors used with errors.Is to classify failures without
// inspecting concrete types.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConversion  = errors.New("conversion failed")
	ErrPersistence = errors.New("persistence failed")
)

// ValidationError rejects a record or rate before it is persisted.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %v", e.Err)
	}
	return fmt.Sprintf("validation failed: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

// ConversionError is returned when an amount cannot be expressed in the
// requested currency.
type ConversionError struct {
	From Currency
	To   Currency
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to %s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() []error { return []error{ErrConversion, e.Err} }

// PersistenceError carries a storage failure to the caller unmodified.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// SkippedRecord identifies a record left out of an aggregation.
type SkippedRecord struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

// PartialAggregationWarning reports records that were excluded from totals.
// It accompanies a successful result and is never a hard failure.
type PartialAggregationWarning struct {
	Skipped []SkippedRecord
}

func (w *PartialAggregationWarning) Error() string {
	reasons := make([]string, 0, len(w.Skipped))
	for _, s := range w.Skipped {
		reasons = append(reasons, fmt.Sprintf("%s/%s: %s", s.Kind, s.ID, s.Reason))
	}
	return fmt.Sprintf("%d record(s) skipped: %s", len(w.Skipped), strings.Join(reasons, "; "))
}
