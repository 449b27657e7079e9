package core

import (
	"encoding/json"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if d.Year() < 1900 || d.Year() > 9999 {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// AddMonths shifts d by n months, clamping to the last day of the target
// month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange selects records with Start <= date < End. A zero Start or End
// leaves that side unbounded.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// AllTime is the unbounded range.
var AllTime = DateRange{}

// Contains reports whether d falls inside the half-open range.
func (r DateRange) Contains(d Date) bool {
	if !r.Start.IsZero() && d.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !d.Before(r.End) {
		return false
	}
	return true
}

// IsUnbounded reports whether the range has neither start nor end.
func (r DateRange) IsUnbounded() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && !r.Start.Before(r.End) {
		return NewValidationError("range", ErrInvalidDate)
	}
	return nil
}

// Window names a preset reporting period.
type Window string

const (
	WindowThisMonth   Window = "this-month"
	WindowLast3Months Window = "last-3-months"
	WindowLast6Months Window = "last-6-months"
	WindowThisYear    Window = "this-year"
	WindowAll         Window = "all"
)

// Range resolves w relative to now. Rolling windows start on the first day
// of the month n-1 months back and end at the start of next month.
func (w Window) Range(now time.Time) (DateRange, error) {
	monthStart := NewDate(now.Year(), int(now.Month()), 1)
	nextMonth := monthStart.AddMonths(1)
	switch w {
	case WindowThisMonth:
		return DateRange{Start: monthStart, End: nextMonth}, nil
	case WindowLast3Months:
		return DateRange{Start: monthStart.AddMonths(-2), End: nextMonth}, nil
	case WindowLast6Months:
		return DateRange{Start: monthStart.AddMonths(-5), End: nextMonth}, nil
	case WindowThisYear:
		return DateRange{Start: NewDate(now.Year(), 1, 1), End: NewDate(now.Year()+1, 1, 1)}, nil
	case WindowAll, "":
		return AllTime, nil
	default:
		return DateRange{}, NewValidationError("window", ErrInvalidDate)
	}
}
