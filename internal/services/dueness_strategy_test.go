package services

import (
	"testing"

	"fintrack/internal/core"
)

func TestReminderWindowChecker_IsDue(t *testing.T) {
	checker := ReminderWindowChecker{}
	due := core.NewDate(2025, 8, 20)

	tests := []struct {
		name         string
		today        core.Date
		reminderDays int
		status       core.PaymentStatus
		want         bool
	}{
		{"before window", core.NewDate(2025, 8, 16), 3, core.PaymentPending, false},
		{"window opens", core.NewDate(2025, 8, 17), 3, core.PaymentPending, true},
		{"due day", due, 3, core.PaymentPending, true},
		{"after due", core.NewDate(2025, 8, 21), 3, core.PaymentPending, false},
		{"no reminder", due, 0, core.PaymentPending, false},
		{"already paid", due, 3, core.PaymentPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := payment("p1", "user-1", due, core.FrequencyOnce)
			p.Payment.ReminderDays = tt.reminderDays
			p.Payment.Status = tt.status
			if got := checker.IsDue(p, tt.today); got != tt.want {
				t.Errorf("ReminderWindowChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverdueChecker_IsDue(t *testing.T) {
	checker := OverdueChecker{}
	due := core.NewDate(2025, 8, 20)

	tests := []struct {
		name  string
		today core.Date
		want  bool
	}{
		{"before due", core.NewDate(2025, 8, 19), false},
		{"on due date", due, false},
		{"day after", core.NewDate(2025, 8, 21), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(payment("p1", "user-1", due, core.FrequencyOnce), tt.today); got != tt.want {
				t.Errorf("OverdueChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAutoPayChecker_IsDue(t *testing.T) {
	checker := AutoPayChecker{}
	due := core.NewDate(2025, 8, 20)

	tests := []struct {
		name    string
		today   core.Date
		autoPay bool
		want    bool
	}{
		{"before due", core.NewDate(2025, 8, 19), true, false},
		{"on due date", due, true, true},
		{"late", core.NewDate(2025, 9, 1), true, true},
		{"manual payment", due, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := payment("p1", "user-1", due, core.FrequencyMonthly)
			p.Payment.AutoPay = tt.autoPay
			if got := checker.IsDue(p, tt.today); got != tt.want {
				t.Errorf("AutoPayChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDuenessChecker(t *testing.T) {
	for _, name := range []Dueness{DueReminder, DueOverdue, DueAutoPay} {
		if _, err := GetDuenessChecker(name); err != nil {
			t.Errorf("GetDuenessChecker(%s): %v", name, err)
		}
	}
	if _, err := GetDuenessChecker("hourly"); err == nil {
		t.Error("expected error for unknown rule")
	}
}

func TestNonPaymentsAreNeverDue(t *testing.T) {
	rec := core.Record{Kind: core.KindExpense, OccurredOn: core.NewDate(2025, 1, 1)}
	today := core.NewDate(2025, 8, 1)
	for _, c := range []DuenessChecker{ReminderWindowChecker{}, OverdueChecker{}, AutoPayChecker{}} {
		if c.IsDue(rec, today) {
			t.Errorf("%T reported an expense as due", c)
		}
	}
}
