package services

import (
	"fmt"

	"fintrack/internal/core"
)

// DuenessChecker decides whether a pending scheduled payment needs action on
// a given day. Each implementation encodes one rule.
type DuenessChecker interface {
	IsDue(payment core.Record, today core.Date) bool
}

// ReminderWindowChecker is due from ReminderDays before the due date up to
// and including the due date.
type ReminderWindowChecker struct{}

func (ReminderWindowChecker) IsDue(p core.Record, today core.Date) bool {
	if !isPending(p) || p.Payment.ReminderDays <= 0 {
		return false
	}
	due := p.OccurredOn
	return !today.After(due) && !today.Before(due.AddDays(-p.Payment.ReminderDays))
}

// OverdueChecker is due once the due date has passed.
type OverdueChecker struct{}

func (OverdueChecker) IsDue(p core.Record, today core.Date) bool {
	return isPending(p) && p.OccurredOn.Before(today)
}

// AutoPayChecker is due on or after the due date for auto-pay payments.
type AutoPayChecker struct{}

func (AutoPayChecker) IsDue(p core.Record, today core.Date) bool {
	return isPending(p) && p.Payment.AutoPay && !p.OccurredOn.After(today)
}

func isPending(p core.Record) bool {
	return p.Kind == core.KindScheduledPayment && p.Payment != nil && p.Payment.Status == core.PaymentPending
}

// Dueness names a registered rule.
type Dueness string

const (
	DueReminder Dueness = "reminder"
	DueOverdue  Dueness = "overdue"
	DueAutoPay  Dueness = "auto_pay"
)

var duenessStrategies = map[Dueness]DuenessChecker{
	DueReminder: ReminderWindowChecker{},
	DueOverdue:  OverdueChecker{},
	DueAutoPay:  AutoPayChecker{},
}

// GetDuenessChecker returns the rule registered under name.
func GetDuenessChecker(name Dueness) (DuenessChecker, error) {
	checker, ok := duenessStrategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown dueness rule: %s", name)
	}
	return checker, nil
}

func mustChecker(name Dueness) DuenessChecker {
	c, err := GetDuenessChecker(name)
	if err != nil {
		panic(err)
	}
	return c
}
