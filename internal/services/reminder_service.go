package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/jordan-wright/email"
)

// Reminder groups one user's payments that need attention.
type Reminder struct {
	To       string
	Name     string
	Upcoming []core.Record
	Overdue  []core.Record
}

// Mailer delivers reminders.
type Mailer interface {
	SendReminder(ctx context.Context, r Reminder) error
}

// SMTPMailer sends reminders as plain-text email.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

var _ Mailer = (*SMTPMailer)(nil)

func (m *SMTPMailer) SendReminder(ctx context.Context, r Reminder) error {
	e := m.message(r)
	addr := m.Host + ":" + strconv.Itoa(m.Port)
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("send reminder to %s: %w", r.To, err)
	}
	slog.InfoContext(ctx, "Reminder email sent", "to", r.To, "subject", e.Subject)
	return nil
}

func (m *SMTPMailer) message(r Reminder) *email.Email {
	e := email.NewEmail()
	e.From = m.From
	e.To = []string{r.To}
	if len(r.Overdue) > 0 {
		e.Subject = "Overdue payment notification"
	} else {
		e.Subject = "Upcoming payment reminder"
	}
	e.Text = []byte(reminderBody(r))
	return e
}

func reminderBody(r Reminder) string {
	var b strings.Builder
	name := r.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	if len(r.Overdue) > 0 {
		b.WriteString("These payments are past their due date:\n")
		writePayments(&b, r.Overdue)
		b.WriteString("\n")
	}
	if len(r.Upcoming) > 0 {
		b.WriteString("These payments are due soon:\n")
		writePayments(&b, r.Upcoming)
		b.WriteString("\n")
	}
	b.WriteString("Mark them as paid in fintrack once settled.\n")
	return b.String()
}

func writePayments(b *strings.Builder, recs []core.Record) {
	for _, r := range recs {
		fmt.Fprintf(b, "  - %s: %s %s due %s", r.Payment.Name, r.Amount.StringFixed(2), r.Currency, r.OccurredOn.String())
		if r.Payment.Recipient != "" {
			fmt.Fprintf(b, " to %s", r.Payment.Recipient)
		}
		b.WriteString("\n")
	}
}

// ReminderService emails users about payments inside their reminder window
// or past due.
type ReminderService struct {
	pending  PendingPayments
	profiles ProfileStore
	mailer   Mailer
	window   DuenessChecker
	overdue  DuenessChecker
}

// NewReminderService builds the service. A nil mailer logs reminders
// instead of sending them.
func NewReminderService(pending PendingPayments, profiles ProfileStore, mailer Mailer) *ReminderService {
	return &ReminderService{
		pending:  pending,
		profiles: profiles,
		mailer:   mailer,
		window:   mustChecker(DueReminder),
		overdue:  mustChecker(DueOverdue),
	}
}

// Run sends one reminder per user with payments needing attention on the
// day of now and returns how many reminders went out.
func (s *ReminderService) Run(ctx context.Context, now time.Time) (int, error) {
	today := core.DateOf(now)
	pending, err := s.pending.ListPendingPaymentsDueBefore(ctx, today.AddDays(core.MaxReminderDays+1))
	if err != nil {
		return 0, fmt.Errorf("list pending payments: %w", err)
	}

	byUser := map[string]*Reminder{}
	for _, rec := range pending {
		var isOverdue bool
		switch {
		case s.overdue.IsDue(rec, today):
			isOverdue = true
		case s.window.IsDue(rec, today):
		default:
			continue
		}
		r := byUser[rec.UserID]
		if r == nil {
			r = &Reminder{}
			byUser[rec.UserID] = r
		}
		if isOverdue {
			r.Overdue = append(r.Overdue, rec)
		} else {
			r.Upcoming = append(r.Upcoming, rec)
		}
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	sent := 0
	for _, userID := range users {
		r := byUser[userID]
		profile, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load profile for reminder", "user_id", userID, "error", err)
			continue
		}
		if profile.Email == "" {
			slog.WarnContext(ctx, "Skipping reminder, no email on profile", "user_id", userID)
			continue
		}
		r.To, r.Name = profile.Email, profile.FullName

		if s.mailer == nil {
			slog.InfoContext(ctx, "Payment reminder",
				"user_id", userID,
				"upcoming", len(r.Upcoming),
				"overdue", len(r.Overdue))
			sent++
			continue
		}
		if err := s.mailer.SendReminder(ctx, *r); err != nil {
			slog.ErrorContext(ctx, "Failed to send reminder", "user_id", userID, "error", err)
			continue
		}
		sent++
	}

	slog.InfoContext(ctx, "Reminder run complete",
		"sent", sent,
		"users", len(users),
		"checked", len(pending),
		"date", today.String())
	return sent, nil
}
