package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSchedulerAddRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	if err := s.Add("rates", "not a spec", func(context.Context, time.Time) error { return nil }); err == nil {
		t.Fatalf("expected error for bad spec")
	}
	if err := s.Add("rates", "@every 1h", func(context.Context, time.Time) error { return nil }); err != nil {
		t.Fatalf("valid spec: %v", err)
	}
}

func TestSchedulerRunNow(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s := NewScheduler(context.Background(), time.UTC)
	s.now = func() time.Time { return fixed }

	var got time.Time
	s.RunNow("reminders", func(_ context.Context, now time.Time) error {
		got = now
		return errors.New("logged, not returned")
	})
	if !got.Equal(fixed) {
		t.Fatalf("expected job to see %v, got %v", fixed, got)
	}
}

func TestSchedulerSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScheduler(ctx, nil)
	ran := false
	s.RunNow("rates", func(context.Context, time.Time) error { ran = true; return nil })
	if ran {
		t.Fatalf("job ran after cancellation")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
