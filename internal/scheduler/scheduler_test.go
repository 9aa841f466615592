package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func weekdays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}

func marketWindow() Window {
	return Window{StartHour: 9, EndHour: 18, Days: weekdays(), Location: time.UTC}
}

func TestWindowContains(t *testing.T) {
	w := marketWindow()

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		// 2024-03-04 is a Monday.
		{"weekday mid-window", time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), true},
		{"weekday window start", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), true},
		{"weekday last hour", time.Date(2024, 3, 4, 17, 59, 0, 0, time.UTC), true},
		{"weekday window end excluded", time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC), false},
		{"weekday before open", time.Date(2024, 3, 4, 8, 59, 0, 0, time.UTC), false},
		{"saturday mid-window hour", time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), false},
		{"sunday mid-window hour", time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := w.Contains(tc.at); got != tc.want {
				t.Fatalf("Contains(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestWindowZeroValueUnrestricted(t *testing.T) {
	var w Window
	if !w.Contains(time.Date(2024, 3, 3, 3, 0, 0, 0, time.UTC)) {
		t.Fatal("zero window must admit everything")
	}
}

func TestWindowHonoursLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	w := Window{StartHour: 9, EndHour: 18, Days: weekdays(), Location: loc}

	// 14:00 UTC on a Monday is 09:00 in UTC-5.
	at := time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)
	if !w.Contains(at) {
		t.Fatal("window must evaluate in its own location")
	}
	// 13:59 UTC is 08:59 local.
	if w.Contains(at.Add(-time.Minute)) {
		t.Fatal("one minute before local open must be outside")
	}
}

func newTestScheduler(opts Options) *Scheduler {
	return New(opts, zerolog.Nop())
}

func TestNextTickAligned(t *testing.T) {
	s := newTestScheduler(Options{Interval: time.Hour, AlignToStart: true})

	now := time.Date(2024, 3, 4, 10, 17, 42, 0, time.UTC)
	next := s.NextTick(now)
	want := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextTick = %s, want %s", next, want)
	}
}

func TestNextTickOnBoundaryStepsForward(t *testing.T) {
	s := newTestScheduler(Options{Interval: time.Hour, AlignToStart: true})

	now := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	next := s.NextTick(now)
	want := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextTick at boundary = %s, want %s", next, want)
	}
}

func TestNextTickSkipsOutOfWindowHours(t *testing.T) {
	s := newTestScheduler(Options{Interval: time.Hour, AlignToStart: true, Window: marketWindow()})

	// 17:30 Monday: next aligned tick is 18:00 which is past close, so the
	// first admissible tick is Tuesday 09:00.
	now := time.Date(2024, 3, 4, 17, 30, 0, 0, time.UTC)
	next := s.NextTick(now)
	want := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextTick = %s, want %s", next, want)
	}
}

func TestNextTickSkipsWeekend(t *testing.T) {
	s := newTestScheduler(Options{Interval: time.Hour, AlignToStart: true, Window: marketWindow()})

	// Friday 17:30: next admissible tick is Monday 09:00.
	now := time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC)
	next := s.NextTick(now)
	want := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextTick = %s, want %s", next, want)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(Options{Interval: time.Hour, AlignToStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, cycle time.Time) error { return nil })
	if err != context.Canceled {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}

func TestRunDeliversAlignedCycle(t *testing.T) {
	s := newTestScheduler(Options{Interval: 50 * time.Millisecond, AlignToStart: true})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cycles := make(chan time.Time, 1)
	go func() {
		_ = s.Run(ctx, func(ctx context.Context, cycle time.Time) error {
			select {
			case cycles <- cycle:
			default:
			}
			cancel()
			return nil
		})
	}()

	select {
	case cycle := <-cycles:
		if !cycle.Equal(cycle.Truncate(50 * time.Millisecond)) {
			t.Fatalf("cycle %s not aligned to interval", cycle)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tick never fired")
	}
}
