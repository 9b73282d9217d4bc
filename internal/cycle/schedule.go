package cycle

import (
	"context"
	"time"
)

// Schedule decides how long to sleep after a cycle.
type Schedule struct {
	Interval time.Duration
	// Align sleeps until the next Interval boundary counted from local
	// midnight, plus Offset, instead of a flat Interval.
	Align    bool
	Offset   time.Duration
	MinSleep time.Duration
	Location *time.Location
}

// Next returns the sleep after a cycle that finished at now.
func (s Schedule) Next(now time.Time) time.Duration {
	wait := s.Interval
	if s.Align && s.Interval > 0 {
		loc := s.Location
		if loc == nil {
			loc = now.Location()
		}
		t := now.In(loc)
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		slots := t.Sub(midnight) / s.Interval
		next := midnight.Add((slots + 1) * s.Interval).Add(s.Offset)
		wait = next.Sub(t)
	}
	if wait < s.MinSleep {
		wait = s.MinSleep
	}
	return wait
}

// Clock is the runner's source of time.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
