package service

import (
	"fmt"
	"time"
)

// StreakTracker computes daily-activity streaks using calendar days in a
// single fixed reference timezone, so the day boundary does not drift
// with request origin or server locale.
type StreakTracker struct {
	loc *time.Location
}

func NewStreakTracker(timezone string) (*StreakTracker, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading streak timezone %q: %w", timezone, err)
	}
	return &StreakTracker{loc: loc}, nil
}

// Next returns the streak value after an accepted submission at now.
// Same day keeps the current value, consecutive days increment it,
// anything else resets to one.
func (t *StreakTracker) Next(lastActivity *time.Time, now time.Time, current int) int {
	if lastActivity == nil {
		return 1
	}

	lastDay := t.dayOf(*lastActivity)
	today := t.dayOf(now)

	switch {
	case lastDay.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	case lastDay.AddDate(0, 0, 1).Equal(today):
		return current + 1
	default:
		return 1
	}
}

func (t *StreakTracker) dayOf(ts time.Time) time.Time {
	y, m, d := ts.In(t.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.loc)
}
