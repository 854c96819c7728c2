package service

import (
	"testing"
	"time"
)

func TestNewStreakTrackerRejectsBadTimezone(t *testing.T) {
	if _, err := NewStreakTracker("Nowhere/Imaginary"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestStreakNext(t *testing.T) {
	tracker, err := NewStreakTracker("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewStreakTracker: %v", err)
	}
	ist := time.FixedZone("IST", int((5*time.Hour + 30*time.Minute).Seconds()))

	day := func(d, h, min int) time.Time {
		return time.Date(2026, 3, d, h, min, 0, 0, ist)
	}

	tests := []struct {
		name    string
		last    *time.Time
		now     time.Time
		current int
		want    int
	}{
		{"first activity ever", nil, day(10, 12, 0), 0, 1},
		{"same day keeps streak", timePtr(day(10, 9, 0)), day(10, 21, 0), 4, 4},
		{"same day with zero streak repairs to one", timePtr(day(10, 9, 0)), day(10, 21, 0), 0, 1},
		{"next day increments", timePtr(day(10, 12, 0)), day(11, 12, 0), 4, 5},
		{"two day gap resets", timePtr(day(10, 12, 0)), day(12, 12, 0), 4, 1},
		{"just past midnight still counts as next day", timePtr(day(10, 23, 50)), day(11, 0, 10), 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tracker.Next(tt.last, tt.now, tt.current); got != tt.want {
				t.Errorf("Next = %d, want %d", got, tt.want)
			}
		})
	}
}

// The day boundary is computed in the tracker's timezone, not in the
// timestamp's own location.
func TestStreakUsesTrackerTimezone(t *testing.T) {
	tracker, err := NewStreakTracker("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewStreakTracker: %v", err)
	}

	// 19:00 UTC on March 10 is already 00:30 on March 11 in Kolkata.
	last := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

	if got := tracker.Next(&last, now, 3); got != 3 {
		t.Errorf("Next = %d, want 3 (same Kolkata calendar day)", got)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
