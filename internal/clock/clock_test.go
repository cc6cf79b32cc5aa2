package clock

import (
	"testing"
	"time"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2025, 11, 30, 23, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	c.Advance(2 * time.Hour)
	if got := c.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %s, got %s", start.Add(2*time.Hour), got)
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	if loc := NewSystemClock().Now().Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %s", loc)
	}
}
