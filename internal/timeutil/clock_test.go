package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()
	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
	if d := clock.Since(time.Now().Add(-time.Second)); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}
	clock.Advance(90 * time.Second)
	if got := clock.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
	later := start.Add(time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), later)
	}
}

func TestStopwatch(t *testing.T) {
	clock := NewMockClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	sw := NewStopwatch(clock)

	clock.Advance(2 * time.Second)
	if d := sw.Lap("fit"); d != 2*time.Second {
		t.Errorf("fit lap = %v, want 2s", d)
	}
	clock.Advance(500 * time.Millisecond)
	sw.Lap("group")

	stages := sw.Stages()
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if stages[1].Name != "group" || stages[1].Duration != 500*time.Millisecond {
		t.Errorf("unexpected second stage %+v", stages[1])
	}
}
