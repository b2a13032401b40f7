// Package timeutil provides a clock abstraction so run timestamps and stage
// timings can be fixed in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the mocked duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Stopwatch records named stage durations against a Clock.
type Stopwatch struct {
	clock  Clock
	start  time.Time
	stages []Stage
}

// Stage is one timed step.
type Stage struct {
	Name     string
	Duration time.Duration
}

// NewStopwatch starts timing at clock.Now().
func NewStopwatch(clock Clock) *Stopwatch {
	return &Stopwatch{clock: clock, start: clock.Now()}
}

// Lap closes the current stage under name and starts the next one.
func (s *Stopwatch) Lap(name string) time.Duration {
	d := s.clock.Since(s.start)
	s.stages = append(s.stages, Stage{Name: name, Duration: d})
	s.start = s.clock.Now()
	return d
}

// Stages returns the recorded stages in order.
func (s *Stopwatch) Stages() []Stage {
	return append([]Stage(nil), s.stages...)
}
