// Package clock provides elapsed-time measurement and compact duration formatting.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Stopwatch measures elapsed time between Start and Stop.
type Stopwatch struct {
	mu    sync.Mutex
	now   func() time.Time
	begin time.Time
	end   time.Time
}

// New returns a stopwatch started now.
func New() *Stopwatch {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{now: now, begin: t, end: t}
}

// Start (re)starts the stopwatch.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin = s.now()
}

// Elapsed returns the time since the last Start, whether or not it was stopped.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.begin)
}

// Stop records the end time.
func (s *Stopwatch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end = s.now()
}

// Duration returns the time between the last Start and the last Stop.
func (s *Stopwatch) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end.Sub(s.begin)
}

// Time runs fn between Start and Stop and returns the measured duration.
func (s *Stopwatch) Time(fn func()) time.Duration {
	s.Start()
	defer s.Stop()
	fn()
	return s.Elapsed()
}

// FormatDuration renders d in whole seconds as "42s", "3m7s" or "2h0m5s".
// Negative durations are treated as zero.
func FormatDuration(d time.Duration) string {
	return FormatSeconds(int64(d / time.Second))
}

// FormatSeconds renders a number of seconds like FormatDuration.
func FormatSeconds(second int64) string {
	if second < 0 {
		second = 0
	}
	switch {
	case second < 60:
		return fmt.Sprintf("%ds", second)
	case second < 3600:
		return fmt.Sprintf("%dm%ds", second/60, second%60)
	default:
		return fmt.Sprintf("%dh%dm%ds", second/3600, second%3600/60, second%60)
	}
}
