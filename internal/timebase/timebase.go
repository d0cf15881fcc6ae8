// Package timebase virtualizes the fixed-frequency hardware counter the
// legacy operating system exposed to clients. All kernel timing (timer
// countdowns, timeout waits, the counter register) is expressed in Counts
// of this base, which is backed either by the Go monotonic clock or by a
// manually advanced virtual clock for deterministic tests.
package timebase

import (
	"fmt"
	"sync"
	"time"

	"fortio.org/safecast"
)

// Counts is a value of the virtualized counter register.
type Counts uint64

// DefaultHz is the count rate of the original hardware counter.
const DefaultHz uint64 = 46_875_000

const nsPerSecond uint64 = 1_000_000_000

// Source supplies the current count value and blocking behavior for
// deadline waits.
type Source interface {
	// Now returns the current counter value.
	Now() Counts

	// Hz returns the counter frequency in counts per second.
	Hz() uint64

	// SleepUntil blocks until the counter reaches deadline or wake is
	// closed/receives, whichever happens first. It reports whether the
	// deadline was reached.
	SleepUntil(deadline Counts, wake <-chan struct{}) bool
}

// CountsForDuration converts a wall duration to counts at the given rate.
func CountsForDuration(d time.Duration, hz uint64) Counts {
	if d <= 0 || hz == 0 {
		return 0
	}
	ns, err := safecast.Conv[uint64](d.Nanoseconds())
	if err != nil {
		return 0
	}
	secs := ns / nsPerSecond
	rem := ns % nsPerSecond
	return Counts(secs*hz + rem*hz/nsPerSecond)
}

// DurationForCounts converts counts at the given rate to a wall duration.
// The result saturates at the maximum representable duration.
func DurationForCounts(c Counts, hz uint64) time.Duration {
	if c == 0 || hz == 0 {
		return 0
	}
	secs := uint64(c) / hz
	rem := uint64(c) % hz
	ns := secs*nsPerSecond + rem*nsPerSecond/hz
	out, err := safecast.Conv[int64](ns)
	if err != nil {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(out)
}

// RealSource scales the Go monotonic clock to the configured count rate.
type RealSource struct {
	hz    uint64
	start time.Time
}

// NewRealSource creates a real-clock source counting from now.
func NewRealSource(hz uint64) (*RealSource, error) {
	if hz == 0 {
		return nil, fmt.Errorf("timebase: zero frequency")
	}
	return &RealSource{hz: hz, start: time.Now()}, nil
}

// Now returns counts elapsed since the source was created.
func (s *RealSource) Now() Counts {
	return CountsForDuration(time.Since(s.start), s.hz)
}

// Hz returns the counter frequency.
func (s *RealSource) Hz() uint64 { return s.hz }

// SleepUntil blocks on the wall clock until deadline counts have elapsed,
// or until wake fires.
func (s *RealSource) SleepUntil(deadline Counts, wake <-chan struct{}) bool {
	for {
		now := s.Now()
		if now >= deadline {
			return true
		}
		t := time.NewTimer(DurationForCounts(deadline-now, s.hz))
		select {
		case <-t.C:
		case <-wake:
			t.Stop()
			return s.Now() >= deadline
		}
	}
}

// VirtualSource advances only by explicit Advance calls. Sleepers observe
// advances through a broadcast channel that is replaced on every change.
type VirtualSource struct {
	mu      sync.Mutex
	hz      uint64
	now     Counts
	changed chan struct{}
}

// NewVirtualSource creates a virtual source starting at count zero.
func NewVirtualSource(hz uint64) (*VirtualSource, error) {
	if hz == 0 {
		return nil, fmt.Errorf("timebase: zero frequency")
	}
	return &VirtualSource{hz: hz, changed: make(chan struct{})}, nil
}

// Now returns the current virtual count.
func (s *VirtualSource) Now() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Hz returns the counter frequency.
func (s *VirtualSource) Hz() uint64 { return s.hz }

// Advance moves the virtual counter forward and wakes all sleepers.
func (s *VirtualSource) Advance(delta Counts) {
	s.mu.Lock()
	s.now += delta
	ch := s.changed
	s.changed = make(chan struct{})
	s.mu.Unlock()
	close(ch)
}

// SleepUntil blocks until Advance moves the counter past deadline, or
// until wake fires.
func (s *VirtualSource) SleepUntil(deadline Counts, wake <-chan struct{}) bool {
	for {
		s.mu.Lock()
		now := s.now
		ch := s.changed
		s.mu.Unlock()
		if now >= deadline {
			return true
		}
		select {
		case <-ch:
		case <-wake:
			return s.Now() >= deadline
		}
	}
}
