package timebase

import (
	"testing"
	"time"
)

func TestCountsForDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		hz   uint64
		want Counts
	}{
		{time.Second, DefaultHz, Counts(DefaultHz)},
		{time.Millisecond, 1000, 1},
		{500 * time.Millisecond, 1000, 500},
		{0, DefaultHz, 0},
		{-time.Second, DefaultHz, 0},
		{2 * time.Second, 1, 2},
	}
	for _, tc := range cases {
		got := CountsForDuration(tc.d, tc.hz)
		if got != tc.want {
			t.Errorf("CountsForDuration(%v, %d) = %d, want %d", tc.d, tc.hz, got, tc.want)
		}
	}
}

func TestDurationForCounts(t *testing.T) {
	if got := DurationForCounts(Counts(DefaultHz), DefaultHz); got != time.Second {
		t.Errorf("one second of counts = %v, want 1s", got)
	}
	if got := DurationForCounts(500, 1000); got != 500*time.Millisecond {
		t.Errorf("500 counts at 1kHz = %v, want 500ms", got)
	}
	if got := DurationForCounts(0, DefaultHz); got != 0 {
		t.Errorf("zero counts = %v, want 0", got)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{time.Millisecond, 16 * time.Millisecond, time.Second} {
		c := CountsForDuration(d, DefaultHz)
		back := DurationForCounts(c, DefaultHz)
		diff := back - d
		if diff < 0 {
			diff = -diff
		}
		// One count of slack at 46.875MHz is ~21ns.
		if diff > time.Microsecond {
			t.Errorf("round trip of %v drifted by %v", d, diff)
		}
	}
}

func TestRealSourceMonotonic(t *testing.T) {
	src, err := NewRealSource(DefaultHz)
	if err != nil {
		t.Fatalf("NewRealSource: %v", err)
	}
	a := src.Now()
	time.Sleep(2 * time.Millisecond)
	b := src.Now()
	if b <= a {
		t.Fatalf("counter did not advance: %d then %d", a, b)
	}
}

func TestRealSourceRejectsZeroHz(t *testing.T) {
	if _, err := NewRealSource(0); err == nil {
		t.Fatal("expected error for zero frequency")
	}
	if _, err := NewVirtualSource(0); err == nil {
		t.Fatal("expected error for zero frequency")
	}
}

func TestVirtualSourceAdvance(t *testing.T) {
	src, err := NewVirtualSource(1000)
	if err != nil {
		t.Fatalf("NewVirtualSource: %v", err)
	}
	if src.Now() != 0 {
		t.Fatalf("virtual source did not start at zero: %d", src.Now())
	}
	src.Advance(250)
	src.Advance(250)
	if got := src.Now(); got != 500 {
		t.Fatalf("Now() = %d, want 500", got)
	}
}

func TestVirtualSourceSleepUntil(t *testing.T) {
	src, err := NewVirtualSource(1000)
	if err != nil {
		t.Fatalf("NewVirtualSource: %v", err)
	}

	done := make(chan bool, 1)
	go func() {
		done <- src.SleepUntil(100, nil)
	}()

	select {
	case <-done:
		t.Fatal("sleeper woke before the deadline was reached")
	case <-time.After(10 * time.Millisecond):
	}

	src.Advance(100)
	select {
	case reached := <-done:
		if !reached {
			t.Fatal("SleepUntil reported deadline not reached")
		}
	case <-time.After(time.Second):
		t.Fatal("sleeper did not wake after Advance")
	}
}

func TestVirtualSourceSleepUntilWake(t *testing.T) {
	src, err := NewVirtualSource(1000)
	if err != nil {
		t.Fatalf("NewVirtualSource: %v", err)
	}

	wake := make(chan struct{})
	done := make(chan bool, 1)
	go func() {
		done <- src.SleepUntil(100, wake)
	}()

	close(wake)
	select {
	case reached := <-done:
		if reached {
			t.Fatal("SleepUntil reported deadline reached after early wake")
		}
	case <-time.After(time.Second):
		t.Fatal("sleeper did not wake on the wake channel")
	}
}
