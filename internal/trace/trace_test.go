package trace

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func testEvent(name string, scope Scope) *Event {
	return &Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		Thread: 3,
		Name:   name,
	}
}

func TestRingTracerWrap(t *testing.T) {
	tr := NewRingTracer(4, LevelDebug)
	for i := 0; i < 6; i++ {
		tr.Emit(testEvent("ev", ScopeThread))
	}
	events := tr.Snapshot()
	if len(events) != 4 {
		t.Fatalf("snapshot holds %d events, want 4", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatalf("snapshot out of order: seq %d after %d", events[i].Seq, events[i-1].Seq)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeKernel, false},
		{LevelPhase, ScopeKernel, true},
		{LevelPhase, ScopeThread, true},
		{LevelPhase, ScopeQueue, false},
		{LevelDetail, ScopeQueue, true},
		{LevelDetail, ScopeTimer, false},
		{LevelDebug, ScopeTimer, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Errorf("Level(%s).ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestStreamTracerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	tr.Emit(testEvent("thread.start", ScopeThread))
	tr.Emit(testEvent("queue.send", ScopeQueue))
	out := buf.String()
	if !strings.Contains(out, "thread.start") {
		t.Errorf("thread-scope event missing from output: %q", out)
	}
	if strings.Contains(out, "queue.send") {
		t.Errorf("queue-scope event leaked through phase level: %q", out)
	}
}

func TestNDJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	tr.Emit(testEvent("a", ScopeKernel))
	tr.Emit(testEvent("b", ScopeTimer))

	events, err := ReadAll(&buf, FormatNDJSON)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("decoded %d events, want 2", len(events))
	}
	if events[0].Name != "a" || events[1].Name != "b" {
		t.Fatalf("decoded names %q, %q", events[0].Name, events[1].Name)
	}
	if events[1].Scope != ScopeTimer {
		t.Fatalf("decoded scope %v, want timer", events[1].Scope)
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatMsgpack)
	ev := testEvent("timer.fire", ScopeTimer)
	ev.Extra = map[string]string{"timer": "2"}
	tr.Emit(ev)

	events, err := ReadAll(&buf, FormatMsgpack)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("decoded %d events, want 1", len(events))
	}
	got := events[0]
	if got.Name != "timer.fire" || got.Thread != 3 || got.Extra["timer"] != "2" {
		t.Fatalf("decoded event mismatch: %+v", got)
	}
}

func TestMultiTracerFansOut(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(16, LevelDebug)
	stream := NewStreamTracer(&buf, LevelDebug, FormatText)
	tr := NewMultiTracer(LevelDebug, stream, ring)

	tr.Emit(testEvent("boot", ScopeKernel))
	if len(ring.Snapshot()) != 1 {
		t.Errorf("ring did not record the event")
	}
	if !strings.Contains(buf.String(), "boot") {
		t.Errorf("stream did not record the event")
	}
}

func TestNopTracer(t *testing.T) {
	if Nop.Enabled() {
		t.Error("nop tracer reports enabled")
	}
	Nop.Emit(testEvent("x", ScopeKernel)) // must not panic
	if err := Nop.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseLevel("bogus"); err == nil {
		t.Error("ParseLevel accepted bogus input")
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("ParseMode accepted bogus input")
	}
	if _, err := ParseFormat("bogus"); err == nil {
		t.Error("ParseFormat accepted bogus input")
	}
	if f, err := ParseFormat("msgpack"); err != nil || f != FormatMsgpack {
		t.Errorf("ParseFormat(msgpack) = %v, %v", f, err)
	}
}
