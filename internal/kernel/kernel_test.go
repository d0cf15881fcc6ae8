package kernel

import (
	"errors"
	"sync"
	"testing"
	"time"

	"relic/internal/timebase"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(k.Shutdown)
	return k
}

func waitState(t *testing.T, k *Kernel, id ThreadID, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := k.ThreadState(id)
		if err != nil {
			t.Fatalf("ThreadState(%d): %v", id, err)
		}
		if st == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	st, _ := k.ThreadState(id)
	t.Fatalf("thread %d never reached %s, still %s", id, want, st)
}

// log collects entry-side observations across thread goroutines.
type log struct {
	mu sync.Mutex
	v  []string
}

func (l *log) add(s string) {
	l.mu.Lock()
	l.v = append(l.v, s)
	l.mu.Unlock()
}

func (l *log) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.v...)
}

func (l *log) waitLen(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := l.get(); len(v) >= n {
			return v
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("log stuck at %d entries, want %d: %v", len(l.get()), n, l.get())
	return nil
}

func TestPriorityOrder(t *testing.T) {
	k := newTestKernel(t)
	var got log

	worker := func(name string) func(any) {
		return func(any) { got.add(name) }
	}
	low, _ := k.CreateThread("low", 1, worker("low"), nil)
	high, _ := k.CreateThread("high", 3, worker("high"), nil)
	mid, _ := k.CreateThread("mid", 2, worker("mid"), nil)

	// The launcher outranks every worker, so none of them runs until it
	// exits. They then drain strictly by priority.
	launcher, err := k.CreateThread("launcher", 10, func(any) {
		for _, id := range []ThreadID{low, high, mid} {
			if err := k.StartThread(id); err != nil {
				got.add("err:" + err.Error())
			}
		}
	}, nil)
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if err := k.StartThread(launcher); err != nil {
		t.Fatalf("StartThread: %v", err)
	}

	v := got.waitLen(t, 3)
	want := []string{"high", "mid", "low"}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("run order = %v, want %v", v, want)
		}
	}
}

func TestYieldRoundRobin(t *testing.T) {
	k := newTestKernel(t)
	var got log

	spin := func(name string) func(any) {
		return func(any) {
			for i := 0; i < 3; i++ {
				got.add(name)
				if err := k.Yield(); err != nil {
					t.Errorf("Yield: %v", err)
					return
				}
			}
		}
	}
	a, _ := k.CreateThread("a", 5, spin("a"), nil)
	b, _ := k.CreateThread("b", 5, spin("b"), nil)
	launcher, _ := k.CreateThread("launcher", 10, func(any) {
		_ = k.StartThread(a)
		_ = k.StartThread(b)
	}, nil)
	if err := k.StartThread(launcher); err != nil {
		t.Fatalf("StartThread: %v", err)
	}

	v := got.waitLen(t, 6)
	want := []string{"a", "b", "a", "b", "a", "b"}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("yield order = %v, want %v", v, want)
		}
	}
}

func TestStartPreemptsLowerPriority(t *testing.T) {
	k := newTestKernel(t)
	var got log

	high, _ := k.CreateThread("high", 9, func(any) {
		got.add("high")
	}, nil)
	low, _ := k.CreateThread("low", 1, func(any) {
		got.add("before")
		// Starting an outranking thread hands control over before the
		// call returns.
		_ = k.StartThread(high)
		got.add("after")
	}, nil)
	if err := k.StartThread(low); err != nil {
		t.Fatalf("StartThread: %v", err)
	}

	v := got.waitLen(t, 3)
	want := []string{"before", "high", "after"}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("order = %v, want %v", v, want)
		}
	}
}

func TestQueueFIFOAndJam(t *testing.T) {
	k := newTestKernel(t)
	q, err := k.NewQueue("mix", make([]Message, 3))
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}

	if err := q.Send("a", NoBlock); err != nil {
		t.Fatalf("Send a: %v", err)
	}
	if err := q.Send("b", NoBlock); err != nil {
		t.Fatalf("Send b: %v", err)
	}
	if err := q.Jam("c", NoBlock); err != nil {
		t.Fatalf("Jam c: %v", err)
	}

	want := []string{"c", "a", "b"}
	for _, w := range want {
		msg, err := q.Recv(NoBlock)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if msg != w {
			t.Fatalf("Recv = %v, want %v", msg, w)
		}
	}
}

func TestQueueCapacityAndWouldBlock(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("cap", make([]Message, 2))

	if q.Cap() != 2 || !q.Empty() {
		t.Fatalf("fresh queue: len=%d cap=%d", q.Len(), q.Cap())
	}
	_ = q.Send(1, NoBlock)
	_ = q.Send(2, NoBlock)
	if !q.Full() {
		t.Fatalf("queue not full after 2 sends")
	}
	if err := q.Send(3, NoBlock); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("overflow send err = %v, want would-block", err)
	}
	if err := q.Jam(3, NoBlock); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("overflow jam err = %v, want would-block", err)
	}
	if q.Len() != 2 {
		t.Fatalf("failed send changed len to %d", q.Len())
	}
	_, _ = q.Recv(NoBlock)
	_, _ = q.Recv(NoBlock)
	if _, err := q.Recv(NoBlock); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("empty recv err = %v, want would-block", err)
	}
}

func TestBlockingRecvWokenBySend(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("wake", make([]Message, 1))
	var got log

	id, _ := k.CreateThread("rx", 5, func(any) {
		msg, err := q.Recv(Block)
		if err != nil {
			got.add("err:" + err.Error())
			return
		}
		got.add(msg.(string))
	}, nil)
	_ = k.StartThread(id)
	waitState(t, k, id, Waiting)

	if err := q.Send("hello", NoBlock); err != nil {
		t.Fatalf("Send: %v", err)
	}
	v := got.waitLen(t, 1)
	if v[0] != "hello" {
		t.Fatalf("received %q", v[0])
	}
	waitState(t, k, id, Stopped)
}

func TestBlockingSendWokenByRecv(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("full", make([]Message, 1))
	_ = q.Send("old", NoBlock)
	var got log

	id, _ := k.CreateThread("tx", 5, func(any) {
		if err := q.Send("new", Block); err != nil {
			got.add("err:" + err.Error())
			return
		}
		got.add("sent")
	}, nil)
	_ = k.StartThread(id)
	waitState(t, k, id, Waiting)

	msg, err := q.Recv(NoBlock)
	if err != nil || msg != "old" {
		t.Fatalf("Recv = %v, %v", msg, err)
	}
	v := got.waitLen(t, 1)
	if v[0] != "sent" {
		t.Fatalf("sender saw %q", v[0])
	}
	if msg, _ := q.Recv(NoBlock); msg != "new" {
		t.Fatalf("queued message = %v, want new", msg)
	}
}

// A send into a queue with several blocked receivers wakes the highest
// priority one; equals wake in the order they blocked.
func TestSendWakesHighestPriorityReceiver(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("wake", make([]Message, 1))
	var got log

	rx := func(name string) func(any) {
		return func(any) {
			msg, err := q.Recv(Block)
			if err != nil {
				got.add("err:" + err.Error())
				return
			}
			got.add(name + ":" + msg.(string))
		}
	}
	lowA, _ := k.CreateThread("lowA", 1, rx("lowA"), nil)
	lowB, _ := k.CreateThread("lowB", 1, rx("lowB"), nil)
	high, _ := k.CreateThread("high", 9, rx("high"), nil)

	// Park the low tier first so its FIFO order is known, then the
	// outranking receiver last.
	for _, id := range []ThreadID{lowA, lowB, high} {
		_ = k.StartThread(id)
		waitState(t, k, id, Waiting)
	}

	send := func(msg string) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if err := q.Send(msg, NoBlock); err == nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
		t.Fatalf("send %q never found room", msg)
	}
	send("m1")
	send("m2")
	send("m3")

	v := got.waitLen(t, 3)
	want := []string{"high:m1", "lowA:m2", "lowB:m3"}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("wake order = %v, want %v", v, want)
		}
	}
}

func TestRecvTimeout(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("empty", make([]Message, 1))
	var got log

	start := time.Now()
	id, _ := k.CreateThread("rx", 5, func(any) {
		_, err := q.RecvTimeout(k.CountsFor(30 * time.Millisecond))
		if errors.Is(err, ErrTimeout) {
			got.add("timeout")
		} else {
			got.add("err")
		}
	}, nil)
	_ = k.StartThread(id)

	v := got.waitLen(t, 1)
	if v[0] != "timeout" {
		t.Fatalf("got %q, want timeout", v[0])
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("timed out after only %v", elapsed)
	}
}

func TestRecvTimeoutPrefersMessage(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("race", make([]Message, 1))
	var got log

	id, _ := k.CreateThread("rx", 5, func(any) {
		msg, err := q.RecvTimeout(k.CountsFor(time.Second))
		if err != nil {
			got.add("err:" + err.Error())
			return
		}
		got.add(msg.(string))
	}, nil)
	_ = k.StartThread(id)
	waitState(t, k, id, Waiting)

	if err := q.Send("fast", NoBlock); err != nil {
		t.Fatalf("Send: %v", err)
	}
	v := got.waitLen(t, 1)
	if v[0] != "fast" {
		t.Fatalf("got %q, want fast", v[0])
	}
}

// A timed wait resolves to exactly one outcome. If the receiver reports a
// timeout, any message sent afterwards stays buffered; it is never lost
// and never double-delivered.
func TestTimeoutExactlyOneOutcome(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("xor", make([]Message, 1))

	for i := 0; i < 20; i++ {
		var got log
		id, _ := k.CreateThread("rx", 5, func(any) {
			msg, err := q.RecvTimeout(k.CountsFor(5 * time.Millisecond))
			switch {
			case err == nil && msg == "m":
				got.add("msg")
			case errors.Is(err, ErrTimeout) && msg == nil:
				got.add("timeout")
			default:
				got.add("both")
			}
		}, nil)
		_ = k.StartThread(id)

		time.Sleep(5 * time.Millisecond)
		sendErr := q.Send("m", NoBlock)

		v := got.waitLen(t, 1)
		if v[0] == "both" {
			t.Fatalf("iteration %d: wait resolved to both outcomes", i)
		}
		if v[0] == "timeout" && sendErr == nil {
			// The message lost the race; it must still be buffered.
			if msg, err := q.Recv(NoBlock); err != nil || msg != "m" {
				t.Fatalf("iteration %d: raced message lost: %v, %v", i, msg, err)
			}
		}
		waitState(t, k, id, Stopped)
		if err := k.DestroyThread(id); err != nil {
			t.Fatalf("DestroyThread: %v", err)
		}
	}
}

func drainOne(t *testing.T, q *Queue, within time.Duration) Message {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if msg, err := q.Recv(NoBlock); err == nil {
			return msg
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no message on %q within %v", q.Name(), within)
	return nil
}

func TestTimerOneShot(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("tick", make([]Message, 1))

	tm, err := k.SetTimer(k.CountsFor(20*time.Millisecond), 0, q, "tick")
	if err != nil {
		t.Fatalf("SetTimer: %v", err)
	}
	if msg := drainOne(t, q, 2*time.Second); msg != "tick" {
		t.Fatalf("timer delivered %v", msg)
	}
	time.Sleep(5 * time.Millisecond)
	if tm.Armed() {
		t.Fatalf("one-shot timer still armed after firing")
	}
	time.Sleep(30 * time.Millisecond)
	if !q.Empty() {
		t.Fatalf("one-shot timer fired again")
	}
}

func TestTimerInterval(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("tick", make([]Message, 4))

	tm, err := k.SetTimer(0, k.CountsFor(10*time.Millisecond), q, "tick")
	if err != nil {
		t.Fatalf("SetTimer: %v", err)
	}
	for i := 0; i < 3; i++ {
		if msg := drainOne(t, q, 2*time.Second); msg != "tick" {
			t.Fatalf("tick %d delivered %v", i, msg)
		}
	}
	tm.Stop()
	if tm.Armed() {
		t.Fatalf("stopped timer still armed")
	}
	// Drain anything that fired before the stop, then confirm silence.
	for {
		if _, err := q.Recv(NoBlock); err != nil {
			break
		}
	}
	time.Sleep(50 * time.Millisecond)
	if !q.Empty() {
		t.Fatalf("stopped timer kept firing")
	}
}

func TestTimerVirtualClock(t *testing.T) {
	src, err := timebase.NewVirtualSource(1000)
	if err != nil {
		t.Fatalf("NewVirtualSource: %v", err)
	}
	k, err := New(Options{Source: src})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Shutdown()

	q, _ := k.NewQueue("tick", make([]Message, 1))
	if _, err := k.SetTimer(1000, 0, q, "tick"); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}

	src.Advance(999)
	time.Sleep(20 * time.Millisecond)
	if !q.Empty() {
		t.Fatalf("timer fired %d counts early", 1)
	}
	src.Advance(1)
	if msg := drainOne(t, q, 2*time.Second); msg != "tick" {
		t.Fatalf("timer delivered %v", msg)
	}
}

func TestTimerPeriodicCadence(t *testing.T) {
	src, err := timebase.NewVirtualSource(1000)
	if err != nil {
		t.Fatalf("NewVirtualSource: %v", err)
	}
	k, err := New(Options{Source: src})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Shutdown()

	q, _ := k.NewQueue("tick", make([]Message, 2))
	tm, err := k.SetTimer(0, 1000, q, "tick")
	if err != nil {
		t.Fatalf("SetTimer: %v", err)
	}

	// One delivery per elapsed interval, never more.
	for i := 0; i < 5; i++ {
		src.Advance(1000)
		if msg := drainOne(t, q, 2*time.Second); msg != "tick" {
			t.Fatalf("interval %d delivered %v", i, msg)
		}
		if !q.Empty() {
			t.Fatalf("interval %d delivered extra messages", i)
		}
	}
	tm.Stop()
	src.Advance(5000)
	time.Sleep(20 * time.Millisecond)
	if !q.Empty() {
		t.Fatalf("stopped timer delivered after %d counts", 5000)
	}
}

func TestEventRegisterRaiseOverwrite(t *testing.T) {
	k := newTestKernel(t)
	q1, _ := k.NewQueue("first", make([]Message, 2))
	q2, _ := k.NewQueue("second", make([]Message, 2))

	if err := k.SetEventMessage(EventRetrace, q1, "v1"); err != nil {
		t.Fatalf("SetEventMessage: %v", err)
	}
	if err := k.SetEventMessage(EventRetrace, q2, "v2"); err != nil {
		t.Fatalf("SetEventMessage: %v", err)
	}
	// Raises ahead of already-buffered traffic.
	_ = q2.Send("old", NoBlock)
	if err := k.RaiseEvent(EventRetrace); err != nil {
		t.Fatalf("RaiseEvent: %v", err)
	}

	if !q1.Empty() {
		t.Fatalf("overwritten registration still receives")
	}
	if msg, _ := q2.Recv(NoBlock); msg != "v2" {
		t.Fatalf("head message = %v, want the raised one", msg)
	}
	if msg, _ := q2.Recv(NoBlock); msg != "old" {
		t.Fatalf("buffered message = %v, want old", msg)
	}
}

func TestEventUnregisteredRaiseIsNoop(t *testing.T) {
	k := newTestKernel(t)
	if err := k.RaiseEvent(EventFault); err != nil {
		t.Fatalf("unregistered raise: %v", err)
	}
	if err := k.RaiseEvent(EventID(200)); !errors.Is(err, ErrBadEvent) {
		t.Fatalf("out-of-range raise err = %v", err)
	}
	if err := k.SetEventMessage(EventID(200), nil, nil); !errors.Is(err, ErrBadEvent) {
		t.Fatalf("out-of-range register err = %v", err)
	}
}

func TestEventDroppedWhenQueueFull(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("tiny", make([]Message, 1))
	_ = q.Send("old", NoBlock)
	_ = k.SetEventMessage(EventAudio, q, "ev")

	if err := k.RaiseEvent(EventAudio); err != nil {
		t.Fatalf("RaiseEvent: %v", err)
	}
	if msg, _ := q.Recv(NoBlock); msg != "old" {
		t.Fatalf("full-queue raise displaced %v", msg)
	}
	if !q.Empty() {
		t.Fatalf("dropped raise left residue")
	}
}

func TestThreadStatusEvent(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("status", make([]Message, 4))
	_ = k.SetEventMessage(EventThreadStatus, q, "status")

	id, _ := k.CreateThread("noop", 5, func(any) {}, nil)
	_ = k.StartThread(id)
	waitState(t, k, id, Stopped)

	// At least the start raise; the exit raise may also be buffered.
	if msg := drainOne(t, q, 2*time.Second); msg != "status" {
		t.Fatalf("status raise delivered %v", msg)
	}
}

func TestDestroyDiagnostics(t *testing.T) {
	k := newTestKernel(t)
	var got log

	q, _ := k.NewQueue("park", make([]Message, 1))
	id, _ := k.CreateThread("rx", 5, func(any) {
		_, _ = q.Recv(Block)
		got.add("done")
	}, nil)
	_ = k.StartThread(id)
	waitState(t, k, id, Waiting)

	if err := k.DestroyThread(id); !errors.Is(err, ErrNotStopped) {
		t.Fatalf("destroy waiting thread err = %v", err)
	}
	if err := k.StopThread(id); err != nil {
		t.Fatalf("StopThread: %v", err)
	}
	waitState(t, k, id, Stopped)
	if err := k.DestroyThread(id); err != nil {
		t.Fatalf("DestroyThread: %v", err)
	}

	// The handle is now stale in every call.
	if err := k.StartThread(id); !errors.Is(err, ErrBadThread) {
		t.Fatalf("stale start err = %v", err)
	}
	if _, err := k.Priority(id); !errors.Is(err, ErrBadThread) {
		t.Fatalf("stale priority err = %v", err)
	}

	// The slot is reusable and the new handle differs.
	id2, err := k.CreateThread("next", 5, func(any) {}, nil)
	if err != nil {
		t.Fatalf("CreateThread after destroy: %v", err)
	}
	if id2 == id {
		t.Fatalf("recycled slot reused handle %d", id)
	}
}

func TestStopRestartWaitingThread(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("park", make([]Message, 1))
	var got log

	id, _ := k.CreateThread("rx", 5, func(any) {
		msg, err := q.Recv(Block)
		if err != nil {
			got.add("err:" + err.Error())
			return
		}
		got.add(msg.(string))
	}, nil)
	_ = k.StartThread(id)
	waitState(t, k, id, Waiting)

	if err := k.StopThread(id); err != nil {
		t.Fatalf("StopThread: %v", err)
	}
	waitState(t, k, id, Stopped)

	// Restart resumes the interrupted wait.
	if err := k.StartThread(id); err != nil {
		t.Fatalf("StartThread: %v", err)
	}
	waitState(t, k, id, Waiting)
	_ = q.Send("late", NoBlock)
	v := got.waitLen(t, 1)
	if v[0] != "late" {
		t.Fatalf("resumed wait got %q", v[0])
	}
}

func TestHostContextRestrictions(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("q", make([]Message, 1))

	if err := k.Yield(); !errors.Is(err, ErrHostContext) {
		t.Fatalf("host yield err = %v", err)
	}
	if _, err := q.Recv(Block); !errors.Is(err, ErrHostContext) {
		t.Fatalf("host blocking recv err = %v", err)
	}
	_ = q.Send("x", NoBlock)
	if err := q.Send("y", Block); !errors.Is(err, ErrHostContext) {
		t.Fatalf("host blocking send err = %v", err)
	}
	if k.Current() != NoThread {
		t.Fatalf("host Current = %d", k.Current())
	}
}

func TestThreadTableFull(t *testing.T) {
	k := newTestKernel(t)
	ids := make([]ThreadID, 0, MaxThreads)
	for i := 0; i < MaxThreads; i++ {
		id, err := k.CreateThread("filler", 1, func(any) {}, nil)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	if _, err := k.CreateThread("extra", 1, func(any) {}, nil); !errors.Is(err, ErrTableFull) {
		t.Fatalf("overflow create err = %v", err)
	}
	for _, id := range ids {
		if err := k.DestroyThread(id); err != nil {
			t.Fatalf("DestroyThread: %v", err)
		}
	}
	if k.ThreadCount() != 0 {
		t.Fatalf("ThreadCount = %d after teardown", k.ThreadCount())
	}
}

func TestSetPriorityReorders(t *testing.T) {
	k := newTestKernel(t)
	var got log

	a, _ := k.CreateThread("a", 2, func(any) { got.add("a") }, nil)
	b, _ := k.CreateThread("b", 3, func(any) { got.add("b") }, nil)
	launcher, _ := k.CreateThread("launcher", 10, func(any) {
		_ = k.StartThread(a)
		_ = k.StartThread(b)
		// Promote a past b while both are queued.
		_ = k.SetPriority(a, 5)
	}, nil)
	_ = k.StartThread(launcher)

	v := got.waitLen(t, 2)
	if v[0] != "a" || v[1] != "b" {
		t.Fatalf("order after promote = %v, want [a b]", v)
	}
	if pri, err := k.Priority(a); err != nil || pri != 5 {
		t.Fatalf("Priority(a) = %d, %v", pri, err)
	}
}

func TestSnapshot(t *testing.T) {
	k := newTestKernel(t)
	q, _ := k.NewQueue("snapq", make([]Message, 2))
	_ = q.Send("x", NoBlock)
	id, _ := k.CreateThread("idle", 4, func(any) {}, nil)
	if _, err := k.SetTimer(k.CountsFor(time.Hour), 0, q, "later"); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}

	snap := k.Snapshot()
	if len(snap.Threads) != 1 || snap.Threads[0].ID != id || snap.Threads[0].State != Stopped {
		t.Fatalf("snapshot threads = %+v", snap.Threads)
	}
	found := false
	for _, qi := range snap.Queues {
		if qi.Name == "snapq" {
			found = true
			if qi.Len != 1 || qi.Cap != 2 {
				t.Fatalf("snapshot queue = %+v", qi)
			}
		}
	}
	if !found {
		t.Fatalf("queue missing from snapshot")
	}
	if snap.ArmedTimers != 1 {
		t.Fatalf("ArmedTimers = %d", snap.ArmedTimers)
	}
}
