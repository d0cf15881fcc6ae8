// Package kernel reproduces the threading, messaging, timing and
// event-dispatch contracts of the legacy console operating system on top
// of Go's preemptive scheduler.
//
// The defining mechanism is the run token: a single logical permission to
// execute client code, guarded by the kernel mutex and per-thread
// condition variables. Threads are goroutines, but only the token holder
// makes progress between scheduling checkpoints, so client code observes
// the original cooperative, priority-strict semantics.
package kernel

import (
	"sync"
	"time"

	"relic/internal/timebase"
	"relic/internal/trace"
)

// Options configures a Kernel.
type Options struct {
	// Source supplies the virtualized counter. Defaults to a real-clock
	// source at timebase.DefaultHz.
	Source timebase.Source
	// Tracer receives scheduling events. Defaults to trace.Nop.
	Tracer trace.Tracer
}

// Kernel owns the thread table, the run token, the deadline heap serviced
// by the counter context, and the event dispatch table.
type Kernel struct {
	mu  sync.Mutex
	src timebase.Source
	tr  trace.Tracer

	threads [MaxThreads]thread
	ready   []ThreadID // priority desc, FIFO within a tier
	running ThreadID

	timers    timerHeap
	timerSeq  uint64
	timerKick chan struct{}

	events [NumEvents]eventReg

	queues []*Queue // registered for Snapshot only

	done     chan struct{}
	svcDone  chan struct{}
	shutdown bool
}

// New creates a kernel and starts its counter-service context.
func New(opts Options) (*Kernel, error) {
	src := opts.Source
	if src == nil {
		real, err := timebase.NewRealSource(timebase.DefaultHz)
		if err != nil {
			return nil, err
		}
		src = real
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}

	k := &Kernel{
		src:       src,
		tr:        tr,
		timerKick: make(chan struct{}, 1),
		done:      make(chan struct{}),
		svcDone:   make(chan struct{}),
	}
	for i := range k.threads {
		k.threads[i].cond = sync.NewCond(&k.mu)
	}
	go k.timerService()
	k.point(trace.ScopeKernel, NoThread, "kernel.boot", "")
	return k, nil
}

// Shutdown stops the counter-service context. Threads still blocked in
// kernel calls are not torn down; stop or destroy them first.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	if k.shutdown {
		k.mu.Unlock()
		return
	}
	k.shutdown = true
	k.mu.Unlock()

	close(k.done)
	k.kickTimerService()
	<-k.svcDone
	k.point(trace.ScopeKernel, NoThread, "kernel.shutdown", "")
	_ = k.tr.Flush() //nolint:errcheck
}

// Counter returns the current value of the virtualized count register.
func (k *Kernel) Counter() timebase.Counts {
	return k.src.Now()
}

// CountsFor converts a wall duration to counts at the kernel's rate.
func (k *Kernel) CountsFor(d time.Duration) timebase.Counts {
	return timebase.CountsForDuration(d, k.src.Hz())
}

// AfterCounts returns the counter value d from now, for building
// relative deadlines.
func (k *Kernel) AfterCounts(d time.Duration) timebase.Counts {
	return k.src.Now() + timebase.CountsForDuration(d, k.src.Hz())
}

// Source returns the kernel's time base.
func (k *Kernel) Source() timebase.Source { return k.src }

// lookupLocked resolves a handle, diagnosing stale or invalid values.
func (k *Kernel) lookupLocked(id ThreadID) (*thread, *Error) {
	slot := slotOf(id)
	if slot < 0 || slot >= MaxThreads {
		return nil, codeErr(CodeBadThread, "handle %d out of range", id)
	}
	t := &k.threads[slot]
	if !t.used || t.id != id {
		return nil, codeErr(CodeBadThread, "stale handle %d", id)
	}
	return t, nil
}

// selfLocked returns the calling thread if the caller is the goroutine of
// the thread holding the run token, or nil for host contexts.
func (k *Kernel) selfLocked(gid uint64) *thread {
	if k.running == NoThread {
		return nil
	}
	t := &k.threads[slotOf(k.running)]
	if t.used && t.gid == gid {
		return t
	}
	return nil
}

func (k *Kernel) point(scope trace.Scope, id ThreadID, name, detail string) {
	k.emit(scope, trace.KindPoint, id, name, detail)
}

func (k *Kernel) emit(scope trace.Scope, kind trace.Kind, id ThreadID, name, detail string) {
	if !k.tr.Enabled() {
		return
	}
	k.tr.Emit(&trace.Event{
		Time:   time.Now(),
		Kind:   kind,
		Scope:  scope,
		Thread: uint32(id),
		Name:   name,
		Detail: detail,
	})
}

// ThreadInfo describes one live thread for Snapshot.
type ThreadInfo struct {
	ID       ThreadID
	Name     string
	Priority uint8
	State    State
}

// QueueInfo describes one registered queue for Snapshot.
type QueueInfo struct {
	Name      string
	Len       int
	Cap       int
	Senders   int
	Receivers int
}

// Snapshot is a consistent view of kernel state.
type Snapshot struct {
	Now         timebase.Counts
	Running     ThreadID
	Threads     []ThreadInfo
	Queues      []QueueInfo
	ArmedTimers int
}

// Snapshot captures the thread table, queue depths and armed timers under
// the kernel lock.
func (k *Kernel) Snapshot() Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	snap := Snapshot{
		Now:     k.src.Now(),
		Running: k.running,
	}
	for i := range k.threads {
		t := &k.threads[i]
		if !t.used {
			continue
		}
		snap.Threads = append(snap.Threads, ThreadInfo{
			ID:       t.id,
			Name:     t.name,
			Priority: t.pri,
			State:    t.st,
		})
	}
	for _, q := range k.queues {
		q.mu.Lock()
		info := QueueInfo{
			Name: q.name,
			Len:  q.count,
			Cap:  len(q.buf),
		}
		q.mu.Unlock()
		info.Senders = len(q.senders.ids)
		info.Receivers = len(q.receivers.ids)
		snap.Queues = append(snap.Queues, info)
	}
	for _, d := range k.timers {
		if !d.cancelled && d.timer != nil {
			snap.ArmedTimers++
		}
	}
	return snap
}

// ThreadCount returns the number of occupied thread table slots.
func (k *Kernel) ThreadCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for i := range k.threads {
		if k.threads[i].used {
			n++
		}
	}
	return n
}
