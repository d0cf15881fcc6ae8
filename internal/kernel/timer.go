package kernel

import (
	"container/heap"

	"relic/internal/timebase"
	"relic/internal/trace"
)

// deadline is one pending wakeup in the shared deadline heap. Timeout
// waits carry a thread, countdown timers carry a timer; exactly one is
// set. Cancellation is lazy: cancelled entries stay in the heap until
// they surface at the root.
type deadline struct {
	when      timebase.Counts
	seq       uint64
	cancelled bool
	thread    *thread
	timer     *Timer
}

// timerHeap is a min-heap on (when, seq), so simultaneous deadlines fire
// in arming order.
type timerHeap []*deadline

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*deadline)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return d
}

// Timer delivers a message to a queue when its countdown expires. A
// nonzero interval re-arms it after every fire. Delivery never blocks;
// if the destination queue is full the message is dropped.
type Timer struct {
	k        *Kernel
	q        *Queue
	msg      Message
	interval timebase.Counts
	dl       *deadline // guarded by k.mu; nil while idle
}

// SetTimer arms a timer that delivers msg to q after countdown counts,
// then every interval counts if interval is nonzero. A zero countdown
// starts with the interval, matching the original API.
func (k *Kernel) SetTimer(countdown, interval timebase.Counts, q *Queue, msg Message) (*Timer, error) {
	if q == nil {
		return nil, codeErr(CodeBadArgument, "nil timer queue")
	}
	if countdown == 0 && interval == 0 {
		return nil, codeErr(CodeBadArgument, "timer needs a countdown or interval")
	}
	first := countdown
	if first == 0 {
		first = interval
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.shutdown {
		return nil, ErrShutdown
	}
	t := &Timer{k: k, q: q, msg: msg, interval: interval}
	t.dl = k.pushDeadlineLocked(k.src.Now()+first, nil, t)
	k.point(trace.ScopeTimer, NoThread, "timer.set", q.name)
	return t, nil
}

// Stop disarms the timer. Stopping an idle or already-stopped timer is a
// no-op.
func (t *Timer) Stop() {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.dl == nil {
		return
	}
	t.dl.cancelled = true
	t.dl = nil
	k.point(trace.ScopeTimer, NoThread, "timer.stop", t.q.name)
}

// Armed reports whether the timer has a pending fire.
func (t *Timer) Armed() bool {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.dl != nil
}

func (k *Kernel) pushDeadlineLocked(when timebase.Counts, th *thread, tm *Timer) *deadline {
	k.timerSeq++
	d := &deadline{when: when, seq: k.timerSeq, thread: th, timer: tm}
	heap.Push(&k.timers, d)
	k.kickTimerService()
	return d
}

// armTimeoutLocked registers a wake deadline for a thread about to block.
func (k *Kernel) armTimeoutLocked(t *thread, when timebase.Counts) {
	k.cancelDeadlineLocked(t)
	t.deadline = k.pushDeadlineLocked(when, t, nil)
}

func (k *Kernel) cancelDeadlineLocked(t *thread) {
	if t.deadline == nil {
		return
	}
	t.deadline.cancelled = true
	t.deadline = nil
}

func (k *Kernel) kickTimerService() {
	select {
	case k.timerKick <- struct{}{}:
	default:
	}
}

// timerService is the counter-service context: a dedicated goroutine that
// sleeps on the time base until the earliest deadline and fires everything
// due. Arming an earlier deadline kicks it awake to re-plan.
func (k *Kernel) timerService() {
	defer close(k.svcDone)
	for {
		k.mu.Lock()
		if k.shutdown {
			k.mu.Unlock()
			return
		}
		k.fireDueLocked()

		var next timebase.Counts
		have := false
		for len(k.timers) > 0 {
			d := k.timers[0]
			if d.cancelled {
				heap.Pop(&k.timers)
				continue
			}
			next = d.when
			have = true
			break
		}
		k.mu.Unlock()

		if !have {
			select {
			case <-k.timerKick:
			case <-k.done:
				return
			}
			continue
		}
		if !k.src.SleepUntil(next, k.timerKick) {
			select {
			case <-k.done:
				return
			default:
			}
		}
	}
}

// fireDueLocked pops and delivers every deadline at or before the current
// count. A thread that is no longer waiting, or whose registration was
// superseded, is skipped; this is what guarantees a timeout-wait resolves
// to exactly one of message or timeout.
func (k *Kernel) fireDueLocked() {
	now := k.src.Now()
	for len(k.timers) > 0 {
		d := k.timers[0]
		if d.cancelled {
			heap.Pop(&k.timers)
			continue
		}
		if d.when > now {
			return
		}
		heap.Pop(&k.timers)

		switch {
		case d.thread != nil:
			t := d.thread
			if t.deadline != d {
				continue
			}
			t.deadline = nil
			if t.st != Waiting {
				continue
			}
			if t.waitQ != nil {
				t.waitQ.listFor(t.role).remove(t.id)
			}
			t.timedOut = true
			t.st = Runnable
			k.readyInsertLocked(t, false)
			k.point(trace.ScopeTimer, t.id, "timeout.fire", t.name)
			k.scheduleLocked()

		case d.timer != nil:
			tm := d.timer
			if tm.dl != d {
				continue
			}
			tm.dl = nil
			if tm.q.deliverLocked(tm.msg) {
				k.point(trace.ScopeTimer, NoThread, "timer.fire", tm.q.name)
			} else {
				k.point(trace.ScopeTimer, NoThread, "timer.drop", tm.q.name)
			}
			if tm.interval > 0 {
				next := d.when + tm.interval
				if next <= now {
					next = now + tm.interval
				}
				tm.dl = k.pushDeadlineLocked(next, nil, tm)
			}
		}
	}
}
