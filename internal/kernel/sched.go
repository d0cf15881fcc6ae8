package kernel

import (
	"runtime"

	"relic/internal/trace"
)

// The run token is the pair (Kernel.running, per-thread cond). A thread
// may only execute client code after waitForTurnLocked observes its own
// handle in Kernel.running. scheduleLocked is the single place the token
// is granted; every transition point funnels through it.

// waitList is an arena-indexed wait queue: handles into the fixed thread
// table, ordered by descending priority with FIFO order inside a tier.
type waitList struct {
	ids []ThreadID
}

func (l *waitList) remove(id ThreadID) bool {
	for i, v := range l.ids {
		if v == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			return true
		}
	}
	return false
}

// waitInsertLocked places t behind all waiters of equal or higher
// priority (stable tie-break by arrival).
func (k *Kernel) waitInsertLocked(l *waitList, t *thread) {
	idx := len(l.ids)
	for i, id := range l.ids {
		if k.threads[slotOf(id)].pri < t.pri {
			idx = i
			break
		}
	}
	l.ids = append(l.ids, 0)
	copy(l.ids[idx+1:], l.ids[idx:])
	l.ids[idx] = t.id
}

// readyInsertLocked queues t for the run token. front places it ahead of
// its priority tier (logical preemption); otherwise it joins the tail of
// the tier (start, wake, yield).
func (k *Kernel) readyInsertLocked(t *thread, front bool) {
	idx := len(k.ready)
	for i, id := range k.ready {
		p := k.threads[slotOf(id)].pri
		if p < t.pri || (front && p == t.pri) {
			idx = i
			break
		}
	}
	k.ready = append(k.ready, 0)
	copy(k.ready[idx+1:], k.ready[idx:])
	k.ready[idx] = t.id
}

func (k *Kernel) readyRemoveLocked(id ThreadID) {
	for i, v := range k.ready {
		if v == id {
			k.ready = append(k.ready[:i], k.ready[i+1:]...)
			return
		}
	}
}

// scheduleLocked grants the run token to the highest-priority runnable
// thread, if the token is free. Exactly that thread is signalled.
func (k *Kernel) scheduleLocked() {
	if k.running != NoThread {
		return
	}
	for len(k.ready) > 0 {
		id := k.ready[0]
		k.ready = k.ready[1:]
		t, err := k.lookupLocked(id)
		if err != nil || t.st != Runnable {
			continue
		}
		t.st = Running
		k.running = id
		t.cond.Signal()
		return
	}
}

// waitForTurnLocked parks the calling thread's goroutine until it holds
// the run token. A pending host-initiated stop commits here, at the
// checkpoint, before client code resumes. If the thread was destroyed
// while parked, the goroutine terminates here; every path into this
// function has exactly one deferred kernel unlock pending, which Goexit
// runs on the way out.
func (k *Kernel) waitForTurnLocked(t *thread) {
	for k.running != t.id {
		if t.destroyed {
			k.releaseSlotLocked(t)
			runtime.Goexit()
		}
		t.cond.Wait()
	}
	if t.stopPending {
		t.stopPending = false
		k.parkStoppedLocked(t)
	}
}

// parkStoppedLocked releases the token and parks t until a later start.
func (k *Kernel) parkStoppedLocked(t *thread) {
	t.st = Stopped
	k.running = NoThread
	k.scheduleLocked()
	k.waitForTurnLocked(t)
}

// blockOnLocked suspends the running thread on a queue wait list until a
// waker or deadline makes it runnable again and it regains the token.
// Reports false if the wake was a timeout.
func (k *Kernel) blockOnLocked(t *thread, q *Queue, role waitRole) bool {
	t.waitQ = q
	t.role = role
	t.st = Waiting
	k.running = NoThread
	k.scheduleLocked()
	k.waitForTurnLocked(t)
	timedOut := t.timedOut
	t.timedOut = false
	t.waitQ = nil
	t.role = roleNone
	return !timedOut
}

// wakeOneLocked moves the best waiter to the runnable set. The decision
// and the state transition happen under the kernel lock, so a concurrent
// blocker cannot miss it.
func (k *Kernel) wakeOneLocked(l *waitList) *thread {
	for len(l.ids) > 0 {
		id := l.ids[0]
		l.ids = l.ids[1:]
		t, err := k.lookupLocked(id)
		if err != nil || t.st != Waiting {
			continue
		}
		k.cancelDeadlineLocked(t)
		t.waitQ = nil
		t.role = roleNone
		t.st = Runnable
		k.readyInsertLocked(t, false)
		k.scheduleLocked()
		return t
	}
	return nil
}

// maybePreemptLocked is the logical-preemption checkpoint: if the caller
// made a strictly higher-priority thread runnable, it hands the token
// over and rejoins the head of its own tier.
func (k *Kernel) maybePreemptLocked(self *thread) {
	if len(k.ready) == 0 {
		return
	}
	top := &k.threads[slotOf(k.ready[0])]
	if top.pri <= self.pri {
		return
	}
	k.point(trace.ScopeThread, self.id, "thread.preempt", top.name)
	self.st = Runnable
	k.readyInsertLocked(self, true)
	k.running = NoThread
	k.scheduleLocked()
	k.waitForTurnLocked(self)
}

// trampoline is the goroutine body backing a thread. It runs the entry
// function only while holding the run token.
func (k *Kernel) trampoline(t *thread) {
	k.enterThread(t)
	t.entry(t.arg)
	k.exitThread(t)
}

func (k *Kernel) enterThread(t *thread) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t.gid = curGID()
	k.waitForTurnLocked(t)
	k.emit(trace.ScopeThread, trace.KindBegin, t.id, "thread.run", t.name)
}

func (k *Kernel) exitThread(t *thread) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.emit(trace.ScopeThread, trace.KindEnd, t.id, "thread.exit", t.name)
	t.st = Stopped
	t.live = false
	t.gid = 0
	t.stopPending = false
	k.running = NoThread
	k.raiseLocked(EventThreadStatus)
	k.scheduleLocked()
}

func (k *Kernel) releaseSlotLocked(t *thread) {
	k.cancelDeadlineLocked(t)
	t.used = false
	t.gen++
	t.live = false
	t.gid = 0
	t.entry = nil
	t.arg = nil
	t.waitQ = nil
	t.role = roleNone
	t.destroyed = false
	t.stopPending = false
	t.timedOut = false
}

// CreateThread allocates a table slot for a stopped thread. No goroutine
// exists until the first start.
func (k *Kernel) CreateThread(name string, pri uint8, entry func(any), arg any) (ThreadID, error) {
	if entry == nil {
		return NoThread, codeErr(CodeBadArgument, "nil thread entry")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.shutdown {
		return NoThread, ErrShutdown
	}
	for i := range k.threads {
		t := &k.threads[i]
		if t.used {
			continue
		}
		t.used = true
		t.id = makeID(i, t.gen)
		t.name = name
		t.pri = pri
		t.st = Stopped
		t.entry = entry
		t.arg = arg
		k.point(trace.ScopeThread, t.id, "thread.create", name)
		return t.id, nil
	}
	return NoThread, codeErr(CodeTableFull, "all %d slots in use", MaxThreads)
}

// StartThread makes a stopped thread runnable. Starting a thread that is
// already runnable, running or waiting is a no-op. If the caller is a
// thread and the started thread outranks it, the hand-off happens before
// StartThread returns.
func (k *Kernel) StartThread(id ThreadID) error {
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()

	t, kerr := k.lookupLocked(id)
	if kerr != nil {
		return kerr
	}
	if t.st != Stopped {
		return nil
	}
	t.st = Runnable
	k.readyInsertLocked(t, false)
	if !t.live {
		t.live = true
		go k.trampoline(t)
	}
	k.point(trace.ScopeThread, id, "thread.start", t.name)
	k.raiseLocked(EventThreadStatus)

	if self := k.selfLocked(gid); self != nil {
		k.maybePreemptLocked(self)
	} else {
		k.scheduleLocked()
	}
	return nil
}

// StopThread forces a thread to the stopped state. Stopping the running
// thread from a host context commits at that thread's next checkpoint;
// stopping self releases the token immediately and parks until a later
// start.
func (k *Kernel) StopThread(id ThreadID) error {
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()

	t, kerr := k.lookupLocked(id)
	if kerr != nil {
		return kerr
	}
	switch t.st {
	case Stopped:
		return nil
	case Runnable:
		k.readyRemoveLocked(t.id)
		t.st = Stopped
	case Waiting:
		if t.waitQ != nil {
			t.waitQ.listFor(t.role).remove(t.id)
		}
		k.cancelDeadlineLocked(t)
		t.waitQ = nil
		t.role = roleNone
		t.st = Stopped
	case Running:
		k.point(trace.ScopeThread, id, "thread.stop", t.name)
		k.raiseLocked(EventThreadStatus)
		if self := k.selfLocked(gid); self == t {
			k.parkStoppedLocked(t)
			return nil
		}
		t.stopPending = true
		return nil
	}
	k.point(trace.ScopeThread, id, "thread.stop", t.name)
	k.raiseLocked(EventThreadStatus)
	return nil
}

// DestroyThread releases the table slot of a stopped thread. Destroying a
// thread in any other state is a caller error, matching the original API
// where it was undefined.
func (k *Kernel) DestroyThread(id ThreadID) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	t, kerr := k.lookupLocked(id)
	if kerr != nil {
		return kerr
	}
	if t.st != Stopped {
		return codeErr(CodeThreadNotStopped, "thread %d is %s", id, t.st)
	}
	k.point(trace.ScopeThread, id, "thread.destroy", t.name)
	if t.live {
		// The parked goroutine releases the slot on its way out.
		t.destroyed = true
		t.cond.Broadcast()
		return nil
	}
	k.releaseSlotLocked(t)
	return nil
}

// Yield releases the token voluntarily and rejoins the tail of the
// caller's priority tier.
func (k *Kernel) Yield() error {
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()

	self := k.selfLocked(gid)
	if self == nil {
		return codeErr(CodeHostContext, "yield outside a thread")
	}
	k.point(trace.ScopeThread, self.id, "thread.yield", "")
	self.st = Runnable
	k.readyInsertLocked(self, false)
	k.running = NoThread
	k.scheduleLocked()
	k.waitForTurnLocked(self)
	return nil
}

// SetPriority changes a thread's priority in place and re-evaluates
// ordering, which may hand the token over immediately.
func (k *Kernel) SetPriority(id ThreadID, pri uint8) error {
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()

	t, kerr := k.lookupLocked(id)
	if kerr != nil {
		return kerr
	}
	t.pri = pri
	switch t.st {
	case Runnable:
		k.readyRemoveLocked(t.id)
		k.readyInsertLocked(t, false)
	case Waiting:
		if t.waitQ != nil {
			l := t.waitQ.listFor(t.role)
			l.remove(t.id)
			k.waitInsertLocked(l, t)
		}
	}
	k.point(trace.ScopeThread, id, "thread.setpri", t.name)

	if self := k.selfLocked(gid); self != nil {
		k.maybePreemptLocked(self)
	} else {
		k.scheduleLocked()
	}
	return nil
}

// Priority returns a thread's current priority.
func (k *Kernel) Priority(id ThreadID) (uint8, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, kerr := k.lookupLocked(id)
	if kerr != nil {
		return 0, kerr
	}
	return t.pri, nil
}

// ThreadState returns a thread's scheduling state.
func (k *Kernel) ThreadState(id ThreadID) (State, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, kerr := k.lookupLocked(id)
	if kerr != nil {
		return Stopped, kerr
	}
	return t.st, nil
}

// Current returns the calling thread's handle, or NoThread from a host
// context.
func (k *Kernel) Current() ThreadID {
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()
	if self := k.selfLocked(gid); self != nil {
		return self.id
	}
	return NoThread
}
