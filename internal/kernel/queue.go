package kernel

import (
	"sync"

	"relic/internal/timebase"
	"relic/internal/trace"
)

// Message is an opaque payload. The original API carried untyped pointers;
// clients here pass whatever value they agree on per queue.
type Message = any

// Flag selects blocking behavior for queue operations.
type Flag uint8

const (
	// NoBlock makes a full send or empty receive fail with CodeWouldBlock.
	NoBlock Flag = iota
	// Block suspends the calling thread until the operation can complete.
	Block
)

// Queue is a fixed-capacity FIFO message queue over a caller-owned buffer.
// The buffer and cursor are guarded by the queue mutex; the wait lists are
// guarded by the kernel mutex, which is always acquired first.
type Queue struct {
	k    *Kernel
	name string

	mu    sync.Mutex
	buf   []Message
	first int
	count int

	senders   waitList
	receivers waitList
}

// NewQueue registers a queue backed by buf. Capacity is fixed at len(buf)
// for the queue's lifetime and must be at least one.
func (k *Kernel) NewQueue(name string, buf []Message) (*Queue, error) {
	if len(buf) == 0 {
		return nil, codeErr(CodeBadArgument, "queue %q has no capacity", name)
	}
	q := &Queue{k: k, name: name, buf: buf}
	k.mu.Lock()
	k.queues = append(k.queues, q)
	k.mu.Unlock()
	k.point(trace.ScopeQueue, NoThread, "queue.new", name)
	return q, nil
}

// Name returns the queue's registered name.
func (q *Queue) Name() string { return q.name }

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int { return len(q.buf) }

// Empty reports whether no messages are buffered.
func (q *Queue) Empty() bool { return q.Len() == 0 }

// Full reports whether the buffer is at capacity.
func (q *Queue) Full() bool { return q.Len() == len(q.buf) }

func (q *Queue) listFor(r waitRole) *waitList {
	if r == roleSender {
		return &q.senders
	}
	return &q.receivers
}

// Send appends msg at the tail. With Block it suspends the calling thread
// while the queue is full; with NoBlock it fails with CodeWouldBlock.
func (q *Queue) Send(msg Message, flag Flag) error {
	return q.send(msg, flag, false, 0, false)
}

// Jam prepends msg at the head so it is received before everything already
// buffered. Blocking behavior matches Send.
func (q *Queue) Jam(msg Message, flag Flag) error {
	return q.send(msg, flag, true, 0, false)
}

// SendTimeout is a blocking Send that gives up with CodeTimeout after the
// given number of counts elapse on the kernel's time base.
func (q *Queue) SendTimeout(msg Message, timeout timebase.Counts) error {
	return q.send(msg, Block, false, timeout, true)
}

func (q *Queue) send(msg Message, flag Flag, front bool, timeout timebase.Counts, timed bool) error {
	k := q.k
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()

	var deadlineAt timebase.Counts
	if timed {
		deadlineAt = k.src.Now() + timeout
	}
	for {
		q.mu.Lock()
		if q.count < len(q.buf) {
			if front {
				q.first = (q.first - 1 + len(q.buf)) % len(q.buf)
				q.buf[q.first] = msg
			} else {
				q.buf[(q.first+q.count)%len(q.buf)] = msg
			}
			q.count++
			q.mu.Unlock()

			self := k.selfLocked(gid)
			id := NoThread
			if self != nil {
				id = self.id
			}
			if front {
				k.point(trace.ScopeQueue, id, "queue.jam", q.name)
			} else {
				k.point(trace.ScopeQueue, id, "queue.send", q.name)
			}
			if woken := k.wakeOneLocked(&q.receivers); woken != nil && self != nil {
				k.maybePreemptLocked(self)
			}
			return nil
		}
		q.mu.Unlock()

		if flag != Block {
			return codeErr(CodeWouldBlock, "queue %q full", q.name)
		}
		self := k.selfLocked(gid)
		if self == nil {
			return codeErr(CodeHostContext, "blocking send to %q outside a thread", q.name)
		}
		if timed {
			if k.src.Now() >= deadlineAt {
				return codeErr(CodeTimeout, "send to %q", q.name)
			}
			k.armTimeoutLocked(self, deadlineAt)
		}
		k.waitInsertLocked(&q.senders, self)
		if !k.blockOnLocked(self, q, roleSender) {
			return codeErr(CodeTimeout, "send to %q", q.name)
		}
	}
}

// Recv removes and returns the head message. With Block it suspends the
// calling thread while the queue is empty; with NoBlock it fails with
// CodeWouldBlock.
func (q *Queue) Recv(flag Flag) (Message, error) {
	return q.recv(flag, 0, false)
}

// RecvTimeout is a blocking Recv that gives up with CodeTimeout after the
// given number of counts elapse on the kernel's time base. Exactly one of
// a message or a timeout is delivered, never both.
func (q *Queue) RecvTimeout(timeout timebase.Counts) (Message, error) {
	return q.recv(Block, timeout, true)
}

func (q *Queue) recv(flag Flag, timeout timebase.Counts, timed bool) (Message, error) {
	k := q.k
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()

	var deadlineAt timebase.Counts
	if timed {
		deadlineAt = k.src.Now() + timeout
	}
	for {
		q.mu.Lock()
		if q.count > 0 {
			msg := q.buf[q.first]
			q.buf[q.first] = nil
			q.first = (q.first + 1) % len(q.buf)
			q.count--
			q.mu.Unlock()

			self := k.selfLocked(gid)
			id := NoThread
			if self != nil {
				id = self.id
			}
			k.point(trace.ScopeQueue, id, "queue.recv", q.name)
			if woken := k.wakeOneLocked(&q.senders); woken != nil && self != nil {
				k.maybePreemptLocked(self)
			}
			return msg, nil
		}
		q.mu.Unlock()

		if flag != Block {
			return nil, codeErr(CodeWouldBlock, "queue %q empty", q.name)
		}
		self := k.selfLocked(gid)
		if self == nil {
			return nil, codeErr(CodeHostContext, "blocking receive from %q outside a thread", q.name)
		}
		if timed {
			if k.src.Now() >= deadlineAt {
				return nil, codeErr(CodeTimeout, "receive from %q", q.name)
			}
			k.armTimeoutLocked(self, deadlineAt)
		}
		k.waitInsertLocked(&q.receivers, self)
		if !k.blockOnLocked(self, q, roleReceiver) {
			return nil, codeErr(CodeTimeout, "receive from %q", q.name)
		}
	}
}

// deliverLocked appends msg without blocking, waking one receiver. Timer
// delivery uses it and drops the message when the queue is full. Caller
// holds the kernel mutex.
func (q *Queue) deliverLocked(msg Message) bool {
	q.mu.Lock()
	if q.count == len(q.buf) {
		q.mu.Unlock()
		return false
	}
	q.buf[(q.first+q.count)%len(q.buf)] = msg
	q.count++
	q.mu.Unlock()
	k := q.k
	k.wakeOneLocked(&q.receivers)
	return true
}

// jamLocked prepends msg without blocking, waking one receiver. Event
// delivery uses it so notifications outrank buffered traffic; a raise
// into a full queue is dropped. Caller holds the kernel mutex.
func (q *Queue) jamLocked(msg Message) bool {
	q.mu.Lock()
	if q.count == len(q.buf) {
		q.mu.Unlock()
		return false
	}
	q.first = (q.first - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.first] = msg
	q.count++
	q.mu.Unlock()
	q.k.wakeOneLocked(&q.receivers)
	return true
}
