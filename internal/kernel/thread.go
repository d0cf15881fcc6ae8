package kernel

import "sync"

// MaxThreads is the size of the fixed thread table.
const MaxThreads = 64

// ThreadID is a thread handle: slot number in the low byte (1-based, so a
// valid handle is never zero) and a generation counter above it. Stale
// handles from destroyed threads fail lookup instead of aliasing a reused
// slot.
type ThreadID uint32

// NoThread is the zero handle.
const NoThread ThreadID = 0

func makeID(slot int, gen uint32) ThreadID {
	return ThreadID(gen<<8 | uint32(slot+1))
}

func slotOf(id ThreadID) int {
	return int(id&0xff) - 1
}

// State is a thread scheduling state.
type State uint8

const (
	// Stopped threads hold a table slot but are not eligible to run.
	Stopped State = iota
	// Runnable threads are eligible and queued for the run token.
	Runnable
	// Running is the single thread holding the run token.
	Running
	// Waiting threads are blocked on a message queue or deadline.
	Waiting
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// waitRole identifies which side of a queue a thread is blocked on.
type waitRole uint8

const (
	roleNone waitRole = iota
	roleSender
	roleReceiver
)

// thread is one slot of the fixed thread table. All fields are guarded by
// the kernel mutex.
type thread struct {
	used bool
	gen  uint32
	id   ThreadID
	name string
	pri  uint8
	st   State

	entry func(any)
	arg   any

	cond *sync.Cond // on Kernel.mu; granted-run-token signal
	gid  uint64     // goroutine id of the live trampoline, 0 if none
	live bool       // trampoline goroutine exists

	// Wait bookkeeping while st == Waiting.
	waitQ    *Queue
	role     waitRole
	deadline *deadline // pending timeout registration, nil if none
	timedOut bool

	stopPending bool
	destroyed   bool
}
