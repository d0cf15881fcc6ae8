package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindBegin marks the start of a thread's lifetime.
	KindBegin Kind = iota + 1
	// KindEnd marks the end of a thread's lifetime.
	KindEnd
	// KindPoint represents an instant event.
	KindPoint
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindBegin:
		return "begin"
	case KindEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent higher-level/coarser events.
type Scope uint8

const (
	// ScopeKernel covers boot, shutdown and reset events.
	ScopeKernel Scope = iota + 1
	// ScopeThread covers thread state transitions and priority changes.
	ScopeThread
	// ScopeQueue covers message sends, jams, receives and event dispatch.
	ScopeQueue
	// ScopeTimer covers timer arm/fire/drop and timeout registrations.
	ScopeTimer
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeKernel:
		return "kernel"
	case ScopeThread:
		return "thread"
	case ScopeQueue:
		return "queue"
	case ScopeTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time   time.Time         // wall-clock timestamp
	Seq    uint64            // global sequence number (monotonic)
	Kind   Kind              // event kind
	Scope  Scope             // granularity level
	Thread uint32            // originating thread handle (0 for host contexts)
	Name   string            // e.g., "thread.start", "queue.send", "timer.fire"
	Detail string            // optional detail message
	Extra  map[string]string // extensible key-value pairs
}
