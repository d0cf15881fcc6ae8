package kernel

import "relic/internal/trace"

// EventID identifies a system-level notification. The table has a fixed
// slot per identifier and at most one (queue, message) registration per
// slot; there is no fan-out.
type EventID uint8

const (
	// EventSoftware1 and EventSoftware2 are raised by clients themselves.
	EventSoftware1 EventID = iota
	EventSoftware2
	// EventCartridge signals attention from the removable media port.
	EventCartridge
	// EventCounter fires when the count register crosses its compare value.
	EventCounter
	// EventTaskDone signals completion of an offloaded processing task.
	EventTaskDone
	// EventSerial signals serial interface completion.
	EventSerial
	// EventAudio signals audio buffer consumption.
	EventAudio
	// EventRetrace fires once per display refresh.
	EventRetrace
	// EventPeripheral signals peripheral bus completion.
	EventPeripheral
	// EventDisplay signals display processor completion.
	EventDisplay
	// EventCPUBreak signals a breakpoint in client code.
	EventCPUBreak
	// EventTaskBreak signals a breakpoint in an offloaded task.
	EventTaskBreak
	// EventFault signals an unrecoverable fault in a thread.
	EventFault
	// EventThreadStatus fires when any thread is started or stopped.
	EventThreadStatus
	// EventPreReset fires when a reset has been requested but not yet
	// performed.
	EventPreReset

	// NumEvents is the size of the dispatch table.
	NumEvents = int(EventPreReset) + 1
)

// String returns the conventional short name of the event.
func (e EventID) String() string {
	names := [...]string{
		"sw1", "sw2", "cart", "counter", "sp", "si", "ai", "vi",
		"pi", "dp", "cpu_break", "sp_break", "fault", "threadstatus",
		"prenmi",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "unknown"
}

// eventReg is one dispatch table slot.
type eventReg struct {
	q   *Queue
	msg Message
}

// SetEventMessage registers q and msg for the event, replacing any prior
// registration. Subsequent raises of the event jam msg into q. A nil
// queue clears the slot.
func (k *Kernel) SetEventMessage(e EventID, q *Queue, msg Message) error {
	if int(e) >= NumEvents {
		return codeErr(CodeBadEvent, "event %d out of range", e)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.events[e] = eventReg{q: q, msg: msg}
	k.point(trace.ScopeQueue, NoThread, "event.register", e.String())
	return nil
}

// RaiseEvent delivers the event's registered message as a non-blocking
// jam, so it is the next message received on the queue. Raising an event
// with no registration is a silent no-op; delivery into a full queue
// drops the notification. Neither case blocks the caller.
func (k *Kernel) RaiseEvent(e EventID) error {
	if int(e) >= NumEvents {
		return codeErr(CodeBadEvent, "event %d out of range", e)
	}
	gid := curGID()
	k.mu.Lock()
	defer k.mu.Unlock()
	k.raiseLocked(e)
	if self := k.selfLocked(gid); self != nil {
		k.maybePreemptLocked(self)
	}
	return nil
}

func (k *Kernel) raiseLocked(e EventID) {
	reg := k.events[e]
	if reg.q == nil {
		return
	}
	if reg.q.jamLocked(reg.msg) {
		k.point(trace.ScopeQueue, NoThread, "event.raise", e.String())
	} else {
		k.point(trace.ScopeQueue, NoThread, "event.drop", e.String())
	}
}

// PreReset raises the pre-reset notification, giving clients a chance to
// settle state before a simulated reset.
func (k *Kernel) PreReset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.raiseLocked(EventPreReset)
}
