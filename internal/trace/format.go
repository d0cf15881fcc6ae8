package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Format represents the output format for trace events.
type Format uint8

const (
	FormatText    Format = iota // human-readable text
	FormatNDJSON                // newline-delimited JSON
	FormatMsgpack               // binary msgpack stream
)

// String returns the string representation of Format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatNDJSON:
		return "ndjson"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	case "msgpack", "bin":
		return FormatMsgpack, nil
	default:
		return FormatText, fmt.Errorf("invalid trace format: %q (expected: text|ndjson|msgpack)", s)
	}
}

// wireEvent is the serialized shape shared by NDJSON and msgpack.
type wireEvent struct {
	Time   time.Time         `json:"time" msgpack:"time"`
	Seq    uint64            `json:"seq" msgpack:"seq"`
	Kind   uint8             `json:"kind" msgpack:"kind"`
	Scope  uint8             `json:"scope" msgpack:"scope"`
	Thread uint32            `json:"thread,omitempty" msgpack:"thread,omitempty"`
	Name   string            `json:"name" msgpack:"name"`
	Detail string            `json:"detail,omitempty" msgpack:"detail,omitempty"`
	Extra  map[string]string `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

func toWire(ev *Event) wireEvent {
	return wireEvent{
		Time:   ev.Time,
		Seq:    ev.Seq,
		Kind:   uint8(ev.Kind),
		Scope:  uint8(ev.Scope),
		Thread: ev.Thread,
		Name:   ev.Name,
		Detail: ev.Detail,
		Extra:  ev.Extra,
	}
}

func fromWire(w wireEvent) Event {
	return Event{
		Time:   w.Time,
		Seq:    w.Seq,
		Kind:   Kind(w.Kind),
		Scope:  Scope(w.Scope),
		Thread: w.Thread,
		Name:   w.Name,
		Detail: w.Detail,
		Extra:  w.Extra,
	}
}

// FormatEvent formats an event according to the specified format.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatMsgpack:
		return formatMsgpack(ev)
	default:
		return formatText(ev)
	}
}

// formatNDJSON formats an event as newline-delimited JSON.
func formatNDJSON(ev *Event) []byte {
	data, _ := json.Marshal(toWire(ev)) //nolint:errcheck // wireEvent always marshals
	data = append(data, '\n')
	return data
}

// formatMsgpack formats an event as one msgpack-encoded record.
func formatMsgpack(ev *Event) []byte {
	data, err := msgpack.Marshal(toWire(ev))
	if err != nil {
		return nil
	}
	return data
}

// formatText formats an event as human-readable text.
// Format: [seq] scope  name @thread (detail) {extra}
func formatText(ev *Event) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%8d] %-6s ", ev.Seq, ev.Scope.String()))

	switch ev.Kind {
	case KindBegin:
		sb.WriteString("→ ") // →
	case KindEnd:
		sb.WriteString("← ") // ←
	default:
		sb.WriteString("• ") // •
	}

	sb.WriteString(ev.Name)
	if ev.Thread != 0 {
		sb.WriteString(fmt.Sprintf(" @%d", ev.Thread))
	}
	if ev.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(ev.Detail)
		sb.WriteString(")")
	}
	if len(ev.Extra) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range ev.Extra {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(v)
			first = false
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return []byte(sb.String())
}

// ReadAll decodes a stream of events previously written in the given
// format (NDJSON or msgpack).
func ReadAll(r io.Reader, format Format) ([]Event, error) {
	switch format {
	case FormatNDJSON:
		return readNDJSON(r)
	case FormatMsgpack:
		return readMsgpack(r)
	default:
		return nil, fmt.Errorf("trace: format %s cannot be decoded", format)
	}
}

func readNDJSON(r io.Reader) ([]Event, error) {
	dec := json.NewDecoder(r)
	var events []Event
	for {
		var w wireEvent
		if err := dec.Decode(&w); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return events, fmt.Errorf("trace: bad NDJSON record: %w", err)
		}
		events = append(events, fromWire(w))
	}
}

func readMsgpack(r io.Reader) ([]Event, error) {
	dec := msgpack.NewDecoder(r)
	var events []Event
	for {
		var w wireEvent
		if err := dec.Decode(&w); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return events, fmt.Errorf("trace: bad msgpack record: %w", err)
		}
		events = append(events, fromWire(w))
	}
}
