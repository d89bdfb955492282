package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a motion event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Axis      uint8  // Axis index (always 0 for the jog controller)
	Clock     uint32 // Loop time at event, microseconds (wraps)
	Value1    int64  // Context-dependent value
	Value2    int64  // Context-dependent value
}

// Event type codes
const (
	EvtCommand       = 1 // command consumed: v1=command
	EvtStateChange   = 2 // motor state change: v1=from, v2=to
	EvtDirChange     = 3 // direction output written: v1=1 when reverse, v2=position
	EvtEmergencyStop = 4 // emergency halt: v1=position, v2=speed (steps/s)
	EvtSetZero       = 5 // origin redefined: v1=old position
	EvtMaxSpeed      = 6 // max speed hot update: v1=old, v2=new (steps/s)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]timingSlot
	timingRingHead atomic.Uint32 // Events recorded since the last clear
)

// timingSlot holds one event behind a sequence counter so the console can
// copy it while the motion loop keeps recording. seq is odd while a write
// is in progress; index is the ring position the event was recorded at.
type timingSlot struct {
	seq   atomic.Uint32
	index atomic.Uint32
	kind  atomic.Uint32 // event type | axis<<8
	clock atomic.Uint32
	v1    atomic.Int64
	v2    atomic.Int64
}

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, a logger, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks; never call it from the motion loop
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures a timing event in the ring buffer
// This is always non-blocking and allocation free
func RecordTiming(eventType, axis uint8, clock uint32, value1, value2 int64) {
	idx := timingRingHead.Add(1) - 1
	slot := &timingRing[idx%TimingRingSize]

	slot.seq.Add(1)
	slot.index.Store(idx)
	slot.kind.Store(uint32(eventType) | uint32(axis)<<8)
	slot.clock.Store(clock)
	slot.v1.Store(value1)
	slot.v2.Store(value2)
	slot.seq.Add(1)
}

// TimingEvents returns the captured events, oldest first. Safe to call
// while the motion loop records; events overwritten or half written during
// the copy are left out.
func TimingEvents() []TimingEvent {
	head := timingRingHead.Load()
	first := uint32(0)
	if head > TimingRingSize {
		first = head - TimingRingSize
	}

	events := make([]TimingEvent, 0, head-first)
	for i := first; i != head; i++ {
		if evt, ok := timingRing[i%TimingRingSize].load(i); ok {
			events = append(events, evt)
		}
	}
	return events
}

func (s *timingSlot) load(index uint32) (TimingEvent, bool) {
	before := s.seq.Load()
	if before&1 != 0 {
		return TimingEvent{}, false
	}
	kind := s.kind.Load()
	evt := TimingEvent{
		EventType: uint8(kind),
		Axis:      uint8(kind >> 8),
		Clock:     s.clock.Load(),
		Value1:    s.v1.Load(),
		Value2:    s.v2.Load(),
	}
	if s.index.Load() != index || s.seq.Load() != before || evt.EventType == 0 {
		return TimingEvent{}, false
	}
	return evt, true
}

// EventName returns a short label for an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtCommand:
		return "COMMAND"
	case EvtStateChange:
		return "STATE"
	case EvtDirChange:
		return "DIR"
	case EvtEmergencyStop:
		return "ESTOP!"
	case EvtSetZero:
		return "SET_ZERO"
	case EvtMaxSpeed:
		return "MAX_SPEED"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing outputs the timing ring buffer (call on shutdown/error)
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + EventName(evt.EventType) +
			" axis=" + itoa(int64(evt.Axis)) +
			" clock=" + itoa(int64(evt.Clock)) +
			" v1=" + itoa(evt.Value1) +
			" v2=" + itoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer. Not safe against a concurrent
// RecordTiming; call once the motion loop is quiet.
func ClearTimingRing() {
	timingRingHead.Store(0)
	for i := range timingRing {
		slot := &timingRing[i]
		slot.kind.Store(0)
		slot.index.Store(0)
		slot.clock.Store(0)
		slot.v1.Store(0)
		slot.v2.Store(0)
	}
}

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	u := uint64(n)
	if n < 0 {
		u = uint64(-n)
	}
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if n < 0 {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
