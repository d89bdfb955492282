package motion

import "sync/atomic"

// Command is a motion intent produced by the UI context and consumed
// exactly once by the executor.
type Command uint32

const (
	None Command = iota
	JogForward
	JogReverse
	Stop
	SetZero
	EmergencyStop
)

// String returns the protocol name of the command
func (c Command) String() string {
	switch c {
	case None:
		return "none"
	case JogForward:
		return "jog+"
	case JogReverse:
		return "jog-"
	case Stop:
		return "stop"
	case SetZero:
		return "zero"
	case EmergencyStop:
		return "estop"
	default:
		return "unknown"
	}
}

// Mailbox is the single-slot command channel between the UI context and
// the motion loop. A post overwrites any command that has not been taken
// yet: stale intents are dropped, never queued. Neither side ever blocks.
type Mailbox struct {
	slot atomic.Uint32
}

// Post publishes cmd, replacing an unconsumed command.
// Posting None withdraws whatever is pending.
func (m *Mailbox) Post(cmd Command) {
	m.slot.Store(uint32(cmd))
}

// Take reads and clears the pending command in one atomic step.
// Returns None when nothing is pending.
func (m *Mailbox) Take() Command {
	return Command(m.slot.Swap(uint32(None)))
}

// Pending peeks at the pending command without consuming it
func (m *Mailbox) Pending() Command {
	return Command(m.slot.Load())
}
