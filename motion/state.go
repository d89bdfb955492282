package motion

// State is the motor mode, owned exclusively by the executor
type State uint32

const (
	Idle State = iota
	JoggingForward
	JoggingReverse
	Stopping
)

// String returns the protocol name of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case JoggingForward:
		return "jog-forward"
	case JoggingReverse:
		return "jog-reverse"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String
func ParseState(name string) (State, bool) {
	for s := Idle; s <= Stopping; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return Idle, false
}

// Active reports whether the running indicator should be lit
func (s State) Active() bool {
	return s != Idle
}

// Jogging reports whether the state is one of the two jog states
func (s State) Jogging() bool {
	return s == JoggingForward || s == JoggingReverse
}

// action is what the executor does to the step generator for a command
type action uint8

const (
	actNone action = iota
	actJogForward
	actJogReverse
	actStop
	actSetZero
	actHalt
)

// transition maps (state, command) to the next state and generator action.
// Reaching zero speed in Stopping is handled by the executor, not here.
func transition(s State, cmd Command) (State, action) {
	switch cmd {
	case JogForward:
		return JoggingForward, actJogForward
	case JogReverse:
		return JoggingReverse, actJogReverse
	case Stop:
		if s.Jogging() {
			return Stopping, actStop
		}
		return s, actNone
	case SetZero:
		return s, actSetZero
	case EmergencyStop:
		return Idle, actHalt
	default:
		return s, actNone
	}
}
