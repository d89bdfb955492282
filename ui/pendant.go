package ui

import "stepjog/motion"

// Pendant maps control edges to motion commands.
//
// Jog controls are hold-to-run: pressing starts the jog and releasing
// stops it. Releasing a jog control that is no longer the active one
// (the other direction was pressed meanwhile) does nothing.
type Pendant struct {
	commands *motion.Mailbox
	speeds   *motion.SpeedSelector
	held     Control // jog control currently held, or ControlNone
}

// NewPendant creates a pendant posting to commands
func NewPendant(commands *motion.Mailbox, speeds *motion.SpeedSelector) *Pendant {
	return &Pendant{commands: commands, speeds: speeds}
}

// Press handles a press edge and returns the command posted, if any
func (p *Pendant) Press(c Control) motion.Command {
	switch c {
	case ControlJogForward:
		p.held = c
		return p.post(motion.JogForward)
	case ControlJogReverse:
		p.held = c
		return p.post(motion.JogReverse)
	case ControlStop:
		p.held = ControlNone
		return p.post(motion.Stop)
	case ControlZero:
		return p.post(motion.SetZero)
	case ControlEStop:
		p.held = ControlNone
		return p.post(motion.EmergencyStop)
	case ControlSpeed:
		p.speeds.Cycle()
	}
	return motion.None
}

// Release handles a release edge and returns the command posted, if any
func (p *Pendant) Release(c Control) motion.Command {
	if c == ControlNone || c != p.held {
		return motion.None
	}
	p.held = ControlNone
	return p.post(motion.Stop)
}

// Held returns the jog control currently held
func (p *Pendant) Held() Control {
	return p.held
}

func (p *Pendant) post(cmd motion.Command) motion.Command {
	p.commands.Post(cmd)
	return cmd
}

// TouchTracker turns raw touch samples into control edges. A control is
// pressed only where the finger lands; sliding off it releases it and
// nothing else is pressed until the finger lifts.
type TouchTracker struct {
	layout  *Layout
	pendant *Pendant
	active  Control
	lifted  bool
}

// NewTouchTracker creates a tracker for layout feeding pendant
func NewTouchTracker(layout *Layout, pendant *Pendant) *TouchTracker {
	return &TouchTracker{layout: layout, pendant: pendant, lifted: true}
}

// Sample processes one touch reading. down is false when no finger is on
// the panel; x and y are then ignored.
func (t *TouchTracker) Sample(x, y int16, down bool) motion.Command {
	if !down {
		t.lifted = true
		return t.release()
	}

	landing := t.lifted
	t.lifted = false

	under := t.layout.HitTest(x, y)
	if under == t.active {
		return motion.None
	}

	cmd := t.release()
	if landing && under != ControlNone {
		t.active = under
		if c := t.pendant.Press(under); c != motion.None {
			cmd = c
		}
	}
	return cmd
}

// Active returns the control under the finger
func (t *TouchTracker) Active() Control {
	return t.active
}

func (t *TouchTracker) release() motion.Command {
	if t.active == ControlNone {
		return motion.None
	}
	c := t.active
	t.active = ControlNone
	return t.pendant.Release(c)
}
