package ui

import (
	"strconv"

	"stepjog/motion"
)

// View is the text content of the dashboard, derived from one telemetry
// snapshot. Comparable, so callers can skip redraws when nothing changed.
type View struct {
	Position string // in user units
	Steps    string
	Speed    string // in user units per second
	State    string
	Tier     string
	StopIn   string // travel still needed to stop; empty at rest
	Running  bool
	Held     Control
}

// StateLabel returns the short display name of a state
func StateLabel(s motion.State) string {
	switch s {
	case motion.Idle:
		return "IDLE"
	case motion.JoggingForward:
		return "JOG +"
	case motion.JoggingReverse:
		return "JOG -"
	case motion.Stopping:
		return "STOPPING"
	default:
		return "?"
	}
}

// NewView formats snap for display
func NewView(snap motion.Snapshot, scale motion.Scale, speeds *motion.SpeedSelector, accel float64) View {
	v := View{
		Position: formatFixed(scale.ToUnits(snap.Position), 4) + " " + scale.Unit,
		Steps:    strconv.FormatInt(snap.Position, 10) + " steps",
		Speed:    formatFixed(scale.SpeedToUnits(snap.Speed), 3) + " " + scale.Unit + "/s",
		State:    StateLabel(snap.State),
		Running:  snap.Running,
	}

	sel := speeds.Selected()
	v.Tier = "SPD " + strconv.Itoa(sel+1) + "/" + strconv.Itoa(speeds.Len()) +
		"  " + formatFixed(scale.SpeedToUnits(speeds.MaxSpeed()), 2) + " " + scale.Unit + "/s"

	if snap.Speed != 0 {
		steps := motion.StoppingDistance(snap.Speed, accel)
		v.StopIn = "stop in " + formatFixed(scale.ToUnits(steps), 3) + " " + scale.Unit
	}
	return v
}

func formatFixed(f float64, prec int) string {
	if f == 0 {
		// Avoid "-0.000"
		f = 0
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// Dashboard polls telemetry and reports when the view changes
type Dashboard struct {
	telemetry *motion.Telemetry
	speeds    *motion.SpeedSelector
	scale     motion.Scale
	accel     float64
	pendant   *Pendant

	last  View
	valid bool
}

// NewDashboard creates a dashboard. accel is in steps/s². pendant may be
// nil; when set, the held control is highlighted.
func NewDashboard(telemetry *motion.Telemetry, speeds *motion.SpeedSelector, scale motion.Scale, accel float64, pendant *Pendant) *Dashboard {
	return &Dashboard{
		telemetry: telemetry,
		speeds:    speeds,
		scale:     scale,
		accel:     accel,
		pendant:   pendant,
	}
}

// Refresh reads the telemetry and returns the current view and whether it
// differs from the previous one
func (d *Dashboard) Refresh() (View, bool) {
	v := NewView(d.telemetry.Load(), d.scale, d.speeds, d.accel)
	if d.pendant != nil {
		v.Held = d.pendant.Held()
	}
	changed := !d.valid || v != d.last
	d.last = v
	d.valid = true
	return v, changed
}

// Invalidate forces the next Refresh to report a change
func (d *Dashboard) Invalidate() {
	d.valid = false
}
