package motion

import (
	"math"
	"time"

	"stepjog/core"
)

// JogTarget is the distance a jog heads for. It is far beyond any
// reachable travel, so a jog only ends on Stop or EmergencyStop.
const JogTarget int64 = 1 << 40

// DefaultDirSetup is the minimum delay between a direction write and the
// next step pulse
const DefaultDirSetup = 5 * time.Microsecond

// speeds below this are treated as rest
const restEpsilon = 1e-6

// Generator produces step pulses along a trapezoidal velocity profile.
//
// Speeds are tracked at pulse boundaries. Between two pulses the motor is
// assumed to accelerate uniformly, so a step that starts at speed u and
// ends at u' takes 2/(u+u') seconds and u'² - u² = ±2a exactly. Before
// every pulse the generator picks the fastest u' whose stopping distance
// still fits in the steps left to the target.
//
// A Generator is driven by a single goroutine (the motion loop).
type Generator struct {
	backend core.StepperBackend

	position int64
	target   int64
	dir      int64 // +1 or -1
	dirSet   bool  // direction output written at least once

	speed float64 // boundary speed at the last pulse (magnitude, steps/s)
	next  float64 // boundary speed at the scheduled pulse

	maxSpeed float64
	accel    float64
	dirSetup time.Duration

	lastStep time.Duration // time of the last pulse, or of the plan start
	interval time.Duration // lastStep to the scheduled pulse; 0 = none
	steps    uint64
}

// NewGenerator creates a generator at rest at position 0
func NewGenerator(backend core.StepperBackend, maxSpeed, accel float64) *Generator {
	return &Generator{
		backend:  backend,
		dir:      1,
		maxSpeed: maxSpeed,
		accel:    accel,
		dirSetup: DefaultDirSetup,
	}
}

// SetDirSetup sets the direction-to-step setup time
func (g *Generator) SetDirSetup(d time.Duration) {
	g.dirSetup = d
}

// Position returns the commanded position in steps
func (g *Generator) Position() int64 { return g.position }

// Target returns the target position in steps
func (g *Generator) Target() int64 { return g.target }

// DistanceToGo returns the signed steps left to the target
func (g *Generator) DistanceToGo() int64 { return g.target - g.position }

// Speed returns the signed speed at the last pulse in steps/s
func (g *Generator) Speed() float64 { return float64(g.dir) * g.speed }

// MaxSpeed returns the speed ceiling in steps/s
func (g *Generator) MaxSpeed() float64 { return g.maxSpeed }

// Acceleration returns the acceleration in steps/s²
func (g *Generator) Acceleration() float64 { return g.accel }

// Interval returns the time from the last pulse to the scheduled one
func (g *Generator) Interval() time.Duration { return g.interval }

// Steps returns the total number of pulses emitted
func (g *Generator) Steps() uint64 { return g.steps }

// Reverse reports whether the current direction of travel is negative
func (g *Generator) Reverse() bool { return g.dir < 0 }

// Running reports whether a pulse is scheduled
func (g *Generator) Running() bool { return g.interval > 0 }

// MoveTo sets a new absolute target. Motion already in progress is
// carried over: the generator brakes first if the target is behind it.
func (g *Generator) MoveTo(target int64, now time.Duration) {
	g.target = target
	g.plan(now)
}

// Move sets a target relative to the current position
func (g *Generator) Move(steps int64, now time.Duration) {
	g.MoveTo(g.position+steps, now)
}

// SetMaxSpeed changes the speed ceiling. Above the new ceiling the
// generator ramps down at the configured acceleration.
func (g *Generator) SetMaxSpeed(v float64, now time.Duration) {
	if v <= 0 || v == g.maxSpeed {
		return
	}
	g.maxSpeed = v
	if g.interval > 0 {
		g.plan(now)
	}
}

// SetAcceleration changes the acceleration
func (g *Generator) SetAcceleration(a float64, now time.Duration) {
	if a <= 0 || a == g.accel {
		return
	}
	g.accel = a
	if g.interval > 0 {
		g.plan(now)
	}
}

// SetPosition redefines the current position. The target moves with it,
// so motion in progress is not disturbed.
func (g *Generator) SetPosition(p int64) {
	g.target += p - g.position
	g.position = p
}

// Stop retargets to the nearest point the motor can decelerate to
func (g *Generator) Stop(now time.Duration) {
	g.target = g.position + g.dir*StoppingDistance(g.speed, g.accel)
	g.plan(now)
}

// Halt stops pulse generation at once, without deceleration
func (g *Generator) Halt() {
	g.speed = 0
	g.next = 0
	g.interval = 0
	g.target = g.position
	g.backend.Stop()
}

// Run emits a pulse if one is due at now. At most one pulse per call.
func (g *Generator) Run(now time.Duration) bool {
	if g.interval == 0 || now-g.lastStep < g.interval {
		return false
	}

	g.backend.Step()
	g.position += g.dir
	g.steps++
	g.speed = g.next

	g.lastStep += g.interval
	if now-g.lastStep > g.interval {
		// Fell behind by more than a step; resync instead of bursting
		g.lastStep = now
	}
	g.plan(g.lastStep)
	return true
}

// plan picks the boundary speed of the next pulse and its interval
func (g *Generator) plan(now time.Duration) {
	remaining := g.target - g.position
	setup := false

	if g.speed == 0 {
		if remaining == 0 {
			g.next = 0
			g.interval = 0
			return
		}
		want := int64(1)
		if remaining < 0 {
			want = -1
		}
		if want != g.dir || !g.dirSet {
			g.dir = want
			g.dirSet = true
			g.backend.SetDirection(want < 0)
			core.RecordTiming(core.EvtDirChange, 0, micros(now), boolToInt(want < 0), g.position)
			setup = true
		}
		if g.interval == 0 || setup {
			g.lastStep = now
		}
	}

	g.next = g.nextSpeed(remaining * g.dir)

	var secs float64
	if sum := g.speed + g.next; sum > 0 {
		secs = 2 / sum
	} else {
		// One step from rest to rest: half accelerating, half braking
		secs = 2 / math.Sqrt(g.accel)
	}
	g.interval = time.Duration(math.Round(secs * float64(time.Second)))
	if setup && g.interval < g.dirSetup {
		g.interval = g.dirSetup
	}
	if g.interval <= 0 {
		g.interval = 1
	}
}

// nextSpeed chooses the next boundary speed given the steps left in the
// current direction of travel (zero or negative when the target is
// behind).
func (g *Generator) nextSpeed(ahead int64) float64 {
	u := g.speed
	if ahead <= 0 {
		return g.brake(u)
	}
	budget := ahead - 1

	if u > g.maxSpeed {
		v := g.brake(u)
		if v < g.maxSpeed {
			v = g.maxSpeed
		}
		if StoppingDistance(v, g.accel) <= budget {
			return v
		}
		return g.brake(u)
	}

	up := math.Min(math.Sqrt(u*u+2*g.accel), g.maxSpeed)
	if StoppingDistance(up, g.accel) <= budget {
		return up
	}
	if u > 0 && StoppingDistance(u, g.accel) <= budget {
		return u
	}
	return g.brake(u)
}

// brake returns the speed one step of deceleration below u
func (g *Generator) brake(u float64) float64 {
	v2 := u*u - 2*g.accel
	if v2 <= restEpsilon*2*g.accel {
		return 0
	}
	return math.Sqrt(v2)
}

func micros(t time.Duration) uint32 {
	return uint32(t / time.Microsecond)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
