package motion

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"stepjog/core"
)

const (
	testAccel = 64000.0
	tick      = time.Microsecond
)

// pulse is one emitted step as seen after the tick that produced it
type pulse struct {
	at       time.Duration
	speed    float64
	position int64
}

// rig drives an executor against a simulated backend with a 1µs loop
type rig struct {
	t      *testing.T
	sim    *core.SimStepperBackend
	clock  *core.ManualClock
	speeds *SpeedSelector
	exec   *Executor
	pulses []pulse
}

func newRig(t *testing.T, tiers ...float64) *rig {
	t.Helper()
	sim := core.NewSimStepperBackend()
	clock := core.NewManualClock()
	speeds := NewSpeedSelector(tiers, len(tiers)-1)
	exec := NewExecutor(sim, clock, speeds, Config{Acceleration: testAccel, DirSetup: DefaultDirSetup})
	return &rig{t: t, sim: sim, clock: clock, speeds: speeds, exec: exec}
}

func (r *rig) tick() bool {
	now := r.clock.Advance(tick)
	before := r.sim.Pulses
	idle := r.exec.Tick(now)
	if r.sim.Pulses != before {
		gen := r.exec.Generator()
		r.pulses = append(r.pulses, pulse{at: now, speed: gen.Speed(), position: gen.Position()})
	}
	return idle
}

func (r *rig) runFor(d time.Duration) {
	end := r.clock.Now() + d
	for r.clock.Now() < end {
		r.tick()
	}
}

func (r *rig) runUntil(limit time.Duration, cond func() bool) {
	r.t.Helper()
	end := r.clock.Now() + limit
	for !cond() {
		if r.clock.Now() >= end {
			r.t.Fatalf("condition not met within %v (state=%v speed=%.1f pos=%d)",
				limit, r.exec.State(), r.speed(), r.exec.Generator().Position())
		}
		r.tick()
	}
}

func (r *rig) post(cmd Command) { r.exec.Commands().Post(cmd) }

func (r *rig) speed() float64 { return r.exec.Generator().Speed() }

func (r *rig) idle() bool { return r.exec.State() == Idle }

// maxGain is the largest speed change allowed between two pulses dt apart
func maxGain(dt time.Duration) float64 {
	return testAccel*(dt+tick).Seconds() + 1e-6
}

func TestJogRampBoundedByAcceleration(t *testing.T) {
	for _, tc := range []struct {
		name  string
		cmd   Command
		state State
		sign  float64
	}{
		{"forward", JogForward, JoggingForward, 1},
		{"reverse", JogReverse, JoggingReverse, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, 32000)
			r.post(tc.cmd)
			r.runUntil(2*time.Second, func() bool { return math.Abs(r.speed()) >= 32000 })
			r.runFor(20 * time.Millisecond)

			if len(r.pulses) < 2 {
				t.Fatalf("Expected pulses, got %d", len(r.pulses))
			}
			if first := math.Abs(r.pulses[0].speed); first > testAccel*r.pulses[0].at.Seconds()+1e-6 {
				t.Errorf("First pulse speed %.1f exceeds acceleration limit", first)
			}
			for i := 1; i < len(r.pulses); i++ {
				prev, cur := r.pulses[i-1], r.pulses[i]
				if cur.speed*tc.sign < 0 {
					t.Fatalf("Pulse %d: speed %.1f has the wrong sign", i, cur.speed)
				}
				dv := math.Abs(cur.speed) - math.Abs(prev.speed)
				if dv < -1e-9 {
					t.Fatalf("Pulse %d: speed decreased by %.3f during ramp", i, -dv)
				}
				if dv > maxGain(cur.at-prev.at) {
					t.Fatalf("Pulse %d: speed rose %.3f in %v, limit %.3f", i, dv, cur.at-prev.at, maxGain(cur.at-prev.at))
				}
				if math.Abs(cur.speed) > 32000+1e-9 {
					t.Fatalf("Pulse %d: speed %.3f exceeds max speed", i, cur.speed)
				}
			}
			if got := r.exec.Telemetry().State(); got != tc.state {
				t.Errorf("Expected state %v, got %v", tc.state, got)
			}
		})
	}
}

func TestStopDeceleratesToZero(t *testing.T) {
	for _, tc := range []struct {
		name string
		jog  time.Duration
	}{
		{"during ramp", 100 * time.Millisecond},
		{"at cruise", 700 * time.Millisecond},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, 32000)
			r.post(JogForward)
			r.runFor(tc.jog)

			v0 := r.speed()
			if v0 <= 0 {
				t.Fatalf("Expected forward motion before stop, speed %.1f", v0)
			}
			mark := len(r.pulses)
			dirWrites := len(r.sim.DirChanges)

			r.post(Stop)
			r.tick()
			if s := r.exec.State(); s != Stopping && s != Idle {
				t.Fatalf("Expected Stopping after stop, got %v", s)
			}
			r.runUntil(2*time.Second, r.idle)

			decel := r.pulses[mark:]
			prev := v0
			for i, p := range decel {
				if p.speed < 0 {
					t.Fatalf("Decel pulse %d: speed %.3f reversed", i, p.speed)
				}
				if p.speed >= prev {
					t.Fatalf("Decel pulse %d: speed %.3f not below %.3f", i, p.speed, prev)
				}
				prev = p.speed
			}
			if prev != 0 {
				t.Errorf("Expected final speed 0, got %.3f", prev)
			}

			want := StoppingDistance(v0, testAccel)
			if diff := int64(len(decel)) - want; diff < -1 || diff > 1 {
				t.Errorf("Expected %d decel steps, got %d", want, len(decel))
			}
			if len(r.sim.DirChanges) != dirWrites {
				t.Errorf("Direction written during stop: %v", r.sim.DirChanges[dirWrites:])
			}

			snap := r.exec.Telemetry().Load()
			if snap.State != Idle || snap.Running || snap.Speed != 0 {
				t.Errorf("Expected idle telemetry, got %+v", snap)
			}
		})
	}
}

func TestStopIgnoredWhenNotJogging(t *testing.T) {
	r := newRig(t, 32000)
	r.post(Stop)
	r.runFor(time.Millisecond)
	if r.exec.State() != Idle || r.sim.Pulses != 0 {
		t.Errorf("Stop from idle: state %v, pulses %d", r.exec.State(), r.sim.Pulses)
	}

	r.post(JogForward)
	r.runFor(300 * time.Millisecond)
	r.post(Stop)
	r.tick()
	target := r.exec.Generator().Target()

	r.post(Stop)
	r.tick()
	if r.exec.State() != Stopping {
		t.Errorf("Expected Stopping, got %v", r.exec.State())
	}
	if got := r.exec.Generator().Target(); got != target {
		t.Errorf("Second stop moved target from %d to %d", target, got)
	}
}

func TestStopBeforeFirstPulse(t *testing.T) {
	r := newRig(t, 32000)
	r.post(JogForward)
	r.tick()
	r.post(Stop)
	r.tick()

	r.runFor(20 * time.Millisecond)
	if r.sim.Pulses != 0 {
		t.Errorf("Expected the pending pulse to be cancelled, got %d pulses", r.sim.Pulses)
	}
	if !r.idle() {
		t.Errorf("Expected Idle, got %v", r.exec.State())
	}
}

func TestReverseWaitsForZeroSpeed(t *testing.T) {
	r := newRig(t, 32000)
	r.post(JogForward)
	r.runFor(700 * time.Millisecond)
	mark := len(r.pulses)

	r.post(JogReverse)
	r.tick()
	if r.exec.State() != JoggingReverse {
		t.Fatalf("Expected JoggingReverse, got %v", r.exec.State())
	}
	r.runUntil(2*time.Second, func() bool { return r.speed() < 0 })
	r.runFor(50 * time.Millisecond)

	if len(r.sim.DirChanges) != 2 {
		t.Fatalf("Expected 2 direction writes, got %v", r.sim.DirChanges)
	}
	change := r.sim.DirChanges[1]
	if !change.Reverse {
		t.Errorf("Expected reverse direction write")
	}
	last := int(change.Pulses) - 1
	if last < mark {
		t.Fatalf("Direction changed before braking: write after pulse %d, jog reversed at %d", last, mark)
	}
	if got := r.pulses[last].speed; got != 0 {
		t.Errorf("Direction written at speed %.3f, want 0", got)
	}
	for i := mark; i <= last; i++ {
		if r.pulses[i].position <= r.pulses[i-1].position {
			t.Fatalf("Pulse %d moved backwards before the direction write", i)
		}
		if r.pulses[i].speed < 0 {
			t.Fatalf("Pulse %d: negative speed before the direction write", i)
		}
	}
	for i := last + 2; i < len(r.pulses); i++ {
		if r.pulses[i].position >= r.pulses[i-1].position {
			t.Fatalf("Pulse %d moved forwards after the direction write", i)
		}
	}
	if first := r.pulses[last+1]; first.at-r.pulses[last].at < DefaultDirSetup {
		t.Errorf("First reverse pulse %v after direction write, want >= %v", first.at-r.pulses[last].at, DefaultDirSetup)
	}
}

func TestJogWhileStopping(t *testing.T) {
	r := newRig(t, 32000)
	r.post(JogForward)
	r.runFor(700 * time.Millisecond)

	r.post(Stop)
	r.tick()
	if r.exec.State() != Stopping {
		t.Fatalf("Expected Stopping, got %v", r.exec.State())
	}
	r.runFor(100 * time.Millisecond)
	braked := r.speed()
	if braked <= 0 || braked >= 32000 {
		t.Fatalf("Expected to be braking, speed %.1f", braked)
	}

	// Same direction: ramp back up without stopping or a direction write
	r.post(JogForward)
	r.tick()
	if r.exec.State() != JoggingForward {
		t.Fatalf("Expected JoggingForward, got %v", r.exec.State())
	}
	mark := len(r.pulses)
	r.runUntil(time.Second, func() bool { return r.speed() >= 32000-1e-6 })
	for i := mark; i < len(r.pulses); i++ {
		if r.pulses[i].speed <= 0 {
			t.Fatalf("Pulse %d: speed %.3f while resuming", i, r.pulses[i].speed)
		}
	}
	if len(r.sim.DirChanges) != 1 {
		t.Errorf("Expected no direction write on resume, got %v", r.sim.DirChanges)
	}

	// Opposite direction: brake to rest first, then one direction write
	r.post(Stop)
	r.tick()
	r.runFor(100 * time.Millisecond)
	r.post(JogReverse)
	r.tick()
	if r.exec.State() != JoggingReverse {
		t.Fatalf("Expected JoggingReverse, got %v", r.exec.State())
	}
	r.runUntil(2*time.Second, func() bool { return r.speed() < 0 })

	if len(r.sim.DirChanges) != 2 || !r.sim.DirChanges[1].Reverse {
		t.Fatalf("Expected one reverse direction write, got %v", r.sim.DirChanges)
	}
	last := int(r.sim.DirChanges[1].Pulses) - 1
	if got := r.pulses[last].speed; got != 0 {
		t.Errorf("Direction written at speed %.3f, want 0", got)
	}
}

func TestLoweringMaxSpeedRampsDown(t *testing.T) {
	r := newRig(t, 3200, 32000)
	r.post(JogForward)
	r.runFor(700 * time.Millisecond)
	if r.speed() != 32000 {
		t.Fatalf("Expected cruise at 32000, got %.3f", r.speed())
	}
	mark := len(r.pulses)
	start := r.clock.Now()

	r.speeds.Select(0)
	r.runUntil(2*time.Second, func() bool { return r.speed() <= 3200 })
	reached := r.clock.Now()
	r.runFor(50 * time.Millisecond)

	if r.speed() != 3200 {
		t.Errorf("Expected cruise at 3200, got %.3f", r.speed())
	}
	if law := time.Duration((32000 - 3200) / testAccel * float64(time.Second)); reached-start < law-time.Millisecond {
		t.Errorf("Ramp down took %v, faster than the deceleration law allows (%v)", reached-start, law)
	}
	for i := mark; i < len(r.pulses); i++ {
		prev, cur := r.pulses[i-1], r.pulses[i]
		if cur.speed < 3200 {
			t.Fatalf("Pulse %d: speed %.3f dipped below the new ceiling", i, cur.speed)
		}
		if drop := prev.speed - cur.speed; drop > maxGain(cur.at-prev.at) {
			t.Fatalf("Pulse %d: speed dropped %.3f in %v", i, drop, cur.at-prev.at)
		}
	}

	// Raising the ceiling ramps back up
	mark = len(r.pulses)
	r.speeds.Select(1)
	r.runUntil(2*time.Second, func() bool { return r.speed() >= 32000 })
	for i := mark; i < len(r.pulses); i++ {
		prev, cur := r.pulses[i-1], r.pulses[i]
		if gain := cur.speed - prev.speed; gain > maxGain(cur.at-prev.at) || gain < -1e-9 {
			t.Fatalf("Pulse %d: speed changed %.3f in %v while raising", i, gain, cur.at-prev.at)
		}
	}
}

func TestSpeedTierIgnoredWhileIdle(t *testing.T) {
	r := newRig(t, 3200, 32000)
	r.speeds.Select(0)
	r.runFor(time.Millisecond)
	if got := r.exec.Generator().MaxSpeed(); got != 32000 {
		t.Errorf("Idle executor picked up tier change: max speed %.0f", got)
	}
	r.post(JogForward)
	r.tick()
	if got := r.exec.Generator().MaxSpeed(); got != 3200 {
		t.Errorf("Expected jog to use the selected tier, got %.0f", got)
	}
}

func TestSetZero(t *testing.T) {
	r := newRig(t, 32000)
	tel := r.exec.Telemetry()

	r.post(SetZero)
	r.tick()
	if tel.Position() != 0 {
		t.Fatalf("Expected position 0, got %d", tel.Position())
	}

	r.post(JogForward)
	r.runFor(200 * time.Millisecond)
	r.post(Stop)
	r.runUntil(time.Second, r.idle)
	if tel.Position() <= 0 {
		t.Fatalf("Expected forward travel, got %d", tel.Position())
	}

	r.post(SetZero)
	r.tick()
	if tel.Position() != 0 || r.exec.Generator().Target() != 0 {
		t.Errorf("After zero: position %d target %d", tel.Position(), r.exec.Generator().Target())
	}

	r.post(JogReverse)
	r.runFor(150 * time.Millisecond)
	r.post(Stop)
	r.runUntil(time.Second, r.idle)
	if tel.Position() >= 0 {
		t.Fatalf("Expected reverse travel, got %d", tel.Position())
	}
	r.post(SetZero)
	r.tick()
	if tel.Position() != 0 {
		t.Errorf("Expected position 0 after second zero, got %d", tel.Position())
	}
}

func TestSetZeroWhileMoving(t *testing.T) {
	r := newRig(t, 32000)
	r.post(JogForward)
	r.runFor(300 * time.Millisecond)
	v := r.speed()

	r.post(SetZero)
	r.tick()
	if p := r.exec.Telemetry().Position(); p < 0 || p > 1 {
		t.Errorf("Expected position 0 or 1 after zero, got %d", p)
	}
	if r.exec.State() != JoggingForward {
		t.Errorf("Zero changed state to %v", r.exec.State())
	}
	if r.speed() < v {
		t.Errorf("Zero disturbed the ramp: speed %.1f -> %.1f", v, r.speed())
	}

	r.post(Stop)
	r.runUntil(time.Second, r.idle)
	if r.exec.Generator().DistanceToGo() != 0 {
		t.Errorf("Expected to stop on target, %d steps left", r.exec.Generator().DistanceToGo())
	}
}

func TestEmergencyStop(t *testing.T) {
	r := newRig(t, 32000)
	r.post(JogForward)
	r.runFor(300 * time.Millisecond)

	r.post(EmergencyStop)
	r.tick()
	pulses := r.sim.Pulses
	r.runFor(20 * time.Millisecond)

	if r.sim.Pulses != pulses {
		t.Errorf("Pulses emitted after emergency stop: %d", r.sim.Pulses-pulses)
	}
	if r.sim.Stops != 1 {
		t.Errorf("Expected backend Stop once, got %d", r.sim.Stops)
	}
	snap := r.exec.Telemetry().Load()
	if snap.State != Idle || snap.Running || snap.Speed != 0 {
		t.Errorf("Expected idle telemetry, got %+v", snap)
	}
	if snap.Position != r.sim.Position {
		t.Errorf("Telemetry position %d, backend position %d", snap.Position, r.sim.Position)
	}
}

func TestJogScenario(t *testing.T) {
	const (
		vmax   = 32000.0
		cruise = 250 * time.Millisecond
	)
	r := newRig(t, vmax)
	r.post(JogForward)
	r.runUntil(time.Second, func() bool { return r.speed() >= vmax })
	accelSteps := r.exec.Generator().Position()

	r.runFor(cruise)
	cruiseEnd := r.exec.Generator().Position()

	r.post(Stop)
	r.runUntil(time.Second, r.idle)
	final := r.exec.Generator().Position()

	want := PlanTrapezoid(JogDistance(vmax, testAccel, cruise), vmax, testAccel)
	checks := []struct {
		name      string
		got, want int64
		tolerance int64
	}{
		{"accel", accelSteps, int64(want.AccelDistance), 2},
		{"cruise", cruiseEnd - accelSteps, int64(want.CruiseDistance), 2},
		{"decel", final - cruiseEnd, int64(want.DecelDistance), 1},
		{"total", final, int64(want.Distance), 4},
	}
	for _, c := range checks {
		if d := c.got - c.want; d < -c.tolerance || d > c.tolerance {
			t.Errorf("%s: got %d steps, want %d ±%d", c.name, c.got, c.want, c.tolerance)
		}
	}

	snap := r.exec.Telemetry().Load()
	if snap.Speed != 0 || snap.State != Idle || snap.Running {
		t.Errorf("Expected rest in Idle, got %+v", snap)
	}
	if snap.Position != r.sim.Position {
		t.Errorf("Telemetry position %d, backend position %d", snap.Position, r.sim.Position)
	}
	if units := DefaultScale().ToUnits(final); math.Abs(units-0.75) > 0.001 {
		t.Errorf("Expected about 0.75 mm of travel, got %.4f", units)
	}
}

func TestRunningIndicator(t *testing.T) {
	r := newRig(t, 32000)
	r.tick()
	if r.sim.Indicator || r.sim.IndicatorWrites != 1 {
		t.Fatalf("Expected indicator off after first tick, got %v (%d writes)", r.sim.Indicator, r.sim.IndicatorWrites)
	}

	r.post(JogForward)
	r.runFor(100 * time.Millisecond)
	if !r.sim.Indicator {
		t.Error("Expected indicator on while jogging")
	}

	r.post(Stop)
	r.tick()
	if !r.sim.Indicator {
		t.Error("Expected indicator on while stopping")
	}
	r.runUntil(time.Second, r.idle)
	r.runFor(time.Millisecond)
	if r.sim.Indicator {
		t.Error("Expected indicator off when idle")
	}
	if r.sim.IndicatorWrites != 3 {
		t.Errorf("Expected 3 indicator writes, got %d", r.sim.IndicatorWrites)
	}
}

func TestTickReportsIdle(t *testing.T) {
	r := newRig(t, 32000)
	if !r.tick() {
		t.Error("Expected fresh executor to be idle")
	}
	r.post(JogForward)
	if r.tick() {
		t.Error("Expected jogging executor not to be idle")
	}
	r.post(EmergencyStop)
	if !r.tick() {
		t.Error("Expected idle after emergency stop")
	}
}

func TestRunHaltsOnCancel(t *testing.T) {
	sim := core.NewSimStepperBackend()
	speeds := NewSpeedSelector([]float64{32000}, 0)
	exec := NewExecutor(sim, core.NewMonotonicClock(), speeds, DefaultConfig())
	tel := exec.Telemetry()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exec.Run(ctx) }()

	exec.Commands().Post(JogForward)
	deadline := time.Now().Add(2 * time.Second)
	for !tel.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Executor never started jogging")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if tel.State() != Idle || tel.Running() {
		t.Errorf("Expected idle after cancel, got %v", tel.State())
	}
	if sim.Stops != 1 {
		t.Errorf("Expected one backend Stop, got %d", sim.Stops)
	}
	if sim.Pulses == 0 {
		t.Error("Expected pulses before cancel")
	}
}
