package motion

import (
	"context"
	"time"

	"stepjog/core"
)

// Config holds the executor tuning that is fixed for the process lifetime
type Config struct {
	Acceleration float64       // steps/s²
	DirSetup     time.Duration // direction write to first pulse
	IdleYield    time.Duration // sleep per idle iteration; 0 spins
}

// DefaultConfig returns the reference tuning
func DefaultConfig() Config {
	return Config{
		Acceleration: 64000,
		DirSetup:     DefaultDirSetup,
		IdleYield:    time.Millisecond,
	}
}

// Executor is the real-time half of the controller. It exclusively owns
// the stepper backend; the rest of the program talks to it through the
// mailbox, the speed selector and the telemetry.
type Executor struct {
	gen       *Generator
	backend   core.StepperBackend
	indicator core.Indicator // nil when the backend has no indicator output
	info      core.StepperBackendInfo
	clock     core.Clock

	mailbox   Mailbox
	telemetry Telemetry
	speeds    *SpeedSelector

	state       State
	indicatorOn bool
	indicatorOK bool // indicatorOn reflects the output
	idleYield   time.Duration
}

// NewExecutor creates an idle executor at position 0
func NewExecutor(backend core.StepperBackend, clock core.Clock, speeds *SpeedSelector, cfg Config) *Executor {
	gen := NewGenerator(backend, speeds.MaxSpeed(), cfg.Acceleration)
	gen.SetDirSetup(cfg.DirSetup)

	e := &Executor{
		gen:       gen,
		backend:   backend,
		info:      core.BackendInfo(backend),
		clock:     clock,
		speeds:    speeds,
		idleYield: cfg.IdleYield,
	}
	if ind, ok := backend.(core.Indicator); ok {
		e.indicator = ind
	}
	e.publish()
	return e
}

// Commands returns the mailbox the UI posts commands to
func (e *Executor) Commands() *Mailbox { return &e.mailbox }

// Telemetry returns the executor's published status
func (e *Executor) Telemetry() *Telemetry { return &e.telemetry }

// Speeds returns the speed selector the executor follows
func (e *Executor) Speeds() *SpeedSelector { return e.speeds }

// BackendInfo describes the backend, captured at construction so any
// goroutine may read it
func (e *Executor) BackendInfo() core.StepperBackendInfo { return e.info }

// Generator exposes the step generator. Only safe from the goroutine
// running the executor.
func (e *Executor) Generator() *Generator { return e.gen }

// State returns the executor state. Only safe from the goroutine running
// the executor; other goroutines use Telemetry.
func (e *Executor) State() State { return e.state }

// Tick runs one loop iteration at time now and reports whether the
// executor is idle with nothing pending.
func (e *Executor) Tick(now time.Duration) bool {
	if cmd := e.mailbox.Take(); cmd != None {
		e.apply(cmd, now)
	}

	if e.state.Jogging() {
		if v := e.speeds.MaxSpeed(); v != e.gen.MaxSpeed() {
			core.RecordTiming(core.EvtMaxSpeed, 0, micros(now), int64(e.gen.MaxSpeed()), int64(v))
			e.gen.SetMaxSpeed(v, now)
		}
	}

	e.gen.Run(now)

	if e.state != Idle && !e.gen.Running() {
		e.setState(Idle, now)
	}

	e.publish()
	e.driveIndicator()

	return e.state == Idle && !e.gen.Running() && e.mailbox.Pending() == None
}

// Run loops Tick until ctx is cancelled, then halts the motor.
// It only sleeps while idle; a jog or stop in progress is never paused.
// Run should have a thread (or core) to itself.
func (e *Executor) Run(ctx context.Context) error {
	done := ctx.Done()
	for {
		select {
		case <-done:
			e.Halt()
			return ctx.Err()
		default:
		}

		if e.Tick(e.clock.Now()) && e.idleYield > 0 {
			time.Sleep(e.idleYield)
		}
	}
}

// Halt stops the motor without deceleration and publishes Idle. Only
// call it from the goroutine running the executor, or after Run returned.
func (e *Executor) Halt() {
	now := e.clock.Now()
	core.RecordTiming(core.EvtEmergencyStop, 0, micros(now), e.gen.Position(), int64(e.gen.Speed()))
	e.gen.Halt()
	e.setState(Idle, now)
	e.publish()
	e.driveIndicator()
}

func (e *Executor) apply(cmd Command, now time.Duration) {
	core.RecordTiming(core.EvtCommand, 0, micros(now), int64(cmd), int64(e.state))

	next, act := transition(e.state, cmd)
	switch act {
	case actJogForward:
		e.gen.SetMaxSpeed(e.speeds.MaxSpeed(), now)
		e.gen.MoveTo(JogTarget, now)
	case actJogReverse:
		e.gen.SetMaxSpeed(e.speeds.MaxSpeed(), now)
		e.gen.MoveTo(-JogTarget, now)
	case actStop:
		e.gen.Stop(now)
	case actSetZero:
		core.RecordTiming(core.EvtSetZero, 0, micros(now), e.gen.Position(), 0)
		e.gen.SetPosition(0)
	case actHalt:
		core.RecordTiming(core.EvtEmergencyStop, 0, micros(now), e.gen.Position(), int64(e.gen.Speed()))
		e.gen.Halt()
	case actNone:
	}
	e.setState(next, now)
}

func (e *Executor) setState(s State, now time.Duration) {
	if s == e.state {
		return
	}
	core.RecordTiming(core.EvtStateChange, 0, micros(now), int64(e.state), int64(s))
	e.state = s
}

func (e *Executor) publish() {
	e.telemetry.Publish(Snapshot{
		Position: e.gen.Position(),
		Running:  e.state.Active(),
		State:    e.state,
		Speed:    e.gen.Speed(),
	})
}

func (e *Executor) driveIndicator() {
	on := e.state.Active()
	if e.indicatorOK && on == e.indicatorOn {
		return
	}
	e.indicatorOn = on
	e.indicatorOK = true
	if e.indicator != nil {
		e.indicator.SetIndicator(on)
	}
}
