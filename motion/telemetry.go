package motion

import (
	"math"
	"runtime"
	"sync/atomic"
)

// Snapshot is the motion status published once per executor iteration
type Snapshot struct {
	Position int64   // steps from the current origin
	Running  bool    // true while the executor is outside Idle
	State    State   // executor state
	Speed    float64 // signed step rate, steps/s
}

// Telemetry carries Snapshots from the executor (the only writer) to any
// number of readers.
//
// Each field is an independent atomic so the accessors never block.
// Reading several accessors in a row may mix two publications; Load
// returns a consistent copy by retrying across a concurrent Publish.
type Telemetry struct {
	seq      atomic.Uint64 // odd while a publish is in progress
	position atomic.Int64
	running  atomic.Bool
	state    atomic.Uint32
	speed    atomic.Uint64 // math.Float64bits
}

// Publish stores a new snapshot. Must only be called from one goroutine.
func (t *Telemetry) Publish(s Snapshot) {
	t.seq.Add(1)
	t.position.Store(s.Position)
	t.running.Store(s.Running)
	t.state.Store(uint32(s.State))
	t.speed.Store(math.Float64bits(s.Speed))
	t.seq.Add(1)
}

// Load returns the latest complete snapshot
func (t *Telemetry) Load() Snapshot {
	for {
		before := t.seq.Load()
		if before&1 != 0 {
			runtime.Gosched()
			continue
		}
		s := Snapshot{
			Position: t.position.Load(),
			Running:  t.running.Load(),
			State:    State(t.state.Load()),
			Speed:    math.Float64frombits(t.speed.Load()),
		}
		if t.seq.Load() == before {
			return s
		}
	}
}

// Position returns the last published position
func (t *Telemetry) Position() int64 {
	return t.position.Load()
}

// Running returns the last published running flag
func (t *Telemetry) Running() bool {
	return t.running.Load()
}

// State returns the last published state
func (t *Telemetry) State() State {
	return State(t.state.Load())
}

// Speed returns the last published signed speed in steps/s
func (t *Telemetry) Speed() float64 {
	return math.Float64frombits(t.speed.Load())
}

// Sequence counts completed publications
func (t *Telemetry) Sequence() uint64 {
	return t.seq.Load() / 2
}
