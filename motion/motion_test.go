package motion

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestMailboxLastWriteWins(t *testing.T) {
	var m Mailbox
	if got := m.Take(); got != None {
		t.Fatalf("Expected empty mailbox, got %v", got)
	}

	m.Post(JogForward)
	m.Post(Stop)
	m.Post(JogReverse)
	if got := m.Pending(); got != JogReverse {
		t.Errorf("Pending: expected %v, got %v", JogReverse, got)
	}
	if got := m.Take(); got != JogReverse {
		t.Errorf("Take: expected %v, got %v", JogReverse, got)
	}
	if got := m.Take(); got != None {
		t.Errorf("Expected mailbox cleared after take, got %v", got)
	}
}

func TestMailboxConcurrentPosts(t *testing.T) {
	var m Mailbox
	var wg sync.WaitGroup
	cmds := []Command{JogForward, JogReverse, Stop, SetZero}
	for _, c := range cmds {
		wg.Add(1)
		go func(c Command) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Post(c)
			}
		}(c)
	}

	stop := make(chan struct{})
	seen := make(chan Command, 1)
	go func() {
		var bad Command
		for {
			select {
			case <-stop:
				seen <- bad
				return
			default:
			}
			if c := m.Take(); c > EmergencyStop {
				bad = c
			}
		}
	}()
	wg.Wait()
	close(stop)
	if bad := <-seen; bad != None {
		t.Errorf("Consumer saw invalid command %d", bad)
	}
}

func TestExecutorTakesLatestCommand(t *testing.T) {
	r := newRig(t, 32000)
	r.post(JogForward)
	r.post(JogReverse)
	r.tick()
	if r.exec.State() != JoggingReverse {
		t.Errorf("Expected JoggingReverse, got %v", r.exec.State())
	}
	if r.exec.Commands().Pending() != None {
		t.Errorf("Expected command consumed")
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from State
		cmd  Command
		to   State
		act  action
	}{
		{Idle, None, Idle, actNone},
		{Idle, JogForward, JoggingForward, actJogForward},
		{Idle, JogReverse, JoggingReverse, actJogReverse},
		{Idle, Stop, Idle, actNone},
		{Idle, SetZero, Idle, actSetZero},
		{Idle, EmergencyStop, Idle, actHalt},
		{JoggingForward, Stop, Stopping, actStop},
		{JoggingForward, JogReverse, JoggingReverse, actJogReverse},
		{JoggingReverse, Stop, Stopping, actStop},
		{JoggingReverse, SetZero, JoggingReverse, actSetZero},
		{Stopping, Stop, Stopping, actNone},
		{Stopping, JogForward, JoggingForward, actJogForward},
		{Stopping, EmergencyStop, Idle, actHalt},
	}
	for _, tt := range tests {
		to, act := transition(tt.from, tt.cmd)
		if to != tt.to || act != tt.act {
			t.Errorf("%v + %v: got (%v, %d), want (%v, %d)", tt.from, tt.cmd, to, act, tt.to, tt.act)
		}
	}
}

func TestStateNames(t *testing.T) {
	for s := Idle; s <= Stopping; s++ {
		got, ok := ParseState(s.String())
		if !ok || got != s {
			t.Errorf("ParseState(%q) = %v, %v", s.String(), got, ok)
		}
	}
	if _, ok := ParseState("flying"); ok {
		t.Error("Expected unknown state name to fail")
	}
	if !Stopping.Active() || Idle.Active() {
		t.Error("Active reports wrong states")
	}
}

func TestTelemetryConsistentSnapshot(t *testing.T) {
	var tel Telemetry
	const n = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= n; i++ {
			tel.Publish(Snapshot{
				Position: i,
				Running:  i%2 == 0,
				State:    State(i % 4),
				Speed:    float64(i) * 1.5,
			})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				s := tel.Load()
				if s.Position == 0 {
					continue
				}
				if s.Running != (s.Position%2 == 0) || s.State != State(s.Position%4) || s.Speed != float64(s.Position)*1.5 {
					t.Errorf("Torn snapshot: %+v", s)
					return
				}
			}
		}()
	}
	wg.Wait()

	if tel.Position() != n || tel.Sequence() != n {
		t.Errorf("Expected position and sequence %d, got %d and %d", n, tel.Position(), tel.Sequence())
	}
}

func TestSpeedSelector(t *testing.T) {
	s := NewSpeedSelector([]float64{3200, 8000, 16000}, 7)
	if s.Selected() != 2 {
		t.Errorf("Expected initial index clamped to 2, got %d", s.Selected())
	}
	if s.Next() != 2 || s.MaxSpeed() != 16000 {
		t.Errorf("Next should saturate at the fastest tier")
	}
	if s.Prev() != 1 || s.MaxSpeed() != 8000 {
		t.Errorf("Prev: got tier %d (%.0f)", s.Selected(), s.MaxSpeed())
	}
	if s.Select(5) || s.Selected() != 1 {
		t.Errorf("Out of range select changed the tier")
	}
	if !s.Select(0) || s.Prev() != 0 {
		t.Errorf("Prev should saturate at the slowest tier")
	}
	s.Select(2)
	if s.Cycle() != 0 {
		t.Errorf("Cycle should wrap to the slowest tier")
	}
}

func TestScale(t *testing.T) {
	if DefaultStepsPerUnit != 32000 {
		t.Fatalf("Expected 32000 steps/mm, got %v", float64(DefaultStepsPerUnit))
	}
	m := DefaultMechanics()
	if got := m.Scale().StepsPerUnit; got != 32000 {
		t.Errorf("Mechanics scale: got %v", got)
	}
	if got := m.StepsPerRev(); got != 32000 {
		t.Errorf("Steps per rev: got %v", got)
	}

	s := DefaultScale()
	if got := s.ToSteps(1.5); got != 48000 {
		t.Errorf("ToSteps(1.5) = %d", got)
	}
	if got := s.ToUnits(-16000); got != -0.5 {
		t.Errorf("ToUnits(-16000) = %v", got)
	}
	if got := s.SpeedToUnits(s.SpeedToSteps(0.25)); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("Speed round trip: %v", got)
	}

	lead := Mechanics{StepAngle: 0.9, Microsteps: 8, GearRatio: 1, Pitch: 8, Unit: "mm"}
	if got := lead.Scale().StepsPerUnit; got != 400 {
		t.Errorf("Lead screw scale: got %v, want 400", got)
	}
}

func TestPlanTrapezoid(t *testing.T) {
	tp := PlanTrapezoid(24000, 32000, 64000)
	if tp.AccelDistance != 8000 || tp.CruiseDistance != 8000 || tp.DecelDistance != 8000 {
		t.Errorf("Unexpected phases: %+v", tp)
	}
	if tp.AccelTime != 500*time.Millisecond || tp.CruiseTime != 250*time.Millisecond {
		t.Errorf("Unexpected times: %v %v", tp.AccelTime, tp.CruiseTime)
	}
	if tp.Duration() != 1250*time.Millisecond {
		t.Errorf("Duration: %v", tp.Duration())
	}

	// Too short to reach max speed
	tri := PlanTrapezoid(-8000, 32000, 64000)
	if tri.CruiseDistance != 0 || tri.AccelDistance != 4000 {
		t.Errorf("Unexpected triangle: %+v", tri)
	}
	if want := math.Sqrt(2 * 64000 * 4000); math.Abs(tri.PeakSpeed-want) > 1e-9 {
		t.Errorf("Triangle peak %.3f, want %.3f", tri.PeakSpeed, want)
	}

	if z := PlanTrapezoid(100, 0, 64000); z.Duration() != 0 {
		t.Errorf("Expected empty plan without speed, got %+v", z)
	}
}

func TestStoppingDistance(t *testing.T) {
	tests := []struct {
		speed float64
		want  int64
	}{
		{0, 0},
		{32000, 8000},
		{-32000, 8000},
		{math.Sqrt(2 * 64000), 1},
		{math.Sqrt(2*64000) + 1, 2},
	}
	for _, tt := range tests {
		if got := StoppingDistance(tt.speed, 64000); got != tt.want {
			t.Errorf("StoppingDistance(%.3f) = %d, want %d", tt.speed, got, tt.want)
		}
	}
}
