package core

// DirChange records a direction write on the simulated backend
type DirChange struct {
	Pulses  int64 // Pulses emitted before the write
	Reverse bool
}

// SimStepperBackend is a StepperBackend without hardware. It keeps a
// pulse-accurate model of the output lines for the simulator and tests.
// It must only be driven by one goroutine (the motion loop).
type SimStepperBackend struct {
	initialized bool
	reverse     bool

	// Pulses counts every emitted step pulse
	Pulses int64
	// Position is the net pulse count, signed by the direction line
	Position int64
	// DirChanges lists every direction write that changed the line
	DirChanges []DirChange
	// Indicator is the current running indicator level
	Indicator bool
	// IndicatorWrites counts SetIndicator calls
	IndicatorWrites int
	// Stops counts Stop calls
	Stops int

	// OnStep, when set, is called after every pulse
	OnStep func(reverse bool)
}

// NewSimStepperBackend creates a simulated backend
func NewSimStepperBackend() *SimStepperBackend {
	return &SimStepperBackend{}
}

// Init marks the backend ready
func (s *SimStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	s.initialized = true
	return nil
}

// Step emits one simulated pulse
func (s *SimStepperBackend) Step() {
	s.Pulses++
	if s.reverse {
		s.Position--
	} else {
		s.Position++
	}
	if s.OnStep != nil {
		s.OnStep(s.reverse)
	}
}

// SetDirection sets the simulated direction line
func (s *SimStepperBackend) SetDirection(dir bool) {
	if dir == s.reverse && len(s.DirChanges) > 0 {
		return
	}
	s.reverse = dir
	s.DirChanges = append(s.DirChanges, DirChange{Pulses: s.Pulses, Reverse: dir})
}

// Reverse reports the current direction line level
func (s *SimStepperBackend) Reverse() bool {
	return s.reverse
}

// Stop records a halt request
func (s *SimStepperBackend) Stop() {
	s.Stops++
}

// SetIndicator drives the simulated running indicator
func (s *SimStepperBackend) SetIndicator(on bool) {
	s.Indicator = on
	s.IndicatorWrites++
}

// GetName returns the backend name
func (s *SimStepperBackend) GetName() string {
	return "SIM"
}

var (
	_ StepperBackend = (*SimStepperBackend)(nil)
	_ Indicator      = (*SimStepperBackend)(nil)
)
