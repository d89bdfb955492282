package core

import "time"

// GPIOStepperBackend implements stepper control on top of any GPIODriver.
// Used by targets without a dedicated pulse engine (Linux SBCs).
// Step and direction may be wired active-low; see Init.
type GPIOStepperBackend struct {
	driver GPIODriver

	stepPin    GPIOPin
	dirPin     GPIOPin
	invertStep bool
	invertDir  bool

	// Optional running indicator output
	indicatorPin    GPIOPin
	hasIndicator    bool
	invertIndicator bool
	indicatorOn     bool

	// Minimum step pulse width, spun (never slept) between edges
	pulseWidth time.Duration

	// First error seen from the driver; Step/SetDirection cannot return one
	err error
}

// NewGPIOStepperBackend creates a new GPIO-based stepper backend
func NewGPIOStepperBackend(driver GPIODriver) *GPIOStepperBackend {
	return &GPIOStepperBackend{
		driver:     driver,
		pulseWidth: 2 * time.Microsecond,
	}
}

// WithIndicator adds a running indicator output driven by SetIndicator
func (b *GPIOStepperBackend) WithIndicator(pin GPIOPin, invert bool) *GPIOStepperBackend {
	b.indicatorPin = pin
	b.hasIndicator = true
	b.invertIndicator = invert
	return b
}

// SetPulseWidth sets the minimum step pulse width
func (b *GPIOStepperBackend) SetPulseWidth(d time.Duration) {
	b.pulseWidth = d
}

// Init initializes the GPIO stepper backend
// With invertStep/invertDir set, the idle level of the pin is high and the
// active level is low (reference wiring).
func (b *GPIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	b.stepPin = GPIOPin(stepPin)
	b.dirPin = GPIOPin(dirPin)
	b.invertStep = invertStep
	b.invertDir = invertDir

	if err := b.driver.ConfigureOutput(b.stepPin); err != nil {
		return err
	}
	if err := b.driver.ConfigureOutput(b.dirPin); err != nil {
		return err
	}
	if err := b.driver.SetPin(b.stepPin, invertStep); err != nil {
		return err
	}
	if err := b.driver.SetPin(b.dirPin, invertDir); err != nil {
		return err
	}

	if b.hasIndicator {
		if err := b.driver.ConfigureOutput(b.indicatorPin); err != nil {
			return err
		}
		if err := b.driver.SetPin(b.indicatorPin, b.invertIndicator); err != nil {
			return err
		}
	}
	return nil
}

// Step generates a single step pulse
func (b *GPIOStepperBackend) Step() {
	b.record(b.driver.SetPin(b.stepPin, !b.invertStep))

	if b.pulseWidth > 0 {
		start := time.Now()
		for time.Since(start) < b.pulseWidth {
		}
	}

	b.record(b.driver.SetPin(b.stepPin, b.invertStep))
}

// SetDirection sets the direction output
func (b *GPIOStepperBackend) SetDirection(dir bool) {
	b.record(b.driver.SetPin(b.dirPin, dir != b.invertDir))
}

// Stop immediately halts stepping
func (b *GPIOStepperBackend) Stop() {
	// Ensure step pin is idle
	b.record(b.driver.SetPin(b.stepPin, b.invertStep))
}

// SetIndicator drives the running indicator output
func (b *GPIOStepperBackend) SetIndicator(on bool) {
	if !b.hasIndicator {
		return
	}
	b.indicatorOn = on
	b.record(b.driver.SetPin(b.indicatorPin, on != b.invertIndicator))
}

// Err returns the first driver error seen since Init
func (b *GPIOStepperBackend) Err() error {
	return b.err
}

// GetName returns the backend name
func (b *GPIOStepperBackend) GetName() string {
	return "GPIO"
}

// GetInfo returns backend performance information
func (b *GPIOStepperBackend) GetInfo() StepperBackendInfo {
	return StepperBackendInfo{
		Name:          "GPIO",
		MaxStepRate:   50000,
		MinPulseNs:    uint32(b.pulseWidth.Nanoseconds()),
		TypicalJitter: 20000, // scheduler-bound on a general purpose OS
		CPUOverhead:   100,   // the motion loop owns a whole core
	}
}

func (b *GPIOStepperBackend) record(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

var (
	_ StepperBackend = (*GPIOStepperBackend)(nil)
	_ Indicator      = (*GPIOStepperBackend)(nil)
	_ InfoProvider   = (*GPIOStepperBackend)(nil)
)
