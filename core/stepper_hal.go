package core

import "errors"

// StepperBackend defines the hardware abstraction for stepper control
// Implementations can use GPIO, PIO, or other methods
type StepperBackend interface {
	// Init initializes the stepper hardware
	// stepPin: GPIO pin for step pulses
	// dirPin: GPIO pin for direction signal
	// invertStep: invert step pin polarity (active-low wiring)
	// invertDir: invert direction pin polarity
	Init(stepPin, dirPin uint8, invertStep, invertDir bool) error

	// Step generates a single step pulse
	// Must handle pulse width timing internally
	// Should be fast (called from the motion loop)
	Step()

	// SetDirection sets the direction output
	// dir: true = reverse, false = forward
	// The motion loop only calls this while the motor is at rest
	SetDirection(dir bool)

	// Stop immediately halts stepping
	Stop()

	// GetName returns backend implementation name
	GetName() string
}

// Indicator is implemented by backends that also own the "running" output
type Indicator interface {
	// SetIndicator drives the running indicator (true = motor active)
	SetIndicator(on bool)
}

// BackendFactory creates and initialises one candidate backend
type BackendFactory func() (StepperBackend, error)

// SelectBackend returns the first candidate that initialises. When none
// does, the error lists every failure.
func SelectBackend(candidates ...BackendFactory) (StepperBackend, error) {
	var errs []error
	for _, create := range candidates {
		b, err := create()
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no stepper backend candidates")
	}
	return nil, errors.Join(errs...)
}

// InfoProvider is implemented by backends that report their limits
type InfoProvider interface {
	GetInfo() StepperBackendInfo
}

// BackendInfo returns b's performance information, or only its name when
// b does not report any
func BackendInfo(b StepperBackend) StepperBackendInfo {
	if p, ok := b.(InfoProvider); ok {
		return p.GetInfo()
	}
	return StepperBackendInfo{Name: b.GetName()}
}

// StepperBackendInfo provides information about available backends
type StepperBackendInfo struct {
	Name          string
	MaxStepRate   uint32 // Maximum steps/second per axis
	MinPulseNs    uint32 // Minimum step pulse width (ns)
	TypicalJitter uint32 // Typical timing jitter (ns)
	CPUOverhead   uint8  // CPU overhead percentage (0-100)
}
