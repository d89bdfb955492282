package motion

import "math"

// Reference mechanics: 1.8° motor, 16 microsteps, 10:1 reduction,
// 1 mm of travel per output revolution.
const (
	DefaultStepAngle  = 1.8
	DefaultMicrosteps = 16
	DefaultGearRatio  = 10.0
	DefaultPitch      = 1.0

	// DefaultStepsPerUnit is 32000 steps/mm for the reference mechanics
	DefaultStepsPerUnit = 360.0 / DefaultStepAngle * DefaultMicrosteps * DefaultGearRatio / DefaultPitch
)

// Mechanics describes the drive train between the step input and the
// user-visible unit.
type Mechanics struct {
	StepAngle  float64 // degrees per full motor step
	Microsteps int     // driver microstep divisor
	GearRatio  float64 // motor revolutions per output revolution
	Pitch      float64 // units of travel per output revolution
	Unit       string  // display name of the unit
}

// DefaultMechanics returns the reference drive train
func DefaultMechanics() Mechanics {
	return Mechanics{
		StepAngle:  DefaultStepAngle,
		Microsteps: DefaultMicrosteps,
		GearRatio:  DefaultGearRatio,
		Pitch:      DefaultPitch,
		Unit:       "mm",
	}
}

// StepsPerRev returns microsteps per output revolution
func (m Mechanics) StepsPerRev() float64 {
	return 360.0 / m.StepAngle * float64(m.Microsteps) * m.GearRatio
}

// Scale derives the steps/unit conversion
func (m Mechanics) Scale() Scale {
	return Scale{StepsPerUnit: m.StepsPerRev() / m.Pitch, Unit: m.Unit}
}

// Scale converts between steps and user units
type Scale struct {
	StepsPerUnit float64
	Unit         string
}

// DefaultScale returns the scale of the reference mechanics
func DefaultScale() Scale {
	return Scale{StepsPerUnit: DefaultStepsPerUnit, Unit: "mm"}
}

// ToUnits converts a step count to units
func (s Scale) ToUnits(steps int64) float64 {
	return float64(steps) / s.StepsPerUnit
}

// ToSteps converts units to the nearest step count
func (s Scale) ToSteps(units float64) int64 {
	return int64(math.Round(units * s.StepsPerUnit))
}

// SpeedToUnits converts steps/s to units/s
func (s Scale) SpeedToUnits(stepsPerSec float64) float64 {
	return stepsPerSec / s.StepsPerUnit
}

// SpeedToSteps converts units/s to steps/s
func (s Scale) SpeedToSteps(unitsPerSec float64) float64 {
	return unitsPerSec * s.StepsPerUnit
}
