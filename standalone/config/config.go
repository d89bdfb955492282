// Package config holds the controller configuration: compiled-in
// defaults, validation and the conversions the motion core needs.
package config

import (
	"errors"
	"fmt"
	"time"

	"stepjog/motion"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete controller configuration
type Config struct {
	Mechanics MechanicsConfig `yaml:"mechanics"`
	Motion    MotionConfig    `yaml:"motion"`
	Pins      PinConfig       `yaml:"pins"`
	UI        UIConfig        `yaml:"ui"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MechanicsConfig describes the drive train
type MechanicsConfig struct {
	StepAngle  float64 `yaml:"step_angle"` // degrees per full step
	Microsteps int     `yaml:"microsteps"`
	GearRatio  float64 `yaml:"gear_ratio"` // motor turns per output turn
	Pitch      float64 `yaml:"pitch"`      // units per output turn
	Unit       string  `yaml:"unit"`
}

// MotionConfig holds speeds in user units
type MotionConfig struct {
	Acceleration float64       `yaml:"acceleration"` // units/s²
	SpeedTiers   []float64     `yaml:"speed_tiers"`  // units/s, ascending
	DefaultTier  int           `yaml:"default_tier"`
	DirSetup     time.Duration `yaml:"dir_setup"`
	PulseWidth   time.Duration `yaml:"pulse_width"`
	IdleYield    time.Duration `yaml:"idle_yield"`
}

// PinConfig assigns the step/dir/indicator outputs and the jog buttons
type PinConfig struct {
	Step            uint8 `yaml:"step"`
	Dir             uint8 `yaml:"dir"`
	Indicator       uint8 `yaml:"indicator"`
	InvertStep      bool  `yaml:"invert_step"`
	InvertDir       bool  `yaml:"invert_dir"`
	InvertIndicator bool  `yaml:"invert_indicator"`

	// Linux only: GPIO character device and button line offsets.
	// A negative offset disables the button.
	Chip          string `yaml:"chip"`
	ButtonForward int    `yaml:"button_forward"`
	ButtonReverse int    `yaml:"button_reverse"`
	ButtonStop    int    `yaml:"button_stop"`
	ButtonSpeed   int    `yaml:"button_speed"`
}

// UIConfig configures the non-real-time side
type UIConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // telemetry refresh
	Framebuffer  string        `yaml:"framebuffer"`   // Linux only; empty disables
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	Console      bool          `yaml:"console"` // accept requests on stdin
}

// LoggingConfig mirrors logging.Config so firmware builds need not import
// the logging package
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	OutputPath string `yaml:"output_path"`
	AddSource  bool   `yaml:"add_source"`
}

// Default returns the reference configuration: 1.8° motor, 16
// microsteps, 10:1 gearbox, 1 mm pitch, active-low step and direction.
func Default() Config {
	return Config{
		Mechanics: MechanicsConfig{
			StepAngle:  motion.DefaultStepAngle,
			Microsteps: motion.DefaultMicrosteps,
			GearRatio:  motion.DefaultGearRatio,
			Pitch:      motion.DefaultPitch,
			Unit:       "mm",
		},
		Motion: MotionConfig{
			Acceleration: 2.0,
			SpeedTiers:   []float64{0.1, 0.25, 0.5, 1.0},
			DefaultTier:  1,
			DirSetup:     motion.DefaultDirSetup,
			PulseWidth:   2 * time.Microsecond,
			IdleYield:    time.Millisecond,
		},
		Pins: PinConfig{
			Step:          2,
			Dir:           3,
			Indicator:     25,
			InvertStep:    true,
			InvertDir:     true,
			Chip:          "gpiochip0",
			ButtonForward: 5,
			ButtonReverse: 6,
			ButtonStop:    13,
			ButtonSpeed:   19,
		},
		UI: UIConfig{
			PollInterval: 100 * time.Millisecond,
			Width:        320,
			Height:       240,
			Console:      true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Validate checks the configuration for values the motion core cannot use
func (c *Config) Validate() error {
	m := c.Mechanics
	switch {
	case m.StepAngle <= 0 || m.StepAngle > 90:
		return invalid("mechanics.step_angle must be in (0, 90]")
	case m.Microsteps <= 0:
		return invalid("mechanics.microsteps must be positive")
	case m.GearRatio <= 0:
		return invalid("mechanics.gear_ratio must be positive")
	case m.Pitch <= 0:
		return invalid("mechanics.pitch must be positive")
	}

	mo := c.Motion
	if mo.Acceleration <= 0 {
		return invalid("motion.acceleration must be positive")
	}
	if len(mo.SpeedTiers) == 0 {
		return invalid("motion.speed_tiers must not be empty")
	}
	for i, v := range mo.SpeedTiers {
		if v <= 0 {
			return invalid(fmt.Sprintf("motion.speed_tiers[%d] must be positive", i))
		}
		if i > 0 && v <= mo.SpeedTiers[i-1] {
			return invalid("motion.speed_tiers must be ascending")
		}
	}
	if mo.DefaultTier < 0 || mo.DefaultTier >= len(mo.SpeedTiers) {
		return invalid(fmt.Sprintf("motion.default_tier %d out of range", mo.DefaultTier))
	}
	if mo.DirSetup < 0 || mo.PulseWidth < 0 || mo.IdleYield < 0 {
		return invalid("motion timings must not be negative")
	}

	if c.Pins.Step == c.Pins.Dir {
		return invalid("pins.step and pins.dir must differ")
	}
	if c.UI.PollInterval <= 0 {
		return invalid("ui.poll_interval must be positive")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

// MotionMechanics returns the drive train for unit conversion
func (c *Config) MotionMechanics() motion.Mechanics {
	return motion.Mechanics{
		StepAngle:  c.Mechanics.StepAngle,
		Microsteps: c.Mechanics.Microsteps,
		GearRatio:  c.Mechanics.GearRatio,
		Pitch:      c.Mechanics.Pitch,
		Unit:       c.Mechanics.Unit,
	}
}

// Scale returns the steps/unit conversion
func (c *Config) Scale() motion.Scale {
	return c.MotionMechanics().Scale()
}

// TierSpeeds returns the speed tiers in steps/s
func (c *Config) TierSpeeds() []float64 {
	scale := c.Scale()
	speeds := make([]float64, len(c.Motion.SpeedTiers))
	for i, v := range c.Motion.SpeedTiers {
		speeds[i] = scale.SpeedToSteps(v)
	}
	return speeds
}

// SpeedSelector creates the selector shared by the UI and the executor
func (c *Config) SpeedSelector() *motion.SpeedSelector {
	return motion.NewSpeedSelector(c.TierSpeeds(), c.Motion.DefaultTier)
}

// ExecutorConfig returns the executor tuning in steps
func (c *Config) ExecutorConfig() motion.Config {
	return motion.Config{
		Acceleration: c.Scale().SpeedToSteps(c.Motion.Acceleration),
		DirSetup:     c.Motion.DirSetup,
		IdleYield:    c.Motion.IdleYield,
	}
}
