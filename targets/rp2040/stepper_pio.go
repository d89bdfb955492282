//go:build rp2040

package main

// PIO stepper backend using the tinygo-org/pio package. The state machine
// owns the step and direction pins; the motion loop only pushes one FIFO
// word per pulse, so pulse width does not depend on core 1 timing.

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"stepjog/core"
)

// Command word format (shifted out LSB first):
//
//	Bit 0: direction level (already inverted for the wiring)
//	Bit 1: 1 = emit one step pulse, 0 = direction update only
//
// Program flow:
//  1. Pull 32-bit command from FIFO
//  2. Drive the direction pin
//  3. Skip the pulse when the step flag is clear
//  4. Drive step active for two cycles, then idle
func buildStepperProgram(active, idle uint8) []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestPins, 1).Encode(), // 1: out pins, 1 (direction)
		asm.Out(rp2pio.OutDestX, 1).Encode(),    // 2: out x, 1 (step flag)
		asm.Jmp(0, rp2pio.JmpXZero).Encode(),    // 3: jmp !x, 0
		asm.Set(rp2pio.SetDestPins, active).Delay(1).Encode(), // 4: set pins, active [1]
		asm.Set(rp2pio.SetDestPins, idle).Encode(),            // 5: set pins, idle
		// .wrap
	}
}

const (
	stepperPIOOrigin = 0   // Load at offset 0 for correct jump addresses
	stepperClkDiv    = 125 // 125 MHz / 125 = 1 µs per PIO cycle

	wordDirection = 1 << 0
	wordStep      = 1 << 1
)

var errStateMachineBusy = errors.New("pio: state machine already claimed")

// PIOStepperBackend implements core.StepperBackend on one PIO state machine
type PIOStepperBackend struct {
	pio       *rp2pio.PIO
	sm        rp2pio.StateMachine
	stepPin   machine.Pin
	dirPin    machine.Pin
	invertDir bool
	dirWord   uint32
	offset    uint8
	pioNum    uint8
	smNum     uint8

	indicator       machine.Pin
	invertIndicator bool
	hasIndicator    bool
}

// NewPIOStepperBackend creates a new PIO-based stepper backend
// pioNum: 0 for PIO0, 1 for PIO1
// smNum: 0-3 for state machine number
func NewPIOStepperBackend(pioNum, smNum uint8) *PIOStepperBackend {
	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}

	return &PIOStepperBackend{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pioNum: pioNum,
		smNum:  smNum,
	}
}

// WithIndicator adds the running indicator output
func (b *PIOStepperBackend) WithIndicator(pin machine.Pin, invert bool) *PIOStepperBackend {
	b.indicator = pin
	b.invertIndicator = invert
	b.hasIndicator = true
	return b
}

// Init loads the program and starts the state machine with both outputs
// at their idle level
func (b *PIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)
	b.invertDir = invertDir

	// Claim the state machine before touching it
	if !b.sm.TryClaim() {
		return errStateMachineBusy
	}

	active, idle := uint8(1), uint8(0)
	if invertStep {
		active, idle = 0, 1
	}
	program := buildStepperProgram(active, idle)
	offset, err := b.pio.AddProgram(program, stepperPIOOrigin)
	if err != nil {
		b.sm.Unclaim()
		return err
	}
	b.offset = offset

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	// Shift right, explicit PULL, 32-bit threshold
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(stepperClkDiv, 0)

	// Init first; pin directions only stick afterwards
	b.sm.Init(offset, cfg)
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, idle == 1)
	b.sm.SetPinsConsecutive(b.dirPin, 1, invertDir)
	b.dirWord = b.directionWord(false)

	b.sm.SetEnabled(true)

	if b.hasIndicator {
		b.indicator.Configure(machine.PinConfig{Mode: machine.PinOutput})
		b.indicator.Set(b.invertIndicator)
	}
	return nil
}

// Step queues one pulse
func (b *PIOStepperBackend) Step() {
	b.put(b.dirWord | wordStep)
}

// SetDirection drives the direction pin immediately, ahead of the next pulse
func (b *PIOStepperBackend) SetDirection(dir bool) {
	b.dirWord = b.directionWord(dir)
	b.put(b.dirWord)
}

// Stop drops queued pulses and leaves step idle
func (b *PIOStepperBackend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.Exec(rp2pio.AssemblerV0{}.Jmp(b.offset, rp2pio.JmpAlways).Encode())
	b.sm.SetEnabled(true)
}

// SetIndicator drives the running indicator output
func (b *PIOStepperBackend) SetIndicator(on bool) {
	if b.hasIndicator {
		b.indicator.Set(on != b.invertIndicator)
	}
}

// GetName returns the backend name
func (b *PIOStepperBackend) GetName() string {
	return "PIO"
}

// GetInfo returns backend performance information
func (b *PIOStepperBackend) GetInfo() core.StepperBackendInfo {
	return core.StepperBackendInfo{
		Name:          b.GetName(),
		MaxStepRate:   200000, // 5 PIO cycles per pulse at 1 MHz
		MinPulseNs:    2000,   // two cycles active
		TypicalJitter: 1000,   // one PIO cycle
		CPUOverhead:   1,      // one FIFO write per pulse
	}
}

func (b *PIOStepperBackend) directionWord(reverse bool) uint32 {
	if reverse != b.invertDir {
		return wordDirection
	}
	return 0
}

func (b *PIOStepperBackend) put(word uint32) {
	// Busy wait; the FIFO drains in a few µs
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(word)
}

var (
	_ core.StepperBackend = (*PIOStepperBackend)(nil)
	_ core.Indicator      = (*PIOStepperBackend)(nil)
	_ core.InfoProvider   = (*PIOStepperBackend)(nil)
)
