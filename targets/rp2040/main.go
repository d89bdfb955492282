//go:build rp2040

// Command rp2040 is the jog controller firmware. Core 1 runs the motion
// loop; core 0 runs the USB console, the touch panel and the display.
package main

import (
	"context"
	"errors"
	"machine"
	"runtime"
	"strconv"
	"time"

	"stepjog/core"
	"stepjog/motion"
	"stepjog/standalone"
	"stepjog/standalone/config"
	"stepjog/ui"
)

const touchInterval = 20 * time.Millisecond

var errInvalidPin = errors.New("invalid pin")

var (
	session *standalone.Session

	// Console health, reported by the dump request
	consoleErrors uint32 // recovered panics and USB read errors
	writeFailures uint32 // output chunks the host did not take
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()

	cfg := config.Default()
	backend, err := newBackend(&cfg)
	if err != nil {
		fatal()
	}

	speeds := cfg.SpeedSelector()
	execCfg := cfg.ExecutorConfig()
	exec := motion.NewExecutor(backend, hardwareClock{}, speeds, execCfg)

	// With the multicore scheduler this goroutine never yields while the
	// motor runs, so it keeps core 1 to itself.
	go func() {
		runtime.LockOSThread()
		exec.Run(context.Background())
	}()

	scale := cfg.Scale()
	session = standalone.ForExecutor(exec, scale)
	session.SetDiagnostics(func() string {
		return "console_errors=" + strconv.FormatUint(uint64(consoleErrors), 10) +
			" write_failures=" + strconv.FormatUint(uint64(writeFailures), 10)
	})
	session.Start()

	layout := ui.DefaultLayout(int16(cfg.UI.Width), int16(cfg.UI.Height))
	pendant := ui.NewPendant(exec.Commands(), speeds)
	tracker := ui.NewTouchTracker(&layout, pendant)
	dash := ui.NewDashboard(exec.Telemetry(), speeds, scale, execCfg.Acceleration, pendant)

	scr, err := newScreen(&layout)
	if err != nil {
		// Console-only operation
		session.SendResponse("display unavailable: " + err.Error())
	}
	touch := newTouchPanel(ui.DefaultCalibration(layout.Width, layout.Height))

	var lastTouch, lastDraw time.Time
	for {
		// Recover from panics so the console stays up
		func() {
			defer func() {
				if r := recover(); r != nil {
					consoleErrors++
				}
			}()

			readUSB()
			writeUSB()

			now := time.Now()
			if now.Sub(lastTouch) >= touchInterval {
				lastTouch = now
				tracker.Sample(touch.sample())
			}
			if scr != nil && now.Sub(lastDraw) >= cfg.UI.PollInterval {
				lastDraw = now
				if view, changed := dash.Refresh(); changed {
					scr.draw(view)
				}
			}
		}()

		time.Sleep(time.Millisecond)
	}
}

// newBackend prefers the PIO backend and falls back to SIO GPIO when the
// state machine is taken or the program does not fit
func newBackend(cfg *config.Config) (core.StepperBackend, error) {
	pins := cfg.Pins

	return core.SelectBackend(
		func() (core.StepperBackend, error) {
			pio := NewPIOStepperBackend(0, 0).WithIndicator(machine.Pin(pins.Indicator), pins.InvertIndicator)
			return pio, pio.Init(pins.Step, pins.Dir, pins.InvertStep, pins.InvertDir)
		},
		func() (core.StepperBackend, error) {
			gpio := core.NewGPIOStepperBackend(NewRPGPIODriver()).
				WithIndicator(core.GPIOPin(pins.Indicator), pins.InvertIndicator)
			gpio.SetPulseWidth(cfg.Motion.PulseWidth)
			return gpio, gpio.Init(pins.Step, pins.Dir, pins.InvertStep, pins.InvertDir)
		},
	)
}

// readUSB feeds every received byte to the console session
func readUSB() {
	for USBAvailable() > 0 {
		b, err := USBRead()
		if err != nil {
			consoleErrors++
			return
		}
		session.ProcessByte(b)
	}
}

// writeUSB sends pending console output. Output the host does not take is
// dropped.
func writeUSB() {
	out := session.GetOutput()
	written := 0
	for written < len(out) {
		n, err := USBWriteBytes(out[written:])
		if err != nil || n == 0 {
			writeFailures++
			return
		}
		written += n
	}
}

// fatal blinks the on-board LED forever
func fatal() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
