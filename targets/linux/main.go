//go:build linux

// Command linux runs the jog controller on a Linux single-board computer.
// The motion loop owns a locked OS thread; the console, the buttons and
// the framebuffer dashboard run on other goroutines.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"stepjog/core"
	"stepjog/logging"
	"stepjog/motion"
	"stepjog/protocol"
	"stepjog/standalone"
	"stepjog/standalone/config"
	"stepjog/ui"
)

var (
	configPath = flag.String("config", "", "Controller configuration (YAML); defaults when empty")
	logLevel   = flag.String("log-level", "", "Override the configured log level")
	simulate   = flag.Bool("sim", false, "Use a simulated stepper instead of GPIO")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	logCfg := logging.Config(cfg.Logging)
	if *logLevel != "" {
		logCfg.Level = *logLevel
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, logger.Close()) }()
	log := logger.Named("controller")
	core.SetDebugWriter(logger.Named("motion").DebugWriter())
	core.SetDebugEnabled(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(&cfg, log.Logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeBackend()) }()

	speeds := cfg.SpeedSelector()
	execCfg := cfg.ExecutorConfig()
	exec := motion.NewExecutor(backend, core.NewMonotonicClock(), speeds, execCfg)

	motionDone := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		motionDone <- exec.Run(ctx)
	}()
	info := exec.BackendInfo()
	log.Info("motion loop started",
		"backend", info.Name,
		"max_step_rate", info.MaxStepRate,
		"min_pulse_ns", info.MinPulseNs,
		"steps_per_unit", cfg.Scale().StepsPerUnit,
		"accel", execCfg.Acceleration,
		"tier", speeds.Selected())

	scale := cfg.Scale()
	if cfg.UI.Console {
		session := standalone.ForExecutor(exec, scale)
		session.OnRequest(func(req protocol.Request, reqErr error) {
			if reqErr != nil {
				log.Warn("console request failed", "error", reqErr)
				return
			}
			log.Debug("console request", "request", req.String())
		})
		go func() {
			if err := session.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("console stopped", "error", err)
			}
		}()
	}

	uiErr := runUI(ctx, &cfg, exec, speeds, log.Logger)

	stop()
	motionErr := <-motionDone
	if errors.Is(motionErr, context.Canceled) {
		motionErr = nil
	}
	core.DumpTimingRing()

	st := exec.Telemetry().Load()
	log.Info("stopped", "position", st.Position, "units", scale.ToUnits(st.Position))
	return multierr.Combine(uiErr, motionErr)
}

// openBackend returns the GPIO stepper backend, or a simulated one
func openBackend(cfg *config.Config, log *slog.Logger) (core.StepperBackend, func() error, error) {
	pins := cfg.Pins
	if *simulate {
		sim := core.NewSimStepperBackend()
		return sim, func() error {
			log.Info("simulated backend", "pulses", sim.Pulses, "direction_changes", len(sim.DirChanges))
			return nil
		}, nil
	}

	driver, err := newPeriphGPIODriver()
	if err != nil {
		return nil, nil, err
	}
	backend := core.NewGPIOStepperBackend(driver).
		WithIndicator(core.GPIOPin(pins.Indicator), pins.InvertIndicator)
	backend.SetPulseWidth(cfg.Motion.PulseWidth)
	if err := backend.Init(pins.Step, pins.Dir, pins.InvertStep, pins.InvertDir); err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("failed to initialise stepper outputs: %w", err), driver.Close())
	}
	return backend, func() error {
		return multierr.Append(backend.Err(), driver.Close())
	}, nil
}

// runUI drives the buttons and the framebuffer dashboard until ctx is done
func runUI(ctx context.Context, cfg *config.Config, exec *motion.Executor, speeds *motion.SpeedSelector, log *slog.Logger) (err error) {
	pendant := ui.NewPendant(exec.Commands(), speeds)

	var (
		btns  *buttons
		ready <-chan struct{}
	)
	if !*simulate {
		if btns, err = openButtons(cfg.Pins); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, btns.Close()) }()
		ready = btns.Ready()
	}

	scr, err := openScreen(cfg, exec, speeds, pendant)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, scr.Close()) }()

	ticker := time.NewTicker(cfg.UI.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
			for _, evt := range btns.Take() {
				apply(pendant, evt)
				log.Debug("button", "control", evt.control.String(), "pressed", evt.pressed)
			}
		case <-ticker.C:
			if err := scr.Refresh(); err != nil {
				log.Warn("display update failed", "error", err)
			}
		}
	}
}
