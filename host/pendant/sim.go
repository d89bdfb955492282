package pendant

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"stepjog/core"
	"stepjog/host/serial"
	"stepjog/motion"
	"stepjog/standalone"
	"stepjog/standalone/config"
)

// Simulator runs a motion executor against a simulated backend in this
// process and exposes its console as a Port
type Simulator struct {
	Executor *motion.Executor
	Backend  *core.SimStepperBackend
	Session  *standalone.Session

	cancel context.CancelFunc
	done   chan error
}

// StartSimulator starts the executor on its own locked OS thread
func StartSimulator(cfg config.Config, log *slog.Logger) *Simulator {
	backend := core.NewSimStepperBackend()
	speeds := cfg.SpeedSelector()
	exec := motion.NewExecutor(backend, core.NewMonotonicClock(), speeds, cfg.ExecutorConfig())

	session := standalone.ForExecutor(exec, cfg.Scale())
	session.Start()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Simulator{
		Executor: exec,
		Backend:  backend,
		Session:  session,
		cancel:   cancel,
		done:     make(chan error, 1),
	}
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		s.done <- exec.Run(ctx)
	}()

	if log != nil {
		log.Info("simulator started",
			"steps_per_unit", cfg.Scale().StepsPerUnit,
			"tiers", len(cfg.Motion.SpeedTiers),
			"accel", cfg.ExecutorConfig().Acceleration)
	}
	return s
}

// Port returns the simulator console
func (s *Simulator) Port() serial.Port {
	return serial.Nop(s.Session)
}

// Close halts the executor and waits for it to stop
func (s *Simulator) Close() error {
	s.cancel()
	select {
	case err := <-s.done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(time.Second):
		return errors.New("simulator did not stop")
	}
}

