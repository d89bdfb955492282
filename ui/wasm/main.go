//go:build js && wasm

// Command wasm exposes the console protocol and a simulated controller to
// a browser pendant page. The page drives simulated time with advance(),
// so the motion loop never blocks the JavaScript event loop.
package main

import (
	"syscall/js"
	"time"

	"stepjog/core"
	"stepjog/motion"
	"stepjog/protocol"
	"stepjog/standalone"
	"stepjog/standalone/config"
	"stepjog/ui"
)

// simTick is the simulated motion loop period
const simTick = 2 * time.Microsecond

func main() {
	js.Global().Set("stepjogWasm", js.ValueOf(map[string]interface{}{
		"crc16":           js.FuncOf(crc16Wrapper),
		"parseRequest":    js.FuncOf(parseRequestWrapper),
		"parseStatus":     js.FuncOf(parseStatusWrapper),
		"createSimulator": js.FuncOf(createSimulatorWrapper),
		"version":         protocol.Version,
	}))

	// Keep the program running
	select {}
}

// crc16Wrapper calculates the status line checksum
// Args: text (string)
// Returns: number (uint16)
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.Checksum(args[0].String())))
}

// parseRequestWrapper parses one console request
// Args: line (string)
// Returns: {kind, command, tier, relative, canonical, error}
func parseRequestWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing line argument")
	}
	req, err := protocol.ParseRequest(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return js.ValueOf(map[string]interface{}{
		"kind":      int(req.Kind),
		"command":   req.Command.String(),
		"tier":      req.Tier,
		"relative":  req.Relative,
		"canonical": req.String(),
	})
}

// parseStatusWrapper verifies and decodes a status line
// Args: line (string)
// Returns: {position, units, running, state, speed, tier, error}
func parseStatusWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing line argument")
	}
	st, err := protocol.ParseStatus(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return statusResult(st)
}

// simulator is an executor on a manual clock plus its console session
type simulator struct {
	exec    *motion.Executor
	clock   *core.ManualClock
	session *standalone.Session
	dash    *ui.Dashboard
}

// createSimulatorWrapper builds a controller with the default configuration
// Returns: {send(line), advance(ms), view()}
func createSimulatorWrapper(this js.Value, args []js.Value) interface{} {
	cfg := config.Default()
	speeds := cfg.SpeedSelector()
	execCfg := cfg.ExecutorConfig()
	s := &simulator{clock: core.NewManualClock()}
	s.exec = motion.NewExecutor(core.NewSimStepperBackend(), s.clock, speeds, execCfg)
	s.session = standalone.ForExecutor(s.exec, cfg.Scale())
	s.dash = ui.NewDashboard(s.exec.Telemetry(), speeds, cfg.Scale(), execCfg.Acceleration, nil)
	s.session.Start()

	return js.ValueOf(map[string]interface{}{
		"send":    js.FuncOf(s.send),
		"advance": js.FuncOf(s.advance),
		"view":    js.FuncOf(s.view),
	})
}

// send feeds a request line and returns the console output
func (s *simulator) send(this js.Value, args []js.Value) interface{} {
	if len(args) > 0 {
		s.session.ProcessLine(args[0].String())
	}
	return js.ValueOf(string(s.session.GetOutput()))
}

// advance runs the motion loop for the given milliseconds of simulated time
// and returns the resulting status
func (s *simulator) advance(this js.Value, args []js.Value) interface{} {
	ms := 0.0
	if len(args) > 0 {
		ms = args[0].Float()
	}
	end := s.clock.Now() + time.Duration(ms*float64(time.Millisecond))
	for s.clock.Now() < end {
		idle := s.exec.Tick(s.clock.Now())
		if idle && s.exec.Commands().Pending() == motion.None {
			// Nothing moves until the next request
			s.clock.Set(end)
			s.exec.Tick(end)
			break
		}
		s.clock.Advance(simTick)
	}
	return statusResult(s.session.Status())
}

// view returns the dashboard text
func (s *simulator) view(this js.Value, args []js.Value) interface{} {
	v, _ := s.dash.Refresh()
	return js.ValueOf(map[string]interface{}{
		"position": v.Position,
		"steps":    v.Steps,
		"speed":    v.Speed,
		"state":    v.State,
		"tier":     v.Tier,
		"stopIn":   v.StopIn,
		"running":  v.Running,
	})
}

func statusResult(st protocol.Status) js.Value {
	return js.ValueOf(map[string]interface{}{
		"position": int(st.Position),
		"units":    st.Units,
		"running":  st.Running,
		"state":    st.State.String(),
		"speed":    st.Speed,
		"tier":     st.Tier,
		"line":     protocol.FormatStatus(st),
	})
}

func errorResult(msg string) js.Value {
	return js.ValueOf(map[string]interface{}{"error": msg})
}
