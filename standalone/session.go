// Package standalone binds text consoles (USB CDC, stdin, serial) to the
// motion core. A Session only touches the mailbox, the speed selector and
// the telemetry, so it may run on any goroutine except the executor's.
package standalone

import (
	"errors"
	"fmt"
	"strconv"

	"stepjog/core"
	"stepjog/motion"
	"stepjog/protocol"
)

// OutputSize is the console output queue capacity in bytes
const OutputSize = 2048

// Session translates request lines into commands and answers them
type Session struct {
	commands  *motion.Mailbox
	speeds    *motion.SpeedSelector
	telemetry *motion.Telemetry
	scale     motion.Scale

	lines  protocol.LineAssembler
	output *protocol.FifoBuffer

	info    core.StepperBackendInfo
	diag    func() string
	hook    func(req protocol.Request, err error)
	started bool
}

// NewSession creates a session bound to an executor's shared state
func NewSession(commands *motion.Mailbox, speeds *motion.SpeedSelector, telemetry *motion.Telemetry, scale motion.Scale) *Session {
	return &Session{
		commands:  commands,
		speeds:    speeds,
		telemetry: telemetry,
		scale:     scale,
		output:    protocol.NewFifoBuffer(OutputSize),
	}
}

// ForExecutor creates a session bound to exec
func ForExecutor(exec *motion.Executor, scale motion.Scale) *Session {
	s := NewSession(exec.Commands(), exec.Speeds(), exec.Telemetry(), scale)
	s.SetBackendInfo(exec.BackendInfo())
	return s
}

// SetBackendInfo sets the description answered to info requests
func (s *Session) SetBackendInfo(info core.StepperBackendInfo) {
	s.info = info
}

// SetDiagnostics installs a callback whose result is appended to dump
// output as a "diag" line. It runs on the session's goroutine.
func (s *Session) SetDiagnostics(fn func() string) {
	s.diag = fn
}

// OnRequest installs a callback run after every handled request
func (s *Session) OnRequest(fn func(req protocol.Request, err error)) {
	s.hook = fn
}

// Start queues the greeting banner
func (s *Session) Start() {
	if s.started {
		return
	}
	s.started = true
	s.SendResponse("stepjog " + protocol.Version + " ready")
}

// ProcessByte feeds one byte of console input
func (s *Session) ProcessByte(b byte) error {
	line, done, err := s.lines.Push(b)
	if err != nil {
		s.SendResponse(protocol.FormatError(err))
		return err
	}
	if !done {
		return nil
	}
	return s.ProcessLine(line)
}

// ProcessLine handles one request line and queues the response.
// Blank lines and comments produce no response.
func (s *Session) ProcessLine(line string) error {
	req, err := protocol.ParseRequest(line)
	if errors.Is(err, protocol.ErrEmptyRequest) {
		return nil
	}
	if err == nil {
		err = s.Handle(req)
	}
	if err != nil {
		s.SendResponse(protocol.FormatError(err))
	}
	if s.hook != nil {
		s.hook(req, err)
	}
	return err
}

// Handle executes a parsed request
func (s *Session) Handle(req protocol.Request) error {
	switch req.Kind {
	case protocol.KindMotion:
		s.commands.Post(req.Command)
	case protocol.KindSpeed:
		switch {
		case req.Relative > 0:
			s.speeds.Next()
		case req.Relative < 0:
			s.speeds.Prev()
		default:
			if !s.speeds.Select(req.Tier) {
				return fmt.Errorf("%w: tier %d out of range 0-%d", protocol.ErrBadArgument, req.Tier, s.speeds.Len()-1)
			}
		}
	case protocol.KindStatus:
		s.SendResponse(protocol.FormatStatus(s.Status()))
		return nil
	case protocol.KindHelp:
		for _, line := range protocol.HelpText {
			s.SendResponse(line)
		}
	case protocol.KindDump:
		s.dumpEvents()
	case protocol.KindInfo:
		s.SendResponse(protocol.FormatBackendInfo(s.info))
	default:
		return protocol.ErrUnknownCommand
	}
	s.SendResponse(protocol.ResponseOK)
	return nil
}

// Status returns the current status from a consistent snapshot
func (s *Session) Status() protocol.Status {
	return protocol.NewStatus(s.telemetry.Load(), s.scale, s.speeds.Selected())
}

func (s *Session) dumpEvents() {
	for _, evt := range core.TimingEvents() {
		s.SendResponse("event " + core.EventName(evt.EventType) +
			" t=" + strconv.FormatUint(uint64(evt.Clock), 10) +
			" v1=" + strconv.FormatInt(evt.Value1, 10) +
			" v2=" + strconv.FormatInt(evt.Value2, 10))
	}
	if s.diag != nil {
		s.SendResponse("diag " + s.diag())
	}
}

// SendResponse queues a response line. Lines that do not fit are dropped.
func (s *Session) SendResponse(line string) {
	s.output.WriteLine(line)
}

// GetOutput returns any pending output and clears the buffer
func (s *Session) GetOutput() []byte {
	if s.output.IsEmpty() {
		return nil
	}
	out := make([]byte, s.output.Available())
	s.output.Read(out)
	return out
}

// Write feeds console input, making the session usable as an in-process
// device. It never fails; request errors are reported in the output.
func (s *Session) Write(p []byte) (int, error) {
	for _, b := range p {
		s.ProcessByte(b)
	}
	return len(p), nil
}

// Read drains queued output. It returns 0, nil when nothing is queued,
// like a serial port read timing out.
func (s *Session) Read(p []byte) (int, error) {
	return s.output.Read(p), nil
}
