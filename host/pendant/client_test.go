package pendant

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"stepjog/host/serial"
	"stepjog/motion"
	"stepjog/protocol"
	"stepjog/standalone"
	"stepjog/standalone/config"
)

func newSessionClient(t *testing.T) (*Client, *motion.Mailbox, *motion.SpeedSelector) {
	t.Helper()
	var (
		mailbox   motion.Mailbox
		telemetry motion.Telemetry
	)
	speeds := motion.NewSpeedSelector([]float64{3200, 8000, 16000, 32000}, 1)
	session := standalone.NewSession(&mailbox, speeds, &telemetry, motion.DefaultScale())
	session.Start()
	return NewClient(serial.Nop(session), 100*time.Millisecond, nil), &mailbox, speeds
}

func TestClientBanner(t *testing.T) {
	c, _, _ := newSessionClient(t)
	c.Drain(10 * time.Millisecond)
	notices := c.Notices()
	if len(notices) != 1 || !strings.HasPrefix(notices[0], "stepjog ") {
		t.Fatalf("notices = %q", notices)
	}
	if again := c.Notices(); len(again) != 0 {
		t.Errorf("notices not cleared: %q", again)
	}
}

func TestClientSend(t *testing.T) {
	c, mailbox, _ := newSessionClient(t)
	c.Drain(10 * time.Millisecond)

	for _, cmd := range []motion.Command{motion.JogForward, motion.JogReverse, motion.Stop, motion.SetZero, motion.EmergencyStop} {
		if err := c.Send(cmd); err != nil {
			t.Fatalf("Send(%v): %v", cmd, err)
		}
		if got := mailbox.Take(); got != cmd {
			t.Errorf("Send(%v) posted %v", cmd, got)
		}
	}
	if err := c.Send(motion.None); !errors.Is(err, protocol.ErrUnknownCommand) {
		t.Errorf("Send(None) = %v", err)
	}
}

func TestClientSpeed(t *testing.T) {
	c, _, speeds := newSessionClient(t)

	if err := c.SelectTier(3); err != nil {
		t.Fatal(err)
	}
	if got := speeds.Selected(); got != 3 {
		t.Errorf("tier = %d, want 3", got)
	}
	if err := c.StepTier(-1); err != nil {
		t.Fatal(err)
	}
	if got := speeds.Selected(); got != 2 {
		t.Errorf("tier = %d, want 2", got)
	}

	err := c.SelectTier(9)
	var devErr *protocol.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("SelectTier(9) = %v, want device error", err)
	}
	if !strings.Contains(devErr.Message, "out of range") {
		t.Errorf("message = %q", devErr.Message)
	}
}

func TestClientStatus(t *testing.T) {
	c, _, _ := newSessionClient(t)

	st, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Running || st.State != motion.Idle || st.Position != 0 || st.Tier != 1 {
		t.Errorf("status = %+v", st)
	}
	// The banner arrived ahead of the status line
	if n := c.Notices(); len(n) != 1 {
		t.Errorf("notices = %q", n)
	}
}

func TestClientHelp(t *testing.T) {
	c, _, _ := newSessionClient(t)
	c.Drain(10 * time.Millisecond)

	lines, err := c.Help()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != len(protocol.HelpText) {
		t.Errorf("help has %d lines, want %d", len(lines), len(protocol.HelpText))
	}
}

func TestClientUnknownRequest(t *testing.T) {
	c, _, _ := newSessionClient(t)
	c.Drain(10 * time.Millisecond)

	_, err := c.Do("warp 9")
	var devErr *protocol.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Do = %v, want device error", err)
	}
}

// silentPort accepts writes and never answers
type silentPort struct {
	eof bool
}

func (p *silentPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *silentPort) Read(b []byte) (int, error) {
	if p.eof {
		return 0, io.EOF
	}
	return 0, nil
}

func TestClientTimeout(t *testing.T) {
	for _, eof := range []bool{false, true} {
		c := NewClient(&silentPort{eof: eof}, 20*time.Millisecond, nil)
		start := time.Now()
		_, err := c.Do("status")
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("eof=%v: err = %v, want ErrTimeout", eof, err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("eof=%v: returned after %v", eof, elapsed)
		}
	}
}

// brokenPort fails every read
type brokenPort struct{ silentPort }

func (brokenPort) Read([]byte) (int, error) { return 0, errors.New("unplugged") }

func TestClientReadError(t *testing.T) {
	c := NewClient(&brokenPort{}, time.Second, nil)
	_, err := c.Do("status")
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestSimulatorJog(t *testing.T) {
	sim := StartSimulator(config.Default(), nil)
	defer func() {
		if err := sim.Close(); err != nil {
			t.Error(err)
		}
	}()
	c := NewClient(sim.Port(), time.Second, nil)
	c.Drain(10 * time.Millisecond)

	if err := c.Send(motion.JogForward); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	st, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !st.Running || st.State != motion.JoggingForward || st.Position <= 0 {
		t.Fatalf("while jogging: %+v", st)
	}

	if err := c.Send(motion.Stop); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err = c.Status()
		if err != nil {
			t.Fatal(err)
		}
		if st.State == motion.Idle && !st.Running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("did not stop: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st.Speed != 0 {
		t.Errorf("speed after stop = %v", st.Speed)
	}
}
