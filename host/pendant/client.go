// Package pendant is the host side of the jog console: it sends requests
// to a controller over a serial link (or to an in-process simulator) and
// decodes the answers.
package pendant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"stepjog/motion"
	"stepjog/protocol"
)

// ErrTimeout is returned when the controller does not answer in time
var ErrTimeout = errors.New("timed out waiting for response")

// Client talks to one controller. Not safe for concurrent use.
type Client struct {
	port    io.ReadWriter
	timeout time.Duration
	log     *slog.Logger

	pending []byte // received bytes not yet split into lines
	buf     [256]byte
	notices []string // unsolicited lines (banner, late output)
}

// NewClient creates a client on port. Reads on port may return 0 bytes
// (or io.EOF) when nothing arrived; the client keeps polling until timeout.
func NewClient(port io.ReadWriter, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{port: port, timeout: timeout, log: log}
}

// Do sends one request line and collects the response. It returns the
// informational lines that preceded the terminating ok/status line.
func (c *Client) Do(request string) ([]string, error) {
	c.log.Debug("send", "request", request)
	if _, err := c.port.Write([]byte(request + "\n")); err != nil {
		return nil, fmt.Errorf("failed to send %q: %w", request, err)
	}

	var info []string
	deadline := time.Now().Add(c.timeout)
	for {
		line, err := c.readLine(deadline)
		if err != nil {
			return info, err
		}
		c.log.Debug("recv", "line", line)
		switch {
		case protocol.IsOK(line):
			return info, nil
		case protocol.IsStatus(line):
			return append(info, line), nil
		}
		if devErr := protocol.ParseError(line); devErr != nil {
			return info, devErr
		}
		info = append(info, line)
	}
}

// Send posts a motion command
func (c *Client) Send(cmd motion.Command) error {
	req := protocol.FormatCommand(cmd)
	if req == "" {
		return fmt.Errorf("%w: %v", protocol.ErrUnknownCommand, cmd)
	}
	_, err := c.Do(req)
	return err
}

// SelectTier selects an absolute speed tier
func (c *Client) SelectTier(tier int) error {
	_, err := c.Do(protocol.Request{Kind: protocol.KindSpeed, Tier: tier}.String())
	return err
}

// StepTier moves the speed tier by +1 or -1
func (c *Client) StepTier(delta int) error {
	_, err := c.Do(protocol.Request{Kind: protocol.KindSpeed, Relative: delta}.String())
	return err
}

// Status requests and verifies one status line
func (c *Client) Status() (protocol.Status, error) {
	lines, err := c.Do("status")
	if err != nil {
		return protocol.Status{}, err
	}
	if len(lines) == 0 {
		return protocol.Status{}, protocol.ErrMalformedStatus
	}
	c.notices = append(c.notices, lines[:len(lines)-1]...)
	return protocol.ParseStatus(lines[len(lines)-1])
}

// Help returns the controller's command list
func (c *Client) Help() ([]string, error) {
	return c.Do("help")
}

// Events returns the controller's motion event log
func (c *Client) Events() ([]string, error) {
	return c.Do("dump")
}

// Notices returns and clears unsolicited lines seen so far
func (c *Client) Notices() []string {
	n := c.notices
	c.notices = nil
	return n
}

// Drain reads whatever the controller has already sent (for example
// its start-up banner) into the notices
func (c *Client) Drain(wait time.Duration) {
	deadline := time.Now().Add(wait)
	for {
		line, err := c.readLine(deadline)
		if err != nil {
			return
		}
		c.notices = append(c.notices, line)
	}
}

// StatusReport is a status line stamped with the host time it arrived
type StatusReport struct {
	protocol.Status
	At time.Time
}

// Watch polls the controller status every interval until ctx is done or a
// request fails. fn runs on the calling goroutine.
func (c *Client) Watch(ctx context.Context, interval time.Duration, fn func(st StatusReport)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := c.Status()
		if err != nil {
			return err
		}
		fn(StatusReport{Status: st, At: time.Now()})
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Client) readLine(deadline time.Time) (string, error) {
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(bytes.TrimRight(c.pending[:i], "\r"))
			c.pending = c.pending[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}
		if !time.Now().Before(deadline) {
			return "", ErrTimeout
		}

		n, err := c.port.Read(c.buf[:])
		c.pending = append(c.pending, c.buf[:n]...)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read response: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}
