// Package serial opens the link to a controller's console
package serial

import (
	"io"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - An in-process session (simulator)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration for the controller's console
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 50 * time.Millisecond,
	}
}

// Nop wraps an in-process ReadWriter as a Port
func Nop(rw io.ReadWriter) Port {
	return nopPort{rw}
}

type nopPort struct {
	io.ReadWriter
}

func (nopPort) Close() error { return nil }
func (nopPort) Flush() error { return nil }
