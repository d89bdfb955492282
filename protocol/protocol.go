// Package protocol implements the line-oriented jog pendant protocol
// spoken over USB CDC, stdin and serial links.
package protocol

import "errors"

// Version represents the stepjog firmware version
const Version = "0.1.0"

// Protocol constants
const (
	LineMax = 128 // Maximum request line length in bytes

	// Response framing
	ResponseOK     = "ok"
	ErrorPrefix    = "error: "
	StatusKeyword  = "status"
	ChecksumMarker = '*'
)

var (
	ErrEmptyRequest    = errors.New("empty request")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrBadArgument     = errors.New("bad argument")
	ErrLineTooLong     = errors.New("line too long")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrMalformedStatus = errors.New("malformed status line")
)

// IsOK reports whether a response line acknowledges a request
func IsOK(line string) bool {
	return line == ResponseOK
}

// FormatError renders err as a response line
func FormatError(err error) string {
	return ErrorPrefix + err.Error()
}

// ParseError returns the error carried by a response line, or nil when the
// line is not an error response
func ParseError(line string) error {
	if len(line) < len(ErrorPrefix) || line[:len(ErrorPrefix)] != ErrorPrefix {
		return nil
	}
	return &DeviceError{Message: line[len(ErrorPrefix):]}
}

// DeviceError is an error reported by the controller
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return "device: " + e.Message
}
