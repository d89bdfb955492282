package protocol

import "strings"

// LineAssembler collects a byte stream into request lines. Used by
// consoles that deliver input one byte at a time (USB CDC, UART).
type LineAssembler struct {
	buf      [LineMax]byte
	n        int
	overflow bool
}

// Push adds one byte. When b terminates a line, done is true and line
// holds the line without its terminator. A line longer than LineMax is
// discarded whole and reported as ErrLineTooLong once it ends.
// Empty lines (including the second half of CRLF) are skipped.
func (l *LineAssembler) Push(b byte) (line string, done bool, err error) {
	switch {
	case b == '\n' || b == '\r':
		if l.overflow {
			l.Reset()
			return "", true, ErrLineTooLong
		}
		if l.n == 0 {
			return "", false, nil
		}
		line = strings.TrimSpace(string(l.buf[:l.n]))
		l.Reset()
		return line, true, nil
	case b == 0x08 || b == 0x7F:
		// Backspace / delete from a terminal
		if l.n > 0 && !l.overflow {
			l.n--
		}
		return "", false, nil
	case b < 0x20 && b != '\t':
		return "", false, nil
	}

	if l.n == len(l.buf) {
		l.overflow = true
		return "", false, nil
	}
	l.buf[l.n] = b
	l.n++
	return "", false, nil
}

// Len returns the number of buffered bytes of the current line
func (l *LineAssembler) Len() int {
	return l.n
}

// Reset discards the partial line
func (l *LineAssembler) Reset() {
	l.n = 0
	l.overflow = false
}

// FifoBuffer is a bounded circular byte queue for console output. Writes
// that do not fit are truncated rather than blocking the caller.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer holding up to capacity-1 bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends as much of data as fits and returns the count written
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// WriteLine appends s followed by a newline, but only if the whole line
// fits. Partial lines would corrupt the console stream.
func (f *FifoBuffer) WriteLine(s string) bool {
	if len(s)+1 > f.Free() {
		return false
	}
	for i := 0; i < len(s); i++ {
		f.buf[f.write] = s[i]
		f.write = (f.write + 1) % f.size
	}
	f.buf[f.write] = '\n'
	f.write = (f.write + 1) % f.size
	return true
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			// Buffer empty
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
