package standalone

import (
	"context"
	"errors"
	"io"
)

// Serve runs the session over a byte stream until r reaches EOF, r fails
// or ctx is cancelled. Output is flushed to w after every read.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.Start()
	if err := s.flush(w); err != nil {
		return err
	}

	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		for _, b := range buf[:n] {
			s.ProcessByte(b)
		}
		if err := s.flush(w); err != nil {
			return err
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

func (s *Session) flush(w io.Writer) error {
	if out := s.GetOutput(); out != nil {
		_, err := w.Write(out)
		return err
	}
	return nil
}
