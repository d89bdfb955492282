//go:build !tinygo

package ui

import (
	"fmt"
	"image"
	"io"
	"os"
)

// AppendRGB565 converts img to little-endian RGB565, the pixel format of
// small SPI panels behind fbtft
func AppendRGB565(dst []byte, img image.Image) []byte {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied
			px := uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(bl>>11)
			dst = append(dst, byte(px), byte(px>>8))
		}
	}
	return dst
}

// Framebuffer writes frames to a Linux framebuffer device
type Framebuffer struct {
	out    io.WriterAt
	closer io.Closer
	width  int
	height int
	buf    []byte
}

// OpenFramebuffer opens a framebuffer device such as /dev/fb1
func OpenFramebuffer(path string, width, height int) (*Framebuffer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open framebuffer: %w", err)
	}
	fb := NewFramebuffer(f, width, height)
	fb.closer = f
	return fb, nil
}

// NewFramebuffer writes frames of the given size to out
func NewFramebuffer(out io.WriterAt, width, height int) *Framebuffer {
	return &Framebuffer{
		out:    out,
		width:  width,
		height: height,
		buf:    make([]byte, 0, width*height*2),
	}
}

// Show writes img, which must match the framebuffer size
func (fb *Framebuffer) Show(img image.Image) error {
	if b := img.Bounds(); b.Dx() != fb.width || b.Dy() != fb.height {
		return fmt.Errorf("frame is %dx%d, framebuffer is %dx%d", b.Dx(), b.Dy(), fb.width, fb.height)
	}
	fb.buf = AppendRGB565(fb.buf[:0], img)
	_, err := fb.out.WriteAt(fb.buf, 0)
	return err
}

// Clear blanks the panel
func (fb *Framebuffer) Clear() error {
	fb.buf = fb.buf[:fb.width*fb.height*2]
	for i := range fb.buf {
		fb.buf[i] = 0
	}
	_, err := fb.out.WriteAt(fb.buf, 0)
	return err
}

// Close closes the device
func (fb *Framebuffer) Close() error {
	if fb.closer == nil {
		return nil
	}
	return fb.closer.Close()
}
