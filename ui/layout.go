// Package ui is the non-real-time half of the controller: it turns
// touches and button edges into motion commands and turns telemetry into
// something to draw. Nothing in here may touch the stepper backend.
package ui

import "image/color"

// Control identifies an on-screen or physical pendant control
type Control uint8

const (
	ControlNone Control = iota
	ControlJogForward
	ControlJogReverse
	ControlStop
	ControlZero
	ControlSpeed
	ControlEStop
)

// String returns the control's label
func (c Control) String() string {
	switch c {
	case ControlJogForward:
		return "JOG +"
	case ControlJogReverse:
		return "JOG -"
	case ControlStop:
		return "STOP"
	case ControlZero:
		return "ZERO"
	case ControlSpeed:
		return "SPEED"
	case ControlEStop:
		return "E-STOP"
	default:
		return ""
	}
}

// Rect is a screen rectangle in pixels
type Rect struct {
	X, Y, W, H int16
}

// Contains reports whether (x, y) lies inside r
func (r Rect) Contains(x, y int16) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Widget is one touch button
type Widget struct {
	Control Control
	Bounds  Rect
	Color   color.RGBA
}

// Layout is the dashboard geometry
type Layout struct {
	Width, Height int16
	Readout       Rect // position and speed text
	Widgets       []Widget
}

// Palette shared by the renderers
var (
	ColorBackground = color.RGBA{0x10, 0x10, 0x18, 0xFF}
	ColorText       = color.RGBA{0xF0, 0xF0, 0xF0, 0xFF}
	ColorDim        = color.RGBA{0x80, 0x80, 0x90, 0xFF}
	ColorJog        = color.RGBA{0x20, 0x60, 0xC0, 0xFF}
	ColorStop       = color.RGBA{0xE0, 0x90, 0x10, 0xFF}
	ColorEStop      = color.RGBA{0xD0, 0x20, 0x20, 0xFF}
	ColorNeutral    = color.RGBA{0x40, 0x40, 0x50, 0xFF}
	ColorRunning    = color.RGBA{0x20, 0xC0, 0x40, 0xFF}
)

// DefaultLayout lays the controls out for a w×h landscape panel
// (320×240 on the reference board): readout on top, jog buttons in the
// middle row, stop/zero/speed and e-stop along the bottom.
func DefaultLayout(w, h int16) Layout {
	const pad = 6
	readoutH := h * 3 / 10
	rowH := (h - readoutH - 3*pad) / 2
	row1 := readoutH + pad
	row2 := row1 + rowH + pad

	half := (w - 3*pad) / 2
	quarter := (w - 5*pad) / 4

	return Layout{
		Width:   w,
		Height:  h,
		Readout: Rect{pad, pad, w - 2*pad, readoutH - pad},
		Widgets: []Widget{
			{ControlJogReverse, Rect{pad, row1, half, rowH}, ColorJog},
			{ControlJogForward, Rect{2*pad + half, row1, half, rowH}, ColorJog},
			{ControlStop, Rect{pad, row2, quarter, rowH}, ColorStop},
			{ControlZero, Rect{2*pad + quarter, row2, quarter, rowH}, ColorNeutral},
			{ControlSpeed, Rect{3*pad + 2*quarter, row2, quarter, rowH}, ColorNeutral},
			{ControlEStop, Rect{4*pad + 3*quarter, row2, quarter, rowH}, ColorEStop},
		},
	}
}

// HitTest returns the control under (x, y)
func (l *Layout) HitTest(x, y int16) Control {
	for _, w := range l.Widgets {
		if w.Bounds.Contains(x, y) {
			return w.Control
		}
	}
	return ControlNone
}

// Widget returns the widget for c
func (l *Layout) Widget(c Control) (Widget, bool) {
	for _, w := range l.Widgets {
		if w.Control == c {
			return w, true
		}
	}
	return Widget{}, false
}
