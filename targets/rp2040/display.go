//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ili9341"
	"tinygo.org/x/drivers/xpt2046"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"stepjog/ui"
)

// Display and touch wiring (2.8" ILI9341 module with XPT2046 touch)
const (
	lcdSCK = machine.GPIO18
	lcdSDO = machine.GPIO19
	lcdSDI = machine.GPIO16
	lcdCS  = machine.GPIO17
	lcdDC  = machine.GPIO20
	lcdRST = machine.GPIO21

	touchCLK  = machine.GPIO10
	touchDIN  = machine.GPIO11
	touchCS   = machine.GPIO12
	touchDOUT = machine.GPIO8
	touchIRQ  = machine.GPIO9
)

const lineHeight = 18 // freesans 9pt

// screen draws the dashboard with tinyfont text. Buttons are drawn once and
// again only when their highlight changes; the readout is redrawn on every
// view change.
type screen struct {
	dev    *ili9341.Device
	layout *ui.Layout
	last   ui.View
	drawn  bool
}

func newScreen(layout *ui.Layout) (*screen, error) {
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 40000000,
		SCK:       lcdSCK,
		SDO:       lcdSDO,
		SDI:       lcdSDI,
	})
	if err != nil {
		return nil, err
	}

	dev := ili9341.NewSPI(machine.SPI0, lcdDC, lcdCS, lcdRST)
	dev.Configure(ili9341.Config{})
	if err := dev.SetRotation(drivers.Rotation90); err != nil {
		return nil, err
	}
	return &screen{dev: dev, layout: layout}, nil
}

func (s *screen) draw(v ui.View) {
	if !s.drawn {
		s.dev.FillScreen(ui.ColorBackground)
		for _, w := range s.layout.Widgets {
			s.drawWidget(w, w.Control == v.Held)
		}
		s.drawn = true
	} else if v.Held != s.last.Held {
		for _, w := range s.layout.Widgets {
			if w.Control == v.Held || w.Control == s.last.Held {
				s.drawWidget(w, w.Control == v.Held)
			}
		}
	}
	s.drawReadout(v)
	s.last = v
}

func (s *screen) drawWidget(w ui.Widget, held bool) {
	b := w.Bounds
	s.dev.FillRectangle(b.X, b.Y, b.W, b.H, w.Color)
	if held {
		s.dev.DrawRectangle(b.X, b.Y, b.W, b.H, ui.ColorText)
		s.dev.DrawRectangle(b.X+1, b.Y+1, b.W-2, b.H-2, ui.ColorText)
	}

	label := w.Control.String()
	_, width := tinyfont.LineWidth(&freesans.Bold9pt7b, label)
	x := b.X + (b.W-int16(width))/2
	y := b.Y + b.H/2 + 6
	tinyfont.WriteLine(s.dev, &freesans.Bold9pt7b, x, y, label, ui.ColorText)
}

func (s *screen) drawReadout(v ui.View) {
	r := s.layout.Readout
	s.dev.FillRectangle(r.X, r.Y, r.W, r.H, ui.ColorBackground)

	x := r.X + 4
	y := r.Y + lineHeight
	tinyfont.WriteLine(s.dev, &freesans.Regular9pt7b, x, y, v.Position, ui.ColorText)
	tinyfont.WriteLine(s.dev, &freesans.Regular9pt7b, x, y+lineHeight, v.Speed, ui.ColorText)
	tinyfont.WriteLine(s.dev, &freesans.Regular9pt7b, x, y+2*lineHeight, v.Steps, ui.ColorDim)

	right := r.X + r.W - 4
	s.writeRight(v.State, right-16, y, ui.ColorText)
	s.writeRight(v.Tier, right, y+lineHeight, ui.ColorText)
	s.writeRight(v.StopIn, right, y+2*lineHeight, ui.ColorDim)

	lamp := ui.ColorNeutral
	if v.Running {
		lamp = ui.ColorRunning
	}
	s.dev.FillRectangle(right-10, y-10, 10, 10, lamp)
}

func (s *screen) writeRight(text string, right, y int16, c color.RGBA) {
	if text == "" {
		return
	}
	_, width := tinyfont.LineWidth(&freesans.Regular9pt7b, text)
	tinyfont.WriteLine(s.dev, &freesans.Regular9pt7b, right-int16(width), y, text, c)
}

// touchPanel samples the resistive digitizer
type touchPanel struct {
	dev xpt2046.Device
	cal ui.Calibration
}

func newTouchPanel(cal ui.Calibration) *touchPanel {
	t := &touchPanel{
		dev: xpt2046.New(touchCLK, touchCS, touchDIN, touchDOUT, touchIRQ),
		cal: cal,
	}
	t.dev.Configure(&xpt2046.Config{Precision: 10})
	return t
}

// sample returns the finger position in screen pixels
func (t *touchPanel) sample() (x, y int16, down bool) {
	if !t.dev.Touched() {
		return 0, 0, false
	}
	p := t.dev.ReadTouchPoint()
	if p.X == 0 && p.Y == 0 {
		// Finger lifted during the read
		return 0, 0, false
	}
	x, y = t.cal.Map(p.X, p.Y)
	return x, y, true
}
