//go:build !tinygo

package ui

import (
	"image"

	"github.com/fogleman/gg"
)

// Render draws the dashboard into dc, which should match the layout size
func Render(dc *gg.Context, layout *Layout, v View) {
	dc.SetColor(ColorBackground)
	dc.Clear()

	r := layout.Readout
	x, y := float64(r.X), float64(r.Y)
	h := float64(r.H)

	dc.SetColor(ColorText)
	dc.DrawStringAnchored(v.Position, x+4, y+h*0.2, 0, 0.5)
	dc.DrawStringAnchored(v.Speed, x+4, y+h*0.5, 0, 0.5)
	dc.SetColor(ColorDim)
	dc.DrawStringAnchored(v.Steps, x+4, y+h*0.8, 0, 0.5)

	right := x + float64(r.W) - 4
	dc.SetColor(ColorText)
	dc.DrawStringAnchored(v.State, right-14, y+h*0.2, 1, 0.5)
	dc.DrawStringAnchored(v.Tier, right, y+h*0.5, 1, 0.5)
	dc.SetColor(ColorDim)
	dc.DrawStringAnchored(v.StopIn, right, y+h*0.8, 1, 0.5)

	// Running lamp
	if v.Running {
		dc.SetColor(ColorRunning)
	} else {
		dc.SetColor(ColorNeutral)
	}
	dc.DrawCircle(right-4, y+h*0.2, 5)
	dc.Fill()

	for _, w := range layout.Widgets {
		b := w.Bounds
		bx, by, bw, bh := float64(b.X), float64(b.Y), float64(b.W), float64(b.H)
		dc.SetColor(w.Color)
		dc.DrawRoundedRectangle(bx, by, bw, bh, 6)
		dc.Fill()
		if w.Control == v.Held {
			dc.SetColor(ColorText)
			dc.SetLineWidth(3)
			dc.DrawRoundedRectangle(bx+1.5, by+1.5, bw-3, bh-3, 6)
			dc.Stroke()
		}
		dc.SetColor(ColorText)
		dc.DrawStringAnchored(w.Control.String(), bx+bw/2, by+bh/2, 0.5, 0.5)
	}
}

// RenderImage draws the dashboard into a new image
func RenderImage(layout *Layout, v View) image.Image {
	dc := gg.NewContext(int(layout.Width), int(layout.Height))
	Render(dc, layout, v)
	return dc.Image()
}

// SavePNG draws the dashboard and writes it to path
func SavePNG(path string, layout *Layout, v View) error {
	dc := gg.NewContext(int(layout.Width), int(layout.Height))
	Render(dc, layout, v)
	return dc.SavePNG(path)
}
