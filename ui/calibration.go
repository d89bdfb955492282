package ui

// Calibration maps raw resistive touch readings onto screen pixels. Raw
// readings are 16-bit scaled; the panel edges rarely reach 0 or 65535.
type Calibration struct {
	MinX, MaxX int // raw X at the left and right edges
	MinY, MaxY int // raw Y at the top and bottom edges
	SwapXY     bool
	Width      int16
	Height     int16
}

// DefaultCalibration fits the common 2.8" ILI9341/XPT2046 module in
// landscape orientation
func DefaultCalibration(w, h int16) Calibration {
	return Calibration{
		MinX:   3800,
		MaxX:   61000,
		MinY:   5000,
		MaxY:   60000,
		SwapXY: true,
		Width:  w,
		Height: h,
	}
}

// Map converts a raw reading to screen coordinates, clamped to the panel
func (c Calibration) Map(rawX, rawY int) (int16, int16) {
	if c.SwapXY {
		rawX, rawY = rawY, rawX
	}
	return scaleAxis(rawX, c.MinX, c.MaxX, c.Width), scaleAxis(rawY, c.MinY, c.MaxY, c.Height)
}

func scaleAxis(raw, lo, hi int, size int16) int16 {
	if size <= 0 {
		return 0
	}
	if hi == lo {
		return 0
	}
	v := (raw - lo) * int(size-1) / (hi - lo)
	switch {
	case v < 0:
		return 0
	case v >= int(size):
		return size - 1
	}
	return int16(v)
}
