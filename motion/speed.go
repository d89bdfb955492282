package motion

import "sync/atomic"

// SpeedSelector holds the preset max speed tiers and the selected one.
// The tier table is fixed at construction; only the index changes, so the
// UI may select while the executor reads without locking.
type SpeedSelector struct {
	tiers    []float64 // steps/s
	selected atomic.Int32
}

// NewSpeedSelector creates a selector over tiers (steps/s).
// initial is clamped into range. tiers must not be empty.
func NewSpeedSelector(tiers []float64, initial int) *SpeedSelector {
	if len(tiers) == 0 {
		panic("motion: speed selector needs at least one tier")
	}
	s := &SpeedSelector{tiers: append([]float64(nil), tiers...)}
	s.selected.Store(int32(s.clamp(initial)))
	return s
}

func (s *SpeedSelector) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(s.tiers) {
		return len(s.tiers) - 1
	}
	return i
}

// Len returns the number of tiers
func (s *SpeedSelector) Len() int {
	return len(s.tiers)
}

// Tier returns the speed of tier i in steps/s
func (s *SpeedSelector) Tier(i int) float64 {
	return s.tiers[s.clamp(i)]
}

// Selected returns the selected tier index
func (s *SpeedSelector) Selected() int {
	return int(s.selected.Load())
}

// Select picks tier i. Returns false and leaves the selection alone when i
// is out of range.
func (s *SpeedSelector) Select(i int) bool {
	if i < 0 || i >= len(s.tiers) {
		return false
	}
	s.selected.Store(int32(i))
	return true
}

// Next selects the next faster tier, saturating at the top
func (s *SpeedSelector) Next() int {
	i := s.clamp(s.Selected() + 1)
	s.selected.Store(int32(i))
	return i
}

// Prev selects the next slower tier, saturating at the bottom
func (s *SpeedSelector) Prev() int {
	i := s.clamp(s.Selected() - 1)
	s.selected.Store(int32(i))
	return i
}

// Cycle advances to the next tier, wrapping to the slowest after the fastest.
// Used by single-button pendants.
func (s *SpeedSelector) Cycle() int {
	i := (s.Selected() + 1) % len(s.tiers)
	s.selected.Store(int32(i))
	return i
}

// MaxSpeed returns the selected max speed in steps/s
func (s *SpeedSelector) MaxSpeed() float64 {
	return s.tiers[s.selected.Load()]
}
