package motion

import (
	"math"
	"time"
)

// Trapezoid describes a constant-acceleration move from rest to rest
type Trapezoid struct {
	Distance       float64 // total travel
	AccelDistance  float64
	CruiseDistance float64
	DecelDistance  float64
	PeakSpeed      float64 // cruise speed, or the apex of a triangle profile

	AccelTime  time.Duration
	CruiseTime time.Duration
	DecelTime  time.Duration
}

// Duration returns the total move time
func (t Trapezoid) Duration() time.Duration {
	return t.AccelTime + t.CruiseTime + t.DecelTime
}

// PlanTrapezoid plans a rest-to-rest move of |distance| with the given
// speed ceiling and acceleration. Units are arbitrary but must agree.
// When the ceiling cannot be reached the profile degenerates to a triangle.
func PlanTrapezoid(distance, maxSpeed, accel float64) Trapezoid {
	distance = math.Abs(distance)
	t := Trapezoid{Distance: distance}
	if distance == 0 || maxSpeed <= 0 || accel <= 0 {
		return t
	}

	accelDist := (maxSpeed * maxSpeed) / (2.0 * accel)
	if accelDist*2.0 >= distance {
		// Triangle profile - never reaches max velocity
		accelDist = distance / 2.0
		t.PeakSpeed = math.Sqrt(2.0 * accel * accelDist)
		t.AccelDistance = accelDist
		t.DecelDistance = accelDist
		t.AccelTime = seconds(t.PeakSpeed / accel)
		t.DecelTime = t.AccelTime
		return t
	}

	// Trapezoidal profile
	t.PeakSpeed = maxSpeed
	t.AccelDistance = accelDist
	t.DecelDistance = accelDist
	t.CruiseDistance = distance - 2.0*accelDist
	t.AccelTime = seconds(maxSpeed / accel)
	t.CruiseTime = seconds(t.CruiseDistance / maxSpeed)
	t.DecelTime = t.AccelTime
	return t
}

// JogDistance returns the travel of a jog that ramps up to maxSpeed,
// cruises for cruise, then ramps down to rest.
func JogDistance(maxSpeed, accel float64, cruise time.Duration) float64 {
	if accel <= 0 {
		return 0
	}
	return maxSpeed*maxSpeed/accel + maxSpeed*cruise.Seconds()
}

// StoppingDistance returns how many steps a generator moving at speed
// (steps/s) takes to come to rest at accel (steps/s²).
func StoppingDistance(speed, accel float64) int64 {
	speed = math.Abs(speed)
	if speed == 0 || accel <= 0 {
		return 0
	}
	// Tolerance absorbs rounding in the u² recurrence so an exact
	// integer step count does not round up by one.
	return int64(math.Ceil(speed*speed/(2*accel) - 1e-6))
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
