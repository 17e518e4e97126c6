// Package tilt estimates the local inclination of a surface from the
// distances to two surface points seen a known angle apart.
//
// The camera sits at the apex of a triangle whose adjacent sides d1 and d2
// reach the two surface points and whose included angle is teta. The law
// of cosines gives the chord between the points and the law of sines gives
// the base angle at the d1 vertex. Adding teta/2 measures that angle from
// the boresight, so a surface square to the boresight reports 90 degrees.
//
// The probe rays are assumed symmetric about the boresight. Distortion or
// an off-center pattern makes the result an approximation.
package tilt

import "math"

// Estimate returns the surface tilt in degrees.
//
// teta is the full angle between the two probe rays in radians; d1 and d2
// are the camera-to-surface distances along them. Callers must only invoke
// Estimate when both distances were measured. A degenerate triangle (zero
// chord) yields 0.
func Estimate(teta, d1, d2 float64) float64 {
	// d1² + d2² - 2·d1·d2·cos(teta), rearranged so that small angles do
	// not cancel.
	s := math.Sin(teta / 2)
	chord2 := (d1-d2)*(d1-d2) + 4*d1*d2*s*s
	if !(chord2 > 0) {
		return 0
	}
	chord := math.Sqrt(chord2)
	alpha := math.Asin(clampUnit(math.Sin(teta) * d1 / chord))
	return (alpha + teta/2) * 180 / math.Pi
}

// clampUnit limits v to [-1, 1] so rounding noise cannot push asin out of
// its domain.
func clampUnit(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
