package evaluate

import (
	"math"
	"strings"
)

// Flags mark cameras whose viewing geometry is poor.
type Flags uint8

const (
	// FlagOblique: a tilt deviates from square by more than the limit.
	FlagOblique Flags = 1 << iota
	// FlagDistant: the center distance exceeds the limit.
	FlagDistant
	// FlagIncomplete: at least one measure is unknown.
	FlagIncomplete
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagOblique, "oblique"},
	{FlagDistant, "distant"},
	{FlagIncomplete, "incomplete"},
}

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

func (fl Flags) String() string {
	var parts []string
	for _, n := range flagNames {
		if fl.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Thresholds configure quality-control flagging. Zero disables a check.
type Thresholds struct {
	MaxObliquityDeg float64
	MaxDistance     float64
}

// Result is the evaluation of one camera.
type Result struct {
	CameraIndex    int     `json:"camera_index"`
	Label          string  `json:"label,omitempty"`
	PhotoPath      string  `json:"photo_path,omitempty"`
	RotationX      Measure `json:"rotation_x"`
	RotationY      Measure `json:"rotation_y"`
	CenterDistance Measure `json:"center_distance"`
	TimedOut       int     `json:"timed_out,omitempty"` // probes abandoned on query timeout
	Flags          Flags   `json:"flags,omitempty"`
}

// Assess computes the quality-control flags for r.
func (r Result) Assess(th Thresholds) Flags {
	var fl Flags
	if !r.RotationX.Valid() || !r.RotationY.Valid() || !r.CenterDistance.Valid() {
		fl |= FlagIncomplete
	}
	if th.MaxObliquityDeg > 0 {
		for _, m := range []Measure{r.RotationX, r.RotationY} {
			if v, ok := m.Get(); ok && math.Abs(v-90) > th.MaxObliquityDeg {
				fl |= FlagOblique
			}
		}
	}
	if th.MaxDistance > 0 {
		if v, ok := r.CenterDistance.Get(); ok && v > th.MaxDistance {
			fl |= FlagDistant
		}
	}
	return fl
}
