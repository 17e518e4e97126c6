package sdfx

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/sightline/pkg/surface"
)

// Tracing defaults.
const (
	DefaultMaxSteps = 512
	DefaultEpsilon  = 1e-9
)

// TraceOptions bound the sphere tracer.
type TraceOptions struct {
	MaxSteps    int     // step cap; <= 0 selects DefaultMaxSteps
	Epsilon     float64 // hit tolerance; <= 0 selects DefaultEpsilon
	MaxDistance float64 // ray length cap; <= 0 means the bounding box exit
}

func (o TraceOptions) withDefaults() TraceOptions {
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	return o
}

// Traced answers ray queries against a solid by sphere tracing its
// distance field.
type Traced struct {
	solid Solid
	opts  TraceOptions
	min   v3.Vec
	max   v3.Vec
}

// Compile-time interface checks.
var (
	_ surface.Surface        = (*Traced)(nil)
	_ surface.ConcurrentSafe = (*Traced)(nil)
)

// NewTraced returns a surface backed by the solid's distance field.
func NewTraced(s Solid, opts TraceOptions) *Traced {
	opts = opts.withDefaults()
	min, max := s.BoundingBox()
	// Pad the box so rays grazing a face still enter it.
	pad := v3.Vec{X: opts.Epsilon, Y: opts.Epsilon, Z: opts.Epsilon}.MulScalar(4)
	return &Traced{solid: s, opts: opts, min: min.Sub(pad), max: max.Add(pad)}
}

// Intersect implements surface.Surface. A ray starting inside the solid is
// a miss.
func (tr *Traced) Intersect(origin, dir v3.Vec) (v3.Vec, bool) {
	length := dir.Length()
	if length == 0 {
		return v3.Vec{}, false
	}
	d := dir.DivScalar(length)

	tmin, tmax, ok := clipToBox(origin, d, tr.min, tr.max)
	if !ok {
		return v3.Vec{}, false
	}
	if tr.opts.MaxDistance > 0 && tr.opts.MaxDistance < tmax {
		tmax = tr.opts.MaxDistance
	}

	f := tr.solid.s
	t := tmin
	for i := 0; i < tr.opts.MaxSteps && t <= tmax; i++ {
		p := origin.Add(d.MulScalar(t))
		dist := f.Evaluate(p)
		if dist < tr.opts.Epsilon {
			if t == 0 && dist < -tr.opts.Epsilon {
				return v3.Vec{}, false
			}
			return p, true
		}
		t += dist
	}
	return v3.Vec{}, false
}

// ConcurrentSafe implements surface.ConcurrentSafe; distance evaluation
// does not mutate the solid.
func (tr *Traced) ConcurrentSafe() bool { return true }

// clipToBox returns the parameter interval where the ray (unit direction
// d) is inside the box, clamped to t >= 0.
func clipToBox(origin, d, min, max v3.Vec) (float64, float64, bool) {
	tmin, tmax := 0.0, math.Inf(1)
	o := [3]float64{origin.X, origin.Y, origin.Z}
	dd := [3]float64{d.X, d.Y, d.Z}
	lo := [3]float64{min.X, min.Y, min.Z}
	hi := [3]float64{max.X, max.Y, max.Z}
	for a := 0; a < 3; a++ {
		if dd[a] == 0 {
			if o[a] < lo[a] || o[a] > hi[a] {
				return 0, 0, false
			}
			continue
		}
		t0 := (lo[a] - o[a]) / dd[a]
		t1 := (hi[a] - o[a]) / dd[a]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}
