// Package surface defines the ray-intersection interface the probe
// projector queries, plus wrappers that bound how it is queried.
// Implementations (plane, sdfx, mesh) provide the geometry behind this
// interface; the abstraction allows swapping reconstructions without
// changing the rest of the system.
package surface

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Surface is an opaque ray-intersection provider.
type Surface interface {
	// Intersect returns the first point where the ray starting at origin
	// and heading along dir meets the surface. The second return value is
	// false when the ray misses.
	Intersect(origin, dir v3.Vec) (v3.Vec, bool)
}

// ConcurrentSafe is implemented by surfaces that may be queried from
// several goroutines at once. Surfaces that do not implement it are
// wrapped with Locked before parallel evaluation.
type ConcurrentSafe interface {
	ConcurrentSafe() bool
}

// IsConcurrentSafe reports whether s declares itself safe for concurrent
// queries.
func IsConcurrentSafe(s Surface) bool {
	cs, ok := s.(ConcurrentSafe)
	return ok && cs.ConcurrentSafe()
}

// Plane is an analytic plane, optionally limited to a disc of radius
// Extent around Point. It is the minimal stand-in for a reconstructed
// surface.
type Plane struct {
	Point  v3.Vec
	Normal v3.Vec
	Extent float64 // 0 means unbounded
}

// Compile-time interface checks.
var (
	_ Surface        = Plane{}
	_ ConcurrentSafe = Plane{}
)

// planeEpsilon rejects rays running parallel to the plane.
const planeEpsilon = 1e-12

// Intersect implements Surface. Hits behind the origin are misses.
func (p Plane) Intersect(origin, dir v3.Vec) (v3.Vec, bool) {
	denom := p.Normal.Dot(dir)
	if math.Abs(denom) < planeEpsilon {
		return v3.Vec{}, false
	}
	t := p.Normal.Dot(p.Point.Sub(origin)) / denom
	if t < 0 {
		return v3.Vec{}, false
	}
	hit := origin.Add(dir.MulScalar(t))
	if p.Extent > 0 && hit.Sub(p.Point).Length() > p.Extent {
		return v3.Vec{}, false
	}
	return hit, true
}

// ConcurrentSafe implements ConcurrentSafe; a plane holds no mutable state.
func (Plane) ConcurrentSafe() bool { return true }

// Func adapts an ordinary function to the Surface interface.
type Func func(origin, dir v3.Vec) (v3.Vec, bool)

// Intersect implements Surface.
func (f Func) Intersect(origin, dir v3.Vec) (v3.Vec, bool) {
	return f(origin, dir)
}
