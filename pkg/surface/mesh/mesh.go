// Package mesh implements surface.Surface over a triangle mesh such as a
// reconstructed model or a tessellated solid.
package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/sightline/pkg/surface"
)

// Compile-time interface checks.
var (
	_ surface.Surface        = (*Mesh)(nil)
	_ surface.ConcurrentSafe = (*Mesh)(nil)
)

// rayEpsilon is the Möller–Trumbore determinant cutoff and minimum hit
// distance.
const rayEpsilon = 1e-12

// Mesh is an indexed triangle mesh. Vertices has 3 floats per vertex
// (x, y, z); Indices has 3 entries per triangle. A Mesh must not be
// modified once it is being queried.
type Mesh struct {
	Vertices []float64 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name,omitempty"`

	bounded  bool
	min, max v3.Vec
}

// New builds a mesh from flat vertex and index arrays.
func New(vertices []float64, indices []uint32) *Mesh {
	m := &Mesh{Vertices: vertices, Indices: indices}
	m.computeBounds()
	return m
}

// FromTriangles builds an unindexed mesh from triangle corner triples.
func FromTriangles(tris [][3]v3.Vec) *Mesh {
	vertices := make([]float64, 0, len(tris)*9)
	indices := make([]uint32, 0, len(tris)*3)
	for i, tri := range tris {
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, v.X, v.Y, v.Z)
			indices = append(indices, uint32(i*3+j))
		}
	}
	return New(vertices, indices)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return m.TriangleCount() == 0
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (min, max v3.Vec) {
	if !m.bounded {
		m.computeBounds()
	}
	return m.min, m.max
}

func (m *Mesh) computeBounds() {
	m.bounded = true
	if m.VertexCount() == 0 {
		m.min, m.max = v3.Vec{}, v3.Vec{}
		return
	}
	m.min = m.vertex(0)
	m.max = m.min
	for i := 1; i < m.VertexCount(); i++ {
		v := m.vertex(i)
		m.min = m.min.Min(v)
		m.max = m.max.Max(v)
	}
}

func (m *Mesh) vertex(i int) v3.Vec {
	return v3.Vec{X: m.Vertices[i*3], Y: m.Vertices[i*3+1], Z: m.Vertices[i*3+2]}
}

// Triangle returns the corners of triangle i.
func (m *Mesh) Triangle(i int) [3]v3.Vec {
	return [3]v3.Vec{
		m.vertex(int(m.Indices[i*3])),
		m.vertex(int(m.Indices[i*3+1])),
		m.vertex(int(m.Indices[i*3+2])),
	}
}

// Intersect implements surface.Surface, returning the nearest hit in front
// of the origin.
func (m *Mesh) Intersect(origin, dir v3.Vec) (v3.Vec, bool) {
	if m.IsEmpty() {
		return v3.Vec{}, false
	}
	min, max := m.Bounds()
	if !rayHitsBox(origin, dir, min, max) {
		return v3.Vec{}, false
	}

	best := math.Inf(1)
	for i := 0; i < m.TriangleCount(); i++ {
		if t, ok := intersectTriangle(origin, dir, m.Triangle(i)); ok && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return v3.Vec{}, false
	}
	return origin.Add(dir.MulScalar(best)), true
}

// ConcurrentSafe implements surface.ConcurrentSafe. Meshes built with New
// or FromTriangles have their bounds precomputed, so queries only read.
func (m *Mesh) ConcurrentSafe() bool { return m.bounded }

// intersectTriangle is the Möller–Trumbore test. It returns the ray
// parameter of the hit; both faces count.
func intersectTriangle(origin, dir v3.Vec, tri [3]v3.Vec) (float64, bool) {
	e1 := tri[1].Sub(tri[0])
	e2 := tri[2].Sub(tri[0])
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(tri[0])
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < rayEpsilon {
		return 0, false
	}
	return t, true
}

// rayHitsBox is the slab test against an axis-aligned box, inclusive of
// the faces.
func rayHitsBox(origin, dir, min, max v3.Vec) bool {
	tmin, tmax := 0.0, math.Inf(1)
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{min.X, min.Y, min.Z}
	hi := [3]float64{max.X, max.Y, max.Z}
	for a := 0; a < 3; a++ {
		if d[a] == 0 {
			if o[a] < lo[a] || o[a] > hi[a] {
				return false
			}
			continue
		}
		t0 := (lo[a] - o[a]) / d[a]
		t1 := (hi[a] - o[a]) / d[a]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return false
		}
	}
	return true
}
