// Package sdfx builds solids with the github.com/deadsy/sdfx SDF-based CAD
// library and exposes them as surfaces, either traced directly through
// their distance field or tessellated into a triangle mesh.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/sightline/pkg/surface/mesh"
)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// Solid wraps an sdf.SDF3.
type Solid struct {
	s sdf.SDF3
}

// Wrap creates a Solid from any sdf.SDF3.
func Wrap(s sdf.SDF3) Solid {
	return Solid{s: s}
}

// SDF returns the underlying signed distance function.
func (s Solid) SDF() sdf.SDF3 {
	return s.s
}

// BoundingBox returns the axis-aligned bounding box.
func (s Solid) BoundingBox() (min, max v3.Vec) {
	bb := s.s.BoundingBox()
	return bb.Min, bb.Max
}

// Box creates a box with the given dimensions, centered on the origin.
func Box(x, y, z float64) (Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return Solid{}, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	return Wrap(s), nil
}

// Sphere creates a sphere centered on the origin.
func Sphere(radius float64) (Solid, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return Solid{}, fmt.Errorf("sdfx.Sphere3D: %w", err)
	}
	return Wrap(s), nil
}

// Cylinder creates a Z-aligned cylinder centered on the origin.
func Cylinder(height, radius float64) (Solid, error) {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return Solid{}, fmt.Errorf("sdfx.Cylinder3D: %w", err)
	}
	return Wrap(s), nil
}

// Union returns the union of the solids.
func Union(solids ...Solid) Solid {
	parts := make([]sdf.SDF3, len(solids))
	for i, s := range solids {
		parts[i] = s.s
	}
	return Wrap(sdf.Union3D(parts...))
}

// Difference returns the difference a - b.
func Difference(a, b Solid) Solid {
	return Wrap(sdf.Difference3D(a.s, b.s))
}

// Intersection returns the intersection of two solids.
func Intersection(a, b Solid) Solid {
	return Wrap(sdf.Intersect3D(a.s, b.s))
}

// Translate moves a solid by v.
func Translate(s Solid, v v3.Vec) Solid {
	return Wrap(sdf.Transform3D(s.s, sdf.Translate3d(v)))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func Rotate(s Solid, x, y, z float64) Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return Wrap(sdf.Transform3D(s.s, m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
// cells <= 0 selects DefaultMeshCells.
func ToMesh(s Solid, cells int) (*mesh.Mesh, error) {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(s.s, renderer)
	if len(triangles) == 0 {
		return nil, fmt.Errorf("tessellation produced no triangles at %d cells", cells)
	}

	tris := make([][3]v3.Vec, 0, len(triangles))
	for _, tri := range triangles {
		tris = append(tris, [3]v3.Vec{tri[0], tri[1], tri[2]})
	}
	return mesh.FromTriangles(tris), nil
}
