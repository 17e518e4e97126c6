// Package crs maps points from a reconstruction's internal frame into the
// world and then into a coordinate reference system.
//
// A reconstruction lives in an arbitrary internal frame. Its chunk
// Transform (a similarity: scale, rotation, translation) takes internal
// points to geocentric (ECEF) coordinates, and a Projection takes those to
// the reference system the results are reported in.
package crs

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidTransform is returned (wrapped) by NewTransform.
var ErrInvalidTransform = errors.New("invalid chunk transform")

// Transform is a similarity transform p' = Scale * R * p + Translation.
// The zero value is the identity.
type Transform struct {
	scale       float64
	rotation    *mat.Dense
	translation v3.Vec
}

// NewTransform builds a transform from a scale, a row-major 3x3 rotation
// and a translation. The rotation must be proper and orthonormal.
func NewTransform(scale float64, rotation [9]float64, translation v3.Vec) (Transform, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Transform{}, errors.Wrapf(ErrInvalidTransform, "scale %v must be positive and finite", scale)
	}
	r := mat.NewDense(3, 3, rotation[:])
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	if !mat.EqualApprox(&rtr, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-6) {
		return Transform{}, errors.Wrap(ErrInvalidTransform, "rotation is not orthonormal")
	}
	if math.Abs(mat.Det(r)-1) > 1e-6 {
		return Transform{}, errors.Wrap(ErrInvalidTransform, "rotation is a reflection")
	}
	return Transform{scale: scale, rotation: r, translation: translation}, nil
}

// Scale returns the transform's scale factor.
func (t Transform) Scale() float64 {
	if t.scale == 0 {
		return 1
	}
	return t.scale
}

// IsIdentity reports whether the transform leaves points unchanged.
func (t Transform) IsIdentity() bool {
	return t.Scale() == 1 && t.rotation == nil && t.translation == (v3.Vec{})
}

// Apply maps an internal point to the world frame.
func (t Transform) Apply(p v3.Vec) v3.Vec {
	if t.rotation != nil {
		var out mat.VecDense
		out.MulVec(t.rotation, mat.NewVecDense(3, []float64{p.X, p.Y, p.Z}))
		p = v3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
	}
	return p.MulScalar(t.Scale()).Add(t.translation)
}

// Projection expresses world (geocentric) points in a reference system.
type Projection interface {
	Name() string
	Project(p v3.Vec) v3.Vec
	// Metric reports whether Euclidean distances between projected points
	// are meaningful lengths.
	Metric() bool
}

// Local leaves points in the world frame.
type Local struct{}

func (Local) Name() string { return "local" }
func (Local) Project(p v3.Vec) v3.Vec { return p }
func (Local) Metric() bool { return true }

// Point maps an internal point through the transform and then the
// projection. A nil projection means Local.
func Point(t Transform, proj Projection, p v3.Vec) v3.Vec {
	w := t.Apply(p)
	if proj == nil {
		return w
	}
	return proj.Project(w)
}
