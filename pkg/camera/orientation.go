package camera

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidOrientation is returned (wrapped) when a rotation is not a
// proper orthonormal matrix.
var ErrInvalidOrientation = errors.New("invalid orientation")

const orthonormalTolerance = 1e-6

// Orientation is a rotation from the camera frame to the world frame. Its
// columns are the camera X, Y and Z axes expressed in world coordinates.
// The zero value is the identity.
type Orientation struct {
	m *mat.Dense
}

// Identity returns the orientation of a camera whose frame coincides with
// the world frame.
func Identity() Orientation {
	return Orientation{m: eye()}
}

func eye() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// FromMatrix builds an orientation from a row-major 3x3 matrix. The matrix
// must be orthonormal with determinant +1.
func FromMatrix(rows [9]float64) (Orientation, error) {
	for _, v := range rows {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Orientation{}, errors.Wrap(ErrInvalidOrientation, "matrix has non-finite entries")
		}
	}
	m := mat.NewDense(3, 3, rows[:])

	var rtr mat.Dense
	rtr.Mul(m.T(), m)
	if !mat.EqualApprox(&rtr, eye(), orthonormalTolerance) {
		return Orientation{}, errors.Wrap(ErrInvalidOrientation, "matrix is not orthonormal")
	}
	if det := mat.Det(m); math.Abs(det-1) > orthonormalTolerance {
		return Orientation{}, errors.Wrapf(ErrInvalidOrientation, "determinant is %.6f, want 1", det)
	}
	return Orientation{m: m}, nil
}

// FromEuler builds an orientation from rotations about the world X, Y and Z
// axes, in degrees, applied in that order (R = Rz * Ry * Rx).
func FromEuler(x, y, z float64) Orientation {
	rx := r3.NewRotation(x*math.Pi/180, r3.Vec{X: 1})
	ry := r3.NewRotation(y*math.Pi/180, r3.Vec{Y: 1})
	rz := r3.NewRotation(z*math.Pi/180, r3.Vec{Z: 1})

	basis := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	var cols [3]r3.Vec
	for i, e := range basis {
		cols[i] = rz.Rotate(ry.Rotate(rx.Rotate(e)))
	}
	return fromColumns(cols)
}

// LookAt builds the orientation of a camera whose boresight points along
// forward, with the image "up" direction as close to up as possible.
func LookAt(forward, up v3.Vec) (Orientation, error) {
	f := r3.Vec{X: forward.X, Y: forward.Y, Z: forward.Z}
	u := r3.Vec{X: up.X, Y: up.Y, Z: up.Z}
	if r3.Norm(f) == 0 {
		return Orientation{}, errors.Wrap(ErrInvalidOrientation, "forward direction is zero")
	}
	f = r3.Unit(f)

	// Image Y points down, so it is the negated up vector with its forward
	// component removed.
	down := r3.Scale(-1, r3.Sub(u, r3.Scale(r3.Dot(u, f), f)))
	if r3.Norm(down) < orthonormalTolerance {
		return Orientation{}, errors.Wrap(ErrInvalidOrientation, "up direction is parallel to forward")
	}
	down = r3.Unit(down)
	right := r3.Cross(down, f)
	return fromColumns([3]r3.Vec{right, down, f}), nil
}

func fromColumns(cols [3]r3.Vec) Orientation {
	m := mat.NewDense(3, 3, nil)
	for j, c := range cols {
		m.Set(0, j, c.X)
		m.Set(1, j, c.Y)
		m.Set(2, j, c.Z)
	}
	return Orientation{m: m}
}

// Apply rotates a camera-frame vector into the world frame.
func (o Orientation) Apply(v v3.Vec) v3.Vec {
	if o.m == nil {
		return v
	}
	var out mat.VecDense
	out.MulVec(o.m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return v3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
