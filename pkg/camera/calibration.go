// Package camera models the sensors and poses of the cameras being
// evaluated: lens calibration (pixel <-> camera-frame ray), the camera's
// orientation in the world, and the camera record itself.
//
// The camera frame follows the photogrammetric convention: X to the right
// in the image, Y down, Z forward along the boresight.
package camera

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
)

// ErrInvalidCalibration is returned (wrapped) by Calibration.Validate.
var ErrInvalidCalibration = errors.New("invalid calibration")

const (
	undistortIterations = 20
	undistortTolerance  = 1e-12
)

// Pixel is a position in image space, in pixels, with the origin at the
// upper-left corner of the image.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Calibration holds the intrinsic parameters of a sensor.
//
// The principal point sits at (Width/2 + Cx, Height/2 + Cy). Distortion
// follows the Brown model with radial K1..K3 and tangential P1, P2 terms
// applied to normalized coordinates.
type Calibration struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	F      float64 `json:"f"` // focal length in pixels
	Cx     float64 `json:"cx,omitempty"`
	Cy     float64 `json:"cy,omitempty"`
	K1     float64 `json:"k1,omitempty"`
	K2     float64 `json:"k2,omitempty"`
	K3     float64 `json:"k3,omitempty"`
	P1     float64 `json:"p1,omitempty"`
	P2     float64 `json:"p2,omitempty"`
}

// Validate reports whether the calibration can be used for projection.
func (c *Calibration) Validate() error {
	if c == nil {
		return errors.Wrap(ErrInvalidCalibration, "calibration not provided")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Wrapf(ErrInvalidCalibration, "image size %dx%d must be positive", c.Width, c.Height)
	}
	if !(c.F > 0) || math.IsInf(c.F, 0) {
		return errors.Wrapf(ErrInvalidCalibration, "focal length %v must be positive and finite", c.F)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"cx", c.Cx}, {"cy", c.Cy},
		{"k1", c.K1}, {"k2", c.K2}, {"k3", c.K3},
		{"p1", c.P1}, {"p2", c.P2},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return errors.Wrapf(ErrInvalidCalibration, "%s is not finite", f.name)
		}
	}
	return nil
}

// Center returns the geometric center of the image.
func (c *Calibration) Center() Pixel {
	return Pixel{X: float64(c.Width) / 2, Y: float64(c.Height) / 2}
}

func (c *Calibration) distorted() bool {
	return c.K1 != 0 || c.K2 != 0 || c.K3 != 0 || c.P1 != 0 || c.P2 != 0
}

// distort applies the forward Brown model to normalized coordinates.
func (c *Calibration) distort(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	radial := 1 + r2*(c.K1+r2*(c.K2+r2*c.K3))
	xd := x*radial + c.P1*(r2+2*x*x) + 2*c.P2*x*y
	yd := y*radial + c.P2*(r2+2*y*y) + 2*c.P1*x*y
	return xd, yd
}

// undistort inverts distort by fixed-point iteration, starting from the
// distorted point.
func (c *Calibration) undistort(xd, yd float64) (float64, float64) {
	x, y := xd, yd
	for i := 0; i < undistortIterations; i++ {
		r2 := x*x + y*y
		radial := 1 + r2*(c.K1+r2*(c.K2+r2*c.K3))
		dx := c.P1*(r2+2*x*x) + 2*c.P2*x*y
		dy := c.P2*(r2+2*y*y) + 2*c.P1*x*y
		nx := (xd - dx) / radial
		ny := (yd - dy) / radial
		if math.Abs(nx-x) < undistortTolerance && math.Abs(ny-y) < undistortTolerance {
			return nx, ny
		}
		x, y = nx, ny
	}
	return x, y
}

// Unproject converts a pixel into a ray direction in the camera frame.
// The returned vector has Z == 1; it is not normalized.
func (c *Calibration) Unproject(px Pixel) v3.Vec {
	ctr := c.Center()
	xd := (px.X - ctr.X - c.Cx) / c.F
	yd := (px.Y - ctr.Y - c.Cy) / c.F
	x, y := xd, yd
	if c.distorted() {
		x, y = c.undistort(xd, yd)
	}
	return v3.Vec{X: x, Y: y, Z: 1}
}

// Project maps a camera-frame direction back to a pixel. The second return
// value is false when the direction does not point in front of the camera.
func (c *Calibration) Project(dir v3.Vec) (Pixel, bool) {
	if dir.Z <= 0 {
		return Pixel{}, false
	}
	x, y := dir.X/dir.Z, dir.Y/dir.Z
	if c.distorted() {
		x, y = c.distort(x, y)
	}
	ctr := c.Center()
	return Pixel{
		X: ctr.X + c.Cx + x*c.F,
		Y: ctr.Y + c.Cy + y*c.F,
	}, true
}
