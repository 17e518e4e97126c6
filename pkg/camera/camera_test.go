package camera

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalibration() Calibration {
	return Calibration{Width: 4000, Height: 3000, F: 3600}
}

func TestCalibrationValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cal     *Calibration
		wantErr bool
	}{
		{"valid", &Calibration{Width: 4000, Height: 3000, F: 3600}, false},
		{"nil", nil, true},
		{"zero width", &Calibration{Width: 0, Height: 3000, F: 3600}, true},
		{"negative height", &Calibration{Width: 4000, Height: -1, F: 3600}, true},
		{"zero focal", &Calibration{Width: 4000, Height: 3000, F: 0}, true},
		{"negative focal", &Calibration{Width: 4000, Height: 3000, F: -10}, true},
		{"nan focal", &Calibration{Width: 4000, Height: 3000, F: math.NaN()}, true},
		{"inf distortion", &Calibration{Width: 4000, Height: 3000, F: 3600, K1: math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cal.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCalibration), "error should wrap ErrInvalidCalibration: %v", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCalibrationValidateReportsFirstBadField(t *testing.T) {
	t.Parallel()

	cal := &Calibration{Width: 4000, Height: 3000, F: 3600,
		Cx: math.NaN(), K2: math.Inf(-1), P2: math.Inf(1)}
	for i := 0; i < 20; i++ {
		err := cal.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cx is not finite")
	}
}

func TestUnprojectCenterIsBoresight(t *testing.T) {
	t.Parallel()
	cal := testCalibration()

	dir := cal.Unproject(cal.Center())
	assert.Equal(t, v3.Vec{X: 0, Y: 0, Z: 1}, dir)
}

func TestUnprojectPinholeOffset(t *testing.T) {
	t.Parallel()
	cal := testCalibration()

	dir := cal.Unproject(Pixel{X: 2035, Y: 1500})
	assert.InDelta(t, 35.0/3600, dir.X, 1e-15)
	assert.InDelta(t, 0, dir.Y, 1e-15)
	assert.Equal(t, 1.0, dir.Z)

	dir = cal.Unproject(Pixel{X: 2000, Y: 1465})
	assert.InDelta(t, -35.0/3600, dir.Y, 1e-15)
}

func TestUnprojectPrincipalPointOffset(t *testing.T) {
	t.Parallel()
	cal := testCalibration()
	cal.Cx, cal.Cy = 12, -8

	dir := cal.Unproject(Pixel{X: 2012, Y: 1492})
	assert.InDelta(t, 0, dir.X, 1e-15)
	assert.InDelta(t, 0, dir.Y, 1e-15)
}

func TestProjectRoundTripWithDistortion(t *testing.T) {
	t.Parallel()
	cal := testCalibration()
	cal.K1, cal.K2, cal.K3 = -0.08, 0.02, -0.001
	cal.P1, cal.P2 = 0.0005, -0.0003

	for _, px := range []Pixel{
		{X: 2000, Y: 1500},
		{X: 2035, Y: 1500},
		{X: 100, Y: 200},
		{X: 3900, Y: 2900},
	} {
		dir := cal.Unproject(px)
		back, ok := cal.Project(dir)
		require.True(t, ok)
		assert.InDelta(t, px.X, back.X, 1e-6, "x for %+v", px)
		assert.InDelta(t, px.Y, back.Y, 1e-6, "y for %+v", px)
	}
}

func TestProjectBehindCamera(t *testing.T) {
	t.Parallel()
	cal := testCalibration()

	_, ok := cal.Project(v3.Vec{X: 0, Y: 0, Z: -1})
	assert.False(t, ok)
}

func TestOrientationZeroValueIsIdentity(t *testing.T) {
	t.Parallel()
	var o Orientation
	v := v3.Vec{X: 1, Y: 2, Z: 3}
	assert.Equal(t, v, o.Apply(v))
	assert.Equal(t, rows(Identity()), rows(o))
}

func TestFromMatrixRejectsImproperRotations(t *testing.T) {
	t.Parallel()

	_, err := FromMatrix([9]float64{2, 0, 0, 0, 1, 0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidOrientation)

	// Reflection: orthonormal but det = -1.
	_, err = FromMatrix([9]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidOrientation)

	_, err = FromMatrix([9]float64{math.NaN(), 0, 0, 0, 1, 0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidOrientation)

	o, err := FromMatrix([9]float64{1, 0, 0, 0, -1, 0, 0, 0, -1})
	require.NoError(t, err)
	assertVecNear(t, v3.Vec{X: 0, Y: 0, Z: -1}, o.Apply(v3.Vec{Z: 1}))
}

func TestFromEulerLooksDown(t *testing.T) {
	t.Parallel()

	// 180 degrees about X turns the boresight from +Z to -Z.
	o := FromEuler(180, 0, 0)
	assertVecNear(t, v3.Vec{X: 0, Y: 0, Z: -1}, o.Apply(v3.Vec{Z: 1}))
	assertVecNear(t, v3.Vec{X: 1, Y: 0, Z: 0}, o.Apply(v3.Vec{X: 1}))
	assertVecNear(t, v3.Vec{X: 0, Y: -1, Z: 0}, o.Apply(v3.Vec{Y: 1}))

	_, err := FromMatrix(rows(o))
	assert.NoError(t, err, "Euler orientation should be a proper rotation")
}

func TestFromEulerComposesZAfterX(t *testing.T) {
	t.Parallel()

	o := FromEuler(90, 0, 90)
	// Rx(90) maps +Y to +Z, Rz(90) leaves +Z alone.
	assertVecNear(t, v3.Vec{Z: 1}, o.Apply(v3.Vec{Y: 1}))
	// Rx(90) leaves +X alone, Rz(90) maps +X to +Y.
	assertVecNear(t, v3.Vec{Y: 1}, o.Apply(v3.Vec{X: 1}))
}

func TestLookAtMatchesEuler(t *testing.T) {
	t.Parallel()

	o, err := LookAt(v3.Vec{Z: -1}, v3.Vec{Y: 1})
	require.NoError(t, err)
	want := rows(FromEuler(180, 0, 0))
	got := rows(o)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "element %d", i)
	}
}

func TestLookAtRejectsDegenerateInput(t *testing.T) {
	t.Parallel()

	_, err := LookAt(v3.Vec{}, v3.Vec{Y: 1})
	assert.ErrorIs(t, err, ErrInvalidOrientation)

	_, err = LookAt(v3.Vec{Z: 1}, v3.Vec{Z: 2})
	assert.ErrorIs(t, err, ErrInvalidOrientation)
}

func TestCameraRay(t *testing.T) {
	t.Parallel()

	cam := &Camera{
		Index:       3,
		Label:       "IMG_0003",
		Position:    v3.Vec{X: 1, Y: 2, Z: 10},
		Orientation: FromEuler(180, 0, 0),
		Sensor:      &Sensor{Label: "main", Calibration: testCalibration()},
	}
	origin, dir, err := cam.Ray(cam.Calibration().Center())
	require.NoError(t, err)
	assert.Equal(t, cam.Position, origin)
	assertVecNear(t, v3.Vec{Z: -1}, dir)

	cam.Sensor = nil
	_, _, err = cam.Ray(Pixel{})
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestCameraName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "IMG_1", (&Camera{Index: 1, Label: "IMG_1"}).Name())
	assert.Equal(t, "camera-7", (&Camera{Index: 7}).Name())
}

func assertVecNear(t *testing.T, want, got v3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-12, "X")
	assert.InDelta(t, want.Y, got.Y, 1e-12, "Y")
	assert.InDelta(t, want.Z, got.Z, 1e-12, "Z")
}

// rows flattens an orientation into a row-major 3x3 matrix.
func rows(o Orientation) [9]float64 {
	out := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	if o.m == nil {
		return out
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = o.m.At(i, j)
		}
	}
	return out
}
