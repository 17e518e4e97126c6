package probe

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/sightline/pkg/camera"
	"github.com/chazu/sightline/pkg/surface"
)

func testCamera() *camera.Camera {
	return &camera.Camera{
		Index:       0,
		Label:       "IMG_0001",
		Enabled:     true,
		Position:    v3.Vec{Z: 10},
		Orientation: camera.FromEuler(180, 0, 0),
		Sensor: &camera.Sensor{
			Label:       "main",
			Calibration: camera.Calibration{Width: 4000, Height: 3000, F: 3600},
		},
	}
}

var ground = surface.Plane{Normal: v3.Vec{Z: 1}}

func TestNewPattern(t *testing.T) {
	t.Parallel()

	cal := &camera.Calibration{Width: 4000, Height: 3000, F: 3600}
	pat, err := NewPattern(cal, DefaultGapPerc)
	require.NoError(t, err)

	assert.InDelta(t, 35, pat.Gap, 1e-12)
	assert.InDelta(t, 2*math.Atan(35.0/3600), pat.Teta, 1e-15)
	assert.InDelta(t, 1.1141, pat.Teta*180/math.Pi, 1e-3)

	assert.Equal(t, camera.Pixel{X: 2000, Y: 1500}, pat.Pixels[Center])
	assert.Equal(t, camera.Pixel{X: 2035, Y: 1500}, pat.Pixels[PlusX])
	assert.Equal(t, camera.Pixel{X: 1965, Y: 1500}, pat.Pixels[MinusX])
	assert.Equal(t, camera.Pixel{X: 2000, Y: 1535}, pat.Pixels[PlusY])
	assert.Equal(t, camera.Pixel{X: 2000, Y: 1465}, pat.Pixels[MinusY])
}

func TestNewPatternRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	good := &camera.Calibration{Width: 4000, Height: 3000, F: 3600}
	tests := []struct {
		name    string
		cal     *camera.Calibration
		gapPerc float64
		want    error
	}{
		{"zero gap", good, 0, ErrInvalidPattern},
		{"negative gap", good, -1, ErrInvalidPattern},
		{"whole image", good, 100, ErrInvalidPattern},
		{"nan gap", good, math.NaN(), ErrInvalidPattern},
		{"zero focal", &camera.Calibration{Width: 4000, Height: 3000}, 1, camera.ErrInvalidCalibration},
		{"missing calibration", nil, 1, camera.ErrInvalidCalibration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPattern(tt.cal, tt.gapPerc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTetaIndependentOfSurface(t *testing.T) {
	t.Parallel()

	cal := &camera.Calibration{Width: 6000, Height: 4000, F: 5000}
	pat, err := NewPattern(cal, 2)
	require.NoError(t, err)
	assert.InDelta(t, 100, pat.Gap, 1e-12)
	assert.InDelta(t, 2*math.Atan(100.0/5000), pat.Teta, 1e-15)
}

func TestProjectCenter(t *testing.T) {
	t.Parallel()

	p := NewProjector(ground, 0)
	pt, ok, err := p.Project(context.Background(), testCamera(), camera.Pixel{X: 2000, Y: 1500})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0, pt.Sub(v3.Vec{}).Length(), 1e-9)
}

func TestProjectAll(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	pat, err := NewPattern(cam.Calibration(), DefaultGapPerc)
	require.NoError(t, err)

	pts, err := NewProjector(ground, time.Second).ProjectAll(context.Background(), cam, pat)
	require.NoError(t, err)

	off := 10 * 35.0 / 3600
	for pos, pt := range pts {
		require.True(t, pt.Hit, "probe %s", Position(pos))
		require.NoError(t, pt.Err)
		assert.InDelta(t, 0, pt.Pos.Z, 1e-9)
	}
	// Looking straight down, image +X stays world +X and image +Y (down
	// in the image) becomes world -Y.
	assert.InDelta(t, off, pts[PlusX].Pos.X, 1e-9)
	assert.InDelta(t, -off, pts[MinusX].Pos.X, 1e-9)
	assert.InDelta(t, -off, pts[PlusY].Pos.Y, 1e-9)
	assert.InDelta(t, off, pts[MinusY].Pos.Y, 1e-9)

	d, ok := pts[Center].Distance(cam.Position)
	require.True(t, ok)
	assert.InDelta(t, 10, d, 1e-9)
}

func TestProjectAllReportsMisses(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	pat, err := NewPattern(cam.Calibration(), DefaultGapPerc)
	require.NoError(t, err)

	// Only the half-space x <= 0 has geometry.
	half := surface.Func(func(origin, dir v3.Vec) (v3.Vec, bool) {
		pt, ok := ground.Intersect(origin, dir)
		if !ok || pt.X > 1e-9 {
			return v3.Vec{}, false
		}
		return pt, true
	})
	pts, err := NewProjector(half, 0).ProjectAll(context.Background(), cam, pat)
	require.NoError(t, err)

	assert.False(t, pts[PlusX].Hit)
	assert.NoError(t, pts[PlusX].Err)
	_, ok := pts[PlusX].Distance(cam.Position)
	assert.False(t, ok)
	for _, pos := range []Position{Center, MinusX, PlusY, MinusY} {
		assert.True(t, pts[pos].Hit, "probe %s", pos)
	}
}

func TestProjectAllTimeoutIsPerProbe(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	pat, err := NewPattern(cam.Calibration(), DefaultGapPerc)
	require.NoError(t, err)

	block := make(chan struct{})
	defer close(block)
	slowPlusY := surface.Func(func(origin, dir v3.Vec) (v3.Vec, bool) {
		if dir.Y < -1e-6 {
			<-block
		}
		return ground.Intersect(origin, dir)
	})

	pts, err := NewProjector(slowPlusY, 20*time.Millisecond).ProjectAll(context.Background(), cam, pat)
	require.NoError(t, err)
	assert.False(t, pts[PlusY].Hit)
	assert.True(t, errors.Is(pts[PlusY].Err, surface.ErrQueryTimeout), "got %v", pts[PlusY].Err)
	assert.True(t, pts[MinusY].Hit)
	assert.True(t, pts[Center].Hit)
}

func TestProjectAllCanceled(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	pat, err := NewPattern(cam.Calibration(), DefaultGapPerc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewProjector(ground, 0).ProjectAll(ctx, cam, pat)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProjectInvalidCamera(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	cam.Sensor = nil
	_, _, err := NewProjector(ground, 0).Project(context.Background(), cam, camera.Pixel{})
	assert.True(t, errors.Is(err, camera.ErrInvalidCalibration))
}

func TestPickSwapsRowAndColumn(t *testing.T) {
	t.Parallel()

	cam := testCamera()
	p := NewProjector(ground, 0)

	// Row 1500 is the vertical center; column 2360 is 360 px right of it.
	pt, ok, err := p.Pick(context.Background(), cam, 1500, 2360)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 1, pt.X, 1e-9)
	assert.InDelta(t, 0, pt.Y, 1e-9)
}

func TestPositionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "center", Center.String())
	assert.Equal(t, "-y", MinusY.String())
	assert.Equal(t, "unknown", Position(42).String())
}
