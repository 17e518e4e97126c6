package crs

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVecNear(t *testing.T, want, got v3.Vec, tol float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, "x")
	assert.InDelta(t, want.Y, got.Y, tol, "y")
	assert.InDelta(t, want.Z, got.Z, tol, "z")
}

func TestZeroTransformIsIdentity(t *testing.T) {
	t.Parallel()

	var tr Transform
	assert.True(t, tr.IsIdentity())
	p := v3.Vec{X: 1, Y: -2, Z: 3}
	assert.Equal(t, p, tr.Apply(p))
}

func TestTransformApply(t *testing.T) {
	t.Parallel()

	// 90 degrees about Z, doubled, then shifted.
	tr, err := NewTransform(2, [9]float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	}, v3.Vec{X: 100, Y: 200, Z: 300})
	require.NoError(t, err)
	assert.False(t, tr.IsIdentity())
	assert.Equal(t, 2.0, tr.Scale())

	assertVecNear(t, v3.Vec{X: 100, Y: 202, Z: 306}, tr.Apply(v3.Vec{X: 1, Z: 3}), 1e-12)
}

func TestTransformScalesDistances(t *testing.T) {
	t.Parallel()

	tr, err := NewTransform(0.5, [9]float64{1, 0, 0, 0, 0, -1, 0, 1, 0}, v3.Vec{X: 7})
	require.NoError(t, err)

	a, b := v3.Vec{X: 1, Y: 2, Z: 3}, v3.Vec{X: -4, Y: 0, Z: 9}
	want := 0.5 * a.Sub(b).Length()
	assert.InDelta(t, want, tr.Apply(a).Sub(tr.Apply(b)).Length(), 1e-12)
}

func TestNewTransformRejectsInvalid(t *testing.T) {
	t.Parallel()

	ident := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	tests := []struct {
		name  string
		scale float64
		rot   [9]float64
	}{
		{"zero scale", 0, ident},
		{"negative scale", -1, ident},
		{"infinite scale", math.Inf(1), ident},
		{"sheared", 1, [9]float64{1, 0.5, 0, 0, 1, 0, 0, 0, 1}},
		{"reflection", 1, [9]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransform(tt.scale, tt.rot, v3.Vec{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransform), "got %v", err)
		})
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range []struct{ lat, lon, alt float64 }{
		{0, 0, 0},
		{45.5, -73.6, 120},
		{-33.9, 151.2, 58},
		{78.2, 15.6, 1000},
	} {
		lat, lon, alt := ECEFToGeodetic(GeodeticToECEF(c.lat, c.lon, c.alt))
		assert.InDelta(t, c.lat, lat, 1e-9)
		assert.InDelta(t, c.lon, lon, 1e-9)
		assert.InDelta(t, c.alt, alt, 1e-4)
	}
}

func TestGeodeticToECEFEquator(t *testing.T) {
	t.Parallel()

	assertVecNear(t, v3.Vec{X: wgs84A}, GeodeticToECEF(0, 0, 0), 1e-6)
	assertVecNear(t, v3.Vec{Y: wgs84A + 10}, GeodeticToECEF(0, 90, 10), 1e-6)
}

func TestTopocentricAxes(t *testing.T) {
	t.Parallel()

	enu := NewTopocentric(45, 10, 100)
	origin := GeodeticToECEF(45, 10, 100)

	assertVecNear(t, v3.Vec{}, enu.Project(origin), 1e-6)

	up := GeodeticToECEF(45, 10, 150)
	assertVecNear(t, v3.Vec{Z: 50}, enu.Project(up), 1e-6)

	// A small step east along the parallel shows up on the first axis.
	east := enu.Project(GeodeticToECEF(45, 10.0001, 100))
	assert.Greater(t, east.X, 7.0)
	assert.InDelta(t, 0, east.Y, 1e-3)

	north := enu.Project(GeodeticToECEF(45.0001, 10, 100))
	assert.Greater(t, north.Y, 11.0)
	assert.InDelta(t, 0, north.X, 1e-6)
}

func TestTopocentricPreservesDistance(t *testing.T) {
	t.Parallel()

	enu := NewTopocentric(-20, 130, 0)
	a := GeodeticToECEF(-20, 130, 0).Add(v3.Vec{X: 3, Y: -4, Z: 12})
	b := GeodeticToECEF(-20, 130, 0).Add(v3.Vec{X: -1, Y: 2})
	assert.InDelta(t, a.Sub(b).Length(), enu.Project(a).Sub(enu.Project(b)).Length(), 1e-6)
	assert.True(t, enu.Metric())
}

func TestGeographicAxisOrder(t *testing.T) {
	t.Parallel()

	p := Geographic{}.Project(GeodeticToECEF(12, 34, 56))
	assertVecNear(t, v3.Vec{X: 34, Y: 12, Z: 56}, p, 1e-6)
	assert.False(t, Geographic{}.Metric())
}

func TestPoint(t *testing.T) {
	t.Parallel()

	tr, err := NewTransform(1, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, GeodeticToECEF(0, 0, 0))
	require.NoError(t, err)

	// Internal +X at the equator and prime meridian points straight up.
	got := Point(tr, NewTopocentric(0, 0, 0), v3.Vec{X: 5})
	assertVecNear(t, v3.Vec{Z: 5}, got, 1e-6)

	assert.Equal(t, v3.Vec{X: 1}, Point(Transform{}, nil, v3.Vec{X: 1}))
	assert.Equal(t, v3.Vec{X: 1}, Point(Transform{}, Local{}, v3.Vec{X: 1}))
}
