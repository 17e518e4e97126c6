package crs

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// GeodeticToECEF converts latitude and longitude (degrees) and ellipsoidal
// height (meters) to geocentric coordinates.
func GeodeticToECEF(latDeg, lonDeg, altM float64) v3.Vec {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	sinLat := math.Sin(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return v3.Vec{
		X: (n + altM) * math.Cos(lat) * math.Cos(lon),
		Y: (n + altM) * math.Cos(lat) * math.Sin(lon),
		Z: (n*(1-wgs84E2) + altM) * sinLat,
	}
}

// ECEFToGeodetic returns latitude and longitude in degrees and height in
// meters, iterating Bowring's latitude estimate.
func ECEFToGeodetic(p v3.Vec) (latDeg, lonDeg, altM float64) {
	lon := math.Atan2(p.Y, p.X)
	r := math.Hypot(p.X, p.Y)
	lat := math.Atan2(p.Z, r*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*n*sinLat, r)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	if math.Abs(cosLat) > 1e-10 {
		altM = r/cosLat - n
	} else {
		altM = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}
	return lat * 180.0 / math.Pi, lon * 180.0 / math.Pi, altM
}

// Topocentric is a local east-north-up frame tangent to the WGS-84
// ellipsoid at an origin.
type Topocentric struct {
	LatDeg, LonDeg, AltM float64

	origin                         v3.Vec
	sinLat, cosLat, sinLon, cosLon float64
}

// NewTopocentric returns the ENU frame at the given geodetic origin.
func NewTopocentric(latDeg, lonDeg, altM float64) *Topocentric {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	return &Topocentric{
		LatDeg: latDeg, LonDeg: lonDeg, AltM: altM,
		origin: GeodeticToECEF(latDeg, lonDeg, altM),
		sinLat: math.Sin(lat), cosLat: math.Cos(lat),
		sinLon: math.Sin(lon), cosLon: math.Cos(lon),
	}
}

func (t *Topocentric) Name() string {
	return fmt.Sprintf("topocentric(%.8f, %.8f, %.3f)", t.LatDeg, t.LonDeg, t.AltM)
}

// Project maps a geocentric point to (east, north, up) meters.
func (t *Topocentric) Project(p v3.Vec) v3.Vec {
	r := p.Sub(t.origin)
	return v3.Vec{
		X: -t.sinLon*r.X + t.cosLon*r.Y,
		Y: -t.sinLat*t.cosLon*r.X - t.sinLat*t.sinLon*r.Y + t.cosLat*r.Z,
		Z: t.cosLat*t.cosLon*r.X + t.cosLat*t.sinLon*r.Y + t.sinLat*r.Z,
	}
}

func (*Topocentric) Metric() bool { return true }

// Geographic expresses points as (longitude, latitude, height) on WGS-84,
// in that axis order. Distances in this system mix degrees and meters.
type Geographic struct{}

func (Geographic) Name() string { return "wgs84" }

func (Geographic) Project(p v3.Vec) v3.Vec {
	lat, lon, alt := ECEFToGeodetic(p)
	return v3.Vec{X: lon, Y: lat, Z: alt}
}

func (Geographic) Metric() bool { return false }
