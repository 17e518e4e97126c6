// Package probe casts the five probe rays of a camera (image center plus
// four points offset along the image axes) onto a surface.
package probe

import (
	"context"
	"math"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"

	"github.com/chazu/sightline/pkg/camera"
	"github.com/chazu/sightline/pkg/surface"
)

// DefaultGapPerc is the default probe offset, as a percentage of
// (width/2 + height/2).
const DefaultGapPerc = 1.0

// ErrInvalidPattern is returned (wrapped) by NewPattern.
var ErrInvalidPattern = errors.New("invalid probe pattern")

// Position indexes the five probes of a pattern.
type Position int

const (
	Center Position = iota
	PlusX
	MinusX
	PlusY
	MinusY

	numPositions
)

func (p Position) String() string {
	switch p {
	case Center:
		return "center"
	case PlusX:
		return "+x"
	case MinusX:
		return "-x"
	case PlusY:
		return "+y"
	case MinusY:
		return "-y"
	default:
		return "unknown"
	}
}

// Pattern is the probe layout for one calibration.
type Pattern struct {
	Gap    float64 // offset from the center, pixels
	Teta   float64 // angle subtended at the camera by each symmetric pair, radians
	Pixels [numPositions]camera.Pixel
}

// NewPattern lays out the probes for cal. gapPerc must be in (0, 100).
func NewPattern(cal *camera.Calibration, gapPerc float64) (Pattern, error) {
	if err := cal.Validate(); err != nil {
		return Pattern{}, err
	}
	if !(gapPerc > 0) || gapPerc >= 100 {
		return Pattern{}, errors.Wrapf(ErrInvalidPattern, "gap percentage %v must be in (0, 100)", gapPerc)
	}

	c := cal.Center()
	gap := (c.X + c.Y) * gapPerc / 100
	return Pattern{
		Gap:  gap,
		Teta: 2 * math.Atan(gap/cal.F),
		Pixels: [numPositions]camera.Pixel{
			Center: c,
			PlusX:  {X: c.X + gap, Y: c.Y},
			MinusX: {X: c.X - gap, Y: c.Y},
			PlusY:  {X: c.X, Y: c.Y + gap},
			MinusY: {X: c.X, Y: c.Y - gap},
		},
	}, nil
}

// Point is the outcome of one probe: a world-frame point, or absent.
type Point struct {
	Pos v3.Vec
	Hit bool
	Err error // set when the query timed out or was canceled
}

// Distance returns the distance from origin to the probe point. The second
// return value is false when the probe is absent.
func (p Point) Distance(origin v3.Vec) (float64, bool) {
	if !p.Hit {
		return 0, false
	}
	return p.Pos.Sub(origin).Length(), true
}

// Projector casts rays from cameras onto a surface.
type Projector struct {
	query surface.Bounded
}

// NewProjector returns a projector over s. A positive timeout bounds every
// surface query.
func NewProjector(s surface.Surface, timeout time.Duration) *Projector {
	return &Projector{query: surface.Bounded{Surface: s, Timeout: timeout}}
}

// Project casts the ray through px and returns the first surface point.
// A miss is (zero, false, nil); the error is reserved for invalid
// calibration, query timeouts and cancellation.
func (p *Projector) Project(ctx context.Context, cam *camera.Camera, px camera.Pixel) (v3.Vec, bool, error) {
	origin, dir, err := cam.Ray(px)
	if err != nil {
		return v3.Vec{}, false, err
	}
	return p.query.Query(ctx, origin, dir)
}

// ProjectAll casts every probe of the pattern. Failed queries are reported
// per probe and never abort the others, except on context cancellation.
func (p *Projector) ProjectAll(ctx context.Context, cam *camera.Camera, pat Pattern) ([numPositions]Point, error) {
	var out [numPositions]Point
	for i, px := range pat.Pixels {
		pos, hit, err := p.Project(ctx, cam, px)
		if err != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}
		out[i] = Point{Pos: pos, Hit: hit && err == nil, Err: err}
	}
	return out, nil
}

// Pick projects an image point given as (row, col), origin at the
// upper-left corner, onto the surface.
func (p *Projector) Pick(ctx context.Context, cam *camera.Camera, row, col float64) (v3.Vec, bool, error) {
	return p.Project(ctx, cam, camera.Pixel{X: col, Y: row})
}
