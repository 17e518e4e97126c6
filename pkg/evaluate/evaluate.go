// Package evaluate runs the per-camera surface diagnostics: for each
// enabled camera it projects the probe pattern onto the surface, measures
// the distance to the center probe and estimates the surface tilt along
// both image axes.
//
// Cameras are independent. Up to Options.Workers cameras are evaluated at
// once and results are delivered in camera-index order.
package evaluate

import (
	"context"
	"log"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/sightline/pkg/camera"
	"github.com/chazu/sightline/pkg/crs"
	"github.com/chazu/sightline/pkg/probe"
	"github.com/chazu/sightline/pkg/scene"
	"github.com/chazu/sightline/pkg/surface"
	"github.com/chazu/sightline/pkg/tilt"
)

// Options tune an Evaluator.
type Options struct {
	GapPerc      float64       // probe offset, percent of (width/2 + height/2)
	Workers      int           // concurrent cameras; 0 means runtime.NumCPU()
	QueryTimeout time.Duration // per surface query; 0 disables
	Serialize    bool          // force one surface query at a time
	Thresholds   Thresholds
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{GapPerc: probe.DefaultGapPerc}
}

// Evaluator evaluates the cameras of one document.
type Evaluator struct {
	opts      Options
	projector *probe.Projector
	transform crs.Transform
	crs       crs.Projection
}

// New prepares an evaluator for doc. Invalid options fail here rather than
// corrupting every camera's result.
func New(doc *scene.Document, opts Options) (*Evaluator, error) {
	if doc == nil || doc.Surface == nil {
		return nil, errors.New("document has no surface")
	}
	if !(opts.GapPerc > 0) || opts.GapPerc >= 100 {
		return nil, errors.Wrapf(probe.ErrInvalidPattern, "gap percentage %v must be in (0, 100)", opts.GapPerc)
	}
	if opts.Workers < 0 {
		return nil, errors.Errorf("workers must be >= 0, got %d", opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.NumCPU()
	}

	s := doc.Surface
	if opts.Serialize || (opts.Workers > 1 && !surface.IsConcurrentSafe(s)) {
		s = surface.NewLocked(s)
	}
	return &Evaluator{
		opts:      opts,
		projector: probe.NewProjector(s, opts.QueryTimeout),
		transform: doc.Transform,
		crs:       doc.Projection(),
	}, nil
}

// Camera evaluates a single camera.
func (e *Evaluator) Camera(ctx context.Context, cam *camera.Camera) (Result, error) {
	pat, err := probe.NewPattern(cam.Calibration(), e.opts.GapPerc)
	if err != nil {
		return Result{}, errors.Wrapf(err, "camera %d (%s)", cam.Index, cam.Name())
	}
	return e.camera(ctx, cam, pat)
}

func (e *Evaluator) camera(ctx context.Context, cam *camera.Camera, pat probe.Pattern) (Result, error) {
	pts, err := e.projector.ProjectAll(ctx, cam, pat)
	if err != nil {
		return Result{}, err
	}

	r := Result{CameraIndex: cam.Index, Label: cam.Label, PhotoPath: cam.PhotoPath}
	for pos, pt := range pts {
		if pt.Err != nil {
			r.TimedOut++
			log.Printf("camera %d: probe %s: %v", cam.Index, probe.Position(pos), pt.Err)
		}
	}

	if c := pts[probe.Center]; c.Hit {
		from := crs.Point(e.transform, e.crs, cam.Position)
		to := crs.Point(e.transform, e.crs, c.Pos)
		r.CenterDistance = Some(to.Sub(from).Length())
	}
	r.RotationX = pairTilt(pat.Teta, cam, pts[probe.PlusX], pts[probe.MinusX])
	r.RotationY = pairTilt(pat.Teta, cam, pts[probe.PlusY], pts[probe.MinusY])
	r.Flags = r.Assess(e.opts.Thresholds)
	return r, nil
}

// pairTilt estimates the tilt across a symmetric probe pair. Both
// distances must be present; a zero distance is still a measurement.
func pairTilt(teta float64, cam *camera.Camera, a, b probe.Point) Measure {
	d1, ok1 := a.Distance(cam.Position)
	d2, ok2 := b.Distance(cam.Position)
	if !ok1 || !ok2 {
		return None()
	}
	return Some(tilt.Estimate(teta, d1, d2))
}

// Stream evaluates the enabled cameras among cams and calls fn with each
// result in camera order. Every camera's calibration is checked before any
// surface query runs. An error from fn stops the evaluation.
func (e *Evaluator) Stream(ctx context.Context, cams []*camera.Camera, fn func(Result) error) error {
	var todo []*camera.Camera
	var patterns []probe.Pattern
	for _, c := range cams {
		if c == nil || !c.Enabled {
			continue
		}
		pat, err := probe.NewPattern(c.Calibration(), e.opts.GapPerc)
		if err != nil {
			return errors.Wrapf(err, "camera %d (%s)", c.Index, c.Name())
		}
		todo = append(todo, c)
		patterns = append(patterns, pat)
	}
	if len(todo) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan Result, len(todo))
	for i := range slots {
		slots[i] = make(chan Result, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	waitErr := make(chan error, 1)
	go func() {
		for i, c := range todo {
			g.Go(func() error {
				r, err := e.camera(gctx, c, patterns[i])
				if err != nil {
					return err
				}
				slots[i] <- r
				return nil
			})
		}
		waitErr <- g.Wait()
	}()

	var fnErr error
collect:
	for i := range slots {
		var r Result
		select {
		case r = <-slots[i]:
		case <-gctx.Done():
			// Done after a failure, or because Wait returned once every
			// camera finished. Drain what is ready.
			select {
			case r = <-slots[i]:
			default:
				break collect
			}
		}
		if err := fn(r); err != nil {
			fnErr = err
			cancel()
			break
		}
	}
	err := <-waitErr
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Run evaluates the enabled cameras and returns their results in camera
// order.
func (e *Evaluator) Run(ctx context.Context, cams []*camera.Camera) ([]Result, error) {
	var out []Result
	err := e.Stream(ctx, cams, func(r Result) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
