// Package scene holds the document being evaluated: the sensors and
// cameras of a reconstruction, the reconstructed surface, and the chunk
// transform and reference system that place it in the world.
//
// A Document is assembled once (usually by the scene engine) and then only
// read. Evaluation never mutates it.
package scene

import (
	"github.com/chazu/sightline/pkg/camera"
	"github.com/chazu/sightline/pkg/crs"
	"github.com/chazu/sightline/pkg/surface"
)

// Document is a reconstruction ready for camera evaluation.
type Document struct {
	Name    string
	Sensors []*camera.Sensor
	Cameras []*camera.Camera // ordered; Cameras[i].Index == i
	Surface surface.Surface

	// SurfaceKind describes how the surface was built, for reporting.
	SurfaceKind string

	Transform crs.Transform  // internal -> world (geocentric)
	CRS       crs.Projection // world -> reported system; nil means crs.Local
}

// New returns an empty document.
func New(name string) *Document {
	return &Document{Name: name}
}

// AddSensor appends a sensor and returns it.
func (d *Document) AddSensor(s *camera.Sensor) *camera.Sensor {
	d.Sensors = append(d.Sensors, s)
	return s
}

// AddCamera appends a camera, assigning its index.
func (d *Document) AddCamera(c *camera.Camera) *camera.Camera {
	c.Index = len(d.Cameras)
	d.Cameras = append(d.Cameras, c)
	return c
}

// EnabledCameras returns the enabled cameras in index order.
func (d *Document) EnabledCameras() []*camera.Camera {
	var out []*camera.Camera
	for _, c := range d.Cameras {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Projection returns the document's reference system, defaulting to
// crs.Local.
func (d *Document) Projection() crs.Projection {
	if d.CRS == nil {
		return crs.Local{}
	}
	return d.CRS
}

// Sensor finds a sensor by label.
func (d *Document) Sensor(label string) (*camera.Sensor, bool) {
	for _, s := range d.Sensors {
		if s.Label == label {
			return s, true
		}
	}
	return nil, false
}

// Camera finds a camera by label.
func (d *Document) Camera(label string) (*camera.Camera, bool) {
	for _, c := range d.Cameras {
		if c.Label == label {
			return c, true
		}
	}
	return nil, false
}
