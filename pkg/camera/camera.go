package camera

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sensor is a named calibration shared by one or more cameras.
type Sensor struct {
	Label       string
	Calibration Calibration
}

// Camera is a single photo with a known pose. Cameras are read-only during
// an evaluation pass.
type Camera struct {
	Index       int     // position in the document's camera list
	Label       string  // e.g. the photo's file name without extension
	PhotoPath   string  // path of the source photo, if known
	Enabled     bool    // disabled cameras are skipped by evaluation
	Position    v3.Vec  // camera center, world frame
	Orientation Orientation
	Sensor      *Sensor
}

// Calibration returns the camera's sensor calibration, or nil when the
// camera has no sensor.
func (c *Camera) Calibration() *Calibration {
	if c.Sensor == nil {
		return nil
	}
	return &c.Sensor.Calibration
}

// Ray returns the world-frame origin and direction of the ray through the
// given pixel. The direction is not normalized.
func (c *Camera) Ray(px Pixel) (origin, dir v3.Vec, err error) {
	cal := c.Calibration()
	if err := cal.Validate(); err != nil {
		return v3.Vec{}, v3.Vec{}, fmt.Errorf("camera %d (%s): %w", c.Index, c.Label, err)
	}
	return c.Position, c.Orientation.Apply(cal.Unproject(px)), nil
}

// Name returns the label, falling back to the index.
func (c *Camera) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("camera-%d", c.Index)
}
