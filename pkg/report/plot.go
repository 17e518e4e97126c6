package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	colorX = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	colorY = color.RGBA{R: 40, G: 80, B: 200, A: 255}
)

// Plot renders rotation_x and rotation_y against camera index and saves
// the image to path. The format follows the extension (png, svg, pdf).
// Unknown values are left out, and a dashed line marks 90 degrees.
func Plot(path string, run *Run) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Surface Angle per Camera", run.Scene)
	p.X.Label.Text = "Camera"
	p.Y.Label.Text = "Angle (deg)"
	p.Add(plotter.NewGrid())

	xPts := make(plotter.XYs, 0, len(run.Results))
	yPts := make(plotter.XYs, 0, len(run.Results))
	minIdx, maxIdx := 0.0, 1.0
	for i, r := range run.Results {
		idx := float64(r.CameraIndex)
		if i == 0 || idx < minIdx {
			minIdx = idx
		}
		if i == 0 || idx > maxIdx {
			maxIdx = idx
		}
		if v, ok := r.RotationX.Get(); ok {
			xPts = append(xPts, plotter.XY{X: idx, Y: v})
		}
		if v, ok := r.RotationY.Get(); ok {
			yPts = append(yPts, plotter.XY{X: idx, Y: v})
		}
	}

	for _, series := range []struct {
		label string
		pts   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
	}{
		{"rotation x", xPts, colorX, draw.CircleGlyph{}},
		{"rotation y", yPts, colorY, draw.TriangleGlyph{}},
	} {
		if len(series.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(series.pts)
		if err != nil {
			return fmt.Errorf("%s: %w", series.label, err)
		}
		sc.GlyphStyle.Color = series.color
		sc.GlyphStyle.Shape = series.shape
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(series.label, sc)
	}

	square, err := plotter.NewLine(plotter.XYs{{X: minIdx, Y: 90}, {X: maxIdx, Y: 90}})
	if err != nil {
		return err
	}
	square.Color = color.Gray{Y: 120}
	square.Width = vg.Points(1)
	square.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(square)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
