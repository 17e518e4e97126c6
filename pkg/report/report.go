// Package report writes evaluation results: the legacy per-camera text
// lines, CSV and JSON exports, and a PNG plot of the tilt estimates.
//
// The text report keeps the -1 sentinel for unknown values. CSV leaves
// the cell empty and JSON writes null, so a measured -1 can never be
// confused with a missing one.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/sightline/pkg/evaluate"
)

// Run groups the results of one evaluation pass.
type Run struct {
	ID        uuid.UUID         `json:"run_id"`
	Scene     string            `json:"scene"`
	Generated time.Time         `json:"generated"`
	GapPerc   float64           `json:"gap_perc"`
	Results   []evaluate.Result `json:"results"`
}

// NewRun stamps a run with a fresh identifier.
func NewRun(scene string, gapPerc float64, results []evaluate.Result) *Run {
	return &Run{
		ID:        uuid.New(),
		Scene:     scene,
		Generated: time.Now().UTC(),
		GapPerc:   gapPerc,
		Results:   results,
	}
}

// LegacyLine formats one result as
//
//	camera:  <i> x:  <rx> y:  <ry> dist <d>
//
// with -1 for unknown values.
func LegacyLine(r evaluate.Result) string {
	return fmt.Sprintf("camera:  %d x:  %s y:  %s dist %s",
		r.CameraIndex, legacyValue(r.RotationX), legacyValue(r.RotationY), legacyValue(r.CenterDistance))
}

func legacyValue(m evaluate.Measure) string {
	if !m.Valid() {
		return strconv.Itoa(int(evaluate.Sentinel))
	}
	return reprFloat(m.Legacy())
}

// reprFloat prints the shortest round-trip form, always with a decimal
// point or exponent ("90.0", "1e-05", "1.5e+16").
func reprFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	a := math.Abs(v)
	if a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var csvHeader = []string{
	"run_id", "camera", "label", "photo",
	"rotation_x", "rotation_y", "center_distance",
	"timed_out", "flags",
}

// WriteCSV writes a header and one row per result. Unknown values are
// empty cells.
func WriteCSV(w io.Writer, run *Run) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	id := run.ID.String()
	for _, r := range run.Results {
		row := []string{
			id,
			strconv.Itoa(r.CameraIndex),
			r.Label,
			r.PhotoPath,
			csvValue(r.RotationX),
			csvValue(r.RotationY),
			csvValue(r.CenterDistance),
			strconv.Itoa(r.TimedOut),
			r.Flags.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for camera %d: %w", r.CameraIndex, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvValue(m evaluate.Measure) string {
	v, ok := m.Get()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteJSON writes the run as indented JSON.
func WriteJSON(w io.Writer, run *Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	return nil
}
