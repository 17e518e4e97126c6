// Package config loads the evaluation tunables from a JSON file.
//
// Every field is optional. Omitted fields fall back to the defaults
// returned by the Get* accessors, so partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/chazu/sightline/pkg/evaluate"
	"github.com/chazu/sightline/pkg/probe"
	"github.com/chazu/sightline/pkg/surface/sdfx"
)

// ErrInvalidConfiguration is returned (wrapped) for values that would
// corrupt every camera's result.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config holds the evaluation tunables.
type Config struct {
	// Probe pattern
	GapPerc *float64 `json:"gap_perc,omitempty"`

	// Scheduling
	Workers          *int    `json:"workers,omitempty"`
	QueryTimeout     *string `json:"query_timeout,omitempty"` // duration string like "250ms"
	SerializeSurface *bool   `json:"serialize_surface,omitempty"`

	// Sphere tracing of SDF surfaces
	SDFMaxSteps    *int     `json:"sdf_max_steps,omitempty"`
	SDFEpsilon     *float64 `json:"sdf_epsilon,omitempty"`
	SDFMaxDistance *float64 `json:"sdf_max_distance,omitempty"`

	// Tessellation when a scene asks for a mesh surface
	MeshCells *int `json:"mesh_cells,omitempty"`

	// Quality-control thresholds; 0 disables
	MaxObliquityDeg *float64 `json:"max_obliquity_deg,omitempty"`
	MaxDistance     *float64 `json:"max_distance,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// maxFileSize bounds the config file.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Load reads a Config from a JSON file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the set values are usable.
func (c *Config) Validate() error {
	if c.GapPerc != nil {
		if g := *c.GapPerc; !(g > 0) || g >= 100 {
			return errors.Wrapf(ErrInvalidConfiguration, "gap_perc must be in (0, 100), got %v", g)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "workers must be non-negative, got %d", *c.Workers)
	}
	if c.QueryTimeout != nil && *c.QueryTimeout != "" {
		d, err := time.ParseDuration(*c.QueryTimeout)
		if err != nil {
			return errors.Wrapf(ErrInvalidConfiguration, "invalid query_timeout '%s': %v", *c.QueryTimeout, err)
		}
		if d < 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "query_timeout must be non-negative, got %s", d)
		}
	}
	if c.SDFMaxSteps != nil && *c.SDFMaxSteps <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "sdf_max_steps must be positive, got %d", *c.SDFMaxSteps)
	}
	if c.SDFEpsilon != nil && !(*c.SDFEpsilon > 0) {
		return errors.Wrapf(ErrInvalidConfiguration, "sdf_epsilon must be positive, got %v", *c.SDFEpsilon)
	}
	if c.SDFMaxDistance != nil && *c.SDFMaxDistance < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "sdf_max_distance must be non-negative, got %v", *c.SDFMaxDistance)
	}
	if c.MeshCells != nil && *c.MeshCells <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "mesh_cells must be positive, got %d", *c.MeshCells)
	}
	if c.MaxObliquityDeg != nil && (*c.MaxObliquityDeg < 0 || *c.MaxObliquityDeg > 90) {
		return errors.Wrapf(ErrInvalidConfiguration, "max_obliquity_deg must be between 0 and 90, got %v", *c.MaxObliquityDeg)
	}
	if c.MaxDistance != nil && *c.MaxDistance < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "max_distance must be non-negative, got %v", *c.MaxDistance)
	}
	return nil
}

// GetGapPerc returns gap_perc or the default.
func (c *Config) GetGapPerc() float64 {
	if c.GapPerc == nil {
		return probe.DefaultGapPerc
	}
	return *c.GapPerc
}

// GetWorkers returns workers, resolving 0 to the number of CPUs.
func (c *Config) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetQueryTimeout parses query_timeout. Zero disables the limit.
func (c *Config) GetQueryTimeout() time.Duration {
	if c.QueryTimeout == nil || *c.QueryTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.QueryTimeout)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// GetSerializeSurface returns serialize_surface or false.
func (c *Config) GetSerializeSurface() bool {
	return c.SerializeSurface != nil && *c.SerializeSurface
}

// GetMeshCells returns mesh_cells or the default.
func (c *Config) GetMeshCells() int {
	if c.MeshCells == nil {
		return sdfx.DefaultMeshCells
	}
	return *c.MeshCells
}

// TraceOptions returns the sphere-tracing limits.
func (c *Config) TraceOptions() sdfx.TraceOptions {
	opts := sdfx.TraceOptions{MaxSteps: sdfx.DefaultMaxSteps, Epsilon: sdfx.DefaultEpsilon}
	if c.SDFMaxSteps != nil {
		opts.MaxSteps = *c.SDFMaxSteps
	}
	if c.SDFEpsilon != nil {
		opts.Epsilon = *c.SDFEpsilon
	}
	if c.SDFMaxDistance != nil {
		opts.MaxDistance = *c.SDFMaxDistance
	}
	return opts
}

// Thresholds returns the quality-control limits.
func (c *Config) Thresholds() evaluate.Thresholds {
	var th evaluate.Thresholds
	if c.MaxObliquityDeg != nil {
		th.MaxObliquityDeg = *c.MaxObliquityDeg
	}
	if c.MaxDistance != nil {
		th.MaxDistance = *c.MaxDistance
	}
	return th
}

// EvaluateOptions assembles the evaluator options.
func (c *Config) EvaluateOptions() evaluate.Options {
	return evaluate.Options{
		GapPerc:      c.GetGapPerc(),
		Workers:      c.GetWorkers(),
		QueryTimeout: c.GetQueryTimeout(),
		Serialize:    c.GetSerializeSurface(),
		Thresholds:   c.Thresholds(),
	}
}

// SetGapPerc overrides gap_perc.
func (c *Config) SetGapPerc(v float64) { c.GapPerc = ptrFloat64(v) }

// SetWorkers overrides workers.
func (c *Config) SetWorkers(v int) { c.Workers = ptrInt(v) }
