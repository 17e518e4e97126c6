package engine

import (
	"fmt"
	"math"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/sightline/pkg/camera"
	"github.com/chazu/sightline/pkg/crs"
	"github.com/chazu/sightline/pkg/scene"
	"github.com/chazu/sightline/pkg/surface"
	"github.com/chazu/sightline/pkg/surface/mesh"
	"github.com/chazu/sightline/pkg/surface/sdfx"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSensor wraps a sensor registered in the document.
type sexpSensor struct {
	sensor *camera.Sensor
}

func (s *sexpSensor) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(sensor %q)", s.sensor.Label)
}
func (s *sexpSensor) Type() *zygo.RegisteredType { return nil }

// sexpCamera wraps a camera registered in the document.
type sexpCamera struct {
	cam *camera.Camera
}

func (c *sexpCamera) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(camera %q)", c.cam.Name())
}
func (c *sexpCamera) Type() *zygo.RegisteredType { return nil }

// sexpSolid wraps an SDF solid that has not yet become a surface.
type sexpSolid struct {
	solid sdfx.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return "(" + s.desc + ")"
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpSurface wraps a ready ray-intersection surface.
type sexpSurface struct {
	s    surface.Surface
	kind string
}

func (s *sexpSurface) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(surface %s)", s.kind)
}
func (s *sexpSurface) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value; treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// float reads an optional numeric keyword into dst.
func (pa kwArgs) float(key string, dst *float64) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// vec reads an optional vec3 keyword into dst.
func (pa kwArgs) vec(key string, dst *v3.Vec) (bool, error) {
	v, ok := pa.kw[key]
	if !ok {
		return false, nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	*dst = vec
	return true, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a whole number.
func toInt(s zygo.Sexp) (int, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int(f), nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_sdf) and plain strings ("sdf").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toBool extracts a boolean. A keyword given with no value counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a v3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toSolid extracts an SDF solid.
func toSolid(s zygo.Sexp) (*sexpSolid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toFloats converts a list of numbers. want < 0 accepts any length.
func toFloats(s zygo.Sexp, want int) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	if want >= 0 && len(items) != want {
		return nil, fmt.Errorf("expected %d numbers, got %d", want, len(items))
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

// toMatrix converts a list of nine numbers to a row-major 3x3 matrix.
func toMatrix(s zygo.Sexp) ([9]float64, error) {
	var m [9]float64
	vals, err := toFloats(s, 9)
	if err != nil {
		return m, err
	}
	copy(m[:], vals)
	return m, nil
}

// ---------------------------------------------------------------------------
// Document builder
// ---------------------------------------------------------------------------

// builder accumulates the document while a script runs.
type builder struct {
	doc  *scene.Document
	opts Options
}

func newBuilder(opts Options) *builder {
	return &builder{doc: scene.New(""), opts: opts}
}

// lookAtUp picks the up hint for a look-at camera: world Z unless the
// camera looks along Z, then world Y.
func lookAtUp(forward v3.Vec) v3.Vec {
	f := forward.Normalize()
	if math.Abs(f.Z) > 0.999 {
		return v3.Vec{Y: 1}
	}
	return v3.Vec{Z: 1}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene builtins into a zygomys environment.
// The builtins populate b.doc during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {
	registerGeometry(env)
	registerCameras(env, b)
	registerSurfaces(env, b)
	registerReference(env, b)
}

func registerGeometry(env *zygo.Zlisp) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: v3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (box 100 100 2)   centered on the origin
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("box requires 3 dimensions, got %d", len(args))
		}
		var dims [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i+1, err)
			}
			dims[i] = f
		}
		s, err := sdfx.Box(dims[0], dims[1], dims[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return &sexpSolid{solid: s, desc: fmt.Sprintf("box %g %g %g", dims[0], dims[1], dims[2])}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere 5)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("sphere requires a radius")
		}
		r, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		s, err := sdfx.Sphere(r)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		return &sexpSolid{solid: s, desc: fmt.Sprintf("sphere %g", r)}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder 10 2)   height, radius; Z-aligned
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("cylinder requires a height and a radius")
		}
		h, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		r, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		s, err := sdfx.Cylinder(h, r)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return &sexpSolid{solid: s, desc: fmt.Sprintf("cylinder %g %g", h, r)}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...)
	// -----------------------------------------------------------------------
	env.AddFunction("union", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("union requires at least one solid")
		}
		solids := make([]sdfx.Solid, len(args))
		for i, a := range args {
			s, err := toSolid(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("union: argument %d: %w", i+1, err)
			}
			solids[i] = s.solid
		}
		return &sexpSolid{solid: sdfx.Union(solids...), desc: fmt.Sprintf("union of %d", len(args))}, nil
	})

	// -----------------------------------------------------------------------
	// (difference a b)  (intersection a b)
	// -----------------------------------------------------------------------
	binary := map[string]func(a, b sdfx.Solid) sdfx.Solid{
		"difference":   sdfx.Difference,
		"intersection": sdfx.Intersection,
	}
	for opName, op := range binary {
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires exactly 2 solids, got %d", opName, len(args))
			}
			a, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: first: %w", opName, err)
			}
			b, err := toSolid(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: second: %w", opName, err)
			}
			return &sexpSolid{solid: op(a.solid, b.solid), desc: opName}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (translate solid (vec3 0 0 5))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a solid and a vec3")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		v, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
		}
		return &sexpSolid{solid: sdfx.Translate(s.solid, v), desc: "translated " + s.desc}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate solid (vec3 0 0 90))   degrees about X, then Y, then Z
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a solid and a vec3 of angles")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		v, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: angles: %w", err)
		}
		return &sexpSolid{solid: sdfx.Rotate(s.solid, v.X, v.Y, v.Z), desc: "rotated " + s.desc}, nil
	})
}

func registerCameras(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (sensor "main" :width 4000 :height 3000 :f 3600
	//         :cx 0 :cy 0 :k1 0 :k2 0 :k3 0 :p1 0 :p2 0)
	// -----------------------------------------------------------------------
	env.AddFunction("sensor", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("sensor requires a label")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sensor: label: %w", err)
		}
		if _, dup := b.doc.Sensor(label); dup {
			return zygo.SexpNull, fmt.Errorf("sensor: %q already defined", label)
		}

		var cal camera.Calibration
		for key, dst := range map[string]*int{"width": &cal.Width, "height": &cal.Height} {
			v, ok := pa.kw[key]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("sensor %q: %s is required", label, key)
			}
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sensor %q: %s: %w", label, key, err)
			}
			*dst = n
		}
		for key, dst := range map[string]*float64{
			"f": &cal.F, "cx": &cal.Cx, "cy": &cal.Cy,
			"k1": &cal.K1, "k2": &cal.K2, "k3": &cal.K3,
			"p1": &cal.P1, "p2": &cal.P2,
		} {
			if err := pa.float(key, dst); err != nil {
				return zygo.SexpNull, fmt.Errorf("sensor %q: %w", label, err)
			}
		}
		if err := cal.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("sensor %q: %w", label, err)
		}

		s := b.doc.AddSensor(&camera.Sensor{Label: label, Calibration: cal})
		return &sexpSensor{sensor: s}, nil
	})

	// -----------------------------------------------------------------------
	// (camera "IMG_0001" :sensor main :position (vec3 0 0 10)
	//         :rotation (vec3 180 0 0)          ; or
	//         :look-at (vec3 0 0 0) :up (vec3 0 1 0)  ; or
	//         :matrix (list 1 0 0 0 -1 0 0 0 -1)
	//         :enabled true :photo "photos/IMG_0001.JPG")
	// -----------------------------------------------------------------------
	env.AddFunction("camera", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("camera requires a label")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("camera: label: %w", err)
		}
		cam := &camera.Camera{Label: label, Enabled: true}

		switch v := pa.kw["sensor"].(type) {
		case *sexpSensor:
			cam.Sensor = v.sensor
		case *zygo.SexpStr:
			s, ok := b.doc.Sensor(v.S)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("camera %q: no sensor named %q", label, v.S)
			}
			cam.Sensor = s
		case nil:
			if len(b.doc.Sensors) != 1 {
				return zygo.SexpNull, fmt.Errorf("camera %q: :sensor is required when %d sensors are defined", label, len(b.doc.Sensors))
			}
			cam.Sensor = b.doc.Sensors[0]
		default:
			return zygo.SexpNull, fmt.Errorf("camera %q: sensor: expected sensor or label, got %T", label, v)
		}

		if _, err := pa.vec("position", &cam.Position); err != nil {
			return zygo.SexpNull, fmt.Errorf("camera %q: %w", label, err)
		}

		var given []string
		for _, key := range []string{"rotation", "look-at", "matrix"} {
			if _, ok := pa.kw[key]; ok {
				given = append(given, ":"+key)
			}
		}
		if len(given) > 1 {
			return zygo.SexpNull, fmt.Errorf("camera %q: %s are mutually exclusive", label, strings.Join(given, ", "))
		}
		var rot v3.Vec
		if ok, err := pa.vec("rotation", &rot); err != nil {
			return zygo.SexpNull, fmt.Errorf("camera %q: %w", label, err)
		} else if ok {
			cam.Orientation = camera.FromEuler(rot.X, rot.Y, rot.Z)
		}
		var target v3.Vec
		if ok, err := pa.vec("look-at", &target); err != nil {
			return zygo.SexpNull, fmt.Errorf("camera %q: %w", label, err)
		} else if ok {
			forward := target.Sub(cam.Position)
			up := lookAtUp(forward)
			if _, err := pa.vec("up", &up); err != nil {
				return zygo.SexpNull, fmt.Errorf("camera %q: %w", label, err)
			}
			o, err := camera.LookAt(forward, up)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("camera %q: look-at: %w", label, err)
			}
			cam.Orientation = o
		}
		if v, ok := pa.kw["matrix"]; ok {
			m, err := toMatrix(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("camera %q: matrix: %w", label, err)
			}
			o, err := camera.FromMatrix(m)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("camera %q: matrix: %w", label, err)
			}
			cam.Orientation = o
		}

		if v, ok := pa.kw["enabled"]; ok {
			if cam.Enabled, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("camera %q: enabled: %w", label, err)
			}
		}
		if v, ok := pa.kw["photo"]; ok {
			if cam.PhotoPath, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("camera %q: photo: %w", label, err)
			}
		}

		b.doc.AddCamera(cam)
		return &sexpCamera{cam: cam}, nil
	})
}

func registerSurfaces(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (plane :point (vec3 0 0 0) :normal (vec3 0 0 1) :extent 50)
	// -----------------------------------------------------------------------
	env.AddFunction("plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		p := surface.Plane{Normal: v3.Vec{Z: 1}}
		if _, err := pa.vec("point", &p.Point); err != nil {
			return zygo.SexpNull, fmt.Errorf("plane: %w", err)
		}
		if _, err := pa.vec("normal", &p.Normal); err != nil {
			return zygo.SexpNull, fmt.Errorf("plane: %w", err)
		}
		if p.Normal.Length() == 0 {
			return zygo.SexpNull, fmt.Errorf("plane: normal must be non-zero")
		}
		if err := pa.float("extent", &p.Extent); err != nil {
			return zygo.SexpNull, fmt.Errorf("plane: %w", err)
		}
		if p.Extent < 0 {
			return zygo.SexpNull, fmt.Errorf("plane: extent must be non-negative")
		}
		return &sexpSurface{s: p, kind: "plane"}, nil
	})

	// -----------------------------------------------------------------------
	// (mesh :vertices (list x0 y0 z0 x1 y1 z1 ...) :indices (list 0 1 2 ...))
	// -----------------------------------------------------------------------
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		vs, ok := pa.kw["vertices"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("mesh: :vertices is required")
		}
		verts, err := toFloats(vs, -1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh: vertices: %w", err)
		}
		if len(verts)%3 != 0 {
			return zygo.SexpNull, fmt.Errorf("mesh: vertex list length %d is not a multiple of 3", len(verts))
		}
		is, ok := pa.kw["indices"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("mesh: :indices is required")
		}
		items, err := sexpListToSlice(is)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh: indices: %w", err)
		}
		if len(items)%3 != 0 {
			return zygo.SexpNull, fmt.Errorf("mesh: index list length %d is not a multiple of 3", len(items))
		}
		indices := make([]uint32, len(items))
		for i, item := range items {
			n, err := toInt(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh: index %d: %w", i, err)
			}
			if n < 0 || n >= len(verts)/3 {
				return zygo.SexpNull, fmt.Errorf("mesh: index %d: vertex %d out of range", i, n)
			}
			indices[i] = uint32(n)
		}
		return &sexpSurface{s: mesh.New(verts, indices), kind: "mesh"}, nil
	})

	// -----------------------------------------------------------------------
	// (surface shape :mode :sdf)              sphere-trace a solid
	// (surface shape :mode :mesh :cells 120)  tessellate a solid first
	// (surface (plane ...))                   use a plane or mesh as is
	// -----------------------------------------------------------------------
	env.AddFunction("surface", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("surface requires exactly one shape")
		}
		if b.doc.Surface != nil {
			return zygo.SexpNull, fmt.Errorf("surface: already defined (%s)", b.doc.SurfaceKind)
		}

		switch shape := pa.positional[0].(type) {
		case *sexpSurface:
			if _, ok := pa.kw["mode"]; ok {
				return zygo.SexpNull, fmt.Errorf("surface: :mode applies to solids only")
			}
			b.doc.Surface, b.doc.SurfaceKind = shape.s, shape.kind
			return shape, nil

		case *sexpSolid:
			mode := "sdf"
			if v, ok := pa.kw["mode"]; ok {
				m, err := toKeywordString(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("surface: mode: %w", err)
				}
				mode = m
			}
			switch mode {
			case "sdf":
				b.doc.Surface = sdfx.NewTraced(shape.solid, b.opts.Trace)
				b.doc.SurfaceKind = "sdf " + shape.desc
			case "mesh":
				cells := b.opts.MeshCells
				if v, ok := pa.kw["cells"]; ok {
					n, err := toInt(v)
					if err != nil || n <= 0 {
						return zygo.SexpNull, fmt.Errorf("surface: cells must be a positive integer")
					}
					cells = n
				}
				m, err := sdfx.ToMesh(shape.solid, cells)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("surface: %w", err)
				}
				m.Name = shape.desc
				b.doc.Surface = m
				b.doc.SurfaceKind = fmt.Sprintf("mesh %s (%d triangles)", shape.desc, m.TriangleCount())
			default:
				return zygo.SexpNull, fmt.Errorf("surface: invalid mode %q, expected sdf or mesh", mode)
			}
			return &sexpSurface{s: b.doc.Surface, kind: b.doc.SurfaceKind}, nil
		}
		return zygo.SexpNull, fmt.Errorf("surface: expected solid, plane or mesh, got %T", pa.positional[0])
	})
}

func registerReference(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (scene-name "quarry north face")
	// -----------------------------------------------------------------------
	env.AddFunction("scene_name", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("scene-name requires a name")
		}
		n, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene-name: %w", err)
		}
		b.doc.Name = n
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (chunk-transform :scale 1.0 :rotation (list 1 0 0 0 1 0 0 0 1)
	//                  :translation (vec3 0 0 0))
	//
	// Registered as "chunk_transform"; the preprocessor converts the
	// kebab-case name.
	// -----------------------------------------------------------------------
	env.AddFunction("chunk_transform", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		scale := 1.0
		if err := pa.float("scale", &scale); err != nil {
			return zygo.SexpNull, fmt.Errorf("chunk-transform: %w", err)
		}
		rot := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
		if v, ok := pa.kw["rotation"]; ok {
			m, err := toMatrix(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("chunk-transform: rotation: %w", err)
			}
			rot = m
		}
		var t v3.Vec
		if _, err := pa.vec("translation", &t); err != nil {
			return zygo.SexpNull, fmt.Errorf("chunk-transform: %w", err)
		}
		tr, err := crs.NewTransform(scale, rot, t)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("chunk-transform: %w", err)
		}
		b.doc.Transform = tr
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (crs-local)  (crs-geographic)  (crs-topocentric lat lon alt)
	// -----------------------------------------------------------------------
	env.AddFunction("crs_local", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		b.doc.CRS = crs.Local{}
		return zygo.SexpNull, nil
	})
	env.AddFunction("crs_geographic", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		b.doc.CRS = crs.Geographic{}
		return zygo.SexpNull, nil
	})
	env.AddFunction("crs_topocentric", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("crs-topocentric requires latitude, longitude and altitude")
		}
		var v [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("crs-topocentric: argument %d: %w", i+1, err)
			}
			v[i] = f
		}
		if math.Abs(v[0]) > 90 || math.Abs(v[1]) > 180 {
			return zygo.SexpNull, fmt.Errorf("crs-topocentric: origin (%v, %v) out of range", v[0], v[1])
		}
		b.doc.CRS = crs.NewTopocentric(v[0], v[1], v[2])
		return zygo.SexpNull, nil
	})
}
