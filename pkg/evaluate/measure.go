package evaluate

import (
	"encoding/json"
	"strconv"
)

// Sentinel marks an unknown value in legacy text output.
const Sentinel = -1.0

// Measure is a scalar that may be unknown because a probe ray missed the
// surface. The zero value is unknown.
type Measure struct {
	v  float64
	ok bool
}

// Some returns a known measure.
func Some(v float64) Measure { return Measure{v: v, ok: true} }

// None returns an unknown measure.
func None() Measure { return Measure{} }

// Get returns the value and whether it is known.
func (m Measure) Get() (float64, bool) { return m.v, m.ok }

// Valid reports whether the value is known.
func (m Measure) Valid() bool { return m.ok }

// Legacy returns the value, or Sentinel when unknown.
func (m Measure) Legacy() float64 {
	if !m.ok {
		return Sentinel
	}
	return m.v
}

func (m Measure) String() string {
	if !m.ok {
		return "unknown"
	}
	return strconv.FormatFloat(m.v, 'g', -1, 64)
}

// MarshalJSON encodes an unknown measure as null.
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.ok {
		return []byte("null"), nil
	}
	return json.Marshal(m.v)
}

// UnmarshalJSON accepts a number or null.
func (m *Measure) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = Some(v)
	return nil
}

// Equal reports whether two measures are both unknown or both known with
// the same value.
func (m Measure) Equal(o Measure) bool {
	return m.ok == o.ok && (!m.ok || m.v == o.v)
}
