package scene

import "fmt"

// ValidationSeverity indicates whether a finding blocks evaluation or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Camera   string             // camera name, empty for document-level findings
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Camera == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] camera %s: %s", e.Severity, e.Camera, e.Message)
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether the document can be evaluated.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate checks the document before evaluation. It is read-only.
func (d *Document) Validate() ValidationResult {
	var all []ValidationError
	all = append(all, d.validateSurface()...)
	all = append(all, d.validateCameras()...)
	all = append(all, d.validateCRS()...)

	var r ValidationResult
	for _, e := range all {
		if e.Severity == SeverityError {
			r.Errors = append(r.Errors, e)
		} else {
			r.Warnings = append(r.Warnings, e)
		}
	}
	return r
}

func (d *Document) validateSurface() []ValidationError {
	if d.Surface == nil {
		return []ValidationError{{Message: "document has no surface", Severity: SeverityError}}
	}
	return nil
}

func (d *Document) validateCameras() []ValidationError {
	var errs []ValidationError
	labels := make(map[string]int)
	var order []string // labels in first-seen order
	enabled := 0

	for i, c := range d.Cameras {
		if c == nil {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("camera slot %d is empty", i),
				Severity: SeverityError,
			})
			continue
		}
		if c.Index != i {
			errs = append(errs, ValidationError{
				Camera:   c.Name(),
				Message:  fmt.Sprintf("index %d does not match position %d", c.Index, i),
				Severity: SeverityError,
			})
		}
		if c.Label != "" {
			if labels[c.Label] == 0 {
				order = append(order, c.Label)
			}
			labels[c.Label]++
		}
		if !c.Enabled {
			continue
		}
		enabled++
		if c.Sensor == nil {
			errs = append(errs, ValidationError{
				Camera:   c.Name(),
				Message:  "enabled camera has no sensor",
				Severity: SeverityError,
			})
			continue
		}
		if err := c.Sensor.Calibration.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Camera:   c.Name(),
				Message:  fmt.Sprintf("sensor %q: %v", c.Sensor.Label, err),
				Severity: SeverityError,
			})
		}
	}

	for _, label := range order {
		if n := labels[label]; n > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("camera label %q is used %d times", label, n),
				Severity: SeverityWarning,
			})
		}
	}
	if enabled == 0 {
		errs = append(errs, ValidationError{
			Message:  "document has no enabled cameras",
			Severity: SeverityWarning,
		})
	}
	return errs
}

func (d *Document) validateCRS() []ValidationError {
	if p := d.Projection(); !p.Metric() {
		return []ValidationError{{
			Message:  fmt.Sprintf("reference system %s is not metric; center distances will mix units", p.Name()),
			Severity: SeverityWarning,
		}}
	}
	return nil
}
