package features

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Violation describes one failed constraint on one field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated constraint of a rejected input.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "invalid features: " + strings.Join(parts, "; ")
}

// Has reports whether field has at least one violation.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

type validator struct {
	raw        map[string]any
	violations []Violation
}

func (v *validator) fail(field, format string, args ...any) {
	v.violations = append(v.violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate builds a canonical FeatureRecord from untyped input. All fields are
// checked; the returned *ValidationError lists every violation, not just the first.
// Touchscreen and IPS default to 0 when omitted, every other field is required.
// Unknown keys are ignored.
func Validate(raw map[string]any) (FeatureRecord, error) {
	v := &validator{raw: raw}

	rec := FeatureRecord{
		Company:     v.enum(FieldCompany, Companies),
		TypeName:    v.enum(FieldTypeName, TypeNames),
		RAM:         v.ram(),
		Weight:      v.float(FieldWeight, MinWeight, MaxWeight),
		Touchscreen: v.flag(FieldTouchscreen),
		IPS:         v.flag(FieldIPS),
		PPI:         v.float(FieldPPI, MinPPI, MaxPPI),
		CPUBrand:    v.enum(FieldCPUBrand, CPUBrands),
		HDD:         v.integer(FieldHDD, MinHDD, MaxHDD),
		SSD:         v.integer(FieldSSD, MinSSD, MaxSSD),
		GPUBrand:    v.enum(FieldGPUBrand, GPUBrands),
		OS:          v.enum(FieldOS, OSes),
	}

	if len(v.violations) > 0 {
		return FeatureRecord{}, &ValidationError{Violations: v.violations}
	}
	return rec, nil
}

func (v *validator) lookup(field string) (any, bool) {
	val, ok := v.raw[field]
	if !ok || val == nil {
		return nil, false
	}
	return val, true
}

func (v *validator) enum(field string, domain []string) string {
	val, ok := v.lookup(field)
	if !ok {
		v.fail(field, "field required")
		return ""
	}
	s, ok := val.(string)
	if !ok {
		v.fail(field, "must be a string")
		return ""
	}
	if !slices.Contains(domain, s) {
		v.fail(field, "must be one of [%s], got %q", strings.Join(domain, ", "), s)
		return ""
	}
	return s
}

func (v *validator) number(field string) (float64, bool) {
	val, ok := v.lookup(field)
	if !ok {
		v.fail(field, "field required")
		return 0, false
	}
	f, ok := toFloat(val)
	if !ok {
		v.fail(field, "must be a number")
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		v.fail(field, "must be a finite number")
		return 0, false
	}
	return f, true
}

func (v *validator) float(field string, lo, hi float64) float64 {
	f, ok := v.number(field)
	if !ok {
		return 0
	}
	if f < lo || f > hi {
		v.fail(field, "must be between %g and %g, got %g", lo, hi, f)
		return 0
	}
	return f
}

func (v *validator) integer(field string, lo, hi int) int {
	f, ok := v.number(field)
	if !ok {
		return 0
	}
	if f != math.Trunc(f) {
		v.fail(field, "must be a whole number, got %g", f)
		return 0
	}
	if f < float64(lo) || f > float64(hi) {
		v.fail(field, "must be between %d and %d, got %g", lo, hi, f)
		return 0
	}
	return int(f)
}

func (v *validator) ram() int {
	f, ok := v.number(FieldRAM)
	if !ok {
		return 0
	}
	n := int(f)
	if f != math.Trunc(f) || !slices.Contains(RAMSizes, n) {
		v.fail(FieldRAM, "must be one of %v, got %g", RAMSizes, f)
		return 0
	}
	return n
}

// flag accepts 0/1 or a boolean and defaults to 0 when absent.
func (v *validator) flag(field string) int {
	val, ok := v.lookup(field)
	if !ok {
		return 0
	}
	if b, isBool := val.(bool); isBool {
		if b {
			return 1
		}
		return 0
	}
	return v.integer(field, 0, 1)
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
