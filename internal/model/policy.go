package model

import "strconv"

// Bound is a numeric range. A nil side is unbounded.
type Bound struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Validate checks value against the bound.
//
// A nil value passes. A value that is not numeric fails with a
// ValidationError; one outside the range fails with a SafetyViolationError.
func (b Bound) Validate(name string, value any) error {
	if value == nil {
		return nil
	}
	f, ok := ToFloat(value)
	if !ok {
		return NewValidationError(name, "expected numeric value, got %v", FormatValue(value))
	}
	if b.Min != nil && f < *b.Min {
		return newSafetyViolation(name, f, *b.Min, "minimum")
	}
	if b.Max != nil && f > *b.Max {
		return newSafetyViolation(name, f, *b.Max, "maximum")
	}
	return nil
}

func newSafetyViolation(name string, value, limit float64, side string) *SafetyViolationError {
	relation := "below"
	if side == "maximum" {
		relation = "above"
	}
	return &SafetyViolationError{
		ValidationError: ValidationError{
			Name:    name,
			Message: name + ": value " + formatFloat(value) + " " + relation + " " + side + " " + formatFloat(limit),
		},
		Value: value,
		Limit: limit,
		Side:  side,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// NamedBound pairs a bound with its parameter name.
type NamedBound struct {
	Name  string
	Bound Bound
}

// SafetyPolicy fences parameter values with numeric bounds.
//
// The policy is open-world: a name without a bound always passes.
type SafetyPolicy struct {
	Metadata map[string]any

	// Bounds in declaration order.
	Bounds []NamedBound

	// Behavior is recorded for audit and never consulted. Every violation is
	// fatal.
	Behavior map[string]any
}

// Bound returns the bound registered for name.
func (p *SafetyPolicy) Bound(name string) (Bound, bool) {
	for _, nb := range p.Bounds {
		if nb.Name == name {
			return nb.Bound, true
		}
	}
	return Bound{}, false
}

// ValidateValue checks value against the bound for name. Slices are checked
// element by element.
func (p *SafetyPolicy) ValidateValue(name string, value any) error {
	bound, ok := p.Bound(name)
	if !ok {
		return nil
	}
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if err := bound.Validate(name, item); err != nil {
				return err
			}
		}
		return nil
	}
	return bound.Validate(name, value)
}

// ValidateValues checks every entry except jitter.
func (p *SafetyPolicy) ValidateValues(values Values) error {
	for _, key := range values.Keys() {
		if key == JitterKey {
			continue
		}
		v, _ := values.Get(key)
		if err := p.ValidateValue(key, v); err != nil {
			return err
		}
	}
	return nil
}

// BoundsDocument returns the bounds as a name-keyed ordered map of
// {"min", "max"} entries, the shape written to safety_policy.json.
func (p *SafetyPolicy) BoundsDocument() Values {
	var out Values
	for _, nb := range p.Bounds {
		out.Set(nb.Name, nb.Bound)
	}
	return out
}
