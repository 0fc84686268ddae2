package model

import "strings"

// Adapter parameter types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
)

// AdapterParameter is the schema for one key an adapter accepts.
type AdapterParameter struct {
	// Type is string, integer or float. Empty means string.
	Type string

	// Allowed restricts the value to a set when non-empty.
	Allowed []any

	Min *float64
	Max *float64
}

// Numeric reports whether the parameter requires a number.
func (p AdapterParameter) Numeric() bool {
	return p.Type == TypeInteger || p.Type == TypeFloat
}

// Validate checks value against the schema.
func (p AdapterParameter) Validate(name string, value any) error {
	if len(p.Allowed) > 0 && !p.allows(value) {
		return NewValidationError(name, "value %s not in allowed set %s", FormatValue(value), FormatValue(p.Allowed))
	}
	if !p.Numeric() {
		return nil
	}
	f, ok := ToFloat(value)
	if !ok {
		return NewValidationError(name, "expected %s value, got %s", p.Type, FormatValue(value))
	}
	if p.Min != nil && f < *p.Min {
		return NewValidationError(name, "value %s below minimum %s", formatFloat(f), formatFloat(*p.Min))
	}
	if p.Max != nil && f > *p.Max {
		return NewValidationError(name, "value %s above maximum %s", formatFloat(f), formatFloat(*p.Max))
	}
	return nil
}

func (p AdapterParameter) allows(value any) bool {
	for _, a := range p.Allowed {
		if valuesEqual(a, value) {
			return true
		}
	}
	return false
}

// NamedParameter pairs a parameter schema with its key.
type NamedParameter struct {
	Name      string
	Parameter AdapterParameter
}

// AdapterManifest describes how to invoke one diagnostic executable.
type AdapterManifest struct {
	Name string

	// Path is the executable: absolute, or a name resolved through PATH.
	Path string

	// Parameters in declaration order.
	Parameters []NamedParameter

	// Args are placed before any parameter flags.
	Args []string

	Description string

	// Source is the manifest file.
	Source string
}

// Parameter returns the schema for key.
func (m *AdapterManifest) Parameter(key string) (AdapterParameter, bool) {
	for _, np := range m.Parameters {
		if np.Name == key {
			return np.Parameter, true
		}
	}
	return AdapterParameter{}, false
}

// BuildCommand validates params and returns the argv.
//
// Keys without a schema pass unvalidated. The argv is the path, the fixed
// args, then one flag per key in params order: a bool true is a bare flag, a
// bool false is omitted, anything else is the flag followed by its string
// form. Underscores in keys become dashes.
func (m *AdapterManifest) BuildCommand(params Values) ([]string, error) {
	for _, key := range params.Keys() {
		schema, ok := m.Parameter(key)
		if !ok {
			continue
		}
		v, _ := params.Get(key)
		if err := schema.Validate(key, v); err != nil {
			return nil, err
		}
	}

	argv := make([]string, 0, 1+len(m.Args)+2*params.Len())
	argv = append(argv, m.Path)
	argv = append(argv, m.Args...)
	params.Each(func(key string, value any) {
		flag := "--" + strings.ReplaceAll(key, "_", "-")
		if b, ok := value.(bool); ok {
			if b {
				argv = append(argv, flag)
			}
			return
		}
		argv = append(argv, flag, FormatValue(value))
	})
	return argv, nil
}
