package model

import "fmt"

// JitterKey is the entry a target's jitter map is stored under in a point's
// values. It is never safety-validated and never reaches a step's margin.
const JitterKey = "jitter"

// DefaultTarget is the target whose values apply to every step.
const DefaultTarget = "default"

// SettingKind distinguishes a fixed value from a sweep.
type SettingKind int

const (
	// SettingFixed holds a single value.
	SettingFixed SettingKind = iota
	// SettingSweep holds an ordered list of values.
	SettingSweep
)

func (k SettingKind) String() string {
	switch k {
	case SettingFixed:
		return "fixed"
	case SettingSweep:
		return "sweep"
	default:
		return fmt.Sprintf("SettingKind(%d)", int(k))
	}
}

// Setting is one declared margin parameter: either Fixed(Value) or
// Sweep(Values).
type Setting struct {
	Name   string
	Kind   SettingKind
	Value  any
	Values []any
}

// Fixed returns a fixed setting.
func Fixed(name string, value any) Setting {
	return Setting{Name: name, Kind: SettingFixed, Value: value}
}

// Swept returns a sweep setting.
func Swept(name string, values ...any) Setting {
	return Setting{Name: name, Kind: SettingSweep, Values: values}
}

// TargetMargins holds the margin settings for one target.
type TargetMargins struct {
	Name   string
	Fixed  Values
	Sweeps []Sweep

	// Jitter is passed through verbatim. Nil when not declared.
	Jitter map[string]any
}

// Apply routes a setting into Fixed or Sweeps.
func (t *TargetMargins) Apply(s Setting) {
	switch s.Kind {
	case SettingSweep:
		t.Sweeps = append(t.Sweeps, Sweep{Key: s.Name, Values: s.Values})
	default:
		t.Fixed.Set(s.Name, s.Value)
	}
}

// baseline returns the fixed values plus jitter, the starting point every
// margin point of this target is built from.
func (t TargetMargins) baseline() Values {
	base := t.Fixed.Clone()
	if len(t.Jitter) > 0 {
		base.Set(JitterKey, cloneValue(t.Jitter))
	}
	return base
}

// MarginPoint is one concrete combination of margin values.
type MarginPoint struct {
	// ID is "point-<index>".
	ID string `json:"id"`

	// Values maps target name to that target's values, in target order.
	// Every entry is a Values.
	Values Values `json:"values"`

	Seed int64 `json:"seed"`
}

// Target returns the values for the named target, empty if absent.
func (p MarginPoint) Target(name string) Values {
	raw, ok := p.Values.Get(name)
	if !ok {
		return Values{}
	}
	v, _ := raw.(Values)
	return v
}

// Targets returns the target names in declaration order.
func (p MarginPoint) Targets() []string {
	return p.Values.Keys()
}

// MarginProfile declares per-target margins for a campaign.
type MarginProfile struct {
	// Path is the file the profile was loaded from. Empty for the default
	// profile.
	Path string

	Metadata map[string]any

	// GlobalSeed seeds the point seeds. Nil means unset.
	GlobalSeed *int64

	Targets []TargetMargins
}

// DefaultMarginProfile returns the profile used when none is given: a single
// empty "default" target, which expands to exactly one trivial point.
func DefaultMarginProfile() *MarginProfile {
	return &MarginProfile{
		Metadata: map[string]any{},
		Targets:  []TargetMargins{{Name: DefaultTarget}},
	}
}

// Target returns the named target.
func (m *MarginProfile) Target(name string) (TargetMargins, bool) {
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetMargins{}, false
}

// HasSweeps reports whether any target declares a sweep.
func (m *MarginProfile) HasSweeps() bool {
	for _, t := range m.Targets {
		if len(t.Sweeps) > 0 {
			return true
		}
	}
	return false
}

// seedBase returns the global seed, or 0 when unset.
func (m *MarginProfile) seedBase() int64 {
	if m.GlobalSeed == nil {
		return 0
	}
	return *m.GlobalSeed
}

// ExpandPoints returns the ordered margin points of the profile.
//
// Without sweeps the result is the single point "point-0" carrying each
// target's baseline. With sweeps, the Cartesian product is taken over every
// (target, key) sweep in target then key declaration order; point i is the
// baseline with that combination overlaid and seed GlobalSeed+i.
//
// The result depends only on the profile: expanding the same profile twice
// yields identical ids, seeds and values.
func (m *MarginProfile) ExpandPoints() []MarginPoint {
	var base Values
	for _, t := range m.Targets {
		base.Set(t.Name, t.baseline())
	}
	seed := m.seedBase()

	if !m.HasSweeps() {
		return []MarginPoint{{ID: pointID(0), Values: base, Seed: seed}}
	}

	type entry struct {
		target string
		key    string
	}
	var entries []entry
	var lists [][]any
	for _, t := range m.Targets {
		for _, sw := range t.Sweeps {
			entries = append(entries, entry{target: t.Name, key: sw.Key})
			lists = append(lists, sw.Values)
		}
	}

	points := []MarginPoint{}
	cartesian(lists, func(index int, combo []any) {
		values := base.Clone()
		for i, e := range entries {
			raw, _ := values.Get(e.target)
			target := raw.(Values)
			target.Set(e.key, cloneValue(combo[i]))
			values.Set(e.target, target)
		}
		points = append(points, MarginPoint{
			ID:     pointID(index),
			Values: values,
			Seed:   seed + int64(index),
		})
	})
	return points
}

func pointID(index int) string {
	return fmt.Sprintf("point-%d", index)
}
