package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/roadrunner/internal/model"
)

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Range is a bound on name with both sides set.
func Range(name string, min, max float64) model.NamedBound {
	return model.NamedBound{Name: name, Bound: model.Bound{Min: Float(min), Max: Float(max)}}
}

// Policy builds a safety policy from bounds.
func Policy(bounds ...model.NamedBound) *model.SafetyPolicy {
	return &model.SafetyPolicy{
		Metadata: map[string]any{"name": "test-policy"},
		Bounds:   bounds,
		Behavior: map[string]any{"on_violation": "abort"},
	}
}

// Step builds a flow step.
func Step(name, adapter string, params model.Values, sweeps ...model.Sweep) model.FlowStep {
	return model.FlowStep{Name: name, Adapter: adapter, Parameters: params, Sweeps: sweeps}
}

// Flow builds a flow recorded as loaded from path.
func Flow(path string, steps ...model.FlowStep) *model.FlowDefinition {
	return &model.FlowDefinition{
		Path:     path,
		Metadata: map[string]any{"name": filepath.Base(path)},
		Steps:    steps,
	}
}

// FixedMargin builds a margin profile with one target of fixed values.
func FixedMargin(target string, values model.Values) *model.MarginProfile {
	return &model.MarginProfile{
		Metadata: map[string]any{},
		Targets:  []model.TargetMargins{{Name: target, Fixed: values}},
	}
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// WriteScript writes an executable /bin/sh script to dir/name and returns
// the path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := WriteFile(t, dir, name, "#!/bin/sh\n"+body+"\n")
	require.NoError(t, os.Chmod(path, 0755))
	return path
}
