// Package model defines the typed entities a validation campaign is built from.
//
// Configuration documents are converted into these types at the loading
// boundary (see internal/loader); nothing downstream inspects raw YAML maps.
//
// # Entities
//
//   - FlowDefinition / FlowStep: ordered diagnostic steps and their sweeps
//   - MarginProfile / TargetMargins: per-target fixed values, sweeps and jitter
//   - MarginPoint: one concrete combination produced by ExpandPoints
//   - SafetyPolicy / Bound: the numeric fence every planned value must pass
//   - AdapterManifest / AdapterParameter: how a diagnostic executable is called
//
// # Ordering
//
// Parameter maps are Values, an insertion-ordered map. Declaration order is
// significant: it fixes the Cartesian product order of sweeps, the order of
// command-line flags, and therefore the identity of every margin point across
// re-runs of the same profile.
//
// # Errors
//
// ConfigError, ValidationError, SafetyViolationError and ExecutionError form
// the error taxonomy shared by the planner, invoker and executor. A
// SafetyViolationError is also a ValidationError under errors.As.
package model
