// Package plan builds immutable run plans.
//
// A plan has one sub-run per margin point and, inside each, one step plan per
// flow step with its sweep invocations expanded. Every margin value, fixed
// step parameter and sweep value is checked against the safety policy before
// the plan is returned, so an invalid campaign never reaches execution.
//
// Run identifiers have the form
//
//	rr-20250301T120000Z-3f9a0c12de
//
// and sub-runs append "-s00", "-s01", ... in margin point order.
package plan
