package plan

import (
	"fmt"

	"github.com/roach88/roadrunner/internal/model"
)

// RunPlan is the complete, validated work of one run.
//
// A RunPlan only exists if every value in it passed the safety policy. It is
// never mutated after Plan returns.
type RunPlan struct {
	// ParentID is the run identifier, "rr-<timestamp>-<hash>".
	ParentID string

	Flow   *model.FlowDefinition
	Margin *model.MarginProfile
	Policy *model.SafetyPolicy

	// PolicySource names where Policy came from: a policy file or the
	// auto-selected profile file.
	PolicySource string

	// Seed is the global seed of the run.
	Seed int64

	SubRuns []SubRunPlan
}

// SubRunPlan is the flow executed at one margin point.
type SubRunPlan struct {
	// ID is "<parent>-s<NN>".
	ID string

	Point model.MarginPoint
	Steps []StepPlan
}

// StepPlan is one flow step with its invocations expanded.
type StepPlan struct {
	Step model.FlowStep

	// Invocations holds one parameter set per sweep combination.
	Invocations []model.Values

	// Margin is the default target's values overlaid with the values of the
	// target named after the step's adapter, without jitter.
	Margin model.Values
}

// Label names invocation i in logs and summaries: the bare step name when
// the step runs once, "name[i]" otherwise.
func (s StepPlan) Label(i int) string {
	if len(s.Invocations) == 1 {
		return s.Step.Name
	}
	return fmt.Sprintf("%s[%d]", s.Step.Name, i)
}

// InvocationCount returns the total number of adapter invocations in the plan.
func (p *RunPlan) InvocationCount() int {
	n := 0
	for _, sub := range p.SubRuns {
		for _, step := range sub.Steps {
			n += len(step.Invocations)
		}
	}
	return n
}

// MarginPath returns the margin profile file, empty for the default profile.
func (p *RunPlan) MarginPath() string {
	if p.Margin == nil {
		return ""
	}
	return p.Margin.Path
}
