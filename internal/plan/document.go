package plan

import "github.com/roach88/roadrunner/internal/model"

// Document is the plan.json view of a RunPlan.
type Document struct {
	RunID        string           `json:"run_id"`
	Flow         FlowRef          `json:"flow"`
	Margin       MarginRef        `json:"margin"`
	SafetyPolicy PolicyDocument   `json:"safety_policy"`
	Seed         int64            `json:"seed"`
	SubRuns      []SubRunDocument `json:"subruns"`
}

// FlowRef identifies the flow of a run.
type FlowRef struct {
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata"`
}

// MarginRef identifies the margin profile of a run. Path is nil for the
// default profile.
type MarginRef struct {
	Path     *string        `json:"path"`
	Metadata map[string]any `json:"metadata"`
}

// PolicyDocument is the safety policy as recorded in plan.json and
// safety_policy.json.
type PolicyDocument struct {
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata"`
	Behavior  map[string]any `json:"behavior"`
	AVTBounds model.Values   `json:"avt_bounds"`
}

// SubRunDocument is one sub-run of plan.json.
type SubRunDocument struct {
	RunID       string            `json:"run_id"`
	MarginPoint model.MarginPoint `json:"margin_point"`
	Steps       []StepDocument    `json:"steps"`
}

// StepDocument is one step of a planned sub-run.
type StepDocument struct {
	Name        string         `json:"name"`
	Adapter     string         `json:"adapter"`
	Margin      model.Values   `json:"margin"`
	Invocations []model.Values `json:"invocations"`
}

// Document builds the serializable view of the plan.
func (p *RunPlan) Document() Document {
	doc := Document{
		RunID:        p.ParentID,
		Flow:         p.FlowRef(),
		Margin:       p.MarginRef(),
		SafetyPolicy: p.PolicyDocument(),
		Seed:         p.Seed,
		SubRuns:      make([]SubRunDocument, 0, len(p.SubRuns)),
	}
	for _, sub := range p.SubRuns {
		sd := SubRunDocument{
			RunID:       sub.ID,
			MarginPoint: sub.Point,
			Steps:       make([]StepDocument, 0, len(sub.Steps)),
		}
		for _, step := range sub.Steps {
			sd.Steps = append(sd.Steps, StepDocument{
				Name:        step.Step.Name,
				Adapter:     step.Step.Adapter,
				Margin:      step.Margin,
				Invocations: step.Invocations,
			})
		}
		doc.SubRuns = append(doc.SubRuns, sd)
	}
	return doc
}

// FlowRef returns the flow reference recorded in plan and summary.
func (p *RunPlan) FlowRef() FlowRef {
	return FlowRef{Path: p.Flow.Path, Metadata: orEmpty(p.Flow.Metadata)}
}

// MarginRef returns the margin reference recorded in plan and summary.
func (p *RunPlan) MarginRef() MarginRef {
	ref := MarginRef{Metadata: map[string]any{}}
	if p.Margin != nil {
		ref.Metadata = orEmpty(p.Margin.Metadata)
		if p.Margin.Path != "" {
			path := p.Margin.Path
			ref.Path = &path
		}
	}
	return ref
}

// PolicyDocument returns the safety policy with its source and bounds.
func (p *RunPlan) PolicyDocument() PolicyDocument {
	return PolicyDocument{
		Source:    p.PolicySource,
		Metadata:  orEmpty(p.Policy.Metadata),
		Behavior:  orEmpty(p.Policy.Behavior),
		AVTBounds: p.Policy.BoundsDocument(),
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
