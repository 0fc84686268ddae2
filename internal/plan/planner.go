package plan

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/loader"
	"github.com/roach88/roadrunner/internal/model"
)

// PolicyLoader loads the fallback safety policy when a request carries none.
type PolicyLoader func() (*model.SafetyPolicy, error)

// ManifestSource resolves adapter manifests by name.
type ManifestSource interface {
	Get(name string) (*model.AdapterManifest, error)
}

// Request is the input of one planning call.
type Request struct {
	Flow *model.FlowDefinition

	// Margin is the margin profile. Nil plans a single trivial point.
	Margin *model.MarginProfile

	// Policy is the safety policy. Nil loads the planner's policy file.
	Policy *model.SafetyPolicy

	// PolicySource is recorded with the plan. Empty means the planner's
	// policy file.
	PolicySource string
}

// Planner turns a flow, margin profile and safety policy into a RunPlan.
//
// Planning is all-or-nothing: any invalid value fails the whole call and no
// plan is returned. Planning never touches the filesystem beyond loading
// the fallback policy.
type Planner struct {
	policyFile   string
	policyLoader PolicyLoader
	manifests    ManifestSource
	ids          IDGenerator
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithPolicyLoader replaces the fallback policy loader.
func WithPolicyLoader(fn PolicyLoader) Option {
	return func(p *Planner) { p.policyLoader = fn }
}

// WithManifests makes planning resolve every step's adapter and check each
// invocation against the adapter's parameter schema.
func WithManifests(src ManifestSource) Option {
	return func(p *Planner) { p.manifests = src }
}

// WithIDGenerator replaces the run identifier generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Planner) { p.ids = g }
}

// WithClock replaces the wall clock used for identifiers and unset seeds.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithLogger sets the planner's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPlanner creates a planner whose fallback policy is read from
// policyFile.
func NewPlanner(policyFile string, opts ...Option) *Planner {
	p := &Planner{
		policyFile: policyFile,
		ids:        HashIDGenerator{},
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	p.policyLoader = func() (*model.SafetyPolicy, error) {
		return loader.LoadSafetyPolicy(p.policyFile)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan validates every value of req against the safety policy and builds the
// run plan.
//
// Errors:
//   - ConfigError: no flow, the fallback policy cannot be loaded, or a
//     step names an unknown adapter
//   - ValidationError / SafetyViolationError: a margin value, step parameter
//     or sweep value fails its bound, or an invocation fails its adapter's
//     parameter schema
func (p *Planner) Plan(req Request) (*RunPlan, error) {
	if req.Flow == nil {
		return nil, model.NewConfigError("plan", "flow is required")
	}

	margin := req.Margin
	if margin == nil {
		margin = model.DefaultMarginProfile()
	}

	policy, source := req.Policy, req.PolicySource
	if policy == nil {
		loaded, err := p.policyLoader()
		if err != nil {
			return nil, fmt.Errorf("load safety policy: %w", err)
		}
		policy = loaded
		source = ""
	}
	if source == "" {
		source = p.policyFile
	}

	now := p.now()
	seed := now.Unix()
	if margin.GlobalSeed != nil {
		seed = *margin.GlobalSeed
	}
	parentID := p.ids.Generate(req.Flow.Path, seed, now)

	points := margin.ExpandPoints()
	subruns := make([]SubRunPlan, 0, len(points))
	for i, point := range points {
		if err := validatePoint(policy, point); err != nil {
			return nil, err
		}

		steps := make([]StepPlan, 0, len(req.Flow.Steps))
		for _, step := range req.Flow.Steps {
			sp, err := p.planStep(policy, point, step)
			if err != nil {
				return nil, fmt.Errorf("%s, step %q: %w", point.ID, step.Name, err)
			}
			steps = append(steps, sp)
		}

		subruns = append(subruns, SubRunPlan{
			ID:    SubRunID(parentID, i),
			Point: point,
			Steps: steps,
		})
	}

	rp := &RunPlan{
		ParentID:     parentID,
		Flow:         req.Flow,
		Margin:       margin,
		Policy:       policy,
		PolicySource: source,
		Seed:         seed,
		SubRuns:      subruns,
	}
	p.logger.Debug("run planned",
		zap.String("run_id", parentID),
		zap.Int64("seed", seed),
		zap.Int("subruns", len(subruns)),
		zap.Int("invocations", rp.InvocationCount()))
	return rp, nil
}

// validatePoint checks every target's values of a margin point.
func validatePoint(policy *model.SafetyPolicy, point model.MarginPoint) error {
	for _, target := range point.Targets() {
		if err := policy.ValidateValues(point.Target(target)); err != nil {
			return fmt.Errorf("%s, target %q: %w", point.ID, target, err)
		}
	}
	return nil
}

func (p *Planner) planStep(policy *model.SafetyPolicy, point model.MarginPoint, step model.FlowStep) (StepPlan, error) {
	margin := StepMargin(point, step.Adapter)
	if err := policy.ValidateValues(margin); err != nil {
		return StepPlan{}, err
	}
	if err := policy.ValidateValues(step.Parameters); err != nil {
		return StepPlan{}, err
	}
	for _, sw := range step.Sweeps {
		if err := policy.ValidateValue(sw.Key, sw.Values); err != nil {
			return StepPlan{}, err
		}
	}
	invocations := step.ExpandedParameters()
	if err := p.checkAdapter(step.Adapter, invocations); err != nil {
		return StepPlan{}, err
	}
	return StepPlan{
		Step:        step,
		Invocations: invocations,
		Margin:      margin,
	}, nil
}

// checkAdapter resolves adapter and builds the command line of every
// invocation without running it.
func (p *Planner) checkAdapter(adapter string, invocations []model.Values) error {
	if p.manifests == nil {
		return nil
	}
	m, err := p.manifests.Get(adapter)
	if err != nil {
		return err
	}
	for i, params := range invocations {
		if _, err := m.BuildCommand(params); err != nil {
			if len(invocations) > 1 {
				return fmt.Errorf("invocation %d: %w", i, err)
			}
			return err
		}
	}
	return nil
}

// StepMargin merges the default target's values with the values of the
// target named adapter. Adapter values win; jitter is dropped.
func StepMargin(point model.MarginPoint, adapter string) model.Values {
	var out model.Values
	sources := []model.Values{point.Target(model.DefaultTarget)}
	if adapter != model.DefaultTarget {
		sources = append(sources, point.Target(adapter))
	}
	for _, src := range sources {
		src.Each(func(key string, value any) {
			if key != model.JitterKey {
				out.Set(key, value)
			}
		})
	}
	return out
}

// CheckProfile validates every point of profile against policy without
// building a plan.
func CheckProfile(profile *model.MarginProfile, policy *model.SafetyPolicy) error {
	if profile == nil || policy == nil {
		return errors.New("profile and policy are required")
	}
	for _, point := range profile.ExpandPoints() {
		if err := validatePoint(policy, point); err != nil {
			return err
		}
	}
	return nil
}
