package engine

import (
	"github.com/roach88/roadrunner/internal/model"
	"github.com/roach88/roadrunner/internal/plan"
)

// Status is the outcome of a sub-run or step invocation.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
)

// Decision tells the executor whether to keep going after a step result.
type Decision int

const (
	// Continue runs the next invocation of the sub-run.
	Continue Decision = iota
	// Abort skips the rest of the sub-run.
	Abort
)

// Summary is the summary.json record of a run. It grows by one sub-run at a
// time and is rewritten after each.
type Summary struct {
	RunID        string            `json:"run_id"`
	CreatedAt    string            `json:"created_at"`
	Unit         *string           `json:"unit"`
	Seed         int64             `json:"seed"`
	DryRun       bool              `json:"dry_run"`
	Flow         plan.FlowRef      `json:"flow"`
	Margin       plan.MarginRef    `json:"margin"`
	SafetyPolicy PolicyRef         `json:"safety_policy"`
	Environment  map[string]string `json:"environment"`
	SubRuns      []SubRunSummary   `json:"subruns"`
}

// PolicyRef identifies the safety policy of a run.
type PolicyRef struct {
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

// Status is FAIL if any sub-run failed, PASS if all passed, and PENDING
// when nothing has completed (including dry runs).
func (s *Summary) Status() Status {
	if len(s.SubRuns) == 0 {
		return StatusPending
	}
	for _, sub := range s.SubRuns {
		if sub.Status != StatusPass {
			return StatusFail
		}
	}
	return StatusPass
}

// UnitLabel returns the unit under test, or "n/a".
func (s *Summary) UnitLabel() string {
	if s.Unit == nil || *s.Unit == "" {
		return "n/a"
	}
	return *s.Unit
}

// MarginLabel returns the margin profile path, or "n/a".
func (s *Summary) MarginLabel() string {
	if s.Margin.Path == nil {
		return "n/a"
	}
	return *s.Margin.Path
}

// SubRunSummary is the record of one sub-run.
type SubRunSummary struct {
	RunID       string       `json:"run_id"`
	Margin      PointRef     `json:"margin"`
	Status      Status       `json:"status"`
	StartedAt   string       `json:"started_at"`
	Steps       []StepResult `json:"steps"`
	DurationS   float64      `json:"duration_s"`
	CompletedAt string       `json:"completed_at,omitempty"`
}

// PointRef identifies the margin point a sub-run executed.
type PointRef struct {
	PointID string       `json:"point_id"`
	Values  model.Values `json:"values"`
}

// Record appends a step result and advances the sub-run state machine.
//
// PENDING becomes FAIL on the first failed result; FAIL is terminal. The
// returned decision is Abort once the sub-run has failed.
func (s *SubRunSummary) Record(r StepResult) Decision {
	s.Steps = append(s.Steps, r)
	if r.Status != StatusPass {
		s.Status = StatusFail
	}
	if s.Status == StatusFail {
		return Abort
	}
	return Continue
}

// finish settles a sub-run that never failed as PASS.
func (s *SubRunSummary) finish() {
	if s.Status == StatusPending {
		s.Status = StatusPass
	}
}

// StepResult is the record of one step invocation.
type StepResult struct {
	Name       string       `json:"name"`
	Adapter    string       `json:"adapter"`
	Status     Status       `json:"status"`
	DurationS  float64      `json:"duration_s"`
	Parameters model.Values `json:"parameters"`
	Artifacts  Captures     `json:"artifacts"`
	Margin     model.Values `json:"margin"`
	Error      *string      `json:"error"`
}

// Captures are the stdio capture files of an invocation, relative to the
// run directory.
type Captures struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// ErrorMessage returns the recorded error, empty if none.
func (r StepResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}
