package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/roadrunner/internal/artifact"
	"github.com/roach88/roadrunner/internal/model"
	"github.com/roach88/roadrunner/internal/plan"
)

// Invoker runs one adapter invocation. *adapter.Invoker implements it.
//
// Only an ExecutionError is treated as a failed step.
type Invoker interface {
	Run(ctx context.Context, name string, params model.Values, stdout, stderr io.Writer, env []string) error
}

// Reporter renders human-readable reports from a completed summary.
type Reporter interface {
	Render(summary *Summary, paths artifact.RunPaths) error
}

// Indexer records a summary in the run index.
type Indexer interface {
	RecordSummary(ctx context.Context, summary *Summary, summaryPath string) error
}

// SysInfoCollector snapshots the host.
type SysInfoCollector interface {
	Collect(ctx context.Context) map[string]string
}

// Clock reads the wall clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ExecuteOptions are the per-run inputs of Execute.
type ExecuteOptions struct {
	// Unit identifies the unit under test. Empty records null.
	Unit string

	// DryRun writes the plan artifacts and initial summary only.
	DryRun bool

	// SysInfo is the host snapshot. Nil asks the collector.
	SysInfo map[string]string
}

// Executor walks a RunPlan and writes its artifact tree.
//
// Execution is strictly sequential: sub-runs, steps and invocations run one
// at a time in plan order. The first failed invocation of a sub-run aborts
// the rest of that sub-run; later sub-runs still run.
//
// An Executor holds no per-run state and may be reused.
type Executor struct {
	runsDir   string
	invoker   Invoker
	reporter  Reporter
	indexer   Indexer
	collector SysInfoCollector
	clock     Clock
	environ   func() []string
	version   string
	logger    *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithReporter renders reports after the last sub-run.
func WithReporter(r Reporter) Option {
	return func(e *Executor) { e.reporter = r }
}

// WithIndexer records every run in an index.
func WithIndexer(i Indexer) Option {
	return func(e *Executor) { e.indexer = i }
}

// WithSysInfoCollector supplies snapshots when ExecuteOptions has none.
func WithSysInfoCollector(c SysInfoCollector) Option {
	return func(e *Executor) { e.collector = c }
}

// WithClock replaces the wall clock. A clock that also implements
// zapcore.Clock stamps the step event logs.
func WithClock(c Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithEnviron replaces the base environment handed to adapters.
func WithEnviron(fn func() []string) Option {
	return func(e *Executor) { e.environ = fn }
}

// WithVersion sets the version recorded in summaries.
func WithVersion(v string) Option {
	return func(e *Executor) { e.version = v }
}

// WithLogger sets the executor's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor writing runs under runsDir.
func NewExecutor(runsDir string, invoker Invoker, opts ...Option) *Executor {
	e := &Executor{
		runsDir: runsDir,
		invoker: invoker,
		clock:   systemClock{},
		environ: os.Environ,
		version: "dev",
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Paths returns the artifact layout of a run.
func (e *Executor) Paths(runID string) artifact.RunPaths {
	return artifact.NewRunPaths(e.runsDir, runID)
}

// Execute runs rp and returns its summary.
//
// plan.json, sysinfo.json, safety_policy.json and an initial summary.json
// are written before anything runs. A dry run stops there. Otherwise the
// top-level summary is rewritten after every sub-run, so an interrupted run
// leaves the sub-runs completed so far on disk.
//
// An ExecutionError from the invoker is a FAIL result in the summary, not
// an error. The error is non-nil when artifacts cannot be written, ctx is
// cancelled between invocations, the invoker fails with any other error
// (an unknown adapter or a parameter the adapter rejects), or reporting or
// indexing fails after all artifacts are written. The summary is nil only
// when the initial artifacts cannot be written.
func (e *Executor) Execute(ctx context.Context, rp *plan.RunPlan, opts ExecuteOptions) (*Summary, error) {
	paths := e.Paths(rp.ParentID)
	log := e.logger.With(zap.String("run_id", rp.ParentID))

	if err := artifact.WriteJSON(paths.Plan(), rp.Document()); err != nil {
		return nil, err
	}

	sysinfo := opts.SysInfo
	if sysinfo == nil {
		if e.collector != nil {
			sysinfo = e.collector.Collect(ctx)
		} else {
			sysinfo = map[string]string{}
		}
	}
	if err := artifact.WriteJSON(paths.SysInfo(), sysinfo); err != nil {
		return nil, err
	}
	if err := artifact.WriteJSON(paths.SafetyPolicy(), rp.PolicyDocument()); err != nil {
		return nil, err
	}

	summary := e.newSummary(rp, opts)
	if err := artifact.WriteJSON(paths.Summary(), summary); err != nil {
		return nil, err
	}

	if opts.DryRun {
		log.Info("dry run prepared", zap.Int("subruns", len(rp.SubRuns)))
		return summary, e.index(ctx, summary, paths)
	}

	log.Info("run started",
		zap.Int("subruns", len(rp.SubRuns)),
		zap.Int("invocations", rp.InvocationCount()))

	for _, sub := range rp.SubRuns {
		result, runErr := e.executeSubRun(ctx, rp, sub, paths)
		summary.SubRuns = append(summary.SubRuns, result)
		if err := artifact.WriteJSON(paths.Summary(), summary); err != nil {
			return summary, err
		}
		if runErr != nil {
			log.Warn("run interrupted", zap.Error(runErr))
			return summary, runErr
		}
	}

	log.Info("run finished", zap.String("status", string(summary.Status())))

	var errs []error
	if e.reporter != nil {
		if err := e.reporter.Render(summary, paths); err != nil {
			log.Error("render reports", zap.Error(err))
			errs = append(errs, fmt.Errorf("render reports: %w", err))
		}
	}
	if err := e.index(ctx, summary, paths); err != nil {
		errs = append(errs, err)
	}
	return summary, errors.Join(errs...)
}

func (e *Executor) index(ctx context.Context, summary *Summary, paths artifact.RunPaths) error {
	if e.indexer == nil {
		return nil
	}
	if err := e.indexer.RecordSummary(ctx, summary, paths.Summary()); err != nil {
		e.logger.Error("index run", zap.String("run_id", summary.RunID), zap.Error(err))
		return fmt.Errorf("index run: %w", err)
	}
	return nil
}

func (e *Executor) newSummary(rp *plan.RunPlan, opts ExecuteOptions) *Summary {
	var unit *string
	if opts.Unit != "" {
		u := opts.Unit
		unit = &u
	}
	return &Summary{
		RunID:     rp.ParentID,
		CreatedAt: artifact.Timestamp(e.clock.Now()),
		Unit:      unit,
		Seed:      rp.Seed,
		DryRun:    opts.DryRun,
		Flow:      rp.FlowRef(),
		Margin:    rp.MarginRef(),
		SafetyPolicy: PolicyRef{
			Source:   rp.PolicySource,
			Metadata: rp.PolicyDocument().Metadata,
		},
		Environment: map[string]string{
			"go":         runtime.Version(),
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
			"roadrunner": e.version,
		},
		SubRuns: []SubRunSummary{},
	}
}

// executeSubRun runs one sub-run to PASS or FAIL and writes its summary.
// The error is non-nil when ctx was cancelled, the sub-run directory could
// not be created, or an invocation failed with anything other than an
// ExecutionError.
func (e *Executor) executeSubRun(ctx context.Context, rp *plan.RunPlan, sub plan.SubRunPlan, paths artifact.RunPaths) (SubRunSummary, error) {
	start := e.clock.Now()
	result := SubRunSummary{
		RunID:     sub.ID,
		Margin:    PointRef{PointID: sub.Point.ID, Values: sub.Point.Values},
		Status:    StatusPending,
		StartedAt: artifact.Timestamp(start),
		Steps:     []StepResult{},
	}
	log := e.logger.With(zap.String("subrun_id", sub.ID), zap.String("point", sub.Point.ID))

	if err := os.MkdirAll(paths.SubRunDir(sub.ID), 0755); err != nil {
		result.Status = StatusFail
		return result, fmt.Errorf("create sub-run directory: %w", err)
	}

	var eventClock zapcore.Clock
	if c, ok := e.clock.(zapcore.Clock); ok {
		eventClock = c
	}
	events, err := artifact.NewEventLog(paths.SubRunLog(sub.ID), eventClock)
	if err != nil {
		result.Status = StatusFail
		return result, err
	}

	var runErr error
steps:
	for stepIndex, step := range sub.Steps {
		for i, params := range step.Invocations {
			if err := ctx.Err(); err != nil {
				result.Status = StatusFail
				runErr = err
				break steps
			}
			r, err := e.invoke(ctx, rp, sub, step, stepIndex, i, params, paths, events)
			if err != nil {
				log.Error("run aborted", zap.String("step", step.Label(i)), zap.Error(err))
				result.Status = StatusFail
				runErr = fmt.Errorf("sub-run %s, step %q: %w", sub.ID, step.Label(i), err)
				break steps
			}
			log.Info("step finished",
				zap.String("step", r.Name),
				zap.String("adapter", r.Adapter),
				zap.String("status", string(r.Status)),
				zap.Float64("duration", r.DurationS))
			if result.Record(r) == Abort {
				log.Warn("sub-run aborted", zap.String("step", r.Name), zap.String("error", r.ErrorMessage()))
				break steps
			}
		}
	}

	if err := events.Err(); err != nil {
		log.Warn("step events not recorded", zap.Error(err))
	}

	result.finish()
	end := e.clock.Now()
	result.DurationS = end.Sub(start).Seconds()
	result.CompletedAt = artifact.Timestamp(end)

	if err := artifact.WriteJSON(paths.SubRunSummary(sub.ID), result); err != nil {
		return result, err
	}
	return result, runErr
}

// invoke runs one invocation and records its start and end events.
//
// An ExecutionError fails the step. Any other error is returned with no
// result and aborts the run.
func (e *Executor) invoke(
	ctx context.Context,
	rp *plan.RunPlan,
	sub plan.SubRunPlan,
	step plan.StepPlan,
	stepIndex, invocation int,
	params model.Values,
	paths artifact.RunPaths,
	events *artifact.EventLog,
) (StepResult, error) {
	label := step.Label(invocation)
	ev := artifact.StepEvent{
		SubRunID:   sub.ID,
		Step:       label,
		Adapter:    step.Step.Adapter,
		Parameters: params,
	}
	stdoutPath := paths.StepStdout(sub.ID, step.Step.Name, stepIndex, invocation)
	stderrPath := paths.StepStderr(sub.ID, step.Step.Name, stepIndex, invocation)
	env := StepEnvironment(e.environ(), rp, sub, step, params)

	events.Start(ev)
	start := e.clock.Now()
	err := e.runCaptured(ctx, step.Step.Adapter, params, stdoutPath, stderrPath, env)
	duration := e.clock.Now().Sub(start)

	status := StatusPass
	var errMsg *string
	if err != nil {
		status = StatusFail
		msg := err.Error()
		errMsg = &msg
	}
	events.End(ev, string(status), duration, derefString(errMsg))
	if err != nil && !model.IsExecutionError(err) {
		return StepResult{}, err
	}

	return StepResult{
		Name:       label,
		Adapter:    step.Step.Adapter,
		Status:     status,
		DurationS:  duration.Seconds(),
		Parameters: params,
		Artifacts: Captures{
			Stdout: paths.Rel(stdoutPath),
			Stderr: paths.Rel(stderrPath),
		},
		Margin: step.Margin,
		Error:  errMsg,
	}, nil
}

// runCaptured opens fresh capture files, runs the adapter and closes them.
func (e *Executor) runCaptured(ctx context.Context, adapter string, params model.Values, stdoutPath, stderrPath string, env []string) error {
	stdout, err := createCapture(stdoutPath)
	if err != nil {
		return err
	}
	defer stdout.Close()

	stderr, err := createCapture(stderrPath)
	if err != nil {
		return err
	}
	defer stderr.Close()

	return e.invoker.Run(ctx, adapter, params, stdout, stderr, env)
}

func createCapture(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	return f, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
