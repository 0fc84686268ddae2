package artifact

import (
	"fmt"
	"path/filepath"
)

// File names inside a run directory.
const (
	PlanFile         = "plan.json"
	SummaryFile      = "summary.json"
	SysInfoFile      = "sysinfo.json"
	SafetyPolicyFile = "safety_policy.json"
	MarkdownReport   = "report.md"
	HTMLReport       = "report.html"
	StepLogFile      = "steps.ldjson"
	SubRunsDir       = "subruns"
)

// RunPaths lays out the artifact tree of one run:
//
//	<base>/<parent-id>/
//	    plan.json summary.json sysinfo.json safety_policy.json
//	    report.md report.html
//	    subruns/<sub-id>/
//	        summary.json steps.ldjson
//	        stdout/<NN>_<step>[_<II>].log
//	        stderr/<NN>_<step>[_<II>].log
type RunPaths struct {
	Base     string
	ParentID string
}

// NewRunPaths returns the layout for parentID under base.
func NewRunPaths(base, parentID string) RunPaths {
	return RunPaths{Base: base, ParentID: parentID}
}

// Dir is the run directory.
func (p RunPaths) Dir() string { return filepath.Join(p.Base, p.ParentID) }

func (p RunPaths) Plan() string           { return filepath.Join(p.Dir(), PlanFile) }
func (p RunPaths) Summary() string        { return filepath.Join(p.Dir(), SummaryFile) }
func (p RunPaths) SysInfo() string        { return filepath.Join(p.Dir(), SysInfoFile) }
func (p RunPaths) SafetyPolicy() string   { return filepath.Join(p.Dir(), SafetyPolicyFile) }
func (p RunPaths) MarkdownReport() string { return filepath.Join(p.Dir(), MarkdownReport) }
func (p RunPaths) HTMLReport() string     { return filepath.Join(p.Dir(), HTMLReport) }

// SubRunDir is the directory of one sub-run.
func (p RunPaths) SubRunDir(subRunID string) string {
	return filepath.Join(p.Dir(), SubRunsDir, subRunID)
}

// SubRunSummary is the per-sub-run summary file.
func (p RunPaths) SubRunSummary(subRunID string) string {
	return filepath.Join(p.SubRunDir(subRunID), SummaryFile)
}

// SubRunLog is the newline-delimited step event log.
func (p RunPaths) SubRunLog(subRunID string) string {
	return filepath.Join(p.SubRunDir(subRunID), StepLogFile)
}

// StepStdout is the stdout capture of one invocation.
func (p RunPaths) StepStdout(subRunID, stepName string, stepIndex, invocation int) string {
	return filepath.Join(p.SubRunDir(subRunID), "stdout", captureName(stepName, stepIndex, invocation))
}

// StepStderr is the stderr capture of one invocation.
func (p RunPaths) StepStderr(subRunID, stepName string, stepIndex, invocation int) string {
	return filepath.Join(p.SubRunDir(subRunID), "stderr", captureName(stepName, stepIndex, invocation))
}

// Rel returns path relative to the run directory with forward slashes, the
// form recorded in summaries.
func (p RunPaths) Rel(path string) string {
	rel, err := filepath.Rel(p.Dir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// captureName is <NN>_<sanitized>[_<II>].log; the invocation suffix is only
// present for invocations after the first.
func captureName(stepName string, stepIndex, invocation int) string {
	name := fmt.Sprintf("%02d_%s", stepIndex, Sanitize(stepName))
	if invocation > 0 {
		name += fmt.Sprintf("_%02d", invocation)
	}
	return name + ".log"
}
