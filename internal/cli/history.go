package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/artifact"
	"github.com/roach88/roadrunner/internal/engine"
	"github.com/roach88/roadrunner/internal/export"
	"github.com/roach88/roadrunner/internal/loader"
	"github.com/roach88/roadrunner/internal/plan"
	"github.com/roach88/roadrunner/internal/report"
	"github.com/roach88/roadrunner/internal/store"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate the reports of a run",
		Long: `Re-render report.md and report.html from a run's summary.json, using
the project templates when present.

Example:
  roadrunner report --run-id rr-20260301T120000Z-1a2b3c4d5e`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(rootOpts, runID, cmd)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (required)")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

// ReportResult is the JSON payload of report.
type ReportResult struct {
	RunID    string `json:"run_id"`
	Markdown string `json:"report_md"`
	HTML     string `json:"report_html"`
}

func runReport(opts *RootOptions, runID string, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	paths := artifact.NewRunPaths(p.cfg.RunsDir, runID)
	summary, err := readSummary(paths.Summary())
	if err != nil {
		return p.notFound(fmt.Sprintf("summary not found for run %s", runID), err)
	}
	renderer := report.NewRenderer(p.cfg.TemplatesDir, p.logger)
	if err := renderer.Render(summary, paths); err != nil {
		return p.out.Fail("render reports", err)
	}

	if p.out.JSON() {
		return p.out.Success(ReportResult{RunID: runID, Markdown: paths.MarkdownReport(), HTML: paths.HTMLReport()})
	}
	fmt.Fprintln(p.out.Writer, p.styles.pass.Render(fmt.Sprintf("Regenerated reports for %s", runID)))
	return nil
}

func readSummary(path string) (*engine.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var summary engine.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &summary, nil
}

// notFound reports a missing run or file as a command error.
func (p *project) notFound(message string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		_ = p.out.Error(ErrCodeNotFound, message, nil)
		return WrapExitError(ExitCommandError, ErrCodeNotFound+": "+message, err)
	}
	return p.out.Fail(message, err)
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Run    string
	Type   string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a run's step results",
		Long: `Export one row per step invocation of a run.

The export --format flag selects the file format and shadows the global
output format for this command.

Example:
  roadrunner export --run rr-20260301T120000Z-1a2b3c4d5e --format csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Run, "run", "", "parent run identifier (required)")
	cmd.Flags().StringVar(&opts.Type, "format", "", "export format: csv (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "destination file (default <run>/<run>_export.csv)")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("format")
	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	if !strings.EqualFold(opts.Type, "csv") {
		_ = p.out.Error(ErrCodeGeneric, "only csv export is supported", nil)
		return NewExitError(ExitCommandError, "only csv export is supported")
	}
	runDir := artifact.NewRunPaths(p.cfg.RunsDir, opts.Run).Dir()
	if _, err := os.Stat(runDir); err != nil {
		return p.notFound(fmt.Sprintf("run directory %s not found", runDir), err)
	}
	dest, err := export.CSV(runDir, opts.Output)
	if err != nil {
		return p.out.Fail("export csv", err)
	}
	fmt.Fprintln(p.out.Writer, p.styles.pass.Render(fmt.Sprintf("Exported CSV to %s", dest)))
	return nil
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Run history",
	}

	var limit int
	list := &cobra.Command{
		Use:           "list",
		Short:         "List runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListRuns(rootOpts, limit, cmd)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show (0 for all)")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:           "reindex",
		Short:         "Rebuild the run index from the runs directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(rootOpts, cmd)
		},
	})
	return cmd
}

// RunEntry is one row of runs list.
type RunEntry struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	Unit      string    `json:"unit,omitempty"`
	Flow      string    `json:"flow"`
	SubRuns   int       `json:"subruns"`
	Failed    int       `json:"failed"`
	DryRun    bool      `json:"dry_run"`
}

func runListRuns(opts *RootOptions, limit int, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	runs, err := p.listRuns(cmd, limit)
	if err != nil {
		return p.out.Fail("list runs", err)
	}
	entries := make([]RunEntry, len(runs))
	for i, r := range runs {
		entries[i] = RunEntry{
			RunID:     r.RunID,
			CreatedAt: r.CreatedAt,
			Status:    r.Status,
			Unit:      r.Unit,
			Flow:      r.FlowPath,
			SubRuns:   r.SubRuns,
			Failed:    r.Failed,
			DryRun:    r.DryRun,
		}
	}

	if p.out.JSON() {
		return p.out.Success(entries)
	}
	if len(entries) == 0 {
		p.out.Notice("No runs found under %s", p.relative(p.cfg.RunsDir))
		return nil
	}
	t := table{Title: "Runs", Headers: []string{"Run", "Created", "Status", "Sub-Runs", "Unit", "Flow"}}
	for _, e := range entries {
		unit := e.Unit
		if unit == "" {
			unit = "n/a"
		}
		t.Rows = append(t.Rows, []string{
			e.RunID,
			e.CreatedAt.Format(time.RFC3339),
			p.styles.status(e.Status),
			fmt.Sprintf("%d (%d failed)", e.SubRuns, e.Failed),
			unit,
			p.relative(e.Flow),
		})
	}
	return t.render(p.out.Writer, p.styles)
}

// listRuns reads the index, or scans the runs directory without one.
func (p *project) listRuns(cmd *cobra.Command, limit int) ([]store.RunRecord, error) {
	if idx := p.openIndex(); idx != nil {
		defer idx.Close()
		return idx.ListRuns(cmd.Context(), limit)
	}
	runs, err := p.scanRuns()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// scanRuns reads every <runs>/rr-*/summary.json, newest first. Unreadable
// summaries are logged and skipped.
func (p *project) scanRuns() ([]store.RunRecord, error) {
	paths, err := filepath.Glob(filepath.Join(p.cfg.RunsDir, plan.IDPrefix+"*", artifact.SummaryFile))
	if err != nil {
		return nil, err
	}
	runs := make([]store.RunRecord, 0, len(paths))
	for _, path := range paths {
		run, err := store.LoadRecord(path)
		if err != nil {
			p.logger.Warn("skipping run", zap.String("summary", path), zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].RunID > runs[j].RunID
	})
	return runs, nil
}

// ReindexReport is the JSON payload of runs reindex.
type ReindexReport struct {
	Indexed int               `json:"indexed"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

func runReindex(opts *RootOptions, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	if err := os.MkdirAll(p.cfg.RunsDir, 0755); err != nil {
		return p.out.Fail("create runs directory", err)
	}
	// Reindex works even when the index is disabled for runs.
	idx, err := store.Open(filepath.Join(p.cfg.RunsDir, store.FileName))
	if err != nil {
		_ = p.out.Error(ErrCodeIndex, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeIndex+": open run index", err)
	}
	defer idx.Close()

	result, err := idx.Reindex(cmd.Context(), p.cfg.RunsDir)
	if err != nil {
		return p.out.Fail("reindex", err)
	}

	if p.out.JSON() {
		return p.out.Success(ReindexReport{Indexed: result.Indexed, Skipped: result.Skipped})
	}
	fmt.Fprintf(p.out.Writer, "Indexed %d runs.\n", result.Indexed)
	skipped := make([]string, 0, len(result.Skipped))
	for path := range result.Skipped {
		skipped = append(skipped, path)
	}
	sort.Strings(skipped)
	for _, path := range skipped {
		fmt.Fprintf(p.out.Writer, "%s %s: %s\n", p.styles.warn.Render("skipped"), path, result.Skipped[path])
	}
	return nil
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove old runs",
		Long: `Remove run directories created more than --older-than days ago, and
drop them from the run index.

Example:
  roadrunner clean --older-than 30`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return NewExitError(ExitCommandError, "--older-than must be at least 1")
			}
			return runClean(rootOpts, days, rootOpts.now(), cmd)
		},
	}
	cmd.Flags().IntVar(&days, "older-than", 0, "remove runs older than N days (required)")
	_ = cmd.MarkFlagRequired("older-than")
	return cmd
}

// CleanResult is the JSON payload of clean.
type CleanResult struct {
	Removed []string `json:"removed"`
}

func runClean(opts *RootOptions, days int, now time.Time, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	idx := p.openIndex()
	if idx != nil {
		defer idx.Close()
	}

	var candidates []store.RunRecord
	if idx != nil {
		candidates, err = idx.RunsBefore(cmd.Context(), cutoff)
	} else {
		var all []store.RunRecord
		all, err = p.scanRuns()
		for _, r := range all {
			if r.CreatedAt.Before(cutoff) {
				candidates = append(candidates, r)
			}
		}
	}
	if err != nil {
		return p.out.Fail("find old runs", err)
	}

	removed := []string{}
	for _, r := range candidates {
		dir := filepath.Dir(r.SummaryPath)
		if filepath.Base(dir) != r.RunID || !strings.HasPrefix(r.RunID, plan.IDPrefix) {
			p.logger.Warn("refusing to remove unexpected run path", zap.String("run_id", r.RunID), zap.String("dir", dir))
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Warn("remove run", zap.String("run_id", r.RunID), zap.Error(err))
			continue
		}
		if idx != nil {
			if err := idx.DeleteRun(cmd.Context(), r.RunID); err != nil {
				p.logger.Warn("drop run from index", zap.String("run_id", r.RunID), zap.Error(err))
			}
		}
		removed = append(removed, r.RunID)
	}

	if p.out.JSON() {
		return p.out.Success(CleanResult{Removed: removed})
	}
	fmt.Fprintf(p.out.Writer, "Removed %d runs older than %d days.\n", len(removed), days)
	return nil
}

// NewRerunLastCommand creates the rerun-last command.
func NewRerunLastCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rerun-last",
		Short: "Re-run the most recent run",
		Long: `Plan and execute the most recent run again with the same flow, margin
profile, safety policy and unit. A recorded margin profile or policy that no
longer exists falls back to the defaults.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRerunLast(rootOpts, cmd)
		},
	}
}

func runRerunLast(opts *RootOptions, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	runs, err := p.listRuns(cmd, 1)
	if err != nil {
		return p.out.Fail("find latest run", err)
	}
	if len(runs) == 0 {
		_ = p.out.Error(ErrCodeNotFound, "no previous runs found", nil)
		return NewExitError(ExitCommandError, ErrCodeNotFound+": no previous runs found")
	}
	last := runs[0]
	p.logger.Info("re-running", zap.String("run_id", last.RunID))

	ctx, cancel := signalContext(cmd, p.logger)
	defer cancel()

	req, err := p.rerunRequest(last)
	if err != nil {
		return err
	}
	return executeRun(ctx, p, req, engine.ExecuteOptions{Unit: last.Unit})
}

// rerunRequest rebuilds the plan inputs recorded for run.
func (p *project) rerunRequest(run store.RunRecord) (plan.Request, error) {
	var req plan.Request
	if _, err := os.Stat(run.FlowPath); err != nil {
		return req, p.notFound(fmt.Sprintf("flow path %s not found", run.FlowPath), err)
	}
	flow, err := loader.LoadFlow(run.FlowPath)
	if err != nil {
		return req, p.out.Fail("load flow", err)
	}
	req.Flow = flow

	if run.MarginPath != "" {
		if _, err := os.Stat(run.MarginPath); err == nil {
			if req.Margin, err = loader.LoadMarginProfile(run.MarginPath); err != nil {
				return req, p.out.Fail("load margin profile", err)
			}
		} else {
			p.out.Notice("%s", p.styles.warn.Render(fmt.Sprintf(
				"Recorded margin profile %s missing. Using the default profile.", run.MarginPath)))
		}
	}

	if source := run.SafetySource; source != "" {
		if _, err := os.Stat(source); err != nil {
			p.out.Notice("%s", p.styles.warn.Render(fmt.Sprintf(
				"Recorded safety policy %s missing. Using default policy.", source)))
		} else if policy, err := loader.LoadPolicyFromProfile(source); err != nil {
			p.out.Notice("%s", p.styles.warn.Render(fmt.Sprintf(
				"Failed to load safety policy from %s: %v. Falling back to default policy.", source, err)))
		} else {
			req.Policy, req.PolicySource = policy, source
		}
	}
	return req, nil
}
