package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/engine"
	"github.com/roach88/roadrunner/internal/loader"
	"github.com/roach88/roadrunner/internal/model"
	"github.com/roach88/roadrunner/internal/plan"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Flow   string
	Margin string
	Unit   string
	Policy string
	DryRun bool
	Yes    bool
}

// RunResult is the JSON payload of run and rerun-last.
type RunResult struct {
	RunID    string        `json:"run_id"`
	Status   engine.Status `json:"status"`
	DryRun   bool          `json:"dry_run"`
	RunDir   string        `json:"run_dir"`
	Policy   string        `json:"safety_policy"`
	Markdown string        `json:"report_md,omitempty"`
	HTML     string        `json:"report_html,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a flow across a margin profile",
		Long: `Execute a flow with an optional margin profile.

The host is fingerprinted and the highest-priority matching safety profile is
offered for confirmation. Without a match the project policy
(policy/safety.yaml) applies. --policy skips profile selection.

Example:
  roadrunner run --flow flows/smoke.yaml
  roadrunner run --flow flows/stress.yaml --margin margins/vcore.yaml --unit SN1234 --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow file (required)")
	cmd.Flags().StringVar(&opts.Margin, "margin", "", "margin profile file")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "unit under test identifier")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "safety policy or profile file; skips auto-selection")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "write the plan without executing adapters")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "accept the auto-selected safety profile")
	_ = cmd.MarkFlagRequired("flow")

	return cmd
}

func runRun(opts *RunOptions, cmd *cobra.Command) error {
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	ctx, cancel := signalContext(cmd, p.logger)
	defer cancel()

	snapshot := p.collector().Collect(ctx)

	req := plan.Request{}
	if opts.Policy != "" {
		policy, err := loader.LoadPolicyFromProfile(opts.Policy)
		if err != nil {
			return p.out.Fail("load safety policy", err)
		}
		req.Policy, req.PolicySource = policy, opts.Policy
	} else {
		policy, source, err := selectProfile(p, snapshot, opts.Yes, cmd.InOrStdin())
		if err != nil {
			return err
		}
		req.Policy, req.PolicySource = policy, source
	}

	if req.Flow, err = loader.LoadFlow(opts.Flow); err != nil {
		return p.out.Fail("load flow", err)
	}
	if opts.Margin != "" {
		if req.Margin, err = loader.LoadMarginProfile(opts.Margin); err != nil {
			return p.out.Fail("load margin profile", err)
		}
	}

	return executeRun(ctx, p, req, engine.ExecuteOptions{
		Unit:    opts.Unit,
		DryRun:  opts.DryRun,
		SysInfo: snapshot,
	})
}

// selectProfile offers the matching safety profile. A nil policy means the
// planner's default policy file applies.
func selectProfile(p *project, snapshot map[string]string, yes bool, in io.Reader) (*model.SafetyPolicy, string, error) {
	eng := p.safetyEngine()
	fp := eng.Fingerprint(snapshot)
	profile, err := eng.Select(snapshot)
	if err != nil {
		return nil, "", p.out.Fail("load safety profiles", err)
	}
	if profile == nil {
		p.out.Notice("%s", p.styles.warn.Render(fmt.Sprintf(
			"No safety profile matched current system (%s). Falling back to %s",
			fp.Label(), p.relative(p.cfg.PolicyFile))))
		return nil, "", nil
	}

	p.out.Notice("%s %s", p.styles.notice.Render("Detected CPU:"), fp.Label())
	p.out.Notice("%s %s (source: %s)", p.styles.notice.Render("Auto-selected safety profile:"),
		profile.Name, filepath.Base(profile.Source))
	if profile.Description != "" {
		p.out.Notice("%s", profile.Description)
	}
	if !p.out.JSON() {
		if err := boundsTable(profile.Policy).render(p.out.Writer, p.styles); err != nil {
			return nil, "", err
		}
	}

	if !yes {
		ok, err := confirm(p.out.GetErrWriter(), in, fmt.Sprintf("Use safety profile '%s' from %s?",
			profile.Name, filepath.Base(profile.Source)))
		if err != nil {
			return nil, "", p.out.Fail("read confirmation", err)
		}
		if !ok {
			_ = p.out.Error(ErrCodeCancelled, "run cancelled by user", nil)
			return nil, "", NewExitError(ExitFailure, "run cancelled by user")
		}
	}
	return profile.Policy, profile.Source, nil
}

// boundsTable lists a policy's bounds sorted by name; "-" marks an open side.
func boundsTable(policy *model.SafetyPolicy) table {
	bounds := append([]model.NamedBound(nil), policy.Bounds...)
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Name < bounds[j].Name })

	t := table{Title: "Safety Policy Bounds", Headers: []string{"Parameter", "Min", "Max"}}
	for _, nb := range bounds {
		t.Rows = append(t.Rows, []string{nb.Name, boundSide(nb.Bound.Min), boundSide(nb.Bound.Max)})
	}
	return t
}

func boundSide(v *float64) string {
	if v == nil {
		return "-"
	}
	return model.FormatValue(*v)
}

// confirm asks a yes/no question. An empty answer or end of input is yes.
func confirm(w io.Writer, in io.Reader, question string) (bool, error) {
	fmt.Fprintf(w, "%s [Y/n]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// executeRun plans and executes req, prints the outcome, and maps a failed
// run to ExitFailure.
func executeRun(ctx context.Context, p *project, req plan.Request, opts engine.ExecuteOptions) error {
	rp, err := p.planner().Plan(req)
	if err != nil {
		return p.out.Fail("plan run", err)
	}

	idx := p.openIndex()
	if idx != nil {
		defer idx.Close()
	}
	exec := p.executor(idx)

	summary, err := exec.Execute(ctx, rp, opts)
	if summary == nil || model.IsConfigError(err) || model.IsValidationError(err) {
		return p.out.Fail("execute run", err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		// Reports or index failed after the run itself completed.
		p.logger.Error("run finished with errors", zap.String("run_id", rp.ParentID), zap.Error(err))
	}

	paths := exec.Paths(summary.RunID)
	result := RunResult{
		RunID:  summary.RunID,
		Status: summary.Status(),
		DryRun: summary.DryRun,
		RunDir: paths.Dir(),
		Policy: rp.PolicySource,
	}
	if !summary.DryRun && !errors.Is(err, context.Canceled) {
		result.Markdown = paths.MarkdownReport()
		result.HTML = paths.HTMLReport()
	}

	if p.out.JSON() {
		if err := p.out.Success(result); err != nil {
			return err
		}
	} else {
		printRunResult(p, result)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return WrapExitError(ExitFailure, ErrCodeCancelled+": run interrupted", err)
	case result.Status == engine.StatusFail:
		return NewExitError(ExitFailure, fmt.Sprintf("%s: run %s failed", ErrCodeRunFailed, result.RunID))
	case err != nil:
		return WrapExitError(ExitCommandError, "finish run", err)
	}
	return nil
}

func printRunResult(p *project, r RunResult) {
	w := p.out.Writer
	fmt.Fprintf(w, "%s\n", p.styles.pass.Render(fmt.Sprintf("Run %s prepared", r.RunID)))
	if r.DryRun {
		fmt.Fprintln(w, "Dry run: no adapters executed.")
		return
	}
	fmt.Fprintf(w, "Status: %s\n", p.styles.status(string(r.Status)))
	if r.Markdown != "" {
		fmt.Fprintln(w, "Reports available at:")
		fmt.Fprintf(w, "  Markdown: %s\n", r.Markdown)
		fmt.Fprintf(w, "  HTML: %s\n", r.HTML)
	}
}

// relative shortens path against the project root for display.
func (p *project) relative(path string) string {
	if rel, err := filepath.Rel(p.cfg.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
