package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/roadrunner/internal/loader"
	"github.com/roach88/roadrunner/internal/plan"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Flow   string
	Margin string
	Policy string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview a run plan without executing",
		Long: `Expand a flow over a margin profile and validate every point and
invocation against the safety policy, without writing anything.

Example:
  roadrunner plan --flow flows/stress.yaml --margin margins/vcore.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow file (required)")
	cmd.Flags().StringVar(&opts.Margin, "margin", "", "margin profile file")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "safety policy or profile file (default policy/safety.yaml)")
	_ = cmd.MarkFlagRequired("flow")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	req := plan.Request{}
	if req.Flow, err = loader.LoadFlow(opts.Flow); err != nil {
		return p.out.Fail("load flow", err)
	}
	if opts.Margin != "" {
		if req.Margin, err = loader.LoadMarginProfile(opts.Margin); err != nil {
			return p.out.Fail("load margin profile", err)
		}
	}
	if opts.Policy != "" {
		if req.Policy, err = loader.LoadPolicyFromProfile(opts.Policy); err != nil {
			return p.out.Fail("load safety policy", err)
		}
		req.PolicySource = opts.Policy
	}

	rp, err := p.planner().Plan(req)
	if err != nil {
		return p.out.Fail("plan run", err)
	}

	if p.out.JSON() {
		return p.out.Success(rp.Document())
	}
	return planTable(rp).render(p.out.Writer, p.styles)
}

// planTable lists each sub-run with its steps as "name (adapter) xN".
func planTable(rp *plan.RunPlan) table {
	t := table{
		Title:   fmt.Sprintf("Plan for %s", rp.ParentID),
		Headers: []string{"Sub-Run", "Margin Point", "Details"},
	}
	for _, sub := range rp.SubRuns {
		lines := make([]string, len(sub.Steps))
		for i, step := range sub.Steps {
			lines[i] = fmt.Sprintf("%s (%s) x%d", step.Step.Name, step.Step.Adapter, len(step.Invocations))
		}
		t.Rows = append(t.Rows, []string{sub.ID, sub.Point.ID, strings.Join(lines, "\n")})
	}
	return t
}
