package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/roadrunner/internal/loader"
	"github.com/roach88/roadrunner/internal/model"
	"github.com/roach88/roadrunner/internal/plan"
)

// NewFlowsCommand creates the flows command group.
func NewFlowsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "Flow utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List available flows",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListFlows(rootOpts, cmd)
		},
	})
	return cmd
}

// FlowEntry is one row of flows list.
type FlowEntry struct {
	File  string `json:"file"`
	Steps int    `json:"steps"`
	Error string `json:"error,omitempty"`
}

func runListFlows(opts *RootOptions, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	files, err := loader.FindDocuments(p.cfg.FlowsDir)
	if err != nil {
		return p.out.Fail("list flows", err)
	}
	entries := make([]FlowEntry, 0, len(files))
	for _, path := range files {
		entry := FlowEntry{File: filepath.Base(path)}
		if flow, err := loader.LoadFlow(path); err != nil {
			entry.Error = err.Error()
		} else {
			entry.Steps = len(flow.Steps)
		}
		entries = append(entries, entry)
	}

	if p.out.JSON() {
		return p.out.Success(entries)
	}
	if len(entries) == 0 {
		p.out.Notice("No flows found under %s", p.relative(p.cfg.FlowsDir))
		return nil
	}
	t := table{Title: "Available Flows", Headers: []string{"Flow File", "Steps"}}
	for _, e := range entries {
		steps := strconv.Itoa(e.Steps)
		if e.Error != "" {
			steps = p.styles.fail.Render("invalid")
		}
		t.Rows = append(t.Rows, []string{e.File, steps})
	}
	return t.render(p.out.Writer, p.styles)
}

// MarginsValidateOptions holds flags for margins validate.
type MarginsValidateOptions struct {
	*RootOptions
	File   string
	Policy string
}

// NewMarginsCommand creates the margins command group.
func NewMarginsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "margins",
		Short: "Margin profile utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List available margin profiles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListMargins(rootOpts, cmd)
		},
	})

	opts := &MarginsValidateOptions{RootOptions: rootOpts}
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate a margin profile against the safety policy",
		Long: `Expand every point of a margin profile and check each non-jitter value
against the project safety policy.

Example:
  roadrunner margins validate --file margins/vcore.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateMargin(opts, cmd)
		},
	}
	validate.Flags().StringVar(&opts.File, "file", "", "margin profile file (required)")
	validate.Flags().StringVar(&opts.Policy, "policy", "", "safety policy or profile file (default policy/safety.yaml)")
	_ = validate.MarkFlagRequired("file")
	cmd.AddCommand(validate)

	return cmd
}

// MarginEntry is one row of margins list.
type MarginEntry struct {
	File    string `json:"file"`
	Targets int    `json:"targets"`
	Points  int    `json:"points"`
	Error   string `json:"error,omitempty"`
}

func runListMargins(opts *RootOptions, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	files, err := loader.FindDocuments(p.cfg.MarginsDir)
	if err != nil {
		return p.out.Fail("list margin profiles", err)
	}
	entries := make([]MarginEntry, 0, len(files))
	for _, path := range files {
		entry := MarginEntry{File: filepath.Base(path)}
		if profile, err := loader.LoadMarginProfile(path); err != nil {
			entry.Error = err.Error()
		} else {
			entry.Targets = len(profile.Targets)
			entry.Points = len(profile.ExpandPoints())
		}
		entries = append(entries, entry)
	}

	if p.out.JSON() {
		return p.out.Success(entries)
	}
	if len(entries) == 0 {
		p.out.Notice("No margin profiles found under %s", p.relative(p.cfg.MarginsDir))
		return nil
	}
	t := table{Title: "Available Margin Profiles", Headers: []string{"Profile File", "Targets", "Points"}}
	for _, e := range entries {
		row := []string{e.File, strconv.Itoa(e.Targets), strconv.Itoa(e.Points)}
		if e.Error != "" {
			row[1], row[2] = p.styles.fail.Render("invalid"), "-"
		}
		t.Rows = append(t.Rows, row)
	}
	return t.render(p.out.Writer, p.styles)
}

// MarginValidation is the JSON payload of margins validate.
type MarginValidation struct {
	File   string `json:"file"`
	Policy string `json:"policy"`
	Points int    `json:"points"`
	Valid  bool   `json:"valid"`
}

func runValidateMargin(opts *MarginsValidateOptions, cmd *cobra.Command) error {
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	source := p.cfg.PolicyFile
	if opts.Policy != "" {
		source = opts.Policy
	}
	policy, err := loader.LoadPolicyFromProfile(source)
	if err != nil {
		return p.out.Fail("load safety policy", err)
	}
	profile, err := loader.LoadMarginProfile(opts.File)
	if err != nil {
		return p.out.Fail("load margin profile", err)
	}
	if err := plan.CheckProfile(profile, policy); err != nil {
		return p.out.Fail("validation failed", err)
	}

	if p.out.JSON() {
		return p.out.Success(MarginValidation{
			File:   opts.File,
			Policy: source,
			Points: len(profile.ExpandPoints()),
			Valid:  true,
		})
	}
	fmt.Fprintln(p.out.Writer, p.styles.pass.Render(
		fmt.Sprintf("%s is valid against current safety policy", filepath.Base(opts.File))))
	return nil
}

// NewProfilesCommand creates the profiles command group.
func NewProfilesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Safety profile utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List safety profiles in selection order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListProfiles(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "detect",
		Short:         "Fingerprint this host and show the profile run would select",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetectProfile(rootOpts, cmd)
		},
	})
	return cmd
}

// ProfileEntry describes one safety profile.
type ProfileEntry struct {
	Name        string              `json:"name"`
	Priority    int                 `json:"priority"`
	Source      string              `json:"source"`
	Description string              `json:"description,omitempty"`
	Match       model.MatchCriteria `json:"match"`
	Bounds      model.Values        `json:"avt_bounds"`
}

func profileEntry(sp *model.SafetyProfile) ProfileEntry {
	return ProfileEntry{
		Name:        sp.Name,
		Priority:    sp.Priority,
		Source:      sp.Source,
		Description: sp.Description,
		Match:       sp.Match,
		Bounds:      sp.Policy.BoundsDocument(),
	}
}

func runListProfiles(opts *RootOptions, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	profiles, err := p.safetyEngine().Profiles()
	if err != nil {
		return p.out.Fail("load safety profiles", err)
	}
	entries := make([]ProfileEntry, len(profiles))
	for i, sp := range profiles {
		entries[i] = profileEntry(sp)
	}

	if p.out.JSON() {
		return p.out.Success(entries)
	}
	if len(entries) == 0 {
		p.out.Notice("No safety profiles found under %s", p.relative(p.cfg.ProfilesDir))
		return nil
	}
	t := table{Title: "Safety Profiles", Headers: []string{"Name", "Priority", "Match", "Source"}}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{e.Name, strconv.Itoa(e.Priority), describeMatch(e.Match), filepath.Base(e.Source)})
	}
	return t.render(p.out.Writer, p.styles)
}

// describeMatch renders criteria one per line; empty criteria match any host.
func describeMatch(c model.MatchCriteria) string {
	var lines []string
	if len(c.CPUModelContains) > 0 {
		lines = append(lines, "cpu ~ "+strings.Join(c.CPUModelContains, ", "))
	}
	if len(c.ArchitectureContains) > 0 {
		lines = append(lines, "arch ~ "+strings.Join(c.ArchitectureContains, ", "))
	}
	if c.MinCores != nil {
		lines = append(lines, fmt.Sprintf("cores >= %d", *c.MinCores))
	}
	if c.MaxCores != nil {
		lines = append(lines, fmt.Sprintf("cores <= %d", *c.MaxCores))
	}
	if len(lines) == 0 {
		return "any host"
	}
	return strings.Join(lines, "\n")
}

// Detection is the JSON payload of profiles detect.
type Detection struct {
	Fingerprint model.HardwareFingerprint `json:"fingerprint"`
	Profile     *ProfileEntry             `json:"profile"`
	Fallback    string                    `json:"fallback,omitempty"`
}

func runDetectProfile(opts *RootOptions, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	snapshot := p.collector().Collect(cmd.Context())
	eng := p.safetyEngine()
	fp := eng.Fingerprint(snapshot)
	selected, err := eng.Select(snapshot)
	if err != nil {
		return p.out.Fail("load safety profiles", err)
	}

	result := Detection{Fingerprint: fp}
	if selected != nil {
		entry := profileEntry(selected)
		result.Profile = &entry
	} else {
		result.Fallback = p.cfg.PolicyFile
	}

	if p.out.JSON() {
		return p.out.Success(result)
	}
	w := p.out.Writer
	fmt.Fprintf(w, "%s %s\n", p.styles.notice.Render("Detected CPU:"), fp.String())
	if fp.Architecture != "" {
		fmt.Fprintf(w, "%s %s\n", p.styles.notice.Render("Architecture:"), fp.Architecture)
	}
	if selected == nil {
		fmt.Fprintln(w, p.styles.warn.Render(fmt.Sprintf(
			"No safety profile matched. Runs fall back to %s", p.relative(p.cfg.PolicyFile))))
		return nil
	}
	fmt.Fprintf(w, "%s %s (source: %s)\n", p.styles.notice.Render("Selected safety profile:"),
		selected.Name, filepath.Base(selected.Source))
	return boundsTable(selected.Policy).render(w, p.styles)
}

// NewAdaptersCommand creates the adapters command group.
func NewAdaptersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adapters",
		Short: "Adapter utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List adapter manifests",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListAdapters(rootOpts, cmd)
		},
	})
	return cmd
}

// AdapterEntry is one row of adapters list.
type AdapterEntry struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Parameters  []string `json:"parameters"`
	Description string   `json:"description,omitempty"`
}

func runListAdapters(opts *RootOptions, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.close()

	manifests, err := p.registry().Manifests()
	if err != nil {
		return p.out.Fail("load adapters", err)
	}
	entries := make([]AdapterEntry, len(manifests))
	for i, m := range manifests {
		params := make([]string, len(m.Parameters))
		for j, np := range m.Parameters {
			params[j] = np.Name
		}
		entries[i] = AdapterEntry{Name: m.Name, Path: m.Path, Parameters: params, Description: m.Description}
	}

	if p.out.JSON() {
		return p.out.Success(entries)
	}
	if len(entries) == 0 {
		p.out.Notice("No adapters found under %s", p.relative(p.cfg.AdaptersDir))
		return nil
	}
	t := table{Title: "Adapters", Headers: []string{"Name", "Path", "Parameters", "Description"}}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{e.Name, e.Path, strings.Join(e.Parameters, ", "), e.Description})
	}
	return t.render(p.out.Writer, p.styles)
}
