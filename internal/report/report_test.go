package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roadrunner/internal/artifact"
	"github.com/roach88/roadrunner/internal/engine"
	"github.com/roach88/roadrunner/internal/model"
	"github.com/roach88/roadrunner/internal/plan"
)

func sampleSummary() *engine.Summary {
	errMsg := `adapter "stress" failed with exit code 2`
	margin := "margins/sweep.yaml"
	return &engine.Summary{
		RunID:     "rr-20250301T120000Z-0123456789",
		CreatedAt: "2025-03-01T12:00:00Z",
		Seed:      42,
		Flow:      plan.FlowRef{Path: "flows/smoke.yaml", Metadata: map[string]any{}},
		Margin:    plan.MarginRef{Path: &margin, Metadata: map[string]any{}},
		SubRuns: []engine.SubRunSummary{
			{
				RunID:     "rr-20250301T120000Z-0123456789-s00",
				Margin:    engine.PointRef{PointID: "point-0", Values: model.NewValues("default", model.NewValues("vcore_mv", 950))},
				Status:    engine.StatusPass,
				DurationS: 1.234,
				Steps: []engine.StepResult{
					{Name: "echo-check", Adapter: "echo", Status: engine.StatusPass, DurationS: 0.5},
					{Name: "stress[0]", Adapter: "stress", Status: engine.StatusPass, DurationS: 0.725},
				},
			},
			{
				RunID:     "rr-20250301T120000Z-0123456789-s01",
				Margin:    engine.PointRef{PointID: "point-1", Values: model.NewValues("default", model.NewValues("vcore_mv", 1000))},
				Status:    engine.StatusFail,
				DurationS: 2,
				Steps: []engine.StepResult{
					{Name: "echo-check", Adapter: "echo", Status: engine.StatusPass, DurationS: 0.5},
					{Name: "stress[0]", Adapter: "stress", Status: engine.StatusFail, DurationS: 1.5, Error: &errMsg},
				},
			},
		},
	}
}

func TestMarkdown_Golden(t *testing.T) {
	out, err := NewRenderer("", nil).Markdown(sampleSummary())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_md", out)
}

func TestMarkdown_DryRunHasNoResults(t *testing.T) {
	s := sampleSummary()
	s.SubRuns = nil
	s.Margin.Path = nil

	out, err := NewRenderer("", nil).Markdown(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), "- Margin Profile: n/a\n")
	assert.Contains(t, string(out), "- Unit Under Test: n/a\n")
	assert.NotContains(t, string(out), "###")
}

func TestHTML_EscapesContent(t *testing.T) {
	s := sampleSummary()
	s.SubRuns[0].Steps[0].Name = "<script>alert(1)</script>"

	out, err := NewRenderer("", nil).HTML(s)
	require.NoError(t, err)
	html := string(out)
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "<title>Road Runner Report - rr-20250301T120000Z-0123456789</title>")
	assert.Contains(t, html, "adapter &#34;stress&#34; failed with exit code 2")
}

func TestRender_UsesOverrideTemplate(t *testing.T) {
	tmpl := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, MarkdownTemplate),
		[]byte("run {{ .Summary.RunID }} seed {{ .Summary.Seed }}\n"), 0644))

	runs := t.TempDir()
	paths := artifact.NewRunPaths(runs, "rr-x")
	require.NoError(t, NewRenderer(tmpl, nil).Render(sampleSummary(), paths))

	md, err := os.ReadFile(paths.MarkdownReport())
	require.NoError(t, err)
	assert.Equal(t, "run rr-20250301T120000Z-0123456789 seed 42\n", string(md))

	html, err := os.ReadFile(paths.HTMLReport())
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Road Runner Report</h1>", "html falls back to the default")
}

func TestRender_BrokenOverrideFallsBack(t *testing.T) {
	tmpl := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, MarkdownTemplate), []byte("{{ .Nope "), 0644))

	out, err := NewRenderer(tmpl, nil).Markdown(sampleSummary())
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Road Runner Report")
}
