package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/roadrunner/internal/testutil"
)

// fakeCollector reports a fixed host.
type fakeCollector struct {
	model string
}

func (c fakeCollector) Collect(context.Context) map[string]string {
	return map[string]string{
		"platform": "linux/amd64",
		"uname":    "x86_64",
		"lscpu":    "Architecture: x86_64\nCPU(s): 16\nModel name: " + c.model + "\n",
	}
}

// testProject is a project root with an echo adapter, two flows, two margin
// profiles and a default policy.
type testProject struct {
	root string
	now  time.Time
}

func newTestProject(t *testing.T) *testProject {
	t.Helper()
	root := t.TempDir()

	script := testutil.WriteScript(t, filepath.Join(root, "diags"), "echo.sh", `echo "$RR_STEP_NAME $RR_MARGIN_POINT $*"
if [ "$RR_PARAM_MODE" = "fail" ]; then
  echo boom >&2
  exit 3
fi`)
	testutil.WriteFile(t, root, "adapters/echo.yaml", "name: echo\npath: "+script+"\ndescription: prints its arguments\nparameters:\n  message: {}\n")

	testutil.WriteFile(t, root, "flows/smoke.yaml", `
metadata:
  name: smoke
steps:
  - name: echo-check
    adapter: echo
    parameters:
      message: hello
  - name: echo-again
    adapter: echo
    parameters:
      message: again
`)
	testutil.WriteFile(t, root, "flows/failing.yaml", `
metadata:
  name: failing
steps:
  - name: breaker
    adapter: echo
    parameters:
      mode: fail
  - name: never
    adapter: echo
`)
	testutil.WriteFile(t, root, "margins/sweep.yaml", `
metadata: {name: vcore}
global_seed: 1234
targets:
  default:
    vcore_mv: {sweep: [900, 950]}
`)
	testutil.WriteFile(t, root, "margins/hot.yaml", `
metadata: {name: hot}
targets:
  default:
    vcore_mv: {sweep: [900, 1100]}
`)
	testutil.WriteFile(t, root, "policy/safety.yaml", `
metadata: {name: default}
avt_bounds:
  vcore_mv: {min: 900, max: 1000}
behavior: {on_violation: abort}
`)
	return &testProject{root: root, now: time.Now()}
}

func (p *testProject) path(parts ...string) string {
	return filepath.Join(append([]string{p.root}, parts...)...)
}

// addProfile installs a safety profile matching the fake collector's CPU.
func (p *testProject) addProfile(t *testing.T) {
	t.Helper()
	testutil.WriteFile(t, p.root, "policy/profiles/test.yaml", `
profile:
  description: Lab bench parts
  priority: 5
match:
  cpu_model_contains: Test CPU
policy:
  metadata: {name: bench}
  avt_bounds:
    vcore_mv: {min: 850, max: 1100}
`)
}

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI against p with stdin as input.
func (p *testProject) execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	opts := &RootOptions{
		Getenv:    func(string) string { return "" },
		Collector: fakeCollector{model: "Test CPU 9000"},
		Now:       func() time.Time { return p.now },
	}
	cmd := newRootCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--home", p.root))

	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// decode unmarshals the data of a JSON CLI response into v.
func decode(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// runJSON executes a run in JSON mode and returns its result.
func (p *testProject) runJSON(t *testing.T, args ...string) RunResult {
	t.Helper()
	res := p.execute(t, "", append([]string{"run", "--format", "json"}, args...)...)
	require.NoError(t, res.err, res.stderr)
	var run RunResult
	decode(t, res.stdout, &run)
	return run
}
