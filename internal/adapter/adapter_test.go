package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/roadrunner/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func f64(v float64) *float64 { return &v }

// writeScript creates an executable shell script in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func echoManifest(path string) *model.AdapterManifest {
	return &model.AdapterManifest{
		Name: "echo",
		Path: path,
		Parameters: []model.NamedParameter{
			{Name: "duration", Parameter: model.AdapterParameter{Type: model.TypeFloat, Min: f64(0), Max: f64(10)}},
			{Name: "message", Parameter: model.AdapterParameter{Type: model.TypeString}},
		},
	}
}

func TestRegistry_LoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.yaml"), []byte(`
name: echo
path: /bin/echo
description: prints its arguments
parameters:
  message:
    type: string
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stress.yml"), []byte(`
name: stress
path: stress-ng
args: ["--metrics-brief"]
`), 0644))

	reg := NewRegistry(dir, nil)

	m, err := reg.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "/bin/echo", m.Path)
	assert.Equal(t, "prints its arguments", m.Description)

	all, err := reg.Manifests()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "echo", all[0].Name)
	assert.Equal(t, "stress", all[1].Name)
	assert.Equal(t, []string{"--metrics-brief"}, all[1].Args)
}

func TestRegistry_UnknownAdapter(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "missing"), nil)

	_, err := reg.Get("nope")
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
	assert.Contains(t, err.Error(), `unknown adapter "nope"`)
}

func TestRegistry_DuplicateNames(t *testing.T) {
	_, err := NewStaticRegistry(
		&model.AdapterManifest{Name: "echo", Path: "/bin/echo", Source: "a.yaml"},
		&model.AdapterManifest{Name: "echo", Path: "/bin/echo", Source: "b.yaml"},
	)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
	assert.Contains(t, err.Error(), "already defined in a.yaml")
}

func TestInvoker_RunCapturesOutputAndEnv(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo.sh", `echo "args:$*"; echo "run:$RR_RUN_ID" >&2`)

	reg, err := NewStaticRegistry(echoManifest(script))
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	err = NewInvoker(reg).Run(context.Background(), "echo",
		model.NewValues("duration", 0.001, "message", "hello"),
		&stdout, &stderr, []string{"RR_RUN_ID=rr-test"})
	require.NoError(t, err)

	assert.Equal(t, "args:--duration 0.001 --message hello\n", stdout.String())
	assert.Equal(t, "run:rr-test\n", stderr.String())
}

func TestInvoker_NonzeroExit(t *testing.T) {
	script := writeScript(t, t.TempDir(), "fail.sh", "exit 3")
	reg, err := NewStaticRegistry(echoManifest(script))
	require.NoError(t, err)

	var out bytes.Buffer
	err = NewInvoker(reg).Run(context.Background(), "echo", model.Values{}, &out, &out, nil)
	require.Error(t, err)

	var execErr *model.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, `adapter "echo" failed with exit code 3`, err.Error())
}

func TestInvoker_ValidationFailureNeverSpawns(t *testing.T) {
	runner := &recordingRunner{}
	reg, err := NewStaticRegistry(echoManifest("/bin/true"))
	require.NoError(t, err)

	err = NewInvoker(reg, WithRunner(runner)).Run(context.Background(), "echo",
		model.NewValues("duration", 20), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
	assert.Contains(t, err.Error(), "above maximum 10")
	assert.Empty(t, runner.calls)
}

func TestInvoker_MissingAbsolutePath(t *testing.T) {
	runner := &recordingRunner{}
	missing := filepath.Join(t.TempDir(), "gone")
	reg, err := NewStaticRegistry(echoManifest(missing))
	require.NoError(t, err)

	err = NewInvoker(reg, WithRunner(runner)).Run(context.Background(), "echo", model.Values{}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, model.IsExecutionError(err))
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, runner.calls)
}

func TestInvoker_RelativePathResolvedThroughLookPath(t *testing.T) {
	runner := &recordingRunner{}
	reg, err := NewStaticRegistry(&model.AdapterManifest{Name: "stress", Path: "stress-ng", Args: []string{"--quiet"}})
	require.NoError(t, err)

	lookPath := func(name string) (string, error) {
		if name == "stress-ng" {
			return "/usr/bin/stress-ng", nil
		}
		return "", errors.New("not on PATH")
	}

	inv := NewInvoker(reg, WithRunner(runner), WithLookPath(lookPath))
	require.NoError(t, inv.Run(context.Background(), "stress", model.NewValues("cpu", 4, "verify", true), nil, nil, []string{"A=1"}))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"/usr/bin/stress-ng", "--quiet", "--cpu", "4", "--verify"}, runner.calls[0].argv)
	assert.Equal(t, []string{"A=1"}, runner.calls[0].env)
}

func TestInvoker_RelativePathNotFound(t *testing.T) {
	reg, err := NewStaticRegistry(&model.AdapterManifest{Name: "ghost", Path: "no-such-binary-rr"})
	require.NoError(t, err)

	inv := NewInvoker(reg, WithLookPath(func(string) (string, error) { return "", errors.New("nope") }))
	err = inv.Run(context.Background(), "ghost", model.Values{}, nil, nil, nil)
	require.Error(t, err)

	var execErr *model.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, -1, execErr.ExitCode)
	assert.Contains(t, err.Error(), `executable "no-such-binary-rr" not found`)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, -1, ExitCode(errors.New("spawn failed")))
}

type runnerCall struct {
	argv []string
	env  []string
}

type recordingRunner struct {
	calls []runnerCall
}

func (r *recordingRunner) Run(_ context.Context, argv, env []string, _, _ io.Writer) error {
	r.calls = append(r.calls, runnerCall{argv: argv, env: env})
	return nil
}
