package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/model"
)

// ManifestSource resolves manifests by name. *Registry implements it.
type ManifestSource interface {
	Get(name string) (*model.AdapterManifest, error)
}

// ProcessRunner starts argv and waits for it to exit.
//
// env is the complete environment of the child. A nonzero exit must be
// reported as an error from which ExitCode can recover the status.
type ProcessRunner interface {
	Run(ctx context.Context, argv, env []string, stdout, stderr io.Writer) error
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

// Run starts argv with the given stdio and environment and waits for it.
func (ExecRunner) Run(ctx context.Context, argv, env []string, stdout, stderr io.Writer) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// ExitCode extracts the exit status from a runner error. It returns -1 when
// the process never ran or was killed by a signal.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Invoker validates parameters, builds the command line, and runs one
// adapter invocation. It makes exactly one attempt.
type Invoker struct {
	manifests ManifestSource
	runner    ProcessRunner
	lookPath  func(string) (string, error)
	logger    *zap.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRunner replaces the process runner.
func WithRunner(r ProcessRunner) InvokerOption {
	return func(i *Invoker) { i.runner = r }
}

// WithLookPath replaces executable resolution for relative paths.
func WithLookPath(fn func(string) (string, error)) InvokerOption {
	return func(i *Invoker) { i.lookPath = fn }
}

// WithInvokerLogger sets the invoker's logger.
func WithInvokerLogger(l *zap.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInvoker creates an invoker over manifests.
func NewInvoker(manifests ManifestSource, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		manifests: manifests,
		runner:    ExecRunner{},
		lookPath:  exec.LookPath,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run invokes adapter name with params.
//
// The process writes to stdout and stderr, which the caller owns, and sees
// env as its whole environment. Errors are:
//   - ConfigError: unknown adapter
//   - ValidationError: a parameter fails the manifest schema; nothing runs
//   - ExecutionError: the executable is missing, could not start, or exited
//     nonzero
//
// No timeout is applied; ctx only bounds process start and an explicit
// cancellation by the caller.
func (i *Invoker) Run(ctx context.Context, name string, params model.Values, stdout, stderr io.Writer, env []string) error {
	manifest, err := i.manifests.Get(name)
	if err != nil {
		return err
	}

	argv, err := manifest.BuildCommand(params)
	if err != nil {
		return fmt.Errorf("adapter %q: %w", name, err)
	}

	executable, err := i.resolve(manifest)
	if err != nil {
		return err
	}
	argv[0] = executable

	i.logger.Debug("invoking adapter",
		zap.String("adapter", name),
		zap.String("command", strings.Join(argv, " ")))

	if err := i.runner.Run(ctx, argv, env, stdout, stderr); err != nil {
		code := ExitCode(err)
		if code > 0 {
			return model.NewExitCodeError(name, code)
		}
		return &model.ExecutionError{
			Adapter:  name,
			ExitCode: code,
			Message:  fmt.Sprintf("adapter %q could not run", name),
			Err:      err,
		}
	}
	return nil
}

// resolve returns the executable to start. An absolute path must exist; a
// relative one is searched on PATH.
func (i *Invoker) resolve(m *model.AdapterManifest) (string, error) {
	if filepath.IsAbs(m.Path) {
		if _, err := os.Stat(m.Path); err != nil {
			return "", &model.ExecutionError{
				Adapter:  m.Name,
				ExitCode: -1,
				Message:  fmt.Sprintf("adapter %q path %q not found", m.Name, m.Path),
			}
		}
		return m.Path, nil
	}
	resolved, err := i.lookPath(m.Path)
	if err != nil {
		return "", &model.ExecutionError{
			Adapter:  m.Name,
			ExitCode: -1,
			Message:  fmt.Sprintf("adapter %q executable %q not found", m.Name, m.Path),
			Err:      err,
		}
	}
	return resolved, nil
}
