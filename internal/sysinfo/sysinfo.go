// Package sysinfo snapshots the host for run provenance and safety profile
// detection.
package sysinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/adapter"
)

// Snapshot keys.
const (
	KeyPlatform  = "platform"
	KeyGoVersion = "go_version"
	KeyUname     = "uname"
	KeyLscpu     = "lscpu"
	KeyDmidecode = "dmidecode"
	KeySensors   = "sensors"
	KeyMeminfo   = "meminfo"
	KeyCpuinfo   = "cpuinfo"
)

// Placeholder values for probes that could not run.
const (
	CommandNotFound    = "command-not-found"
	SensorsUnavailable = "sensors-not-available"
	FileNotFound       = "file-not-found"
	PermissionDenied   = "permission-denied"
)

// Collector gathers a best-effort host snapshot. Probes never fail the
// snapshot; problems are recorded as the probe's value.
type Collector struct {
	runner   adapter.ProcessRunner
	lookPath func(string) (string, error)
	readFile func(string) ([]byte, error)
	logger   *zap.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithRunner replaces the process runner.
func WithRunner(r adapter.ProcessRunner) Option {
	return func(c *Collector) { c.runner = r }
}

// WithLookPath replaces the PATH lookup used to detect optional tools.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Collector) { c.lookPath = fn }
}

// WithReadFile replaces file reads of /proc.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(c *Collector) { c.readFile = fn }
}

// WithLogger sets the collector's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// NewCollector creates a collector that probes the local host.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		runner:   adapter.ExecRunner{},
		lookPath: exec.LookPath,
		readFile: os.ReadFile,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs every probe and returns the snapshot.
func (c *Collector) Collect(ctx context.Context) map[string]string {
	info := map[string]string{
		KeyPlatform:  runtime.GOOS + "/" + runtime.GOARCH,
		KeyGoVersion: runtime.Version(),
	}
	info[KeyUname] = c.command(ctx, "uname", "-a")
	info[KeyLscpu] = c.command(ctx, "lscpu")
	info[KeyDmidecode] = c.command(ctx, "dmidecode")
	if _, err := c.lookPath("sensors"); err == nil {
		info[KeySensors] = c.command(ctx, "sensors")
	} else {
		info[KeySensors] = SensorsUnavailable
	}
	info[KeyMeminfo] = c.file("/proc/meminfo")
	info[KeyCpuinfo] = c.file("/proc/cpuinfo")
	return info
}

// command returns the trimmed stdout of argv, or a placeholder describing
// why it produced none.
func (c *Collector) command(ctx context.Context, argv ...string) string {
	var stdout, stderr bytes.Buffer
	err := c.runner.Run(ctx, argv, nil, &stdout, &stderr)
	if err == nil {
		return strings.TrimSpace(stdout.String())
	}
	if errors.Is(err, exec.ErrNotFound) {
		return CommandNotFound
	}
	code := adapter.ExitCode(err)
	c.logger.Debug("sysinfo probe failed",
		zap.Strings("argv", argv), zap.Int("exit_code", code), zap.Error(err))
	return fmt.Sprintf("error(%d): %s", code, strings.TrimSpace(stderr.String()))
}

func (c *Collector) file(path string) string {
	data, err := c.readFile(path)
	switch {
	case err == nil:
		return string(data)
	case errors.Is(err, fs.ErrNotExist):
		return FileNotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	default:
		c.logger.Debug("sysinfo read failed", zap.String("path", path), zap.Error(err))
		return fmt.Sprintf("error: %v", err)
	}
}
