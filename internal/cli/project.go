package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/adapter"
	"github.com/roach88/roadrunner/internal/config"
	"github.com/roach88/roadrunner/internal/engine"
	"github.com/roach88/roadrunner/internal/logging"
	"github.com/roach88/roadrunner/internal/plan"
	"github.com/roach88/roadrunner/internal/report"
	"github.com/roach88/roadrunner/internal/safety"
	"github.com/roach88/roadrunner/internal/store"
	"github.com/roach88/roadrunner/internal/sysinfo"
)

// project is the resolved workspace a command operates on.
type project struct {
	cfg    config.Config
	opts   *RootOptions
	logger *zap.Logger
	out    *OutputFormatter
	styles styles
}

// openProject resolves the project root, loads its settings and builds the
// logger. Logs go to stderr.
func openProject(opts *RootOptions, cmd *cobra.Command) (*project, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	root, err := config.ResolveRoot(opts.Home, getenv)
	if err != nil {
		return nil, out.Fail("resolve project root", err)
	}
	cfg, err := config.Load(root, getenv)
	if err != nil {
		return nil, out.Fail("load settings", err)
	}
	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: opts.Verbose,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, out.Fail("configure logging", err)
	}

	return &project{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		out:    out,
		styles: newStyles(cmd.OutOrStdout()),
	}, nil
}

func (p *project) close() {
	_ = p.logger.Sync()
}

func (p *project) registry() *adapter.Registry {
	return adapter.NewRegistry(p.cfg.AdaptersDir, p.logger)
}

func (p *project) safetyEngine() *safety.Engine {
	return safety.NewEngine(p.cfg.ProfilesDir, safety.WithLogger(p.logger))
}

func (p *project) collector() engine.SysInfoCollector {
	if p.opts.Collector != nil {
		return p.opts.Collector
	}
	return sysinfo.NewCollector(sysinfo.WithLogger(p.logger))
}

func (p *project) planner() *plan.Planner {
	return plan.NewPlanner(p.cfg.PolicyFile,
		plan.WithManifests(p.registry()),
		plan.WithLogger(p.logger))
}

// openIndex opens the run index. It returns nil when the index is disabled
// or cannot be opened; callers then scan the runs directory.
func (p *project) openIndex() *store.Store {
	if !p.cfg.Index {
		return nil
	}
	if err := os.MkdirAll(p.cfg.RunsDir, 0755); err != nil {
		p.logger.Warn("run index unavailable", zap.Error(err))
		return nil
	}
	idx, err := store.Open(filepath.Join(p.cfg.RunsDir, store.FileName))
	if err != nil {
		p.logger.Warn("run index unavailable", zap.Error(err))
		return nil
	}
	return idx
}

func (p *project) executor(idx *store.Store) *engine.Executor {
	invoker := adapter.NewInvoker(p.registry(), adapter.WithInvokerLogger(p.logger))
	opts := []engine.Option{
		engine.WithReporter(report.NewRenderer(p.cfg.TemplatesDir, p.logger)),
		engine.WithSysInfoCollector(p.collector()),
		engine.WithVersion(Version),
		engine.WithLogger(p.logger),
	}
	if idx != nil {
		opts = append(opts, engine.WithIndexer(idx))
	}
	return engine.NewExecutor(p.cfg.RunsDir, invoker, opts...)
}

// signalContext cancels the command context on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *zap.Logger) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after current step", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
