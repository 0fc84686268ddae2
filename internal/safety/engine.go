package safety

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/loader"
	"github.com/roach88/roadrunner/internal/model"
)

// Engine selects a safety profile for the host.
//
// Profiles are loaded from a directory on first use and cached for the
// engine's lifetime. They are ordered by descending priority; profiles with
// equal priority keep file-name order.
//
// Thread-safety: Engine is safe for concurrent use.
type Engine struct {
	dir    string
	logger *zap.Logger

	once     sync.Once
	profiles []*model.SafetyProfile
	loadErr  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over the profiles in dir. A missing directory
// means no profiles.
func NewEngine(dir string, opts ...Option) *Engine {
	e := &Engine{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) load() error {
	e.once.Do(func() {
		files, err := loader.FindDocuments(e.dir)
		if err != nil {
			e.loadErr = err
			return
		}
		profiles := make([]*model.SafetyProfile, 0, len(files))
		for _, path := range files {
			p, err := loader.LoadSafetyProfile(path)
			if err != nil {
				e.loadErr = fmt.Errorf("load safety profile: %w", err)
				return
			}
			profiles = append(profiles, p)
		}
		sort.SliceStable(profiles, func(i, j int) bool {
			return profiles[i].Priority > profiles[j].Priority
		})
		e.profiles = profiles
		e.logger.Debug("safety profiles loaded",
			zap.String("dir", e.dir),
			zap.Int("count", len(profiles)))
	})
	return e.loadErr
}

// Profiles returns the loaded profiles in selection order.
func (e *Engine) Profiles() ([]*model.SafetyProfile, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	out := make([]*model.SafetyProfile, len(e.profiles))
	copy(out, e.profiles)
	return out, nil
}

// Fingerprint derives the host fingerprint from sysinfo.
func (e *Engine) Fingerprint(sysinfo map[string]string) model.HardwareFingerprint {
	return Fingerprint(sysinfo)
}

// Select returns the first profile, in priority order, whose criteria match
// the host described by sysinfo. A nil profile with a nil error means no
// profile matched; the caller falls back to its default policy.
func (e *Engine) Select(sysinfo map[string]string) (*model.SafetyProfile, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	fp := Fingerprint(sysinfo)
	for _, p := range e.profiles {
		if p.Match.Matches(fp) {
			e.logger.Info("safety profile selected",
				zap.String("profile", p.Name),
				zap.String("cpu", fp.String()))
			return p, nil
		}
	}
	e.logger.Debug("no safety profile matched", zap.String("cpu", fp.String()))
	return nil, nil
}
