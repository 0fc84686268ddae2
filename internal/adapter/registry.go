package adapter

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/loader"
	"github.com/roach88/roadrunner/internal/model"
)

// Registry resolves adapter manifests by name.
//
// Manifests are read from a directory on first lookup and cached.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	dir    string
	logger *zap.Logger

	once      sync.Once
	manifests map[string]*model.AdapterManifest
	loadErr   error
}

// NewRegistry creates a registry over the manifests in dir. A missing
// directory means no adapters.
func NewRegistry(dir string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{dir: dir, logger: logger}
}

// NewStaticRegistry creates a registry holding exactly the given manifests.
func NewStaticRegistry(manifests ...*model.AdapterManifest) (*Registry, error) {
	r := &Registry{logger: zap.NewNop()}
	r.once.Do(func() {})
	index, err := indexManifests(manifests)
	if err != nil {
		return nil, err
	}
	r.manifests = index
	return r, nil
}

func (r *Registry) load() error {
	r.once.Do(func() {
		files, err := loader.FindDocuments(r.dir)
		if err != nil {
			r.loadErr = err
			return
		}
		manifests := make([]*model.AdapterManifest, 0, len(files))
		for _, path := range files {
			m, err := loader.LoadAdapterManifest(path)
			if err != nil {
				r.loadErr = err
				return
			}
			manifests = append(manifests, m)
		}
		r.manifests, r.loadErr = indexManifests(manifests)
		r.logger.Debug("adapter manifests loaded",
			zap.String("dir", r.dir),
			zap.Int("count", len(manifests)))
	})
	return r.loadErr
}

func indexManifests(manifests []*model.AdapterManifest) (map[string]*model.AdapterManifest, error) {
	index := make(map[string]*model.AdapterManifest, len(manifests))
	for _, m := range manifests {
		if prev, dup := index[m.Name]; dup {
			return nil, model.NewConfigError(m.Source, "adapter %q already defined in %s", m.Name, prev.Source)
		}
		index[m.Name] = m
	}
	return index, nil
}

// Get returns the manifest called name. An unknown name is a ConfigError.
func (r *Registry) Get(name string) (*model.AdapterManifest, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	m, ok := r.manifests[name]
	if !ok {
		return nil, &model.ConfigError{Source: r.dir, Message: fmt.Sprintf("unknown adapter %q", name)}
	}
	return m, nil
}

// Manifests returns every manifest sorted by name.
func (r *Registry) Manifests() ([]*model.AdapterManifest, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	out := make([]*model.AdapterManifest, 0, len(r.manifests))
	for _, m := range r.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
