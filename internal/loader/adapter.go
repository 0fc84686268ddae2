package loader

import (
	"gopkg.in/yaml.v3"

	"github.com/roach88/roadrunner/internal/model"
)

type manifestDocument struct {
	Name        string    `yaml:"name"`
	Path        string    `yaml:"path"`
	Parameters  yaml.Node `yaml:"parameters"`
	Args        []string  `yaml:"args"`
	Description string    `yaml:"description"`
}

type parameterDocument struct {
	Type    string   `yaml:"type"`
	Allowed []any    `yaml:"allowed"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
}

// LoadAdapterManifest reads an adapter manifest.
func LoadAdapterManifest(path string) (*model.AdapterManifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAdapterManifest(path, data)
}

// ParseAdapterManifest parses an adapter manifest from data. A parameter
// without a type is a string.
func ParseAdapterManifest(source string, data []byte) (*model.AdapterManifest, error) {
	var doc manifestDocument
	if err := decodeDocument(source, data, SchemaAdapter, []string{"name", "path"}, &doc); err != nil {
		return nil, err
	}

	manifest := &model.AdapterManifest{
		Name:        doc.Name,
		Path:        doc.Path,
		Args:        doc.Args,
		Description: doc.Description,
		Source:      source,
	}

	params, err := entries(&doc.Parameters)
	if err != nil {
		return nil, model.NewConfigError(source, "parameters: %v", err)
	}
	for _, p := range params {
		var pd parameterDocument
		if err := resolve(p.Value).Decode(&pd); err != nil {
			return nil, model.NewConfigError(source, "parameter %q: %v", p.Key, err)
		}
		if pd.Type == "" {
			pd.Type = model.TypeString
		}
		manifest.Parameters = append(manifest.Parameters, model.NamedParameter{
			Name: p.Key,
			Parameter: model.AdapterParameter{
				Type:    pd.Type,
				Allowed: pd.Allowed,
				Min:     pd.Min,
				Max:     pd.Max,
			},
		})
	}
	return manifest, nil
}
