package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/roadrunner/internal/model"
)

type marginDocument struct {
	Metadata   map[string]any `yaml:"metadata"`
	Targets    yaml.Node      `yaml:"targets"`
	GlobalSeed *int64         `yaml:"global_seed"`
}

// LoadMarginProfile reads a margin profile.
//
// Each target parameter is one of:
//
//	vcore_mv: 950                  # fixed
//	vcore_mv: {value: 950}         # fixed, explicit
//	vcore_mv: {sweep: [900, 950]}  # sweep
//	jitter: {sigma: 0.5}           # passed through, never validated
//
// Any other mapping is kept as an opaque fixed value.
func LoadMarginProfile(path string) (*model.MarginProfile, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMarginProfile(path, data)
}

// ParseMarginProfile parses a margin profile from data.
func ParseMarginProfile(source string, data []byte) (*model.MarginProfile, error) {
	var doc marginDocument
	if err := decodeDocument(source, data, SchemaMarginProfile, []string{"metadata", "targets"}, &doc); err != nil {
		return nil, err
	}

	profile := &model.MarginProfile{
		Path:       source,
		Metadata:   doc.Metadata,
		GlobalSeed: doc.GlobalSeed,
	}
	if profile.Metadata == nil {
		profile.Metadata = map[string]any{}
	}

	targets, err := entries(&doc.Targets)
	if err != nil {
		return nil, model.NewConfigError(source, "targets: %v", err)
	}
	for _, t := range targets {
		target, err := convertTarget(t.Key, t.Value)
		if err != nil {
			return nil, model.NewConfigError(source, "target %q: %v", t.Key, err)
		}
		profile.Targets = append(profile.Targets, target)
	}
	return profile, nil
}

func convertTarget(name string, n *yaml.Node) (model.TargetMargins, error) {
	target := model.TargetMargins{Name: name}
	params, err := entries(n)
	if err != nil {
		return target, err
	}

	for _, p := range params {
		if p.Key == model.JitterKey {
			jitter, err := convertJitter(p.Value)
			if err != nil {
				return target, err
			}
			target.Jitter = jitter
			continue
		}
		setting, err := convertSetting(p.Key, p.Value)
		if err != nil {
			return target, err
		}
		target.Apply(setting)
	}
	return target, nil
}

// convertJitter decodes a jitter mapping. Null means no jitter.
func convertJitter(n *yaml.Node) (map[string]any, error) {
	n = resolve(n)
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping", model.JitterKey)
	}
	var jitter map[string]any
	if err := n.Decode(&jitter); err != nil {
		return nil, fmt.Errorf("%s: %w", model.JitterKey, err)
	}
	return jitter, nil
}

// convertSetting turns one parameter node into a tagged Setting.
func convertSetting(name string, n *yaml.Node) (model.Setting, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		v, err := decodeAny(n)
		if err != nil {
			return model.Setting{}, fmt.Errorf("%s: %w", name, err)
		}
		return model.Fixed(name, v), nil
	}

	var wrapper map[string]any
	if err := n.Decode(&wrapper); err != nil {
		return model.Setting{}, fmt.Errorf("%s: %w", name, err)
	}
	if sweep, ok := wrapper["sweep"]; ok {
		values, ok := sweep.([]any)
		if !ok {
			return model.Setting{}, fmt.Errorf("sweep %q must be a list of values", name)
		}
		return model.Swept(name, values...), nil
	}
	if v, ok := wrapper["value"]; ok {
		return model.Fixed(name, v), nil
	}
	return model.Fixed(name, wrapper), nil
}
