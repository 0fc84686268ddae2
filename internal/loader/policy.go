package loader

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/roadrunner/internal/model"
)

type policyDocument struct {
	Metadata map[string]any `yaml:"metadata"`
	Bounds   yaml.Node      `yaml:"avt_bounds"`
	Behavior map[string]any `yaml:"behavior"`
}

type boundDocument struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

type profileDocument struct {
	Profile struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Priority    int    `yaml:"priority"`
	} `yaml:"profile"`
	Match  matchDocument  `yaml:"match"`
	Policy policyDocument `yaml:"policy"`
}

type matchDocument struct {
	CPUModelContains     stringList `yaml:"cpu_model_contains"`
	ArchitectureContains stringList `yaml:"architecture_contains"`
	MinCores             *int       `yaml:"min_cores"`
	MaxCores             *int       `yaml:"max_cores"`
}

// LoadSafetyPolicy reads a safety policy document.
func LoadSafetyPolicy(path string) (*model.SafetyPolicy, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSafetyPolicy(path, data)
}

// ParseSafetyPolicy parses a safety policy from data.
func ParseSafetyPolicy(source string, data []byte) (*model.SafetyPolicy, error) {
	var doc policyDocument
	if err := decodeDocument(source, data, SchemaSafetyPolicy, []string{"metadata", "avt_bounds"}, &doc); err != nil {
		return nil, err
	}
	return convertPolicy(source, doc)
}

func convertPolicy(source string, doc policyDocument) (*model.SafetyPolicy, error) {
	policy := &model.SafetyPolicy{
		Metadata: doc.Metadata,
		Behavior: doc.Behavior,
	}
	if policy.Metadata == nil {
		policy.Metadata = map[string]any{}
	}
	if policy.Behavior == nil {
		policy.Behavior = map[string]any{}
	}

	bounds, err := entries(&doc.Bounds)
	if err != nil {
		return nil, model.NewConfigError(source, "avt_bounds: %v", err)
	}
	for _, b := range bounds {
		var bd boundDocument
		if err := resolve(b.Value).Decode(&bd); err != nil {
			return nil, model.NewConfigError(source, "bound %q must be a mapping with min/max", b.Key)
		}
		policy.Bounds = append(policy.Bounds, model.NamedBound{
			Name:  b.Key,
			Bound: model.Bound{Min: bd.Min, Max: bd.Max},
		})
	}
	return policy, nil
}

// LoadSafetyProfile reads a safety profile: match criteria plus an embedded
// policy. The profile name defaults to the file stem.
func LoadSafetyProfile(path string) (*model.SafetyProfile, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSafetyProfile(path, data)
}

// ParseSafetyProfile parses a safety profile from data.
func ParseSafetyProfile(source string, data []byte) (*model.SafetyProfile, error) {
	var doc profileDocument
	if err := decodeDocument(source, data, SchemaSafetyProfile, []string{"policy"}, &doc); err != nil {
		return nil, err
	}

	policy, err := convertPolicy(source, doc.Policy)
	if err != nil {
		return nil, err
	}

	name := doc.Profile.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	return &model.SafetyProfile{
		Name:        name,
		Description: doc.Profile.Description,
		Priority:    doc.Profile.Priority,
		Match: model.MatchCriteria{
			CPUModelContains:     doc.Match.CPUModelContains,
			ArchitectureContains: doc.Match.ArchitectureContains,
			MinCores:             doc.Match.MinCores,
			MaxCores:             doc.Match.MaxCores,
		},
		Policy: policy,
		Source: source,
	}, nil
}

// LoadPolicyFromProfile reads either a safety profile or a bare policy and
// returns the policy. A document with a top-level policy key is a profile.
func LoadPolicyFromProfile(path string) (*model.SafetyPolicy, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := parseMapping(path, data)
	if err != nil {
		return nil, err
	}
	if _, ok := raw["policy"]; ok {
		profile, err := ParseSafetyProfile(path, data)
		if err != nil {
			return nil, err
		}
		return profile.Policy, nil
	}
	return ParseSafetyPolicy(path, data)
}
