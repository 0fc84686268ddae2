package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/roadrunner/internal/model"
)

type flowDocument struct {
	Metadata map[string]any `yaml:"metadata"`
	Steps    []stepDocument `yaml:"steps"`
}

type stepDocument struct {
	Name       string    `yaml:"name"`
	Adapter    string    `yaml:"adapter"`
	Parameters yaml.Node `yaml:"parameters"`
	Sweeps     yaml.Node `yaml:"sweeps"`
}

// LoadFlow reads a flow definition.
//
// Parameter and sweep order follow the document. Step names must be unique.
func LoadFlow(path string) (*model.FlowDefinition, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFlow(path, data)
}

// ParseFlow parses a flow definition from data. source names the document
// in errors and becomes the flow's Path.
func ParseFlow(source string, data []byte) (*model.FlowDefinition, error) {
	var doc flowDocument
	if err := decodeDocument(source, data, SchemaFlow, []string{"metadata", "steps"}, &doc); err != nil {
		return nil, err
	}

	flow := &model.FlowDefinition{
		Path:     source,
		Metadata: doc.Metadata,
		Steps:    make([]model.FlowStep, 0, len(doc.Steps)),
	}
	if flow.Metadata == nil {
		flow.Metadata = map[string]any{}
	}

	seen := make(map[string]int, len(doc.Steps))
	for i, sd := range doc.Steps {
		if prev, dup := seen[sd.Name]; dup {
			return nil, model.NewConfigError(source, "steps[%d]: duplicate step name %q (first used by steps[%d])", i, sd.Name, prev)
		}
		seen[sd.Name] = i

		step, err := convertStep(sd)
		if err != nil {
			return nil, model.NewConfigError(source, "steps[%d]: %v", i, err)
		}
		flow.Steps = append(flow.Steps, step)
	}
	return flow, nil
}

func convertStep(sd stepDocument) (model.FlowStep, error) {
	params, err := orderedValues(&sd.Parameters)
	if err != nil {
		return model.FlowStep{}, fmt.Errorf("parameters: %w", err)
	}

	sweepEntries, err := entries(&sd.Sweeps)
	if err != nil {
		return model.FlowStep{}, fmt.Errorf("sweeps: %w", err)
	}
	var sweeps []model.Sweep
	for _, e := range sweepEntries {
		var values []any
		if err := resolve(e.Value).Decode(&values); err != nil {
			return model.FlowStep{}, fmt.Errorf("sweep %q must be a list of values", e.Key)
		}
		sweeps = append(sweeps, model.Sweep{Key: e.Key, Values: values})
	}

	return model.FlowStep{
		Name:       sd.Name,
		Adapter:    sd.Adapter,
		Parameters: params,
		Sweeps:     sweeps,
	}, nil
}
