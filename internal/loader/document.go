package loader

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/roadrunner/internal/model"
)

//go:embed schema.cue
var schemaSource string

// Schema definitions, one per document kind.
const (
	SchemaFlow          = "#Flow"
	SchemaMarginProfile = "#MarginProfile"
	SchemaSafetyPolicy  = "#SafetyPolicy"
	SchemaSafetyProfile = "#SafetyProfile"
	SchemaAdapter       = "#AdapterManifest"
)

// decodeDocument parses data, checks required keys and the CUE schema, then
// decodes strictly into out. Unknown fields are rejected.
func decodeDocument(source string, data []byte, schema string, required []string, out any) error {
	raw, err := parseMapping(source, data)
	if err != nil {
		return err
	}
	for _, key := range required {
		if _, ok := raw[key]; !ok {
			return model.NewConfigError(source, "missing required key %q", key)
		}
	}
	if err := checkSchema(source, schema, raw); err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return &model.ConfigError{Source: source, Message: "decode YAML", Err: err}
	}
	return nil
}

// parseMapping parses data into a plain map, failing unless the root is a
// mapping.
func parseMapping(source string, data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &model.ConfigError{Source: source, Message: "parse YAML", Err: err}
	}
	if raw == nil {
		return nil, model.NewConfigError(source, "empty document")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, model.NewConfigError(source, "expected mapping at root")
	}
	return m, nil
}

// checkSchema unifies raw with the named definition and requires a concrete,
// error-free result.
func checkSchema(source, definition string, raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile document schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("unknown document schema %s", definition)
	}

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return &model.ConfigError{Source: source, Message: "encode document", Err: err}
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return model.NewConfigError(source, "schema %s: %s", definition, firstSchemaError(err))
	}
	return nil
}

// firstSchemaError renders the first CUE error as "path: message".
func firstSchemaError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	e := errs[0]
	format, args := e.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := e.Path(); len(path) > 0 {
		return strings.Join(path, ".") + ": " + msg
	}
	return msg
}

// readFile reads a document, wrapping failures as ConfigError.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigError{Source: path, Message: "read file", Err: err}
	}
	return data, nil
}

// FindDocuments returns the *.yaml and *.yml files directly inside dir in
// lexical order. A missing directory yields no files.
func FindDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// isNull reports whether n is absent or an explicit null.
func isNull(n *yaml.Node) bool {
	n = resolve(n)
	return n == nil || n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mappingEntry is one key/value pair of a mapping node, in document order.
type mappingEntry struct {
	Key   string
	Value *yaml.Node
}

// entries returns the pairs of a mapping node in document order.
func entries(n *yaml.Node) ([]mappingEntry, error) {
	n = resolve(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected mapping", n.Line)
	}
	out := make([]mappingEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, mappingEntry{Key: n.Content[i].Value, Value: n.Content[i+1]})
	}
	return out, nil
}

// orderedValues decodes a mapping node into Values, keeping key order.
func orderedValues(n *yaml.Node) (model.Values, error) {
	var out model.Values
	pairs, err := entries(n)
	if err != nil {
		return out, err
	}
	for _, p := range pairs {
		v, err := decodeAny(p.Value)
		if err != nil {
			return out, fmt.Errorf("%s: %w", p.Key, err)
		}
		out.Set(p.Key, v)
	}
	return out, nil
}

func decodeAny(n *yaml.Node) (any, error) {
	var v any
	if err := resolve(n).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// stringList accepts either a single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", value.Line)
	}
}
