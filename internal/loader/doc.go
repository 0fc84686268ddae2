// Package loader converts YAML documents into the typed model.
//
// Every document goes through the same three gates before any model value
// is built:
//
//  1. the root must be a mapping and carry its required keys
//  2. the document must unify with its CUE definition in schema.cue
//  3. strict YAML decoding (unknown fields rejected)
//
// Mappings whose order matters (step parameters, sweeps, margin targets,
// bounds, adapter parameters) are walked as yaml.Node so declaration order
// survives into model.Values.
//
// All failures are *model.ConfigError.
package loader
