// Package adapter resolves adapter manifests and runs diagnostic
// executables.
//
// The Registry maps adapter names to manifests read from YAML. The Invoker
// turns a name and a parameter set into one subprocess: schema validation,
// argv construction, executable resolution, then a single run with the
// caller's stdio sinks and environment. A nonzero exit is an
// *model.ExecutionError carrying the code. Nothing is retried.
package adapter
