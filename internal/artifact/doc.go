// Package artifact owns the on-disk layout of a run: where each file lives,
// how names are sanitized, and how JSON documents and step events are
// written.
//
// Every write opens, writes and closes its file. Nothing holds a handle
// between writes, so an interrupted run leaves complete files behind.
package artifact
