// Package report renders the human-readable reports of a run, report.md and
// report.html, from its summary.
package report
