// Package export converts run summaries to flat formats for spreadsheets
// and external tooling.
package export
