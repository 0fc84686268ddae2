// Package safety picks a safety policy automatically from the host's
// hardware fingerprint.
package safety
