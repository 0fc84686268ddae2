package model

import (
	"strconv"
	"strings"
)

// HardwareFingerprint identifies the host a run executes on.
type HardwareFingerprint struct {
	CPUModel     string `json:"cpu_model,omitempty"`
	Architecture string `json:"architecture,omitempty"`

	// Cores is nil when the core count could not be determined.
	Cores *int `json:"total_cores,omitempty"`
}

// Label is a short human-readable description of the host.
func (f HardwareFingerprint) Label() string {
	switch {
	case f.CPUModel != "":
		return f.CPUModel
	case f.Architecture != "":
		return f.Architecture
	default:
		return "unknown CPU"
	}
}

// String includes the core count when known.
func (f HardwareFingerprint) String() string {
	if f.Cores == nil {
		return f.Label()
	}
	return f.Label() + " (" + strconv.Itoa(*f.Cores) + " cores)"
}

// MatchCriteria is the predicate a SafetyProfile applies to a fingerprint.
type MatchCriteria struct {
	CPUModelContains     []string `json:"cpu_model_contains,omitempty"`
	ArchitectureContains []string `json:"architecture_contains,omitempty"`
	MinCores             *int     `json:"min_cores,omitempty"`
	MaxCores             *int     `json:"max_cores,omitempty"`
}

// Matches reports whether fp satisfies every declared criterion.
//
// Substring checks are case-insensitive and every listed substring must be
// present. Core limits are only applied when the core count is known. Empty
// criteria match any host.
func (c MatchCriteria) Matches(fp HardwareFingerprint) bool {
	if !containsAll(fp.CPUModel, c.CPUModelContains) {
		return false
	}
	if !containsAll(fp.Architecture, c.ArchitectureContains) {
		return false
	}
	if fp.Cores != nil {
		if c.MinCores != nil && *fp.Cores < *c.MinCores {
			return false
		}
		if c.MaxCores != nil && *fp.Cores > *c.MaxCores {
			return false
		}
	}
	return true
}

func containsAll(haystack string, needles []string) bool {
	h := strings.ToLower(haystack)
	for _, n := range needles {
		if !strings.Contains(h, strings.ToLower(n)) {
			return false
		}
	}
	return true
}

// SafetyProfile pairs match criteria with the policy to use on matching
// hardware.
type SafetyProfile struct {
	Name        string
	Description string

	// Priority orders profiles; higher is tried first.
	Priority int

	Match  MatchCriteria
	Policy *SafetyPolicy

	// Source is the profile file.
	Source string
}
