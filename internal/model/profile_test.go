package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cores(n int) *int { return &n }

func TestMatchCriteria_Matches(t *testing.T) {
	epyc := HardwareFingerprint{CPUModel: "AMD EPYC 9274F 24-Core Processor", Architecture: "x86_64", Cores: cores(16)}
	unknownCores := HardwareFingerprint{CPUModel: "AMD EPYC 9274F", Architecture: "x86_64"}

	tests := []struct {
		name     string
		criteria MatchCriteria
		fp       HardwareFingerprint
		want     bool
	}{
		{"empty matches anything", MatchCriteria{}, HardwareFingerprint{}, true},
		{"substring case-insensitive", MatchCriteria{CPUModelContains: []string{"epyc"}}, epyc, true},
		{"every substring required", MatchCriteria{CPUModelContains: []string{"EPYC", "Xeon"}}, epyc, false},
		{"all substrings present", MatchCriteria{CPUModelContains: []string{"EPYC", "9274"}}, epyc, true},
		{"architecture", MatchCriteria{ArchitectureContains: []string{"aarch64"}}, epyc, false},
		{"min cores met", MatchCriteria{MinCores: cores(8)}, epyc, true},
		{"min cores not met", MatchCriteria{MinCores: cores(32)}, epyc, false},
		{"max cores exceeded", MatchCriteria{MaxCores: cores(8)}, epyc, false},
		{"cores unknown skips limits", MatchCriteria{MinCores: cores(64)}, unknownCores, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(tt.fp))
		})
	}
}

func TestHardwareFingerprint_Label(t *testing.T) {
	assert.Equal(t, "AMD EPYC", HardwareFingerprint{CPUModel: "AMD EPYC", Architecture: "x86_64"}.Label())
	assert.Equal(t, "x86_64", HardwareFingerprint{Architecture: "x86_64"}.Label())
	assert.Equal(t, "unknown CPU", HardwareFingerprint{}.Label())
	assert.Equal(t, "x86_64 (4 cores)", HardwareFingerprint{Architecture: "x86_64", Cores: cores(4)}.String())
}
