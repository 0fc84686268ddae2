package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epycLscpu = `Architecture:            x86_64
CPU op-mode(s):          32-bit, 64-bit
CPU(s):                  16
On-line CPU(s) list:     0-15
Model name:              AMD EPYC 9274F 24-Core Processor
`

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

const policyBlock = `
policy:
  metadata: {}
  avt_bounds:
    vcore_mv: {min: 900, max: 1000}
`

func TestFingerprint(t *testing.T) {
	fp := Fingerprint(map[string]string{KeyLscpu: epycLscpu, KeyUname: "Linux host 6.1"})
	assert.Equal(t, "AMD EPYC 9274F 24-Core Processor", fp.CPUModel)
	assert.Equal(t, "x86_64", fp.Architecture)
	require.NotNil(t, fp.Cores)
	assert.Equal(t, 16, *fp.Cores)
}

func TestFingerprint_Fallbacks(t *testing.T) {
	fp := Fingerprint(map[string]string{
		KeyLscpu: "CPU(s): many\nno colon here\n",
		KeyUname: "Linux box 6.1.0 aarch64",
	})
	assert.Equal(t, "", fp.CPUModel)
	assert.Equal(t, "Linux box 6.1.0 aarch64", fp.Architecture)
	assert.Nil(t, fp.Cores, "non-integer core count degrades to unknown")

	empty := Fingerprint(nil)
	assert.Equal(t, "unknown CPU", empty.Label())
}

func TestEngine_SelectsMatchingProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "a_generic.yaml", "profile: {name: generic, priority: 0}\n"+policyBlock)
	writeProfile(t, dir, "b_epyc.yaml", `
profile: {name: epyc, priority: 10}
match:
  cpu_model_contains: [EPYC]
  min_cores: 8
`+policyBlock)

	engine := NewEngine(dir)
	profile, err := engine.Select(map[string]string{KeyLscpu: epycLscpu})
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "epyc", profile.Name)

	profiles, err := engine.Profiles()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "epyc", profiles[0].Name, "higher priority first")
}

func TestEngine_EmptyMatchAlwaysMatches(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "xeon.yaml", "profile: {priority: 5}\nmatch: {cpu_model_contains: Xeon}\n"+policyBlock)
	writeProfile(t, dir, "fallback.yaml", "match: {}\n"+policyBlock)

	profile, err := NewEngine(dir).Select(map[string]string{KeyLscpu: epycLscpu})
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "fallback", profile.Name)
}

func TestEngine_TiesKeepFileOrder(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "b.yaml", policyBlock)
	writeProfile(t, dir, "a.yaml", policyBlock)
	writeProfile(t, dir, "c.yml", "profile: {priority: 1}\n"+policyBlock)

	profiles, err := NewEngine(dir).Profiles()
	require.NoError(t, err)
	var names []string
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestEngine_NoMatchIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "arm.yaml", "match: {architecture_contains: aarch64}\n"+policyBlock)

	profile, err := NewEngine(dir).Select(map[string]string{KeyLscpu: epycLscpu})
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestEngine_MissingDirectory(t *testing.T) {
	engine := NewEngine(filepath.Join(t.TempDir(), "missing"))
	profile, err := engine.Select(map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestEngine_InvalidProfileFails(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "broken.yaml", "profile: {name: broken}\n")

	_, err := NewEngine(dir).Select(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy")
}

func TestEngine_LoadsOnce(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "a.yaml", policyBlock)
	engine := NewEngine(dir)

	first, err := engine.Profiles()
	require.NoError(t, err)
	require.Len(t, first, 1)

	writeProfile(t, dir, "b.yaml", policyBlock)
	second, err := engine.Profiles()
	require.NoError(t, err)
	assert.Len(t, second, 1, "profiles are cached after first load")
}
