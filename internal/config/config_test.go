package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roadrunner/internal/model"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writeSettings(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644))
}

func TestResolveRoot(t *testing.T) {
	dir := t.TempDir()

	root, err := ResolveRoot(dir, env(map[string]string{EnvHome: "/elsewhere"}))
	require.NoError(t, err)
	assert.Equal(t, dir, root, "flag wins over environment")

	root, err = ResolveRoot("", env(map[string]string{EnvHome: dir}))
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	wd, err := os.Getwd()
	require.NoError(t, err)
	root, err = ResolveRoot("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, wd, root)
}

func TestResolveRoot_ExpandsHome(t *testing.T) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	root, err := ResolveRoot("~/bench", env(nil))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(userHome, "bench"), root)
}

func TestLoad_Defaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root, env(nil))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "flows"), cfg.FlowsDir)
	assert.Equal(t, filepath.Join(root, "margins"), cfg.MarginsDir)
	assert.Equal(t, filepath.Join(root, "policy", "safety.yaml"), cfg.PolicyFile)
	assert.Equal(t, filepath.Join(root, "policy", "profiles"), cfg.ProfilesDir)
	assert.Equal(t, filepath.Join(root, "adapters"), cfg.AdaptersDir)
	assert.Equal(t, filepath.Join(root, "diags"), cfg.DiagsDir)
	assert.Equal(t, filepath.Join(root, "runs"), cfg.RunsDir)
	assert.Equal(t, filepath.Join(root, "templates"), cfg.TemplatesDir)
	assert.Equal(t, LogConfig{Level: "info", Format: FormatConsole}, cfg.Log)
	assert.True(t, cfg.Index)
}

func TestLoad_Overrides(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, `
runs_dir = "/var/lib/roadrunner/runs"
adapters_dir = "vendor/adapters"
index = false

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(root, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/roadrunner/runs", cfg.RunsDir)
	assert.Equal(t, filepath.Join(root, "vendor", "adapters"), cfg.AdaptersDir)
	assert.Equal(t, filepath.Join(root, "flows"), cfg.FlowsDir, "unset keys keep defaults")
	assert.False(t, cfg.Index)
	assert.Equal(t, LogConfig{Level: "debug", Format: FormatJSON}, cfg.Log)
}

func TestLoad_EnvironmentLogLevel(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, "[log]\nlevel = \"debug\"\n")

	cfg, err := Load(root, env(map[string]string{EnvLogLevel: "warn"}))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_UnknownKeys(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, "flow_dir = \"x\"\n[log]\ncolour = true\n")

	_, err := Load(root, env(nil))
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
	assert.Contains(t, err.Error(), "unknown keys: flow_dir, log.colour")
}

func TestLoad_InvalidTOML(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, "runs_dir = \n")

	_, err := Load(root, env(nil))
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestLoad_InvalidLogSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		env      map[string]string
		want     string
	}{
		{"bad level", "[log]\nlevel = \"loud\"\n", nil, `log level "loud"`},
		{"bad env level", "", map[string]string{EnvLogLevel: "loud"}, `log level "loud"`},
		{"bad format", "[log]\nformat = \"xml\"\n", nil, `log format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.settings != "" {
				writeSettings(t, root, tt.settings)
			}
			_, err := Load(root, env(tt.env))
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
