// Package config resolves the project root and its directory layout.
//
// Every directory has a conventional default under the root. A
// roadrunner.toml at the root may override any of them; relative paths in
// it resolve against the root.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/roadrunner/internal/model"
)

// Environment variables read by Load.
const (
	EnvHome     = "ROAD_RUNNER_HOME"
	EnvLogLevel = "RR_LOG_LEVEL"
)

// FileName is the optional project settings file at the root.
const FileName = "roadrunner.toml"

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the resolved project layout. All paths are absolute.
type Config struct {
	Root         string
	FlowsDir     string
	MarginsDir   string
	PolicyFile   string
	ProfilesDir  string
	AdaptersDir  string
	DiagsDir     string
	RunsDir      string
	TemplatesDir string
	Log          LogConfig
	// Index enables the SQLite run index in RunsDir.
	Index bool
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level  string
	Format string
}

type fileConfig struct {
	FlowsDir     string  `toml:"flows_dir"`
	MarginsDir   string  `toml:"margins_dir"`
	PolicyFile   string  `toml:"policy_file"`
	ProfilesDir  string  `toml:"profiles_dir"`
	AdaptersDir  string  `toml:"adapters_dir"`
	DiagsDir     string  `toml:"diags_dir"`
	RunsDir      string  `toml:"runs_dir"`
	TemplatesDir string  `toml:"templates_dir"`
	Index        bool    `toml:"index"`
	Log          fileLog `toml:"log"`
}

type fileLog struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the conventional layout under root.
func Default(root string) Config {
	return Config{
		Root:         root,
		FlowsDir:     filepath.Join(root, "flows"),
		MarginsDir:   filepath.Join(root, "margins"),
		PolicyFile:   filepath.Join(root, "policy", "safety.yaml"),
		ProfilesDir:  filepath.Join(root, "policy", "profiles"),
		AdaptersDir:  filepath.Join(root, "adapters"),
		DiagsDir:     filepath.Join(root, "diags"),
		RunsDir:      filepath.Join(root, "runs"),
		TemplatesDir: filepath.Join(root, "templates"),
		Log:          LogConfig{Level: "info", Format: FormatConsole},
		Index:        true,
	}
}

// ResolveRoot returns the project root: home if set, else $ROAD_RUNNER_HOME,
// else the working directory. A leading ~ is expanded.
func ResolveRoot(home string, getenv func(string) string) (string, error) {
	if home == "" {
		home = getenv(EnvHome)
	}
	if home == "" {
		return os.Getwd()
	}
	if home == "~" || strings.HasPrefix(home, "~/") {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", home, err)
		}
		home = filepath.Join(userHome, strings.TrimPrefix(home, "~"))
	}
	return filepath.Abs(home)
}

// Load builds the configuration for root, applying roadrunner.toml when
// present and then the environment.
func Load(root string, getenv func(string) string) (Config, error) {
	cfg := Default(root)
	path := filepath.Join(root, FileName)

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, &model.ConfigError{Source: path, Message: "invalid settings", Err: err}
	default:
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			sort.Strings(keys)
			return Config{}, model.NewConfigError(path, "unknown keys: %s", strings.Join(keys, ", "))
		}
		cfg.apply(meta, raw)
	}

	if level := getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.validate(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(meta toml.MetaData, raw fileConfig) {
	dirs := []struct {
		key   string
		value string
		dst   *string
	}{
		{"flows_dir", raw.FlowsDir, &c.FlowsDir},
		{"margins_dir", raw.MarginsDir, &c.MarginsDir},
		{"policy_file", raw.PolicyFile, &c.PolicyFile},
		{"profiles_dir", raw.ProfilesDir, &c.ProfilesDir},
		{"adapters_dir", raw.AdaptersDir, &c.AdaptersDir},
		{"diags_dir", raw.DiagsDir, &c.DiagsDir},
		{"runs_dir", raw.RunsDir, &c.RunsDir},
		{"templates_dir", raw.TemplatesDir, &c.TemplatesDir},
	}
	for _, d := range dirs {
		if meta.IsDefined(d.key) && strings.TrimSpace(d.value) != "" {
			*d.dst = c.resolve(strings.TrimSpace(d.value))
		}
	}
	if meta.IsDefined("index") {
		c.Index = raw.Index
	}
	if meta.IsDefined("log", "level") {
		c.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		c.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.Root, path)
}

func (c *Config) validate(source string) error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return model.NewConfigError(source, "log level %q: %v", c.Log.Level, err)
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return model.NewConfigError(source, "log format %q must be %q or %q", c.Log.Format, FormatConsole, FormatJSON)
	}
	return nil
}
