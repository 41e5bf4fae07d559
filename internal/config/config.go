package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is the config file looked up in the working directory.
	DefaultPath = ".tracemake.yaml"

	// DefaultTraceFile is the log path used when nothing else is set.
	DefaultTraceFile = ".make.trace"

	// DefaultShell runs recipes handed to `tracemake shell`.
	DefaultShell = "/bin/sh"

	// TraceFileEnv overrides the trace log path.
	TraceFileEnv = "TRACE_FILE"

	// ShellEnv overrides the shell used by `tracemake shell`.
	ShellEnv = "TRACEMAKE_SHELL"
)

// Config holds tracemake settings.
type Config struct {
	TraceFile     string        `yaml:"trace_file"`
	Shell         string        `yaml:"shell"`
	LogLevel      string        `yaml:"log_level"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	WatchMaxWait  time.Duration `yaml:"watch_max_wait"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TraceFile:     DefaultTraceFile,
		Shell:         DefaultShell,
		LogLevel:      "warn",
		WatchDebounce: 500 * time.Millisecond,
		WatchMaxWait:  5 * time.Second,
	}
}

// Load reads configuration from a YAML file.
// Empty path falls back to DefaultPath in the working directory.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveTraceFile picks the trace log path.
// Resolution order: explicit → TRACE_FILE → config → default.
func (c *Config) ResolveTraceFile(explicit string) string {
	return firstNonEmpty(explicit, os.Getenv(TraceFileEnv), c.TraceFile, DefaultTraceFile)
}

// ResolveShell picks the shell binary.
// Resolution order: TRACEMAKE_SHELL → config → /bin/sh.
func (c *Config) ResolveShell() string {
	return firstNonEmpty(os.Getenv(ShellEnv), c.Shell, DefaultShell)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
