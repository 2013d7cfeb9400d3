package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the per-project configuration file, read from the module root.
const FileName = ".stepindex.yml"

// Config represents the .stepindex.yml configuration
type Config struct {
	Version int `yaml:"version"`
	// Glue limits discovery to glue registered from packages under these
	// import path prefixes. Empty means every package of the module.
	Glue []string `yaml:"glue"`
	// Concurrency is the worker count handed to godog. 0 means one per CPU.
	Concurrency int   `yaml:"concurrency"`
	Index       Index `yaml:"index"`
}

// Index configures how source symbols are loaded.
type Index struct {
	// Tests includes _test.go files (default true)
	Tests *bool `yaml:"tests,omitempty"`
	// BuildFlags are passed to go list, e.g. -tags=integration
	BuildFlags []string `yaml:"build_flags,omitempty"`
	// Env is added to the environment go list runs with
	Env map[string]string `yaml:"env,omitempty"`
}

// IncludeTests reports whether _test.go files are indexed.
func (i Index) IncludeTests() bool {
	return i.Tests == nil || *i.Tests
}

// EnvList returns Env as sorted KEY=value pairs.
func (i Index) EnvList() []string {
	out := make([]string, 0, len(i.Env))
	for k, v := range i.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Default returns the configuration used when a project has no file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the .stepindex.yml configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadDir loads FileName from dir, or the defaults when dir has none.
func LoadDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Index.Tests == nil {
		tests := true
		c.Index.Tests = &tests
	}
}

func (c *Config) validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("invalid concurrency: %d", c.Concurrency)
	}

	for _, prefix := range c.Glue {
		if strings.TrimSpace(prefix) == "" || strings.ContainsAny(prefix, " \t") {
			return fmt.Errorf("invalid glue package prefix: %q", prefix)
		}
	}

	for _, flag := range c.Index.BuildFlags {
		if !strings.HasPrefix(flag, "-") {
			return fmt.Errorf("invalid build flag %q: flags start with '-'", flag)
		}
	}

	for key := range c.Index.Env {
		if key == "" || strings.Contains(key, "=") {
			return fmt.Errorf("invalid index env key: %q", key)
		}
	}

	return nil
}
