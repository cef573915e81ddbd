package hierarchy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk YAML shape for a single hierarchy file:
// one file per hierarchy, named "<hierarchy_id>.yaml".
type fileConfig struct {
	HierarchyID          string        `yaml:"hierarchy_id"`
	GlobalPrompt         string        `yaml:"global_prompt"`
	GlobalLLM            LLMParams     `yaml:"global_llm"`
	GlobalAgentID        string        `yaml:"global_agent_id"`
	ExecutionMode        ExecutionMode `yaml:"execution_mode"`
	EnableContextSharing bool          `yaml:"enable_context_sharing"`
	MaxIterations        int           `yaml:"max_iterations"`
	Teams                []TeamConfig  `yaml:"teams"`
}

// LoadDir loads every "*.yaml" hierarchy definition from dir and returns a
// Registry keyed by hierarchy_id. Each file is expanded for environment
// variables, parsed, defaulted, and validated before being admitted to the
// registry — a single malformed file fails the whole load (fail-fast,
// matching pkg/config/loader.go's Initialize).
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy config dir %s: %w", dir, err)
	}

	reg := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		reg.put(cfg)
	}
	return reg, nil
}

// LoadFile loads, expands, parses, defaults, and validates a single
// hierarchy YAML file.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	var fc fileConfig
	if err := yaml.Unmarshal(expanded, &fc); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	cfg := &Config{
		HierarchyID:          fc.HierarchyID,
		GlobalPrompt:         fc.GlobalPrompt,
		GlobalLLM:            fc.GlobalLLM,
		GlobalAgentID:        fc.GlobalAgentID,
		ExecutionMode:        fc.ExecutionMode,
		EnableContextSharing: fc.EnableContextSharing,
		MaxIterations:        fc.MaxIterations,
		Teams:                fc.Teams,
	}
	applyDefaults(cfg)

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, NewLoadError(path, err)
	}
	return cfg, nil
}

// applyDefaults fills zero-value knobs with sensible defaults so hierarchy
// authors don't need to repeat them in every file.
func applyDefaults(cfg *Config) {
	if cfg.ExecutionMode == "" {
		cfg.ExecutionMode = ExecutionModeSequential
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 20
	}
	for i := range cfg.Teams {
		if cfg.Teams[i].MaxIterations == 0 {
			cfg.Teams[i].MaxIterations = 20
		}
	}
}
