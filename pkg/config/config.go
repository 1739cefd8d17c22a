// Package config loads experiment, environment and pattern files.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

type ExperimentConfig struct {
	Name        string        `yaml:"name"`
	Episodes    int           `yaml:"episodes"`
	MaxSteps    int           `yaml:"max_steps"`
	Parallel    int           `yaml:"parallel"`
	Seed        uint64        `yaml:"seed"`
	Timeout     time.Duration `yaml:"timeout"`
	Agent       AgentConfig   `yaml:"agent"`
	Environment EnvConfig     `yaml:"environment"`
	Logging     LogConfig     `yaml:"logging"`
}

type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	Path    string `yaml:"path"`
}

// AgentConfig selects the policy. Kind is one of random, eager or llm;
// Provider and Model only apply to llm.
type AgentConfig struct {
	Kind     string `yaml:"kind"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Memory   int    `yaml:"memory"`
}

type EnvConfig struct {
	Path             string `yaml:"path"`
	TimeoutThreshold int    `yaml:"timeout_threshold"`
	DiscreteActions  bool   `yaml:"discrete_actions"`
	CompletionReward bool   `yaml:"completion_reward"`
}

// Default returns the settings used when a field is left out.
func Default() ExperimentConfig {
	return ExperimentConfig{
		Name:     "openthechests",
		Episodes: 10,
		MaxSteps: 200,
		Parallel: 1,
		Agent:    AgentConfig{Kind: "random", Memory: 20},
	}
}

// LoadConfig reads an experiment file on top of Default. A relative
// environment path is resolved against the experiment file.
func LoadConfig(path string) (*ExperimentConfig, error) {
	cfg := Default()
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Environment.Path != "" && !filepath.IsAbs(cfg.Environment.Path) {
		cfg.Environment.Path = filepath.Join(filepath.Dir(path), cfg.Environment.Path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *ExperimentConfig) Validate() error {
	switch {
	case c.Episodes <= 0:
		return fmt.Errorf("%w: episodes must be positive, got %d", ErrInvalidConfig, c.Episodes)
	case c.MaxSteps <= 0:
		return fmt.Errorf("%w: max_steps must be positive, got %d", ErrInvalidConfig, c.MaxSteps)
	case c.Parallel <= 0:
		return fmt.Errorf("%w: parallel must be positive, got %d", ErrInvalidConfig, c.Parallel)
	case c.Environment.Path == "":
		return fmt.Errorf("%w: environment.path is required", ErrInvalidConfig)
	}
	switch c.Agent.Kind {
	case "random", "eager":
	case "llm":
		if c.Agent.Provider != "openai" && c.Agent.Provider != "gemini" {
			return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Agent.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown agent kind %q", ErrInvalidConfig, c.Agent.Kind)
	}
	return nil
}
