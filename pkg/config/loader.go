package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/guildworks/guildhall/pkg/cost"
)

// GuildhallYAMLConfig represents the complete guildhall.yaml file structure
type GuildhallYAMLConfig struct {
	Agents   map[string]AgentSpec `yaml:"agents"`
	Defaults *Defaults            `yaml:"defaults"`
	Limits   *Limits              `yaml:"limits"`
	Slack    *SlackConfig         `yaml:"slack"`
}

// ProvidersYAMLConfig represents the complete providers.yaml file structure
type ProvidersYAMLConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Pricing   map[string]cost.Pricing   `yaml:"pricing"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load guildhall.yaml and providers.yaml from configDir
//  2. Expand {{.ENV_VAR}} references
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined catalogs (user overrides by id)
//  5. Apply defaults and build in-memory registries
//  6. Validate all configuration
//
// Both files are optional: the built-in catalog alone is a working setup.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"agents", stats.Agents,
		"providers", stats.Providers)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	guildhallConfig, err := loader.loadGuildhallYAML()
	if err != nil {
		return nil, NewLoadError("guildhall.yaml", err)
	}

	providersConfig, err := loader.loadProvidersYAML()
	if err != nil {
		return nil, NewLoadError("providers.yaml", err)
	}

	builtin := GetBuiltinConfig()

	agents := mergeAgents(builtin.Agents, guildhallConfig.Agents)
	providers := mergeProviders(builtin.Providers, providersConfig.Providers)

	defaults := Defaults{}
	if guildhallConfig.Defaults != nil {
		defaults = *guildhallConfig.Defaults
	}
	applyAgentDefaults(agents, defaults)

	slack := SlackConfig{}
	if guildhallConfig.Slack != nil {
		slack = *guildhallConfig.Slack
	}

	return &Config{
		configDir:        configDir,
		Defaults:         defaults,
		Limits:           mergeLimits(guildhallConfig.Limits),
		Slack:            slack,
		Pricing:          providersConfig.Pricing,
		AgentRegistry:    NewAgentRegistry(agents),
		ProviderRegistry: NewProviderRegistry(providers),
	}, nil
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadGuildhallYAML() (*GuildhallYAMLConfig, error) {
	cfg := &GuildhallYAMLConfig{}
	if err := l.loadYAML("guildhall.yaml", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *configLoader) loadProvidersYAML() (*ProvidersYAMLConfig, error) {
	cfg := &ProvidersYAMLConfig{}
	if err := l.loadYAML("providers.yaml", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML reads, env-expands, and parses one config file into out.
// A missing file is not an error: the built-in catalog covers it.
func (l *configLoader) loadYAML(name string, out any) error {
	path := filepath.Join(l.configDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Config file not found, using built-ins", "file", path)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}
