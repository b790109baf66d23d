package config

import (
	"errors"
	"fmt"
	"os"

	"oauthcheck/pkg/logging"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// LoadConfig builds the effective configuration: defaults, then the YAML file
// at configFilePath (skipped when empty), then OAUTHCHECK_* environment variables.
// Command line flags are applied on top by the caller.
func LoadConfig(configFilePath string) (Config, error) {
	cfg := GetDefaultConfig()

	if configFilePath != "" {
		data, err := os.ReadFile(configFilePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s does not exist", configFilePath)
			}
			logging.Info("Config", "Error loading config from %s: %s", configFilePath, err)
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("Config", "Loaded configuration from %s", configFilePath)
	} else {
		logging.Debug("Config", "No config file given, using defaults")
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("error reading %s environment: %w", EnvPrefix, err)
	}

	return cfg, nil
}

// Marshal renders the configuration as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(&cfg)
}
