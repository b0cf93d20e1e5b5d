// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/merakimirror/config.yaml",
	"/etc/merakimirror/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces the mirror's environment variables:
// MIRROR_DASHBOARD_API_KEY -> dashboard.api_key
const envPrefix = "MIRROR_"

// Load builds the configuration from layered sources:
//  1. Defaults: built-in values from defaultConfig()
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: highest priority
//
// The result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// MIRROR_DASHBOARD_BASE_URL -> dashboard.base_url
	// MIRROR_REFRESH_DYNAMIC_INTERVAL -> refresh.dynamic_interval
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps an environment variable name to a koanf path. The
// first underscore after the prefix separates the section from the key;
// the key keeps its remaining underscores:
//
//	MIRROR_DASHBOARD_API_KEY   -> dashboard.api_key
//	MIRROR_RATE_LIMIT_PER_SECOND is written MIRROR_RATELIMIT_PER_SECOND
//	(section names are single words in the env form)
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}

	// Section aliases for multi-word config sections.
	switch section {
	case "ratelimit":
		section = "rate_limit"
	}

	return section + "." + rest
}
