// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the settings that may only come from the environment.
type Env struct {
	// LogLevel is an apex/log level name.
	LogLevel string `env:"SWCACHE_LOG" envDefault:"ERROR"`
	// ConfigFile overrides the config file search.
	ConfigFile string `env:"SWCACHE_CFG"`
	// CacheDir is the base directory for the disk and sqlite stores.
	CacheDir string `env:"SWCACHE_CACHE_DIR"`
	// Backend selects the cache store implementation.
	Backend string `env:"SWCACHE_BACKEND"`
	// Origin is the base URL assets are fetched from.
	Origin string `env:"SWCACHE_ORIGIN"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv returns the environment settings.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}
