package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"
)

// agentctl config.toml key mapping to CLI runtime settings.
type fileConfig struct {
	Socket             string `toml:"socket"`
	Timeout            string `toml:"timeout"`
	LogLevel           string `toml:"log_level"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
}

type cliConfig struct {
	Socket             string
	Timeout            time.Duration
	LogLevel           string
	MaxConnectAttempts int
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Timeout:            10 * time.Second,
		MaxConnectAttempts: 1,
	}
}

// loadCLIConfig overlays path onto the defaults. Only keys present in
// the file override.
func loadCLIConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load agentctl config: %w", err)
	}

	if meta.IsDefined("socket") {
		cfg.Socket = strings.TrimSpace(raw.Socket)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		if d <= 0 {
			return cliConfig{}, fmt.Errorf("timeout %v must be positive", d)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	return cfg, nil
}

// resolveConfig merges the config file and command line flags. Flags
// win. A missing file is only an error when --config named it.
func resolveConfig(c *cli.Context) (cliConfig, error) {
	cfg := defaultCLIConfig()

	path := strings.TrimSpace(c.String("config"))
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			loaded, err := loadCLIConfig(path)
			if err != nil {
				return cliConfig{}, err
			}
			cfg = loaded
		case explicit:
			return cliConfig{}, fmt.Errorf("config %s: %w", path, statErr)
		case !errors.Is(statErr, os.ErrNotExist):
			return cliConfig{}, fmt.Errorf("config %s: %w", path, statErr)
		}
	}

	if c.IsSet("socket") {
		cfg.Socket = strings.TrimSpace(c.String("socket"))
	}
	if c.IsSet("timeout") {
		d := c.Duration("timeout")
		if d <= 0 {
			return cliConfig{}, fmt.Errorf("timeout %v must be positive", d)
		}
		cfg.Timeout = d
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = strings.TrimSpace(c.String("log-level"))
	}
	return cfg, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "agentctl", "agentctl.toml")
}
