// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads, validates and persists sponsord configuration.
//
// The file lives at {datadir}/config.toml. Every key can be overridden by an
// environment variable prefixed SPONSOR_ (e.g. SPONSOR_GATEWAY_URL).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Record store backends.
const (
	BackendBolt = "bolt"
	BackendFile = "file"
)

const (
	configFileName = "config.toml"
	envPrefix      = "SPONSOR"
	fileHeader     = "# Sponsor Configuration\n"

	// DefaultMaxTotalSize caps the declared payload of one deploy (50 MiB).
	DefaultMaxTotalSize = 50 << 20

	// DefaultWincPerMiB is 0.1 credit per MiB (1 credit = 1e12 winc).
	DefaultWincPerMiB = 100_000_000_000

	// DefaultMaxPoolsPerCreator is how many pools one creator may own at once.
	DefaultMaxPoolsPerCreator = 3

	// DefaultAppName is the App-Name tag on every published file.
	DefaultAppName = "PermaDeploy"
)

// DefaultAllowedExtensions are the static-site file types accepted for publish.
var DefaultAllowedExtensions = []string{".html", ".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg"}

// Config holds the sponsor service configuration.
type Config struct {
	DataDir            string   `toml:"datadir" mapstructure:"datadir"`
	Network            string   `toml:"network" mapstructure:"network"`
	LogLevel           string   `toml:"loglevel" mapstructure:"loglevel"`
	StoreBackend       string   `toml:"store_backend" mapstructure:"store_backend"`
	GatewayURL         string   `toml:"gateway_url" mapstructure:"gateway_url"`
	GatewayToken       string   `toml:"gateway_token,omitempty" mapstructure:"gateway_token"`
	AppName            string   `toml:"app_name" mapstructure:"app_name"`
	WorkDir            string   `toml:"workdir" mapstructure:"workdir"`
	MaxTotalSize       int64    `toml:"max_total_size" mapstructure:"max_total_size"`
	AllowedExtensions  []string `toml:"allowed_extensions" mapstructure:"allowed_extensions"`
	WincPerMiB         uint64   `toml:"winc_per_mib" mapstructure:"winc_per_mib"`
	MaxPoolsPerCreator int      `toml:"max_pools_per_creator" mapstructure:"max_pools_per_creator"`
	KeyPassphrase      string   `toml:"-" mapstructure:"key_passphrase"` // env only, never written
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() Config {
	dataDir := DefaultDataDir()
	return Config{
		DataDir:            dataDir,
		Network:            "mainnet",
		LogLevel:           "info",
		StoreBackend:       BackendBolt,
		AppName:            DefaultAppName,
		WorkDir:            filepath.Join(dataDir, "tmp"),
		MaxTotalSize:       DefaultMaxTotalSize,
		AllowedExtensions:  append([]string(nil), DefaultAllowedExtensions...),
		WincPerMiB:         DefaultWincPerMiB,
		MaxPoolsPerCreator: DefaultMaxPoolsPerCreator,
	}
}

// DefaultDataDir returns ~/.sponsor, or ./.sponsor if the home directory
// cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sponsor"
	}
	return filepath.Join(home, ".sponsor")
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), configFileName)
}

// LoadConfig reads the TOML file at path on top of DefaultConfig and applies
// SPONSOR_* environment overrides. Unknown keys are ignored.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	v := newViper(DefaultConfig())
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	return &cfg, nil
}

// FromEnv returns DefaultConfig with SPONSOR_* environment overrides applied.
// Used when no config file exists yet.
func FromEnv() (*Config, error) {
	v := newViper(DefaultConfig())
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	return &cfg, nil
}

// newViper returns a viper instance seeded with defaults and env binding.
func newViper(defaults Config) *viper.Viper {
	v := viper.New()
	v.SetDefault("datadir", defaults.DataDir)
	v.SetDefault("network", defaults.Network)
	v.SetDefault("loglevel", defaults.LogLevel)
	v.SetDefault("store_backend", defaults.StoreBackend)
	v.SetDefault("gateway_url", defaults.GatewayURL)
	v.SetDefault("gateway_token", defaults.GatewayToken)
	v.SetDefault("app_name", defaults.AppName)
	v.SetDefault("workdir", defaults.WorkDir)
	v.SetDefault("max_total_size", defaults.MaxTotalSize)
	v.SetDefault("allowed_extensions", defaults.AllowedExtensions)
	v.SetDefault("winc_per_mib", defaults.WincPerMiB)
	v.SetDefault("max_pools_per_creator", defaults.MaxPoolsPerCreator)
	v.SetDefault("key_passphrase", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SaveConfig writes cfg to path as TOML, creating parent directories.
// KeyPassphrase is never written.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.Write(data)
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// ApplyLogLevel sets the level of every subsystem logger.
func ApplyLogLevel(level string) error {
	lvl, err := logging.LevelFromString(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogLevel, err)
	}
	logging.SetAllLoggers(lvl)
	return nil
}
