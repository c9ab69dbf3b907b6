// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.StoreBackend != BackendBolt && cfg.StoreBackend != BackendFile {
		return ErrInvalidStoreBackend
	}

	if cfg.GatewayURL != "" {
		if err := validateGatewayURL(cfg.GatewayURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidGatewayURL, err)
		}
	}

	if cfg.MaxTotalSize <= 0 || cfg.WincPerMiB == 0 || cfg.MaxPoolsPerCreator <= 0 {
		return ErrInvalidLimits
	}

	if len(cfg.AllowedExtensions) == 0 {
		return ErrInvalidExtension
	}
	for _, ext := range cfg.AllowedExtensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
		}
	}

	return nil
}

// validateGatewayURL checks that raw is an absolute http(s) URL.
func validateGatewayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
