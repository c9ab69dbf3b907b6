// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "github.com/bitfsorg/sponsor-go/fault"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = fault.New(fault.KindValidation, "InvalidConfig", "config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = fault.New(fault.KindValidation, "InvalidConfig", "config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = fault.New(fault.KindValidation, "InvalidConfig", "config: data directory must not be empty")

	// ErrInvalidStoreBackend indicates the record store backend is not recognized.
	ErrInvalidStoreBackend = fault.New(fault.KindValidation, "InvalidConfig", "config: invalid store backend (must be \"bolt\" or \"file\")")

	// ErrInvalidGatewayURL indicates the gateway URL is malformed or not http(s).
	ErrInvalidGatewayURL = fault.New(fault.KindValidation, "InvalidConfig", "config: invalid gateway URL")

	// ErrInvalidLimits indicates a size, rate or count limit is zero.
	ErrInvalidLimits = fault.New(fault.KindValidation, "InvalidConfig", "config: limits must be positive")

	// ErrInvalidExtension indicates an allowed extension is empty or lacks a leading dot.
	ErrInvalidExtension = fault.New(fault.KindValidation, "InvalidConfig", "config: allowed extensions must be non-empty and start with \".\"")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = fault.New(fault.KindNotFound, "ConfigNotFound", "config: configuration file not found")

	// ErrInvalidConfigFile indicates the configuration file could not be parsed.
	ErrInvalidConfigFile = fault.New(fault.KindValidation, "InvalidConfig", "config: invalid configuration file")
)
