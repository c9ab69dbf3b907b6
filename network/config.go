package network

import (
	"fmt"
	"time"
)

// GatewayConfig holds the connection parameters for the upload gateway.
type GatewayConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Network string        `json:"network"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultTimeout bounds one gateway request.
const DefaultTimeout = 60 * time.Second

// GatewayPresets contains default gateway configurations for local networks.
// Mainnet is intentionally omitted to require explicit configuration.
var GatewayPresets = map[string]GatewayConfig{
	"regtest": {URL: "http://localhost:1984"},
	"testnet": {URL: "http://localhost:1984"},
}

// ResolveConfig merges gateway configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (SPONSOR_GATEWAY_URL, SPONSOR_GATEWAY_TOKEN)
//  3. Network presets (lowest priority, regtest/testnet only)
func ResolveConfig(flags *GatewayConfig, env map[string]string, network string) (*GatewayConfig, error) {
	result := GatewayConfig{Network: network}

	if preset, ok := GatewayPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if v := env["SPONSOR_GATEWAY_URL"]; v != "" {
		result.URL = v
	}
	if v := env["SPONSOR_GATEWAY_TOKEN"]; v != "" {
		result.Token = v
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.Token != "" {
			result.Token = flags.Token
		}
		if flags.Timeout > 0 {
			result.Timeout = flags.Timeout
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("%w: %s requires an explicit gateway (set --gateway-url, SPONSOR_GATEWAY_URL, or config file)", ErrNoGateway, network)
	}
	if result.Timeout == 0 {
		result.Timeout = DefaultTimeout
	}
	return &result, nil
}
