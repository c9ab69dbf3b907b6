package wallet

import "fmt"

// NetworkConfig defines address parameters for a BSV network.
type NetworkConfig struct {
	Name           string `json:"name"`
	AddressVersion byte   `json:"address_version"`
}

// Predefined network configurations.
var (
	MainNet = NetworkConfig{
		Name:           "mainnet",
		AddressVersion: 0x00,
	}

	TestNet = NetworkConfig{
		Name:           "testnet",
		AddressVersion: 0x6f,
	}

	RegTest = NetworkConfig{
		Name:           "regtest",
		AddressVersion: 0x6f,
	}
)

var predefined = map[string]*NetworkConfig{
	"mainnet": &MainNet,
	"testnet": &TestNet,
	"regtest": &RegTest,
}

// GetNetwork returns a predefined network by name.
// If the name is not predefined, it returns ErrInvalidNetwork.
func GetNetwork(name string) (*NetworkConfig, error) {
	if net, ok := predefined[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}

// IsMainnet reports whether addresses use the mainnet version byte.
func (n *NetworkConfig) IsMainnet() bool {
	return n == nil || n.AddressVersion == MainNet.AddressVersion
}
