package types

import (
	"fmt"
	"math/big"
	"strings"
)

// Network is the short name of a preconfigured network.
type Network string

const (
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
)

func (n Network) String() string {
	return string(n)
}

// NativeCurrency describes the native coin of a chain.
type NativeCurrency struct {
	Name     string `json:"name" validate:"required"`
	Symbol   string `json:"symbol" validate:"required"`
	Decimals int    `json:"decimals" validate:"required,gt=0"`
}

// NetworkDescriptor is the parameter object of wallet_addEthereumChain
// (EIP-3085). It is also what the switch controller compares the wallet's
// reported chain against.
type NetworkDescriptor struct {
	ChainID           string         `json:"chainId" validate:"required,hexadecimal"`
	ChainName         string         `json:"chainName" validate:"required"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls" validate:"required,min=1,dive,url"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty" validate:"dive,url"`
}

// Matches reports whether chainID (hex, any case) names this network.
func (d NetworkDescriptor) Matches(chainID string) bool {
	return strings.EqualFold(d.ChainID, chainID)
}

var (
	BaseSepolia = NetworkDescriptor{
		ChainID:   "0x14a34", // 84532
		ChainName: "Base Sepolia Testnet",
		NativeCurrency: NativeCurrency{
			Name:     "Sepolia ETH",
			Symbol:   "ETH",
			Decimals: 18,
		},
		RPCURLs:           []string{"https://sepolia.base.org"},
		BlockExplorerURLs: []string{"https://sepolia.basescan.org"},
	}

	PolygonAmoy = NetworkDescriptor{
		ChainID:   "0x13882", // 80002
		ChainName: "Polygon Amoy Testnet",
		NativeCurrency: NativeCurrency{
			Name:     "MATIC",
			Symbol:   "MATIC",
			Decimals: 18,
		},
		RPCURLs:           []string{"https://rpc-amoy.polygon.technology/"},
		BlockExplorerURLs: []string{"https://amoy.polygonscan.com/"},
	}
)

// Networks maps the short network names to their descriptors.
var Networks = map[Network]NetworkDescriptor{
	NetworkBaseSepolia: BaseSepolia,
	NetworkPolygonAmoy: PolygonAmoy,
}

// LookupNetwork returns the descriptor registered under name.
func LookupNetwork(name string) (NetworkDescriptor, error) {
	d, ok := Networks[Network(name)]
	if !ok {
		return NetworkDescriptor{}, &Error{
			Kind:    KindValidation,
			Code:    ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", name),
		}
	}
	return d, nil
}

// ParseChainID decodes a 0x-prefixed hex chain id.
func ParseChainID(s string) (*big.Int, error) {
	hex := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if hex == "" {
		return nil, fmt.Errorf("empty chain id")
	}
	n, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, fmt.Errorf("invalid chain id %q", s)
	}
	return n, nil
}

// FormatChainID renders a chain id the way wallets report it: lower-case hex
// with a 0x prefix and no leading zeros.
func FormatChainID(id *big.Int) string {
	return "0x" + id.Text(16)
}
