// Package config loads walletkit settings from the environment, after
// merging in a .env file when one exists.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/utils"
)

// DefaultEnvFile is read by Load when no file is named.
const DefaultEnvFile = ".env"

// Config holds every setting the binaries read.
type Config struct {
	// RPC is the node endpoint the script and the contract reads use.
	RPC string `envconfig:"RPC" required:"true" validate:"required,url"`

	// PrivateKey is one hex key, or several separated by commas. The first
	// one is the account the wallet selects.
	PrivateKey string `envconfig:"PRIVATE_KEY" required:"true" validate:"required"`

	// ContractAddress is the deployed greeter contract.
	ContractAddress string `envconfig:"CONTRACT_ADDRESS" required:"true" validate:"required,eth_addr"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	MetricsAddr string `envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`

	// Network is the chain the console wallet starts on.
	Network string `envconfig:"NETWORK" default:"base-sepolia" validate:"oneof=base-sepolia polygon-amoy"`
}

// Load reads files (DefaultEnvFile when none are given) into the process
// environment, without overriding variables that are already set, then
// decodes and validates the environment. Missing files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, configError(fmt.Sprintf("reading %s", f), err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, configError("reading environment", err)
	}
	if err := utils.Validator().Struct(cfg); err != nil {
		return nil, configError("invalid configuration", err)
	}
	if _, err := cfg.Keys(); err != nil {
		return nil, configError("invalid PRIVATE_KEY", err)
	}
	return &cfg, nil
}

func configError(message string, err error) *types.Error {
	return &types.Error{
		Kind:    types.KindValidation,
		Code:    types.ErrConfigError,
		Message: message,
		Err:     err,
	}
}

// Keys parses PrivateKey.
func (c *Config) Keys() ([]*ecdsa.PrivateKey, error) {
	return utils.PrivateKeysFromList(c.PrivateKey)
}

// Contract returns the contract address.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// InitialNetwork returns the descriptor Network names.
func (c *Config) InitialNetwork() (types.NetworkDescriptor, error) {
	return types.LookupNetwork(c.Network)
}

// RPCNetwork describes the chain behind RPC. A known chain keeps its name
// and currency with RPC as its endpoint; anything else gets a generic ether
// descriptor.
func (c *Config) RPCNetwork(chainID *big.Int) types.NetworkDescriptor {
	id := types.FormatChainID(chainID)
	for _, known := range []types.NetworkDescriptor{types.BaseSepolia, types.PolygonAmoy} {
		if known.Matches(id) {
			known.RPCURLs = []string{c.RPC}
			return known
		}
	}

	return types.NetworkDescriptor{
		ChainID:   id,
		ChainName: fmt.Sprintf("Chain %s", chainID),
		NativeCurrency: types.NativeCurrency{
			Name:     "Ether",
			Symbol:   "ETH",
			Decimals: utils.EtherDecimals,
		},
		RPCURLs: []string{c.RPC},
	}
}
