package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	wktypes "github.com/vitwit/walletkit/types"
)

// GreeterABI is the interface of the demo contract: anyone can read the
// greeting and the owner, and the owner can forward ether the contract holds.
const GreeterABI = `
[
  {
    "name": "owner",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{ "name": "", "type": "address" }]
  },
  {
    "name": "sayHello",
    "type": "function",
    "stateMutability": "pure",
    "inputs": [],
    "outputs": [{ "name": "", "type": "string" }]
  },
  {
    "name": "sendEther",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "_to", "type": "address" },
      { "name": "_amount", "type": "uint256" }
    ],
    "outputs": []
  },
  {
    "type": "receive",
    "stateMutability": "payable"
  }
]
`

// ReadBackend is what a read-only contract handle needs.
type ReadBackend interface {
	ethereum.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Greeter binds the demo contract's address and ABI to a read-only
// connection. Writes are not sent from here: SendEtherRequest builds the
// request a wallet signer submits.
type Greeter struct {
	address common.Address
	abi     abi.ABI
	backend ReadBackend
}

// NewGreeter parses the ABI and binds it to address.
func NewGreeter(address common.Address, backend ReadBackend) (*Greeter, error) {
	parsed, err := abi.JSON(strings.NewReader(GreeterABI))
	if err != nil {
		return nil, fmt.Errorf("parse greeter abi: %w", err)
	}

	return &Greeter{
		address: address,
		abi:     parsed,
		backend: backend,
	}, nil
}

// Address of the bound contract.
func (g *Greeter) Address() common.Address {
	return g.address
}

// Owner calls owner().
func (g *Greeter) Owner(ctx context.Context) (common.Address, error) {
	out, err := g.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("owner: unexpected output type %T", out[0])
	}
	return owner, nil
}

// SayHello calls sayHello().
func (g *Greeter) SayHello(ctx context.Context) (string, error) {
	out, err := g.call(ctx, "sayHello")
	if err != nil {
		return "", err
	}

	greeting, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("sayHello: unexpected output type %T", out[0])
	}
	return greeting, nil
}

// Balance returns the ether the contract holds, in wei.
func (g *Greeter) Balance(ctx context.Context) (*big.Int, error) {
	bal, err := g.backend.BalanceAt(ctx, g.address, nil)
	if err != nil {
		return nil, fmt.Errorf("contract balance: %w", err)
	}
	return bal, nil
}

// SendEtherRequest packs sendEther(to, amount). The transaction itself
// carries no value: the contract pays from its own balance.
func (g *Greeter) SendEtherRequest(to common.Address, amount *big.Int) (wktypes.TransactionRequest, error) {
	data, err := g.abi.Pack("sendEther", to, amount)
	if err != nil {
		return wktypes.TransactionRequest{}, fmt.Errorf("pack sendEther: %w", err)
	}

	return wktypes.TransactionRequest{
		To:    g.address,
		Value: new(big.Int),
		Data:  data,
	}, nil
}

// FundRequest builds a plain value transfer into the contract.
func (g *Greeter) FundRequest(amount *big.Int) wktypes.TransactionRequest {
	return wktypes.TransactionRequest{
		To:    g.address,
		Value: amount,
	}
}

func (g *Greeter) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	callData, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{
		To:   &g.address,
		Data: callData,
	}

	raw, err := g.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("call %s: %w", method, ErrNoContractData)
	}

	out, err := g.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: %w", method, ErrNoContractData)
	}
	return out, nil
}
