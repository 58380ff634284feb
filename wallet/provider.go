// Package wallet defines the injected wallet the session, network and
// transfer flows talk to, and ships a process-local implementation backed by
// private keys.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/vitwit/walletkit/types"
)

// Provider is an EIP-1193 style wallet. All calls may fail with a
// *ProviderError carrying a wallet-defined code.
type Provider interface {
	// RequestAccounts asks the user for account access (eth_requestAccounts).
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the active chain as 0x-prefixed hex (eth_chainId).
	ChainID(ctx context.Context) (string, error)

	// SwitchChain makes chainID active (wallet_switchEthereumChain).
	SwitchChain(ctx context.Context, chainID string) error

	// AddChain registers a network with the wallet (wallet_addEthereumChain).
	AddChain(ctx context.Context, network types.NetworkDescriptor) error

	// Balance reads account's balance on the active chain.
	Balance(ctx context.Context, account common.Address) (*big.Int, error)

	// Signer returns a signer for the selected account on the active chain.
	Signer(ctx context.Context) (Signer, error)

	SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription
	SubscribeChainChanged(ch chan<- string) event.Subscription
}

// Signer submits transactions on behalf of one account.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, req types.TransactionRequest) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EIP-1193 and EIP-3326 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// ProviderError is an error reported by the wallet itself.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the provider code carried by err, or 0.
func ErrorCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// IsUserRejected reports whether the user declined the request.
func IsUserRejected(err error) bool {
	return ErrorCode(err) == CodeUserRejected
}

// IsUnrecognizedChain reports whether the wallet does not know the chain.
func IsUnrecognizedChain(err error) bool {
	return ErrorCode(err) == CodeUnrecognizedChain
}

// Classify converts a provider failure into a typed walletkit error.
func Classify(code, message string, err error) *types.Error {
	if IsUserRejected(err) {
		return &types.Error{
			Kind:    types.KindUserRejected,
			Code:    types.ErrRequestRejected,
			Message: message,
			Err:     err,
		}
	}
	return types.NewRemoteError(code, message, err)
}
