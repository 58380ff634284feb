package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	wktypes "github.com/vitwit/walletkit/types"
)

// Client is a connection to one EVM chain acting for one account.
type Client interface {
	Address() common.Address
	ChainID(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	SendTransaction(ctx context.Context, req wktypes.TransactionRequest) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, txHash common.Hash) (*wktypes.Receipt, error)
	Close()
}

var _ Client = (*EVMClient)(nil)
