package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	wktypes "github.com/vitwit/walletkit/types"
)

// DefaultPollInterval is how often WaitForConfirmation asks for a receipt.
const DefaultPollInterval = time.Second

// Backend is the slice of the node API the EVM client needs. Both
// *ethclient.Client and the simulated backend's client satisfy it.
type Backend interface {
	ethereum.ChainIDReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionReader
	ethereum.TransactionSender

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// EVMClient wraps one RPC connection and, optionally, one signing key.
type EVMClient struct {
	backend      Backend
	signer       *ecdsa.PrivateKey
	pollInterval time.Duration

	mu      sync.Mutex
	chainID *big.Int
}

// NewEVMClient dials rpcURL. signer may be nil for a read-only client.
func NewEVMClient(rpcURL string, signer *ecdsa.PrivateKey) (*EVMClient, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	return NewEVMClientWithBackend(eth, signer), nil
}

// NewEVMClientWithBackend builds a client over an existing connection.
func NewEVMClientWithBackend(backend Backend, signer *ecdsa.PrivateKey) *EVMClient {
	return &EVMClient{
		backend:      backend,
		signer:       signer,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval changes the receipt polling period.
func (e *EVMClient) SetPollInterval(d time.Duration) {
	if d > 0 {
		e.pollInterval = d
	}
}

// Backend returns the underlying connection.
func (e *EVMClient) Backend() Backend {
	return e.backend
}

// Address returns the signing account, zero when the client is read-only.
func (e *EVMClient) Address() common.Address {
	if e.signer == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(e.signer.PublicKey)
}

// CanSign reports whether a key is attached.
func (e *EVMClient) CanSign() bool {
	return e.signer != nil
}

// ChainID asks the node once and caches the answer.
func (e *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.chainID == nil {
		id, err := e.backend.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		e.chainID = id
	}
	return new(big.Int).Set(e.chainID), nil
}

// Balance returns the latest balance of account in wei.
func (e *EVMClient) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := e.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account.Hex(), err)
	}
	return bal, nil
}

// SendTransaction signs req with the attached key and broadcasts it.
func (e *EVMClient) SendTransaction(ctx context.Context, req wktypes.TransactionRequest) (common.Hash, error) {
	if e.signer == nil {
		return common.Hash{}, ErrNoSigner
	}

	chainID, err := e.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id fetch failed: %w", err)
	}

	from := e.Address()
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := e.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce failed: %w", err)
	}

	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price failed: %w", err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		to := req.To
		gasLimit, err = e.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas failed: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), e.signer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx failed: %w", err)
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx failed: %w", err)
	}

	return signed.Hash(), nil
}

// WaitForConfirmation blocks until the transaction is included in a block or
// ctx ends. There is no built-in deadline.
func (e *EVMClient) WaitForConfirmation(ctx context.Context, txHash common.Hash) (*wktypes.Receipt, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return &wktypes.Receipt{
				TxHash:      receipt.TxHash,
				BlockNumber: receipt.BlockNumber,
				GasUsed:     receipt.GasUsed,
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt of %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the connection when the backend owns one.
func (e *EVMClient) Close() {
	if c, ok := e.backend.(interface{ Close() }); ok {
		c.Close()
	}
}
