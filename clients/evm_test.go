package clients

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wktypes "github.com/vitwit/walletkit/types"
)

const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var recipientAddress = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newSimulatedClient(t *testing.T) (*simulated.Backend, *EVMClient) {
	t.Helper()

	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)

	backend := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: ether(10)},
	})
	t.Cleanup(func() { _ = backend.Close() })

	client := NewEVMClientWithBackend(backend.Client(), key)
	client.SetPollInterval(10 * time.Millisecond)
	return backend, client
}

func TestEVMClient_ChainID(t *testing.T) {
	_, client := newSimulatedClient(t)

	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1337), id.Int64())

	// cached copy must not be shared with callers
	id.SetInt64(1)
	again, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1337), again.Int64())
}

func TestEVMClient_SendAndConfirm(t *testing.T) {
	backend, client := newSimulatedClient(t)
	ctx := context.Background()

	bal, err := client.Balance(ctx, client.Address())
	require.NoError(t, err)
	assert.Equal(t, ether(10), bal)

	amount := big.NewInt(5e16)
	hash, err := client.SendTransaction(ctx, wktypes.TransactionRequest{
		To:    recipientAddress,
		Value: amount,
	})
	require.NoError(t, err)

	backend.Commit()

	receipt, err := client.WaitForConfirmation(ctx, hash)
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, uint64(21000), receipt.GasUsed)

	got, err := client.Balance(ctx, recipientAddress)
	require.NoError(t, err)
	assert.Equal(t, amount, got)
}

func TestEVMClient_FixedGasLimit(t *testing.T) {
	backend, client := newSimulatedClient(t)
	ctx := context.Background()

	hash, err := client.SendTransaction(ctx, wktypes.TransactionRequest{
		To:       recipientAddress,
		Value:    big.NewInt(1),
		GasLimit: 210000,
	})
	require.NoError(t, err)
	backend.Commit()

	tx, _, err := backend.Client().TransactionByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(210000), tx.Gas())
}

func TestEVMClient_WaitHonoursContext(t *testing.T) {
	_, client := newSimulatedClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.WaitForConfirmation(ctx, common.HexToHash("0x01"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEVMClient_ReadOnly(t *testing.T) {
	backend, _ := newSimulatedClient(t)
	client := NewEVMClientWithBackend(backend.Client(), nil)

	assert.False(t, client.CanSign())
	assert.Equal(t, common.Address{}, client.Address())

	_, err := client.SendTransaction(context.Background(), wktypes.TransactionRequest{To: recipientAddress})
	assert.ErrorIs(t, err, ErrNoSigner)
}
