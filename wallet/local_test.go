package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/walletkit/clients"
	"github.com/vitwit/walletkit/types"
)

var (
	testKeys = []string{
		"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	}

	networkA = types.NetworkDescriptor{
		ChainID:        "0x539",
		ChainName:      "Simulated A",
		NativeCurrency: types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:        []string{"http://a.simulated.local"},
	}
	networkB = types.NetworkDescriptor{
		ChainID:        "0x53a",
		ChainName:      "Simulated B",
		NativeCurrency: types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:        []string{"http://b.simulated.local"},
	}
)

func loadKeys(t *testing.T) []*ecdsa.PrivateKey {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, 0, len(testKeys))
	for _, k := range testKeys {
		key, err := crypto.HexToECDSA(k)
		require.NoError(t, err)
		keys = append(keys, key)
	}
	return keys
}

func newTestWallet(t *testing.T, opts ...LocalOption) (*Local, *simulated.Backend, []*ecdsa.PrivateKey) {
	t.Helper()
	keys := loadKeys(t)

	backend := simulated.NewBackend(gethtypes.GenesisAlloc{
		crypto.PubkeyToAddress(keys[0].PublicKey): {Balance: big.NewInt(1e18)},
	})
	t.Cleanup(func() { _ = backend.Close() })

	dialer := func(context.Context, string) (clients.Backend, error) {
		return backend.Client(), nil
	}

	opts = append([]LocalOption{WithDialer(dialer), WithPollInterval(10 * time.Millisecond)}, opts...)
	w, err := NewLocal(keys, networkA, opts...)
	require.NoError(t, err)
	return w, backend, keys
}

func TestLocal_RequestAccounts(t *testing.T) {
	w, _, keys := newTestWallet(t)

	accounts, err := w.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, crypto.PubkeyToAddress(keys[0].PublicKey), accounts[0])

	require.NoError(t, w.SelectAccount(1))
	accounts, err = w.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(keys[1].PublicKey), accounts[0])

	assert.Error(t, w.SelectAccount(5))
}

func TestLocal_Rejection(t *testing.T) {
	w, _, _ := newTestWallet(t, WithApprover(func(context.Context, string, string) bool { return false }))

	_, err := w.RequestAccounts(context.Background())
	assert.True(t, IsUserRejected(err))
}

func TestLocal_SwitchUnknownChain(t *testing.T) {
	w, _, _ := newTestWallet(t)
	ctx := context.Background()

	err := w.SwitchChain(ctx, networkB.ChainID)
	require.Error(t, err)
	assert.True(t, IsUnrecognizedChain(err))

	id, err := w.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x539", id)
}

func TestLocal_AddThenSwitch(t *testing.T) {
	w, _, _ := newTestWallet(t)
	ctx := context.Background()

	ch := make(chan string, 1)
	sub := w.SubscribeChainChanged(ch)
	defer sub.Unsubscribe()

	require.NoError(t, w.AddChain(ctx, networkB))

	// adding does not switch
	id, err := w.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x539", id)

	require.NoError(t, w.SwitchChain(ctx, "0x53A"))

	select {
	case got := <-ch:
		assert.Equal(t, "0x53a", got)
	case <-time.After(time.Second):
		t.Fatal("no chainChanged event")
	}

	id, err = w.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x53a", id)
}

func TestLocal_AddChainValidatesDescriptor(t *testing.T) {
	w, _, _ := newTestWallet(t)

	err := w.AddChain(context.Background(), types.NetworkDescriptor{ChainID: "0x1"})
	require.Error(t, err)
	assert.Equal(t, -32602, ErrorCode(err))
}

func TestLocal_AccountsChangedEvents(t *testing.T) {
	w, _, keys := newTestWallet(t)

	ch := make(chan []common.Address, 2)
	sub := w.SubscribeAccountsChanged(ch)
	defer sub.Unsubscribe()

	// not authorized yet: nothing announced
	require.NoError(t, w.SelectAccount(1))
	assert.Len(t, ch, 0)

	_, err := w.RequestAccounts(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.SelectAccount(0))
	got := <-ch
	assert.Equal(t, crypto.PubkeyToAddress(keys[0].PublicKey), got[0])

	w.Disconnect()
	got = <-ch
	assert.Empty(t, got)
}

func TestLocal_SignerRequiresAuthorization(t *testing.T) {
	w, _, _ := newTestWallet(t)

	_, err := w.Signer(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeUnauthorized, ErrorCode(err))
}

func TestLocal_SignerSends(t *testing.T) {
	w, backend, keys := newTestWallet(t)
	ctx := context.Background()

	_, err := w.RequestAccounts(ctx)
	require.NoError(t, err)

	signer, err := w.Signer(ctx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(keys[0].PublicKey), signer.Address())

	to := crypto.PubkeyToAddress(keys[1].PublicKey)
	hash, err := signer.SendTransaction(ctx, types.TransactionRequest{To: to, Value: big.NewInt(5e16)})
	require.NoError(t, err)
	backend.Commit()

	receipt, err := signer.WaitForConfirmation(ctx, hash)
	require.NoError(t, err)
	assert.True(t, receipt.Success)

	bal, err := w.Balance(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5e16), bal)
}

func TestLocal_SignerRejected(t *testing.T) {
	approver := func(_ context.Context, method, _ string) bool {
		return method != "eth_sendTransaction"
	}
	w, _, keys := newTestWallet(t, WithApprover(approver))
	ctx := context.Background()

	_, err := w.RequestAccounts(ctx)
	require.NoError(t, err)

	signer, err := w.Signer(ctx)
	require.NoError(t, err)

	_, err = signer.SendTransaction(ctx, types.TransactionRequest{
		To:    crypto.PubkeyToAddress(keys[1].PublicKey),
		Value: big.NewInt(1),
	})
	assert.True(t, IsUserRejected(err))
}

func TestLocal_DialFailure(t *testing.T) {
	keys := loadKeys(t)
	w, err := NewLocal(keys, networkA, WithDialer(func(context.Context, string) (clients.Backend, error) {
		return nil, errors.New("dial tcp: connection refused")
	}))
	require.NoError(t, err)

	_, err = w.Balance(context.Background(), common.Address{})
	assert.Equal(t, CodeChainDisconnected, ErrorCode(err))
}

// sharedBackend hides Close so dropping one dial leaves the shared
// simulated client open.
type sharedBackend struct {
	clients.Backend
}

func TestLocal_SlowDialDoesNotBlockWallet(t *testing.T) {
	keys := loadKeys(t)
	backend := simulated.NewBackend(gethtypes.GenesisAlloc{
		crypto.PubkeyToAddress(keys[0].PublicKey): {Balance: big.NewInt(1e18)},
	})
	t.Cleanup(func() { _ = backend.Close() })

	entered := make(chan struct{}, 2)
	gate := make(chan struct{})
	var dials atomic.Int32
	w, err := NewLocal(keys, networkA, WithDialer(func(context.Context, string) (clients.Backend, error) {
		dials.Add(1)
		entered <- struct{}{}
		<-gate
		return sharedBackend{backend.Client()}, nil
	}))
	require.NoError(t, err)

	done := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := w.Balance(context.Background(), crypto.PubkeyToAddress(keys[0].PublicKey))
			done <- err
		}()
	}
	<-entered
	<-entered

	// both dials are parked; the wallet still answers
	answered := make(chan struct{})
	go func() {
		defer close(answered)
		_, _ = w.ChainID(context.Background())
		_ = w.Accounts()
		_ = w.SelectAccount(1)
	}()
	select {
	case <-answered:
	case <-time.After(time.Second):
		t.Fatal("wallet blocked behind a pending dial")
	}

	close(gate)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), dials.Load())

	w.mu.Lock()
	assert.Len(t, w.conns, 1)
	w.mu.Unlock()
}

func TestClassify(t *testing.T) {
	rejected := Classify(types.ErrSubmissionFailed, "send", &ProviderError{Code: CodeUserRejected})
	assert.Equal(t, types.KindUserRejected, rejected.Kind)

	remote := Classify(types.ErrSubmissionFailed, "send", errors.New("insufficient funds"))
	assert.Equal(t, types.KindRemote, remote.Kind)
	assert.Equal(t, types.ErrSubmissionFailed, remote.Code)
}
