// Package wallettest provides in-memory wallet doubles for tests.
package wallettest

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/mock"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/wallet"
)

// Provider is a scriptable wallet.Provider. Switching to a chain that is not
// known fails with code 4902; AddChain makes it known without switching.
type Provider struct {
	mu sync.Mutex

	accounts []common.Address
	chain    string
	known    map[string]bool
	balances map[common.Address]*big.Int
	gates    map[common.Address]chan struct{}
	calls    map[string]int
	added    []types.NetworkDescriptor

	RequestErr error
	ChainErr   error
	SwitchErr  error
	AddErr     error
	BalanceErr error
	SignerErr  error

	signer wallet.Signer

	accountsFeed event.Feed
	chainFeed    event.Feed
}

var _ wallet.Provider = (*Provider)(nil)

// NewProvider returns a wallet on chain that knows the given chains.
func NewProvider(chain string, known ...string) *Provider {
	p := &Provider{
		chain:    strings.ToLower(chain),
		known:    map[string]bool{strings.ToLower(chain): true},
		balances: map[common.Address]*big.Int{},
		gates:    map[common.Address]chan struct{}{},
		calls:    map[string]int{},
	}
	for _, k := range known {
		p.known[strings.ToLower(k)] = true
	}
	return p
}

func (p *Provider) record(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
}

// Calls returns how often method was invoked.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// SetAccounts sets what RequestAccounts returns.
func (p *Provider) SetAccounts(accounts ...common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

// SetBalance sets the balance Balance reports for account.
func (p *Provider) SetBalance(account common.Address, wei *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[account] = wei
}

// HoldBalance makes Balance for account block until the returned release
// function is called.
func (p *Provider) HoldBalance(account common.Address) (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gates[account] = gate
	p.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetSigner sets what Signer returns.
func (p *Provider) SetSigner(s wallet.Signer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signer = s
}

// Added lists the descriptors passed to AddChain.
func (p *Provider) Added() []types.NetworkDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.NetworkDescriptor(nil), p.added...)
}

// EmitAccounts fires an accounts-changed notification.
func (p *Provider) EmitAccounts(accounts ...common.Address) int {
	return p.accountsFeed.Send(accounts)
}

// EmitChain fires a chain-changed notification.
func (p *Provider) EmitChain(chainID string) int {
	return p.chainFeed.Send(chainID)
}

func (p *Provider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.record("eth_requestAccounts")
	if p.RequestErr != nil {
		return nil, p.RequestErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]common.Address(nil), p.accounts...), nil
}

func (p *Provider) ChainID(context.Context) (string, error) {
	p.record("eth_chainId")
	if p.ChainErr != nil {
		return "", p.ChainErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chain, nil
}

func (p *Provider) SwitchChain(_ context.Context, chainID string) error {
	p.record("wallet_switchEthereumChain")
	if p.SwitchErr != nil {
		return p.SwitchErr
	}

	id := strings.ToLower(chainID)
	p.mu.Lock()
	if !p.known[id] {
		p.mu.Unlock()
		return &wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	}
	changed := p.chain != id
	p.chain = id
	p.mu.Unlock()

	if changed {
		p.chainFeed.Send(id)
	}
	return nil
}

func (p *Provider) AddChain(_ context.Context, network types.NetworkDescriptor) error {
	p.record("wallet_addEthereumChain")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, network)
	if p.AddErr != nil {
		return p.AddErr
	}
	p.known[strings.ToLower(network.ChainID)] = true
	return nil
}

func (p *Provider) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	p.record("eth_getBalance")

	p.mu.Lock()
	gate := p.gates[account]
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.BalanceErr != nil {
		return nil, p.BalanceErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if bal, ok := p.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (p *Provider) Signer(context.Context) (wallet.Signer, error) {
	p.record("signer")
	if p.SignerErr != nil {
		return nil, p.SignerErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signer, nil
}

func (p *Provider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

func (p *Provider) SubscribeChainChanged(ch chan<- string) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

// Signer is a testify mock of wallet.Signer.
type Signer struct {
	mock.Mock
}

var _ wallet.Signer = (*Signer)(nil)

func (s *Signer) Address() common.Address {
	args := s.Called()
	return args.Get(0).(common.Address)
}

func (s *Signer) SendTransaction(ctx context.Context, req types.TransactionRequest) (common.Hash, error) {
	args := s.Called(ctx, req)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (s *Signer) WaitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := s.Called(ctx, txHash)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}
