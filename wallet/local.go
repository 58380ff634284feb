package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/vitwit/walletkit/clients"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/utils"
)

// Dialer opens a node connection for a network's RPC URL.
type Dialer func(ctx context.Context, rpcURL string) (clients.Backend, error)

// Approver decides whether a request that a browser wallet would show a
// confirmation dialog for goes ahead. method is the JSON-RPC method name.
type Approver func(ctx context.Context, method string, detail string) bool

func dialEthclient(ctx context.Context, rpcURL string) (clients.Backend, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func approveAll(context.Context, string, string) bool { return true }

// LocalOption configures a Local wallet.
type LocalOption func(*Local)

// WithDialer replaces the ethclient dialer.
func WithDialer(d Dialer) LocalOption {
	return func(l *Local) {
		l.dial = d
	}
}

// WithApprover installs a confirmation hook. The default approves everything.
func WithApprover(a Approver) LocalOption {
	return func(l *Local) {
		l.approve = a
	}
}

// WithKnownNetworks pre-registers networks besides the initial one.
func WithKnownNetworks(networks ...types.NetworkDescriptor) LocalOption {
	return func(l *Local) {
		for _, n := range networks {
			l.networks[strings.ToLower(n.ChainID)] = n
		}
	}
}

// WithPollInterval sets the receipt polling period of returned signers.
func WithPollInterval(d time.Duration) LocalOption {
	return func(l *Local) {
		l.pollInterval = d
	}
}

// Local is a process-local wallet holding private keys. It behaves like a
// browser extension: accounts are exposed after RequestAccounts, chains must
// be added before they can be switched to, and account/chain changes are
// announced on event feeds.
type Local struct {
	mu           sync.Mutex
	keys         []*ecdsa.PrivateKey
	selected     int
	authorized   bool
	networks     map[string]types.NetworkDescriptor
	active       string
	conns        map[string]clients.Backend
	dial         Dialer
	approve      Approver
	pollInterval time.Duration

	accountsFeed event.Feed
	chainFeed    event.Feed
}

var _ Provider = (*Local)(nil)

// NewLocal builds a wallet over keys, active on initial.
func NewLocal(keys []*ecdsa.PrivateKey, initial types.NetworkDescriptor, opts ...LocalOption) (*Local, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("local wallet needs at least one key")
	}
	if err := utils.Validator().Struct(initial); err != nil {
		return nil, fmt.Errorf("invalid initial network: %w", err)
	}

	l := &Local{
		keys:     keys,
		networks: map[string]types.NetworkDescriptor{},
		active:   strings.ToLower(initial.ChainID),
		conns:    map[string]clients.Backend{},
		dial:     dialEthclient,
		approve:  approveAll,
	}
	l.networks[l.active] = initial

	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// accountsLocked lists addresses with the selected one first.
func (l *Local) accountsLocked() []common.Address {
	out := make([]common.Address, 0, len(l.keys))
	out = append(out, utils.AddressFromPrivateKey(l.keys[l.selected]))
	for i, k := range l.keys {
		if i != l.selected {
			out = append(out, utils.AddressFromPrivateKey(k))
		}
	}
	return out
}

func (l *Local) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if !l.approve(ctx, "eth_requestAccounts", "") {
		return nil, &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.authorized = true
	return l.accountsLocked(), nil
}

func (l *Local) ChainID(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, nil
}

func (l *Local) SwitchChain(ctx context.Context, chainID string) error {
	id := strings.ToLower(chainID)

	l.mu.Lock()
	network, known := l.networks[id]
	current := l.active
	l.mu.Unlock()

	if !known {
		return &ProviderError{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", chainID),
		}
	}
	if id == current {
		return nil
	}
	if !l.approve(ctx, "wallet_switchEthereumChain", network.ChainName) {
		return &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}
	}

	l.mu.Lock()
	l.active = id
	l.mu.Unlock()

	l.chainFeed.Send(id)
	return nil
}

func (l *Local) AddChain(ctx context.Context, network types.NetworkDescriptor) error {
	if err := utils.Validator().Struct(network); err != nil {
		return &ProviderError{Code: -32602, Message: fmt.Sprintf("invalid chain parameters: %v", err)}
	}
	if !l.approve(ctx, "wallet_addEthereumChain", network.ChainName) {
		return &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.networks[strings.ToLower(network.ChainID)] = network
	return nil
}

// backend returns the connection for the active chain, dialing on first use.
// The dial runs without l.mu held; when two dials race the first stored wins.
func (l *Local) backend(ctx context.Context) (clients.Backend, error) {
	l.mu.Lock()
	id := l.active
	conn, ok := l.conns[id]
	network := l.networks[id]
	l.mu.Unlock()

	if ok {
		return conn, nil
	}

	conn, err := l.dial(ctx, network.RPCURLs[0])
	if err != nil {
		return nil, &ProviderError{
			Code:    CodeChainDisconnected,
			Message: fmt.Sprintf("cannot reach %s: %v", network.ChainName, err),
		}
	}

	l.mu.Lock()
	existing, raced := l.conns[id]
	if !raced {
		l.conns[id] = conn
	}
	l.mu.Unlock()

	if raced {
		closeBackend(conn)
		return existing, nil
	}
	return conn, nil
}

func closeBackend(conn clients.Backend) {
	if c, ok := conn.(interface{ Close() }); ok {
		c.Close()
	}
}

func (l *Local) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	conn, err := l.backend(ctx)
	if err != nil {
		return nil, err
	}
	return conn.BalanceAt(ctx, account, nil)
}

func (l *Local) Signer(ctx context.Context) (Signer, error) {
	l.mu.Lock()
	authorized := l.authorized
	key := l.keys[l.selected]
	l.mu.Unlock()

	if !authorized {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "The requested account has not been authorized by the user."}
	}

	conn, err := l.backend(ctx)
	if err != nil {
		return nil, err
	}

	signer := clients.NewEVMClientWithBackend(conn, key)
	signer.SetPollInterval(l.pollInterval)
	return &approvingSigner{Client: signer, approve: l.approve}, nil
}

func (l *Local) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return l.accountsFeed.Subscribe(ch)
}

func (l *Local) SubscribeChainChanged(ch chan<- string) event.Subscription {
	return l.chainFeed.Subscribe(ch)
}

// Accounts lists the wallet's addresses, selected first.
func (l *Local) Accounts() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accountsLocked()
}

// SelectAccount makes the i-th key the selected account and announces it.
func (l *Local) SelectAccount(i int) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.keys) {
		l.mu.Unlock()
		return fmt.Errorf("account index %d out of range", i)
	}
	l.selected = i
	authorized := l.authorized
	accounts := l.accountsLocked()
	l.mu.Unlock()

	if authorized {
		l.accountsFeed.Send(accounts)
	}
	return nil
}

// Disconnect revokes account access and announces an empty account list.
func (l *Local) Disconnect() {
	l.mu.Lock()
	wasAuthorized := l.authorized
	l.authorized = false
	l.mu.Unlock()

	if wasAuthorized {
		l.accountsFeed.Send([]common.Address{})
	}
}

// Close drops every open connection.
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, conn := range l.conns {
		closeBackend(conn)
		delete(l.conns, id)
	}
}

// approvingSigner asks the approver before broadcasting.
type approvingSigner struct {
	clients.Client
	approve Approver
}

func (s *approvingSigner) SendTransaction(ctx context.Context, req types.TransactionRequest) (common.Hash, error) {
	detail := fmt.Sprintf("send %s ETH to %s", utils.FormatEther(req.Value), req.To.Hex())
	if !s.approve(ctx, "eth_sendTransaction", detail) {
		return common.Hash{}, &ProviderError{Code: CodeUserRejected, Message: "User denied transaction signature."}
	}
	return s.Client.SendTransaction(ctx, req)
}
