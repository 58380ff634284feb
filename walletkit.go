// Package walletkit connects an injected wallet to a small EVM dapp: it tracks
// the wallet's account, chain and balance, toggles between two testnets, and
// submits transfers to addresses and to the greeter contract.
package walletkit

import (
	"context"
	"time"

	"github.com/vitwit/walletkit/clients"
	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/metrics"
	"github.com/vitwit/walletkit/network"
	"github.com/vitwit/walletkit/session"
	"github.com/vitwit/walletkit/transfer"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/wallet"
)

// Version of the walletkit library.
const Version = "0.1.0"

// Kit wires the session, the network switcher and the transfer service to
// one wallet provider.
type Kit struct {
	provider  wallet.Provider
	contract  *clients.Greeter
	session   *session.Manager
	switcher  *network.Switcher
	transfers *transfer.Service

	logger   logger.Logger
	metrics  metrics.Recorder
	notifier types.Notifier
	timeout  time.Duration
	first    types.NetworkDescriptor
	second   types.NetworkDescriptor
}

// New builds a Kit over provider. A nil provider stands for "no wallet
// installed"; contract may be nil when the contract actions are not used.
func New(provider wallet.Provider, contract *clients.Greeter, opts ...Option) (*Kit, error) {
	k := &Kit{
		provider: provider,
		contract: contract,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		notifier: types.NoopNotifier{},
		timeout:  30 * time.Second,
		first:    types.BaseSepolia,
		second:   types.PolygonAmoy,
	}
	for _, opt := range opts {
		opt(k)
	}

	k.session = session.New(provider,
		session.WithLogger(k.logger),
		session.WithMetrics(k.metrics),
		session.WithNotifier(k.notifier),
		session.WithTimeout(k.timeout),
	)

	switcher, err := network.NewSwitcher(provider, k.first, k.second,
		network.WithLogger(k.logger),
		network.WithMetrics(k.metrics),
		network.WithRecorder(k.session),
	)
	if err != nil {
		return nil, err
	}
	k.switcher = switcher

	k.transfers = transfer.New(provider, contract,
		transfer.WithLogger(k.logger),
		transfer.WithMetrics(k.metrics),
		transfer.WithNotifier(k.notifier),
		transfer.WithRefresher(k.session),
	)
	return k, nil
}

func (k *Kit) Session() *session.Manager    { return k.session }
func (k *Kit) Switcher() *network.Switcher  { return k.switcher }
func (k *Kit) Transfers() *transfer.Service { return k.transfers }
func (k *Kit) Contract() *clients.Greeter   { return k.contract }
func (k *Kit) Provider() wallet.Provider    { return k.provider }

// Snapshot returns the current session view.
func (k *Kit) Snapshot() types.SessionView {
	return k.session.Snapshot()
}

// Start subscribes to wallet notifications. Pair it with Stop.
func (k *Kit) Start(ctx context.Context) error {
	return k.session.Mount(ctx)
}

// Stop removes the subscriptions installed by Start.
func (k *Kit) Stop() {
	k.session.Unmount()
}

// Connect requests account access and loads the first account's balance.
func (k *Kit) Connect(ctx context.Context) error {
	return k.session.Connect(ctx)
}

// ToggleNetwork switches between the two configured networks.
func (k *Kit) ToggleNetwork(ctx context.Context) (network.Result, error) {
	return k.switcher.Toggle(ctx)
}

// SendETH sends amount ether to recipient.
func (k *Kit) SendETH(ctx context.Context, recipient, amount string) (*types.Receipt, error) {
	return k.transfers.SendToAddress(ctx, recipient, amount)
}

// SendETHToContract sends amount ether to the contract.
func (k *Kit) SendETHToContract(ctx context.Context, amount string) (*types.Receipt, error) {
	return k.transfers.SendToContract(ctx, amount)
}

// ContractSendEther asks the contract to pay amount to recipient.
func (k *Kit) ContractSendEther(ctx context.Context, recipient, amount string) (*types.Receipt, error) {
	return k.transfers.ForwardFromContract(ctx, recipient, amount)
}

// Greeting reads the contract's greeting.
func (k *Kit) Greeting(ctx context.Context) (string, error) {
	if k.contract == nil {
		return "", types.NewValidationError(types.ErrConfigError, "no contract configured")
	}
	ctx, cancel := k.readContext(ctx)
	defer cancel()

	greeting, err := k.contract.SayHello(ctx)
	if err != nil {
		k.logger.Error("error calling sayHello", map[string]any{"error": err})
		return "", types.NewRemoteError(types.ErrNetworkError, "error calling sayHello", err)
	}
	return greeting, nil
}

// Owner reads the contract owner.
func (k *Kit) Owner(ctx context.Context) (string, error) {
	if k.contract == nil {
		return "", types.NewValidationError(types.ErrConfigError, "no contract configured")
	}
	ctx, cancel := k.readContext(ctx)
	defer cancel()

	owner, err := k.contract.Owner(ctx)
	if err != nil {
		k.logger.Error("error fetching contract owner", map[string]any{"error": err})
		return "", types.NewRemoteError(types.ErrNetworkError, "error fetching contract owner", err)
	}
	return owner.Hex(), nil
}

func (k *Kit) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if k.timeout > 0 {
		return context.WithTimeout(ctx, k.timeout)
	}
	return context.WithCancel(ctx)
}

// Close stops the subscriptions and flushes the logger.
func (k *Kit) Close() {
	k.Stop()
	_ = k.logger.Sync()
}
