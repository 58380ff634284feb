// Package session tracks the account and chain an injected wallet exposes,
// and keeps the displayed balance in step with them.
package session

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/metrics"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/wallet"
)

// InstallWalletNotice is shown when no wallet provider is available.
const InstallWalletNotice = "Please install a wallet extension such as MetaMask"

// ErrAlreadyMounted is returned by Mount on a manager that is mounted.
var ErrAlreadyMounted = errors.New("session already mounted")

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

func WithNotifier(n types.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithTimeout bounds each balance and chain read. Zero means no bound.
func WithTimeout(t time.Duration) Option {
	return func(m *Manager) {
		m.timeout = t
	}
}

// Manager owns the session view state. A nil provider models a browser
// without a wallet extension.
type Manager struct {
	provider wallet.Provider
	logger   logger.Logger
	metrics  metrics.Recorder
	notifier types.Notifier
	timeout  time.Duration

	mu        sync.Mutex
	account   *common.Address
	chainID   string
	balance   *big.Int
	updatedAt time.Time

	// refreshes are numbered; a result is applied only if no later-started
	// refresh has been applied already
	issued  uint64
	applied uint64

	mountMu sync.Mutex
	mount   *mount
}

type mount struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a manager over provider, which may be nil.
func New(provider wallet.Provider, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		notifier: types.NoopNotifier{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Provider returns the injected wallet, nil when none is present.
func (m *Manager) Provider() wallet.Provider {
	return m.provider
}

// HasWallet reports whether a provider is present.
func (m *Manager) HasWallet() bool {
	return m.provider != nil
}

// Snapshot returns a copy of the current view state.
func (m *Manager) Snapshot() types.SessionView {
	m.mu.Lock()
	defer m.mu.Unlock()

	view := types.SessionView{
		ChainID:   m.chainID,
		UpdatedAt: m.updatedAt,
	}
	if m.account != nil {
		acc := *m.account
		view.Account = &acc
	}
	if m.balance != nil {
		view.Balance = new(big.Int).Set(m.balance)
	}
	return view
}

// Account returns the active account.
func (m *Manager) Account() (common.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.account == nil {
		return common.Address{}, false
	}
	return *m.account, true
}

// SetChainID records the chain the wallet reported.
func (m *Manager) SetChainID(chainID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chainID = chainID
	m.updatedAt = time.Now()
}

func (m *Manager) setAccount(account *common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.account = account
	if account == nil {
		m.balance = nil
	}
	// results of refreshes started for the previous account are dropped
	m.applied = m.issued
	m.updatedAt = time.Now()
}

func (m *Manager) labels() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labelsLocked()
}

// labelsLocked expects m.mu to be held.
func (m *Manager) labelsLocked() map[string]string {
	return map[string]string{"network": m.chainID}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

// Connect requests account access, selects the first account and refreshes
// its balance. Without a wallet it shows the install notice and leaves the
// state untouched.
func (m *Manager) Connect(ctx context.Context) error {
	if m.provider == nil {
		m.notifier.Notify(InstallWalletNotice)
		m.logger.Warn("no wallet provider available", nil)
		return &types.Error{
			Kind:    types.KindNoWallet,
			Code:    types.ErrWalletNotFound,
			Message: "wallet not found",
		}
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		m.logger.Error("error connecting to wallet", map[string]any{"error": err})
		return wallet.Classify(types.ErrNetworkError, "error connecting to wallet", err)
	}
	if len(accounts) == 0 {
		m.logger.Error("wallet returned no accounts", nil)
		return types.NewRemoteError(types.ErrNoAccount, "wallet returned no accounts", nil)
	}

	selected := accounts[0]
	m.setAccount(&selected)
	m.metrics.IncCounter(metrics.CounterConnect, m.labels())
	m.logger.Info("wallet connected", map[string]any{"account": selected.Hex()})

	readCtx, cancel := m.withTimeout(ctx)
	chainID, err := m.provider.ChainID(readCtx)
	cancel()
	if err != nil {
		m.logger.Warn("error fetching chain id", map[string]any{"error": err})
	} else {
		m.SetChainID(chainID)
	}

	if err := m.RefreshBalance(ctx, selected); err != nil {
		// connect itself succeeded; the balance stays as it was
		m.logger.Error("error fetching balance", map[string]any{"account": selected.Hex(), "error": err})
	}
	return nil
}

// RefreshBalance fetches account's balance and overwrites the displayed one.
// A refresh never overwrites the result of one that started after it, and a
// result for an account other than the active one is dropped.
func (m *Manager) RefreshBalance(ctx context.Context, account common.Address) error {
	if m.provider == nil {
		return nil
	}

	m.mu.Lock()
	m.issued++
	seq := m.issued
	m.mu.Unlock()

	readCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	bal, err := m.provider.Balance(readCtx, account)
	m.metrics.ObserveLatency(metrics.LatencyBalance, time.Since(start), m.labels())
	if err != nil {
		return types.NewRemoteError(types.ErrNetworkError, "error fetching balance", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.IncCounter(metrics.CounterBalanceRefresh, m.labelsLocked())
	if m.account == nil || *m.account != account {
		m.logger.Debug("dropping balance of inactive account", map[string]any{"account": account.Hex()})
		return nil
	}
	if seq > m.applied {
		m.applied = seq
		m.balance = bal
		m.updatedAt = time.Now()
	}
	return nil
}

// Mount subscribes to the wallet's account and chain notifications. Each
// mount must be paired with Unmount; a second Mount without one fails so
// handlers never pile up.
func (m *Manager) Mount(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}

	m.mountMu.Lock()
	defer m.mountMu.Unlock()

	if m.mount != nil {
		return ErrAlreadyMounted
	}

	accountsCh := make(chan []common.Address, 8)
	chainCh := make(chan string, 8)
	accountsSub := m.provider.SubscribeAccountsChanged(accountsCh)
	chainSub := m.provider.SubscribeChainChanged(chainCh)

	loopCtx, cancel := context.WithCancel(ctx)
	mt := &mount{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.mount = mt

	go func() {
		defer close(mt.done)
		defer accountsSub.Unsubscribe()
		defer chainSub.Unsubscribe()

		for {
			select {
			case <-loopCtx.Done():
				return
			case accounts := <-accountsCh:
				m.handleAccountsChanged(loopCtx, accounts)
			case chainID := <-chainCh:
				m.handleChainChanged(loopCtx, chainID)
			}
		}
	}()

	m.logger.Debug("session mounted", map[string]any{"mount_id": mt.id})
	return nil
}

// Unmount removes the subscriptions installed by Mount and waits for the
// event loop to stop. It is a no-op when not mounted.
func (m *Manager) Unmount() {
	m.mountMu.Lock()
	mt := m.mount
	m.mount = nil
	m.mountMu.Unlock()

	if mt == nil {
		return
	}

	mt.cancel()
	<-mt.done
	m.logger.Debug("session unmounted", map[string]any{"mount_id": mt.id})
}

// Mounted reports whether subscriptions are active.
func (m *Manager) Mounted() bool {
	m.mountMu.Lock()
	defer m.mountMu.Unlock()
	return m.mount != nil
}

func (m *Manager) handleAccountsChanged(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		m.setAccount(nil)
		m.logger.Info("wallet disconnected", nil)
		return
	}

	selected := accounts[0]
	m.setAccount(&selected)
	m.logger.Info("account changed", map[string]any{"account": selected.Hex()})

	if err := m.RefreshBalance(ctx, selected); err != nil {
		m.logger.Error("error fetching balance", map[string]any{"account": selected.Hex(), "error": err})
	}
}

func (m *Manager) handleChainChanged(ctx context.Context, chainID string) {
	m.SetChainID(chainID)
	m.logger.Info("chain changed", map[string]any{"chain_id": chainID})

	account, ok := m.Account()
	if !ok {
		return
	}
	if err := m.RefreshBalance(ctx, account); err != nil {
		m.logger.Error("error fetching balance", map[string]any{"account": account.Hex(), "error": err})
	}
}
