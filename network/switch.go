// Package network toggles the wallet between two configured chains, adding
// the target chain to the wallet when it does not know it yet.
package network

import (
	"context"
	"fmt"

	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/metrics"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/utils"
	"github.com/vitwit/walletkit/wallet"
)

// ChainRecorder receives the chain id the wallet reports. *session.Manager
// satisfies it.
type ChainRecorder interface {
	SetChainID(chainID string)
}

type noopRecorder struct{}

func (noopRecorder) SetChainID(string) {}

// Result describes what a Toggle did.
type Result struct {
	// From is the chain id the wallet reported before the toggle.
	From string `json:"from"`

	// Target is the network the toggle asked for.
	Target types.NetworkDescriptor `json:"target"`

	// Switched is true when the wallet is now on Target.
	Switched bool `json:"switched"`

	// Added is true when Target was unknown to the wallet and has been added.
	// The wallet stays on From in that case; toggling again switches.
	Added bool `json:"added"`
}

// Option configures a Switcher.
type Option func(*Switcher)

func WithLogger(l logger.Logger) Option {
	return func(s *Switcher) {
		s.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Switcher) {
		s.metrics = r
	}
}

// WithRecorder sets where observed chain ids are reported.
func WithRecorder(r ChainRecorder) Option {
	return func(s *Switcher) {
		s.recorder = r
	}
}

// Switcher flips the wallet between first and second.
type Switcher struct {
	provider wallet.Provider
	first    types.NetworkDescriptor
	second   types.NetworkDescriptor
	recorder ChainRecorder
	logger   logger.Logger
	metrics  metrics.Recorder
}

// NewSwitcher validates both descriptors. provider may be nil, in which case
// Toggle reports that no wallet is present.
func NewSwitcher(provider wallet.Provider, first, second types.NetworkDescriptor, opts ...Option) (*Switcher, error) {
	for _, d := range []types.NetworkDescriptor{first, second} {
		if err := utils.Validator().Struct(d); err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", d.ChainName, err)
		}
	}
	if first.Matches(second.ChainID) {
		return nil, fmt.Errorf("toggle networks must differ, both are %s", first.ChainID)
	}

	s := &Switcher{
		provider: provider,
		first:    first,
		second:   second,
		recorder: noopRecorder{},
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Networks returns the two toggle targets.
func (s *Switcher) Networks() (types.NetworkDescriptor, types.NetworkDescriptor) {
	return s.first, s.second
}

// TargetFor returns the network a toggle from current goes to.
func (s *Switcher) TargetFor(current string) types.NetworkDescriptor {
	if s.first.Matches(current) {
		return s.second
	}
	return s.first
}

// Toggle switches to whichever configured network the wallet is not on. If
// the wallet does not know the target (code 4902) the network is added once
// and the switch is not retried.
func (s *Switcher) Toggle(ctx context.Context) (Result, error) {
	if s.provider == nil {
		return Result{}, &types.Error{
			Kind:    types.KindNoWallet,
			Code:    types.ErrWalletNotFound,
			Message: "wallet not found",
		}
	}

	current, err := s.provider.ChainID(ctx)
	if err != nil {
		s.logger.Error("error reading chain id", map[string]any{"error": err})
		return Result{}, wallet.Classify(types.ErrNetworkError, "error reading chain id", err)
	}
	s.recorder.SetChainID(current)

	target := s.TargetFor(current)
	result := Result{From: current, Target: target}
	labels := map[string]string{"network": target.ChainID}

	s.logger.Info("switching network", map[string]any{
		"from": current,
		"to":   target.ChainID,
		"name": target.ChainName,
	})

	err = s.provider.SwitchChain(ctx, target.ChainID)
	switch {
	case err == nil:
		result.Switched = true
		s.recorder.SetChainID(target.ChainID)
		s.metrics.IncCounter(metrics.CounterChainSwitch, labels)
		return result, nil

	case wallet.IsUnrecognizedChain(err):
		s.logger.Info("network not known to wallet, adding it", map[string]any{"chain_id": target.ChainID})
		if addErr := s.provider.AddChain(ctx, target); addErr != nil {
			s.logger.Error("error adding network", map[string]any{"chain_id": target.ChainID, "error": addErr})
			return result, wallet.Classify(types.ErrNetworkError, "error adding network", addErr)
		}
		result.Added = true
		s.metrics.IncCounter(metrics.CounterChainAdd, labels)
		return result, nil

	default:
		s.logger.Error("error switching network", map[string]any{"chain_id": target.ChainID, "error": err})
		return result, wallet.Classify(types.ErrNetworkError, "error switching network", err)
	}
}
