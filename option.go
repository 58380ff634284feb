package walletkit

import (
	"time"

	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/metrics"
	"github.com/vitwit/walletkit/types"
)

type Option func(*Kit)

func WithLogger(l logger.Logger) Option {
	return func(k *Kit) {
		k.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(k *Kit) {
		k.metrics = r
	}
}

// WithTimeout bounds read-only calls. Confirmation waits are not bounded.
func WithTimeout(t time.Duration) Option {
	return func(k *Kit) {
		k.timeout = t
	}
}

// WithNotifier sets where user-facing alerts go.
func WithNotifier(n types.Notifier) Option {
	return func(k *Kit) {
		k.notifier = n
	}
}

// WithNetworks replaces the two networks ToggleNetwork switches between.
func WithNetworks(first, second types.NetworkDescriptor) Option {
	return func(k *Kit) {
		k.first = first
		k.second = second
	}
}
