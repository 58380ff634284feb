package metrics

import "time"

// Recorder receives counters and latencies from the wallet flows. Labels
// carry at least "network" (the chain id in use).
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Counter and latency names emitted by walletkit.
const (
	CounterConnect          = "connect"
	CounterBalanceRefresh   = "balance_refresh"
	CounterChainSwitch      = "chain_switch"
	CounterChainAdd         = "chain_add"
	CounterTxSubmitted      = "tx_submitted"
	CounterTxConfirmed      = "tx_confirmed"
	CounterTxFailed         = "tx_failed"
	CounterValidationFailed = "validation_failed"

	LatencyConfirmation = "confirmation"
	LatencyBalance      = "balance"
)

// NoopRecorder drops everything. It is the default when no recorder is set.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
