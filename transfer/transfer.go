// Package transfer validates user input and submits value transfers through
// the wallet's signer.
package transfer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/walletkit/clients"
	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/metrics"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/utils"
	"github.com/vitwit/walletkit/wallet"
)

// Notices shown for rejected input.
const (
	NoticeWalletNotFound   = "Wallet not found"
	NoticeInvalidRecipient = "Invalid recipient address"
	NoticeInvalidAmount    = "Invalid amount"
)

// BalanceRefresher re-reads the displayed balance after a confirmed
// transfer. *session.Manager satisfies it.
type BalanceRefresher interface {
	RefreshBalance(ctx context.Context, account common.Address) error
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = r
	}
}

func WithNotifier(n types.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithRefresher sets what gets refreshed once a transfer is confirmed.
func WithRefresher(r BalanceRefresher) Option {
	return func(s *Service) {
		s.refresher = r
	}
}

// SubmitOption adjusts a single submission.
type SubmitOption func(*types.TransactionRequest)

// WithGasLimit fixes the gas limit instead of estimating it.
func WithGasLimit(limit uint64) SubmitOption {
	return func(req *types.TransactionRequest) {
		req.GasLimit = limit
	}
}

// Service submits transfers on behalf of the wallet's selected account.
type Service struct {
	provider  wallet.Provider
	contract  *clients.Greeter
	refresher BalanceRefresher
	logger    logger.Logger
	metrics   metrics.Recorder
	notifier  types.Notifier
}

// New builds a Service. provider may be nil (no wallet present); contract may
// be nil when only SendToAddress is used.
func New(provider wallet.Provider, contract *clients.Greeter, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		contract: contract,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		notifier: types.NoopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendToAddress sends amount ether from the selected account to recipient.
func (s *Service) SendToAddress(ctx context.Context, recipient, amount string, opts ...SubmitOption) (*types.Receipt, error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	to, err := s.validateRecipient(recipient)
	if err != nil {
		return nil, err
	}
	wei, err := s.validateAmount(amount)
	if err != nil {
		return nil, err
	}

	req := types.TransactionRequest{To: to, Value: wei}
	return s.submit(ctx, "send", req, opts)
}

// SendToContract sends amount ether from the selected account to the
// contract.
func (s *Service) SendToContract(ctx context.Context, amount string, opts ...SubmitOption) (*types.Receipt, error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	if s.contract == nil {
		return nil, types.NewValidationError(types.ErrConfigError, "no contract configured")
	}
	wei, err := s.validateAmount(amount)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, "fund_contract", s.contract.FundRequest(wei), opts)
}

// ForwardFromContract calls sendEther(recipient, amount) on the contract, so
// the contract pays from its own balance. Only the contract owner succeeds.
func (s *Service) ForwardFromContract(ctx context.Context, recipient, amount string, opts ...SubmitOption) (*types.Receipt, error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	if s.contract == nil {
		return nil, types.NewValidationError(types.ErrConfigError, "no contract configured")
	}
	to, err := s.validateRecipient(recipient)
	if err != nil {
		return nil, err
	}
	wei, err := s.validateAmount(amount)
	if err != nil {
		return nil, err
	}

	req, err := s.contract.SendEtherRequest(to, wei)
	if err != nil {
		return nil, types.NewValidationError(types.ErrInvalidAmount, err.Error())
	}
	return s.submit(ctx, "contract_send_ether", req, opts)
}

func (s *Service) requireWallet() error {
	if s.provider != nil {
		return nil
	}
	s.notifier.Notify(NoticeWalletNotFound)
	return &types.Error{
		Kind:    types.KindNoWallet,
		Code:    types.ErrWalletNotFound,
		Message: "wallet not found",
	}
}

func (s *Service) validateRecipient(recipient string) (common.Address, error) {
	to, err := utils.ValidateAddress(recipient)
	if err != nil {
		s.rejectInput(NoticeInvalidRecipient, err)
		return common.Address{}, types.NewValidationError(types.ErrInvalidRecipient, err.Error())
	}
	return to, nil
}

func (s *Service) validateAmount(amount string) (*big.Int, error) {
	wei, err := utils.ParseEther(amount)
	if err != nil {
		s.rejectInput(NoticeInvalidAmount, err)
		return nil, types.NewValidationError(types.ErrInvalidAmount, err.Error())
	}
	return wei, nil
}

func (s *Service) rejectInput(notice string, err error) {
	s.notifier.Notify(notice)
	s.metrics.IncCounter(metrics.CounterValidationFailed, map[string]string{"network": ""})
	s.logger.Warn(notice, map[string]any{"error": err})
}

func (s *Service) submit(ctx context.Context, operation string, req types.TransactionRequest, opts []SubmitOption) (*types.Receipt, error) {
	for _, opt := range opts {
		opt(&req)
	}

	network := ""
	if chainID, err := s.provider.ChainID(ctx); err == nil {
		network = chainID
	}
	labels := map[string]string{"network": network}

	signer, err := s.provider.Signer(ctx)
	if err != nil {
		s.logger.Error("error obtaining signer", map[string]any{"operation": operation, "error": err})
		return nil, wallet.Classify(types.ErrSubmissionFailed, "error obtaining signer", err)
	}

	hash, err := signer.SendTransaction(ctx, req)
	if err != nil {
		s.metrics.IncCounter(metrics.CounterTxFailed, labels)
		s.logger.Error("error sending transaction", map[string]any{"operation": operation, "error": err})
		return nil, wallet.Classify(types.ErrSubmissionFailed, "error sending transaction", err)
	}
	s.metrics.IncCounter(metrics.CounterTxSubmitted, labels)
	s.logger.Info("transaction sent", map[string]any{
		"operation": operation,
		"tx_hash":   hash.Hex(),
		"to":        req.To.Hex(),
		"value":     utils.FormatEther(req.Value),
	})

	start := time.Now()
	receipt, err := signer.WaitForConfirmation(ctx, hash)
	s.metrics.ObserveLatency(metrics.LatencyConfirmation, time.Since(start), labels)
	if err != nil {
		s.metrics.IncCounter(metrics.CounterTxFailed, labels)
		s.logger.Error("error waiting for confirmation", map[string]any{"tx_hash": hash.Hex(), "error": err})
		return nil, types.NewRemoteError(types.ErrNetworkError, "error waiting for confirmation", err)
	}
	if !receipt.Success {
		s.metrics.IncCounter(metrics.CounterTxFailed, labels)
		s.logger.Error("transaction reverted", map[string]any{"tx_hash": hash.Hex(), "block": receipt.BlockNumber})
		return receipt, &types.Error{
			Kind:    types.KindReverted,
			Code:    types.ErrTransactionFailed,
			Message: fmt.Sprintf("transaction %s reverted", hash.Hex()),
		}
	}

	s.metrics.IncCounter(metrics.CounterTxConfirmed, labels)
	s.logger.Info("transaction confirmed", map[string]any{
		"tx_hash":  hash.Hex(),
		"block":    receipt.BlockNumber,
		"gas_used": receipt.GasUsed,
	})

	if s.refresher != nil {
		if err := s.refresher.RefreshBalance(ctx, signer.Address()); err != nil {
			s.logger.Warn("error refreshing balance", map[string]any{"error": err})
		}
	}
	return receipt, nil
}
