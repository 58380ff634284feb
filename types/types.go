package types

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SessionView is a snapshot of the wallet session as the UI renders it.
type SessionView struct {
	// Account is the selected account, nil while disconnected.
	Account *common.Address `json:"account,omitempty"`

	// ChainID is the last chain id reported by the wallet (hex).
	ChainID string `json:"chainId,omitempty"`

	// Balance of Account in wei, nil until the first successful fetch.
	Balance *big.Int `json:"balance,omitempty"`

	// UpdatedAt is the time of the last state change.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Connected reports whether an account is selected.
func (v SessionView) Connected() bool {
	return v.Account != nil
}

// FormattedBalance renders Balance in ether units, "0" when unknown.
func (v SessionView) FormattedBalance() string {
	if v.Balance == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.Balance, -18).String()
}

// TransactionRequest is a single submission built from user input.
type TransactionRequest struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Data  []byte         `json:"data,omitempty"`

	// GasLimit of zero lets the signer estimate.
	GasLimit uint64 `json:"gasLimit,omitempty"`
}

// Receipt is what a confirmed submission reports back.
type Receipt struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber *big.Int    `json:"blockNumber"`
	GasUsed     uint64      `json:"gasUsed"`
	Success     bool        `json:"success"`
}

// Notifier surfaces blocking, user-visible notices (the alert() of a web UI).
type Notifier interface {
	Notify(message string)
}

// NoopNotifier drops notices.
type NoopNotifier struct{}

func (NoopNotifier) Notify(string) {}

// ErrorKind lets callers branch on failures without matching messages.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNoWallet     ErrorKind = "no_wallet"
	KindUserRejected ErrorKind = "user_rejected"
	KindRemote       ErrorKind = "remote"
	KindReverted     ErrorKind = "reverted"
)

// Error types
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrWalletNotFound     = "WALLET_NOT_FOUND"
	ErrInvalidRecipient   = "INVALID_RECIPIENT"
	ErrInvalidAmount      = "INVALID_AMOUNT"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrNoAccount          = "NO_ACCOUNT"
	ErrRequestRejected    = "REQUEST_REJECTED"
	ErrNetworkError       = "NETWORK_ERROR"
	ErrSubmissionFailed   = "SUBMISSION_FAILED"
	ErrTransactionFailed  = "TRANSACTION_REVERTED"
	ErrConfigError        = "CONFIG_ERROR"
)

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// NewValidationError builds a KindValidation error.
func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NewRemoteError wraps a failure returned by the wallet or the node.
func NewRemoteError(code, message string, err error) *Error {
	return &Error{Kind: KindRemote, Code: code, Message: message, Err: err}
}
