// Package script runs the fixed demo sequence against the greeter contract:
// balances, greeting, and a contract-mediated transfer back to the signer.
package script

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/transfer"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/utils"
)

const (
	// ForwardAmount is what the sequence asks the contract to send back.
	ForwardAmount = "0.0019999"

	// FundAmount and FundGasLimit are used by FundContract.
	FundAmount   = "0.05"
	FundGasLimit = 210000
)

// Contract is the read side of the greeter.
type Contract interface {
	Address() common.Address
	Owner(ctx context.Context) (common.Address, error)
	SayHello(ctx context.Context) (string, error)
	Balance(ctx context.Context) (*big.Int, error)
}

// Transfers submits the writes. *transfer.Service satisfies it.
type Transfers interface {
	SendToContract(ctx context.Context, amount string, opts ...transfer.SubmitOption) (*types.Receipt, error)
	ForwardFromContract(ctx context.Context, recipient, amount string, opts ...transfer.SubmitOption) (*types.Receipt, error)
}

// BalanceReader reads native balances. wallet.Provider satisfies it.
type BalanceReader interface {
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// Step is one named action of the sequence.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepResult is the outcome of one step.
type StepResult struct {
	Name string
	Err  error
}

// Report collects the outcomes of a run.
type Report struct {
	Steps []StepResult
}

// Failed counts steps that returned an error.
func (r Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Runner executes the steps for one account.
type Runner struct {
	account   common.Address
	balances  BalanceReader
	contract  Contract
	transfers Transfers
	logger    logger.Logger
	out       io.Writer
}

// NewRunner builds a runner acting as account. Human readable results go to
// out; failures are logged.
func NewRunner(account common.Address, balances BalanceReader, contract Contract, transfers Transfers, log logger.Logger, out io.Writer) *Runner {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		account:   account,
		balances:  balances,
		contract:  contract,
		transfers: transfers,
		logger:    log,
		out:       out,
	}
}

// Sequence returns the default steps in order.
func (r *Runner) Sequence() []Step {
	return []Step{
		{Name: "account_balance", Run: r.AccountBalance},
		{Name: "say_hello", Run: r.SayHello},
		{Name: "send_ether_from_contract", Run: func(ctx context.Context) error {
			return r.ForwardToSelf(ctx, ForwardAmount)
		}},
		{Name: "contract_balance", Run: r.ContractBalance},
		{Name: "account_balance", Run: r.AccountBalance},
	}
}

// Run executes Sequence. A failing step is logged and the next one runs;
// Run itself never fails.
func (r *Runner) Run(ctx context.Context) Report {
	r.logger.Warn("running the sequence submits a real transfer every time", map[string]any{
		"account":  r.account.Hex(),
		"contract": r.contract.Address().Hex(),
		"amount":   ForwardAmount,
	})
	return r.RunSteps(ctx, r.Sequence()...)
}

// RunSteps executes steps in order, continuing past failures.
func (r *Runner) RunSteps(ctx context.Context, steps ...Step) Report {
	var report Report
	for _, step := range steps {
		err := step.Run(ctx)
		if err != nil {
			r.logger.Error("step failed", map[string]any{"step": step.Name, "error": err})
		}
		report.Steps = append(report.Steps, StepResult{Name: step.Name, Err: err})
	}
	return report
}

// AccountBalance prints the runner account's balance.
func (r *Runner) AccountBalance(ctx context.Context) error {
	bal, err := r.balances.Balance(ctx, r.account)
	if err != nil {
		return fmt.Errorf("fetching balance: %w", err)
	}
	fmt.Fprintf(r.out, "Balance of %s: %s ETH\n", r.account.Hex(), utils.FormatEther(bal))
	return nil
}

// SayHello prints the contract's greeting.
func (r *Runner) SayHello(ctx context.Context) error {
	greeting, err := r.contract.SayHello(ctx)
	if err != nil {
		return fmt.Errorf("calling sayHello: %w", err)
	}
	fmt.Fprintf(r.out, "Greeting from contract: %s\n", greeting)
	return nil
}

// ContractBalance prints the contract's native balance.
func (r *Runner) ContractBalance(ctx context.Context) error {
	bal, err := r.contract.Balance(ctx)
	if err != nil {
		return fmt.Errorf("fetching contract balance: %w", err)
	}
	fmt.Fprintf(r.out, "ETH balance of contract: %s ETH\n", utils.FormatEther(bal))
	return nil
}

// Owner prints the contract owner.
func (r *Runner) Owner(ctx context.Context) error {
	owner, err := r.contract.Owner(ctx)
	if err != nil {
		return fmt.Errorf("fetching contract owner: %w", err)
	}
	fmt.Fprintf(r.out, "Contract owner: %s\n", owner.Hex())
	return nil
}

// ForwardToSelf asks the contract to send amount to the runner account.
func (r *Runner) ForwardToSelf(ctx context.Context, amount string) error {
	receipt, err := r.transfers.ForwardFromContract(ctx, r.account.Hex(), amount)
	if err != nil {
		return fmt.Errorf("sending ether from contract: %w", err)
	}
	fmt.Fprintf(r.out, "Transaction confirmed: %s\n", receipt.TxHash.Hex())
	return nil
}

// FundContract sends amount from the runner account to the contract with a
// fixed gas limit.
func (r *Runner) FundContract(ctx context.Context, amount string) error {
	receipt, err := r.transfers.SendToContract(ctx, amount, transfer.WithGasLimit(FundGasLimit))
	if err != nil {
		return fmt.Errorf("sending ether to contract: %w", err)
	}
	fmt.Fprintf(r.out, "Transaction confirmed: %s\n", receipt.TxHash.Hex())
	return nil
}
