// Package console is the interactive terminal front end: a menu over the
// wallet actions that shows the session after every step.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"

	walletkit "github.com/vitwit/walletkit"
	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/types"
)

// Menu entries, in display order.
const (
	ActionConnect         = "Connect Wallet"
	ActionSwitchNetwork   = "Switch Network"
	ActionSendETH         = "Send ETH"
	ActionSendToContract  = "Send ETH to contract"
	ActionContractSendEth = "Contract sendEther"
	ActionSayHello        = "Say hello"
	ActionShowOwner       = "Show owner"
	ActionQuit            = "Quit"
	menuLabel             = "What would you like to do?"
	notConnected          = "not connected"
)

var menu = []string{
	ActionConnect,
	ActionSwitchNetwork,
	ActionSendETH,
	ActionSendToContract,
	ActionContractSendEth,
	ActionSayHello,
	ActionShowOwner,
	ActionQuit,
}

// Notifier prints alerts to a writer.
type Notifier struct {
	out io.Writer
}

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Notify(message string) {
	fmt.Fprintf(n.out, "! %s\n", message)
}

// Console drives a Kit from a Prompter.
type Console struct {
	kit      *walletkit.Kit
	prompter Prompter
	out      io.Writer
	logger   logger.Logger
}

// New builds a console. Use NewNotifier(out) as the kit's notifier so alerts
// land next to the menu.
func New(kit *walletkit.Kit, prompter Prompter, out io.Writer, log logger.Logger) *Console {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Console{
		kit:      kit,
		prompter: prompter,
		out:      out,
		logger:   log,
	}
}

// Run shows the menu until the user quits or interrupts the prompt.
func (c *Console) Run(ctx context.Context) error {
	if err := c.kit.Start(ctx); err != nil {
		return err
	}
	defer c.kit.Stop()

	for {
		c.render()

		i, err := c.prompter.Select(menuLabel, menu)
		if err != nil {
			if isExit(err) {
				return nil
			}
			return err
		}

		action := menu[i]
		if action == ActionQuit {
			return nil
		}

		if err := c.dispatch(ctx, action); err != nil {
			if isExit(err) {
				return nil
			}
			c.report(err)
		}
	}
}

func (c *Console) dispatch(ctx context.Context, action string) error {
	switch action {
	case ActionConnect:
		return c.kit.Connect(ctx)

	case ActionSwitchNetwork:
		res, err := c.kit.ToggleNetwork(ctx)
		if err != nil {
			return err
		}
		if res.Added {
			fmt.Fprintf(c.out, "Added %s to the wallet. Switch again to use it.\n", res.Target.ChainName)
		} else {
			fmt.Fprintf(c.out, "Switched to %s\n", res.Target.ChainName)
		}
		return nil

	case ActionSendETH:
		recipient, err := c.prompter.Text("Recipient address")
		if err != nil {
			return err
		}
		amount, err := c.prompter.Text("Amount (ETH)")
		if err != nil {
			return err
		}
		return c.confirmed(c.kit.SendETH(ctx, recipient, amount))

	case ActionSendToContract:
		amount, err := c.prompter.Text("Amount (ETH)")
		if err != nil {
			return err
		}
		return c.confirmed(c.kit.SendETHToContract(ctx, amount))

	case ActionContractSendEth:
		recipient, err := c.prompter.Text("Recipient address")
		if err != nil {
			return err
		}
		amount, err := c.prompter.Text("Amount (ETH)")
		if err != nil {
			return err
		}
		return c.confirmed(c.kit.ContractSendEther(ctx, recipient, amount))

	case ActionSayHello:
		greeting, err := c.kit.Greeting(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Greeting from contract: %s\n", greeting)
		return nil

	case ActionShowOwner:
		owner, err := c.kit.Owner(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Contract owner: %s\n", owner)
		return nil
	}
	return fmt.Errorf("unknown action %q", action)
}

func (c *Console) confirmed(receipt *types.Receipt, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Transaction confirmed: %s (block %s)\n", receipt.TxHash.Hex(), receipt.BlockNumber)
	return nil
}

// report prints failures the notifier has not already shown.
func (c *Console) report(err error) {
	var wkErr *types.Error
	if errors.As(err, &wkErr) {
		switch {
		case wkErr.Kind == types.KindNoWallet,
			wkErr.Code == types.ErrInvalidRecipient,
			wkErr.Code == types.ErrInvalidAmount:
			return
		case wkErr.Kind == types.KindUserRejected:
			fmt.Fprintln(c.out, "Request rejected in wallet")
			return
		}
	}
	fmt.Fprintf(c.out, "Error: %v\n", err)
	c.logger.Debug("console action failed", map[string]any{"error": err})
}

func (c *Console) render() {
	view := c.kit.Snapshot()

	account := notConnected
	if view.Account != nil {
		account = view.Account.Hex()
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Account: %s\n", account)
	fmt.Fprintf(c.out, "Network: %s\n", networkName(view.ChainID))
	fmt.Fprintf(c.out, "Balance: %s ETH\n", view.FormattedBalance())
}

func networkName(chainID string) string {
	if chainID == "" {
		return "unknown"
	}
	for _, n := range types.Networks {
		if n.Matches(chainID) {
			return fmt.Sprintf("%s (%s)", n.ChainName, chainID)
		}
	}
	return chainID
}
