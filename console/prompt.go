package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/vitwit/walletkit/wallet"
)

// Prompter asks the user for input.
type Prompter interface {
	// Select returns the index of the chosen item.
	Select(label string, items []string) (int, error)

	// Text reads a line of input.
	Text(label string) (string, error)

	// Confirm asks a yes/no question.
	Confirm(label string) (bool, error)
}

// PromptUI is the terminal Prompter.
type PromptUI struct{}

func (PromptUI) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label:        label,
		Items:        items,
		Size:         len(items),
		HideSelected: true,
	}

	i, _, err := prompt.Run()
	return i, err
}

func (PromptUI) Text(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
	}
	return prompt.Run()
}

func (PromptUI) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Approver asks the user before the wallet acts on a request, the way a
// browser wallet opens a confirmation popup.
func Approver(p Prompter) wallet.Approver {
	return func(_ context.Context, method, detail string) bool {
		label := method
		if detail != "" {
			label = fmt.Sprintf("%s: %s", method, detail)
		}
		ok, err := p.Confirm(label)
		return err == nil && ok
	}
}

// isExit reports whether err means the user left the prompt (Ctrl-C or
// Ctrl-D).
func isExit(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF)
}
