package console

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	walletkit "github.com/vitwit/walletkit"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/wallet"
	"github.com/vitwit/walletkit/wallet/wallettest"
)

var account = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// scriptedPrompter replays menu choices and text answers, then reports EOF.
type scriptedPrompter struct {
	actions   []string
	answers   []string
	deny      bool
	confirmed []string
}

func (p *scriptedPrompter) Select(_ string, items []string) (int, error) {
	if len(p.actions) == 0 {
		return -1, promptui.ErrEOF
	}
	next := p.actions[0]
	p.actions = p.actions[1:]
	for i, item := range items {
		if item == next {
			return i, nil
		}
	}
	return -1, errors.New("no such menu item: " + next)
}

func (p *scriptedPrompter) Text(string) (string, error) {
	if len(p.answers) == 0 {
		return "", promptui.ErrInterrupt
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	return next, nil
}

func (p *scriptedPrompter) Confirm(label string) (bool, error) {
	p.confirmed = append(p.confirmed, label)
	return !p.deny, nil
}

func newConsole(t *testing.T, provider *wallettest.Provider, prompter Prompter) (*Console, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}

	var kit *walletkit.Kit
	var err error
	if provider == nil {
		kit, err = walletkit.New(nil, nil, walletkit.WithNotifier(NewNotifier(out)))
	} else {
		kit, err = walletkit.New(provider, nil, walletkit.WithNotifier(NewNotifier(out)))
	}
	require.NoError(t, err)
	return New(kit, prompter, out, nil), out
}

func newProvider() *wallettest.Provider {
	p := wallettest.NewProvider(types.BaseSepolia.ChainID)
	p.SetAccounts(account)
	p.SetBalance(account, big.NewInt(1e18))
	return p
}

func TestRun_ConnectAndQuit(t *testing.T) {
	c, out := newConsole(t, newProvider(), &scriptedPrompter{actions: []string{ActionConnect, ActionQuit}})

	require.NoError(t, c.Run(context.Background()))

	assert.Contains(t, out.String(), "Account: not connected")
	assert.Contains(t, out.String(), "Account: "+account.Hex())
	assert.Contains(t, out.String(), "Network: Base Sepolia Testnet (0x14a34)")
	assert.Contains(t, out.String(), "Balance: 1 ETH")
}

func TestRun_EOFExits(t *testing.T) {
	c, _ := newConsole(t, newProvider(), &scriptedPrompter{})
	assert.NoError(t, c.Run(context.Background()))
}

func TestRun_NoWallet(t *testing.T) {
	c, out := newConsole(t, nil, &scriptedPrompter{actions: []string{ActionConnect}})

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "! Please install a wallet extension")
	assert.NotContains(t, out.String(), "Error:")
}

func TestRun_InvalidInputIsAlerted(t *testing.T) {
	p := newProvider()
	c, out := newConsole(t, p, &scriptedPrompter{
		actions: []string{ActionConnect, ActionSendETH, ActionSendETH},
		answers: []string{"0x123", "0.05", account.Hex(), "abc"},
	})

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "! Invalid recipient address")
	assert.Contains(t, out.String(), "! Invalid amount")
	assert.NotContains(t, out.String(), "Error:")
	assert.Equal(t, 0, p.Calls("signer"))
}

func TestRun_SendETH(t *testing.T) {
	p := newProvider()
	signer := &wallettest.Signer{}
	hash := common.HexToHash("0x01")
	signer.On("SendTransaction", mock.Anything, mock.Anything).Return(hash, nil).Once()
	signer.On("WaitForConfirmation", mock.Anything, hash).
		Return(&types.Receipt{TxHash: hash, BlockNumber: big.NewInt(3), Success: true}, nil).Once()
	signer.On("Address").Return(account)
	p.SetSigner(signer)

	c, out := newConsole(t, p, &scriptedPrompter{
		actions: []string{ActionConnect, ActionSendETH},
		answers: []string{"0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "0.05"},
	})

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "Transaction confirmed: "+hash.Hex()+" (block 3)")
	signer.AssertExpectations(t)
}

func TestRun_SwitchNetwork(t *testing.T) {
	p := newProvider()
	c, out := newConsole(t, p, &scriptedPrompter{actions: []string{ActionSwitchNetwork, ActionSwitchNetwork}})

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "Added Polygon Amoy Testnet to the wallet")
	assert.Contains(t, out.String(), "Switched to Polygon Amoy Testnet")
}

func TestRun_RejectedAndContractErrors(t *testing.T) {
	p := newProvider()
	p.RequestErr = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}
	c, out := newConsole(t, p, &scriptedPrompter{actions: []string{ActionConnect, ActionSayHello}})

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "Request rejected in wallet")
	assert.Contains(t, out.String(), "Error: no contract configured")
}

func TestApprover(t *testing.T) {
	p := &scriptedPrompter{}
	approve := Approver(p)

	assert.True(t, approve(context.Background(), "eth_sendTransaction", "send 0.05 ETH to 0x7099"))
	assert.Equal(t, []string{"eth_sendTransaction: send 0.05 ETH to 0x7099"}, p.confirmed)

	p.deny = true
	assert.False(t, approve(context.Background(), "eth_requestAccounts", ""))
	assert.Equal(t, "eth_requestAccounts", p.confirmed[1])
}
