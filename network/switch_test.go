package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/walletkit/session"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/wallet"
	"github.com/vitwit/walletkit/wallet/wallettest"
)

func newSwitcher(t *testing.T, p wallet.Provider, opts ...Option) *Switcher {
	t.Helper()
	s, err := NewSwitcher(p, types.BaseSepolia, types.PolygonAmoy, opts...)
	require.NoError(t, err)
	return s
}

func TestNewSwitcher(t *testing.T) {
	_, err := NewSwitcher(nil, types.BaseSepolia, types.BaseSepolia)
	assert.Error(t, err)

	_, err = NewSwitcher(nil, types.BaseSepolia, types.NetworkDescriptor{ChainID: "0x1"})
	assert.Error(t, err)
}

func TestToggle_RoundTrip(t *testing.T) {
	p := wallettest.NewProvider(types.BaseSepolia.ChainID, types.PolygonAmoy.ChainID)
	m := session.New(p)
	s := newSwitcher(t, p, WithRecorder(m))
	ctx := context.Background()

	res, err := s.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, res.Switched)
	assert.False(t, res.Added)
	assert.Equal(t, "0x14a34", res.From)
	assert.Equal(t, types.PolygonAmoy.ChainID, res.Target.ChainID)
	assert.Equal(t, "0x13882", m.Snapshot().ChainID)

	res, err = s.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, res.Switched)
	assert.Equal(t, types.BaseSepolia.ChainID, res.Target.ChainID)

	chain, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x14a34", chain)
	assert.Equal(t, "0x14a34", m.Snapshot().ChainID)
	assert.Equal(t, 0, p.Calls("wallet_addEthereumChain"))
}

func TestToggle_FromUnknownChainGoesToFirst(t *testing.T) {
	p := wallettest.NewProvider("0x1", types.BaseSepolia.ChainID)
	s := newSwitcher(t, p)

	res, err := s.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.BaseSepolia.ChainID, res.Target.ChainID)
}

func TestToggle_UnrecognizedChainAddsOnce(t *testing.T) {
	p := wallettest.NewProvider(types.BaseSepolia.ChainID)
	s := newSwitcher(t, p)
	ctx := context.Background()

	res, err := s.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.False(t, res.Switched)

	added := p.Added()
	require.Len(t, added, 1)
	assert.Equal(t, types.PolygonAmoy, added[0])
	assert.Equal(t, 1, p.Calls("wallet_switchEthereumChain"))

	// still on the starting chain: no switch after the add
	chain, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x14a34", chain)

	// a second toggle now switches
	res, err = s.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, res.Switched)
	assert.Len(t, p.Added(), 1)
}

func TestToggle_AddFailure(t *testing.T) {
	p := wallettest.NewProvider(types.BaseSepolia.ChainID)
	p.AddErr = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}
	s := newSwitcher(t, p)

	res, err := s.Toggle(context.Background())
	assert.True(t, types.IsKind(err, types.KindUserRejected))
	assert.False(t, res.Added)
	assert.Equal(t, 1, p.Calls("wallet_switchEthereumChain"))
}

func TestToggle_OtherErrorsAreNotRetried(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		p := wallettest.NewProvider(types.BaseSepolia.ChainID, types.PolygonAmoy.ChainID)
		p.SwitchErr = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}
		s := newSwitcher(t, p)

		_, err := s.Toggle(context.Background())
		assert.True(t, types.IsKind(err, types.KindUserRejected))
		assert.Equal(t, 1, p.Calls("wallet_switchEthereumChain"))
		assert.Equal(t, 0, p.Calls("wallet_addEthereumChain"))
	})

	t.Run("remote", func(t *testing.T) {
		p := wallettest.NewProvider(types.BaseSepolia.ChainID, types.PolygonAmoy.ChainID)
		p.SwitchErr = errors.New("internal error")
		s := newSwitcher(t, p)

		_, err := s.Toggle(context.Background())
		assert.True(t, types.IsKind(err, types.KindRemote))
		assert.Equal(t, 1, p.Calls("wallet_switchEthereumChain"))
		assert.Equal(t, 0, p.Calls("wallet_addEthereumChain"))
	})
}

func TestToggle_NoWallet(t *testing.T) {
	s := newSwitcher(t, nil)

	_, err := s.Toggle(context.Background())
	assert.True(t, types.IsKind(err, types.KindNoWallet))
}
