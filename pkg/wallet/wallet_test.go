package wallet

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekit/safed/pkg/ethtypes"
)

var (
	deviceAddr    = ethtypes.NewAddress("0x1")
	extensionAddr = ethtypes.NewAddress("0x2")
	paperAddr     = ethtypes.NewAddress("0x3")
	derivedAddr   = ethtypes.NewAddress("0x4")
	safeAddr      = ethtypes.NewAddress("0xe8213667a9da1493f85b0d65d9a244c21a858506")
)

func deployableWallet(t *testing.T) *Wallet {
	t.Helper()
	w := New("wallet-1", deviceAddr)
	require.NoError(t, w.AddOwner(NewOwner(extensionAddr, RoleBrowserExtension)))
	require.NoError(t, w.AddOwner(NewOwner(paperAddr, RolePaperWallet)))
	require.NoError(t, w.AddOwner(NewOwner(derivedAddr, RolePaperWalletDerived)))
	w.ConfirmationCount = 2
	return w
}

func TestNewWalletIsDraftWithDeviceOwner(t *testing.T) {
	w := New("wallet-1", deviceAddr)
	assert.Equal(t, StateDraft, w.State)

	owner, ok := w.OwnerByRole(RoleThisDevice)
	require.True(t, ok)
	assert.Equal(t, deviceAddr, owner.Address)
	assert.False(t, w.IsDeployable())
}

func TestAddOwnerReplacesSameRole(t *testing.T) {
	w := New("wallet-1", deviceAddr)
	require.NoError(t, w.AddOwner(NewOwner(extensionAddr, RoleBrowserExtension)))

	replacement := ethtypes.NewAddress("0x22")
	require.NoError(t, w.AddOwner(NewOwner(replacement, RoleBrowserExtension)))

	owner, ok := w.OwnerByRole(RoleBrowserExtension)
	require.True(t, ok)
	assert.Equal(t, replacement, owner.Address)
	assert.Len(t, w.Owners, 2)
	assert.False(t, w.ContainsOwner(extensionAddr))
}

func TestAddOwnerRejectsAddressUnderAnotherRole(t *testing.T) {
	w := New("wallet-1", deviceAddr)
	assert.ErrorIs(t, w.AddOwner(NewOwner(deviceAddr, RoleKeycard)), ErrOwnerExists)
}

func TestOwnersImmutableOutsideDraftAndReadyToUse(t *testing.T) {
	w := deployableWallet(t)
	require.NoError(t, w.StartDeployment())
	assert.ErrorIs(t, w.AddOwner(NewOwner(ethtypes.NewAddress("0x9"), RoleKeycard)), ErrInvalidState)
	assert.ErrorIs(t, w.RemoveOwner(RolePaperWallet), ErrInvalidState)
}

func TestIsDeployable(t *testing.T) {
	w := New("wallet-1", deviceAddr)
	assert.False(t, w.IsDeployable(), "missing 2FA and recovery owners")

	require.NoError(t, w.AddOwner(NewOwner(extensionAddr, RoleBrowserExtension)))
	assert.False(t, w.IsDeployable(), "missing recovery owners")

	require.NoError(t, w.AddOwner(NewOwner(paperAddr, RolePaperWallet)))
	require.NoError(t, w.AddOwner(NewOwner(derivedAddr, RolePaperWalletDerived)))
	assert.True(t, w.IsDeployable())

	// A keycard serves as the two-factor owner too.
	require.NoError(t, w.RemoveOwner(RoleBrowserExtension))
	assert.False(t, w.IsDeployable())
	require.NoError(t, w.AddOwner(NewOwner(extensionAddr, RoleKeycard)))
	assert.True(t, w.IsDeployable())

	require.NoError(t, w.StartDeployment())
	assert.False(t, w.IsDeployable(), "deployable only in draft")
}

func TestHappyPathTransitions(t *testing.T) {
	w := deployableWallet(t)

	require.NoError(t, w.StartDeployment())
	assert.Equal(t, StateDeploying, w.State)

	require.NoError(t, w.AssignAddress(safeAddr))
	require.NoError(t, w.SetDeploymentFee(ethtypes.ZeroAddress, big.NewInt(100)))
	require.NoError(t, w.MarkWaitingForFirstDeposit())
	assert.Equal(t, StateWaitingForFirstDeposit, w.State)

	require.NoError(t, w.MarkNotEnoughFunds())
	assert.Equal(t, StateNotEnoughFunds, w.State)

	require.NoError(t, w.MarkDeploymentFunded())
	assert.Equal(t, StateCreationStarted, w.State)

	require.NoError(t, w.AssignCreationTransaction("0xhash"))
	require.NoError(t, w.MarkFinalizingDeployment())
	assert.Equal(t, StateFinalizingDeployment, w.State)

	require.NoError(t, w.FinishDeployment())
	assert.Equal(t, StateReadyToUse, w.State)
	assert.True(t, w.State.IsTerminal())
	assert.Equal(t, ethtypes.TransactionHash("0xhash"), w.CreationTransactionHash)
}

func TestInvalidTransitionsRejected(t *testing.T) {
	w := deployableWallet(t)

	assert.ErrorIs(t, w.MarkWaitingForFirstDeposit(), ErrInvalidState)
	assert.ErrorIs(t, w.MarkDeploymentFunded(), ErrInvalidState)
	assert.ErrorIs(t, w.FinishDeployment(), ErrInvalidState)
	assert.ErrorIs(t, w.AssignAddress(safeAddr), ErrInvalidState)
	assert.ErrorIs(t, w.AssignCreationTransaction("0xh"), ErrInvalidState)
	assert.ErrorIs(t, w.Cancel(), ErrInvalidState)

	require.NoError(t, w.StartDeployment())
	assert.ErrorIs(t, w.StartDeployment(), ErrInvalidState)
}

func TestCancelResetsToDraft(t *testing.T) {
	w := deployableWallet(t)
	require.NoError(t, w.StartDeployment())
	require.NoError(t, w.AssignAddress(safeAddr))
	require.NoError(t, w.SetDeploymentFee(ethtypes.ZeroAddress, big.NewInt(100)))
	require.NoError(t, w.MarkWaitingForFirstDeposit())

	require.NoError(t, w.Cancel())
	assert.Equal(t, StateDraft, w.State)
	assert.True(t, w.Address.IsZero())
	assert.Nil(t, w.MinimumDeploymentAmount)
	assert.Empty(t, w.CreationTransactionHash)
	assert.True(t, w.IsDeployable(), "owners survive cancellation")
}

func TestFailDeploymentIsTerminal(t *testing.T) {
	w := deployableWallet(t)
	require.NoError(t, w.StartDeployment())
	require.NoError(t, w.FailDeployment())
	assert.Equal(t, StateCreationFailed, w.State)
	assert.True(t, w.State.IsTerminal())
	assert.ErrorIs(t, w.Cancel(), ErrInvalidState)
}

func TestRecoveryRoundTrip(t *testing.T) {
	w := deployableWallet(t)
	require.NoError(t, w.StartDeployment())
	require.NoError(t, w.AssignAddress(safeAddr))
	require.NoError(t, w.MarkWaitingForFirstDeposit())
	require.NoError(t, w.MarkDeploymentFunded())
	require.NoError(t, w.MarkFinalizingDeployment())
	require.NoError(t, w.FinishDeployment())

	assert.ErrorIs(t, w.FinishRecovery(), ErrInvalidState)
	require.NoError(t, w.BeginRecovery())
	assert.Equal(t, StateRecovering, w.State)

	// Recovery may replace owners.
	require.NoError(t, w.AddOwner(NewOwner(ethtypes.NewAddress("0x99"), RoleBrowserExtension)))
	require.NoError(t, w.FinishRecovery())
	assert.Equal(t, StateReadyToUse, w.State)
}

func TestPortfolio(t *testing.T) {
	p := NewPortfolio("portfolio-1")
	_, ok := p.SelectedWallet()
	assert.False(t, ok)

	p.AddWallet("w1")
	p.AddWallet("w2")
	p.AddWallet("w1") // duplicate ignored
	assert.Equal(t, []ID{"w1", "w2"}, p.Wallets)

	selected, ok := p.SelectedWallet()
	require.True(t, ok)
	assert.Equal(t, ID("w1"), selected)

	require.NoError(t, p.SelectWallet("w2"))
	assert.ErrorIs(t, p.SelectWallet("w3"), ErrWalletNotInPortfolio)

	p.RemoveWallet("w2")
	selected, ok = p.SelectedWallet()
	require.True(t, ok)
	assert.Equal(t, ID("w1"), selected)
}
