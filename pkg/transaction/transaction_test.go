package transaction

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekit/safed/pkg/account"
	"github.com/safekit/safed/pkg/ethtypes"
)

var (
	senderAddr    = ethtypes.NewAddress("0xe8213667a9da1493f85b0d65d9a244c21a858506")
	recipientAddr = ethtypes.NewAddress("0xd1cd8b1ac0639e5e21d4d967812c7b1384adb2de")
	signerAddr    = ethtypes.NewAddress("0xa1c0e4a764183a7667ffb21a628383de9d63357e")
)

func draftTx(t *testing.T) *Transaction {
	t.Helper()
	tx := New("tx-1", TypeTransfer, "wallet-1", account.NewID(ethtypes.Ether.ID(), "wallet-1"))
	require.NoError(t, tx.SetSender(senderAddr))
	require.NoError(t, tx.SetRecipient(recipientAddr))
	require.NoError(t, tx.SetAmount(ethtypes.EtherAmount(100)))
	require.NoError(t, tx.SetFee(ethtypes.EtherAmount(10)))
	return tx
}

func TestAccountIDParts(t *testing.T) {
	id := account.NewID("0x0000000000000000000000000000000000000000", "wallet-1")
	assert.Equal(t, ethtypes.Ether.ID(), id.TokenID())
	assert.Equal(t, "wallet-1", string(id.WalletID()))
}

func TestDraftEditing(t *testing.T) {
	tx := draftTx(t)
	require.NoError(t, tx.SetData([]byte{0x01}))
	require.NoError(t, tx.SetOperation(ethtypes.OperationDelegateCall))
	require.NoError(t, tx.SetNonce("42"))
	require.NoError(t, tx.SetFeeEstimate(FeeEstimate{Gas: 21000, GasPrice: ethtypes.EtherAmount(2)}))
	require.NoError(t, tx.SetHash([]byte{0xaa}))
}

func TestParametersFrozenAfterDraft(t *testing.T) {
	tx := draftTx(t)
	require.NoError(t, tx.StartSigning(time.Now()))

	assert.ErrorIs(t, tx.SetAmount(ethtypes.EtherAmount(1)), ErrNotEditable)
	assert.ErrorIs(t, tx.SetFee(ethtypes.EtherAmount(1)), ErrNotEditable)
	assert.ErrorIs(t, tx.SetData(nil), ErrNotEditable)
	assert.ErrorIs(t, tx.SetOperation(ethtypes.OperationCall), ErrNotEditable)
	assert.ErrorIs(t, tx.SetSender(senderAddr), ErrNotEditable)
	assert.ErrorIs(t, tx.SetRecipient(recipientAddr), ErrNotEditable)
	assert.ErrorIs(t, tx.SetHash([]byte{0x01}), ErrNotEditable)
}

func TestStartSigningRequiresParameters(t *testing.T) {
	tx := New("tx-1", TypeTransfer, "w", account.NewID("0x0", "w"))
	assert.ErrorIs(t, tx.StartSigning(time.Now()), ErrMissingParameters)
}

func TestSignatureDeduplication(t *testing.T) {
	tx := draftTx(t)
	require.NoError(t, tx.AddSignature(Signature{Address: signerAddr, Data: []byte{0x01}}))
	require.NoError(t, tx.AddSignature(Signature{Address: signerAddr, Data: []byte{0x02}}))
	assert.Len(t, tx.Signatures, 1)
	assert.True(t, tx.IsSignedBy(signerAddr))

	// Case-insensitive signer comparison.
	upper := ethtypes.Address("0xA1C0E4A764183A7667FFB21A628383DE9D63357E")
	require.NoError(t, tx.AddSignature(Signature{Address: upper, Data: []byte{0x03}}))
	assert.Len(t, tx.Signatures, 1)

	require.NoError(t, tx.RemoveSignature(signerAddr))
	assert.Empty(t, tx.Signatures)
}

func TestSignaturesFrozenAfterSigning(t *testing.T) {
	tx := draftTx(t)
	require.NoError(t, tx.StartSigning(time.Now()))
	require.NoError(t, tx.AddSignature(Signature{Address: signerAddr}))

	require.NoError(t, tx.SetTransactionHash("0xhash"))
	require.NoError(t, tx.Submit(time.Now()))
	assert.ErrorIs(t, tx.AddSignature(Signature{Address: recipientAddr}), ErrNotSignable)
	assert.ErrorIs(t, tx.RemoveSignature(signerAddr), ErrNotSignable)
}

func TestHappyPathTimestamps(t *testing.T) {
	tx := draftTx(t)
	created := time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC)
	tx.TimestampCreated(created)

	require.NoError(t, tx.StartSigning(created.Add(time.Minute)))
	require.NoError(t, tx.SetTransactionHash("0xhash"))

	submitted := created.Add(2 * time.Minute)
	require.NoError(t, tx.Submit(submitted))
	require.NotNil(t, tx.SubmittedDate)
	assert.Equal(t, submitted, *tx.SubmittedDate)
	assert.Equal(t, StatusPending, tx.Status)

	processed := created.Add(3 * time.Minute)
	require.NoError(t, tx.Succeed(processed))
	assert.Equal(t, StatusSuccess, tx.Status)
	require.NotNil(t, tx.ProcessedDate)
	assert.Equal(t, processed, *tx.ProcessedDate)
	assert.Equal(t, processed, tx.UpdatedDate)
}

func TestSubmitRequiresHash(t *testing.T) {
	tx := draftTx(t)
	require.NoError(t, tx.StartSigning(time.Now()))
	assert.ErrorIs(t, tx.Submit(time.Now()), ErrMissingHash)
}

func TestRejectOnlyFromSigning(t *testing.T) {
	tx := draftTx(t)
	assert.ErrorIs(t, tx.Reject(time.Now()), ErrInvalidTransition)

	require.NoError(t, tx.StartSigning(time.Now()))
	require.NoError(t, tx.Reject(time.Now()))
	assert.Equal(t, StatusRejected, tx.Status)
	assert.NotNil(t, tx.RejectedDate)
}

func TestStatusLattice(t *testing.T) {
	assert.True(t, StatusDraft.CanTransitionTo(StatusSigning))
	assert.True(t, StatusDraft.CanTransitionTo(StatusDiscarded))
	assert.False(t, StatusDraft.CanTransitionTo(StatusPending))
	assert.False(t, StatusPending.CanTransitionTo(StatusSigning))
	assert.True(t, StatusPending.CanTransitionTo(StatusFailed))
	assert.False(t, StatusSuccess.CanTransitionTo(StatusFailed))
	assert.True(t, StatusFailed.CanTransitionTo(StatusDiscarded))
	assert.True(t, StatusDiscarded.CanTransitionTo(StatusDraft))
}

func TestDiscardAndReset(t *testing.T) {
	tx := draftTx(t)
	require.NoError(t, tx.StartSigning(time.Now()))
	require.NoError(t, tx.AddSignature(Signature{Address: signerAddr}))
	require.NoError(t, tx.SetTransactionHash("0xhash"))

	require.NoError(t, tx.Discard(time.Now()))
	assert.Equal(t, StatusDiscarded, tx.Status)
	// Discarding twice is a no-op.
	require.NoError(t, tx.Discard(time.Now()))

	require.NoError(t, tx.Reset())
	assert.Equal(t, StatusDraft, tx.Status)
	assert.Empty(t, tx.TransactionHash)
	assert.Empty(t, tx.Signatures)
	assert.True(t, tx.CreatedDate.IsZero())
	assert.Nil(t, tx.SubmittedDate)

	// Parameters survive the reset and the draft is editable again.
	assert.Equal(t, senderAddr, tx.Sender)
	require.NoError(t, tx.SetAmount(ethtypes.EtherAmount(5)))
}

func TestFeeEstimateTotal(t *testing.T) {
	estimate := FeeEstimate{
		Gas:            21000,
		DataGas:        680,
		OperationalGas: 5000,
		GasPrice:       ethtypes.EtherAmount(2),
	}
	total := estimate.TotalFee()
	assert.Equal(t, big.NewInt(2*(21000+680)), total.Amount)
	assert.True(t, total.Token.IsEther())
}

func TestEthToAndValue(t *testing.T) {
	tx := draftTx(t)
	assert.Equal(t, recipientAddr, tx.EthTo())
	assert.Equal(t, big.NewInt(100), tx.EthValue())

	erc20 := New("tx-2", TypeTransfer, "w", account.NewID("0xtoken", "w"))
	token := ethtypes.Token{Code: "GNO", Name: "Gnosis", Decimals: 18,
		Address: ethtypes.NewAddress("0xb3a4bc89d8517e0e2c9b66703d09d3029ffa1e6d")}
	require.NoError(t, erc20.SetAmount(ethtypes.NewTokenAmount(big.NewInt(500), token)))
	require.NoError(t, erc20.SetRecipient(recipientAddr))

	assert.Equal(t, token.Address, erc20.EthTo())
	assert.Equal(t, int64(0), erc20.EthValue().Int64())
}
