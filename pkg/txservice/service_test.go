package txservice

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekit/safed/pkg/contracts"
	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/eventbus"
	"github.com/safekit/safed/pkg/keystore"
	"github.com/safekit/safed/pkg/notify"
	"github.com/safekit/safed/pkg/relay"
	"github.com/safekit/safed/pkg/repo"
	"github.com/safekit/safed/pkg/transaction"
	"github.com/safekit/safed/pkg/wallet"
)

type fakeRelay struct {
	estimation relay.Estimation
	submitted  []relay.SubmissionRequest
	submitHash ethtypes.TransactionHash
}

func (f *fakeRelay) CreateSafeCreationTransaction(context.Context, relay.SafeCreationRequest) (*relay.SafeCreationResponse, error) {
	return nil, nil
}

func (f *fakeRelay) StartSafeCreation(context.Context, ethtypes.Address) error { return nil }

func (f *fakeRelay) SafeCreationTransactionHash(context.Context, ethtypes.Address) (ethtypes.TransactionHash, error) {
	return "", nil
}

func (f *fakeRelay) EstimateTransaction(context.Context, relay.EstimationRequest) (*relay.Estimation, error) {
	return &f.estimation, nil
}

func (f *fakeRelay) SubmitTransaction(_ context.Context, req relay.SubmissionRequest) (*relay.SubmissionResponse, error) {
	f.submitted = append(f.submitted, req)
	return &relay.SubmissionResponse{TransactionHash: f.submitHash}, nil
}

type fakeNode struct {
	receipts map[ethtypes.TransactionHash]*ethtypes.Receipt
	blocks   map[string]*ethtypes.Block
}

func (f *fakeNode) Balance(context.Context, ethtypes.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeNode) Call(context.Context, ethtypes.Address, []byte) ([]byte, error) {
	return nil, nil
}

func (f *fakeNode) TransactionReceipt(_ context.Context, hash ethtypes.TransactionHash) (*ethtypes.Receipt, error) {
	return f.receipts[hash], nil
}

func (f *fakeNode) BlockByHash(_ context.Context, hash string) (*ethtypes.Block, error) {
	if b, ok := f.blocks[hash]; ok {
		return b, nil
	}
	return &ethtypes.Block{}, nil
}

type fakeKeys struct {
	accounts map[ethtypes.Address]*keystore.ExternallyOwnedAccount
}

func (f *fakeKeys) Find(address ethtypes.Address) (*keystore.ExternallyOwnedAccount, error) {
	if a, ok := f.accounts[address]; ok {
		return a, nil
	}
	return nil, repo.ErrNotFound
}

type fixture struct {
	service      *Service
	transactions *repo.Memory[transaction.Transaction, transaction.ID]
	wallets      *repo.Memory[wallet.Wallet, wallet.ID]
	relay        *fakeRelay
	node         *fakeNode
	keys         *fakeKeys
	notifier     *notify.Recorder
	device       *keystore.ExternallyOwnedAccount
	extension    *keystore.ExternallyOwnedAccount
	events       []transaction.StatusUpdated
	now          time.Time
}

const multiSendAddress = ethtypes.Address("0x00000000000000000000000000000000000000a1")

func newFixture(t *testing.T) *fixture {
	t.Helper()
	device, err := keystore.GenerateAccount()
	require.NoError(t, err)
	extension, err := keystore.GenerateAccount()
	require.NoError(t, err)

	f := &fixture{
		transactions: repo.NewMemory[transaction.Transaction, transaction.ID](func(t *transaction.Transaction) transaction.ID { return t.ID }),
		wallets:      repo.NewMemory[wallet.Wallet, wallet.ID](func(w *wallet.Wallet) wallet.ID { return w.ID }),
		relay:        &fakeRelay{submitHash: "0xmined"},
		node:         &fakeNode{receipts: map[ethtypes.TransactionHash]*ethtypes.Receipt{}, blocks: map[string]*ethtypes.Block{}},
		keys:         &fakeKeys{accounts: map[ethtypes.Address]*keystore.ExternallyOwnedAccount{device.Address: device}},
		notifier:     notify.NewRecorder(),
		device:       device,
		extension:    extension,
		now:          time.Date(2019, 3, 4, 12, 0, 0, 0, time.UTC),
	}
	metadata := contracts.NewMetadataRepository(contracts.SafeContractMetadata{
		MultiSend: []contracts.MultiSendMetadata{{Address: multiSendAddress, Version: 2}},
	})
	bus := eventbus.New(zerolog.Nop())
	bus.Subscribe("test", transaction.EventStatusUpdated, func(e eventbus.Event) {
		f.events = append(f.events, e.(transaction.StatusUpdated))
	})
	f.service = NewService(f.transactions, f.wallets, f.relay, f.node, f.keys, metadata, f.notifier, bus, zerolog.Nop())
	f.service.now = func() time.Time { return f.now }

	w := wallet.New("w1", device.Address)
	require.NoError(t, w.AddOwner(wallet.NewOwner(extension.Address, wallet.RoleBrowserExtension)))
	w.Address = ethtypes.NewAddress("0x5afe")
	require.NoError(t, f.wallets.Save(w))
	return f
}

func (f *fixture) draftTransfer(t *testing.T) transaction.ID {
	t.Helper()
	f.relay.estimation = relay.Estimation{
		SafeTxGas:     21000,
		DataGas:       680,
		GasPrice:      big.NewInt(1000000000),
		LastUsedNonce: nil,
	}
	draft, err := f.service.CreateDraft("w1", "0x0:w1", transaction.TypeTransfer)
	require.NoError(t, err)
	tx, err := f.transactions.Find(draft.ID)
	require.NoError(t, err)
	require.NoError(t, tx.SetRecipient(ethtypes.NewAddress("0xrec")))
	require.NoError(t, tx.SetAmount(ethtypes.EtherAmount(1000)))
	require.NoError(t, f.transactions.Save(tx))
	require.NoError(t, f.service.EstimateFee(context.Background(), draft.ID))
	return draft.ID
}

func (f *fixture) current(t *testing.T, id transaction.ID) *transaction.Transaction {
	t.Helper()
	tx, err := f.transactions.Find(id)
	require.NoError(t, err)
	return tx
}

func TestEstimateFee(t *testing.T) {
	f := newFixture(t)
	id := f.draftTransfer(t)

	tx := f.current(t, id)
	require.NotNil(t, tx.FeeEstimate)
	assert.Equal(t, 21000, tx.FeeEstimate.Gas)
	assert.Equal(t, "0", tx.Nonce)
	// (21000 + 680) * 1 gwei
	assert.Equal(t, big.NewInt(21680000000000), tx.Fee.Amount)
	assert.True(t, tx.Fee.Token.IsEther())
}

func TestSigningFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.draftTransfer(t)

	require.NoError(t, f.service.RequestSigning(ctx, id))
	tx := f.current(t, id)
	assert.Equal(t, transaction.StatusSigning, tx.Status)
	assert.Len(t, tx.Hash, 32)
	require.Len(t, f.notifier.ConfirmationRequests, 1)
	assert.Equal(t, tx.Hash, f.notifier.ConfirmationRequests[0].Hash)

	// The paired device answers with its signature.
	sig, err := f.extension.Sign(tx.Hash)
	require.NoError(t, err)
	require.NoError(t, f.service.AddConfirmation(id, sig))
	tx = f.current(t, id)
	assert.True(t, tx.IsSignedBy(f.extension.Address))

	require.NoError(t, f.service.Submit(ctx, id))
	tx = f.current(t, id)
	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.Equal(t, ethtypes.TransactionHash("0xmined"), tx.TransactionHash)

	require.Len(t, f.relay.submitted, 1)
	assert.Len(t, f.relay.submitted[0].Signatures, 2)
	require.Len(t, f.notifier.SubmittedAnnouncement, 1)

	// Mined: the pending poller finalizes with the block timestamp.
	minedAt := time.Date(2019, 3, 4, 12, 34, 56, 0, time.UTC)
	f.node.receipts["0xmined"] = &ethtypes.Receipt{Hash: "0xmined", Status: ethtypes.ReceiptSuccess, BlockHash: "0xb10c"}
	f.node.blocks["0xb10c"] = &ethtypes.Block{Hash: "0xb10c", Timestamp: minedAt}
	require.NoError(t, f.service.UpdatePendingTransactions(ctx))

	tx = f.current(t, id)
	assert.Equal(t, transaction.StatusSuccess, tx.Status)
	require.NotNil(t, tx.ProcessedDate)
	assert.Equal(t, minedAt, *tx.ProcessedDate)
	require.NotEmpty(t, f.events)
	assert.Equal(t, transaction.StatusSuccess, f.events[len(f.events)-1].Status)
}

func TestSubmitSignsWithDeviceKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.draftTransfer(t)
	require.NoError(t, f.service.RequestSigning(ctx, id))
	require.NoError(t, f.service.Submit(ctx, id))

	tx := f.current(t, id)
	assert.True(t, tx.IsSignedBy(f.device.Address))
}

func TestRejectPublishesStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.draftTransfer(t)
	require.NoError(t, f.service.RequestSigning(ctx, id))

	require.NoError(t, f.service.Reject(id))
	assert.Equal(t, transaction.StatusRejected, f.current(t, id).Status)
	require.Len(t, f.events, 1)
	assert.Equal(t, transaction.StatusRejected, f.events[0].Status)
}

func TestUpdatePendingSkipsUnminedTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.draftTransfer(t)
	require.NoError(t, f.service.RequestSigning(ctx, id))
	require.NoError(t, f.service.Submit(ctx, id))

	require.NoError(t, f.service.UpdatePendingTransactions(ctx))
	assert.Equal(t, transaction.StatusPending, f.current(t, id).Status)
}

func TestUpdatePendingFailedReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.draftTransfer(t)
	require.NoError(t, f.service.RequestSigning(ctx, id))
	require.NoError(t, f.service.Submit(ctx, id))

	f.node.receipts["0xmined"] = &ethtypes.Receipt{Hash: "0xmined", Status: ethtypes.ReceiptFailed, BlockHash: "0xb10c"}
	require.NoError(t, f.service.UpdatePendingTransactions(ctx))
	assert.Equal(t, transaction.StatusFailed, f.current(t, id).Status)
}

func TestCleanUpStaleTransactionsRemovesDraftsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draftID := f.draftTransfer(t)
	signingID := f.draftTransfer(t)
	require.NoError(t, f.service.RequestSigning(ctx, signingID))

	require.NoError(t, f.service.CleanUpStaleTransactions())
	_, err := f.transactions.Find(draftID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Equal(t, transaction.StatusSigning, f.current(t, signingID).Status)
}

func TestAllReturnsOnlyDisplayedStatuses(t *testing.T) {
	f := newFixture(t)
	statuses := map[transaction.ID]transaction.Status{
		"t-draft":     transaction.StatusDraft,
		"t-signing":   transaction.StatusSigning,
		"t-rejected":  transaction.StatusRejected,
		"t-discarded": transaction.StatusDiscarded,
		"t-pending":   transaction.StatusPending,
		"t-success":   transaction.StatusSuccess,
		"t-failed":    transaction.StatusFailed,
	}
	for id, status := range statuses {
		tx := transaction.New(id, transaction.TypeTransfer, "w1", "0x0:w1")
		tx.Status = status
		require.NoError(t, f.transactions.Save(tx))
	}
	other := transaction.New("t-other-wallet", transaction.TypeTransfer, "w2", "0x0:w2")
	other.Status = transaction.StatusSuccess
	require.NoError(t, f.transactions.Save(other))

	list, err := f.service.All("w1")
	require.NoError(t, err)
	ids := make([]transaction.ID, 0, len(list))
	for _, tx := range list {
		ids = append(ids, tx.ID)
	}
	assert.ElementsMatch(t, []transaction.ID{"t-pending", "t-success", "t-failed"}, ids)
}

func TestSigningHashDependsOnEveryField(t *testing.T) {
	base := SafeTx{
		Safe:     ethtypes.NewAddress("0x5afe"),
		To:       ethtypes.NewAddress("0xrec"),
		Value:    big.NewInt(1000),
		GasPrice: big.NewInt(1),
		Nonce:    1,
	}
	hash := SigningHash(base)
	assert.Len(t, hash, 32)
	assert.Equal(t, hash, SigningHash(base))

	nonceChanged := base
	nonceChanged.Nonce = 2
	assert.NotEqual(t, hash, SigningHash(nonceChanged))

	dataChanged := base
	dataChanged.Data = []byte{0x01}
	assert.NotEqual(t, hash, SigningHash(dataChanged))

	safeChanged := base
	safeChanged.Safe = ethtypes.NewAddress("0x5afd")
	assert.NotEqual(t, hash, SigningHash(safeChanged))
}

func newBatch(t *testing.T, f *fixture, entries []contracts.MultiSendTx) *transaction.Transaction {
	t.Helper()
	tx := transaction.New("batch", transaction.TypeBatched, "w1", "0x0:w1")
	require.NoError(t, tx.SetSender(ethtypes.NewAddress("0x5afe")))
	require.NoError(t, tx.SetRecipient(multiSendAddress))
	require.NoError(t, tx.SetOperation(ethtypes.OperationDelegateCall))
	proxy := contracts.NewMultiSendProxy(multiSendAddress, 2)
	require.NoError(t, tx.SetData(proxy.MultiSend(entries)))
	return tx
}

func TestBatchedTransactions(t *testing.T) {
	f := newFixture(t)
	entries := []contracts.MultiSendTx{
		{Operation: ethtypes.OperationCall, To: ethtypes.NewAddress("0x1"), Value: big.NewInt(5), Data: []byte{0xaa}},
		{Operation: ethtypes.OperationCall, To: ethtypes.NewAddress("0x2"), Value: big.NewInt(0)},
	}
	tx := newBatch(t, f, entries)
	decoded := f.service.BatchedTransactions(tx)
	require.Len(t, decoded, len(entries))
	for i, want := range entries {
		assert.Equal(t, want.Operation, decoded[i].Operation)
		assert.Equal(t, want.To, decoded[i].To)
		assert.Zero(t, want.Value.Cmp(decoded[i].Value))
		assert.Equal(t, want.Data, decoded[i].Data)
	}

	// A call-operation transaction is not a batch, whatever its data.
	notDelegate := *tx
	notDelegate.Operation = ethtypes.OperationCall
	assert.Nil(t, f.service.BatchedTransactions(&notDelegate))

	// Addressed at a different contract.
	elsewhere := *tx
	elsewhere.Recipient = ethtypes.NewAddress("0xother")
	assert.Nil(t, f.service.BatchedTransactions(&elsewhere))

	plain := transaction.New("plain", transaction.TypeTransfer, "w1", "0x0:w1")
	assert.Nil(t, f.service.BatchedTransactions(plain))
}

func TestIsDangerous(t *testing.T) {
	f := newFixture(t)
	safe := ethtypes.NewAddress("0x5afe")

	plain := transaction.New("t1", transaction.TypeTransfer, "w1", "0x0:w1")
	require.NoError(t, plain.SetSender(safe))
	require.NoError(t, plain.SetRecipient(ethtypes.NewAddress("0xrec")))
	assert.False(t, f.service.IsDangerous(plain))

	delegate := transaction.New("t2", transaction.TypeTransfer, "w1", "0x0:w1")
	require.NoError(t, delegate.SetSender(safe))
	require.NoError(t, delegate.SetOperation(ethtypes.OperationDelegateCall))
	assert.True(t, f.service.IsDangerous(delegate))

	selfCall := transaction.New("t3", transaction.TypeTransfer, "w1", "0x0:w1")
	require.NoError(t, selfCall.SetSender(safe))
	require.NoError(t, selfCall.SetRecipient(safe))
	require.NoError(t, selfCall.SetData([]byte{0x01}))
	assert.True(t, f.service.IsDangerous(selfCall))

	emptyBatch := newBatch(t, f, []contracts.MultiSendTx{})
	assert.False(t, f.service.IsDangerous(emptyBatch))

	innerDelegate := newBatch(t, f, []contracts.MultiSendTx{
		{Operation: ethtypes.OperationDelegateCall, To: ethtypes.NewAddress("0x1"), Value: big.NewInt(0)},
	})
	assert.True(t, f.service.IsDangerous(innerDelegate))

	innerSelf := newBatch(t, f, []contracts.MultiSendTx{
		{Operation: ethtypes.OperationCall, To: safe, Value: big.NewInt(0), Data: []byte{0x01}},
	})
	assert.True(t, f.service.IsDangerous(innerSelf))
}

func TestDisplayOrderingAndGrouping(t *testing.T) {
	day1 := time.Date(2019, 3, 3, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2019, 3, 4, 9, 0, 0, 0, time.UTC)

	success1 := transaction.New("a", transaction.TypeTransfer, "w1", "0x0:w1")
	success1.Status = transaction.StatusSuccess
	success1.ProcessedDate = &day1

	success2 := transaction.New("b", transaction.TypeTransfer, "w1", "0x0:w1")
	success2.Status = transaction.StatusSuccess
	success2.ProcessedDate = &day2

	pending := transaction.New("c", transaction.TypeTransfer, "w1", "0x0:w1")
	pending.Status = transaction.StatusPending
	submitted := day2.Add(time.Hour)
	pending.SubmittedDate = &submitted

	draft := transaction.New("d", transaction.TypeTransfer, "w1", "0x0:w1")
	draft.TimestampCreated(day1)

	list := []*transaction.Transaction{success1, draft, success2, pending}
	groups := GroupByDay(list)
	require.Len(t, groups, 4)

	assert.True(t, groups[0].Pending)
	assert.Equal(t, transaction.ID("c"), groups[0].Transactions[0].ID)

	// Undated drafts come right after pending.
	assert.False(t, groups[1].Pending)
	assert.True(t, groups[1].Date.IsZero())
	assert.Equal(t, transaction.ID("d"), groups[1].Transactions[0].ID)

	// Newest day first.
	assert.Equal(t, transaction.ID("b"), groups[2].Transactions[0].ID)
	assert.Equal(t, transaction.ID("a"), groups[3].Transactions[0].ID)
}

func TestTransactionsWithoutTimestampsSortFirst(t *testing.T) {
	processed := time.Date(2019, 3, 4, 9, 0, 0, 0, time.UTC)

	undated := transaction.New("a", transaction.TypeTransfer, "w1", "0x0:w1")
	dated := transaction.New("b", transaction.TypeTransfer, "w1", "0x0:w1")
	dated.Status = transaction.StatusSuccess
	dated.ProcessedDate = &processed

	list := []*transaction.Transaction{dated, undated}
	Sort(list)
	assert.Equal(t, transaction.ID("a"), list[0].ID)
	assert.Equal(t, transaction.ID("b"), list[1].ID)

	assert.Negative(t, Compare(undated, dated))
	assert.Positive(t, Compare(dated, undated))
}

func TestCompareFallsBackToStatusAndID(t *testing.T) {
	at := time.Date(2019, 3, 4, 9, 0, 0, 0, time.UTC)

	a := transaction.New("a", transaction.TypeTransfer, "w1", "0x0:w1")
	a.TimestampUpdated(at)
	b := transaction.New("b", transaction.TypeTransfer, "w1", "0x0:w1")
	b.TimestampUpdated(at)

	assert.Negative(t, Compare(a, b))
	assert.Positive(t, Compare(b, a))
	assert.Zero(t, Compare(a, a))

	newer := transaction.New("z", transaction.TypeTransfer, "w1", "0x0:w1")
	newer.TimestampUpdated(at.Add(time.Minute))
	assert.Negative(t, Compare(newer, a))
}
