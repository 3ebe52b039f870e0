// Package txservice orchestrates wallet transactions end to end: draft
// creation, fee estimation at the relay, signing-hash computation,
// signature collection from the device and the paired two-factor device,
// submission and receipt polling. It also owns the display ordering and
// the safety classification of transactions.
package txservice

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/safekit/safed/pkg/account"
	"github.com/safekit/safed/pkg/contracts"
	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/eventbus"
	"github.com/safekit/safed/pkg/keystore"
	"github.com/safekit/safed/pkg/node"
	"github.com/safekit/safed/pkg/notify"
	"github.com/safekit/safed/pkg/relay"
	"github.com/safekit/safed/pkg/transaction"
	"github.com/safekit/safed/pkg/wallet"
)

// ErrDeviceKeyMissing is returned when the keystore does not hold the key
// of the wallet's device owner.
var ErrDeviceKeyMissing = errors.New("txservice: device owner key not in keystore")

// TransactionRepository is the persistence the service needs.
type TransactionRepository interface {
	Find(id transaction.ID) (*transaction.Transaction, error)
	Save(t *transaction.Transaction) error
	Remove(id transaction.ID) error
	All() ([]*transaction.Transaction, error)
	NextID() transaction.ID
}

// WalletRepository resolves the wallet a transaction belongs to.
type WalletRepository interface {
	Find(id wallet.ID) (*wallet.Wallet, error)
}

// KeyProvider hands out stored signing keys.
type KeyProvider interface {
	Find(address ethtypes.Address) (*keystore.ExternallyOwnedAccount, error)
}

// Service drives the transaction lifecycle.
type Service struct {
	transactions TransactionRepository
	wallets      WalletRepository
	relay        relay.Service
	node         node.Service
	keys         KeyProvider
	metadata     *contracts.MetadataRepository
	notifier     notify.Service
	bus          *eventbus.Bus
	log          zerolog.Logger
	now          func() time.Time
}

func NewService(
	transactions TransactionRepository,
	wallets WalletRepository,
	relayService relay.Service,
	nodeService node.Service,
	keys KeyProvider,
	metadata *contracts.MetadataRepository,
	notifier notify.Service,
	bus *eventbus.Bus,
	log zerolog.Logger,
) *Service {
	return &Service{
		transactions: transactions,
		wallets:      wallets,
		relay:        relayService,
		node:         nodeService,
		keys:         keys,
		metadata:     metadata,
		notifier:     notifier,
		bus:          bus,
		log:          log.With().Str("component", "txservice").Logger(),
		now:          time.Now,
	}
}

// CreateDraft opens a new draft transaction sending from the wallet's safe.
func (s *Service) CreateDraft(walletID wallet.ID, accountID account.ID, txType transaction.Type) (*transaction.Transaction, error) {
	w, err := s.wallets.Find(walletID)
	if err != nil {
		return nil, err
	}
	t := transaction.New(s.transactions.NextID(), txType, walletID, accountID)
	if err := t.SetSender(w.Address); err != nil {
		return nil, err
	}
	now := s.now()
	t.TimestampCreated(now)
	t.TimestampUpdated(now)
	if err := s.transactions.Save(t); err != nil {
		return nil, err
	}
	return t, nil
}

// EstimateFee asks the relay for a gas quote and records fee and nonce on
// the draft.
func (s *Service) EstimateFee(ctx context.Context, id transaction.ID) error {
	t, err := s.transactions.Find(id)
	if err != nil {
		return err
	}
	w, err := s.wallets.Find(t.WalletID)
	if err != nil {
		return err
	}
	estimation, err := s.relay.EstimateTransaction(ctx, relay.EstimationRequest{
		SafeAddress: t.Sender,
		To:          t.EthTo(),
		Value:       t.EthValue(),
		Data:        t.Data,
		Operation:   t.Operation,
		GasToken:    w.FeePaymentToken,
	})
	if err != nil {
		return err
	}

	dataGas := estimation.DataGas
	if dataGas == 0 {
		dataGas = estimation.BaseGas
	}
	feeToken := ethtypes.Ether
	if !w.FeePaymentToken.IsZero() {
		feeToken = ethtypes.Token{Code: "GAS", Address: w.FeePaymentToken}
	}
	estimate := transaction.FeeEstimate{
		Gas:            estimation.SafeTxGas,
		DataGas:        dataGas,
		OperationalGas: estimation.OperationalGas,
		GasPrice:       ethtypes.NewTokenAmount(estimation.GasPrice, feeToken),
	}
	if err := t.SetFeeEstimate(estimate); err != nil {
		return err
	}
	if err := t.SetFee(estimate.TotalFee()); err != nil {
		return err
	}
	if err := t.SetNonce(strconv.Itoa(estimation.NextNonce())); err != nil {
		return err
	}
	t.TimestampUpdated(s.now())
	return s.transactions.Save(t)
}

// RequestSigning freezes the draft, computes the signing hash and asks the
// paired device for its confirmation signature.
func (s *Service) RequestSigning(ctx context.Context, id transaction.ID) error {
	t, err := s.transactions.Find(id)
	if err != nil {
		return err
	}
	hash, err := s.signingHash(t)
	if err != nil {
		return err
	}
	if err := t.SetHash(hash); err != nil {
		return err
	}
	if err := t.StartSigning(s.now()); err != nil {
		return err
	}
	if err := s.transactions.Save(t); err != nil {
		return err
	}

	nonce, _ := strconv.Atoi(t.Nonce)
	return s.notifier.RequestConfirmation(ctx, notify.ConfirmationRequest{
		Hash:      t.Hash,
		Safe:      t.Sender,
		To:        t.EthTo(),
		Value:     t.EthValue(),
		Data:      t.Data,
		Operation: t.Operation,
		Nonce:     nonce,
	})
}

func (s *Service) signingHash(t *transaction.Transaction) ([]byte, error) {
	if t.FeeEstimate == nil {
		return nil, transaction.ErrMissingParameters
	}
	nonce, err := strconv.Atoi(t.Nonce)
	if err != nil {
		return nil, fmt.Errorf("txservice: bad nonce %q: %w", t.Nonce, err)
	}
	w, err := s.wallets.Find(t.WalletID)
	if err != nil {
		return nil, err
	}
	return SigningHash(SafeTx{
		Safe:           t.Sender,
		To:             t.EthTo(),
		Value:          t.EthValue(),
		Data:           t.Data,
		Operation:      t.Operation,
		SafeTxGas:      t.FeeEstimate.Gas,
		DataGas:        t.FeeEstimate.DataGas,
		GasPrice:       t.FeeEstimate.GasPrice.Amount,
		GasToken:       w.FeePaymentToken,
		RefundReceiver: ethtypes.ZeroAddress,
		Nonce:          nonce,
	}), nil
}

// AddConfirmation records a signature received from another owner, e.g.
// the paired two-factor device. The signer must recover from the hash.
func (s *Service) AddConfirmation(id transaction.ID, sig keystore.Signature) error {
	t, err := s.transactions.Find(id)
	if err != nil {
		return err
	}
	signer, err := keystore.RecoverAddress(t.Hash, sig)
	if err != nil {
		return err
	}
	if err := t.AddSignature(transaction.Signature{Address: signer, Data: encodeSignature(sig)}); err != nil {
		return err
	}
	t.TimestampUpdated(s.now())
	return s.transactions.Save(t)
}

// Reject marks a signing transaction as rejected by the user or the
// paired device.
func (s *Service) Reject(id transaction.ID) error {
	t, err := s.transactions.Find(id)
	if err != nil {
		return err
	}
	if err := t.Reject(s.now()); err != nil {
		return err
	}
	if err := s.transactions.Save(t); err != nil {
		return err
	}
	s.bus.Publish(transaction.StatusUpdated{TransactionID: id, Status: t.Status})
	return nil
}

// Submit signs with the device key, sends the transaction to the relay and
// moves it to pending.
func (s *Service) Submit(ctx context.Context, id transaction.ID) error {
	t, err := s.transactions.Find(id)
	if err != nil {
		return err
	}
	w, err := s.wallets.Find(t.WalletID)
	if err != nil {
		return err
	}
	if err := s.signByDevice(t, w); err != nil {
		return err
	}

	signatures := make([]relay.SignatureValue, 0, len(t.Signatures))
	for _, sig := range t.Signatures {
		value, err := decodeSignature(sig.Data)
		if err != nil {
			return err
		}
		signatures = append(signatures, value)
	}
	nonce, err := strconv.Atoi(t.Nonce)
	if err != nil {
		return fmt.Errorf("txservice: bad nonce %q: %w", t.Nonce, err)
	}
	resp, err := s.relay.SubmitTransaction(ctx, relay.SubmissionRequest{
		SafeAddress:    t.Sender,
		To:             t.EthTo(),
		Value:          t.EthValue(),
		Data:           t.Data,
		Operation:      t.Operation,
		SafeTxGas:      t.FeeEstimate.Gas,
		DataGas:        t.FeeEstimate.DataGas,
		GasPrice:       t.FeeEstimate.GasPrice.Amount,
		GasToken:       w.FeePaymentToken,
		RefundReceiver: ethtypes.ZeroAddress,
		Nonce:          nonce,
		Signatures:     signatures,
	})
	if err != nil {
		return err
	}

	if err := t.SetTransactionHash(resp.TransactionHash); err != nil {
		return err
	}
	if err := t.Submit(s.now()); err != nil {
		return err
	}
	if err := s.transactions.Save(t); err != nil {
		return err
	}
	s.bus.Publish(transaction.StatusUpdated{TransactionID: id, Status: t.Status})
	return s.notifier.TransactionSubmitted(ctx, notify.TransactionSubmittedMessage{
		Hash:            t.Hash,
		TransactionHash: t.TransactionHash,
	})
}

func (s *Service) signByDevice(t *transaction.Transaction, w *wallet.Wallet) error {
	device, ok := w.OwnerByRole(wallet.RoleThisDevice)
	if !ok {
		return ErrDeviceKeyMissing
	}
	if t.IsSignedBy(device.Address) {
		return nil
	}
	key, err := s.keys.Find(device.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceKeyMissing, err)
	}
	sig, err := key.Sign(t.Hash)
	if err != nil {
		return err
	}
	return t.AddSignature(transaction.Signature{Address: device.Address, Data: encodeSignature(sig)})
}

// UpdatePendingTransactions polls receipts for all pending transactions
// and finalizes the mined ones with their block timestamp.
func (s *Service) UpdatePendingTransactions(ctx context.Context) error {
	all, err := s.transactions.All()
	if err != nil {
		return err
	}
	var firstErr error
	for _, t := range all {
		if t.Status != transaction.StatusPending {
			continue
		}
		if err := s.updatePending(ctx, t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) updatePending(ctx context.Context, t *transaction.Transaction) error {
	receipt, err := s.node.TransactionReceipt(ctx, t.TransactionHash)
	if err != nil {
		return err
	}
	if receipt == nil {
		return nil
	}
	minedAt := s.now()
	if block, err := s.node.BlockByHash(ctx, receipt.BlockHash); err == nil && !block.Timestamp.IsZero() {
		minedAt = block.Timestamp
	}
	if receipt.Status == ethtypes.ReceiptSuccess {
		err = t.Succeed(minedAt)
	} else {
		err = t.Fail(minedAt)
	}
	if err != nil {
		return err
	}
	if err := s.transactions.Save(t); err != nil {
		return err
	}
	s.log.Info().Str("tx", string(t.ID)).Stringer("status", t.Status).Msg("pending transaction finalized")
	s.bus.Publish(transaction.StatusUpdated{TransactionID: t.ID, Status: t.Status})
	return nil
}

// CleanUpStaleTransactions deletes drafts left over from an earlier
// session. Only drafts are touched.
func (s *Service) CleanUpStaleTransactions() error {
	all, err := s.transactions.All()
	if err != nil {
		return err
	}
	for _, t := range all {
		if t.Status != transaction.StatusDraft {
			continue
		}
		if err := s.transactions.Remove(t.ID); err != nil {
			return err
		}
	}
	return nil
}

// All returns a wallet's transactions in display order. Drafts and
// transactions that never reached the chain (signing, rejected,
// discarded) are not part of the display list.
func (s *Service) All(walletID wallet.ID) ([]*transaction.Transaction, error) {
	all, err := s.transactions.All()
	if err != nil {
		return nil, err
	}
	out := lo.Filter(all, func(t *transaction.Transaction, _ int) bool {
		return t.WalletID == walletID && displayed(t.Status)
	})
	Sort(out)
	return out, nil
}

func displayed(status transaction.Status) bool {
	switch status {
	case transaction.StatusPending, transaction.StatusSuccess, transaction.StatusFailed:
		return true
	default:
		return false
	}
}

// BatchedTransactions decodes the inner transactions of a MultiSend batch.
// Returns nil unless the transaction is a well-formed batch: batched type,
// delegate call, addressed at the known MultiSend contract, with decodable
// data.
func (s *Service) BatchedTransactions(t *transaction.Transaction) []contracts.MultiSendTx {
	if t.Type != transaction.TypeBatched {
		return nil
	}
	if t.Operation != ethtypes.OperationDelegateCall {
		return nil
	}
	multiSend := s.metadata.MultiSendAddress()
	if multiSend.IsZero() || !t.Recipient.Equals(multiSend) {
		return nil
	}
	if len(t.Data) == 0 {
		return nil
	}
	return s.metadata.MultiSendProxyFor(multiSend).DecodeMultiSendArguments(t.Data)
}

// IsDangerous flags transactions that can take over the safe: delegate
// calls to arbitrary code, or calls into the safe itself carrying data. A
// well-formed batch is judged by its inner transactions; an empty batch is
// harmless.
func (s *Service) IsDangerous(t *transaction.Transaction) bool {
	if inner := s.BatchedTransactions(t); inner != nil {
		for _, entry := range inner {
			if entry.Operation == ethtypes.OperationDelegateCall {
				return true
			}
			if entry.To.Equals(t.Sender) && len(entry.Data) > 0 {
				return true
			}
		}
		return false
	}
	if t.Operation == ethtypes.OperationDelegateCall {
		return true
	}
	return t.Recipient.Equals(t.Sender) && !t.Sender.IsZero() && len(t.Data) > 0
}

// encodeSignature packs r||s||v into the 65-byte storage form.
func encodeSignature(sig keystore.Signature) []byte {
	out := make([]byte, 65)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:64])
	out[64] = byte(sig.V)
	return out
}

func decodeSignature(data []byte) (relay.SignatureValue, error) {
	if len(data) != 65 {
		return relay.SignatureValue{}, fmt.Errorf("txservice: malformed signature of %d bytes", len(data))
	}
	return relay.SignatureValue{
		R: new(big.Int).SetBytes(data[:32]),
		S: new(big.Int).SetBytes(data[32:64]),
		V: int(data[64]),
	}, nil
}
