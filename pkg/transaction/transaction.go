// Package transaction models a single wallet transaction: its parameters,
// collected signatures, timestamps and the forward-only status lattice.
package transaction

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/safekit/safed/pkg/account"
	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/wallet"
)

// Guard errors for entity mutations.
var (
	ErrNotEditable       = errors.New("transaction: parameters frozen outside draft")
	ErrNotSignable       = errors.New("transaction: signatures frozen outside draft/signing")
	ErrHashNotChangeable = errors.New("transaction: hash assignable only in draft/signing/pending")
	ErrMissingParameters = errors.New("transaction: sender, recipient, amount and fee required")
	ErrMissingHash       = errors.New("transaction: blockchain hash required before pending")
	ErrInvalidTransition = errors.New("transaction: status transition not allowed")
)

// ID identifies a transaction aggregate.
type ID string

// Type says what user intent the transaction carries.
type Type int

const (
	TypeTransfer Type = iota
	TypeConnectTwoFactor
	TypeDisconnectTwoFactor
	TypeReplaceTwoFactor
	TypeReplaceRecoveryPhrase
	TypeWalletRecovery
	TypeContractUpgrade
	TypeBatched
)

func (t Type) String() string {
	switch t {
	case TypeTransfer:
		return "transfer"
	case TypeConnectTwoFactor:
		return "connectTwoFactor"
	case TypeDisconnectTwoFactor:
		return "disconnectTwoFactor"
	case TypeReplaceTwoFactor:
		return "replaceTwoFactor"
	case TypeReplaceRecoveryPhrase:
		return "replaceRecoveryPhrase"
	case TypeWalletRecovery:
		return "walletRecovery"
	case TypeContractUpgrade:
		return "contractUpgrade"
	case TypeBatched:
		return "batched"
	}
	return "unknown"
}

// Signature is one owner's signature over the wallet signing hash.
type Signature struct {
	Address ethtypes.Address `cbor:"1,keyasint"`
	Data    []byte           `cbor:"2,keyasint"`
}

// FeeEstimate is the relay's gas quote for a transaction.
type FeeEstimate struct {
	Gas            int                  `cbor:"1,keyasint"`
	DataGas        int                  `cbor:"2,keyasint"`
	OperationalGas int                  `cbor:"3,keyasint"`
	GasPrice       ethtypes.TokenAmount `cbor:"4,keyasint"`
}

// TotalFee is the worst-case fee: (gas + dataGas) * gasPrice, denominated in
// the gas token.
func (e FeeEstimate) TotalFee() ethtypes.TokenAmount {
	total := ethtypes.NewTokenAmount(nil, e.GasPrice.Token)
	if e.GasPrice.Amount != nil {
		gas := big.NewInt(int64(e.Gas + e.DataGas))
		total.Amount = new(big.Int).Mul(e.GasPrice.Amount, gas)
	}
	return total
}

// Transaction is the aggregate root of one on-chain operation. Fields are
// exported for persistence; mutate through methods so status guards apply.
type Transaction struct {
	ID        ID         `cbor:"1,keyasint"`
	Type      Type       `cbor:"2,keyasint"`
	WalletID  wallet.ID  `cbor:"3,keyasint"`
	AccountID account.ID `cbor:"4,keyasint"`
	Status    Status     `cbor:"5,keyasint"`

	Sender      ethtypes.Address      `cbor:"6,keyasint,omitempty"`
	Recipient   ethtypes.Address      `cbor:"7,keyasint,omitempty"`
	Amount      *ethtypes.TokenAmount `cbor:"8,keyasint,omitempty"`
	Fee         *ethtypes.TokenAmount `cbor:"9,keyasint,omitempty"`
	FeeEstimate *FeeEstimate          `cbor:"10,keyasint,omitempty"`
	Data        []byte                `cbor:"11,keyasint,omitempty"`
	Operation   ethtypes.Operation    `cbor:"12,keyasint"`
	Nonce       string                `cbor:"13,keyasint,omitempty"`

	// Hash is the wallet-specific signing hash; TransactionHash is the
	// blockchain hash after submission.
	Hash            []byte                   `cbor:"14,keyasint,omitempty"`
	TransactionHash ethtypes.TransactionHash `cbor:"15,keyasint,omitempty"`
	Signatures      []Signature              `cbor:"16,keyasint,omitempty"`

	CreatedDate   time.Time  `cbor:"17,keyasint,omitempty"`
	UpdatedDate   time.Time  `cbor:"18,keyasint,omitempty"`
	RejectedDate  *time.Time `cbor:"19,keyasint,omitempty"`
	SubmittedDate *time.Time `cbor:"20,keyasint,omitempty"`
	ProcessedDate *time.Time `cbor:"21,keyasint,omitempty"`
}

// New creates a draft transaction bound to a wallet account.
func New(id ID, txType Type, walletID wallet.ID, accountID account.ID) *Transaction {
	return &Transaction{
		ID:        id,
		Type:      txType,
		WalletID:  walletID,
		AccountID: accountID,
		Status:    StatusDraft,
	}
}

func (t *Transaction) changeStatus(next Status) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}

// -- Draft editing --

func (t *Transaction) assertDraft() error {
	if t.Status != StatusDraft {
		return ErrNotEditable
	}
	return nil
}

// SetSender records the sending safe address. Draft only.
func (t *Transaction) SetSender(sender ethtypes.Address) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Sender = sender
	return nil
}

// SetRecipient records the target address. Draft only.
func (t *Transaction) SetRecipient(recipient ethtypes.Address) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Recipient = recipient
	return nil
}

// SetAmount records the transferred amount. Draft only.
func (t *Transaction) SetAmount(amount ethtypes.TokenAmount) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Amount = &amount
	return nil
}

// SetFee records the total fee. Draft only.
func (t *Transaction) SetFee(fee ethtypes.TokenAmount) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Fee = &fee
	return nil
}

// SetFeeEstimate records the relay's gas quote. Draft only.
func (t *Transaction) SetFeeEstimate(estimate FeeEstimate) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.FeeEstimate = &estimate
	return nil
}

// SetData records the call data. Draft only.
func (t *Transaction) SetData(data []byte) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Data = data
	return nil
}

// SetOperation records the call type. Draft only.
func (t *Transaction) SetOperation(op ethtypes.Operation) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Operation = op
	return nil
}

// SetNonce records the wallet nonce. Draft only.
func (t *Transaction) SetNonce(nonce string) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Nonce = nonce
	return nil
}

// SetHash records the wallet-specific signing hash. Draft only.
func (t *Transaction) SetHash(hash []byte) error {
	if err := t.assertDraft(); err != nil {
		return err
	}
	t.Hash = hash
	return nil
}

// SetTransactionHash records the blockchain hash. Permitted in draft,
// signing and pending.
func (t *Transaction) SetTransactionHash(hash ethtypes.TransactionHash) error {
	switch t.Status {
	case StatusDraft, StatusSigning, StatusPending:
		t.TransactionHash = hash
		return nil
	}
	return ErrHashNotChangeable
}

// -- Signatures --

func (t *Transaction) assertSignable() error {
	if t.Status != StatusDraft && t.Status != StatusSigning {
		return ErrNotSignable
	}
	return nil
}

// AddSignature collects an owner signature; a duplicate signer is a no-op.
func (t *Transaction) AddSignature(sig Signature) error {
	if err := t.assertSignable(); err != nil {
		return err
	}
	if t.IsSignedBy(sig.Address) {
		return nil
	}
	t.Signatures = append(t.Signatures, sig)
	return nil
}

// RemoveSignature drops the signature of signer, if present.
func (t *Transaction) RemoveSignature(signer ethtypes.Address) error {
	if err := t.assertSignable(); err != nil {
		return err
	}
	for i, sig := range t.Signatures {
		if sig.Address.Equals(signer) {
			t.Signatures = append(t.Signatures[:i], t.Signatures[i+1:]...)
			return nil
		}
	}
	return nil
}

// IsSignedBy reports whether signer already contributed a signature.
func (t *Transaction) IsSignedBy(signer ethtypes.Address) bool {
	for _, sig := range t.Signatures {
		if sig.Address.Equals(signer) {
			return true
		}
	}
	return false
}

// -- Status transitions --

// StartSigning moves draft → signing, freezing the parameters. All of
// sender, recipient, amount and fee must be set.
func (t *Transaction) StartSigning(at time.Time) error {
	if t.Sender.IsZero() || t.Recipient == "" || t.Amount == nil || t.Fee == nil {
		return ErrMissingParameters
	}
	if err := t.changeStatus(StatusSigning); err != nil {
		return err
	}
	t.UpdatedDate = at
	return nil
}

// Reject moves signing → rejected.
func (t *Transaction) Reject(at time.Time) error {
	if err := t.changeStatus(StatusRejected); err != nil {
		return err
	}
	t.RejectedDate = &at
	t.UpdatedDate = at
	return nil
}

// Submit moves signing → pending. The blockchain hash must be known.
func (t *Transaction) Submit(at time.Time) error {
	if t.TransactionHash == "" {
		return ErrMissingHash
	}
	if err := t.changeStatus(StatusPending); err != nil {
		return err
	}
	t.SubmittedDate = &at
	t.UpdatedDate = at
	return nil
}

// Succeed moves pending → success with the block timestamp.
func (t *Transaction) Succeed(at time.Time) error {
	if err := t.changeStatus(StatusSuccess); err != nil {
		return err
	}
	t.ProcessedDate = &at
	t.UpdatedDate = at
	return nil
}

// Fail moves pending → failed with the block timestamp.
func (t *Transaction) Fail(at time.Time) error {
	if err := t.changeStatus(StatusFailed); err != nil {
		return err
	}
	t.ProcessedDate = &at
	t.UpdatedDate = at
	return nil
}

// Discard archives the transaction. Allowed from any status.
func (t *Transaction) Discard(at time.Time) error {
	if t.Status == StatusDiscarded {
		return nil
	}
	t.UpdatedDate = at
	return t.changeStatus(StatusDiscarded)
}

// Reset returns a discarded transaction to draft, clearing the hash,
// timestamps and signatures.
func (t *Transaction) Reset() error {
	if err := t.changeStatus(StatusDraft); err != nil {
		return err
	}
	t.TransactionHash = ""
	t.CreatedDate = time.Time{}
	t.UpdatedDate = time.Time{}
	t.RejectedDate = nil
	t.SubmittedDate = nil
	t.ProcessedDate = nil
	t.Signatures = nil
	return nil
}

// TimestampCreated records the creation time.
func (t *Transaction) TimestampCreated(at time.Time) { t.CreatedDate = at }

// TimestampUpdated records the last-change time.
func (t *Transaction) TimestampUpdated(at time.Time) { t.UpdatedDate = at }

// -- Derived accessors --

// IsERC20Transfer reports whether the amount is denominated in a token
// contract rather than Ether.
func (t *Transaction) IsERC20Transfer() bool {
	return t.Amount != nil && !t.Amount.Token.IsEther()
}

// EthTo is the address the raw Ethereum transaction targets: the token
// contract for ERC20 transfers, the recipient otherwise.
func (t *Transaction) EthTo() ethtypes.Address {
	if t.IsERC20Transfer() {
		return t.Amount.Token.Address
	}
	if t.Recipient == "" {
		return ethtypes.ZeroAddress
	}
	return t.Recipient
}

// EthValue is the Ether value the raw transaction carries: zero for ERC20
// transfers.
func (t *Transaction) EthValue() *big.Int {
	if t.IsERC20Transfer() || t.Amount == nil || t.Amount.Amount == nil {
		return big.NewInt(0)
	}
	return t.Amount.Amount
}
