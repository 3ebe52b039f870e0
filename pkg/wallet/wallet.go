// Package wallet models the multi-signature wallet aggregate: its owner
// list, deployment parameters and the explicit deployment state machine.
// All mutations are guarded by the current state; invalid transitions return
// ErrInvalidState instead of silently proceeding.
package wallet

import (
	"errors"
	"math/big"

	"github.com/safekit/safed/pkg/ethtypes"
)

// Mutation and transition guard errors.
var (
	ErrInvalidState  = errors.New("wallet: operation not allowed in current state")
	ErrOwnerExists   = errors.New("wallet: owner address already present under another role")
	ErrOwnerNotFound = errors.New("wallet: owner not found")
)

// ID identifies a wallet aggregate.
type ID string

// Wallet is the aggregate root of one multi-signature wallet. Fields are
// exported for persistence; use the methods to mutate so state guards apply.
type Wallet struct {
	ID                      ID                       `cbor:"1,keyasint"`
	State                   State                    `cbor:"2,keyasint"`
	Owners                  []Owner                  `cbor:"3,keyasint"`
	ConfirmationCount       int                      `cbor:"4,keyasint"`
	Address                 ethtypes.Address         `cbor:"5,keyasint,omitempty"`
	FeePaymentToken         ethtypes.Address         `cbor:"6,keyasint,omitempty"`
	MinimumDeploymentAmount *big.Int                 `cbor:"7,keyasint,omitempty"`
	CreationTransactionHash ethtypes.TransactionHash `cbor:"8,keyasint,omitempty"`
	MasterCopy              ethtypes.Address         `cbor:"9,keyasint,omitempty"`
	ContractVersion         string                   `cbor:"10,keyasint,omitempty"`
}

// New creates a draft wallet with the device owner.
func New(id ID, deviceOwner ethtypes.Address) *Wallet {
	w := &Wallet{
		ID:                id,
		State:             StateDraft,
		ConfirmationCount: 1,
		FeePaymentToken:   ethtypes.ZeroAddress,
	}
	w.Owners = append(w.Owners, NewOwner(deviceOwner, RoleThisDevice))
	return w
}

// OwnerByRole returns the owner holding role, if any.
func (w *Wallet) OwnerByRole(role Role) (Owner, bool) {
	for _, o := range w.Owners {
		if o.Role == role {
			return o, true
		}
	}
	return Owner{}, false
}

// ContainsOwner reports whether address is an owner under any role.
func (w *Wallet) ContainsOwner(address ethtypes.Address) bool {
	for _, o := range w.Owners {
		if o.Address.Equals(address) {
			return true
		}
	}
	return false
}

// OwnerAddresses returns the owner addresses in list order.
func (w *Wallet) OwnerAddresses() []ethtypes.Address {
	out := make([]ethtypes.Address, len(w.Owners))
	for i, o := range w.Owners {
		out[i] = o.Address
	}
	return out
}

func (w *Wallet) canChangeOwners() bool {
	return w.State == StateDraft || w.State == StateReadyToUse || w.State == StateRecovering
}

// AddOwner adds an owner, replacing any existing owner of the same role. The
// same address may not serve two roles.
func (w *Wallet) AddOwner(owner Owner) error {
	if !w.canChangeOwners() {
		return ErrInvalidState
	}
	for _, o := range w.Owners {
		if o.Address.Equals(owner.Address) && o.Role != owner.Role {
			return ErrOwnerExists
		}
	}
	for i, o := range w.Owners {
		if o.Role == owner.Role {
			w.Owners[i] = owner
			return nil
		}
	}
	w.Owners = append(w.Owners, owner)
	return nil
}

// RemoveOwner removes the owner holding role.
func (w *Wallet) RemoveOwner(role Role) error {
	if !w.canChangeOwners() {
		return ErrInvalidState
	}
	for i, o := range w.Owners {
		if o.Role == role {
			w.Owners = append(w.Owners[:i], w.Owners[i+1:]...)
			return nil
		}
	}
	return ErrOwnerNotFound
}

// IsDeployable reports whether deployment may start: the wallet is in draft
// and carries a device owner, a two-factor owner and both recovery owners.
func (w *Wallet) IsDeployable() bool {
	if w.State != StateDraft {
		return false
	}
	if _, ok := w.OwnerByRole(RoleThisDevice); !ok {
		return false
	}
	_, hasExtension := w.OwnerByRole(RoleBrowserExtension)
	_, hasKeycard := w.OwnerByRole(RoleKeycard)
	if !hasExtension && !hasKeycard {
		return false
	}
	_, hasPaper := w.OwnerByRole(RolePaperWallet)
	_, hasDerived := w.OwnerByRole(RolePaperWalletDerived)
	return hasPaper && hasDerived
}

// StartDeployment moves draft → deploying.
func (w *Wallet) StartDeployment() error {
	if w.State != StateDraft {
		return ErrInvalidState
	}
	w.State = StateDeploying
	return nil
}

// AssignAddress records the safe address returned by the creation quote.
// Allowed only while deploying.
func (w *Wallet) AssignAddress(address ethtypes.Address) error {
	if w.State != StateDeploying {
		return ErrInvalidState
	}
	w.Address = address
	return nil
}

// SetDeploymentFee records the fee token and minimum deployment amount from
// the creation quote.
func (w *Wallet) SetDeploymentFee(token ethtypes.Address, minimum *big.Int) error {
	if w.State != StateDeploying {
		return ErrInvalidState
	}
	w.FeePaymentToken = token
	w.MinimumDeploymentAmount = minimum
	return nil
}

// MarkWaitingForFirstDeposit moves deploying → waitingForFirstDeposit.
func (w *Wallet) MarkWaitingForFirstDeposit() error {
	if w.State != StateDeploying {
		return ErrInvalidState
	}
	w.State = StateWaitingForFirstDeposit
	return nil
}

// MarkNotEnoughFunds records a partial deposit: reachable from deploying or
// waitingForFirstDeposit.
func (w *Wallet) MarkNotEnoughFunds() error {
	if w.State != StateDeploying && w.State != StateWaitingForFirstDeposit {
		return ErrInvalidState
	}
	w.State = StateNotEnoughFunds
	return nil
}

// MarkDeploymentFunded moves waitingForFirstDeposit/notEnoughFunds →
// creationStarted once the balance reaches the minimum.
func (w *Wallet) MarkDeploymentFunded() error {
	if w.State != StateWaitingForFirstDeposit && w.State != StateNotEnoughFunds {
		return ErrInvalidState
	}
	w.State = StateCreationStarted
	return nil
}

// AssignCreationTransaction records the hash of the broadcast creation
// transaction. Allowed only in creationStarted.
func (w *Wallet) AssignCreationTransaction(hash ethtypes.TransactionHash) error {
	if w.State != StateCreationStarted {
		return ErrInvalidState
	}
	w.CreationTransactionHash = hash
	return nil
}

// MarkFinalizingDeployment moves creationStarted → finalizingDeployment once
// the creation transaction is mined.
func (w *Wallet) MarkFinalizingDeployment() error {
	if w.State != StateCreationStarted {
		return ErrInvalidState
	}
	w.State = StateFinalizingDeployment
	return nil
}

// FinishDeployment moves finalizingDeployment → readyToUse after
// post-processing completes.
func (w *Wallet) FinishDeployment() error {
	if w.State != StateFinalizingDeployment {
		return ErrInvalidState
	}
	w.State = StateReadyToUse
	return nil
}

// FailDeployment moves the wallet to the terminal creationFailed state. Only
// possible while a deployment is in progress.
func (w *Wallet) FailDeployment() error {
	if !w.State.InProgress() {
		return ErrInvalidState
	}
	w.State = StateCreationFailed
	return nil
}

// Cancel aborts a deployment in progress and resets the wallet to draft,
// clearing the address, fee and creation transaction hash.
func (w *Wallet) Cancel() error {
	if !w.State.InProgress() {
		return ErrInvalidState
	}
	w.State = StateDraft
	w.Address = ethtypes.ZeroAddress
	w.FeePaymentToken = ethtypes.ZeroAddress
	w.MinimumDeploymentAmount = nil
	w.CreationTransactionHash = ""
	return nil
}

// BeginRecovery moves readyToUse → recovering while lost owners are being
// replaced.
func (w *Wallet) BeginRecovery() error {
	if w.State != StateReadyToUse {
		return ErrInvalidState
	}
	w.State = StateRecovering
	return nil
}

// FinishRecovery returns a recovering wallet to readyToUse.
func (w *Wallet) FinishRecovery() error {
	if w.State != StateRecovering {
		return ErrInvalidState
	}
	w.State = StateReadyToUse
	return nil
}
