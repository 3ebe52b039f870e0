package wallet

import "github.com/safekit/safed/pkg/ethtypes"

// Role classifies an owner key by where it lives. A wallet holds at most one
// owner per role.
type Role string

const (
	RoleThisDevice         Role = "thisDevice"
	RoleBrowserExtension   Role = "browserExtension"
	RoleKeycard            Role = "keycard"
	RolePaperWallet        Role = "paperWallet"
	RolePaperWalletDerived Role = "paperWalletDerived"
	RoleUnknown            Role = "unknown"
)

// IsTwoFactor reports whether the role is a secondary confirmation device.
func (r Role) IsTwoFactor() bool {
	return r == RoleBrowserExtension || r == RoleKeycard
}

// Owner is one signing key of the multi-signature wallet.
type Owner struct {
	Address ethtypes.Address `cbor:"1,keyasint"`
	Role    Role             `cbor:"2,keyasint"`
}

// NewOwner pairs an address with its role.
func NewOwner(address ethtypes.Address, role Role) Owner {
	return Owner{Address: address, Role: role}
}
