package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/safekit/safed/pkg/abi"
	"github.com/safekit/safed/pkg/ethtypes"
)

// SentinelOwner heads the Safe's on-chain owner linked list.
var SentinelOwner = ethtypes.NewAddress("0x1")

// ErrOwnerNotFound is returned when an address is not among the Safe owners.
var ErrOwnerNotFound = fmt.Errorf("owner not found in safe owner list")

// SafeOwnerManagerProxy builds and executes owner-management calls against a
// deployed Safe. Owners live on-chain in a sentinel-headed linked list, so
// removal and swap need the predecessor of the affected owner.
type SafeOwnerManagerProxy struct {
	Address ethtypes.Address
	caller  Caller
}

// NewSafeOwnerManagerProxy wraps the Safe at address.
func NewSafeOwnerManagerProxy(address ethtypes.Address, caller Caller) *SafeOwnerManagerProxy {
	return &SafeOwnerManagerProxy{Address: address, caller: caller}
}

// AddOwnerData returns calldata for addOwnerWithThreshold(address,uint256).
func (p *SafeOwnerManagerProxy) AddOwnerData(owner ethtypes.Address, threshold int) []byte {
	return abi.Invocation("addOwnerWithThreshold(address,uint256)",
		abi.EncodeAddress(owner), abi.EncodeUint64(uint64(threshold)))
}

// RemoveOwnerData returns calldata for removeOwner(address,address,uint256).
// prevOwner must be the linked-list predecessor of owner.
func (p *SafeOwnerManagerProxy) RemoveOwnerData(prevOwner, owner ethtypes.Address, threshold int) []byte {
	return abi.Invocation("removeOwner(address,address,uint256)",
		abi.EncodeAddress(prevOwner), abi.EncodeAddress(owner),
		abi.EncodeUint64(uint64(threshold)))
}

// SwapOwnerData returns calldata for swapOwner(address,address,address).
// prevOwner must be the linked-list predecessor of oldOwner.
func (p *SafeOwnerManagerProxy) SwapOwnerData(prevOwner, oldOwner, newOwner ethtypes.Address) []byte {
	return abi.Invocation("swapOwner(address,address,address)",
		abi.EncodeAddress(prevOwner), abi.EncodeAddress(oldOwner),
		abi.EncodeAddress(newOwner))
}

// ChangeThresholdData returns calldata for changeThreshold(uint256).
func (p *SafeOwnerManagerProxy) ChangeThresholdData(threshold int) []byte {
	return abi.Invocation("changeThreshold(uint256)", abi.EncodeUint64(uint64(threshold)))
}

// GetOwners fetches the current owner list.
func (p *SafeOwnerManagerProxy) GetOwners(ctx context.Context) ([]ethtypes.Address, error) {
	out, err := p.caller.Call(ctx, p.Address, abi.Invocation("getOwners()"))
	if err != nil {
		return nil, fmt.Errorf("safe getOwners %s: %w", p.Address, err)
	}
	return abi.DecodeArrayAddress(out), nil
}

// GetThreshold fetches the current confirmation threshold.
func (p *SafeOwnerManagerProxy) GetThreshold(ctx context.Context) (*big.Int, error) {
	out, err := p.caller.Call(ctx, p.Address, abi.Invocation("getThreshold()"))
	if err != nil {
		return nil, fmt.Errorf("safe getThreshold %s: %w", p.Address, err)
	}
	return abi.DecodeUint(out), nil
}

// PreviousOwner resolves the linked-list predecessor of owner from the
// current on-chain owner list. The first owner's predecessor is the sentinel.
func (p *SafeOwnerManagerProxy) PreviousOwner(ctx context.Context, owner ethtypes.Address) (ethtypes.Address, error) {
	owners, err := p.GetOwners(ctx)
	if err != nil {
		return ethtypes.ZeroAddress, err
	}
	for i, o := range owners {
		if o.Equals(owner) {
			if i == 0 {
				return SentinelOwner, nil
			}
			return owners[i-1], nil
		}
	}
	return ethtypes.ZeroAddress, ErrOwnerNotFound
}
