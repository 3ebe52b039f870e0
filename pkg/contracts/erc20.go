package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/safekit/safed/pkg/abi"
	"github.com/safekit/safed/pkg/ethtypes"
)

// ERC20Proxy builds and executes calls against an ERC20 token contract.
type ERC20Proxy struct {
	Address ethtypes.Address
	caller  Caller
}

// NewERC20Proxy wraps a token contract at address.
func NewERC20Proxy(address ethtypes.Address, caller Caller) *ERC20Proxy {
	return &ERC20Proxy{Address: address, caller: caller}
}

// TransferData returns calldata for transfer(address,uint256).
func (p *ERC20Proxy) TransferData(recipient ethtypes.Address, amount *big.Int) []byte {
	return abi.Invocation("transfer(address,uint256)",
		abi.EncodeAddress(recipient), abi.EncodeUint(amount))
}

// BalanceOfData returns calldata for balanceOf(address).
func (p *ERC20Proxy) BalanceOfData(holder ethtypes.Address) []byte {
	return abi.Invocation("balanceOf(address)", abi.EncodeAddress(holder))
}

// Balance fetches the token balance of holder.
func (p *ERC20Proxy) Balance(ctx context.Context, holder ethtypes.Address) (*big.Int, error) {
	out, err := p.caller.Call(ctx, p.Address, p.BalanceOfData(holder))
	if err != nil {
		return nil, fmt.Errorf("erc20 balanceOf %s: %w", p.Address, err)
	}
	return abi.DecodeUint(out), nil
}
