// Package node reads chain state from an Ethereum JSON-RPC endpoint:
// balances, contract calls, receipts and block headers. It is the
// read-only counterpart of the relay; all writes go through the relay.
package node

import (
	"context"
	"math/big"

	"github.com/safekit/safed/pkg/ethtypes"
)

// Service is the chain-read collaborator contract. TransactionReceipt
// returns (nil, nil) while the transaction is not mined yet; callers poll
// again on the next tick.
type Service interface {
	Balance(ctx context.Context, address ethtypes.Address) (*big.Int, error)
	Call(ctx context.Context, to ethtypes.Address, data []byte) ([]byte, error)
	TransactionReceipt(ctx context.Context, hash ethtypes.TransactionHash) (*ethtypes.Receipt, error)
	BlockByHash(ctx context.Context, hash string) (*ethtypes.Block, error)
}
