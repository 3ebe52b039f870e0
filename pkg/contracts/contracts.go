// Package contracts provides typed call-data builders and parsers for the
// smart contracts the wallet interacts with: ERC20 tokens, the Safe owner
// manager and setup initializer, MultiSend batching and ENS resolution.
// Proxies compose byte layouts from pkg/abi; read-only calls go through a
// Caller so the node transport stays pluggable.
package contracts

import (
	"context"

	"github.com/safekit/safed/pkg/ethtypes"
)

// Caller executes a read-only contract call (eth_call) and returns the raw
// return data.
type Caller interface {
	Call(ctx context.Context, to ethtypes.Address, data []byte) ([]byte, error)
}
