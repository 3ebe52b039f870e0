package contracts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safekit/safed/pkg/abi"
	"github.com/safekit/safed/pkg/ethtypes"
)

// ENS resolution errors. A resolver that exists but does not advertise the
// needed interface via supportsInterface is a hard error, not a zero result.
var (
	ErrResolverNotFound    = errors.New("ens: no resolver set for node")
	ErrAddressNotSupported = errors.New("ens: resolver does not support address resolution")
	ErrNameNotSupported    = errors.New("ens: resolver does not support reverse resolution")
	ErrAddressNotFound     = errors.New("ens: no address record for node")
)

// Interface identifiers checked before calling into a resolver.
var (
	addrInterfaceID = abi.Selector("addr(bytes32)")
	nameInterfaceID = abi.Selector("name(bytes32)")
)

// Namehash computes the ENS node hash of a dot-separated name, processing
// labels right to left. The empty name hashes to 32 zero bytes.
func Namehash(name string) []byte {
	node := make([]byte, abi.WordSize)
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		node = abi.Keccak256(node, abi.Keccak256([]byte(labels[i])))
	}
	return node
}

// ENSRegistryProxy wraps the ENS registry contract.
type ENSRegistryProxy struct {
	Address ethtypes.Address
	caller  Caller
}

// NewENSRegistryProxy wraps the registry at address.
func NewENSRegistryProxy(address ethtypes.Address, caller Caller) *ENSRegistryProxy {
	return &ENSRegistryProxy{Address: address, caller: caller}
}

// Resolver looks up the resolver contract responsible for node.
func (p *ENSRegistryProxy) Resolver(ctx context.Context, node []byte) (ethtypes.Address, error) {
	out, err := p.caller.Call(ctx, p.Address, abi.Invocation("resolver(bytes32)", leftWord(node)))
	if err != nil {
		return ethtypes.ZeroAddress, fmt.Errorf("ens resolver lookup: %w", err)
	}
	addr := abi.DecodeAddress(out)
	if addr.IsZero() {
		return ethtypes.ZeroAddress, ErrResolverNotFound
	}
	return addr, nil
}

// ENSResolverProxy wraps an ENS resolver contract.
type ENSResolverProxy struct {
	Address ethtypes.Address
	caller  Caller
}

// NewENSResolverProxy wraps the resolver at address.
func NewENSResolverProxy(address ethtypes.Address, caller Caller) *ENSResolverProxy {
	return &ENSResolverProxy{Address: address, caller: caller}
}

// SupportsInterface checks ERC-165 support for a 4-byte interface id.
func (p *ENSResolverProxy) SupportsInterface(ctx context.Context, interfaceID []byte) (bool, error) {
	out, err := p.caller.Call(ctx, p.Address,
		abi.Invocation("supportsInterface(bytes4)", rightPadWord(interfaceID)))
	if err != nil {
		return false, fmt.Errorf("ens supportsInterface: %w", err)
	}
	return abi.DecodeBool(out), nil
}

// ResolveAddress forward-resolves node to an address, guarded by an
// interface-support check.
func (p *ENSResolverProxy) ResolveAddress(ctx context.Context, node []byte) (ethtypes.Address, error) {
	ok, err := p.SupportsInterface(ctx, addrInterfaceID)
	if err != nil {
		return ethtypes.ZeroAddress, err
	}
	if !ok {
		return ethtypes.ZeroAddress, ErrAddressNotSupported
	}
	out, err := p.caller.Call(ctx, p.Address, abi.Invocation("addr(bytes32)", leftWord(node)))
	if err != nil {
		return ethtypes.ZeroAddress, fmt.Errorf("ens addr: %w", err)
	}
	addr := abi.DecodeAddress(out)
	if addr.IsZero() {
		return ethtypes.ZeroAddress, ErrAddressNotFound
	}
	return addr, nil
}

// ResolveName reverse-resolves node to a name. An empty string means no
// record is set.
func (p *ENSResolverProxy) ResolveName(ctx context.Context, node []byte) (string, error) {
	ok, err := p.SupportsInterface(ctx, nameInterfaceID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNameNotSupported
	}
	out, err := p.caller.Call(ctx, p.Address, abi.Invocation("name(bytes32)", leftWord(node)))
	if err != nil {
		return "", fmt.Errorf("ens name: %w", err)
	}
	return abi.DecodeString(out), nil
}

// leftWord pads a bytes32 argument on the left (numeric alignment).
func leftWord(b []byte) []byte {
	out := make([]byte, abi.WordSize)
	if len(b) > abi.WordSize {
		b = b[len(b)-abi.WordSize:]
	}
	copy(out[abi.WordSize-len(b):], b)
	return out
}

// rightPadWord pads a bytesN argument on the right (byte-string alignment).
func rightPadWord(b []byte) []byte {
	out := make([]byte, abi.WordSize)
	copy(out, b)
	return out
}
