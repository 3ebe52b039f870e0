package contracts

import (
	"bytes"
	"math/big"

	"github.com/safekit/safed/pkg/abi"
	"github.com/safekit/safed/pkg/ethtypes"
)

const setupSignature = "setup(address[],uint256,address,bytes,address,uint256,address)"

// SafeSetup holds the arguments of the Safe's setup() initializer — the
// constructor-equivalent call executed when the proxy is deployed.
type SafeSetup struct {
	Owners          []ethtypes.Address
	Threshold       int
	To              ethtypes.Address
	Data            []byte
	PaymentToken    ethtypes.Address
	Payment         *big.Int
	PaymentReceiver ethtypes.Address
}

// SafeProxy encodes and decodes the Safe setup() call. The byte layout must
// match the relay's encoder bit-for-bit, since the setup data feeds both the
// deployment transaction and the CREATE2 address derivation.
type SafeProxy struct{}

// EncodeSetup builds setup(...) calldata. Empty dynamic data appends one
// extra zero word to match the relay's Web3Py encoder
// (https://github.com/gnosis/bivrost-kotlin/issues/49).
func (SafeProxy) EncodeSetup(s SafeSetup) []byte {
	ownersOffset := 7 * abi.WordSize
	dataOffset := ownersOffset + abi.WordSize + len(s.Owners)*abi.WordSize

	args := make([]byte, 0, dataOffset+3*abi.WordSize)
	args = append(args, abi.EncodeUint64(uint64(ownersOffset))...)
	args = append(args, abi.EncodeUint64(uint64(s.Threshold))...)
	args = append(args, abi.EncodeAddress(s.To)...)
	args = append(args, abi.EncodeUint64(uint64(dataOffset))...)
	args = append(args, abi.EncodeAddress(s.PaymentToken)...)
	args = append(args, abi.EncodeUint(s.Payment)...)
	args = append(args, abi.EncodeAddress(s.PaymentReceiver)...)
	args = append(args, abi.EncodeUint64(uint64(len(s.Owners)))...)
	for _, owner := range s.Owners {
		args = append(args, abi.EncodeAddress(owner)...)
	}
	args = append(args, abi.EncodeBytes(s.Data)...)
	if len(s.Data) == 0 {
		args = append(args, abi.EncodeUint64(0)...)
	}
	return abi.Invocation(setupSignature, args)
}

// DecodeSetup parses setup(...) calldata. Returns nil when the selector does
// not match or the offsets point outside the input.
func (SafeProxy) DecodeSetup(data []byte) *SafeSetup {
	selector := abi.Selector(setupSignature)
	if !bytes.HasPrefix(data, selector) {
		return nil
	}
	args := data[len(selector):]
	if len(args) < 7*abi.WordSize {
		return nil
	}

	word := func(i int) []byte { return args[i*abi.WordSize : (i+1)*abi.WordSize] }
	ownersOffset := abi.DecodeUint(word(0))
	threshold := abi.DecodeUint(word(1))
	dataOffset := abi.DecodeUint(word(3))
	if !ownersOffset.IsInt64() || !dataOffset.IsInt64() || !threshold.IsInt64() {
		return nil
	}

	setup := &SafeSetup{
		Threshold:       int(threshold.Int64()),
		To:              abi.DecodeAddress(word(2)),
		PaymentToken:    abi.DecodeAddress(word(4)),
		Payment:         abi.DecodeUint(word(5)),
		PaymentReceiver: abi.DecodeAddress(word(6)),
	}

	if ownersOffset.Int64() >= int64(len(args)) {
		return nil
	}
	ownersData := args[ownersOffset.Int64():]
	if len(ownersData) < abi.WordSize {
		return nil
	}
	count := abi.DecodeUint(ownersData[:abi.WordSize])
	if !count.IsInt64() || int64(len(ownersData)-abi.WordSize) < count.Int64()*abi.WordSize {
		return nil
	}
	for i := int64(0); i < count.Int64(); i++ {
		start := abi.WordSize + int(i)*abi.WordSize
		setup.Owners = append(setup.Owners, abi.DecodeAddress(ownersData[start:start+abi.WordSize]))
	}

	if dataOffset.Int64() >= int64(len(args)) {
		return nil
	}
	if d := abi.DecodeBytes(args[dataOffset.Int64():]); len(d) > 0 {
		setup.Data = d
	}
	return setup
}

// Create2Address derives the deployed proxy address per EIP-1014:
// keccak(0xff ++ factory ++ keccak(keccak(setupData) ++ saltNonce) ++
// keccak(deploymentCode)), rightmost 20 bytes.
func Create2Address(factory ethtypes.Address, setupData []byte, saltNonce *big.Int, deploymentCode []byte) ethtypes.Address {
	salt := abi.Keccak256(abi.Keccak256(setupData), abi.EncodeUint(saltNonce))
	preimage := make([]byte, 0, 1+ethtypes.AddressLength+2*abi.WordSize)
	preimage = append(preimage, 0xff)
	preimage = append(preimage, factory.Bytes()...)
	preimage = append(preimage, salt...)
	preimage = append(preimage, abi.Keccak256(deploymentCode)...)
	return ethtypes.AddressFromBytes(abi.Keccak256(preimage)[12:])
}
