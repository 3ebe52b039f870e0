package contracts

import (
	"bytes"
	"math/big"

	"github.com/safekit/safed/pkg/abi"
	"github.com/safekit/safed/pkg/ethtypes"
)

// multiSendSignature is shared by both deployed contract versions; only the
// layout of the inner transactions blob differs.
const multiSendSignature = "multiSend(bytes)"

// MultiSendTx is one entry of an atomic batch executed by the MultiSend
// contract via delegatecall.
type MultiSendTx struct {
	Operation ethtypes.Operation
	To        ethtypes.Address
	Value     *big.Int
	Data      []byte
}

// MultiSendProxy encodes and decodes multiSend(bytes) batches. Version 1
// uses standard word-aligned ABI encoding per entry; version 2 uses the
// non-standard packed mode. Old transactions may carry either layout, so
// both stay supported and the version is chosen per contract address.
type MultiSendProxy struct {
	Address ethtypes.Address
	Version int
}

// NewMultiSendProxy wraps the MultiSend contract at address with the blob
// layout of the given version. Unknown versions use the latest (packed)
// layout.
func NewMultiSendProxy(address ethtypes.Address, version int) *MultiSendProxy {
	return &MultiSendProxy{Address: address, Version: version}
}

// MultiSend builds multiSend(bytes) calldata for the batch.
func (p *MultiSendProxy) MultiSend(txs []MultiSendTx) []byte {
	var blob []byte
	if p.Version == 1 {
		blob = encodeEntriesV1(txs)
	} else {
		blob = encodeEntriesV2(txs)
	}
	return abi.Invocation(multiSendSignature,
		abi.EncodeUint64(abi.WordSize), abi.EncodeBytes(blob))
}

// DecodeMultiSendArguments parses multiSend calldata back into its batch
// entries. Returns nil when the selector does not match or the blob does not
// parse cleanly; an empty batch decodes to an empty non-nil slice.
func (p *MultiSendProxy) DecodeMultiSendArguments(data []byte) []MultiSendTx {
	selector := abi.Selector(multiSendSignature)
	if !bytes.HasPrefix(data, selector) {
		return nil
	}
	args := data[len(selector):]
	if len(args) < abi.WordSize {
		return nil
	}
	blob := abi.DecodeBytes(args[abi.WordSize:])
	if blob == nil {
		return nil
	}
	if p.Version == 1 {
		return decodeEntriesV1(blob)
	}
	return decodeEntriesV2(blob)
}

// Version 1 entry layout (standard ABI tuple, word-aligned):
// operation word, to word, value word, data offset word (always 0x80),
// data length word, data right-padded to 32 bytes.
func encodeEntriesV1(txs []MultiSendTx) []byte {
	var out []byte
	for _, tx := range txs {
		out = append(out, abi.EncodeUint64(uint64(tx.Operation))...)
		out = append(out, abi.EncodeAddress(tx.To)...)
		out = append(out, abi.EncodeUint(tx.Value)...)
		out = append(out, abi.EncodeUint64(4*abi.WordSize)...)
		out = append(out, abi.EncodeBytes(tx.Data)...)
	}
	return out
}

func decodeEntriesV1(blob []byte) []MultiSendTx {
	txs := []MultiSendTx{}
	for len(blob) > 0 {
		if len(blob) < 5*abi.WordSize {
			return nil
		}
		op, ok := operationFromInt(abi.DecodeUint(blob[:abi.WordSize]))
		if !ok {
			return nil
		}
		to := abi.DecodeAddress(blob[abi.WordSize : 2*abi.WordSize])
		value := abi.DecodeUint(blob[2*abi.WordSize : 3*abi.WordSize])
		length := abi.DecodeUint(blob[4*abi.WordSize : 5*abi.WordSize])
		if !length.IsInt64() {
			return nil
		}
		n := int(length.Int64())
		padded := (n + abi.WordSize - 1) &^ (abi.WordSize - 1)
		rest := blob[5*abi.WordSize:]
		if padded > len(rest) {
			return nil
		}
		txs = append(txs, MultiSendTx{Operation: op, To: to, Value: value, Data: entryData(rest, n)})
		blob = rest[padded:]
	}
	return txs
}

// Version 2 entry layout (packed): operation 1 byte, to 20 bytes, value 32
// bytes, data length 32 bytes, raw data with no padding.
func encodeEntriesV2(txs []MultiSendTx) []byte {
	var out []byte
	for _, tx := range txs {
		out = append(out, byte(tx.Operation))
		out = append(out, tx.To.Bytes()...)
		out = append(out, abi.EncodeUint(tx.Value)...)
		out = append(out, abi.EncodeUint64(uint64(len(tx.Data)))...)
		out = append(out, tx.Data...)
	}
	return out
}

func decodeEntriesV2(blob []byte) []MultiSendTx {
	const headerSize = 1 + ethtypes.AddressLength + 2*abi.WordSize
	txs := []MultiSendTx{}
	for len(blob) > 0 {
		if len(blob) < headerSize {
			return nil
		}
		op, ok := operationFromInt(big.NewInt(int64(blob[0])))
		if !ok {
			return nil
		}
		to := ethtypes.AddressFromBytes(blob[1 : 1+ethtypes.AddressLength])
		rest := blob[1+ethtypes.AddressLength:]
		value := abi.DecodeUint(rest[:abi.WordSize])
		length := abi.DecodeUint(rest[abi.WordSize : 2*abi.WordSize])
		if !length.IsInt64() {
			return nil
		}
		n := int(length.Int64())
		rest = rest[2*abi.WordSize:]
		if n > len(rest) {
			return nil
		}
		txs = append(txs, MultiSendTx{Operation: op, To: to, Value: value, Data: entryData(rest, n)})
		blob = rest[n:]
	}
	return txs
}

func entryData(rest []byte, n int) []byte {
	if n == 0 {
		return nil
	}
	return rest[:n:n]
}

func operationFromInt(n *big.Int) (ethtypes.Operation, bool) {
	if !n.IsInt64() {
		return 0, false
	}
	switch op := ethtypes.Operation(n.Int64()); op {
	case ethtypes.OperationCall, ethtypes.OperationDelegateCall, ethtypes.OperationCreate:
		return op, true
	}
	return 0, false
}
