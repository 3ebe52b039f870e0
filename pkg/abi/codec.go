// Package abi implements Ethereum contract ABI encoding and decoding for the
// primitive and tuple types the wallet contracts use. Uses only
// golang.org/x/crypto — no go-ethereum or third-party ABI libraries.
//
// Static types occupy one 32-byte word. Dynamic types (bytes, arrays) encode
// as an offset word into a trailing data region, preceded by a length word.
// Decoding never panics on malformed input: short or garbage data degrades
// to zero values.
package abi

import (
	"math/big"

	"github.com/safekit/safed/pkg/ethtypes"
)

// WordSize is the Ethereum ABI slot size in bytes.
const WordSize = 32

// EncodeUint ABI-encodes an unsigned integer as a 32-byte big-endian word.
// Values wider than 256 bits keep only their low 256 bits (the rightmost
// 32 bytes of the big-endian representation).
func EncodeUint(n *big.Int) []byte {
	slot := make([]byte, WordSize)
	if n == nil {
		return slot
	}
	b := n.Bytes()
	if len(b) > WordSize {
		copy(slot, b[len(b)-WordSize:])
	} else {
		copy(slot[WordSize-len(b):], b)
	}
	return slot
}

// EncodeUint64 is EncodeUint for native integers.
func EncodeUint64(n uint64) []byte {
	return EncodeUint(new(big.Int).SetUint64(n))
}

// DecodeUint decodes a big-endian unsigned integer. Empty input decodes to
// zero; input longer than one word keeps the leading 32 bytes.
func DecodeUint(data []byte) *big.Int {
	if len(data) > WordSize {
		data = data[:WordSize]
	}
	return new(big.Int).SetBytes(data)
}

// EncodeAddress encodes an address as a 160-bit unsigned integer word.
func EncodeAddress(a ethtypes.Address) []byte {
	return EncodeUint(a.Big())
}

// DecodeAddress decodes a word as a 160-bit unsigned integer address.
func DecodeAddress(data []byte) ethtypes.Address {
	return ethtypes.AddressFromBig(DecodeUint(data))
}

// EncodeBool encodes true as the integer 1 and false as 0.
func EncodeBool(v bool) []byte {
	if v {
		return EncodeUint64(1)
	}
	return EncodeUint64(0)
}

// DecodeBool treats any nonzero word as true; empty input is false.
func DecodeBool(data []byte) bool {
	return DecodeUint(data).Sign() != 0
}

// EncodeBytes encodes a dynamic byte string: a length word followed by the
// data right-padded to a 32-byte boundary.
func EncodeBytes(data []byte) []byte {
	out := EncodeUint64(uint64(len(data)))
	padded := make([]byte, pad32(len(data)))
	copy(padded, data)
	return append(out, padded...)
}

// DecodeBytes decodes a dynamic byte string (length word + data). Short
// input yields the longest prefix available rather than an error.
func DecodeBytes(data []byte) []byte {
	if len(data) < WordSize {
		return nil
	}
	n := DecodeUint(data[:WordSize])
	if !n.IsInt64() {
		return nil
	}
	length := int(n.Int64())
	rest := data[WordSize:]
	if length > len(rest) {
		length = len(rest)
	}
	if length <= 0 {
		return []byte{}
	}
	return rest[:length]
}

// EncodeTupleUint encodes a static tuple of uints: plain word concatenation,
// no offset indirection.
func EncodeTupleUint(values []*big.Int) []byte {
	out := make([]byte, 0, len(values)*WordSize)
	for _, v := range values {
		out = append(out, EncodeUint(v)...)
	}
	return out
}

// DecodeTupleUint decodes count words from data. Input shorter than
// count words decodes to an empty slice.
func DecodeTupleUint(data []byte, count int) []*big.Int {
	if count <= 0 || len(data) < count*WordSize {
		return []*big.Int{}
	}
	out := make([]*big.Int, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, DecodeUint(data[i*WordSize:(i+1)*WordSize]))
	}
	return out
}

// EncodeArrayUint encodes a dynamic uint array: an offset word (fixed at 32,
// pointing just past itself), a count word, then the elements.
func EncodeArrayUint(values []*big.Int) []byte {
	out := EncodeUint64(WordSize)
	out = append(out, EncodeUint64(uint64(len(values)))...)
	return append(out, EncodeTupleUint(values)...)
}

// DecodeArrayUint decodes a dynamic uint array. Malformed input (offset or
// count out of range) decodes to an empty slice.
func DecodeArrayUint(data []byte) []*big.Int {
	if len(data) == 0 {
		return []*big.Int{}
	}
	off := DecodeUint(data)
	if !off.IsInt64() || off.Int64() >= int64(len(data)) {
		return []*big.Int{}
	}
	body := data[off.Int64():]
	if len(body) < WordSize {
		return []*big.Int{}
	}
	n := DecodeUint(body[:WordSize])
	if !n.IsInt64() {
		return []*big.Int{}
	}
	count := int(n.Int64())
	return DecodeTupleUint(body[WordSize:], count)
}

// EncodeArrayAddress encodes a dynamic address array.
func EncodeArrayAddress(addrs []ethtypes.Address) []byte {
	values := make([]*big.Int, len(addrs))
	for i, a := range addrs {
		values[i] = a.Big()
	}
	return EncodeArrayUint(values)
}

// DecodeArrayAddress decodes a dynamic address array.
func DecodeArrayAddress(data []byte) []ethtypes.Address {
	values := DecodeArrayUint(data)
	out := make([]ethtypes.Address, len(values))
	for i, v := range values {
		out[i] = ethtypes.AddressFromBig(v)
	}
	return out
}

// EncodeString encodes a dynamic UTF-8 string like bytes.
func EncodeString(s string) []byte {
	return EncodeBytes([]byte(s))
}

// DecodeString decodes a dynamic string preceded by an offset word, as
// returned by a contract call.
func DecodeString(data []byte) string {
	if len(data) < WordSize {
		return ""
	}
	off := DecodeUint(data[:WordSize])
	if !off.IsInt64() || off.Int64() >= int64(len(data)) {
		return ""
	}
	return string(DecodeBytes(data[off.Int64():]))
}

func pad32(n int) int {
	return (n + WordSize - 1) &^ (WordSize - 1)
}
