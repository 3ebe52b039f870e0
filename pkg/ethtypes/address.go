// Package ethtypes holds the Ethereum value types shared across the wallet
// domain: addresses, tokens, amounts, transaction hashes and receipts.
package ethtypes

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// AddressLength is the number of bytes in an Ethereum address.
const AddressLength = 20

// Address is a 20-byte Ethereum address. The canonical form is lowercase hex
// with a 0x prefix; comparison is case-insensitive.
type Address string

// ZeroAddress is the distinguished sentinel address (all zero bytes). It is
// also used as the token address of the native currency (Ether).
const ZeroAddress = Address("0x0000000000000000000000000000000000000000")

// NewAddress normalizes a hex string into canonical address form. Input may
// or may not carry a 0x prefix and may be shorter than 20 bytes, in which
// case it is left-padded with zeros.
func NewAddress(s string) Address {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.ToLower(s)
	if len(s) < 2*AddressLength {
		s = strings.Repeat("0", 2*AddressLength-len(s)) + s
	}
	if len(s) > 2*AddressLength {
		s = s[len(s)-2*AddressLength:]
	}
	return Address("0x" + s)
}

// AddressFromBytes builds an address from raw bytes, keeping the rightmost
// 20 bytes and left-padding short input.
func AddressFromBytes(b []byte) Address {
	buf := make([]byte, AddressLength)
	if len(b) > AddressLength {
		copy(buf, b[len(b)-AddressLength:])
	} else {
		copy(buf[AddressLength-len(b):], b)
	}
	return Address("0x" + hex.EncodeToString(buf))
}

// AddressFromBig interprets a big integer as a 160-bit unsigned value.
func AddressFromBig(n *big.Int) Address {
	if n == nil {
		return ZeroAddress
	}
	return AddressFromBytes(n.Bytes())
}

func (a Address) String() string { return string(a) }

// Bytes returns the 20-byte binary form of the address.
func (a Address) Bytes() []byte {
	s := strings.TrimPrefix(strings.TrimPrefix(string(a), "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return make([]byte, AddressLength)
	}
	buf := make([]byte, AddressLength)
	if len(b) > AddressLength {
		copy(buf, b[len(b)-AddressLength:])
	} else {
		copy(buf[AddressLength-len(b):], b)
	}
	return buf
}

// Big returns the address as a 160-bit unsigned integer.
func (a Address) Big() *big.Int {
	return new(big.Int).SetBytes(a.Bytes())
}

// IsZero reports whether the address is the zero sentinel.
func (a Address) IsZero() bool {
	return a.Big().Sign() == 0
}

// Equals compares two addresses case-insensitively.
func (a Address) Equals(other Address) bool {
	return strings.EqualFold(string(NewAddress(string(a))), string(NewAddress(string(other))))
}
