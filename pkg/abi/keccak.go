package abi

import (
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes data with legacy Keccak-256 (the Ethereum variant,
// pre-NIST padding).
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Selector returns the 4-byte method selector for a canonical signature
// such as "transfer(address,uint256)".
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// Invocation builds calldata: the method selector followed by the
// already-encoded arguments in order.
func Invocation(signature string, args ...[]byte) []byte {
	out := Selector(signature)
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}
