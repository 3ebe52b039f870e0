// Package keystore owns the device's externally owned accounts: key
// generation, deterministic derivation for paper wallets, ECDSA signing
// with address recovery, and encrypted persistence under a passphrase.
package keystore

import (
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/safekit/safed/pkg/abi"
	"github.com/safekit/safed/pkg/ethtypes"
)

// ExternallyOwnedAccount is one secp256k1 keypair under local control.
type ExternallyOwnedAccount struct {
	Address    ethtypes.Address `cbor:"1,keyasint"`
	PrivateKey []byte           `cbor:"2,keyasint"`
	// DerivedFrom is set on derived accounts and names the parent address.
	DerivedFrom ethtypes.Address `cbor:"3,keyasint,omitempty"`
}

// Signature is an Ethereum-style recoverable ECDSA signature.
type Signature struct {
	R *big.Int
	S *big.Int
	V int
}

// GenerateAccount creates a fresh random account.
func GenerateAccount() (*ExternallyOwnedAccount, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keystore: generate key: %w", err)
	}
	return accountFromKey(key, ""), nil
}

// DeriveAccount derives a deterministic child account from parent. The
// same parent and index always yield the same child, so a recovery phrase
// holder can re-derive the second recovery owner.
func DeriveAccount(parent *ExternallyOwnedAccount, index uint32) (*ExternallyOwnedAccount, error) {
	seed := abi.Keccak256(parent.PrivateKey, abi.EncodeUint64(uint64(index)))
	scalar := new(big.Int).Mod(new(big.Int).SetBytes(seed), secp256k1.S256().N)
	if scalar.Sign() == 0 {
		return nil, fmt.Errorf("keystore: derivation produced zero scalar")
	}
	key := secp256k1.PrivKeyFromBytes(scalar.FillBytes(make([]byte, 32)))
	return accountFromKey(key, parent.Address), nil
}

func accountFromKey(key *secp256k1.PrivateKey, parent ethtypes.Address) *ExternallyOwnedAccount {
	return &ExternallyOwnedAccount{
		Address:     addressOf(key.PubKey()),
		PrivateKey:  key.Serialize(),
		DerivedFrom: parent,
	}
}

func addressOf(pub *secp256k1.PublicKey) ethtypes.Address {
	digest := abi.Keccak256(pub.SerializeUncompressed()[1:])
	return ethtypes.AddressFromBytes(digest[12:])
}

// Sign produces a recoverable signature over a 32-byte hash.
func (a *ExternallyOwnedAccount) Sign(hash []byte) (Signature, error) {
	if len(hash) != 32 {
		return Signature{}, fmt.Errorf("keystore: sign expects a 32-byte hash, got %d", len(hash))
	}
	key := secp256k1.PrivKeyFromBytes(a.PrivateKey)
	compact := secpecdsa.SignCompact(key, hash, false)
	// Compact form is [recovery+27, r, s]; Ethereum wants v last.
	return Signature{
		R: new(big.Int).SetBytes(compact[1:33]),
		S: new(big.Int).SetBytes(compact[33:65]),
		V: int(compact[0]),
	}, nil
}

// RecoverAddress returns the address whose key produced the signature.
func RecoverAddress(hash []byte, sig Signature) (ethtypes.Address, error) {
	if len(hash) != 32 {
		return "", fmt.Errorf("keystore: recover expects a 32-byte hash, got %d", len(hash))
	}
	compact := make([]byte, 65)
	compact[0] = byte(sig.V)
	sig.R.FillBytes(compact[1:33])
	sig.S.FillBytes(compact[33:65])
	pub, _, err := secpecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return "", fmt.Errorf("keystore: recover signer: %w", err)
	}
	return addressOf(pub), nil
}
