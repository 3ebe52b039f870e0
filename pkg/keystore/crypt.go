package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters per the 2017 recommended interactive profile.
const (
	scryptN       = 1 << 15
	scryptR       = 8
	scryptP       = 1
	saltSize      = 16
	masterKeySize = 32
)

// deriveMasterKey stretches a passphrase into an AES-256 key.
func deriveMasterKey(passphrase, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, masterKeySize)
	if err != nil {
		return nil, fmt.Errorf("keystore: derive master key: %w", err)
	}
	return key, nil
}

// seal encrypts plain with AES-GCM and returns nonce||ciphertext.
func seal(plain, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keystore: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// open decrypts a nonce||ciphertext blob produced by seal.
func open(sealed, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("keystore: sealed blob too short")
	}
	plain, err := aead.Open(nil, sealed[:aead.NonceSize()], sealed[aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("keystore: decrypt: %w", err)
	}
	return plain, nil
}

// randomize fills buf from the system entropy source.
func randomize(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("keystore: entropy: %w", err)
	}
	return nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
