package keystore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/repo"
)

var (
	// ErrLocked is returned when keys are accessed before Unlock.
	ErrLocked = errors.New("keystore: locked")
	// ErrWrongPassphrase is returned when Unlock cannot decrypt the canary.
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase")
)

const (
	saltKey   = "keystore/salt"
	canaryKey = "keystore/canary"
	keyPrefix = "keystore/keys/"
)

var canary = []byte("safed-keystore-v1")

// KeyStore persists externally owned accounts encrypted at rest. Private
// keys only exist in plaintext in memory, and only after Unlock.
type KeyStore struct {
	store     *repo.KVStore
	log       zerolog.Logger
	masterKey []byte
}

func NewKeyStore(store *repo.KVStore, log zerolog.Logger) *KeyStore {
	return &KeyStore{
		store: store,
		log:   log.With().Str("component", "keystore").Logger(),
	}
}

// Unlock derives the master key from the passphrase. The first unlock
// initializes the salt and canary; later unlocks verify the passphrase
// against the canary before accepting it.
func (k *KeyStore) Unlock(passphrase []byte) error {
	salt, err := k.store.Get(saltKey)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return k.initialize(passphrase)
	case err != nil:
		return fmt.Errorf("keystore: read salt: %w", err)
	}

	masterKey, err := deriveMasterKey(passphrase, salt)
	if err != nil {
		return err
	}
	sealed, err := k.store.Get(canaryKey)
	if err != nil {
		return fmt.Errorf("keystore: read canary: %w", err)
	}
	plain, err := open(sealed, masterKey)
	if err != nil || string(plain) != string(canary) {
		return ErrWrongPassphrase
	}
	k.masterKey = masterKey
	return nil
}

func (k *KeyStore) initialize(passphrase []byte) error {
	salt := make([]byte, saltSize)
	if err := randomize(salt); err != nil {
		return err
	}
	masterKey, err := deriveMasterKey(passphrase, salt)
	if err != nil {
		return err
	}
	sealed, err := seal(canary, masterKey)
	if err != nil {
		return err
	}
	if err := k.store.Put(saltKey, salt); err != nil {
		return fmt.Errorf("keystore: write salt: %w", err)
	}
	if err := k.store.Put(canaryKey, sealed); err != nil {
		return fmt.Errorf("keystore: write canary: %w", err)
	}
	k.masterKey = masterKey
	k.log.Info().Msg("keystore initialized")
	return nil
}

// IsUnlocked reports whether the master key is available.
func (k *KeyStore) IsUnlocked() bool { return k.masterKey != nil }

// Save encrypts and persists an account.
func (k *KeyStore) Save(account *ExternallyOwnedAccount) error {
	if !k.IsUnlocked() {
		return ErrLocked
	}
	plain, err := cbor.Marshal(account)
	if err != nil {
		return fmt.Errorf("keystore: encode account: %w", err)
	}
	sealed, err := seal(plain, k.masterKey)
	if err != nil {
		return err
	}
	return k.store.Put(keyPrefix+account.Address.String(), sealed)
}

// Find loads and decrypts the account for an address. Returns
// repo.ErrNotFound when the keystore does not hold the key.
func (k *KeyStore) Find(address ethtypes.Address) (*ExternallyOwnedAccount, error) {
	if !k.IsUnlocked() {
		return nil, ErrLocked
	}
	sealed, err := k.store.Get(keyPrefix + address.String())
	if err != nil {
		return nil, err
	}
	plain, err := open(sealed, k.masterKey)
	if err != nil {
		return nil, err
	}
	var account ExternallyOwnedAccount
	if err := cbor.Unmarshal(plain, &account); err != nil {
		return nil, fmt.Errorf("keystore: decode account: %w", err)
	}
	return &account, nil
}

// Remove deletes a stored key. Used to dispose of paper wallet keys once
// the recovery phrase has been confirmed by the user.
func (k *KeyStore) Remove(address ethtypes.Address) error {
	k.log.Info().Str("address", address.String()).Msg("removing key")
	return k.store.Delete(keyPrefix + address.String())
}

// Addresses lists the addresses of all stored accounts.
func (k *KeyStore) Addresses() ([]ethtypes.Address, error) {
	keys, err := k.store.KeysWithPrefix(keyPrefix)
	if err != nil {
		return nil, err
	}
	addresses := make([]ethtypes.Address, 0, len(keys))
	for _, key := range keys {
		addresses = append(addresses, ethtypes.Address(strings.TrimPrefix(key, keyPrefix)))
	}
	return addresses, nil
}
