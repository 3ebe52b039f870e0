// Package account models per-wallet token balances and the user-curated
// token list.
package account

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/wallet"
)

// ID identifies a token account within a wallet, formatted as
// "<tokenID>:<walletID>".
type ID string

// NewID builds an account identifier from its parts.
func NewID(tokenID ethtypes.TokenID, walletID wallet.ID) ID {
	return ID(fmt.Sprintf("%s:%s", tokenID, walletID))
}

// TokenID extracts the token part of the identifier.
func (id ID) TokenID() ethtypes.TokenID {
	token, _, _ := strings.Cut(string(id), ":")
	return ethtypes.TokenID(token)
}

// WalletID extracts the wallet part of the identifier.
func (id ID) WalletID() wallet.ID {
	_, w, _ := strings.Cut(string(id), ":")
	return wallet.ID(w)
}

// Account is a wallet's balance of one token. A nil balance means the
// balance was never fetched, which is distinct from an observed zero.
type Account struct {
	ID      ID       `cbor:"1,keyasint"`
	Balance *big.Int `cbor:"2,keyasint,omitempty"`
}

// New creates an account with no balance data yet.
func New(tokenID ethtypes.TokenID, walletID wallet.ID) *Account {
	return &Account{ID: NewID(tokenID, walletID)}
}

// UpdateBalance sets the observed balance.
func (a *Account) UpdateBalance(balance *big.Int) {
	a.Balance = balance
}

// HasBalance reports whether a balance was ever observed.
func (a *Account) HasBalance() bool {
	return a.Balance != nil
}
