package account

import "github.com/safekit/safed/pkg/ethtypes"

// TokenListItemStatus is the user-controlled standing of a token in the
// curated list.
type TokenListItemStatus string

const (
	// TokenRegular tracks the remote list: present while the remote list
	// carries it, dropped when it disappears.
	TokenRegular TokenListItemStatus = "regular"
	// TokenWhitelisted is pinned by the user: balances are shown and the
	// item survives remote-list removal.
	TokenWhitelisted TokenListItemStatus = "whitelisted"
	// TokenBlacklisted is hidden by the user.
	TokenBlacklisted TokenListItemStatus = "blacklisted"
)

// TokenListItem is token metadata plus the user's standing override and
// sorting position. Whitelisted and blacklisted items are sticky across
// remote refreshes: the user's choice wins over the remote list.
type TokenListItem struct {
	Token                ethtypes.Token      `cbor:"1,keyasint"`
	Status               TokenListItemStatus `cbor:"2,keyasint"`
	CanPayTransactionFee bool                `cbor:"3,keyasint"`
	SortingID            *int                `cbor:"4,keyasint,omitempty"`
}

// NewTokenListItem pairs a token with its list standing.
func NewTokenListItem(token ethtypes.Token, status TokenListItemStatus, canPayFee bool) *TokenListItem {
	return &TokenListItem{Token: token, Status: status, CanPayTransactionFee: canPayFee}
}

// ID returns the token identifier the item is stored under.
func (i *TokenListItem) ID() ethtypes.TokenID { return i.Token.ID() }

// Whitelist pins the token.
func (i *TokenListItem) Whitelist() { i.Status = TokenWhitelisted }

// Blacklist hides the token.
func (i *TokenListItem) Blacklist() { i.Status = TokenBlacklisted }

// UpdateSortingID moves the item in the user's ordering.
func (i *TokenListItem) UpdateSortingID(id *int) { i.SortingID = id }
