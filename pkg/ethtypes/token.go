package ethtypes

import "math/big"

// TokenID identifies a token by its contract address. The native currency
// uses the zero address.
type TokenID string

// Token is an immutable description of an ERC20 token (or Ether).
type Token struct {
	Code     string  `json:"symbol" cbor:"1,keyasint"`
	Name     string  `json:"name" cbor:"2,keyasint"`
	Decimals int     `json:"decimals" cbor:"3,keyasint"`
	Address  Address `json:"address" cbor:"4,keyasint"`
	LogoURL  string  `json:"logoUri,omitempty" cbor:"5,keyasint,omitempty"`
}

// Ether is the native currency pseudo-token.
var Ether = Token{
	Code:     "ETH",
	Name:     "Ether",
	Decimals: 18,
	Address:  ZeroAddress,
}

// ID returns the token identifier (its contract address).
func (t Token) ID() TokenID { return TokenID(t.Address) }

// IsEther reports whether the token is the native currency.
func (t Token) IsEther() bool { return t.Address.IsZero() }

// TokenAmount is an amount denominated in a specific token's smallest unit.
type TokenAmount struct {
	Amount *big.Int `cbor:"1,keyasint"`
	Token  Token    `cbor:"2,keyasint"`
}

// NewTokenAmount pairs an amount with its token.
func NewTokenAmount(amount *big.Int, token Token) TokenAmount {
	return TokenAmount{Amount: amount, Token: token}
}

// EtherAmount returns an amount of Ether in wei.
func EtherAmount(wei int64) TokenAmount {
	return TokenAmount{Amount: big.NewInt(wei), Token: Ether}
}

// Equals compares token amounts by value and token address.
func (a TokenAmount) Equals(b TokenAmount) bool {
	if (a.Amount == nil) != (b.Amount == nil) {
		return false
	}
	if a.Amount != nil && a.Amount.Cmp(b.Amount) != 0 {
		return false
	}
	return a.Token.Address.Equals(b.Token.Address)
}
