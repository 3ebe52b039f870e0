package wallet

import "errors"

// ErrWalletNotInPortfolio is returned when selecting a wallet the portfolio
// does not hold.
var ErrWalletNotInPortfolio = errors.New("wallet: not part of portfolio")

// PortfolioID identifies the portfolio singleton.
type PortfolioID string

// Portfolio holds the ordered wallet list and the current selection. Exactly
// one portfolio exists per installation.
type Portfolio struct {
	ID       PortfolioID `cbor:"1,keyasint"`
	Wallets  []ID        `cbor:"2,keyasint"`
	Selected ID          `cbor:"3,keyasint,omitempty"`
}

// NewPortfolio creates an empty portfolio.
func NewPortfolio(id PortfolioID) *Portfolio {
	return &Portfolio{ID: id}
}

// Contains reports whether the portfolio holds walletID.
func (p *Portfolio) Contains(walletID ID) bool {
	for _, id := range p.Wallets {
		if id == walletID {
			return true
		}
	}
	return false
}

// AddWallet appends walletID; the first wallet added becomes selected.
// Adding an already-held wallet is a no-op.
func (p *Portfolio) AddWallet(walletID ID) {
	if p.Contains(walletID) {
		return
	}
	p.Wallets = append(p.Wallets, walletID)
	if p.Selected == "" {
		p.Selected = walletID
	}
}

// RemoveWallet drops walletID, clearing the selection if it pointed there.
func (p *Portfolio) RemoveWallet(walletID ID) {
	for i, id := range p.Wallets {
		if id == walletID {
			p.Wallets = append(p.Wallets[:i], p.Wallets[i+1:]...)
			break
		}
	}
	if p.Selected == walletID {
		p.Selected = ""
		if len(p.Wallets) > 0 {
			p.Selected = p.Wallets[0]
		}
	}
}

// SelectWallet marks walletID as the active wallet.
func (p *Portfolio) SelectWallet(walletID ID) error {
	if !p.Contains(walletID) {
		return ErrWalletNotInPortfolio
	}
	p.Selected = walletID
	return nil
}

// SelectedWallet returns the active wallet ID, or false when none is
// selected.
func (p *Portfolio) SelectedWallet() (ID, bool) {
	if p.Selected == "" {
		return "", false
	}
	return p.Selected, true
}
