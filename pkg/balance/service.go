// Package balance keeps the token accounts of the selected wallet in sync
// with the chain: Ether via the node, ERC20 balances via the token
// contracts.
package balance

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/safekit/safed/pkg/account"
	"github.com/safekit/safed/pkg/contracts"
	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/eventbus"
	"github.com/safekit/safed/pkg/node"
	"github.com/safekit/safed/pkg/wallet"
)

// EventAccountsBalancesUpdated fires once per completed sync run, not per
// account.
const EventAccountsBalancesUpdated = "account.balances_updated"

// AccountsBalancesUpdated signals that account balances changed.
type AccountsBalancesUpdated struct {
	WalletID wallet.ID
}

func (AccountsBalancesUpdated) EventType() string { return EventAccountsBalancesUpdated }

// AccountRepository is the persistence the service needs.
type AccountRepository interface {
	Find(id account.ID) (*account.Account, error)
	Save(a *account.Account) error
}

// TokenListRepository reads the curated token list.
type TokenListRepository interface {
	All() ([]*account.TokenListItem, error)
}

// PortfolioRepository resolves the active portfolio.
type PortfolioRepository interface {
	Find(id wallet.PortfolioID) (*wallet.Portfolio, error)
}

// WalletRepository resolves wallet addresses.
type WalletRepository interface {
	Find(id wallet.ID) (*wallet.Wallet, error)
}

// Service syncs account balances for the selected wallet.
type Service struct {
	portfolioID wallet.PortfolioID
	portfolios  PortfolioRepository
	wallets     WalletRepository
	accounts    AccountRepository
	tokens      TokenListRepository
	node        node.Service
	bus         *eventbus.Bus
	log         zerolog.Logger
}

func NewService(
	portfolioID wallet.PortfolioID,
	portfolios PortfolioRepository,
	wallets WalletRepository,
	accounts AccountRepository,
	tokens TokenListRepository,
	nodeService node.Service,
	bus *eventbus.Bus,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolioID: portfolioID,
		portfolios:  portfolios,
		wallets:     wallets,
		accounts:    accounts,
		tokens:      tokens,
		node:        nodeService,
		bus:         bus,
		log:         log.With().Str("component", "balance").Logger(),
	}
}

// visible reports whether an item's balance is tracked: whitelisted
// tokens always, regular ones only when they can pay the transaction fee.
func visible(item *account.TokenListItem) bool {
	switch item.Status {
	case account.TokenWhitelisted:
		return true
	case account.TokenRegular:
		return item.CanPayTransactionFee
	}
	return false
}

// UpdateAccountsBalances refreshes Ether and all tracked token balances of
// the selected wallet, creating missing accounts on the way. Without a
// selected wallet the call is a no-op. One event is published per run.
func (s *Service) UpdateAccountsBalances(ctx context.Context) error {
	portfolio, err := s.portfolios.Find(s.portfolioID)
	if err != nil {
		return err
	}
	selected, ok := portfolio.SelectedWallet()
	if !ok {
		return nil
	}
	w, err := s.wallets.Find(selected)
	if err != nil {
		return err
	}
	if w.Address.IsZero() {
		return nil
	}

	tokens := []ethtypes.Token{ethtypes.Ether}
	items, err := s.tokens.All()
	if err != nil {
		return err
	}
	for _, item := range items {
		if visible(item) {
			tokens = append(tokens, item.Token)
		}
	}

	var firstErr error
	for _, token := range tokens {
		if err := s.updateBalance(ctx, w, token); err != nil {
			s.log.Warn().Err(err).Str("token", string(token.ID())).Msg("balance update failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.bus.Publish(AccountsBalancesUpdated{WalletID: selected})
	return firstErr
}

// UpdateAccountBalance refreshes one token account of the selected wallet.
func (s *Service) UpdateAccountBalance(ctx context.Context, token ethtypes.Token) error {
	portfolio, err := s.portfolios.Find(s.portfolioID)
	if err != nil {
		return err
	}
	selected, ok := portfolio.SelectedWallet()
	if !ok {
		return nil
	}
	w, err := s.wallets.Find(selected)
	if err != nil {
		return err
	}
	if err := s.updateBalance(ctx, w, token); err != nil {
		return err
	}
	s.bus.Publish(AccountsBalancesUpdated{WalletID: selected})
	return nil
}

func (s *Service) updateBalance(ctx context.Context, w *wallet.Wallet, token ethtypes.Token) error {
	acc, err := s.findOrCreateAccount(token.ID(), w.ID)
	if err != nil {
		return err
	}
	balance, err := s.fetchBalance(ctx, w.Address, token)
	if err != nil {
		return err
	}
	acc.UpdateBalance(balance)
	return s.accounts.Save(acc)
}

func (s *Service) findOrCreateAccount(tokenID ethtypes.TokenID, walletID wallet.ID) (*account.Account, error) {
	acc, err := s.accounts.Find(account.NewID(tokenID, walletID))
	if err == nil {
		return acc, nil
	}
	acc = account.New(tokenID, walletID)
	if err := s.accounts.Save(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) fetchBalance(ctx context.Context, holder ethtypes.Address, token ethtypes.Token) (*big.Int, error) {
	if token.IsEther() {
		return s.node.Balance(ctx, holder)
	}
	erc20 := contracts.NewERC20Proxy(token.Address, s.node)
	return erc20.Balance(ctx, holder)
}
