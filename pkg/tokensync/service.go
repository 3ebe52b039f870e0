package tokensync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/safekit/safed/pkg/account"
	"github.com/safekit/safed/pkg/ethtypes"
)

// TokenListRepository is the persistence the service needs.
type TokenListRepository interface {
	Find(id ethtypes.TokenID) (*account.TokenListItem, error)
	Save(item *account.TokenListItem) error
	Remove(id ethtypes.TokenID) error
	All() ([]*account.TokenListItem, error)
}

// BalanceRefresher re-reads account balances after the token list changed.
type BalanceRefresher interface {
	UpdateAccountsBalances(ctx context.Context) error
}

// Service merges the remote registry into the local token list and exposes
// the user's curation operations.
type Service struct {
	source   Source
	tokens   TokenListRepository
	balances BalanceRefresher
	log      zerolog.Logger
}

// NewService builds the sync service. balances may be nil when no account
// refresh should follow a sync.
func NewService(source Source, tokens TokenListRepository, balances BalanceRefresher, log zerolog.Logger) *Service {
	return &Service{
		source:   source,
		tokens:   tokens,
		balances: balances,
		log:      log.With().Str("component", "tokensync").Logger(),
	}
}

// Sync fetches the remote registry and merges it. The user's choices are
// sticky: whitelisted and blacklisted items keep their status and sorting
// position while their token metadata refreshes. Regular items absent
// from the registry are dropped; whitelisted ones survive.
func (s *Service) Sync(ctx context.Context) error {
	remote, err := s.source.Tokens(ctx)
	if err != nil {
		return err
	}
	existing, err := s.tokens.All()
	if err != nil {
		return err
	}

	remoteByID := make(map[ethtypes.TokenID]RemoteToken, len(remote))
	for _, r := range remote {
		remoteByID[r.Token.ID()] = r
	}

	for _, item := range existing {
		r, present := remoteByID[item.ID()]
		if !present {
			if item.Status == account.TokenWhitelisted {
				continue
			}
			if err := s.tokens.Remove(item.ID()); err != nil {
				return err
			}
			continue
		}
		item.Token = r.Token
		item.CanPayTransactionFee = r.Gas
		if err := s.tokens.Save(item); err != nil {
			return err
		}
		delete(remoteByID, item.ID())
	}

	for _, r := range remoteByID {
		item := account.NewTokenListItem(r.Token, account.TokenRegular, r.Gas)
		if err := s.tokens.Save(item); err != nil {
			return err
		}
	}
	s.log.Debug().Int("remote", len(remote)).Msg("token list synced")

	// The merge may have changed which tokens are visible; refresh the
	// account balances right away. A failed refresh is picked up again by
	// the balance poller.
	if s.balances != nil {
		if err := s.balances.UpdateAccountsBalances(ctx); err != nil {
			s.log.Warn().Err(err).Msg("balance refresh after token sync failed")
		}
	}
	return nil
}

// Whitelist pins a token so it stays visible and survives registry
// removal.
func (s *Service) Whitelist(id ethtypes.TokenID) error {
	item, err := s.tokens.Find(id)
	if err != nil {
		return err
	}
	item.Whitelist()
	return s.tokens.Save(item)
}

// Blacklist hides a token.
func (s *Service) Blacklist(id ethtypes.TokenID) error {
	item, err := s.tokens.Find(id)
	if err != nil {
		return err
	}
	item.Blacklist()
	return s.tokens.Save(item)
}

// Rearrange rewrites the sorting position of the given tokens in order.
func (s *Service) Rearrange(ids []ethtypes.TokenID) error {
	for position, id := range ids {
		item, err := s.tokens.Find(id)
		if err != nil {
			return err
		}
		p := position
		item.UpdateSortingID(&p)
		if err := s.tokens.Save(item); err != nil {
			return err
		}
	}
	return nil
}
