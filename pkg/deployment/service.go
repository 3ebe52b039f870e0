// Package deployment drives the safe creation state machine: quoting the
// creation transaction at the relay, watching the funding balance,
// triggering the broadcast and finalizing the wallet once the creation
// transaction is mined. Each step is safe to repeat; the polling loop
// simply resumes from the persisted wallet state.
package deployment

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog"

	"github.com/safekit/safed/pkg/contracts"
	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/eventbus"
	"github.com/safekit/safed/pkg/node"
	"github.com/safekit/safed/pkg/notify"
	"github.com/safekit/safed/pkg/relay"
	"github.com/safekit/safed/pkg/wallet"
)

var (
	// ErrWalletNotDeployable is returned when deployment is requested for a
	// wallet that misses required owners or is not in draft.
	ErrWalletNotDeployable = errors.New("deployment: wallet is not deployable")
	// ErrWalletCreationFailed is returned when the creation transaction was
	// mined but reverted. The wallet is left in its terminal failed state.
	ErrWalletCreationFailed = errors.New("deployment: wallet creation failed on-chain")
)

// WalletRepository is the persistence the service needs.
type WalletRepository interface {
	Find(id wallet.ID) (*wallet.Wallet, error)
	Save(w *wallet.Wallet) error
}

// KeyDisposer deletes locally stored keys. Paper wallet keys are disposed
// of after deployment so the recovery phrase is the only copy.
type KeyDisposer interface {
	Remove(address ethtypes.Address) error
}

// Service orchestrates wallet deployments.
type Service struct {
	wallets   WalletRepository
	relay     relay.Service
	node      node.Service
	validator *ResponseValidator
	metadata  *contracts.MetadataRepository
	keys      KeyDisposer
	notifier  notify.Service
	bus       *eventbus.Bus
	log       zerolog.Logger

	mu    sync.Mutex
	locks map[wallet.ID]*sync.Mutex
}

func NewService(
	wallets WalletRepository,
	relayService relay.Service,
	nodeService node.Service,
	validator *ResponseValidator,
	metadata *contracts.MetadataRepository,
	keys KeyDisposer,
	notifier notify.Service,
	bus *eventbus.Bus,
	log zerolog.Logger,
) *Service {
	return &Service{
		wallets:   wallets,
		relay:     relayService,
		node:      nodeService,
		validator: validator,
		metadata:  metadata,
		keys:      keys,
		notifier:  notifier,
		bus:       bus,
		log:       log.With().Str("component", "deployment").Logger(),
		locks:     map[wallet.ID]*sync.Mutex{},
	}
}

// lock serializes all deployment steps per wallet. Steps for different
// wallets run concurrently.
func (s *Service) lock(id wallet.ID) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Start begins deployment of a deployable draft wallet and runs the first
// preparation step.
func (s *Service) Start(ctx context.Context, id wallet.ID) error {
	unlock := s.lock(id)
	w, err := s.wallets.Find(id)
	if err != nil {
		unlock()
		return err
	}
	if !w.IsDeployable() {
		unlock()
		return ErrWalletNotDeployable
	}
	if err := w.StartDeployment(); err != nil {
		unlock()
		return err
	}
	if err := s.wallets.Save(w); err != nil {
		unlock()
		return err
	}
	s.bus.Publish(wallet.DeploymentStarted{WalletID: id})
	unlock()
	return s.PrepareSafeCreationTransaction(ctx, id)
}

// PrepareSafeCreationTransaction obtains and validates the creation quote,
// records address and fee on the wallet and moves it to
// waitingForFirstDeposit. An invalid quote cancels the deployment; a
// transient relay failure leaves the wallet deploying for the next tick.
func (s *Service) PrepareSafeCreationTransaction(ctx context.Context, id wallet.ID) error {
	defer s.lock(id)()
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	if w.State != wallet.StateDeploying {
		return nil
	}

	saltNonce, err := randomSaltNonce()
	if err != nil {
		return err
	}
	req := relay.SafeCreationRequest{
		Owners:       w.OwnerAddresses(),
		Threshold:    w.ConfirmationCount,
		PaymentToken: w.FeePaymentToken,
		SaltNonce:    saltNonce.String(),
	}
	resp, err := s.relay.CreateSafeCreationTransaction(ctx, req)
	if err != nil {
		if relay.IsTransient(err) {
			return err
		}
		return s.abort(w, err)
	}
	if err := s.validator.Validate(resp, req, saltNonce); err != nil {
		return s.abort(w, err)
	}

	if err := w.AssignAddress(resp.SafeAddress); err != nil {
		return err
	}
	if err := w.SetDeploymentFee(resp.PaymentToken, resp.Payment); err != nil {
		return err
	}
	w.MasterCopy = resp.MasterCopy
	w.ContractVersion = s.metadata.ContractVersion(resp.MasterCopy)
	if err := w.MarkWaitingForFirstDeposit(); err != nil {
		return err
	}
	if err := s.wallets.Save(w); err != nil {
		return err
	}
	s.bus.Publish(wallet.StartedWaitingForFirstDeposit{WalletID: id})
	return nil
}

// CheckDidReceiveFirstDeposit inspects the safe balance of a wallet
// waiting for its first deposit and advances the state machine when funds
// arrived.
func (s *Service) CheckDidReceiveFirstDeposit(ctx context.Context, id wallet.ID) error {
	defer s.lock(id)()
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	if w.State != wallet.StateWaitingForFirstDeposit {
		return nil
	}
	balance, err := s.node.Balance(ctx, w.Address)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return nil
	}
	if balance.Cmp(w.MinimumDeploymentAmount) >= 0 {
		return s.markFunded(ctx, w)
	}
	if err := w.MarkNotEnoughFunds(); err != nil {
		return err
	}
	if err := s.wallets.Save(w); err != nil {
		return err
	}
	s.bus.Publish(wallet.StartedWaitingForRemainingFeeAmount{WalletID: id})
	return nil
}

// CheckHasMinimumAmount re-checks a partially funded wallet against the
// minimum deployment amount.
func (s *Service) CheckHasMinimumAmount(ctx context.Context, id wallet.ID) error {
	defer s.lock(id)()
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	if w.State != wallet.StateNotEnoughFunds {
		return nil
	}
	balance, err := s.node.Balance(ctx, w.Address)
	if err != nil {
		return err
	}
	if balance.Cmp(w.MinimumDeploymentAmount) < 0 {
		return nil
	}
	return s.markFunded(ctx, w)
}

func (s *Service) markFunded(ctx context.Context, w *wallet.Wallet) error {
	if err := w.MarkDeploymentFunded(); err != nil {
		return err
	}
	if err := s.wallets.Save(w); err != nil {
		return err
	}
	s.bus.Publish(wallet.DeploymentFunded{WalletID: w.ID})
	return s.startSafeCreation(ctx, w)
}

// StartSafeCreation notifies the relay that the safe is funded. Safe to
// repeat: the relay accepts the call again for a funded safe.
func (s *Service) StartSafeCreation(ctx context.Context, id wallet.ID) error {
	defer s.lock(id)()
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	if w.State != wallet.StateCreationStarted || w.CreationTransactionHash != "" {
		return nil
	}
	return s.startSafeCreation(ctx, w)
}

func (s *Service) startSafeCreation(ctx context.Context, w *wallet.Wallet) error {
	if err := s.relay.StartSafeCreation(ctx, w.Address); err != nil {
		if relay.IsTransient(err) {
			return err
		}
		return s.fail(w, err)
	}
	s.bus.Publish(wallet.CreationStarted{WalletID: w.ID})
	return nil
}

// CheckHasSubmittedTransaction polls the relay for the hash of the
// broadcast creation transaction. An empty hash means the relay has not
// submitted yet.
func (s *Service) CheckHasSubmittedTransaction(ctx context.Context, id wallet.ID) error {
	defer s.lock(id)()
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	if w.State != wallet.StateCreationStarted || w.CreationTransactionHash != "" {
		return nil
	}
	hash, err := s.relay.SafeCreationTransactionHash(ctx, w.Address)
	if err != nil {
		if relay.IsTransient(err) {
			return err
		}
		return s.fail(w, err)
	}
	if hash == "" {
		return nil
	}
	if err := w.AssignCreationTransaction(hash); err != nil {
		return err
	}
	return s.wallets.Save(w)
}

// CheckHasMinedTransaction polls the node for the creation transaction
// receipt. A missing receipt keeps the wallet waiting; a successful one
// finalizes the deployment, a reverted one fails it permanently.
func (s *Service) CheckHasMinedTransaction(ctx context.Context, id wallet.ID) error {
	unlock := s.lock(id)
	w, err := s.wallets.Find(id)
	if err != nil {
		unlock()
		return err
	}
	if w.State != wallet.StateCreationStarted || w.CreationTransactionHash == "" {
		unlock()
		return nil
	}
	receipt, err := s.node.TransactionReceipt(ctx, w.CreationTransactionHash)
	if err != nil {
		unlock()
		return err
	}
	if receipt == nil {
		unlock()
		return nil
	}
	if receipt.Status != ethtypes.ReceiptSuccess {
		defer unlock()
		return s.fail(w, fmt.Errorf("creation transaction %s reverted", w.CreationTransactionHash))
	}
	if err := w.MarkFinalizingDeployment(); err != nil {
		unlock()
		return err
	}
	if err := s.wallets.Save(w); err != nil {
		unlock()
		return err
	}
	unlock()
	return s.PostProcessCreation(ctx, id)
}

// PostProcessCreation announces the new safe to the paired device,
// disposes of the paper wallet keys and marks the wallet ready to use.
func (s *Service) PostProcessCreation(ctx context.Context, id wallet.ID) error {
	defer s.lock(id)()
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	if w.State != wallet.StateFinalizingDeployment {
		return nil
	}
	if err := s.notifier.SafeCreated(ctx, notify.SafeCreatedMessage{Safe: w.Address}); err != nil {
		return err
	}
	s.disposePaperKeys(w)
	if err := w.FinishDeployment(); err != nil {
		return err
	}
	if err := s.wallets.Save(w); err != nil {
		return err
	}
	s.bus.Publish(wallet.WalletCreated{WalletID: id})
	s.log.Info().Str("wallet", string(id)).Str("safe", w.Address.String()).Msg("wallet ready to use")
	return nil
}

func (s *Service) disposePaperKeys(w *wallet.Wallet) {
	for _, role := range []wallet.Role{wallet.RolePaperWallet, wallet.RolePaperWalletDerived} {
		owner, ok := w.OwnerByRole(role)
		if !ok {
			continue
		}
		if err := s.keys.Remove(owner.Address); err != nil {
			s.log.Warn().Err(err).Str("address", owner.Address.String()).Msg("could not dispose paper wallet key")
		}
	}
}

// Cancel aborts a deployment in progress and resets the wallet to draft.
func (s *Service) Cancel(id wallet.ID) error {
	defer s.lock(id)()
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	if err := w.Cancel(); err != nil {
		return err
	}
	if err := s.wallets.Save(w); err != nil {
		return err
	}
	s.bus.Publish(wallet.DeploymentAborted{WalletID: id})
	return nil
}

// Resume runs the step matching the wallet's persisted state. The polling
// loop calls this every tick for every wallet with a deployment in
// progress.
func (s *Service) Resume(ctx context.Context, id wallet.ID) error {
	w, err := s.wallets.Find(id)
	if err != nil {
		return err
	}
	switch w.State {
	case wallet.StateDeploying:
		return s.PrepareSafeCreationTransaction(ctx, id)
	case wallet.StateWaitingForFirstDeposit:
		return s.CheckDidReceiveFirstDeposit(ctx, id)
	case wallet.StateNotEnoughFunds:
		return s.CheckHasMinimumAmount(ctx, id)
	case wallet.StateCreationStarted:
		if w.CreationTransactionHash == "" {
			if err := s.StartSafeCreation(ctx, id); err != nil {
				return err
			}
			if err := s.CheckHasSubmittedTransaction(ctx, id); err != nil {
				return err
			}
		}
		return s.CheckHasMinedTransaction(ctx, id)
	case wallet.StateFinalizingDeployment:
		return s.PostProcessCreation(ctx, id)
	}
	return nil
}

// abort cancels the deployment after a validation failure and surfaces
// the cause.
func (s *Service) abort(w *wallet.Wallet, cause error) error {
	s.log.Warn().Err(cause).Str("wallet", string(w.ID)).Msg("aborting deployment")
	if err := w.Cancel(); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.wallets.Save(w); err != nil {
		return errors.Join(cause, err)
	}
	s.bus.Publish(wallet.DeploymentAborted{WalletID: w.ID})
	return cause
}

// fail moves the wallet to its terminal failed state.
func (s *Service) fail(w *wallet.Wallet, cause error) error {
	s.log.Error().Err(cause).Str("wallet", string(w.ID)).Msg("wallet creation failed")
	if err := w.FailDeployment(); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.wallets.Save(w); err != nil {
		return errors.Join(cause, err)
	}
	s.bus.Publish(wallet.WalletCreationFailed{WalletID: w.ID})
	return fmt.Errorf("%w: %v", ErrWalletCreationFailed, cause)
}

// randomSaltNonce draws a uniform 256-bit CREATE2 salt.
func randomSaltNonce() (*big.Int, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("deployment: salt nonce: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}
