package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/safekit/safed/pkg/account"
	"github.com/safekit/safed/pkg/balance"
	"github.com/safekit/safed/pkg/config"
	"github.com/safekit/safed/pkg/contracts"
	"github.com/safekit/safed/pkg/deployment"
	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/eventbus"
	"github.com/safekit/safed/pkg/keystore"
	"github.com/safekit/safed/pkg/logger"
	"github.com/safekit/safed/pkg/node"
	"github.com/safekit/safed/pkg/notify"
	"github.com/safekit/safed/pkg/relay"
	"github.com/safekit/safed/pkg/repo"
	"github.com/safekit/safed/pkg/scheduler"
	"github.com/safekit/safed/pkg/tokensync"
	"github.com/safekit/safed/pkg/transaction"
	"github.com/safekit/safed/pkg/txservice"
	"github.com/safekit/safed/pkg/wallet"
)

const Version = "0.1.0"

const portfolioID = wallet.PortfolioID("main")

func main() {
	app := &cli.Command{
		Name:    "safed",
		Usage:   "Multi-signature safe wallet daemon",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start the wallet daemon",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging",
						Value: false,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runDaemon(ctx, c)
				},
			},
			{
				Name:      "resolve",
				Usage:     "Resolve an ENS name to an address",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return resolveName(ctx, c.Args().First())
				},
			},
			{
				Name:  "version",
				Usage: "Display version information",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Printf("safed version %s\n", Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runDaemon(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	log := logger.New(cfg.Environment, cfg.Debug)
	log.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting safed")

	store, err := repo.OpenKVStore(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	keys := keystore.NewKeyStore(store, log)
	if err := unlockKeyStore(keys); err != nil {
		return err
	}

	metadata, err := buildMetadata(cfg)
	if err != nil {
		return fmt.Errorf("contract metadata: %w", err)
	}

	relayClient := relay.NewClient(cfg.RelayURL, cfg.HTTPTimeout, log)
	nodeClient := node.NewClient(cfg.NodeURL, cfg.HTTPTimeout, log)
	bus := eventbus.New(log)

	var notifier notify.Service = notify.NewRecorder()
	if cfg.NATSURL != "" {
		publisher, err := notify.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		notifier = publisher
	}

	wallets := repo.NewBadger[wallet.Wallet, wallet.ID](store, "wallets", func(w *wallet.Wallet) wallet.ID { return w.ID })
	portfolios := repo.NewBadger[wallet.Portfolio, wallet.PortfolioID](store, "portfolios", func(p *wallet.Portfolio) wallet.PortfolioID { return p.ID })
	transactions := repo.NewBadger[transaction.Transaction, transaction.ID](store, "transactions", func(t *transaction.Transaction) transaction.ID { return t.ID })
	accounts := repo.NewBadger[account.Account, account.ID](store, "accounts", func(a *account.Account) account.ID { return a.ID })
	tokens := repo.NewBadger[account.TokenListItem, ethtypes.TokenID](store, "tokens", func(i *account.TokenListItem) ethtypes.TokenID { return i.ID() })

	if err := ensurePortfolio(portfolios); err != nil {
		return err
	}

	deployService := deployment.NewService(
		wallets, relayClient, nodeClient,
		deployment.NewResponseValidator(metadata), metadata,
		keys, notifier, bus, log,
	)
	txService := txservice.NewService(transactions, wallets, relayClient, nodeClient, keys, metadata, notifier, bus, log)
	balanceService := balance.NewService(portfolioID, portfolios, wallets, accounts, tokens, nodeClient, bus, log)
	tokenService := tokensync.NewService(tokensync.NewHTTPSource(cfg.RelayURL, cfg.HTTPTimeout, log), tokens, balanceService, log)

	if err := txService.CleanUpStaleTransactions(); err != nil {
		log.Warn().Err(err).Msg("stale transaction cleanup failed")
	}

	appCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	repeaters := []*scheduler.Repeater{
		scheduler.NewRepeater("deployments", cfg.DeploymentPollInterval, resumeDeployments(wallets, deployService, log), log),
		scheduler.NewRepeater("pending-transactions", cfg.TransactionPollInterval, txService.UpdatePendingTransactions, log),
		scheduler.NewRepeater("balances", cfg.BalancePollInterval, balanceService.UpdateAccountsBalances, log),
		scheduler.NewRepeater("token-list", cfg.TokenListPollInterval, tokenService.Sync, log),
	}
	for _, r := range repeaters {
		r.Start(appCtx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Warn().Msg("shutdown signal received")
	case <-appCtx.Done():
	}
	cancel()
	for _, r := range repeaters {
		r.Stop()
	}
	log.Info().Msg("safed stopped")
	return nil
}

// resumeDeployments advances every wallet with a deployment in progress.
// A permanently failed creation is logged loudly but does not stop the
// loop for other wallets.
func resumeDeployments(wallets *repo.Badger[wallet.Wallet, wallet.ID], service *deployment.Service, log zerolog.Logger) scheduler.Task {
	return func(ctx context.Context) error {
		all, err := wallets.All()
		if err != nil {
			return err
		}
		var firstErr error
		for _, w := range all {
			if !w.State.InProgress() {
				continue
			}
			if err := service.Resume(ctx, w.ID); err != nil {
				if errors.Is(err, deployment.ErrWalletCreationFailed) {
					log.Error().Err(err).Str("wallet", string(w.ID)).Msg("wallet creation failed permanently")
					continue
				}
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}
}

func resolveName(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("usage: safed resolve <name>")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log := logger.New(cfg.Environment, cfg.Debug)
	nodeClient := node.NewClient(cfg.NodeURL, cfg.HTTPTimeout, log)

	nodeHash := contracts.Namehash(name)
	registry := contracts.NewENSRegistryProxy(ethtypes.NewAddress(cfg.ENSRegistry), nodeClient)
	resolverAddr, err := registry.Resolver(ctx, nodeHash)
	if err != nil {
		return err
	}
	address, err := contracts.NewENSResolverProxy(resolverAddr, nodeClient).ResolveAddress(ctx, nodeHash)
	if err != nil {
		return err
	}
	fmt.Println(address.String())
	return nil
}

func unlockKeyStore(keys *keystore.KeyStore) error {
	if passphrase := os.Getenv("SAFED_PASSPHRASE"); passphrase != "" {
		return keys.Unlock([]byte(passphrase))
	}
	for {
		fmt.Print("Enter keystore passphrase: ")
		passphrase, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read passphrase: %w", err)
		}
		if len(passphrase) == 0 {
			fmt.Println("Passphrase cannot be empty. Please try again.")
			continue
		}
		err = keys.Unlock(passphrase)
		if errors.Is(err, keystore.ErrWrongPassphrase) {
			fmt.Println("Wrong passphrase. Please try again.")
			continue
		}
		return err
	}
}

func ensurePortfolio(portfolios *repo.Badger[wallet.Portfolio, wallet.PortfolioID]) error {
	_, err := portfolios.Find(portfolioID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return portfolios.Save(wallet.NewPortfolio(portfolioID))
}

func buildMetadata(cfg *config.Config) (*contracts.MetadataRepository, error) {
	metadata := contracts.SafeContractMetadata{
		ProxyFactory: ethtypes.NewAddress(cfg.ProxyFactory),
	}
	for _, funder := range cfg.SafeFunders {
		metadata.SafeFunders = append(metadata.SafeFunders, ethtypes.NewAddress(funder))
	}
	for _, mc := range cfg.MasterCopies {
		code, err := hex.DecodeString(strings.TrimPrefix(mc.DeploymentCode, "0x"))
		if err != nil {
			return nil, fmt.Errorf("master copy %s: bad deployment code: %w", mc.Address, err)
		}
		metadata.MasterCopies = append(metadata.MasterCopies, contracts.MasterCopyMetadata{
			Address:        ethtypes.NewAddress(mc.Address),
			Version:        mc.Version,
			DeploymentCode: code,
		})
	}
	for _, ms := range cfg.MultiSendContracts {
		metadata.MultiSend = append(metadata.MultiSend, contracts.MultiSendMetadata{
			Address: ethtypes.NewAddress(ms.Address),
			Version: ms.Version,
		})
	}
	return contracts.NewMetadataRepository(metadata), nil
}
