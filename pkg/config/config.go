// Package config loads runtime configuration from a safed.yaml file and
// SAFED_-prefixed environment variables, with working defaults for a
// Rinkeby setup.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Environment string
	Debug       bool

	DBPath string

	RelayURL    string
	NodeURL     string
	HTTPTimeout time.Duration

	NATSURL string

	DeploymentPollInterval  time.Duration
	TransactionPollInterval time.Duration
	BalancePollInterval     time.Duration
	TokenListPollInterval   time.Duration

	// Contract metadata, addresses as 0x-hex strings.
	ProxyFactory       string
	SafeFunders        []string
	MasterCopies       []MasterCopyConfig
	MultiSendContracts []MultiSendConfig
	ENSRegistry        string
}

type MasterCopyConfig struct {
	Address        string
	Version        string
	DeploymentCode string
}

type MultiSendConfig struct {
	Address string
	Version int
}

// Load reads the configuration. A missing config file is fine; defaults
// and environment variables then carry the full configuration.
func Load() (*Config, error) {
	viper.SetConfigName("safed")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.safed")
	viper.SetEnvPrefix("SAFED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		Environment:             viper.GetString("environment"),
		Debug:                   viper.GetBool("debug"),
		DBPath:                  viper.GetString("db_path"),
		RelayURL:                viper.GetString("relay.url"),
		NodeURL:                 viper.GetString("node.url"),
		HTTPTimeout:             viper.GetDuration("http_timeout"),
		NATSURL:                 viper.GetString("nats.url"),
		DeploymentPollInterval:  viper.GetDuration("poll.deployment"),
		TransactionPollInterval: viper.GetDuration("poll.transactions"),
		BalancePollInterval:     viper.GetDuration("poll.balances"),
		TokenListPollInterval:   viper.GetDuration("poll.token_list"),
		ProxyFactory:            viper.GetString("contracts.proxy_factory"),
		SafeFunders:             viper.GetStringSlice("contracts.safe_funders"),
		ENSRegistry:             viper.GetString("contracts.ens_registry"),
	}
	if err := viper.UnmarshalKey("contracts.master_copies", &cfg.MasterCopies); err != nil {
		return nil, err
	}
	if err := viper.UnmarshalKey("contracts.multi_send", &cfg.MultiSendContracts); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", false)
	viper.SetDefault("db_path", "safed-data")
	viper.SetDefault("relay.url", "https://safe-relay.rinkeby.gnosis.pm")
	viper.SetDefault("node.url", "https://rinkeby.infura.io/v3/")
	viper.SetDefault("http_timeout", 30*time.Second)
	viper.SetDefault("nats.url", "")
	viper.SetDefault("poll.deployment", 2*time.Second)
	viper.SetDefault("poll.transactions", 5*time.Second)
	viper.SetDefault("poll.balances", 10*time.Second)
	viper.SetDefault("poll.token_list", 5*time.Second)
	viper.SetDefault("contracts.ens_registry", "0xe7410170f87102df0055eb195163a03b7f2bff4a")
}
