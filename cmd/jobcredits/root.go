package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vitwit/jobcredits"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/metrics"
	"github.com/vitwit/jobcredits/types"
	"github.com/vitwit/jobcredits/utils"
	"github.com/vitwit/jobcredits/wallet"
)

const (
	app       = "jobcredits"
	envPrefix = "JOBCREDITS"
)

// cliConfig holds the settings that only the command line needs on top of
// types.Config.
type cliConfig struct {
	Account      string `mapstructure:"account"`
	SessionToken string `mapstructure:"session-token"`
	Keypair      string `mapstructure:"keypair"`
	PrivateKey   string `mapstructure:"private-key"`
}

var envKeys = []string{
	"account", "session-token", "keypair", "private-key",
	"api-base-url", "network", "rpc-url", "merchant-address", "price-sol",
	"credits-per-purchase", "refund-empty-results", "verify-quota-before-spend",
	"confirm-poll-interval", "confirm-attempts", "log-level", "enable-metrics",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "jobcredits buys insight credits with SOL and fetches AI job matches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig()
		},
	}
)

// Execute executes the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a yaml or json config file (default is jobcredits.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json output and logging")
	rootCmd.PersistentFlags().String("account", "", "account (user) id whose credits are used")
	rootCmd.PersistentFlags().String("network", "", "solana-mainnet, solana-devnet or solana-localnet")

	for _, name := range []string{"debug", "json", "account", "network"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() error {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so env-only settings are bound
	// explicitly.
	for _, key := range envKeys {
		if err := viper.BindEnv(key); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func getConfig() (*types.Config, *cliConfig, error) {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if viper.GetBool("debug") {
		cfg.LogLevel = "debug"
	}

	var cli cliConfig
	if err := viper.Unmarshal(&cli); err != nil {
		return nil, nil, err
	}
	return cfg, &cli, nil
}

// loadConfig reads the library configuration. A .json file is taken as-is in the
// library's JSON format; anything else goes through viper with env overrides.
func loadConfig(path string) (*types.Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		cfg, err := utils.ParseConfig(data)
		if err != nil {
			return nil, err
		}
		if flag := rootCmd.PersistentFlags().Lookup("network"); flag != nil && flag.Changed {
			cfg.Network = types.Network(flag.Value.String())
			cfg.RPCURL = cfg.Network.DefaultRPCURL()
		}
		return cfg, nil
	}

	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if network := viper.GetString("network"); network != "" {
		cfg.Network = types.Network(network)
		if !viper.IsSet("rpc-url") {
			cfg.RPCURL = cfg.Network.DefaultRPCURL()
		}
	}
	return cfg, nil
}

// newLogger builds the zap logger selected by --debug and --json.
func newLogger(cfg *types.Config) (logger.Logger, error) {
	return logger.NewZapLogger(cfg.LogLevel, viper.GetBool("json"))
}

// newController wires a controller from the loaded configuration. The wallet is
// loaded only when withWallet is set.
func newController(withWallet bool) (*jobcredits.Controller, *cliConfig, logger.Logger, error) {
	cfg, cli, err := getConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("getting a config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	opts := []jobcredits.Option{
		jobcredits.WithLogger(log),
		jobcredits.WithSessionToken(cli.SessionToken),
		jobcredits.WithNotifier(jobcredits.NotifierFunc(func(n types.Notification) {
			log.Debug("notification", map[string]any{"level": string(n.Level), "code": n.Code, "message": n.Message})
		})),
	}

	if cfg.EnableMetrics {
		rec, err := metrics.NewPrometheusRecorder(nil)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("registering metrics: %w", err)
		}
		opts = append(opts, jobcredits.WithMetrics(rec))
	}

	if withWallet {
		provider, err := loadWallet(cli)
		if err != nil {
			return nil, nil, nil, err
		}
		if provider != nil {
			opts = append(opts, jobcredits.WithWallet(provider))
		}
	}

	ctrl, err := jobcredits.New(cfg, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return ctrl, cli, log, nil
}

// loadWallet returns nil when neither a key file nor a private key is configured;
// the controller then reports WALLET_NOT_INSTALLED.
func loadWallet(cli *cliConfig) (wallet.Provider, error) {
	switch {
	case cli.PrivateKey != "":
		return wallet.KeypairFromBase58(cli.PrivateKey)
	case cli.Keypair != "":
		return wallet.KeypairFromFile(cli.Keypair)
	default:
		return nil, nil
	}
}

func requireAccount(cli *cliConfig) error {
	if cli.Account == "" {
		return errors.New("account is required (--account or JOBCREDITS_ACCOUNT)")
	}
	return nil
}

// printJSON writes v indented when --json is set and reports whether it did.
func printJSON(w io.Writer, v any) (bool, error) {
	if !viper.GetBool("json") {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
