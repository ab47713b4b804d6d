package main

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/obiverse/beewallet-core/internal/ninesys"
	"github.com/obiverse/beewallet-core/internal/reactor"
	"github.com/obiverse/beewallet-core/internal/vault"
	"github.com/obiverse/beewallet-core/pkg/config"
	"github.com/obiverse/beewallet-core/pkg/utils"
)

var (
	bootOnce sync.Once
	bootErr  error
	sys      *ninesys.System
	cfg      config.Config
)

// bootstrap runs once across the whole CLI invocation: load .env, set
// logging, load config, open the vault store, and assemble the 9S system.
// Every subcommand's PersistentPreRunE/RunE calls this before touching sys.
func bootstrap(cmd *cobra.Command) error {
	bootOnce.Do(func() {
		_ = godotenv.Load()

		level := utils.EnvOrDefault("LOG_LEVEL", "info")
		if flagLevel, _ := cmd.Flags().GetString("log-level"); flagLevel != "" {
			level = flagLevel
		}
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			bootErr = err
			return
		}
		logrus.SetLevel(lvl)

		if loaded, err := config.LoadFromEnv(); err == nil {
			cfg = *loaded
		} else {
			logrus.WithError(err).Debug("no config file found, using defaults")
		}
		flagLevel, _ := cmd.Flags().GetString("log-level")
		if _, envSet := os.LookupEnv("LOG_LEVEL"); flagLevel == "" && !envSet && cfg.Logging.Level != "" {
			lvl, err := logrus.ParseLevel(cfg.Logging.Level)
			if err != nil {
				bootErr = err
				return
			}
			logrus.SetLevel(lvl)
		}

		root := utils.EnvOrDefault("NINE_S_ROOT", cfg.NineS.Root)
		if flagRoot, _ := cmd.Flags().GetString("root"); flagRoot != "" {
			root = flagRoot
		}
		if root == "" {
			root = defaultRoot()
		}

		vaultStore, err := vault.Open(root + "/vault")
		if err != nil {
			bootErr = err
			return
		}

		timeout := cfg.Vault.SessionTimeoutSecs
		if v := utils.EnvOrDefaultUint64("VAULT_SESSION_TIMEOUT_SECS", 0); v != 0 {
			timeout = v
		}

		sdk := reactor.NewStubSDK(cfg.Wallet.Network)
		sys = ninesys.New(sdk, vaultStore, timeout)
	})
	return bootErr
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beewallet"
	}
	return home + "/.beewallet"
}
