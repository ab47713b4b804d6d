package config

// Package config provides a reusable loader for beewallet configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/obiverse/beewallet-core/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a beewallet-core host. It mirrors
// the structure of the YAML files under cmd/config.
type Config struct {
	NineS struct {
		Root           string `mapstructure:"root" json:"root" yaml:"root"`
		ReadOnly       bool   `mapstructure:"read_only" json:"read_only" yaml:"read_only"`
		CompactOnStart bool   `mapstructure:"compact_on_start" json:"compact_on_start" yaml:"compact_on_start"`
	} `mapstructure:"nine_s" json:"nine_s" yaml:"nine_s"`

	Vault struct {
		SessionTimeoutSecs uint64 `mapstructure:"session_timeout_secs" json:"session_timeout_secs" yaml:"session_timeout_secs"`
	} `mapstructure:"vault" json:"vault" yaml:"vault"`

	Wallet struct {
		Network         string `mapstructure:"network" json:"network" yaml:"network"`
		PersistWatch    bool   `mapstructure:"persist_watch" json:"persist_watch" yaml:"persist_watch"`
		AutoSyncOnStart bool   `mapstructure:"auto_sync_on_start" json:"auto_sync_on_start" yaml:"auto_sync_on_start"`
	} `mapstructure:"wallet" json:"wallet" yaml:"wallet"`

	Debug struct {
		Enabled    bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
	} `mapstructure:"debug" json:"debug" yaml:"debug"`

	Logging struct {
		Level string `mapstructure:"level" json:"level" yaml:"level"`
		File  string `mapstructure:"file" json:"file" yaml:"file"`
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the BEEWALLET_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("BEEWALLET_ENV", ""))
}
