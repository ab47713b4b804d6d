package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/obiverse/beewallet-core/internal/testutil"
)

func TestLoadDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	if _, err := Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if AppConfig.Wallet.Network != "regtest" {
		t.Fatalf("unexpected wallet network: %s", AppConfig.Wallet.Network)
	}
	if AppConfig.Vault.SessionTimeoutSecs != 300 {
		t.Fatalf("expected session timeout 300, got %d", AppConfig.Vault.SessionTimeoutSecs)
	}
}

func TestLoadSandboxOverride(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	data := []byte("wallet:\n  network: mainnet\n  persist_watch: false\ndebug:\n  enabled: true\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	if _, err := Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if AppConfig.Wallet.Network != "mainnet" {
		t.Fatalf("expected wallet network mainnet, got %s", AppConfig.Wallet.Network)
	}
	if AppConfig.Wallet.PersistWatch {
		t.Fatal("expected persist_watch false from sandbox override")
	}
	if !AppConfig.Debug.Enabled {
		t.Fatal("expected debug.enabled true from sandbox override")
	}
}

func TestLoadFromEnvUsesEnvVar(t *testing.T) {
	const key = "BEEWALLET_ENV"
	old, hadOld := os.LookupEnv(key)
	defer func() {
		if hadOld {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	}()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	os.Unsetenv(key)
	if _, err := LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if AppConfig.Wallet.Network != "regtest" {
		t.Fatalf("unexpected wallet network with no env override: %s", AppConfig.Wallet.Network)
	}
}
