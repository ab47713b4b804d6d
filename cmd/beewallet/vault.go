package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obiverse/beewallet-core/internal/ninesys"
)

var vaultCmd = &cobra.Command{
	Use:               "vault",
	Short:             "Vault lifecycle: status, init, unlock, lock, reset",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return bootstrap(cmd) },
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault initialization/unlock status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/vault/status"}))
	},
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the vault with a passphrase and seed phrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readSecret("Passphrase: ")
		if err != nil {
			return err
		}
		seed, err := readLine("Seed phrase: ")
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"passphrase": passphrase, "seedPhrase": seed})
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/vault/init", Data: data}))
	},
}

var vaultUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the vault with a passphrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readSecret("Passphrase: ")
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"passphrase": passphrase})
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/vault/unlock", Data: data}))
	},
}

var vaultLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the vault, scrubbing the unlocked session key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/vault/lock"}))
	},
}

var vaultResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Destroy vault credentials and seed irreversibly",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, err := readLine("Type \"reset\" to confirm: ")
		if err != nil {
			return err
		}
		if strings.TrimSpace(confirm) != "reset" {
			return fmt.Errorf("aborted")
		}
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/vault/reset"}))
	},
}

func init() {
	vaultCmd.AddCommand(vaultStatusCmd, vaultInitCmd, vaultUnlockCmd, vaultLockCmd, vaultResetCmd)
}

// RegisterVault adds the vault command group to root.
func RegisterVault(root *cobra.Command) { root.AddCommand(vaultCmd) }

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads a line without terminal echo suppression: a dependency
// on golang.org/x/term for masked input isn't justified for this local
// debug CLI.
func readSecret(prompt string) (string, error) {
	return readLine(prompt)
}

func printDispatch(resp ninesys.Response) error {
	raw, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}
