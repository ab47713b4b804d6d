package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/obiverse/beewallet-core/internal/ninesys"
)

var identityCmd = &cobra.Command{
	Use:               "identity",
	Short:             "Mnemonic generation, validation, and Mobi identifier derivation",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return bootstrap(cmd) },
}

var identityMnemonicCmd = &cobra.Command{
	Use:   "mnemonic",
	Short: "Generate a fresh BIP39 mnemonic",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bits, _ := cmd.Flags().GetInt("entropy-bits")
		data, _ := json.Marshal(map[string]int{"entropyBits": bits})
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/identity/mnemonic", Data: data}))
	},
}

var identityValidateCmd = &cobra.Command{
	Use:   "validate [mnemonic]",
	Short: "Validate a BIP39 mnemonic's checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _ := json.Marshal(map[string]string{"mnemonic": args[0]})
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/identity/validate", Data: data}))
	},
}

var identityMobiCmd = &cobra.Command{
	Use:   "mobinumber [mnemonic]",
	Short: "Derive the Mobi identifier for a mnemonic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, _ := cmd.Flags().GetString("passphrase")
		data, _ := json.Marshal(map[string]string{"mnemonic": args[0], "passphrase": passphrase})
		return printDispatch(sys.Dispatch(ninesys.Command{Op: ninesys.OpWrite, Path: "/identity/mobinumber", Data: data}))
	},
}

func init() {
	identityMnemonicCmd.Flags().Int("entropy-bits", 128, "entropy bits (128 or 256)")
	identityMobiCmd.Flags().String("passphrase", "", "optional BIP39 passphrase")
	identityCmd.AddCommand(identityMnemonicCmd, identityValidateCmd, identityMobiCmd)
}

// RegisterIdentity adds the identity command group to root.
func RegisterIdentity(root *cobra.Command) { root.AddCommand(identityCmd) }
