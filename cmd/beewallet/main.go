// Command beewallet is the local debug/ops CLI over the 9S core: vault
// lifecycle, identity derivation, and a read-only introspection server.
// The desktop host (out of scope here) drives the same core through the
// universal entry point described in spec.md §6; this binary exists for
// local development and operational inspection, not as the product's
// primary interface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "beewallet", Short: "beewallet-core 9S debug CLI"}
	rootCmd.PersistentFlags().String("root", "", "9S storage root (overrides NINE_S_ROOT)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config/logging.level)")

	RegisterVault(rootCmd)
	RegisterIdentity(rootCmd)
	RegisterServe(rootCmd)
	RegisterConfig(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
