package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/registry"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an installed extension",
	Long: `Remove an installed extension, its files, and its settings. An active
extension must be disabled first.`,
	Args: cobra.ExactArgs(1),
	RunE: stateAction("Uninstalled", func(reg *registry.Registry) func(context.Context, string) error {
		return reg.Uninstall
	}),
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
