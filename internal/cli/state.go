package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/registry"
)

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an installed extension",
	Long: `Enable an installed extension. It is initialized and activated, and
marked enabled so that initialize and serve bring it back up.`,
	Args: cobra.ExactArgs(1),
	RunE: stateAction("Enabled", func(reg *registry.Registry) func(context.Context, string) error {
		return reg.Enable
	}),
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an active extension",
	Args:  cobra.ExactArgs(1),
	RunE: stateAction("Disabled", func(reg *registry.Registry) func(context.Context, string) error {
		return reg.Disable
	}),
}

// stateAction builds a RunE that applies one registry operation to args[0].
func stateAction(verb string, op func(reg *registry.Registry) func(context.Context, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		name := args[0]
		return withRegistry(func(reg *registry.Registry) error {
			err := op(reg)(cmd.Context(), name)
			return report(cmd.OutOrStdout(), err, fmt.Sprintf("%s %s", verb, name))
		})
	}
}
