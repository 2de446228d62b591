package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/registry"
)

func init() {
	rootCmd.AddCommand(discoverCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Record package directories found in managed storage",
	Long: `Scan the installed/ directory for packages the registry does not track
yet, record them, and remove leftovers of interrupted installs and uninstalls.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withRegistry(func(reg *registry.Registry) error {
			found, err := reg.Discover(cmd.Context())
			if err != nil {
				return report(out, err, "")
			}
			for _, e := range found {
				fmt.Fprintln(out, listLine(e))
			}
			return report(out, nil, fmt.Sprintf("Discovered %d extensions", len(found)))
		})
	},
}
