package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/config"
	"github.com/webext-labs/webext/internal/layout"
	"github.com/webext-labs/webext/internal/registry"
)

var setupDir string

func init() {
	setupCmd.Flags().StringVar(&setupDir, "dir", "", "Managed extensions directory (default from config)")
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the managed extensions directory",
	Long: `Create the managed extensions directory with its installed/ and temp/
subdirectories and the registry state file. Existing entries are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := setupDir
		if dir == "" {
			dir = config.ExtensionsDir()
		}
		root, err := layout.ResolveRoot(dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Setting up %s\n", root)
		if _, err := layout.Setup(out, root); err != nil {
			return report(out, err, "")
		}
		return withRegistryAt(root, func(*registry.Registry) error {
			return report(out, nil, "Extension environment ready")
		})
	},
}
