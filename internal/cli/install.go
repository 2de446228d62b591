package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/registry"
)

var installCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Install an extension",
	Long: `Install an extension from a local directory, a .zip, .tar.gz or .tgz
archive, or an http(s) URL to such an archive. The extension is installed
disabled; run enable to activate it.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withRegistry(func(reg *registry.Registry) error {
		e, err := reg.Install(cmd.Context(), args[0])
		if rerr := report(out, err, fmt.Sprintf("Installed %s (v%s)", e.Name, e.Version())); rerr != nil {
			return rerr
		}
		if len(e.MissingSettings) > 0 {
			fmt.Fprintf(out, "  required settings without a value: %v\n", e.MissingSettings)
		}
		return nil
	})
}
