package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/registry"
)

func init() {
	rootCmd.AddCommand(initializeCmd)
}

var initializeCmd = &cobra.Command{
	Use:   "initialize",
	Short: "Enable every extension marked enabled",
	Long: `Enable every extension whose enabled flag is set, dependencies first.
Failures are reported per extension.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withRegistry(func(reg *registry.Registry) error {
			results, err := reg.InitializeAll(cmd.Context())
			if err != nil {
				return report(out, err, "")
			}
			return printResults(out, results)
		})
	},
}

// printResults reports each per-extension outcome in name order. Any failure
// makes the command fail.
func printResults(w io.Writer, results map[string]error) error {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		if report(w, results[name], fmt.Sprintf("Enabled %s", name)) != nil {
			failed++
		}
	}
	if len(names) == 0 {
		fmt.Fprintln(w, "No extensions to initialize.")
	}
	if failed > 0 {
		return ErrReported
	}
	return nil
}
