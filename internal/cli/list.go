package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/registry"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed extensions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withRegistry(func(reg *registry.Registry) error {
		entries := reg.List()
		if listJSON {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No extensions installed.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), listLine(e))
		}
		return nil
	})
}

// listLine renders "- name (vX) [STATE]" with an error suffix when set.
func listLine(e registry.Entry) string {
	line := fmt.Sprintf("- %s (v%s) [%s]", e.Name, e.Version(), strings.ToUpper(string(e.State)))
	if e.Error != "" {
		line += " error: " + e.Error
	}
	return line
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
