package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/registry"
	"go.yaml.in/yaml/v3"
)

func init() {
	rootCmd.AddCommand(settingsCmd)
}

var settingsCmd = &cobra.Command{
	Use:   "settings <name> [key=value ...]",
	Short: "Show or update extension settings",
	Long: `Without key=value arguments, show the resolved settings of an extension.
With arguments, validate and save them. Values are parsed as YAML scalars,
so 42 is an integer, true a boolean and "42" a string; null resets a key to
its default.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		out := cmd.OutOrStdout()
		overrides, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		return withRegistry(func(reg *registry.Registry) error {
			if len(overrides) == 0 {
				e, err := reg.Get(name)
				if err != nil {
					return report(out, err, "")
				}
				printSettings(out, e)
				return nil
			}
			e, err := reg.UpdateSettings(cmd.Context(), name, overrides)
			if rerr := report(out, err, fmt.Sprintf("Saved settings of %s", name)); rerr != nil {
				return rerr
			}
			printSettings(out, e)
			return nil
		})
	},
}

// parseAssignments turns key=value arguments into settings overrides.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q: expected key=value", arg)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("parsing value of %s: %w", key, err)
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("setting %s: only scalar values are supported", key)
		}
		if v == nil && raw != "null" && raw != "~" {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}
