package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/branding"
	"github.com/webext-labs/webext/internal/manifest"
	"github.com/webext-labs/webext/internal/scaffold"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

var (
	createOutputDir string
	createType      string
	createRuntime   string
	createAuthor    string
)

func init() {
	createCmd.Flags().StringVar(&createOutputDir, "output-dir", "", "Output directory (default: ./<name>)")
	createCmd.Flags().StringVar(&createType, "type", manifest.TypeGeneric, "Extension type (generic, ui, api, model, tool, theme)")
	createCmd.Flags().StringVar(&createRuntime, "runtime", manifest.RuntimeLua, "Runtime (lua or go)")
	createCmd.Flags().StringVar(&createAuthor, "author", "", "Author recorded in the descriptor")
	rootCmd.AddCommand(createCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Scaffold a new extension package",
	Long: `Scaffold a new extension package with a descriptor and an entry point
for the chosen runtime.

Examples:
  ` + branding.CLIName() + ` create weather-words --type tool
  ` + branding.CLIName() + ` create status-panel --type ui --runtime go`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := validateName(name); err != nil {
			return err
		}
		if createRuntime != manifest.RuntimeLua && createRuntime != manifest.RuntimeGo {
			return fmt.Errorf("--runtime must be 'lua' or 'go', got %q", createRuntime)
		}

		data := scaffold.NewScaffoldData(name, createType, createRuntime, createAuthor)
		result, err := scaffold.Generate(data, resolveOutputDir(name))
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), result)
		if createRuntime == manifest.RuntimeGo {
			fmt.Fprintln(cmd.OutOrStdout(), "\nGo extensions are compiled in: move the package under internal/ and blank-import it from internal/builtin.")
		}
		return nil
	},
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name %q: must match pattern [a-z0-9][a-z0-9-]*", name)
	}
	return nil
}

func resolveOutputDir(name string) string {
	if createOutputDir != "" {
		return createOutputDir
	}
	return filepath.Join(".", name)
}

func printResult(w io.Writer, result *scaffold.Result) {
	fmt.Fprintf(w, "✓ Created %s\n", result.OutputDir)
	for _, f := range result.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
}
