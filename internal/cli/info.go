package cli

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/manifest"
	"github.com/webext-labs/webext/internal/registry"
	"github.com/webext-labs/webext/internal/runtime"
)

var infoJSON bool

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details of an installed extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(reg *registry.Registry) error {
			e, err := reg.Get(args[0])
			if err != nil {
				return report(cmd.OutOrStdout(), err, "")
			}
			if infoJSON {
				return printJSON(cmd.OutOrStdout(), e)
			}
			printInfo(cmd.OutOrStdout(), e)
			return nil
		})
	},
}

func printInfo(w io.Writer, e registry.Entry) {
	fmt.Fprintf(w, "Name:        %s\n", e.Name)
	fmt.Fprintf(w, "Version:     %s\n", displayVersion(e.Version()))
	if d := e.Descriptor; d != nil {
		fmt.Fprintf(w, "Description: %s\n", d.Description)
		fmt.Fprintf(w, "Author:      %s\n", d.Author)
		fmt.Fprintf(w, "Type:        %s\n", d.Type)
		fmt.Fprintf(w, "Runtime:     %s\n", runtimeLine(d))
		if len(d.Dependencies) > 0 {
			fmt.Fprintf(w, "Depends on:  %s\n", strings.Join(d.Dependencies, ", "))
		}
	}
	fmt.Fprintf(w, "State:       %s\n", strings.ToUpper(string(e.State)))
	fmt.Fprintf(w, "Enabled:     %t\n", e.Enabled)
	fmt.Fprintf(w, "Path:        %s\n", e.Path)
	fmt.Fprintf(w, "Installed:   %s\n", e.InstallDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Updated:     %s\n", e.UpdateDate.Format("2006-01-02 15:04:05"))
	if e.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", e.Error)
	}
	printSettings(w, e)
}

// runtimeLine describes the runtime of d. For go modules it tells whether the
// entrypoint is compiled into this binary.
func runtimeLine(d *manifest.Descriptor) string {
	if d.Runtime == manifest.RuntimeLua {
		return fmt.Sprintf("%s (%s)", d.Runtime, d.Entrypoint)
	}
	entry := runtime.GoEntrypoint(d)
	if slices.Contains(runtime.Factories(), entry) {
		return fmt.Sprintf("%s (built in: %s)", manifest.RuntimeGo, entry)
	}
	return fmt.Sprintf("%s (not built in: %s)", manifest.RuntimeGo, entry)
}

func printSettings(w io.Writer, e registry.Entry) {
	if len(e.Settings) == 0 && len(e.MissingSettings) == 0 {
		fmt.Fprintln(w, "Settings:    none")
		return
	}
	fmt.Fprintln(w, "Settings:")
	keys := make([]string, 0, len(e.Settings))
	for k := range e.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %v\n", k, e.Settings[k])
	}
	for _, k := range e.MissingSettings {
		fmt.Fprintf(w, "  %s is required but has no value\n", k)
	}
}

// displayVersion normalizes a semantic version and marks prereleases.
// Versions that do not parse are shown as declared.
func displayVersion(v string) string {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return v
	}
	if sv.Prerelease() != "" {
		return sv.String() + " (prerelease)"
	}
	return sv.String()
}
