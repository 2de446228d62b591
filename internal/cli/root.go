package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/branding"
	_ "github.com/webext-labs/webext/internal/builtin"
	"github.com/webext-labs/webext/internal/config"
	"github.com/webext-labs/webext/internal/logging"
	"go.uber.org/zap"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// ErrReported is returned when a command already printed its failure.
var ErrReported = errors.New("command failed")

// logger is built from configuration before every command runs.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` installs, enables, and configures extensions and serves
their hooks, components, routes, and tools to a host application.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		l, err := logging.New(config.LogLevel(), config.LogFormat())
		if err != nil {
			return fmt.Errorf("configuring logging: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}
