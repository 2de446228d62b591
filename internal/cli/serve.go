package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/webext-labs/webext/internal/admin"
	"github.com/webext-labs/webext/internal/config"
	"github.com/webext-labs/webext/internal/registry"
	"go.uber.org/zap"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from server.port)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP server",
	Long: `Enable every extension marked enabled and serve the admin API, the routes
and static assets of active extensions, mount point rendering and tools until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withRegistry(func(reg *registry.Registry) error {
			return serve(ctx, cmd, reg, serveAddr())
		})
	},
}

func serveAddr() string { return config.ServerAddr(serveHost, servePort) }

func serve(ctx context.Context, cmd *cobra.Command, reg *registry.Registry, addr string) error {
	out := cmd.OutOrStdout()
	results, err := reg.InitializeAll(ctx)
	if err != nil {
		return report(out, err, "")
	}
	for name, rerr := range results {
		if rerr != nil {
			logger.Warn("extension failed to start", zap.String("extension", name), zap.Error(rerr))
		}
	}

	fmt.Fprintf(out, "Serving on http://%s\n", addr)
	srv := admin.New(reg, admin.WithLogger(logger.Named("admin")))
	if err := srv.Serve(ctx, addr); err != nil {
		return fmt.Errorf("serving admin API: %w", err)
	}
	return nil
}
