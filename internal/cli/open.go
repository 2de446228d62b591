package cli

import (
	"fmt"
	"io"

	"github.com/webext-labs/webext/internal/branding"
	"github.com/webext-labs/webext/internal/config"
	"github.com/webext-labs/webext/internal/hooks"
	"github.com/webext-labs/webext/internal/layout"
	"github.com/webext-labs/webext/internal/registry"
	"github.com/webext-labs/webext/internal/source"
	"go.uber.org/zap"
)

// extensionsRoot resolves the managed directory from configuration.
func extensionsRoot() (string, error) {
	return layout.ResolveRoot(config.ExtensionsDir())
}

// openRegistry opens the registry at root with every tunable taken from
// configuration. The caller closes it.
func openRegistry(root string) (*registry.Registry, error) {
	hookOpts := []hooks.Option{hooks.WithLogger(logger)}
	if t := config.HooksTimeout(); t > 0 {
		hookOpts = append(hookOpts, hooks.WithGuard(hooks.TimeoutGuard(t)))
	}
	resolver := source.NewResolver(layout.New(root).Temp(),
		source.WithTimeout(config.DownloadTimeout()),
		source.WithMaxBytes(config.DownloadMaxBytes()),
		source.WithUserAgent(branding.UserAgent()),
		source.WithLogger(logger))

	reg, err := registry.Open(root,
		registry.WithLogger(logger),
		registry.WithDispatcher(hooks.New(hookOpts...)),
		registry.WithResolver(resolver),
		registry.WithStoreTimeout(config.StoreOpenTimeout()))
	if err != nil {
		return nil, fmt.Errorf("opening registry at %s: %w", root, err)
	}
	return reg, nil
}

// withRegistry runs fn against the configured registry and closes it.
func withRegistry(fn func(reg *registry.Registry) error) error {
	root, err := extensionsRoot()
	if err != nil {
		return err
	}
	return withRegistryAt(root, fn)
}

func withRegistryAt(root string, fn func(reg *registry.Registry) error) (err error) {
	reg, err := openRegistry(root)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := reg.Close(); cerr != nil {
			logger.Warn("closing registry reported errors", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()
	return fn(reg)
}

// report prints the outcome of an operation with a check or cross glyph.
// A failed outcome becomes ErrReported.
func report(w io.Writer, err error, msg string) error {
	res := registry.Outcome(err, msg)
	if !res.Success {
		fmt.Fprintf(w, "✗ %s\n", res.Message)
		return ErrReported
	}
	fmt.Fprintf(w, "✓ %s\n", res.Message)
	return nil
}
