package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
	"go.uber.org/zap"
)

// Kind classifies a source.
type Kind string

// Source kinds, in classification order.
const (
	KindDirectory Kind = "directory"
	KindArchive   Kind = "archive"
	KindURL       Kind = "url"
)

const stagePrefix = "stage-"

// DefaultTimeout bounds a download when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// DefaultMaxBytes caps a download when no cap is configured.
const DefaultMaxBytes int64 = 100 << 20

// Staged is a resolved package root ready to be committed.
type Staged struct {
	Kind       Kind
	Root       string
	Descriptor *manifest.Descriptor

	stageDir string
}

// Cleanup removes the staging directory, if any. It is safe to call more
// than once.
func (s *Staged) Cleanup() {
	if s == nil || s.stageDir == "" {
		return
	}
	os.RemoveAll(s.stageDir)
	s.stageDir = ""
}

// Resolver resolves install sources.
type Resolver struct {
	tempDir    string
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	userAgent  string
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = c
	}
}

// WithTimeout bounds each download.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxBytes caps the size of a downloaded archive.
func WithMaxBytes(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithUserAgent sets the User-Agent header sent with downloads.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		r.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver staging archives under tempDir.
func NewResolver(tempDir string, opts ...Option) *Resolver {
	r := &Resolver{
		tempDir:    tempDir,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		maxBytes:   DefaultMaxBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify reports how src will be resolved without touching the network.
func Classify(src string) (Kind, error) {
	if src == "" {
		return "", fmt.Errorf("%w: empty source", extension.ErrSourceResolution)
	}
	if info, err := os.Stat(src); err == nil {
		if info.IsDir() {
			return KindDirectory, nil
		}
		if archiveFormat(src) != formatUnknown {
			return KindArchive, nil
		}
		return "", fmt.Errorf("%w: %s is not a directory or a .zip, .tar.gz or .tgz archive",
			extension.ErrSourceResolution, src)
	}
	u, err := url.Parse(src)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %s is not a local path or an http(s) URL",
			extension.ErrSourceResolution, src)
	}
	return KindURL, nil
}

// Resolve classifies src, stages it when needed, and loads the package
// descriptor. The caller must call Cleanup on the result. On error nothing
// is left behind.
func (r *Resolver) Resolve(ctx context.Context, src string) (*Staged, error) {
	kind, err := Classify(src)
	if err != nil {
		return nil, err
	}

	staged := &Staged{Kind: kind}
	switch kind {
	case KindDirectory:
		staged.Root, err = packageRoot(src)
	case KindArchive:
		err = r.stageArchive(staged, src)
	case KindURL:
		err = r.stageURL(ctx, staged, src)
	}
	if err != nil {
		staged.Cleanup()
		return nil, err
	}

	desc, err := manifest.Load(staged.Root)
	if err != nil {
		staged.Cleanup()
		return nil, fmt.Errorf("%w: %w", extension.ErrPackageLayout, err)
	}
	staged.Descriptor = desc
	r.logger.Debug("source resolved",
		zap.String("source", src),
		zap.String("kind", string(kind)),
		zap.String("extension", desc.Name))
	return staged, nil
}

func (r *Resolver) newStage(staged *Staged) (string, error) {
	if err := os.MkdirAll(r.tempDir, 0755); err != nil {
		return "", fmt.Errorf("creating staging area: %w", err)
	}
	dir := filepath.Join(r.tempDir, stagePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	staged.stageDir = dir
	return dir, nil
}

func (r *Resolver) stageArchive(staged *Staged, archive string) error {
	stage, err := r.newStage(staged)
	if err != nil {
		return err
	}
	dest := filepath.Join(stage, "root")
	if err := Extract(archive, dest); err != nil {
		return err
	}
	staged.Root, err = packageRoot(dest)
	return err
}

func (r *Resolver) stageURL(ctx context.Context, staged *Staged, rawURL string) error {
	stage, err := r.newStage(staged)
	if err != nil {
		return err
	}
	archive, err := r.download(ctx, rawURL, stage)
	if err != nil {
		return err
	}
	dest := filepath.Join(stage, "root")
	if err := Extract(archive, dest); err != nil {
		return err
	}
	staged.Root, err = packageRoot(dest)
	return err
}

// packageRoot locates the single package under dir: either dir itself holds
// a descriptor, or exactly one of its top-level directories does.
func packageRoot(dir string) (string, error) {
	if manifest.HasDescriptor(dir) {
		return dir, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", extension.ErrPackageLayout, dir, err)
	}
	var candidates []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "__MACOSX") {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		if manifest.HasDescriptor(sub) {
			candidates = append(candidates, sub)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", fmt.Errorf("%w: no %s found in %s or its top-level directories",
			extension.ErrPackageLayout, manifest.FileYAML, dir)
	default:
		return "", fmt.Errorf("%w: %d packages found in %s, expected exactly one",
			extension.ErrPackageLayout, len(candidates), dir)
	}
}
