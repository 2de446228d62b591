package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

// download fetches rawURL into dir and returns the archive path.
func (r *Resolver) download(ctx context.Context, rawURL, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating download request: %w", extension.ErrSourceResolution, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: downloading %s: %w", extension.ErrSourceResolution, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: download returned status %d", extension.ErrSourceResolution, resp.StatusCode)
	}
	if resp.ContentLength > r.maxBytes {
		return "", fmt.Errorf("%w: %w", extension.ErrSourceResolution,
			&SizeLimitExceededError{Limit: r.maxBytes, Read: resp.ContentLength})
	}

	destPath := filepath.Join(dir, downloadName(rawURL))
	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, NewLimitedReader(resp.Body, r.maxBytes))
	if err != nil {
		if IsSizeLimitExceededError(err) {
			return "", fmt.Errorf("%w: %w", extension.ErrSourceResolution, err)
		}
		return "", fmt.Errorf("%w: reading download stream: %w", extension.ErrSourceResolution, err)
	}
	r.logger.Debug("archive downloaded", zap.String("url", rawURL), zap.Int64("bytes", n))
	return destPath, nil
}

// downloadName keeps the URL's archive suffix when it has one so the format
// can be detected without sniffing.
func downloadName(rawURL string) string {
	name := "archive"
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if archiveFormat(base) != formatUnknown {
			name = base
		}
	}
	return name
}

// LimitedReader wraps an io.Reader with a maximum size limit.
// It returns an error when the limit is exceeded.
type LimitedReader struct {
	R     io.Reader
	N     int64
	Limit int64
	read  int64
}

// NewLimitedReader creates a new LimitedReader that will read at most limit bytes.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{R: r, N: limit, Limit: limit}
}

// Read implements io.Reader with size limit enforcement.
func (l *LimitedReader) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		var buf [1]byte
		extra, extraErr := l.R.Read(buf[:])
		if extra > 0 {
			return 0, &SizeLimitExceededError{Limit: l.Limit, Read: l.read + int64(extra)}
		}
		if extraErr == nil {
			extraErr = io.EOF
		}
		return 0, extraErr
	}

	if int64(len(p)) > l.N {
		p = p[0:l.N]
	}
	n, err = l.R.Read(p)
	l.N -= int64(n)
	l.read += int64(n)
	return n, err
}

// SizeLimitExceededError is returned when the size limit is exceeded.
type SizeLimitExceededError struct {
	Limit int64
	Read  int64
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("size limit exceeded: read %s, limit is %s", FormatSize(e.Read), FormatSize(e.Limit))
}

// IsSizeLimitExceededError returns true if the error is a SizeLimitExceededError.
func IsSizeLimitExceededError(err error) bool {
	var sizeLimitErr *SizeLimitExceededError
	return errors.As(err, &sizeLimitErr)
}

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
