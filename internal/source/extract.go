package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/webext-labs/webext/internal/extension"
)

type format int

const (
	formatUnknown format = iota
	formatZip
	formatTarGz
)

// archiveFormat detects the archive format from the file name.
func archiveFormat(name string) format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return formatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz
	}
	return formatUnknown
}

// sniffFormat detects the archive format from its leading bytes.
func sniffFormat(path string) format {
	f, err := os.Open(path)
	if err != nil {
		return formatUnknown
	}
	defer f.Close()

	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return formatZip
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}):
		return formatTarGz
	}
	return formatUnknown
}

// Extract unpacks a .zip, .tar.gz or .tgz archive into destDir. Entries that
// would land outside destDir are rejected. Symlinks and special files are
// skipped.
func Extract(archivePath, destDir string) error {
	fmtKind := archiveFormat(archivePath)
	if fmtKind == formatUnknown {
		fmtKind = sniffFormat(archivePath)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating extraction directory: %w", err)
	}
	switch fmtKind {
	case formatZip:
		return extractZip(archivePath, destDir)
	case formatTarGz:
		return extractTarGz(archivePath, destDir)
	}
	return fmt.Errorf("%w: %s is not a zip or tar.gz archive", extension.ErrPackageLayout, filepath.Base(archivePath))
}

// safeJoin resolves an archive entry name under destDir.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	root := filepath.Clean(destDir)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: archive entry %q escapes the extraction directory",
			extension.ErrPackageLayout, name)
	}
	return target, nil
}

func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: creating gzip reader: %w", extension.ErrPackageLayout, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading tar entry: %w", extension.ErrPackageLayout, err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		}
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: opening zip archive: %w", extension.ErrPackageLayout, err)
	}
	defer r.Close()

	for _, zf := range r.File {
		target, err := safeJoin(destDir, zf.Name)
		if err != nil {
			return err
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case mode.IsRegular():
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("%w: opening zip entry: %w", extension.ErrPackageLayout, err)
			}
			err = writeEntry(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", target, err)
	}
	return out.Close()
}
