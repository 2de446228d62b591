package layout

import (
	"fmt"
	"io"
	"os"
)

// Setup creates the managed directory structure, printing progress to w.
// Existing directories are left alone.
func Setup(w io.Writer, root string) (Layout, error) {
	l := New(root)
	for _, dir := range []string{l.Root, l.Installed(), l.Temp()} {
		if err := ensureDir(w, dir, DirPermNormal); err != nil {
			return Layout{}, err
		}
	}
	return l, nil
}

// Ensure creates the managed directories silently.
func (l Layout) Ensure() error {
	_, err := Setup(io.Discard, l.Root)
	return err
}

// ensureDir creates a directory if it doesn't exist.
func ensureDir(w io.Writer, path string, perm os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			fmt.Fprintf(w, "  [SKIP] %s already exists\n", path)
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	// MkdirAll may not apply exact perms if parent dirs needed creation.
	if err := Chmod(path, perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	fmt.Fprintf(w, "  [ OK ] Created %s\n", path)
	return nil
}
