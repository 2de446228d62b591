// Package source turns an install source into a staged, validated package
// root and commits it into managed storage.
//
// A source is one of:
//
//   - an existing local directory, used in place
//   - an existing local archive (.zip, .tar.gz, .tgz), extracted to a staging dir
//   - an http(s) URL to an archive, downloaded with a size cap and then extracted
//
// Staging directories are always removed by Staged.Cleanup. Commit copies the
// package to a .partial-<uuid> directory under installed/ and renames it into
// place, so a crash never leaves a half-copied package under its final name.
package source
