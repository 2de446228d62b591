// Package registry owns the extension lifecycle. It installs packages from a
// source into managed storage, loads their code modules, drives capability
// registration into the hook dispatcher and the catalogs on enable and
// disable, and persists metadata and settings in the state file.
//
// Every public operation returns an error wrapping one of the sentinels in
// package extension, and Outcome turns that into a Result for the CLI and the
// admin API. Operations on the same extension name are serialized; different
// names never block each other.
package registry
