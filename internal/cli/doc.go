// Package cli defines the Cobra command tree for the webext CLI. Each file
// in this package registers one top-level command (install, enable, serve,
// etc.) with the root command. Commands open a registry per invocation,
// delegate to it, and only handle argument parsing and output formatting.
package cli
