// Package config manages user-level settings stored at ~/.webext/config.yaml.
// It loads defaults, the config file, and WEBEXT_* environment overrides into
// Viper and exposes typed accessors for the managed extensions directory, the
// logger, the admin server address, remote downloads, and hook guards.
package config
