package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/webext-labs/webext/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Configuration keys.
const (
	KeyExtensionsDir    = "extensions_dir"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyServerHost       = "server.host"
	KeyServerPort       = "server.port"
	KeyDownloadTimeout  = "download.timeout"
	KeyDownloadMaxBytes = "download.max_bytes"
	KeyHooksTimeout     = "hooks.timeout"
	KeyStoreOpenTimeout = "store.open_timeout"
)

// DefaultMaxDownloadBytes caps remote archive downloads at 100 MiB.
const DefaultMaxDownloadBytes int64 = 100 << 20

// Dir returns the path to the config directory (~/.webext/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.webext/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from defaults, the config file, and environment.
func Load() {
	viper.SetDefault(KeyExtensionsDir, filepath.Join(Dir(), "extensions"))
	viper.SetDefault(KeyLogLevel, "warn")
	viper.SetDefault(KeyLogFormat, "console")
	viper.SetDefault(KeyServerHost, "localhost")
	viper.SetDefault(KeyServerPort, 5000)
	viper.SetDefault(KeyDownloadTimeout, 60*time.Second)
	viper.SetDefault(KeyDownloadMaxBytes, DefaultMaxDownloadBytes)
	viper.SetDefault(KeyHooksTimeout, time.Duration(0))
	viper.SetDefault(KeyStoreOpenTimeout, 2*time.Second)

	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ExtensionsDir returns the configured managed extensions directory.
func ExtensionsDir() string { return viper.GetString(KeyExtensionsDir) }

// LogLevel returns the configured zap level name.
func LogLevel() string { return viper.GetString(KeyLogLevel) }

// LogFormat returns "console" or "json".
func LogFormat() string { return viper.GetString(KeyLogFormat) }

// ServerAddr returns host:port for the admin server. An empty host or a zero
// port falls back to the configured value.
func ServerAddr(host string, port int) string {
	if host == "" {
		host = viper.GetString(KeyServerHost)
	}
	if port == 0 {
		port = viper.GetInt(KeyServerPort)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// DownloadTimeout bounds a single remote archive download.
func DownloadTimeout() time.Duration { return viper.GetDuration(KeyDownloadTimeout) }

// DownloadMaxBytes caps the size of a remote archive.
func DownloadMaxBytes() int64 { return viper.GetInt64(KeyDownloadMaxBytes) }

// HooksTimeout is the per-handler guard; zero disables it.
func HooksTimeout() time.Duration { return viper.GetDuration(KeyHooksTimeout) }

// StoreOpenTimeout bounds how long opening the state file waits for its lock.
func StoreOpenTimeout() time.Duration { return viper.GetDuration(KeyStoreOpenTimeout) }
