// Package config loads relay configuration per SPEC_FULL.md §4.9, grounded
// in the teacher's lib/config package: viper-backed YAML with an
// environment override prefix, defaults written to disk on first run, and
// debounced fsnotify-driven hot reload of a cached, atomically-swapped
// config struct.
package config

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the relay's full configuration surface.
type Config struct {
	Port     int            `mapstructure:"port"`
	DataDir  string         `mapstructure:"data_dir"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig selects and tunes the persistence backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "bbolt" or "sqlite"
}

// RelayConfig populates the NIP-11 relay information document.
type RelayConfig struct {
	Name          string `mapstructure:"name"`
	Description   string `mapstructure:"description"`
	Contact       string `mapstructure:"contact"`
	Nsec          string `mapstructure:"nsec"`
	Software      string `mapstructure:"software"`
	Version       string `mapstructure:"version"`
	SupportedNIPs []int  `mapstructure:"supported_nips"`
}

// LoggingConfig controls the logging package's level and destination.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"` // "stdout", "file", or "both"
	Path   string `mapstructure:"path"`
}

var (
	cachedConfig atomic.Value // stores *Config

	debounceMutex sync.Mutex
	debounceTimer *time.Timer
)

// Init loads config.yaml (searched in ".", "./config"), applying
// NOSTRELAY_-prefixed environment overrides, writing defaults to disk if no
// file exists, and watching the file for live reload of the cache.
func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("NOSTRELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := viper.SafeWriteConfigAs("config.yaml"); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read created config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := reload(); err != nil {
		return fmt.Errorf("load initial config: %w", err)
	}

	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		debounceMutex.Lock()
		defer debounceMutex.Unlock()

		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(500*time.Millisecond, func() {
			_ = reload()
		})
	})

	return nil
}

func reload() error {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	cachedConfig.Store(cfg)
	return nil
}

// Get returns the current cached configuration. Init must have been called
// first; Get panics otherwise, since every caller runs after startup wiring.
func Get() *Config {
	cfg, ok := cachedConfig.Load().(*Config)
	if !ok {
		panic("config: Get called before Init")
	}
	return cfg
}

func setDefaults() {
	viper.SetDefault("port", 8080)
	viper.SetDefault("data_dir", "./data")

	viper.SetDefault("storage.backend", "bbolt")

	viper.SetDefault("relay.name", "nostrelay")
	viper.SetDefault("relay.description", "a nostr relay")
	viper.SetDefault("relay.contact", "")
	viper.SetDefault("relay.nsec", "")
	viper.SetDefault("relay.software", "https://github.com/portwatch/nostrelay")
	viper.SetDefault("relay.version", "0.1.0")
	viper.SetDefault("relay.supported_nips", []int{1, 9, 11, 40})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.path", "./data/logs")
}
