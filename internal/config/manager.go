package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SERP_DATAFORSEO_LOGIN
const EnvPrefix = "SERP"

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads configPath (when non-empty), applies SERP_* environment
// overrides on top of the defaults and validates the result.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setupViper(configPath)

	if configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	config, err := m.decode()
	if err != nil {
		return nil, err
	}

	m.config = config
	return config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return fmt.Errorf("config not loaded")
	}

	if m.viper.ConfigFileUsed() != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to reload config: %w", err)
		}
	}

	config, err := m.decode()
	if err != nil {
		return err
	}

	m.config = config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) decode() (*Config, error) {
	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (m *manager) setupViper(configPath string) {
	if configPath != "" {
		m.viper.SetConfigFile(configPath)
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	setDefaults(m.viper)
}

// setDefaults registers every key so AutomaticEnv can override keys that are
// absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.cache_size", 256)
	v.SetDefault("storage.encrypt_data", false)

	v.SetDefault("dataforseo.base_url", "https://api.dataforseo.com")
	v.SetDefault("dataforseo.login", "")
	v.SetDefault("dataforseo.password", "")
	v.SetDefault("dataforseo.timeout", 60*time.Second)
	v.SetDefault("dataforseo.max_retries", 3)
	v.SetDefault("dataforseo.retry_delay", time.Second)

	v.SetDefault("tracker.workers", 4)
	v.SetDefault("tracker.location_code", 2840)
	v.SetDefault("tracker.language_code", "en")
	v.SetDefault("tracker.depth", 100)
	v.SetDefault("tracker.history_limit", 30)
	v.SetDefault("tracker.fetch_volume", true)

	v.SetDefault("security.encryption_key", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.time_format", "")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Driver {
	case "memory":
	case "file", "sqlite":
		if config.Storage.DataDir == "" {
			return fmt.Errorf("data_dir cannot be empty for %s storage", config.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", config.Storage.Driver)
	}

	if config.Storage.EncryptData && len(config.Security.EncryptionKey) < 16 {
		return fmt.Errorf("encryption_key must be at least 16 characters when encrypt_data is enabled")
	}

	if config.DataForSEO.BaseURL == "" {
		return fmt.Errorf("dataforseo base_url cannot be empty")
	}

	if config.DataForSEO.MaxRetries < 0 {
		return fmt.Errorf("dataforseo max_retries cannot be negative")
	}

	if config.Tracker.Workers <= 0 {
		return fmt.Errorf("tracker workers must be positive")
	}

	if config.Tracker.Depth <= 0 || config.Tracker.Depth > 700 {
		return fmt.Errorf("tracker depth must be between 1 and 700, got %d", config.Tracker.Depth)
	}

	return nil
}
