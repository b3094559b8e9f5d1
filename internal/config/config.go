package config

import (
	"net"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DataForSEO DataForSEOConfig `mapstructure:"dataforseo"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Security   SecurityConfig   `mapstructure:"security"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	// Driver is "memory", "file" or "sqlite"
	Driver      string `mapstructure:"driver"`
	DataDir     string `mapstructure:"data_dir"`
	CacheSize   int    `mapstructure:"cache_size"`
	EncryptData bool   `mapstructure:"encrypt_data"`
}

type DataForSEOConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Login      string        `mapstructure:"login"`
	Password   string        `mapstructure:"password"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type TrackerConfig struct {
	Workers      int    `mapstructure:"workers"`
	LocationCode int    `mapstructure:"location_code"`
	LanguageCode string `mapstructure:"language_code"`
	Depth        int    `mapstructure:"depth"`
	HistoryLimit int    `mapstructure:"history_limit"`
	FetchVolume  bool   `mapstructure:"fetch_volume"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// Address is the host:port the HTTP server listens on
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
