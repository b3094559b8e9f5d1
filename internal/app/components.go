package app

import (
	"fmt"
	"io"

	"serp-go/internal/config"
	"serp-go/pkg/api"
	"serp-go/pkg/history"
	"serp-go/pkg/logger"
	"serp-go/pkg/metrics"
	"serp-go/pkg/storage"
	"serp-go/pkg/tracker"
)

// Components are the long-lived services shared by the server and the CLI
type Components struct {
	Storage storage.Storage
	History *history.SnapshotManager
	Tracker *tracker.Tracker
	// Client is nil when no DataForSEO credentials are configured
	Client  *api.DataForSEOClient
	Metrics *metrics.Collector
}

// NewLogger builds the process logger from config and installs it globally.
// It must run before Build so components pick it up.
func NewLogger(cfg config.LoggerConfig, debug bool) *logger.Logger {
	logCfg := logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		TimeFormat: cfg.TimeFormat,
	}
	if debug {
		logCfg.Level = "debug"
	}

	log := logger.New(logCfg)
	logger.SetLogger(log)
	return log
}

// Build wires storage, history, metrics, the DataForSEO client and the tracker
func Build(cfg *config.Config) (*Components, error) {
	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	components := &Components{
		Storage: store,
		History: history.NewSnapshotManager(store),
		Metrics: metrics.NewCollector("serp"),
	}

	var client api.Client
	if cfg.DataForSEO.Login != "" && cfg.DataForSEO.Password != "" {
		dfs, err := api.NewDataForSEOClient(api.Config{
			BaseURL:    cfg.DataForSEO.BaseURL,
			Login:      cfg.DataForSEO.Login,
			Password:   cfg.DataForSEO.Password,
			Timeout:    cfg.DataForSEO.Timeout,
			MaxRetries: cfg.DataForSEO.MaxRetries,
			RetryDelay: cfg.DataForSEO.RetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DataForSEO client: %w", err)
		}
		components.Client = dfs
		client = dfs
	} else {
		logger.GetLogger().Warn("DataForSEO credentials not configured, SERP fetching disabled")
	}

	components.Tracker = tracker.New(client, components.History, tracker.Config{
		Workers:      cfg.Tracker.Workers,
		LocationCode: cfg.Tracker.LocationCode,
		LanguageCode: cfg.Tracker.LanguageCode,
		Depth:        cfg.Tracker.Depth,
		HistoryLimit: cfg.Tracker.HistoryLimit,
		FetchVolume:  cfg.Tracker.FetchVolume,
	})
	components.Tracker.SetRecorder(components.Metrics)

	return components, nil
}

// Close releases storage resources held by the components
func (c *Components) Close() error {
	if closer, ok := c.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return storage.NewMemoryStorage(), nil
	case "file":
		store, err := storage.NewFileStorage(storage.Config{
			DataDir:     cfg.Storage.DataDir,
			CacheSize:   cfg.Storage.CacheSize,
			EncryptData: cfg.Storage.EncryptData,
		}, cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create file storage: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := storage.NewSQLiteStorage(storage.Config{
			DataDir:     cfg.Storage.DataDir,
			EncryptData: cfg.Storage.EncryptData,
		}, cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}
