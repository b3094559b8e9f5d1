package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewManager().Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "https://api.dataforseo.com", cfg.DataForSEO.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.DataForSEO.Timeout)
	assert.Equal(t, 3, cfg.DataForSEO.MaxRetries)
	assert.Equal(t, 4, cfg.Tracker.Workers)
	assert.Equal(t, 2840, cfg.Tracker.LocationCode)
	assert.Equal(t, "en", cfg.Tracker.LanguageCode)
	assert.Equal(t, 100, cfg.Tracker.Depth)
	assert.True(t, cfg.Tracker.FetchVolume)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  shutdown_timeout: 2s
storage:
  driver: file
  data_dir: /tmp/serp
dataforseo:
  login: user@example.com
  password: secret
  retry_delay: 250ms
tracker:
  workers: 8
  depth: 50
logger:
  level: debug
  format: console
`)

	m := NewManager()
	cfg, err := m.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/serp", cfg.Storage.DataDir)
	assert.Equal(t, "user@example.com", cfg.DataForSEO.Login)
	assert.Equal(t, 250*time.Millisecond, cfg.DataForSEO.RetryDelay)
	assert.Equal(t, 8, cfg.Tracker.Workers)
	assert.Equal(t, 50, cfg.Tracker.Depth)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Same(t, cfg, m.GetConfig())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERP_DATAFORSEO_LOGIN", "env-user")
	t.Setenv("SERP_TRACKER_WORKERS", "2")

	cfg, err := NewManager().Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.DataForSEO.Login)
	assert.Equal(t, 2, cfg.Tracker.Workers)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"unknown driver", "storage:\n  driver: redis\n"},
		{"short encryption key", "storage:\n  encrypt_data: true\nsecurity:\n  encryption_key: short\n"},
		{"zero workers", "tracker:\n  workers: 0\n"},
		{"depth too large", "tracker:\n  depth: 1000\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewManager().Load(writeConfig(t, test.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewManager().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestReload(t *testing.T) {
	m := NewManager()
	require.Error(t, m.Reload(), "reload before load must fail")

	path := writeConfig(t, "tracker:\n  workers: 3\n")
	_, err := m.Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  workers: 6\n"), 0644))
	require.NoError(t, m.Reload())
	assert.Equal(t, 6, m.GetConfig().Tracker.Workers)
}
