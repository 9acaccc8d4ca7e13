package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOURCE_BASE_URL", "https://quotes.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://quotes.example", cfg.Source.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 3, cfg.Source.RetryCount)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.False(t, cfg.Sync.Push)
	assert.Equal(t, "memory", cfg.Watermark.Type)
	assert.Equal(t, "memory", cfg.Ledger.Type)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SOURCE_BASE_URL", "https://quotes.example")
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("SYNC_PUSH", "true")
	t.Setenv("WATERMARK_STORE", "file")
	t.Setenv("WATERMARK_PATH", "/var/lib/quotesync/watermark")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Sync.Interval)
	assert.True(t, cfg.Sync.Push)
	assert.Equal(t, "file", cfg.Watermark.Type)
	assert.Equal(t, "/var/lib/quotesync/watermark", cfg.Watermark.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  base_url: https://quotes.example
  api_key: from-file
sync:
  push: true
ledger:
  type: postgresql
  postgres_uri: postgres://localhost/ledger
`), 0o644))

	t.Setenv("QS_CONFIG_FILE", path)
	t.Setenv("SOURCE_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://quotes.example", cfg.Source.BaseURL)
	assert.Equal(t, "from-env", cfg.Source.APIKey, "env wins over file")
	assert.True(t, cfg.Sync.Push)
	assert.Equal(t, "postgresql", cfg.Ledger.Type)
	assert.Equal(t, "postgres://localhost/ledger", cfg.Ledger.PostgresURI)
}

func TestLoad_MissingBaseURL(t *testing.T) {
	t.Setenv("SOURCE_BASE_URL", "")
	t.Setenv("QS_CONFIG_FILE", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source base URL is required")
}

func TestValidate_MalformedBaseURL(t *testing.T) {
	cases := []string{"not a url", "relative/path", "ftp://example.com", "https://"}
	for _, baseURL := range cases {
		t.Setenv("SOURCE_BASE_URL", baseURL)
		_, err := Load()
		assert.Error(t, err, baseURL)
	}
}
