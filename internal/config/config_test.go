package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Store.RefreshInterval)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "metrics_history", cfg.BigQuery.Table)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 5, cfg.Jobs.Workers)
	assert.Equal(t, 3, cfg.Jobs.MaxRetries)
	assert.NotEmpty(t, cfg.Auth.CredentialsPath)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://finance.example.com"
timeout = "5s"
rate_limit = 2.5

[store]
refresh_interval = "1m"

[log]
level = "debug"
format = "json"

[notion]
goals_db = "goals-db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://finance.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.InDelta(t, 2.5, cfg.API.RateLimit, 0.0001)
	assert.Equal(t, time.Minute, cfg.Store.RefreshInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "goals-db", cfg.Notion.GoalsDB)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://file.example.com"
`)
	t.Setenv("FINDASH_API_BASE_URL", "https://env.example.com")
	t.Setenv("FINDASH_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "relative base url", body: "[api]\nbase_url = \"/api\"\n"},
		{name: "refresh interval too short", body: "[store]\nrefresh_interval = \"100ms\"\n"},
		{name: "unknown log format", body: "[log]\nformat = \"xml\"\n"},
		{name: "bigquery without project", body: "[bigquery]\nenabled = true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
