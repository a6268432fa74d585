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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
store:
  driver: memory
database:
  redis:
    address: localhost:6379
notifications:
  channel: none
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "complaint-desk", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 7, cfg.Assignment.DefaultDeadlineDays)
	assert.Equal(t, DeletePolicyBlock, cfg.Registry.DeletePolicy)
	assert.Equal(t, "complaint-desk:notifications", cfg.Notifications.Queue.Key)
	assert.Equal(t, "complaint-desk:notifications:retry", cfg.Notifications.Queue.RetryKey)
	assert.Equal(t, "complaint-desk:notifications:dead", cfg.Notifications.Queue.DeadLetterKey)
	assert.Equal(t, 5, cfg.Notifications.Queue.MaxAttempts)
	assert.Equal(t, "complaints", cfg.Search.Index)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_WHATSAPP_URL", "http://wa.local:3000")

	cfg, err := LoadFromFile(writeConfig(t, `
store:
  driver: memory
database:
  redis:
    address: localhost:6379
notifications:
  channel: whatsapp
  whatsapp:
    base_url: ${TEST_WHATSAPP_URL}
`))
	require.NoError(t, err)
	assert.Equal(t, "http://wa.local:3000", cfg.Notifications.WhatsApp.BaseURL)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
workers:
  assign-complaint:
    enabled: true
`))
	require.NoError(t, err)

	wcfg := GetWorkerConfig(cfg, "assign-complaint")
	assert.True(t, wcfg.Enabled)
	assert.Equal(t, 5, wcfg.MaxJobsActive)
	assert.Equal(t, 30000, wcfg.Timeout)
	assert.Equal(t, 3, wcfg.MaxRetries)

	assert.True(t, IsWorkerEnabled(cfg, "unknown-task"))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "store.driver",
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "database.postgres.host",
		},
		{
			name:    "camunda enabled without broker",
			mutate:  func(c *Config) { c.Camunda.Enabled = true },
			wantErr: "camunda.broker_address",
		},
		{
			name:    "unknown delete policy",
			mutate:  func(c *Config) { c.Registry.DeletePolicy = "cascade" },
			wantErr: "registry.delete_policy",
		},
		{
			name: "whatsapp without base url",
			mutate: func(c *Config) {
				c.Notifications.Channel = ChannelWhatsApp
				c.Notifications.WhatsApp.BaseURL = ""
			},
			wantErr: "notifications.whatsapp.base_url",
		},
		{
			name: "search enabled without elasticsearch",
			mutate: func(c *Config) {
				c.Search.Enabled = true
			},
			wantErr: "database.elasticsearch",
		},
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Store.Driver = "memory"
			cfg.Database.Redis.Address = "localhost:6379"
			cfg.Notifications.Channel = ChannelNone
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}
