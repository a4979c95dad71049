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

	path := filepath.Join(t.TempDir(), "automations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("file values and defaults", func(t *testing.T) {
		path := writeConfig(t, `
postgres:
  dsn: postgres://localhost/automations
polling:
  intervals:
    gmail: 30s
oauth:
  spotify:
    client_id: spotify-client
`)

		config, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, ":8080", config.HTTP.Address)
		assert.Equal(t, "postgres://localhost/automations", config.Postgres.DSN)
		assert.Equal(t, 30*time.Second, config.Polling.IntervalFor("gmail"))
		assert.Equal(t, time.Minute, config.Polling.IntervalFor("spotify"))
		assert.Equal(t, "spotify-client", config.OAuthApp("spotify").ClientID)
		assert.Equal(t, 3, config.Durable.MaxAttempts)
		assert.Equal(t, 24*time.Hour, config.Gmail.RenewalWindow)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, "postgres:\n  dsn: postgres://file\n")

		t.Setenv("AUTOMATIONS_POSTGRES_DSN", "postgres://env")
		t.Setenv("AUTOMATIONS_HTTP_ADDRESS", ":9090")

		config, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "postgres://env", config.Postgres.DSN)
		assert.Equal(t, ":9090", config.HTTP.Address)
	})

	t.Run("missing required keys are reported together", func(t *testing.T) {
		path := writeConfig(t, "credentials:\n  encryption_key: short\ndurable:\n  max_attempts: 0\n")

		_, err := Load(path)
		require.Error(t, err)

		assert.Contains(t, err.Error(), "postgres.dsn is required")
		assert.Contains(t, err.Error(), "credentials.encryption_key")
		assert.Contains(t, err.Error(), "durable.max_attempts")
	})
}

func TestConfig_Redacted(t *testing.T) {
	config := Config{
		Postgres:    PostgresConfig{DSN: "postgres://app:hunter2@db:5432/automations"},
		Credentials: CredentialsConfig{EncryptionKey: "0123456789abcdef"},
		Webhooks:    WebhooksConfig{JWTSecret: "secret"},
		Polling:     PollingConfig{DefaultInterval: time.Minute},
		OAuth: map[string]OAuthAppConfig{
			"spotify": {ClientID: "client", ClientSecret: "shh"},
		},
	}

	redacted := config.Redacted()

	assert.NotContains(t, redacted.Postgres.DSN, "hunter2")
	assert.Contains(t, redacted.Postgres.DSN, "app:")
	assert.Equal(t, "[redacted]", redacted.Credentials.EncryptionKey)
	assert.Equal(t, "[redacted]", redacted.OAuth["spotify"].ClientSecret)
	assert.Equal(t, "client", redacted.OAuth["spotify"].ClientID)
	assert.Empty(t, redacted.Gmail.PushToken)

	assert.Equal(t, "shh", config.OAuth["spotify"].ClientSecret)

	out, err := redacted.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "default_interval: 1m0s")
	assert.Contains(t, string(out), "client_secret: '[redacted]'")
}
