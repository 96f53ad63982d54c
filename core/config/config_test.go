package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{Telegram: TelegramConfig{Token: "123:abc"}}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
}

func TestNormalizeRequiresToken(t *testing.T) {
	require.Error(t, Normalize(&Config{}))
	require.Error(t, Normalize(nil))
}

func TestNormalizeRunModes(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "Polling"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg = validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	require.Error(t, Normalize(cfg))
	cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: ":8443", Port: 8443}
	require.NoError(t, Normalize(cfg))

	cfg = validConfig()
	cfg.Telegram.RunMode = "carrier-pigeon"
	require.Error(t, Normalize(cfg))
}

func TestNormalizeRateLimitExcludes(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "MESSAGE"}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{UpdateCallback, UpdateMessage}, cfg.RateLimit.ExcludeUpdates)

	cfg.RateLimit.ExcludeUpdates = []string{"edited_message"}
	require.Error(t, Normalize(cfg))
}

func TestNormalizeStorageDrivers(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Driver = "redis"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "scenebot:session:", cfg.Redis.Prefix)

	cfg = validConfig()
	cfg.Storage.Driver = "PostgreSQL"
	require.Error(t, Normalize(cfg), "host and name are required")
	cfg.Database.Host, cfg.Database.Name = "db", "scenebot"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 5, cfg.Database.MaxConnections)

	cfg = validConfig()
	cfg.Storage.Driver = "etcd"
	require.Error(t, Normalize(cfg))
}

func TestNormalizeStorageLimits(t *testing.T) {
	cases := map[string]func(*Config){
		"lock without redis": func(c *Config) { c.Storage.Lock = true },
		"negative ttl":       func(c *Config) { c.Storage.TTLSeconds = -1 },
		"negative idle":      func(c *Config) { c.Dialogue.IdleTimeoutSeconds = -5 },
		"negative back":      func(c *Config) { c.Dialogue.BackDelayMS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			require.Error(t, Normalize(cfg))
		})
	}

	cfg := validConfig()
	cfg.Storage = StorageConfig{Driver: StorageRedis, Lock: true, TTLSeconds: 60}
	require.NoError(t, Normalize(cfg))
}

func TestDurations(t *testing.T) {
	d := DialogueConfig{IdleTimeoutSeconds: 90, BackDelayMS: 250}
	assert.Equal(t, "1m30s", d.IdleTimeout().String())
	assert.Equal(t, "250ms", d.BackDelay().String())
	assert.Equal(t, "1m0s", StorageConfig{TTLSeconds: 60}.TTL().String())
}

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: from-file
storage:
  driver: redis
dialogue:
  idle_timeout_seconds: 30
`), 0o600))
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Telegram.Token)
	assert.Equal(t, StorageRedis, cfg.Storage.Driver)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 30, cfg.Dialogue.IdleTimeoutSeconds)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadOptionalSkipsTokenAndMissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Empty(t, cfg.Telegram.Token)
}
