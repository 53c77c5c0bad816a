package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GRIEVANCE_MEMORY_MODE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 60*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 30*time.Minute, cfg.Complaint.LockTTL)
	assert.Equal(t, 100, cfg.RateLimit.BlockThreshold)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.True(t, cfg.MemoryMode)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
addr: ":9000"
memory_mode: true
complaint:
  lock_ttl: 10m
kafka:
  brokers: "kafka-1:9092"
`), 0o600))
	t.Setenv("GRIEVANCE_ADDR", ":9100")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Complaint.LockTTL)
	assert.Equal(t, "kafka-1:9092", cfg.Kafka.Brokers)
}

func TestLoadWithFlags(t *testing.T) {
	t.Setenv("GRIEVANCE_ADDR", ":9100")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("addr", ":8080", "")
	flags.Bool("memory", false, "")
	require.NoError(t, flags.Parse([]string{"--memory"}))

	cfg, err := LoadWithFlags("", flags)
	require.NoError(t, err)
	assert.True(t, cfg.MemoryMode)
	assert.Equal(t, ":9100", cfg.Addr, "unset flags leave the environment in charge")

	require.NoError(t, flags.Parse([]string{"--addr", ":7000"}))
	cfg, err = LoadWithFlags("", flags)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
}

func TestValidate(t *testing.T) {
	base := Server{MemoryMode: true, Storage: StorageConfig{Driver: "local"}, Auth: AuthConfig{JWTSigningKey: devJWTSigningKey}}

	t.Run("dev key refused in production", func(t *testing.T) {
		c := base
		c.Environment = EnvProduction
		assert.Error(t, c.Validate())
	})
	t.Run("database required outside memory mode", func(t *testing.T) {
		c := base
		c.MemoryMode = false
		assert.Error(t, c.Validate())
	})
	t.Run("unknown storage driver", func(t *testing.T) {
		c := base
		c.Storage.Driver = "ftp"
		assert.Error(t, c.Validate())
	})
	t.Run("minio needs endpoint", func(t *testing.T) {
		c := base
		c.Storage.Driver = "minio"
		assert.Error(t, c.Validate())
	})
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base.Validate())
	})
}
