package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "cookie", cfg.SessionStore)
	assert.Equal(t, "local", cfg.StorageType)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	_, err := Load([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")})

	assert.ErrorContains(t, err, "env file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("S3_BUCKET", "attachments")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load([]string{"--port", "9090"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "attachments", cfg.S3Bucket)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\nsession:\n  store: redis\n"), 0o600))

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.SessionStore)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestValidate(t *testing.T) {
	valid := Config{
		DBDriver:      "postgres",
		LogLevel:      "info",
		SessionStore:  "cookie",
		SessionSecret: "s",
		HTTPPort:      8080,
		StorageType:   "local",
		StorageRoot:   "uploads",
	}
	require.NoError(t, valid.Validate())

	badDriver := valid
	badDriver.DBDriver = "oracle"
	assert.Error(t, badDriver.Validate())

	missingBucket := valid
	missingBucket.StorageType = "s3"
	assert.ErrorContains(t, missingBucket.Validate(), "bucket")

	badLevel := valid
	badLevel.LogLevel = "trace"
	assert.Error(t, badLevel.Validate())
}
