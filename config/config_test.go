package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "DB_HOST", "DB_SSL", "TOKEN_TTL", "BCRYPT_COST", "EVENTS_BACKEND", "STORAGE_BACKEND", "JWT_SECRET"} {
		t.Setenv(key, "")
	}
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.False(t, cfg.Database.UseSSL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Empty(t, cfg.Events.Backend)
	assert.Empty(t, cfg.Storage.Backend)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SSL", "true")
	t.Setenv("JWT_SECRET", "  s3cret ")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("EVENTS_BACKEND", "RabbitMQ")
	t.Setenv("EVENTS_CHANNEL", "sugar")
	t.Setenv("STORAGE_BACKEND", "gcs")
	t.Setenv("GCS_BUCKET", "exports")
	t.Setenv("MINIO_USE_SSL", "1")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, EventsBackendRabbitMQ, cfg.Events.Backend)
	assert.Equal(t, "sugar", cfg.Events.Channel)
	assert.Equal(t, StorageBackendGCS, cfg.Storage.Backend)
	assert.Equal(t, "exports", cfg.Storage.GCS.Bucket)
	assert.True(t, cfg.Storage.Minio.UseSSL)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("TOKEN_TTL", "-5m")
	t.Setenv("DB_SSL", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Database.UseSSL)
}
