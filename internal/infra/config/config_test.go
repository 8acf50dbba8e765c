package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "tradepost", cfg.MongoDB)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.ChatAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.ChatBackoff)
	assert.Equal(t, cfg.S3Endpoint, cfg.S3PublicEndpoint, "public endpoint falls back to the internal one")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CHAT_ESTABLISH_ATTEMPTS", "5")
	t.Setenv("CHAT_ESTABLISH_BACKOFF", "200ms")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.ChatAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.ChatBackoff)
	assert.True(t, cfg.S3UseSSL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CHAT_ESTABLISH_ATTEMPTS", "zero")
	_, err := Load()
	assert.Error(t, err)
}
