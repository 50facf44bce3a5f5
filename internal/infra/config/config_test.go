package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir()) // sin .env ni config.yaml
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("LAVALINK_HOST", "localhost")
	t.Setenv("LAVALINK_PASSWORD", "youshallnotpass")
	t.Setenv("DEFAULT_PREFIXES", "a!, ?")
	t.Setenv("EMPTY_CHANNEL_GRACE", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a!", "?"}, cfg.Prefixes)
	assert.Equal(t, 45*time.Second, cfg.EmptyChannelGrace)
	assert.Equal(t, 2333, cfg.LavalinkPort)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:2333", cfg.LavalinkBaseURL())
}

func TestValidate_CollectsMissing(t *testing.T) {
	err := Config{LavalinkPort: 2333, EmptyChannelGrace: time.Second, Prefixes: []string{"!"}}.Validate()
	require.Error(t, err)
	for _, k := range []string{"DATABASE_URL", "DISCORD_BOT_TOKEN", "LAVALINK_HOST", "LAVALINK_PASSWORD"} {
		assert.Contains(t, err.Error(), k)
	}
}
