package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("PendingTTL converts minutes to duration", func(t *testing.T) {
		cfg := &Config{PendingTTLMinutes: 45}
		assert.Equal(t, 45*time.Minute, cfg.PendingTTL())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "ADMIN_TOKEN", "BOT_NAME",
		"BOT_PREFIX", "DEFAULT_AUTO_CHAT", "DEFAULT_ANTI_CALL",
		"DEFAULT_VIEW_ONCE_BYPASS", "DEFAULT_ANTI_DELETE",
		"PENDING_TTL_MINUTES", "LOG_LEVEL", "SESSIONS_DIR",
	}

	originalEnv := map[string]string{}
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "DMS", cfg.BotName)
		assert.Equal(t, "!", cfg.CommandPrefix)
		assert.Equal(t, "sessions", cfg.SessionsDir)
		assert.Equal(t, "false", cfg.DefaultAutoChat)
		assert.Equal(t, "true", cfg.DefaultAntiCall)
		assert.Equal(t, "true", cfg.DefaultViewOnceBypass)
		assert.Equal(t, "true", cfg.DefaultAntiDelete)
		assert.Equal(t, 60, cfg.PendingTTLMinutes)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("PORT", "3000")
		os.Setenv("BOT_PREFIX", ".")
		os.Setenv("DEFAULT_AUTO_CHAT", "true")
		os.Setenv("PENDING_TTL_MINUTES", "15")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, ".", cfg.CommandPrefix)
		assert.Equal(t, "true", cfg.DefaultAutoChat)
		assert.Equal(t, 15, cfg.PendingTTLMinutes)
	})
}
