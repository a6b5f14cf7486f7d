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

	assert.Equal(t, "be-orders", cfg.Service.Name)
	assert.Equal(t, 8087, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout)
	assert.Empty(t, cfg.NATS.URL, "event publishing is opt-in")
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_NAME", "orders_test")
	t.Setenv("NOTIFY_TIMEOUT", "250ms")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "orders_test", cfg.Database.Database)
	assert.Equal(t, 250*time.Millisecond, cfg.Notify.Timeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive notify timeout", func(t *testing.T) {
		t.Setenv("NOTIFY_TIMEOUT", "-1s")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed int falls back to default", func(t *testing.T) {
		t.Setenv("DB_PORT", "not-a-number")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5432, cfg.Database.Port)
	})
}
