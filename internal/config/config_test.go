package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "tradix-adapter", cfg.ServiceName)
	assert.Equal(t, 9020, cfg.Port)
	assert.Equal(t, "wss://gateway.tradix.io/ws", cfg.GatewayURL)
	assert.Equal(t, "https://api.tradix.io", cfg.HistoryBaseURL)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 24*time.Hour, cfg.WarmStartWindow)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "evt.orders.status.v1", cfg.OutboundSubject)
	assert.Equal(t, 8, cfg.PGMaxConns)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRADIX_GATEWAY_URL", "wss://uat.tradix.io/ws")
	t.Setenv("TRADIX_PORT", "8099")
	t.Setenv("HISTORY_QUERY_TIMEOUT", "3s")
	t.Setenv("WARM_START_WINDOW", "48h")
	t.Setenv("REDIS_DB", "2")

	cfg := Load()

	assert.Equal(t, "wss://uat.tradix.io/ws", cfg.GatewayURL)
	assert.Equal(t, 8099, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 48*time.Hour, cfg.WarmStartWindow)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("TRADIX_PORT", "not-a-port")
	t.Setenv("HISTORY_QUERY_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 9020, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
}
