package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := LoadConfig()

	assert.Equal(t, TransportWebSocket, cfg.ChannelTransport)
	assert.Equal(t, StoreBadger, cfg.StoreBackend)
	assert.Equal(t, 800*time.Millisecond, cfg.ActivateDelay)
	assert.Equal(t, 120*time.Second, cfg.PaymentDeadline)
	assert.Equal(t, 5*time.Minute, cfg.IdleSoft)
	assert.Equal(t, 15*time.Second, cfg.IdleHard)
	assert.Zero(t, cfg.OrderAgainTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHANNEL_TRANSPORT", "PubNub")
	t.Setenv("PUBNUB_PUBLISH_KEY", "pub")
	t.Setenv("PUBNUB_SUBSCRIBE_KEY", "sub")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("PAYMENT_DEADLINE", "90s")
	t.Setenv("IDLE_SOFT", "not-a-duration")
	t.Setenv("LOG_JSON", "true")

	cfg := LoadConfig()

	assert.Equal(t, TransportPubNub, cfg.ChannelTransport)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 90*time.Second, cfg.PaymentDeadline)
	assert.Equal(t, 5*time.Minute, cfg.IdleSoft)
	assert.True(t, cfg.LogJSON)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown transport", func(c *Config) { c.ChannelTransport = "carrier-pigeon" }},
		{"pubnub without keys", func(c *Config) { c.ChannelTransport = TransportPubNub }},
		{"unknown store", func(c *Config) { c.StoreBackend = "etcd" }},
		{"no api", func(c *Config) { c.APIBaseURL = "" }},
		{"no idle", func(c *Config) { c.IdleHard = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
