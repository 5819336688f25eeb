package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", BindAddr: "0.0.0.0", TrustProxy: TrustNone, IdleTimeoutMS: 120000},
		Game:     GameConfig{ID: "pokemon-red", TickIntervalMS: 15000},
		Emulator: EmulatorConfig{Backend: "fake"},
		Relay:    RelayConfig{Mode: ModeServer},
	}
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	c := validConfig()
	c.Relay = RelayConfig{Mode: ModeClient, URL: "wss://relay.example/home/connect", Secret: "sixteen-chars-min"}
	require.NoError(t, c.Validate())
}

func TestValidateTickInterval(t *testing.T) {
	c := validConfig()
	c.Game.TickIntervalMS = 999
	assert.Error(t, c.Validate())
	c.Game.TickIntervalMS = 60001
	assert.Error(t, c.Validate())
	c.Game.TickIntervalMS = 1000
	assert.NoError(t, c.Validate())
}

func TestValidateTrustProxy(t *testing.T) {
	c := validConfig()
	for _, mode := range []string{TrustNone, TrustCloudflare, TrustAny} {
		c.Server.TrustProxy = mode
		assert.NoError(t, c.Validate(), mode)
	}
	c.Server.TrustProxy = "sometimes"
	assert.Error(t, c.Validate())
}

func TestValidateClientMode(t *testing.T) {
	c := validConfig()
	c.Relay.Mode = ModeClient
	assert.Error(t, c.Validate(), "missing url")

	c.Relay.URL = "wss://relay.example/home/connect"
	c.Relay.Secret = "short"
	assert.Error(t, c.Validate(), "short secret")

	c.Relay.Secret = "sixteen-chars-min"
	assert.NoError(t, c.Validate())
}

func TestValidateEmulatorBackend(t *testing.T) {
	c := validConfig()
	c.Emulator.Backend = "sameboy"
	assert.Error(t, c.Validate())
}

func TestValidateAdminSecret(t *testing.T) {
	c := validConfig()
	c.Secrets.Admin = "short"
	assert.Error(t, c.Validate())
	c.Secrets.Admin = "admin-secret-0123456789"
	assert.NoError(t, c.Validate())
}

func TestApplyEnvAutoBanKeys(t *testing.T) {
	t.Setenv("AUTOBAN_RATE_LIMIT_THRESHOLD", "7")
	t.Setenv("AUTOBAN_INVALID_REQUEST_THRESHOLD", "11")
	t.Setenv("AUTOBAN_WINDOW_SECONDS", "120")
	t.Setenv("AUTOBAN_DURATION_SECONDS", "900")

	c := validConfig()
	applyEnv(c)
	assert.Equal(t, 7, c.AutoBan.RateLimitThreshold)
	assert.Equal(t, 11, c.AutoBan.InvalidThreshold)
	assert.Equal(t, 120, c.AutoBan.WindowSeconds)
	assert.Equal(t, 900, c.AutoBan.DurationSeconds)
}

func TestDurationHelpers(t *testing.T) {
	c := validConfig()
	assert.Equal(t, 15*time.Second, c.TickInterval())
	assert.Equal(t, 2*time.Minute, c.IdleTimeout())
	assert.Equal(t, "0.0.0.0:8080", c.Addr())
}
