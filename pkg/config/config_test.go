package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"weylus/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_UsesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load("non-existent-config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Session.HandshakeTimeout)
	assert.Equal(t, 2*time.Second, cfg.Session.ReconnectDelay)
	assert.Equal(t, 5, cfg.Session.MaxReconnectAttempts)
	assert.Equal(t, domain.QualityHigh, cfg.Video.Quality)
	assert.True(t, cfg.Input.PalmRejectionEnabled)
	assert.Equal(t, 50, cfg.Input.PalmRejectionSensitivity)
	assert.Equal(t, "memory", cfg.Settings.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_LoadsFromYAMLAndAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
server:
  url: "ws://10.0.0.5:1701"
  access_code: "from-file"

session:
  handshake_timeout: 3s
  reconnect_delay: 500ms
  max_reconnect_attempts: 8

video:
  frame_rate: 30
  quality: "ULTRA"
  low_latency_mode: true

input:
  palm_rejection_sensitivity: 80
  pressure_gamma: 1.5

settings:
  backend: "redis"
  redis:
    address: "redis:6379"
    pool_size: 2
    key: "tablet:settings"

logging:
  level: "debug"
`)

	t.Setenv("WEYLUS_ACCESS_CODE", "from-env")
	t.Setenv("WEYLUS_LOG_LEVEL", "warn")
	t.Setenv("WEYLUS_CONTROL_ADDRESS", "127.0.0.1:9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	// YAML values
	assert.Equal(t, "ws://10.0.0.5:1701", cfg.Server.URL)
	assert.Equal(t, 3*time.Second, cfg.Session.HandshakeTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.ReconnectDelay)
	assert.Equal(t, 8, cfg.Session.MaxReconnectAttempts)
	assert.Equal(t, 30, cfg.Video.FrameRate)
	assert.Equal(t, domain.QualityUltra, cfg.Video.Quality)
	assert.True(t, cfg.Video.LowLatencyMode)
	assert.Equal(t, domain.DefaultMaxWidth, cfg.Video.MaxWidth, "unset fields keep defaults")
	assert.Equal(t, 80, cfg.Input.PalmRejectionSensitivity)
	assert.Equal(t, "redis", cfg.Settings.Backend)
	assert.Equal(t, "tablet:settings", cfg.Settings.Redis.Key)
	assert.Equal(t, 3*time.Second, cfg.Settings.Redis.Timeout, "unset redis timeout keeps default")

	// Env overrides
	assert.Equal(t, "from-env", cfg.Server.AccessCode)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9999", cfg.Control.Address)
}

func TestLoad_RejectsInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "video:\n  quality: [")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownQuality(t *testing.T) {
	path := writeTempConfig(t, "video:\n  quality: \"INSANE\"\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "http url rejected",
			mutate:  func(c *Config) { c.Server.URL = "http://host:1701" },
			wantErr: "server.url",
		},
		{
			name:    "zero handshake timeout",
			mutate:  func(c *Config) { c.Session.HandshakeTimeout = 0 },
			wantErr: "session.handshake_timeout",
		},
		{
			name:    "pong timeout not above ping interval",
			mutate:  func(c *Config) { c.Session.PongTimeout = c.Session.PingInterval },
			wantErr: "session.pong_timeout",
		},
		{
			name:    "sensitivity out of range",
			mutate:  func(c *Config) { c.Input.PalmRejectionSensitivity = 101 },
			wantErr: "input.palm_rejection_sensitivity",
		},
		{
			name:    "recover threshold above drop threshold",
			mutate:  func(c *Config) { c.Adaptation.RecoverDropRate = 30 },
			wantErr: "adaptation.recover_drop_rate",
		},
		{
			name: "adaptation thresholds ignored when disabled",
			mutate: func(c *Config) {
				c.Adaptation.Enabled = false
				c.Adaptation.RecoverDropRate = 30
			},
		},
		{
			name:    "unknown settings backend",
			mutate:  func(c *Config) { c.Settings.Backend = "sqlite" },
			wantErr: "settings.backend",
		},
		{
			name: "redis backend needs address",
			mutate: func(c *Config) {
				c.Settings.Backend = "redis"
				c.Settings.Redis.Address = ""
			},
			wantErr: "settings.redis.address",
		},
		{
			name: "redis backend needs timeout",
			mutate: func(c *Config) {
				c.Settings.Backend = "redis"
				c.Settings.Redis.Timeout = 0
			},
			wantErr: "settings.redis.timeout",
		},
		{
			name: "redis backend needs retry attempts",
			mutate: func(c *Config) {
				c.Settings.Backend = "redis"
				c.Settings.Resilience.MaxAttempts = 0
			},
			wantErr: "settings.resilience.max_attempts",
		},
		{
			name: "resilience ignored for memory backend",
			mutate: func(c *Config) {
				c.Settings.Resilience.OpenTimeout = 0
			},
		},
		{
			name: "auth secret needs token ttl",
			mutate: func(c *Config) {
				c.Control.AuthSecret = "secret"
				c.Control.TokenTTL = 0
			},
			wantErr: "control.token_ttl",
		},
		{
			name:    "rate limit needs burst",
			mutate:  func(c *Config) { c.Control.RateLimit.Burst = 0 },
			wantErr: "control.rate_limit",
		},
		{
			name:    "access code with newline",
			mutate:  func(c *Config) { c.Server.AccessCode = "12\n34" },
			wantErr: "server.access_code",
		},
		{
			name: "tracing sample rate",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 2
			},
			wantErr: "tracing.sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitialSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.URL = "ws://host:1701"
	cfg.Input.PressureGamma = 2

	s := cfg.InitialSettings()
	assert.Equal(t, "ws://host:1701", s.ServerURL)
	assert.Equal(t, cfg.Video, s.Video)
	assert.Equal(t, domain.DefaultPalmRejectionConfig(), s.PalmRejection)
	assert.Equal(t, 2.0, s.PressureGamma)
}
