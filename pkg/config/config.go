package config

import (
	"fmt"
	"os"
	"time"

	"weylus/internal/core/domain"
	"weylus/pkg/validation"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		URL        string `yaml:"url"`
		AccessCode string `yaml:"access_code"`
	} `yaml:"server"`

	Session struct {
		HandshakeTimeout       time.Duration `yaml:"handshake_timeout"`
		ReconnectDelay         time.Duration `yaml:"reconnect_delay"`
		MaxReconnectAttempts   int           `yaml:"max_reconnect_attempts"`
		PingInterval           time.Duration `yaml:"ping_interval"`
		PongTimeout            time.Duration `yaml:"pong_timeout"`
		WriteTimeout           time.Duration `yaml:"write_timeout"`
		OutboundQueueSize      int           `yaml:"outbound_queue_size"`
		InputMessagesPerSecond float64       `yaml:"input_messages_per_second"`
		InputBurst             int           `yaml:"input_burst"`
	} `yaml:"session"`

	Video domain.VideoConfig `yaml:"video"`

	Adaptation struct {
		Enabled            bool    `yaml:"enabled"`
		DropRateThreshold  float64 `yaml:"drop_rate_threshold"`
		RecoverDropRate    float64 `yaml:"recover_drop_rate"`
		LatencyThresholdMs int64   `yaml:"latency_threshold_ms"`
		ComfortFactor      float64 `yaml:"comfort_factor"`
		GoodWindows        int     `yaml:"good_windows"`
	} `yaml:"adaptation"`

	Input struct {
		PalmRejectionEnabled     bool    `yaml:"palm_rejection_enabled"`
		PalmRejectionSensitivity int     `yaml:"palm_rejection_sensitivity"`
		PressureGamma            float64 `yaml:"pressure_gamma"`
	} `yaml:"input"`

	Monitoring struct {
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		ShowPerformance   bool          `yaml:"show_performance"`
	} `yaml:"monitoring"`

	Control struct {
		Enabled         bool          `yaml:"enabled"`
		Address         string        `yaml:"address"`
		AuthSecret      string        `yaml:"auth_secret"`
		TokenTTL        time.Duration `yaml:"token_ttl"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			Enabled           bool    `yaml:"enabled"`
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"rate_limit"`
	} `yaml:"control"`

	Settings struct {
		Backend string `yaml:"backend"` // memory | redis
		Redis   struct {
			Address  string        `yaml:"address"`
			Password string        `yaml:"password"`
			DB       int           `yaml:"db"`
			PoolSize int           `yaml:"pool_size"`
			Timeout  time.Duration `yaml:"timeout"`
			Key      string        `yaml:"key"`
		} `yaml:"redis"`
		// Resilience applies to the redis backend only.
		Resilience struct {
			MaxAttempts      int           `yaml:"max_attempts"`
			RetryDelay       time.Duration `yaml:"retry_delay"`
			FailureThreshold int           `yaml:"failure_threshold"`
			OpenTimeout      time.Duration `yaml:"open_timeout"`
		} `yaml:"resilience"`
	} `yaml:"settings"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.URL != "" {
		if err := validation.ValidateServerURL(c.Server.URL); err != nil {
			return fmt.Errorf("server.url: %w", err)
		}
	}
	if err := validation.ValidateAccessCode(c.Server.AccessCode); err != nil {
		return fmt.Errorf("server.access_code: %w", err)
	}

	// Session
	if c.Session.HandshakeTimeout <= 0 {
		return fmt.Errorf("session.handshake_timeout must be > 0")
	}
	if c.Session.ReconnectDelay < 0 {
		return fmt.Errorf("session.reconnect_delay must be >= 0")
	}
	if c.Session.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("session.max_reconnect_attempts must be > 0")
	}
	if c.Session.PingInterval <= 0 {
		return fmt.Errorf("session.ping_interval must be > 0")
	}
	if c.Session.PongTimeout <= c.Session.PingInterval {
		return fmt.Errorf("session.pong_timeout must be > session.ping_interval")
	}
	if c.Session.WriteTimeout <= 0 {
		return fmt.Errorf("session.write_timeout must be > 0")
	}
	if c.Session.OutboundQueueSize <= 0 {
		return fmt.Errorf("session.outbound_queue_size must be > 0")
	}
	if c.Session.InputMessagesPerSecond < 0 {
		return fmt.Errorf("session.input_messages_per_second must be >= 0")
	}

	// Video
	if err := validation.ValidateVideoConfig(c.Video); err != nil {
		return fmt.Errorf("video: %w", err)
	}

	// Adaptation
	if c.Adaptation.Enabled {
		if c.Adaptation.RecoverDropRate >= c.Adaptation.DropRateThreshold {
			return fmt.Errorf("adaptation.recover_drop_rate must be < adaptation.drop_rate_threshold")
		}
		if c.Adaptation.LatencyThresholdMs <= 0 {
			return fmt.Errorf("adaptation.latency_threshold_ms must be > 0")
		}
		if c.Adaptation.ComfortFactor <= 0 || c.Adaptation.ComfortFactor > 1 {
			return fmt.Errorf("adaptation.comfort_factor must be in (0, 1]")
		}
		if c.Adaptation.GoodWindows <= 0 {
			return fmt.Errorf("adaptation.good_windows must be > 0")
		}
	}

	// Input
	if err := validation.ValidateSensitivity(c.Input.PalmRejectionSensitivity); err != nil {
		return fmt.Errorf("input.palm_rejection_sensitivity: %w", err)
	}
	if c.Input.PressureGamma <= 0 {
		return fmt.Errorf("input.pressure_gamma must be > 0")
	}

	// Monitoring
	if c.Monitoring.MetricsInterval <= 0 {
		return fmt.Errorf("monitoring.metrics_interval must be > 0")
	}

	// Control
	if c.Control.Enabled {
		if c.Control.Address == "" {
			return fmt.Errorf("control.address must not be empty when control.enabled=true")
		}
		if c.Control.ShutdownTimeout <= 0 {
			return fmt.Errorf("control.shutdown_timeout must be > 0")
		}
		if c.Control.AuthSecret != "" && c.Control.TokenTTL <= 0 {
			return fmt.Errorf("control.token_ttl must be > 0 when control.auth_secret is set")
		}
		if c.Control.RateLimit.Enabled && (c.Control.RateLimit.RequestsPerSecond <= 0 || c.Control.RateLimit.Burst <= 0) {
			return fmt.Errorf("control.rate_limit.requests_per_second and burst must be > 0")
		}
	}

	// Settings
	switch c.Settings.Backend {
	case "memory":
	case "redis":
		if c.Settings.Redis.Address == "" {
			return fmt.Errorf("settings.redis.address must not be empty when settings.backend=redis")
		}
		if c.Settings.Redis.PoolSize <= 0 {
			return fmt.Errorf("settings.redis.pool_size must be > 0 when settings.backend=redis")
		}
		if c.Settings.Redis.Timeout <= 0 {
			return fmt.Errorf("settings.redis.timeout must be > 0 when settings.backend=redis")
		}
		if c.Settings.Redis.Key == "" {
			return fmt.Errorf("settings.redis.key must not be empty when settings.backend=redis")
		}
		if c.Settings.Resilience.MaxAttempts <= 0 {
			return fmt.Errorf("settings.resilience.max_attempts must be > 0")
		}
		if c.Settings.Resilience.FailureThreshold <= 0 {
			return fmt.Errorf("settings.resilience.failure_threshold must be > 0")
		}
		if c.Settings.Resilience.OpenTimeout <= 0 {
			return fmt.Errorf("settings.resilience.open_timeout must be > 0")
		}
	default:
		return fmt.Errorf("settings.backend must be memory or redis, got %q", c.Settings.Backend)
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if err := validation.ValidateUnitInterval(c.Tracing.SampleRate, "tracing.sample_rate"); err != nil {
			return err
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Session.HandshakeTimeout = domain.WebSocketTimeout
	cfg.Session.ReconnectDelay = domain.ReconnectDelay
	cfg.Session.MaxReconnectAttempts = domain.MaxReconnectAttempts
	cfg.Session.PingInterval = 15 * time.Second
	cfg.Session.PongTimeout = 30 * time.Second
	cfg.Session.WriteTimeout = 5 * time.Second
	cfg.Session.OutboundQueueSize = 64
	cfg.Session.InputMessagesPerSecond = 0 // unpaced
	cfg.Session.InputBurst = 32

	cfg.Video = domain.DefaultVideoConfig()

	cfg.Adaptation.Enabled = true
	cfg.Adaptation.DropRateThreshold = 20
	cfg.Adaptation.RecoverDropRate = 2
	cfg.Adaptation.LatencyThresholdMs = 150
	cfg.Adaptation.ComfortFactor = 0.5
	cfg.Adaptation.GoodWindows = 3

	palm := domain.DefaultPalmRejectionConfig()
	cfg.Input.PalmRejectionEnabled = palm.Enabled
	cfg.Input.PalmRejectionSensitivity = palm.Sensitivity
	cfg.Input.PressureGamma = 1.0

	cfg.Monitoring.MetricsInterval = time.Second
	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.ShowPerformance = false

	cfg.Control.Enabled = true
	cfg.Control.Address = "127.0.0.1:1702"
	cfg.Control.TokenTTL = 24 * time.Hour
	cfg.Control.ShutdownTimeout = 10 * time.Second
	cfg.Control.RateLimit.Enabled = true
	cfg.Control.RateLimit.RequestsPerSecond = 20
	cfg.Control.RateLimit.Burst = 40
	cfg.Control.RateLimit.MaxConcurrent = 16

	cfg.Settings.Backend = "memory"
	cfg.Settings.Redis.Address = "localhost:6379"
	cfg.Settings.Redis.DB = 0
	cfg.Settings.Redis.PoolSize = 4
	cfg.Settings.Redis.Timeout = 3 * time.Second
	cfg.Settings.Redis.Key = "weylus:settings"
	cfg.Settings.Resilience.MaxAttempts = 3
	cfg.Settings.Resilience.RetryDelay = 100 * time.Millisecond
	cfg.Settings.Resilience.FailureThreshold = 5
	cfg.Settings.Resilience.OpenTimeout = 30 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if u := os.Getenv("WEYLUS_SERVER_URL"); u != "" {
		c.Server.URL = u
	}
	if code := os.Getenv("WEYLUS_ACCESS_CODE"); code != "" {
		c.Server.AccessCode = code
	}
	if level := os.Getenv("WEYLUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("WEYLUS_CONTROL_ADDRESS"); addr != "" {
		c.Control.Address = addr
	}
	if secret := os.Getenv("WEYLUS_CONTROL_SECRET"); secret != "" {
		c.Control.AuthSecret = secret
	}
}

// PalmRejection returns the input filter configuration.
func (c *Config) PalmRejection() domain.PalmRejectionConfig {
	return domain.PalmRejectionConfig{
		Enabled:     c.Input.PalmRejectionEnabled,
		Sensitivity: c.Input.PalmRejectionSensitivity,
	}
}

// InitialSettings seeds a settings store from the configuration.
func (c *Config) InitialSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.ServerURL = c.Server.URL
	s.AccessCode = c.Server.AccessCode
	s.Video = c.Video
	s.PalmRejection = c.PalmRejection()
	s.PressureGamma = c.Input.PressureGamma
	s.ShowPerformance = c.Monitoring.ShowPerformance
	return s
}
