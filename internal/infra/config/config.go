package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Chat     ChatConfig     `yaml:"chat"`
	View     ViewConfig     `yaml:"view"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// UpstreamConfig locates the external Sparky service.
type UpstreamConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	ChatPath    string        `yaml:"chatPath"`
	SummaryPath string        `yaml:"summaryPath"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChatConfig configures the chat widget.
type ChatConfig struct {
	SessionID string `yaml:"sessionId"`
}

// ViewConfig controls page-session storage.
type ViewConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// MaxViews caps the in-memory store. Zero means no cap.
	MaxViews int         `yaml:"maxViews"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig contains connection information for the shared view store.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_READ_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_WRITE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_CHAT_PATH"); v != "" {
		cfg.Upstream.ChatPath = v
	}
	if v := os.Getenv("UPSTREAM_SUMMARY_PATH"); v != "" {
		cfg.Upstream.SummaryPath = v
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = parsed
		}
	}
	if v := os.Getenv("CHAT_SESSION_ID"); v != "" {
		cfg.Chat.SessionID = v
	}
	if v := os.Getenv("VIEW_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.View.TTL = parsed
		}
	}
	if v := os.Getenv("VIEW_MAX_VIEWS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.View.MaxViews = parsed
		}
	}
	if v := os.Getenv("VIEW_REDIS_ENABLED"); v != "" {
		cfg.View.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("VIEW_REDIS_ADDR"); v != "" {
		cfg.View.Redis.Addr = v
	}
	if v := os.Getenv("VIEW_REDIS_PREFIX"); v != "" {
		cfg.View.Redis.Prefix = v
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:     ":8080",
			ReadTimeout: 5 * time.Second,
			// Summaries can take a while upstream.
			WriteTimeout: 3 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
		},
		Upstream: UpstreamConfig{
			BaseURL:     "http://localhost:5000",
			ChatPath:    "/chat",
			SummaryPath: "/process-youtube",
		},
		Chat: ChatConfig{
			SessionID: "my-unique-chat-id",
		},
		View: ViewConfig{
			TTL:      2 * time.Hour,
			MaxViews: 10000,
			Redis: RedisConfig{
				Prefix: "sparky",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 {
		return errors.New("http timeouts cannot be negative")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	base, err := url.Parse(strings.TrimSpace(c.Upstream.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.New("upstream.baseUrl must be an absolute URL")
	}
	if c.Upstream.Timeout < 0 {
		return errors.New("upstream.timeout cannot be negative")
	}
	if strings.TrimSpace(c.Chat.SessionID) == "" {
		return errors.New("chat.sessionId cannot be empty")
	}
	if c.View.TTL < 0 {
		return errors.New("view.ttl cannot be negative")
	}
	if c.View.MaxViews < 0 {
		return errors.New("view.maxViews cannot be negative")
	}
	if c.View.Redis.Enabled && strings.TrimSpace(c.View.Redis.Addr) == "" {
		return errors.New("view.redis.addr cannot be empty when redis is enabled")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}
