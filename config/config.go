package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Proxy    ProxyConfig
	Limits   LimitsConfig
	Fallback FallbackConfig
	Cache    CacheConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogLevel       string   `mapstructure:"log_level"`
}

// UpstreamConfig holds the proxied site and its search APIs
type UpstreamConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	PrimaryAPIURL   string        `mapstructure:"primary_api_url"`
	SecondaryAPIURL string        `mapstructure:"secondary_api_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	AcceptLanguage  string        `mapstructure:"accept_language"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	Retries         int           `mapstructure:"retries"`
	RetryWait       time.Duration `mapstructure:"retry_wait"`
	Sort            string        `mapstructure:"sort"`
	Order           string        `mapstructure:"order"`
}

// ProxyConfig holds the same-origin resource route
type ProxyConfig struct {
	ResourceEndpoint string `mapstructure:"resource_endpoint"`
}

// LimitsConfig bounds the number of items per response
type LimitsConfig struct {
	Default int `mapstructure:"default"`
	Max     int `mapstructure:"max"`
}

// FallbackConfig points at static datasets; empty paths use the bundled ones
type FallbackConfig struct {
	DatasetPath string `mapstructure:"dataset_path"`
	BrandDir    string `mapstructure:"brand_dir"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "none", "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// reservedRoutes cannot be used as the resource endpoint
var reservedRoutes = map[string]bool{
	"/health":          true,
	"/api/health":      true,
	"/api/home/feed":   true,
	"/api/home/items":  true,
	"/api/home/search": true,
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/listproxy/")

	// Environment variable settings
	v.SetEnvPrefix("LISTPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("server.log_level", "info")

	// Upstream defaults
	v.SetDefault("upstream.base_url", "https://jp.mercari.com")
	v.SetDefault("upstream.primary_api_url", "https://api.mercari.jp/v2/search")
	v.SetDefault("upstream.secondary_api_url", "https://api.mercari.jp/items/get_items")
	v.SetDefault("upstream.timeout", "12s")
	v.SetDefault("upstream.user_agent", "Mozilla/5.0 (compatible; ListProxy/1.0)")
	v.SetDefault("upstream.accept_language", "ja-JP,ja;q=0.9")
	v.SetDefault("upstream.rate_per_second", 5.0)
	v.SetDefault("upstream.burst", 5)
	v.SetDefault("upstream.retries", 2)
	v.SetDefault("upstream.retry_wait", "500ms")
	v.SetDefault("upstream.sort", "created_time")
	v.SetDefault("upstream.order", "desc")

	// Proxy defaults
	v.SetDefault("proxy.resource_endpoint", "/proxy")

	// Limit defaults
	v.SetDefault("limits.default", 30)
	v.SetDefault("limits.max", 60)

	// Fallback datasets (empty means bundled)
	v.SetDefault("fallback.dataset_path", "")
	v.SetDefault("fallback.brand_dir", "")

	// Cache defaults
	v.SetDefault("cache.type", "none")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")
}

// validate validates the configuration
func validate(config *Config) error {
	base, err := url.Parse(config.Upstream.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return fmt.Errorf("upstream base URL must be an absolute http(s) URL, got: %q", config.Upstream.BaseURL)
	}

	if config.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got: %s", config.Upstream.Timeout)
	}

	endpoint := config.Proxy.ResourceEndpoint
	if !strings.HasPrefix(endpoint, "/") || strings.Contains(endpoint, "?") {
		return fmt.Errorf("proxy resource endpoint must be an absolute path, got: %q", endpoint)
	}
	if reservedRoutes[endpoint] {
		return fmt.Errorf("proxy resource endpoint %q collides with an API route", endpoint)
	}

	if config.Limits.Max <= 0 {
		return fmt.Errorf("max limit must be positive, got: %d", config.Limits.Max)
	}
	if config.Limits.Default <= 0 || config.Limits.Default > config.Limits.Max {
		return fmt.Errorf("default limit must be between 1 and %d, got: %d", config.Limits.Max, config.Limits.Default)
	}

	switch config.Cache.Type {
	case "none", "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'none', 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	return nil
}
