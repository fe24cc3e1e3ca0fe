package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.vn/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (STOREFRONT_API_KEY_PEPPER)" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Loyalty      LoyaltyConfig
	Shipping     ShippingConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoyaltyConfig points at the Loyalty Balance API. An empty BaseURL
// disables point redemption.
type LoyaltyConfig struct {
	BaseURL string        `default:"" usage:"Loyalty Balance API base URL" flag:"loyalty-base-url"`
	Timeout time.Duration `default:"5s" usage:"Loyalty Balance API request timeout" flag:"loyalty-timeout"`
	// HealthPath, when set, adds the loyalty API to the readiness probe.
	HealthPath      string `default:"" usage:"Loyalty API path probed by /readyz" flag:"loyalty-health-path"`
	MinRedeemPoints int64  `default:"0" usage:"Smallest redeemable point amount, 0 disables the minimum" flag:"loyalty-min-points"`
	// ServiceToken, when set, replaces the shopper's bearer token on
	// balance lookups.
	ServiceToken string `default:"" usage:"Fixed bearer token for the Loyalty Balance API" flag:"loyalty-service-token"`
}

// ShippingConfig sets the flat shipping fee and the free-shipping threshold
// in VND.
type ShippingConfig struct {
	Fee           int64 `default:"30000" usage:"Flat shipping fee in VND" flag:"shipping-fee"`
	FreeThreshold int64 `default:"500000" usage:"Subtotal in VND from which shipping is free" flag:"free-shipping-threshold"`
}

// LoadConfig loads configuration from environment variables, flags, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "STOREFRONT"
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	case c.Shipping.Fee < 0:
		return errors.Errorf("shipping fee must not be negative, got %d", c.Shipping.Fee)
	case c.Shipping.FreeThreshold <= 0:
		return errors.Errorf("free shipping threshold must be positive, got %d", c.Shipping.FreeThreshold)
	case c.Loyalty.MinRedeemPoints < 0:
		return errors.Errorf("loyalty minimum points must not be negative, got %d", c.Loyalty.MinRedeemPoints)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
