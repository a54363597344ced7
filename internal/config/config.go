// Package config loads storefront settings from defaults, an optional YAML
// file, an optional .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pricing  pricing.Rules  `yaml:"pricing"`
	Payment  PaymentConfig  `yaml:"payment"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Sessions SessionsConfig `yaml:"sessions"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	Environment    string        `yaml:"environment"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type PaymentConfig struct {
	// BaseURL of payment-service. Empty means the in-process simulator.
	BaseURL        string        `yaml:"base_url"`
	SimulatedDelay time.Duration `yaml:"simulated_delay"`
	Timeout        time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret           string        `yaml:"jwt_secret"`
	TokenTTL            time.Duration `yaml:"token_ttl"`
	RequireVerification bool          `yaml:"require_verification"`
	OAuth               []OAuthApp    `yaml:"oauth"`
}

type OAuthApp struct {
	Name         string `yaml:"name"`
	AuthorizeURL string `yaml:"authorize_url"`
	TokenURL     string `yaml:"token_url"`
	UserInfoURL  string `yaml:"userinfo_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type StorageConfig struct {
	DatabaseURL  string `yaml:"database_url"`
	KafkaBrokers string `yaml:"kafka_brokers"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type SessionsConfig struct {
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Environment:    "development",
			AllowedOrigins: []string{"http://localhost:3000"},
			RequestTimeout: 10 * time.Second,
		},
		Pricing: pricing.DefaultRules(),
		Payment: PaymentConfig{
			SimulatedDelay: 1500 * time.Millisecond,
			Timeout:        30 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Sessions: SessionsConfig{
			IdleTimeout:    2 * time.Hour,
			IdempotencyTTL: 24 * time.Hour,
		},
	}
}

func (c *Config) Production() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if err := c.Pricing.Validate(); err != nil {
		return err
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters (JWT_SECRET)")
	}
	if c.Payment.Timeout < 0 || c.Payment.SimulatedDelay < 0 {
		return errors.New("payment durations must not be negative")
	}
	for _, app := range c.Auth.OAuth {
		if app.Name == "" || app.AuthorizeURL == "" || app.TokenURL == "" || app.UserInfoURL == "" {
			return errors.New("auth.oauth entries need name, authorize_url, token_url and userinfo_url")
		}
	}
	return nil
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Merge copies the non-zero values of other into c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Server.Port != "" {
		c.Server.Port = other.Server.Port
	}
	if other.Server.Environment != "" {
		c.Server.Environment = other.Server.Environment
	}
	if len(other.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = other.Server.AllowedOrigins
	}
	if other.Server.RequestTimeout != 0 {
		c.Server.RequestTimeout = other.Server.RequestTimeout
	}

	if !other.Pricing.FreeShippingThreshold.IsZero() {
		c.Pricing.FreeShippingThreshold = other.Pricing.FreeShippingThreshold
	}
	if !other.Pricing.FlatShippingCost.IsZero() {
		c.Pricing.FlatShippingCost = other.Pricing.FlatShippingCost
	}
	if !other.Pricing.TaxRate.IsZero() {
		c.Pricing.TaxRate = other.Pricing.TaxRate
	}

	if other.Payment.BaseURL != "" {
		c.Payment.BaseURL = other.Payment.BaseURL
	}
	if other.Payment.SimulatedDelay != 0 {
		c.Payment.SimulatedDelay = other.Payment.SimulatedDelay
	}
	if other.Payment.Timeout != 0 {
		c.Payment.Timeout = other.Payment.Timeout
	}

	if other.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = other.Auth.JWTSecret
	}
	if other.Auth.TokenTTL != 0 {
		c.Auth.TokenTTL = other.Auth.TokenTTL
	}
	if other.Auth.RequireVerification {
		c.Auth.RequireVerification = true
	}
	if len(other.Auth.OAuth) > 0 {
		c.Auth.OAuth = other.Auth.OAuth
	}

	if other.Storage.DatabaseURL != "" {
		c.Storage.DatabaseURL = other.Storage.DatabaseURL
	}
	if other.Storage.KafkaBrokers != "" {
		c.Storage.KafkaBrokers = other.Storage.KafkaBrokers
	}
	if other.Catalog.Path != "" {
		c.Catalog.Path = other.Catalog.Path
	}
	if other.Sessions.IdleTimeout != 0 {
		c.Sessions.IdleTimeout = other.Sessions.IdleTimeout
	}
	if other.Sessions.IdempotencyTTL != 0 {
		c.Sessions.IdempotencyTTL = other.Sessions.IdempotencyTTL
	}
}

// Read builds the effective config: defaults, then CONFIG_FILE (or path),
// then .env, then environment variables.
func Read(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path == "" {
		path = getenv("CONFIG_FILE", "")
	}
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileCfg)
	}

	env, err := fromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Merge(env)
	if v, ok := os.LookupEnv("PAYMENT_DELAY_MS"); ok && strings.TrimSpace(v) == "0" {
		cfg.Payment.SimulatedDelay = 0
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	c := &Config{}
	c.Server.Port = getenv("PORT", "")
	c.Server.Environment = getenv("ENVIRONMENT", "")
	if origins := getenv("CORS_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitCSV(origins)
	}
	c.Payment.BaseURL = strings.TrimRight(getenv("PAYMENT_BASE_URL", ""), "/")
	c.Auth.JWTSecret = getenv("JWT_SECRET", "")
	c.Auth.RequireVerification = parseBool(getenv("REQUIRE_EMAIL_VERIFICATION", ""))
	c.Storage.DatabaseURL = getenv("DATABASE_URL", "")
	c.Storage.KafkaBrokers = getenv("KAFKA_BROKERS", "")
	c.Catalog.Path = getenv("CATALOG_FILE", "")

	var err error
	if c.Server.RequestTimeout, err = durationMS("REQUEST_TIMEOUT_MS"); err != nil {
		return nil, err
	}
	if c.Payment.SimulatedDelay, err = durationMS("PAYMENT_DELAY_MS"); err != nil {
		return nil, err
	}
	if c.Payment.Timeout, err = durationMS("PAYMENT_TIMEOUT_MS"); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*decimal.Decimal{
		"FREE_SHIPPING_THRESHOLD": &c.Pricing.FreeShippingThreshold,
		"FLAT_SHIPPING_COST":      &c.Pricing.FlatShippingCost,
		"TAX_RATE":                &c.Pricing.TaxRate,
	} {
		if v := getenv(key, ""); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return c, nil
}

func durationMS(key string) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true" || v == "yes"
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
