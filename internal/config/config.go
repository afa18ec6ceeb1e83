// Package config handles external configuration loading from JSON or YAML
// files, a .env file, and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"evmarket/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Debug         bool          `json:"debug" yaml:"debug"`
	Server        Server        `json:"server" yaml:"server"`
	Database      Database      `json:"database" yaml:"database"`
	JWT           JWT           `json:"jwt" yaml:"jwt"`
	Admin         Admin         `json:"admin" yaml:"admin"`
	Plans         Plans         `json:"plans" yaml:"plans"`
	Placements    Placements    `json:"placements" yaml:"placements"`
	Publish       Publish       `json:"publish" yaml:"publish"`
	Payments      Payments      `json:"payments" yaml:"payments"`
	Redis         Redis         `json:"redis" yaml:"redis"`
	Kafka         Kafka         `json:"kafka" yaml:"kafka"`
	S3            S3            `json:"s3" yaml:"s3"`
	Notifications Notifications `json:"notifications" yaml:"notifications"`
}

// Server holds HTTP server configuration
type Server struct {
	Port         int    `json:"port" yaml:"port"`
	Host         string `json:"host" yaml:"host"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"`
}

// Database holds database configuration
type Database struct {
	Path string `json:"path" yaml:"path"`
}

// JWT holds JWT configuration
type JWT struct {
	Secret          string `json:"secret" yaml:"secret"`
	ExpirationHours int    `json:"expirationHours" yaml:"expirationHours"`
}

// Admin seeds the first operator account on an empty database
type Admin struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
}

// Plans holds subscription prices in whole currency units
type Plans struct {
	Monthly   int64 `json:"monthly" yaml:"monthly"`
	Quarterly int64 `json:"quarterly" yaml:"quarterly"`
	Yearly    int64 `json:"yearly" yaml:"yearly"`
}

// Price returns the configured price for tier
func (p Plans) Price(tier domain.PlanTier) int64 {
	switch tier {
	case domain.PlanMonthly:
		return p.Monthly
	case domain.PlanQuarterly:
		return p.Quarterly
	case domain.PlanYearly:
		return p.Yearly
	}
	return 0
}

// Placements holds pay-per-placement prices keyed by target page
type Placements struct {
	Prices map[string]int64 `json:"prices" yaml:"prices"`
}

// Publish bounds how long an approved ad may run
type Publish struct {
	MaxDays int `json:"maxDays" yaml:"maxDays"`
}

// Payments selects and configures the payment provider
type Payments struct {
	Provider        string `json:"provider" yaml:"provider"` // mock, stripe
	Currency        string `json:"currency" yaml:"currency"`
	StripeSecretKey string `json:"stripeSecretKey" yaml:"stripeSecretKey"`
}

// Redis enables the shared payment claim guard when URL is set
type Redis struct {
	URL             string `json:"url" yaml:"url"`
	ClaimTTLSeconds int    `json:"claimTtlSeconds" yaml:"claimTtlSeconds"`
}

// Kafka enables event publishing when Brokers is non-empty
type Kafka struct {
	Brokers    []string          `json:"brokers" yaml:"brokers"`
	Topic      string            `json:"topic" yaml:"topic"`
	Topics     map[string]string `json:"topics" yaml:"topics"`
	MaxRetries int               `json:"maxRetries" yaml:"maxRetries"`
}

// S3 enables creative uploads when Bucket is set
type S3 struct {
	Endpoint      string `json:"endpoint" yaml:"endpoint"`
	Region        string `json:"region" yaml:"region"`
	AccessKey     string `json:"accessKey" yaml:"accessKey"`
	SecretKey     string `json:"secretKey" yaml:"secretKey"`
	Bucket        string `json:"bucket" yaml:"bucket"`
	PublicBaseURL string `json:"publicBaseUrl" yaml:"publicBaseUrl"`
	UsePathStyle  bool   `json:"usePathStyle" yaml:"usePathStyle"`
	MaxBytes      int64  `json:"maxBytes" yaml:"maxBytes"`
}

// Notifications holds the operator address for partial-write alerts
type Notifications struct {
	OperatorEmail string `json:"operatorEmail" yaml:"operatorEmail"`
}

// Load reads configuration from configPath (JSON, or YAML by extension),
// loads .env if present, and overrides with environment variables
func Load(configPath string) (*Config, error) {
	var cfg Config

	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err == nil {
		if err := unmarshal(cleanPath, data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If file doesn't exist, we continue with empty config and rely on Env Vars

	// .env never overrides variables already set in the process
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// applyEnvOverrides overrides config values with environment variables if set
func (c *Config) applyEnvOverrides() {
	if debug := os.Getenv("DEBUG"); debug != "" {
		c.Debug = debug == "true" || debug == "1"
	}
	if port := envInt("PORT"); port > 0 {
		c.Server.Port = port
	}
	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}

	// JWT secret (critical for production)
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}

	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		c.Admin.Email = email
	}
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		c.Admin.Password = password
	}

	if v := envInt64("PLAN_PRICE_MONTHLY"); v > 0 {
		c.Plans.Monthly = v
	}
	if v := envInt64("PLAN_PRICE_QUARTERLY"); v > 0 {
		c.Plans.Quarterly = v
	}
	if v := envInt64("PLAN_PRICE_YEARLY"); v > 0 {
		c.Plans.Yearly = v
	}
	if v := envInt("PUBLISH_MAX_DAYS"); v > 0 {
		c.Publish.MaxDays = v
	}

	if provider := os.Getenv("PAYMENT_PROVIDER"); provider != "" {
		c.Payments.Provider = provider
	}
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		c.Payments.StripeSecretKey = key
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Redis.URL = url
	}
	if brokers := envCSV("KAFKA_BROKERS"); len(brokers) > 0 {
		c.Kafka.Brokers = brokers
	}
	if topic := os.Getenv("KAFKA_TOPIC"); topic != "" {
		c.Kafka.Topic = topic
	}

	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.S3.Bucket = bucket
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		c.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		c.S3.SecretKey = v
	}

	if v := os.Getenv("OPERATOR_EMAIL"); v != "" {
		c.Notifications.OperatorEmail = v
	}
}

// applyDefaults fills values left empty by both file and environment
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15
	}
	if c.JWT.Secret == "" && c.Debug {
		c.JWT.Secret = "CHANGE_THIS_SECRET_IN_PRODUCTION"
	}
	if c.JWT.ExpirationHours <= 0 {
		c.JWT.ExpirationHours = 24
	}
	if c.Plans.Monthly == 0 {
		c.Plans.Monthly = 4999
	}
	if c.Plans.Quarterly == 0 {
		c.Plans.Quarterly = 12999
	}
	if c.Plans.Yearly == 0 {
		c.Plans.Yearly = 44999
	}
	if c.Placements.Prices == nil {
		c.Placements.Prices = map[string]int64{
			domain.PageHome:      4999,
			domain.PageAbout:     1999,
			domain.PagePricing:   2999,
			domain.PageDashboard: 3999,
			domain.PageStore:     3499,
		}
	}
	if c.Publish.MaxDays <= 0 {
		c.Publish.MaxDays = domain.MaxPublishDays
	}
	if c.Payments.Provider == "" {
		c.Payments.Provider = "mock"
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = "INR"
	}
	if c.Redis.ClaimTTLSeconds <= 0 {
		c.Redis.ClaimTTLSeconds = 600
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "evmarket.ads"
	}
	if c.Kafka.MaxRetries <= 0 {
		c.Kafka.MaxRetries = 3
	}
	if c.S3.Region == "" {
		c.S3.Region = "ap-south-1"
	}
	if c.S3.MaxBytes <= 0 {
		c.S3.MaxBytes = 5 << 20
	}
}

// validate checks that all required configuration values are present
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	cleanDBPath := filepath.Clean(c.Database.Path)
	if !filepath.IsLocal(cleanDBPath) && !filepath.IsAbs(cleanDBPath) {
		return fmt.Errorf("invalid database path: potential path traversal detected")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "CHANGE_THIS_SECRET_IN_PRODUCTION" {
		if !c.Debug {
			return fmt.Errorf("JWT secret must be changed for production")
		}
	}

	for page := range c.Placements.Prices {
		if !domain.IsTargetPage(page) {
			return fmt.Errorf("placement price for unknown page %q", page)
		}
	}

	switch c.Payments.Provider {
	case "mock":
		if !c.Debug {
			return fmt.Errorf("mock payment provider is only allowed in debug mode")
		}
	case "stripe":
		if c.Payments.StripeSecretKey == "" {
			return fmt.Errorf("stripe secret key is required")
		}
	default:
		return fmt.Errorf("unknown payment provider %q", c.Payments.Provider)
	}

	return nil
}

// Address returns the full server address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabasePath returns the cleaned and validated database path
func (c *Config) GetDatabasePath() string {
	return filepath.Clean(c.Database.Path)
}

func envInt(key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return 0
	}
	return v
}

func envInt64(key string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func envCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
