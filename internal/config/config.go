package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Session  SessionConfig  `mapstructure:"session"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Shipping ShippingConfig `mapstructure:"shipping"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrackingQueue   int           `mapstructure:"tracking_queue"`
	ResumeInterval  time.Duration `mapstructure:"resume_interval"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SessionConfig struct {
	Lifetime time.Duration `mapstructure:"lifetime"`
	Secure   bool          `mapstructure:"secure"`
}

type PaymentConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	KeyID         string        `mapstructure:"key_id"`
	KeySecret     string        `mapstructure:"key_secret"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ShippingConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Email         string        `mapstructure:"email"`
	Password      string        `mapstructure:"password"`
	WebhookToken  string        `mapstructure:"webhook_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Buffer  int      `mapstructure:"buffer"`
}

type AuthConfig struct {
	LegacyAdminEmails []string `mapstructure:"legacy_admin_emails"`
	// LegacyUntilRaw is an RFC 3339 timestamp or a 2006-01-02 date.
	LegacyUntilRaw string    `mapstructure:"legacy_until"`
	LegacyUntil    time.Time `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":4000")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.tracking_queue", 256)
	v.SetDefault("server.resume_interval", 10*time.Minute)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "bookshop")

	v.SetDefault("session.lifetime", 24*time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("payment.base_url", "")
	v.SetDefault("payment.key_id", "")
	v.SetDefault("payment.key_secret", "")
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.timeout", 30*time.Second)

	v.SetDefault("shipping.base_url", "")
	v.SetDefault("shipping.email", "")
	v.SetDefault("shipping.password", "")
	v.SetDefault("shipping.webhook_token", "")
	v.SetDefault("shipping.timeout", 30*time.Second)
	v.SetDefault("shipping.retry_attempts", 3)
	v.SetDefault("shipping.retry_backoff", 2*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "bookshop.events")
	v.SetDefault("kafka.buffer", 1024)

	v.SetDefault("auth.legacy_admin_emails", []string{})
	v.SetDefault("auth.legacy_until", "")
}

// Load reads .env (if present), then config.yaml from ./ or ./deploy/, then
// the environment. Environment names are the key path upper-cased with
// dots turned into underscores, e.g. MONGO_URI or PAYMENT_KEY_SECRET.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./")
	v.AddConfigPath("./deploy/")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Auth.LegacyAdminEmails = splitList(cfg.Auth.LegacyAdminEmails)
	if raw := strings.TrimSpace(cfg.Auth.LegacyUntilRaw); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("config: auth.legacy_until: %w", err)
		}
		cfg.Auth.LegacyUntil = t
	}
	return &cfg, nil
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// Validate reports missing values the server cannot start without.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("config: MONGO_URI is required")
	}
	if c.Payment.KeyID != "" && c.Payment.KeySecret == "" {
		return errors.New("config: PAYMENT_KEY_SECRET is required when PAYMENT_KEY_ID is set")
	}
	return nil
}

func (c *Config) PaymentsEnabled() bool {
	return c.Payment.KeyID != ""
}

func (c *Config) ShippingEnabled() bool {
	return c.Shipping.Email != "" && c.Shipping.Password != ""
}
