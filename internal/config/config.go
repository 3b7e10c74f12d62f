package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultWebhookURL = "https://api.brokerreviews.example/webhooks/telegram"

type Config struct {
	Env        string           `yaml:"env"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Moderation ModerationConfig `yaml:"moderation"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	ServiceRole string `yaml:"service_role"`
}

type TelegramConfig struct {
	Token          string        `yaml:"token"`
	ChannelID      string        `yaml:"channel_id"`
	WebhookURL     string        `yaml:"webhook_url"`
	WebhookSecret  string        `yaml:"webhook_secret"`
	APIEndpoint    string        `yaml:"api_endpoint"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ModerationConfig struct {
	AllowedIssuers    []string      `yaml:"allowed_issuers"`
	CommandsPerMinute int           `yaml:"commands_per_minute"`
	DedupTTL          time.Duration `yaml:"dedup_ttl"`
	NotifyMaxElapsed  time.Duration `yaml:"notify_max_elapsed"`
	ReminderInterval  time.Duration `yaml:"reminder_interval"`
	ReminderAfter     time.Duration `yaml:"reminder_after"`
	ReminderBatch     int           `yaml:"reminder_batch"`
	DecisionsChannel  string        `yaml:"decisions_channel"`
	PublishDecisions  bool          `yaml:"publish_decisions"`
}

func Default() Config {
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  30 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Log: LogConfig{Level: "debug"},
		Postgres: PostgresConfig{
			DSN: "",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Auth: AuthConfig{
			JWTSecret:   "change-me",
			ServiceRole: "content_system",
		},
		Telegram: TelegramConfig{
			WebhookURL:     DefaultWebhookURL,
			RequestTimeout: 10 * time.Second,
		},
		Moderation: ModerationConfig{
			CommandsPerMinute: 30,
			DedupTTL:          24 * time.Hour,
			NotifyMaxElapsed:  4 * time.Second,
			ReminderInterval:  time.Hour,
			ReminderAfter:     24 * time.Hour,
			ReminderBatch:     10,
			DecisionsChannel:  "reviews:decisions",
			PublishDecisions:  true,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if isProduction(c.Env) && (strings.TrimSpace(c.Auth.JWTSecret) == "" || c.Auth.JWTSecret == "change-me") {
		return fmt.Errorf("auth.jwt_secret must be set in production")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	// The announce retry runs inside POST /internal/reviews; one more provider request may be in
	// flight when the retry window closes.
	if c.HTTP.WriteTimeout > 0 && c.Moderation.NotifyMaxElapsed+c.Telegram.RequestTimeout >= c.HTTP.WriteTimeout {
		return fmt.Errorf("moderation.notify_max_elapsed (%s) plus telegram.request_timeout (%s) must be below http.write_timeout (%s)",
			c.Moderation.NotifyMaxElapsed, c.Telegram.RequestTimeout, c.HTTP.WriteTimeout)
	}
	return nil
}

// ModerationEnabled reports whether the outbound channel has the credentials it needs.
func (c TelegramConfig) ModerationEnabled() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.ChannelID) != ""
}

// WebhookEndpoint is the URL handed to Telegram. A configured secret becomes the last path segment.
func (c TelegramConfig) WebhookEndpoint() string {
	base := strings.TrimSpace(c.WebhookURL)
	if base == "" {
		base = DefaultWebhookURL
	}
	secret := strings.TrimSpace(c.WebhookSecret)
	if secret == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + secret
}

func isProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if err := overrideDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHANNEL_ID"); v != "" {
		cfg.Telegram.ChannelID = v
	}
	if v := os.Getenv("TELEGRAM_WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_WEBHOOK_SECRET"); v != "" {
		cfg.Telegram.WebhookSecret = v
	}
	if v := os.Getenv("TELEGRAM_API_ENDPOINT"); v != "" {
		cfg.Telegram.APIEndpoint = v
	}
	if err := overrideDuration("TELEGRAM_REQUEST_TIMEOUT", &cfg.Telegram.RequestTimeout); err != nil {
		return err
	}

	if v := os.Getenv("MODERATION_ALLOWED_ISSUERS"); v != "" {
		cfg.Moderation.AllowedIssuers = splitList(v)
	}
	if err := overrideInt("MODERATION_COMMANDS_PER_MINUTE", &cfg.Moderation.CommandsPerMinute); err != nil {
		return err
	}
	if err := overrideDuration("MODERATION_NOTIFY_MAX_ELAPSED", &cfg.Moderation.NotifyMaxElapsed); err != nil {
		return err
	}
	if err := overrideDuration("MODERATION_REMINDER_INTERVAL", &cfg.Moderation.ReminderInterval); err != nil {
		return err
	}
	if err := overrideDuration("MODERATION_REMINDER_AFTER", &cfg.Moderation.ReminderAfter); err != nil {
		return err
	}
	if err := overrideBool("MODERATION_PUBLISH_DECISIONS", &cfg.Moderation.PublishDecisions); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Telegram.WebhookURL) == "" {
		cfg.Telegram.WebhookURL = DefaultWebhookURL
	}

	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}
