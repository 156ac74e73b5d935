package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type BotMode string

const (
	ModePolling BotMode = "polling"
	ModeWebhook BotMode = "webhook"
)

type StorageKind string

const (
	StorageInMemory StorageKind = "in_memory"
	StorageRedis    StorageKind = "redis"
	StoragePostgres StorageKind = "postgres"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Bot      BotConfig      `mapstructure:"bot"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type BotConfig struct {
	Mode      BotMode       `mapstructure:"mode"`
	Owners    []string      `mapstructure:"owners"`
	SendDelay time.Duration `mapstructure:"send_delay"`
}

type StorageConfig struct {
	Kind StorageKind `mapstructure:"kind"`
}

type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ServerConfig struct {
	BindTo string `mapstructure:"bind_to"`
}

type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// environment variable names, kept compatible with older deployments
var envBindings = map[string][]string{
	"telegram.token":   {"TELEGRAM_TOKEN", "TELOXIDE_TOKEN"},
	"bot.mode":         {"BOT_MODE"},
	"bot.owners":       {"BOT_OWNERS"},
	"bot.send_delay":   {"BOT_SEND_DELAY"},
	"storage.kind":     {"STORAGE"},
	"redis.url":        {"REDIS_URL"},
	"redis.key_prefix": {"REDIS_KEY_PREFIX"},
	"server.bind_to":   {"BIND_TO"},
	"webhook.url":      {"WEBHOOK_URL"},
	"log.level":        {"LOG_LEVEL"},
	"log.development":  {"LOG_DEVELOPMENT"},
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads the optional yaml file at path and overlays the environment
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("bot.mode", string(ModePolling))
	v.SetDefault("bot.owners", []string{})
	v.SetDefault("bot.send_delay", 250*time.Millisecond)
	v.SetDefault("storage.kind", string(StorageInMemory))
	v.SetDefault("redis.key_prefix", "watchlater:item:")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("server.bind_to", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	config.Bot.Owners = normalizeOwners(config.Bot.Owners)

	return &config, nil
}

func normalizeOwners(owners []string) []string {
	normalized := make([]string, 0, len(owners))
	for _, owner := range owners {
		owner = strings.TrimPrefix(strings.TrimSpace(owner), "@")
		if owner != "" {
			normalized = append(normalized, owner)
		}
	}
	return normalized
}

// Validate reports the first setting that makes the bot unable to start
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required (TELEGRAM_TOKEN)")
	}

	switch c.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if _, err := c.WebhookPath(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown bot mode %q", c.Bot.Mode)
	}

	switch c.Storage.Kind {
	case StorageInMemory:
	case StorageRedis:
		if c.Redis.URL == "" {
			return errors.New("redis url is required for redis storage (REDIS_URL)")
		}
	case StoragePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New("database host and name are required for postgres storage (DATABASE_URL)")
		}
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage.Kind)
	}

	if c.Bot.SendDelay < 0 {
		return fmt.Errorf("send delay must not be negative, got %s", c.Bot.SendDelay)
	}

	if c.Server.BindTo == "" {
		return errors.New("bind address is required (BIND_TO)")
	}

	return nil
}

// WebhookPath is the HTTP path Telegram will post updates to
func (c *Config) WebhookPath() (string, error) {
	if c.Webhook.URL == "" {
		return "", errors.New("webhook url is required in webhook mode (WEBHOOK_URL)")
	}

	u, err := url.Parse(c.Webhook.URL)
	if err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("webhook url must be absolute, got %q", c.Webhook.URL)
	}

	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}
