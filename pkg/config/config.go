package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Nextcloud NextcloudConfig `mapstructure:"nextcloud"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	I18n      I18nConfig      `mapstructure:"i18n"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// TelegramConfig contains the chat transport configuration
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	APIEndpoint string        `mapstructure:"api_endpoint"`
	MaxSendSize int64         `mapstructure:"max_send_size"` // largest file the bot may send back to a chat
	ChunkSize   int           `mapstructure:"chunk_size"`
	PageSize    int           `mapstructure:"page_size"` // rows per scrolling page
	PollTimeout int           `mapstructure:"poll_timeout"`
	Webhook     WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig enables receiving updates over HTTP instead of long polling
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Path    string `mapstructure:"path"`
	Secret  string `mapstructure:"secret"`
}

// NextcloudConfig contains the remote store configuration
type NextcloudConfig struct {
	URL           string        `mapstructure:"url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	ChunkSize     int           `mapstructure:"chunk_size"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"` // largest document accepted from a chat
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ServerConfig contains the HTTP side server configuration
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StorageConfig contains local persistence configuration
type StorageConfig struct {
	UsersDB string `mapstructure:"users_db"`
}

// AuthConfig lists the Telegram users allowed to use the bot
type AuthConfig struct {
	AllowedUsers []int64 `mapstructure:"allowed_users"`
}

// I18nConfig contains localization configuration
type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// TelemetryConfig contains telemetry configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	cfg := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal configuration
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Post-process configuration
	if err := postProcess(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	// Telegram defaults
	viper.SetDefault("telegram.max_send_size", 50*1024*1024)
	viper.SetDefault("telegram.chunk_size", 64*1024)
	viper.SetDefault("telegram.page_size", 8)
	viper.SetDefault("telegram.poll_timeout", 60)
	viper.SetDefault("telegram.webhook.path", "/telegram/webhook")

	// Nextcloud defaults
	viper.SetDefault("nextcloud.chunk_size", 5*1024*1024)
	viper.SetDefault("nextcloud.max_upload_size", 20*1024*1024)
	viper.SetDefault("nextcloud.timeout", 5*time.Minute)

	// Server defaults
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.port", 8080)

	// Storage defaults
	viper.SetDefault("storage.users_db", "users.db")

	// I18n defaults
	viper.SetDefault("i18n.default_language", "en")
	viper.SetDefault("i18n.languages", []string{"en", "ru"})

	// Telemetry defaults
	viper.SetDefault("telemetry.enabled", false)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)

	// Environment variable mappings
	_ = viper.BindEnv("telegram.token", "TELEGRAM_BOT_TOKEN")
	_ = viper.BindEnv("nextcloud.url", "NEXTCLOUD_URL")
	_ = viper.BindEnv("nextcloud.username", "NEXTCLOUD_USERNAME")
	_ = viper.BindEnv("nextcloud.password", "NEXTCLOUD_PASSWORD")
	_ = viper.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func postProcess(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if cfg.Nextcloud.URL == "" {
		return errors.New("nextcloud.url is required")
	}
	u, err := url.Parse(cfg.Nextcloud.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid nextcloud.url %q", cfg.Nextcloud.URL)
	}
	cfg.Nextcloud.URL = strings.TrimSuffix(cfg.Nextcloud.URL, "/")

	if cfg.Telegram.PageSize <= 0 {
		return fmt.Errorf("telegram.page_size must be positive, got %d", cfg.Telegram.PageSize)
	}
	if cfg.Telegram.ChunkSize <= 0 || cfg.Nextcloud.ChunkSize <= 0 {
		return errors.New("chunk sizes must be positive")
	}

	if cfg.Telegram.Webhook.Enabled {
		if cfg.Telegram.Webhook.BaseURL == "" {
			return errors.New("telegram.webhook.base_url is required when the webhook is enabled")
		}
		if !cfg.Server.Enabled {
			return errors.New("the webhook needs the HTTP server (server.enabled)")
		}
		if !strings.HasPrefix(cfg.Telegram.Webhook.Path, "/") {
			cfg.Telegram.Webhook.Path = "/" + cfg.Telegram.Webhook.Path
		}
	}

	// Ensure the users database path is absolute
	if !filepath.IsAbs(cfg.Storage.UsersDB) {
		abs, err := filepath.Abs(cfg.Storage.UsersDB)
		if err != nil {
			return err
		}
		cfg.Storage.UsersDB = abs
	}

	if cfg.I18n.DefaultLanguage == "" {
		cfg.I18n.DefaultLanguage = "en"
	}

	return nil
}

// WebhookURL returns the public URL Telegram should post updates to.
func (c TelegramConfig) WebhookURL() string {
	return strings.TrimSuffix(c.Webhook.BaseURL, "/") + c.Webhook.Path
}
