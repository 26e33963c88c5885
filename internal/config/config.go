package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vzahanych/weather-alert-bot/internal/alert"
)

var configValue atomic.Value

func GetConfig() *Config {
	cfg, _ := configValue.Load().(*Config)
	return cfg
}

func SetConfig(cfg *Config) {
	configValue.Store(cfg)
}

// ErrConfig is wrapped by every configuration loading and validation error.
var ErrConfig = errors.New("configuration error")

type Config struct {
	Version     string            `mapstructure:"version"`
	Environment string            `mapstructure:"environment"`
	Locations   []LocationConfig  `mapstructure:"locations" validate:"required,min=1,dive"`
	Alerts      alert.Config      `mapstructure:"alerts"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Weather     WeatherConfig     `mapstructure:"weather"`
	APIKeys     map[string]string `mapstructure:"api_keys"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Commentary  CommentaryConfig  `mapstructure:"commentary"`
	Subscribers SubscribersConfig `mapstructure:"subscribers"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// LocationConfig names a monitored place, either by city or by coordinates.
type LocationConfig struct {
	Name string   `mapstructure:"name" json:"name" validate:"required"`
	City string   `mapstructure:"city" json:"city,omitempty"`
	Lat  *float64 `mapstructure:"lat" json:"lat,omitempty" validate:"omitempty,latitude"`
	Lon  *float64 `mapstructure:"lon" json:"lon,omitempty" validate:"omitempty,longitude"`
}

func (l LocationConfig) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Describe renders the city, or the coordinates when no city is set.
func (l LocationConfig) Describe() string {
	if l.City != "" {
		return l.City
	}
	if l.HasCoordinates() {
		return fmt.Sprintf("(%g, %g)", *l.Lat, *l.Lon)
	}
	return ""
}

type TelegramConfig struct {
	BotToken      string              `mapstructure:"bot_token" validate:"required"`
	ChatIDs       []string            `mapstructure:"chat_ids" validate:"required,min=1,dive,required"`
	APIEndpoint   string              `mapstructure:"api_endpoint"`
	SendDelay     time.Duration       `mapstructure:"send_delay" validate:"min=0"`
	PollTimeout   int                 `mapstructure:"poll_timeout" validate:"min=0"`
	AutoSubscribe bool                `mapstructure:"auto_subscribe"`
	MessageFormat MessageFormatConfig `mapstructure:"message_format"`
}

type MessageFormatConfig struct {
	IncludeEmoji bool `mapstructure:"include_emoji"`
}

type WeatherConfig struct {
	Provider     string          `mapstructure:"provider" validate:"oneof=openweathermap open-meteo"`
	BaseURL      string          `mapstructure:"base_url"`
	GeocodingURL string          `mapstructure:"geocoding_url"`
	Timezone     string          `mapstructure:"timezone"`
	Timeout      time.Duration   `mapstructure:"timeout"`
	CacheTTL     time.Duration   `mapstructure:"cache_ttl"`
	Workers      int             `mapstructure:"workers" validate:"min=1"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

type ScheduleConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Times      []string `mapstructure:"times" validate:"dive,datetime=15:04"`
	Timezone   string   `mapstructure:"timezone"`
	RunOnStart bool     `mapstructure:"run_on_start"`
}

type CommentaryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens" validate:"min=0"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Prompt    string        `mapstructure:"prompt"`
}

type SubscribersConfig struct {
	Backend string       `mapstructure:"backend" validate:"oneof=file valkey"`
	Path    string       `mapstructure:"path"`
	Valkey  ValkeyConfig `mapstructure:"valkey"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
	Key  string `mapstructure:"key"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

const defaultCommentaryPrompt = "You are a friendly weather presenter. In one short, witty sentence, " +
	"comment on this forecast: {weather_summary}"

func NewDefaultConfig() *Config {
	return &Config{
		Version:     "1.0.0",
		Environment: "development",
		Alerts:      alert.DefaultConfig(),
		Telegram: TelegramConfig{
			SendDelay:     500 * time.Millisecond,
			PollTimeout:   30,
			AutoSubscribe: true,
			MessageFormat: MessageFormatConfig{IncludeEmoji: true},
		},
		Weather: WeatherConfig{
			Provider:  "openweathermap",
			Timeout:   10 * time.Second,
			CacheTTL:  5 * time.Minute,
			Workers:   4,
			RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 5},
		},
		Schedule: ScheduleConfig{
			Times: []string{"07:00"},
		},
		Commentary: CommentaryConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-haiku-4-5",
			MaxTokens: 100,
			Timeout:   15 * time.Second,
			Prompt:    defaultCommentaryPrompt,
		},
		Subscribers: SubscribersConfig{
			Backend: "file",
			Path:    "subscribers.json",
			Valkey:  ValkeyConfig{Key: "weather:subscribers"},
		},
		Kafka: KafkaConfig{
			Topic: "weather-alerts",
		},
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "tempo:4317",
		},
	}
}

// APIKey resolves the key for service from <SERVICE>_API_KEY, then from the
// api_keys section.
func (c *Config) APIKey(service string) (string, error) {
	envName := strings.ToUpper(strings.ReplaceAll(service, "-", "_")) + "_API_KEY"
	if key := os.Getenv(envName); key != "" {
		return key, nil
	}
	if key := c.APIKeys[service]; key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: api key for %s not found (set %s or api_keys.%s)", ErrConfig, service, envName, service)
}

// Location resolves the timezone that defines calendar days for alerts.
func (c *Config) Location() (*time.Location, error) {
	if c.Weather.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Weather.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: weather.timezone: %v", ErrConfig, err)
	}
	return loc, nil
}

// FindLocation returns the configured location whose name matches,
// ignoring case.
func (c *Config) FindLocation(name string) (LocationConfig, bool) {
	for _, l := range c.Locations {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return LocationConfig{}, false
}
