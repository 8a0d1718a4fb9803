package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/nextday-freebusy/internal/timewindow"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth0     Auth0Config     `mapstructure:"auth0"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Auth0Config struct {
	Domain         string        `mapstructure:"domain"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	Secret         string        `mapstructure:"secret"`
	Connection     string        `mapstructure:"connection"`
	TransactionTTL time.Duration `mapstructure:"transaction_ttl"`
}

type CalendarConfig struct {
	Timezone   string        `mapstructure:"timezone"`
	Timeout    time.Duration `mapstructure:"timeout"`
	DayStart   int           `mapstructure:"day_start"`
	DayEnd     int           `mapstructure:"day_end"`
	CalendarID string        `mapstructure:"calendar_id"`
}

// Hours returns the configured working hours.
func (c CalendarConfig) Hours() timewindow.Hours {
	return timewindow.Hours{Start: c.DayStart, End: c.DayEnd}
}

type StoreConfig struct {
	Backend  string `mapstructure:"backend"` // memory or redis
	RedisURL string `mapstructure:"redis_url"`
	Prefix   string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Endpoint      string  `mapstructure:"endpoint"`
	Insecure      bool    `mapstructure:"insecure"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
	ServiceName   string  `mapstructure:"service_name"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

var defaultConfig = Config{
	Server: ServerConfig{
		Host:            "127.0.0.1",
		Port:            3000,
		ShutdownTimeout: 10 * time.Second,
	},
	Auth0: Auth0Config{
		Connection:     "google-oauth2",
		TransactionTTL: 10 * time.Minute,
	},
	Calendar: CalendarConfig{
		Timezone:   timewindow.DefaultTimezone,
		Timeout:    5 * time.Second,
		DayStart:   timewindow.BusinessHours.Start,
		DayEnd:     timewindow.BusinessHours.End,
		CalendarID: "primary",
	},
	Store: StoreConfig{
		Backend: StoreMemory,
		Prefix:  "nextday-freebusy",
	},
	Log: LogConfig{
		Level:  "info",
		Format: "text",
	},
	Telemetry: TelemetryConfig{
		Enabled:       false,
		Endpoint:      "localhost:4317",
		Insecure:      true,
		SamplingRatio: 1.0,
		ServiceName:   "nextday-freebusy",
	},
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"server.host":             "HOST",
	"server.port":             "PORT",
	"server.base_url":         "APP_BASE_URL",
	"server.shutdown_timeout": "SHUTDOWN_TIMEOUT",

	"auth0.domain":          "AUTH0_DOMAIN",
	"auth0.client_id":       "AUTH0_CLIENT_ID",
	"auth0.client_secret":   "AUTH0_CLIENT_SECRET",
	"auth0.secret":          "AUTH0_SECRET",
	"auth0.connection":      "AUTH0_CONNECTION",
	"auth0.transaction_ttl": "AUTH0_TRANSACTION_TTL",

	"calendar.timezone":    "TARGET_TIMEZONE",
	"calendar.timeout":     "CALENDAR_TIMEOUT",
	"calendar.day_start":   "CALENDAR_DAY_START",
	"calendar.day_end":     "CALENDAR_DAY_END",
	"calendar.calendar_id": "CALENDAR_ID",

	"store.backend":   "TRANSACTION_STORE",
	"store.redis_url": "REDIS_URL",
	"store.prefix":    "REDIS_PREFIX",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",

	"telemetry.enabled":        "OTEL_ENABLED",
	"telemetry.endpoint":       "OTEL_EXPORTER_OTLP_ENDPOINT",
	"telemetry.insecure":       "OTEL_EXPORTER_OTLP_INSECURE",
	"telemetry.sampling_ratio": "OTEL_SAMPLING_RATIO",
	"telemetry.service_name":   "OTEL_SERVICE_NAME",
}

// Load reads config.toml from configPath (or the working directory) when
// present, then applies environment overrides. A missing file is not an
// error; the environment alone is enough.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigName("config")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Server.BaseURL = strings.TrimRight(strings.TrimSpace(config.Server.BaseURL), "/")
	config.Log.Level = strings.ToLower(strings.TrimSpace(config.Log.Level))
	config.Store.Backend = strings.ToLower(strings.TrimSpace(config.Store.Backend))

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.shutdown_timeout", defaultConfig.Server.ShutdownTimeout)

	v.SetDefault("auth0.connection", defaultConfig.Auth0.Connection)
	v.SetDefault("auth0.transaction_ttl", defaultConfig.Auth0.TransactionTTL)

	v.SetDefault("calendar.timezone", defaultConfig.Calendar.Timezone)
	v.SetDefault("calendar.timeout", defaultConfig.Calendar.Timeout)
	v.SetDefault("calendar.day_start", defaultConfig.Calendar.DayStart)
	v.SetDefault("calendar.day_end", defaultConfig.Calendar.DayEnd)
	v.SetDefault("calendar.calendar_id", defaultConfig.Calendar.CalendarID)

	v.SetDefault("store.backend", defaultConfig.Store.Backend)
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.prefix", defaultConfig.Store.Prefix)

	v.SetDefault("log.level", defaultConfig.Log.Level)
	v.SetDefault("log.format", defaultConfig.Log.Format)

	v.SetDefault("telemetry.enabled", defaultConfig.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", defaultConfig.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", defaultConfig.Telemetry.Insecure)
	v.SetDefault("telemetry.sampling_ratio", defaultConfig.Telemetry.SamplingRatio)
	v.SetDefault("telemetry.service_name", defaultConfig.Telemetry.ServiceName)
}

// CallbackURL is the redirect URI registered with the identity provider.
func (c *Config) CallbackURL() string {
	return c.Server.BaseURL + "/auth/callback"
}

// ListenAddr is the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, fmt.Sprint(c.Server.Port))
}
