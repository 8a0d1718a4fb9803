package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/nextday-freebusy/internal/logger"
	"github.com/bnema/nextday-freebusy/internal/security"
	"github.com/bnema/nextday-freebusy/internal/timewindow"
)

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateLogLevel,
		c.validateCalendar,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateServe checks everything the HTTP server needs, including the
// identity provider credentials.
func (c *Config) ValidateServe() error {
	validators := []func() error{
		c.Validate,
		c.validatePort,
		c.validateBaseURL,
		c.validateAuth0,
		c.validateSessionSecret,
		c.validateStore,
		c.validateTelemetry,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePort() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return security.NewConfigError("PORT", fmt.Sprint(c.Server.Port), "port must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		return security.NewConfigError("HOST", "", "host is required")
	}
	return nil
}

func (c *Config) validateLogLevel() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return security.NewConfigError("LOG_LEVEL", c.Log.Level, "valid levels are debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
		return nil
	default:
		return security.NewConfigError("LOG_FORMAT", c.Log.Format, "valid formats are text, json")
	}
}

func (c *Config) validateCalendar() error {
	if _, err := timewindow.Resolve(c.Calendar.Timezone); err != nil {
		logger.Warn("target timezone is unknown, availability will use UTC", "timezone", c.Calendar.Timezone)
	}
	if c.Calendar.Timeout <= 0 || c.Calendar.Timeout > time.Minute {
		return security.NewConfigError("CALENDAR_TIMEOUT", c.Calendar.Timeout.String(), "timeout must be between 0 and 1m")
	}
	if err := c.Calendar.Hours().Validate(); err != nil {
		return security.NewConfigError("CALENDAR_DAY_START", fmt.Sprintf("%d-%d", c.Calendar.DayStart, c.Calendar.DayEnd), "invalid working hours").WithCause(err)
	}
	return nil
}

func (c *Config) validateBaseURL() error {
	if c.Server.BaseURL == "" {
		return security.NewConfigError("APP_BASE_URL", "", "base url is required")
	}

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return security.NewConfigError("APP_BASE_URL", c.Server.BaseURL, "invalid url").WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return security.NewConfigError("APP_BASE_URL", c.Server.BaseURL, "scheme must be http or https")
	}
	if u.Hostname() == "" {
		return security.NewConfigError("APP_BASE_URL", c.Server.BaseURL, "url must have a host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return security.NewConfigError("APP_BASE_URL", c.Server.BaseURL, "url must not contain a query or fragment")
	}
	if u.Scheme == "http" && !isLocalhost(u.Hostname()) {
		logger.Warn("APP_BASE_URL is not https outside localhost", "base_url", c.Server.BaseURL)
	}
	return nil
}

func (c *Config) validateAuth0() error {
	required := []struct {
		env   string
		value string
	}{
		{"AUTH0_DOMAIN", c.Auth0.Domain},
		{"AUTH0_CLIENT_ID", c.Auth0.ClientID},
		{"AUTH0_CLIENT_SECRET", c.Auth0.ClientSecret},
		{"AUTH0_SECRET", c.Auth0.Secret},
	}

	var errs []error
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, security.NewConfigError(r.env, "", "is required"))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if strings.ContainsAny(c.Auth0.Domain, " \t?#") {
		return security.NewConfigError("AUTH0_DOMAIN", c.Auth0.Domain, "expected a tenant host such as tenant.eu.auth0.com")
	}
	if strings.ContainsAny(c.Auth0.ClientSecret, " \t\n") {
		return security.NewConfigError("AUTH0_CLIENT_SECRET", "", "contains whitespace")
	}
	if c.Auth0.TransactionTTL < time.Minute || c.Auth0.TransactionTTL > time.Hour {
		return security.NewConfigError("AUTH0_TRANSACTION_TTL", c.Auth0.TransactionTTL.String(), "must be between 1m and 1h")
	}
	return nil
}

func (c *Config) validateSessionSecret() error {
	if len(c.Auth0.Secret) < security.MinSecretLength {
		return security.NewConfigError("AUTH0_SECRET", "", fmt.Sprintf("must be at least %d characters long", security.MinSecretLength))
	}
	if !hasGoodEntropy(c.Auth0.Secret) {
		return security.NewConfigError("AUTH0_SECRET", "", "has poor entropy")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreMemory:
		return nil
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return security.NewConfigError("REDIS_URL", "", "required when TRANSACTION_STORE=redis")
		}
		u, err := url.Parse(c.Store.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return security.NewConfigError("REDIS_URL", security.RedactString(c.Store.RedisURL), "expected redis:// or rediss:// url")
		}
		return nil
	default:
		return security.NewConfigError("TRANSACTION_STORE", c.Store.Backend, "valid backends are memory, redis")
	}
}

func (c *Config) validateTelemetry() error {
	if !c.Telemetry.Enabled {
		return nil
	}
	if c.Telemetry.Endpoint == "" {
		return security.NewConfigError("OTEL_EXPORTER_OTLP_ENDPOINT", "", "required when OTEL_ENABLED=true")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return security.NewConfigError("OTEL_SAMPLING_RATIO", fmt.Sprint(c.Telemetry.SamplingRatio), "must be between 0 and 1")
	}
	return nil
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// hasGoodEntropy is a rough check: at least 16 distinct characters.
func hasGoodEntropy(s string) bool {
	seen := make(map[rune]bool)
	for _, r := range s {
		seen[r] = true
	}
	return len(seen) >= 16
}
