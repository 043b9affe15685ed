// Package config loads vibedrive settings from an optional YAML file,
// defaults and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key that has no legacy variable name.
const EnvPrefix = "VIBEDRIVE"

// Config is the top-level configuration shared by all commands.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	H2C             bool          `mapstructure:"h2c"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Events   EventsConfig   `mapstructure:"events"`
	CFAccess CFAccessConfig `mapstructure:"cf_access"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	OTel     OTelConfig     `mapstructure:"otel"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// EventsConfig locates the upstream receiver.
type EventsConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// CFAccessConfig is the optional Cloudflare Access service token.
type CFAccessConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Complete reports whether both halves of the service token are set.
func (c CFAccessConfig) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// LogConfig controls logger behaviour.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// OTelConfig configures trace export. An empty endpoint disables export.
type OTelConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

// WatchConfig configures the stream client.
type WatchConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	DoneDisplay    time.Duration `mapstructure:"done_display"`
}

// legacyEnv maps keys to the variable names deployments already use.
// The prefixed form is accepted as well.
var legacyEnv = map[string][]string{
	"events.url":              {"VIBE_EVENTS_URL"},
	"events.token":            {"VIBE_EVENTS_TOKEN"},
	"cf_access.client_id":     {"CF_ACCESS_CLIENT_ID"},
	"cf_access.client_secret": {"CF_ACCESS_CLIENT_SECRET"},
	"otel.endpoint":           {"OTEL_EXPORTER_OTLP_ENDPOINT"},
	"otel.service_name":       {"OTEL_SERVICE_NAME"},
}

// Load reads configuration from path, or from ./vibedrive.yaml when path is
// empty and that file exists. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		v.SetConfigName("vibedrive")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("h2c", false)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("events.url", "")
	v.SetDefault("events.token", "")
	v.SetDefault("cf_access.client_id", "")
	v.SetDefault("cf_access.client_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service_name", "vibedrive")
	v.SetDefault("otel.insecure", true)

	v.SetDefault("watch.url", "http://localhost:3000/api/events")
	v.SetDefault("watch.reconnect_delay", 5*time.Second)
	v.SetDefault("watch.done_display", 4*time.Second)
}

// Validate checks values that must be well-formed at startup. The events
// URL and token are optional here; the relay reports them per request.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr must be set")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be one of text or json, got %q", c.Log.Format)
	}

	if c.Events.URL != "" {
		if err := checkHTTPURL(c.Events.URL); err != nil {
			return fmt.Errorf("events.url: %w", err)
		}
	}
	if c.Watch.URL != "" {
		if err := checkHTTPURL(c.Watch.URL); err != nil {
			return fmt.Errorf("watch.url: %w", err)
		}
	}
	if c.Watch.ReconnectDelay <= 0 {
		return errors.New("watch.reconnect_delay must be > 0")
	}
	if c.Watch.DoneDisplay <= 0 {
		return errors.New("watch.done_display must be > 0")
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
