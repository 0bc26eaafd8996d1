package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pulsewire/internal/logging"
	"pulsewire/internal/strategy"
)

// Delivery channel names accepted in job configuration.
const (
	ChannelSMS    = "sms"
	ChannelSocial = "social"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Generator GeneratorConfig `mapstructure:"generator"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Social    SocialConfig    `mapstructure:"social"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Clock     ClockConfig     `mapstructure:"clock"`
	Export    ExportConfig    `mapstructure:"export"`
	Jobs      []JobConfig     `mapstructure:"jobs"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig governs the HTTP trigger surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TriggerConfig carries the shared secret scheduled triggers must present.
type TriggerConfig struct {
	Secret string `mapstructure:"secret"`
}

// GeneratorConfig covers the hosted content-generation service.
type GeneratorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SMSConfig captures the push-notification delivery channel.
type SMSConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	From           string        `mapstructure:"from"`
	Destination    string        `mapstructure:"destination"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SocialConfig captures the social-post delivery channel.
type SocialConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	AccessToken    string        `mapstructure:"access_token"`
	Handle         string        `mapstructure:"handle"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PostsPerMinute int           `mapstructure:"posts_per_minute"`
}

// CacheConfig tunes the best-effort snapshot cache.
type CacheConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// ClockConfig enables the optional in-process cron clock for deployments
// without an external scheduler. Job schedules live on the jobs themselves.
type ClockConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// JobConfig parameterises one scheduled distribution job.
type JobConfig struct {
	Name           string        `mapstructure:"name"`
	SeriesKeys     []string      `mapstructure:"series_keys"`
	Channel        string        `mapstructure:"channel"`
	TrendDepth     int           `mapstructure:"trend_depth"`
	SpecialWeekday string        `mapstructure:"special_weekday"`
	Topics         []string      `mapstructure:"topics"`
	FetchLimit     int           `mapstructure:"fetch_limit"`
	Schedule       string        `mapstructure:"schedule"`
	LockKey        int64         `mapstructure:"lock_key"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PULSEWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pulsewire")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "America/New_York")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("generator.request_timeout", "20s")
	v.SetDefault("generator.user_agent", "pulsewire/1.0")

	v.SetDefault("sms.request_timeout", "10s")

	v.SetDefault("social.request_timeout", "10s")
	v.SetDefault("social.posts_per_minute", 10)

	v.SetDefault("cache.path", "pulsewire-cache.db")
	v.SetDefault("cache.ttl", "6h")

	v.SetDefault("clock.enabled", false)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone %q: %w", c.App.Timezone, err)
	}

	seen := make(map[string]bool, len(c.Jobs))
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("jobs[%d].name is required", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("jobs[%d].name %q duplicated", i, job.Name)
		}
		seen[job.Name] = true

		if len(job.SeriesKeys) == 0 {
			return fmt.Errorf("job %q: series_keys must not be empty", job.Name)
		}
		switch job.Channel {
		case ChannelSMS, ChannelSocial:
		default:
			return fmt.Errorf("job %q: channel must be %q or %q", job.Name, ChannelSMS, ChannelSocial)
		}
		if job.SpecialWeekday != "" {
			if _, ok := strategy.ParseWeekday(job.SpecialWeekday); !ok {
				return fmt.Errorf("job %q: unknown special_weekday %q", job.Name, job.SpecialWeekday)
			}
		}
		if job.TrendDepth < 0 {
			return fmt.Errorf("job %q: trend_depth cannot be negative", job.Name)
		}
	}

	return nil
}

// Location resolves the reference time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
