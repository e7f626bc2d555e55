package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ATC_TRMNL_FEED_URL
const EnvPrefix = "ATC_TRMNL"

// Config holds all configuration for the daemon
type Config struct {
	Status       StatusConfig
	Feed         FeedConfig
	Fetch        FetchConfig
	Resolver     ResolverConfig
	XPlane       XPlaneConfig
	Voice        VoiceConfig
	DBPath       string
	BatchSize    int
	BatchTimeout int // seconds
	HTTP         HTTPConfig
	NATS         NATSConfig
	Log          LogConfig
}

// StatusConfig locates the descriptor listing the live feed urls
type StatusConfig struct {
	URL           string
	RefreshPeriod time.Duration
}

// FeedConfig controls the live feed. A non empty URL bypasses the descriptor.
type FeedConfig struct {
	URL           string
	Gzipped       bool
	RefreshPeriod time.Duration
}

// FetchConfig holds settings shared by every download
type FetchConfig struct {
	Timeout time.Duration
}

// ResolverConfig holds the alternate key rule
type ResolverConfig struct {
	AlternatePrefixLen int
	AlternateSuffix    string
}

// XPlaneConfig locates the simulator export files
type XPlaneConfig struct {
	Path         string
	LoopInterval time.Duration
}

// VoiceConfig controls what the voice client is told to do
type VoiceConfig struct {
	DisconnectOnUnicom bool
}

// HTTPConfig holds the query API settings
type HTTPConfig struct {
	Addr string
}

// NATSConfig holds the event publisher settings. An empty URL disables it.
type NATSConfig struct {
	URL     string
	Subject string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Flags returns the command line flags Load understands
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("atc_trmnl", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to config file (YAML)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("http-addr", "", "HTTP listen address, empty to disable")
	return fs
}

// Load loads configuration from .env, the config file, environment variables and flags.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	v.SetDefault("status.url", "http://www.ivao.aero/whazzup/status.txt")
	v.SetDefault("status.refresh_period", "24h")
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.gzipped", false)
	v.SetDefault("feed.refresh_period", "5m")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("resolver.alternate_prefix_len", 6)
	v.SetDefault("resolver.alternate_suffix", "5")
	v.SetDefault("xplane.path", ".")
	v.SetDefault("xplane.loop_interval", "1s")
	v.SetDefault("voice.disconnect_on_unicom", true)
	v.SetDefault("db_path", "atc_trmnl.db")
	v.SetDefault("batch_size", 20)
	v.SetDefault("batch_timeout", 5)
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "atc_trmnl.tune")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/atc_trmnl")
	v.AddConfigPath(".")

	if configPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
	}

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
		bindings := map[string]string{
			"log.level": "log-level",
			"http.addr": "http-addr",
		}
		for key, name := range bindings {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file, defaults + env vars
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Status: StatusConfig{
			URL:           v.GetString("status.url"),
			RefreshPeriod: v.GetDuration("status.refresh_period"),
		},
		Feed: FeedConfig{
			URL:           v.GetString("feed.url"),
			Gzipped:       v.GetBool("feed.gzipped"),
			RefreshPeriod: v.GetDuration("feed.refresh_period"),
		},
		Fetch: FetchConfig{
			Timeout: v.GetDuration("fetch.timeout"),
		},
		Resolver: ResolverConfig{
			AlternatePrefixLen: v.GetInt("resolver.alternate_prefix_len"),
			AlternateSuffix:    v.GetString("resolver.alternate_suffix"),
		},
		XPlane: XPlaneConfig{
			Path:         v.GetString("xplane.path"),
			LoopInterval: v.GetDuration("xplane.loop_interval"),
		},
		Voice: VoiceConfig{
			DisconnectOnUnicom: v.GetBool("voice.disconnect_on_unicom"),
		},
		DBPath:       v.GetString("db_path"),
		BatchSize:    v.GetInt("batch_size"),
		BatchTimeout: v.GetInt("batch_timeout"),
		HTTP: HTTPConfig{
			Addr: v.GetString("http.addr"),
		},
		NATS: NATSConfig{
			URL:     v.GetString("nats.url"),
			Subject: v.GetString("nats.subject"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the configuration values
func validate(cfg *Config) error {
	if cfg.Status.URL == "" && cfg.Feed.URL == "" {
		return fmt.Errorf("status.url is required unless feed.url is set")
	}

	if cfg.Status.RefreshPeriod <= 0 {
		return fmt.Errorf("status.refresh_period must be greater than 0")
	}

	if cfg.Feed.RefreshPeriod <= 0 {
		return fmt.Errorf("feed.refresh_period must be greater than 0")
	}

	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be greater than 0")
	}

	if cfg.Resolver.AlternatePrefixLen < 0 {
		return fmt.Errorf("resolver.alternate_prefix_len must not be negative")
	}

	if cfg.XPlane.Path == "" {
		return fmt.Errorf("xplane.path is required")
	}

	if cfg.XPlane.LoopInterval <= 0 {
		return fmt.Errorf("xplane.loop_interval must be greater than 0")
	}

	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be greater than 0")
	}

	if cfg.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be greater than 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[cfg.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	return nil
}
