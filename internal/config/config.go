// Package config defines pageview configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spider-crawler/pageview/internal/logger"
)

// RedirectPolicy defines how redirects are handled.
type RedirectPolicy string

const (
	RedirectFollow     RedirectPolicy = "follow"      // Follow redirects
	RedirectNoFollow   RedirectPolicy = "no_follow"   // Return the 3xx response as-is
	RedirectFollowSame RedirectPolicy = "follow_same" // Follow only same-host redirects
)

// EnvPrefix prefixes every environment override, e.g. PAGEVIEW_FETCH_TIMEOUT.
const EnvPrefix = "PAGEVIEW"

// DefaultUserAgent is a current desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config holds all pageview configuration.
type Config struct {
	Fetch   FetchConfig   `json:"fetch" mapstructure:"fetch"`
	Log     logger.Config `json:"log" mapstructure:"log"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
	Rewrite RewriteConfig `json:"rewrite" mapstructure:"rewrite"`
}

// FetchConfig controls the HTTP side of a fetch.
type FetchConfig struct {
	// User-Agent header; a desktop browser string so servers send their
	// regular HTML.
	UserAgent string `json:"user_agent" mapstructure:"user_agent"`

	Accept         string `json:"accept" mapstructure:"accept"`
	AcceptLanguage string `json:"accept_language" mapstructure:"accept_language"`

	// Whole-request timeout, redirects and body included.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Maximum number of redirects to follow
	MaxRedirects int `json:"max_redirects" mapstructure:"max_redirects"`

	RedirectPolicy RedirectPolicy `json:"redirect_policy" mapstructure:"redirect_policy"`

	// Maximum body size in bytes (0 = unlimited)
	MaxBodySize int64 `json:"max_body_size" mapstructure:"max_body_size"`

	InsecureSkipVerify bool `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`

	// Extra headers sent with every request
	CustomHeaders map[string]string `json:"custom_headers,omitempty" mapstructure:"custom_headers"`
}

// ServerConfig configures the local HTTP bridge.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`

	// Requests per second accepted by the bridge (0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `json:"burst" mapstructure:"burst"`

	// Browser origins allowed besides the bridge's own, e.g. a host shell
	// served from another port
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// StorageConfig configures the visit log.
type StorageConfig struct {
	// SQLite database path; empty disables the visit log.
	Path string `json:"path" mapstructure:"path"`
}

// RewriteConfig controls HTML post-processing for display.
type RewriteConfig struct {
	// Replace external scripts and stylesheets with comments.
	DisableExternal bool `json:"disable_external" mapstructure:"disable_external"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			UserAgent:      DefaultUserAgent,
			Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			AcceptLanguage: "ja,en-US;q=0.9,en;q=0.8",
			Timeout:        30 * time.Second,
			MaxRedirects:   10,
			RedirectPolicy: RedirectFollow,
			MaxBodySize:    0,
		},
		Log: logger.Config{
			Level: logger.DefaultLevel,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8787",
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Rewrite: RewriteConfig{
			DisableExternal: true,
		},
	}
}

// Validate clamps out-of-range values and rejects unknown enums.
func (c *Config) Validate() error {
	if c.Fetch.Timeout < time.Second {
		c.Fetch.Timeout = time.Second
	}
	if c.Fetch.MaxRedirects < 0 {
		c.Fetch.MaxRedirects = 0
	}
	if c.Fetch.MaxBodySize < 0 {
		c.Fetch.MaxBodySize = 0
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Fetch.RedirectPolicy == "" {
		c.Fetch.RedirectPolicy = RedirectFollow
	}
	switch c.Fetch.RedirectPolicy {
	case RedirectFollow, RedirectNoFollow, RedirectFollowSame:
	default:
		return fmt.Errorf("unknown redirect policy %q", c.Fetch.RedirectPolicy)
	}

	if c.Server.RequestsPerSecond < 0 {
		c.Server.RequestsPerSecond = 0
	}
	if c.Server.Burst < 1 {
		c.Server.Burst = 1
	}
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}
	return nil
}

// Load reads configuration from path (optional), then PAGEVIEW_* environment
// variables, on top of DefaultConfig.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.accept", d.Fetch.Accept)
	v.SetDefault("fetch.accept_language", d.Fetch.AcceptLanguage)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.max_redirects", d.Fetch.MaxRedirects)
	v.SetDefault("fetch.redirect_policy", string(d.Fetch.RedirectPolicy))
	v.SetDefault("fetch.max_body_size", d.Fetch.MaxBodySize)
	v.SetDefault("fetch.insecure_skip_verify", d.Fetch.InsecureSkipVerify)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.requests_per_second", d.Server.RequestsPerSecond)
	v.SetDefault("server.burst", d.Server.Burst)

	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("rewrite.disable_external", d.Rewrite.DisableExternal)
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(filePath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
