package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/watchfloor/internal/fetch"
)

// Refresh interval bounds accepted by Validate.
const (
	MinRefreshInterval = 30 * time.Second
	MaxRefreshInterval = 24 * time.Hour
)

// Environment overrides, applied after the file is read.
const (
	EnvAPIURL   = "WATCHFLOOR_API_URL"
	EnvAPIToken = "WATCHFLOOR_API_TOKEN"
)

// Config is the persistent application configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Refresh RefreshConfig `yaml:"refresh"`
	RSS     RSSConfig     `yaml:"rss"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`

	// DataDir holds the database, logs and event log. Empty means the
	// directory containing the config file.
	DataDir string `yaml:"data_dir"`
}

// APIConfig points at the article server. An empty URL selects direct RSS
// mode.
type APIConfig struct {
	URL          string        `yaml:"url"`
	Token        string        `yaml:"token,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	Rate         float64       `yaml:"rate"` // requests per second
	Burst        int           `yaml:"burst"`
	ArticleLimit int           `yaml:"article_limit"`

	// Extraction flags passed on every intelligence request.
	ExtractUseAI bool `yaml:"extract_use_ai"`
	ExtractSave  bool `yaml:"extract_save"`
}

// RefreshConfig controls background refresh.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	Auto     bool          `yaml:"auto"`
}

// RSSConfig lists the feeds read in direct mode.
type RSSConfig struct {
	Feeds      []fetch.Feed `yaml:"feeds"`
	MaxPerFeed int          `yaml:"max_per_feed"`
}

// SessionConfig holds interaction preferences.
type SessionConfig struct {
	AutoTriage bool `yaml:"auto_triage"` // NEW -> IN_ANALYSIS on select
}

// LogConfig holds the file logger level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultFeeds are the security sources read when none are configured.
var DefaultFeeds = []fetch.Feed{
	{ID: "krebs", Name: "Krebs on Security", URL: "https://krebsonsecurity.com/feed/", Category: "security"},
	{ID: "schneier", Name: "Schneier on Security", URL: "https://www.schneier.com/feed/", Category: "security"},
	{ID: "thn", Name: "The Hacker News", URL: "https://feeds.feedburner.com/TheHackersNews", Category: "security"},
	{ID: "bleeping", Name: "Bleeping Computer", URL: "https://www.bleepingcomputer.com/feed/", Category: "security"},
	{ID: "darkreading", Name: "Dark Reading", URL: "https://www.darkreading.com/rss.xml", Category: "security"},
	{ID: "cisa", Name: "CISA Advisories", URL: "https://www.cisa.gov/cybersecurity-advisories/all.xml", Category: "advisories"},
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	feeds := make([]fetch.Feed, len(DefaultFeeds))
	copy(feeds, DefaultFeeds)
	return &Config{
		API: APIConfig{
			Timeout:      30 * time.Second,
			Rate:         5,
			Burst:        5,
			ArticleLimit: 200,
			ExtractUseAI: true,
			ExtractSave:  true,
		},
		Refresh: RefreshConfig{
			Interval: 5 * time.Minute,
			Auto:     true,
		},
		RSS: RSSConfig{
			Feeds:      feeds,
			MaxPerFeed: 50,
		},
		Session: SessionConfig{AutoTriage: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Dir returns ~/.watchfloor.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".watchfloor"
	}
	return filepath.Join(home, ".watchfloor")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads config from path (ConfigPath when empty), falling back to
// defaults when the file does not exist. Fields missing from the file keep
// their defaults. Env overrides are applied last and the result is
// validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the API endpoint and token from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
}

// Validate checks bounds. Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error
	if err := ValidateInterval(c.Refresh.Interval); err != nil {
		errs = append(errs, err)
	}
	if c.API.URL != "" && !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		errs = append(errs, fmt.Errorf("api.url must be http(s), got %q", c.API.URL))
	}
	if c.API.Rate < 0 {
		errs = append(errs, fmt.Errorf("api.rate must not be negative"))
	}
	if c.API.ArticleLimit < 0 {
		errs = append(errs, fmt.Errorf("api.article_limit must not be negative"))
	}
	if c.API.URL == "" && len(c.RSS.Feeds) == 0 {
		errs = append(errs, errors.New("no api.url and no rss.feeds configured"))
	}
	for i, f := range c.RSS.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("rss.feeds[%d] (%s): url is required", i, f.Name))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// ValidateInterval reports whether d is an acceptable refresh period.
func ValidateInterval(d time.Duration) error {
	if d < MinRefreshInterval || d > MaxRefreshInterval {
		return fmt.Errorf("refresh.interval %s outside [%s, %s]", d, MinRefreshInterval, MaxRefreshInterval)
	}
	return nil
}

// DirectMode reports whether feeds are read locally instead of from the
// server.
func (c *Config) DirectMode() bool {
	return c.API.URL == ""
}

// DBPath is the sqlite file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "watchfloor.db")
}

// Save writes config to path (ConfigPath when empty).
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // may contain the API token
}
