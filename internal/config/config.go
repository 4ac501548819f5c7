package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/pool"
	"github.com/ResistanceIsUseless/proxyjudge/internal/prober"
)

// DefaultJudgeURL echoes the request environment, including REMOTE_ADDR and
// any forwarding headers a proxy added
const DefaultJudgeURL = "http://azenv.net/"

// Config represents the main application configuration
type Config struct {
	ScanHTTP        bool   `yaml:"scan_http"`
	ScanSOCKS       bool   `yaml:"scan_socks"`
	TimeoutMs       int    `yaml:"timeout_ms"`
	JudgeURL        string `yaml:"judge_url"`
	OwnIPURL        string `yaml:"own_ip_url"`
	Concurrency     int    `yaml:"concurrency"`
	UserAgent       string `yaml:"user_agent"`
	RandomUserAgent bool   `yaml:"random_user_agent"`

	// Import settings
	KeepMalformed       bool   `yaml:"keep_malformed"`
	DangerousRangesFile string `yaml:"dangerous_ranges_file"`

	// Pacing across all workers. Zero disables it.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`

	// MaxMind-format database used to tag working proxies with a country
	GeoIPDB string `yaml:"geoip_db"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig contains Prometheus and live feed settings
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ListenAddr   string        `yaml:"listen_addr"`
	Path         string        `yaml:"path"`
	FeedPath     string        `yaml:"feed_path"`
	FeedInterval time.Duration `yaml:"feed_interval"`
}

// LoadConfig loads configuration from a YAML file. Keys missing from the
// file keep their default values; a missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	config := GetDefaultConfig()

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrorFileReadFailed, "failed to read config file", err).
			WithDetail("file", filename)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.NewConfigError(errors.ErrorConfigParsingFailed, "error parsing config file", err).
			WithDetail("file", filename)
	}

	return config, nil
}

// GetDefaultConfig returns a configuration with default values
func GetDefaultConfig() *Config {
	return &Config{
		ScanHTTP:    true,
		ScanSOCKS:   true,
		TimeoutMs:   20000,
		JudgeURL:    DefaultJudgeURL,
		OwnIPURL:    prober.DefaultOwnIPURL,
		Concurrency: 50,
		UserAgent:   prober.DefaultUserAgent,
		Metrics: MetricsConfig{
			Enabled:      false,
			ListenAddr:   ":9090",
			Path:         "/metrics",
			FeedPath:     "/feed",
			FeedInterval: time.Second,
		},
	}
}

// Timeout returns the per-attempt probe timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ScanConfig captures the settings every worker and the prober share for
// one run. The result is a value, so later reloads do not affect a running scan.
func (c *Config) ScanConfig() prober.Config {
	return prober.Config{
		ScanHTTP:        c.ScanHTTP,
		ScanSOCKS:       c.ScanSOCKS,
		Timeout:         c.Timeout(),
		JudgeURL:        c.JudgeURL,
		UserAgent:       c.UserAgent,
		RandomUserAgent: c.RandomUserAgent,
	}
}

// PoolConfig returns the client factory settings for the probe timeout
func (c *Config) PoolConfig() pool.Config {
	config := pool.DefaultConfig()
	config.Timeout = c.Timeout()
	if config.TLSHandshakeTimeout > config.Timeout {
		config.TLSHandshakeTimeout = config.Timeout
	}
	return config
}
