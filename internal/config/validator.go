package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

// ValidationResult represents the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ConfigValidationError
	Warnings []string
}

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

func (r *ValidationResult) fail(field string, value interface{}, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ConfigValidationError{Field: field, Value: value, Message: message})
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Err folds the validation errors into a single config error, or returns nil
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Error())
	}
	return errors.NewConfigError(errors.ErrorConfigInvalid, strings.Join(messages, "; "), nil).
		WithDetail("errors", len(r.Errors))
}

// ValidateConfig checks a configuration before a run captures it
func ValidateConfig(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ConfigValidationError{},
		Warnings: []string{},
	}

	if !config.ScanHTTP && !config.ScanSOCKS {
		result.fail("scan_http", false, "at least one of scan_http and scan_socks must be enabled")
	}

	// Validate timeout
	if config.TimeoutMs <= 0 {
		result.fail("timeout_ms", config.TimeoutMs, "timeout must be positive")
	} else if config.TimeoutMs > 120000 {
		result.warn("timeout of %dms is very high, dead proxies will hold workers for a long time", config.TimeoutMs)
	}

	// Validate concurrency
	if config.Concurrency <= 0 {
		result.fail("concurrency", config.Concurrency, "concurrency must be positive")
	} else if config.Concurrency > 1000 {
		result.warn("concurrency of %d is very high, may exhaust file descriptors", config.Concurrency)
	}

	validateURLs(config, result)
	validateRateLimit(config, result)
	validateFiles(config, result)
	validateMetricsSettings(config, result)

	return result
}

// validateURLs validates the judge and own-IP endpoints
func validateURLs(config *Config, result *ValidationResult) {
	if strings.TrimSpace(config.JudgeURL) == "" {
		result.fail("judge_url", config.JudgeURL, "judge URL cannot be empty")
	} else if msg := checkHTTPURL(config.JudgeURL); msg != "" {
		result.fail("judge_url", config.JudgeURL, msg)
	} else if strings.HasPrefix(strings.ToLower(config.JudgeURL), "https://") {
		result.warn("judge URL %q uses https, proxies that cannot tunnel will be reported dead", config.JudgeURL)
	}

	if config.OwnIPURL != "" {
		if msg := checkHTTPURL(config.OwnIPURL); msg != "" {
			result.fail("own_ip_url", config.OwnIPURL, msg)
		}
	}
}

func checkHTTPURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "URL scheme must be http or https"
	}
	if u.Host == "" {
		return "URL must include a host"
	}
	return ""
}

func validateRateLimit(config *Config, result *ValidationResult) {
	if config.RateLimitPerSecond < 0 {
		result.fail("rate_limit_per_second", config.RateLimitPerSecond, "rate limit cannot be negative")
	}
	if config.RateLimitBurst < 0 {
		result.fail("rate_limit_burst", config.RateLimitBurst, "burst cannot be negative")
	}
	if config.RateLimitPerSecond == 0 && config.RateLimitBurst > 0 {
		result.warn("rate_limit_burst is set but rate limiting is disabled, it will have no effect")
	}
}

// validateFiles checks optional input files. A missing file is reported again
// when it is opened, so it only warns here.
func validateFiles(config *Config, result *ValidationResult) {
	for field, path := range map[string]string{
		"dangerous_ranges_file": config.DangerousRangesFile,
		"geoip_db":              config.GeoIPDB,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			result.warn("%s %q is not readable: %v", field, path, err)
		}
	}
}

// ValidateAndLoad loads and validates a configuration file
func ValidateAndLoad(filename string) (*Config, *ValidationResult, error) {
	config, err := LoadConfig(filename)
	if err != nil {
		return nil, nil, err
	}

	validationResult := ValidateConfig(config)
	return config, validationResult, nil
}

// validateMetricsSettings validates metrics and feed configuration
func validateMetricsSettings(config *Config, result *ValidationResult) {
	if !config.Metrics.Enabled {
		return
	}

	// Validate listen address format
	if strings.TrimSpace(config.Metrics.ListenAddr) == "" {
		result.fail("metrics.listen_addr", config.Metrics.ListenAddr,
			"metrics listen address cannot be empty when metrics are enabled")
	} else if !strings.Contains(config.Metrics.ListenAddr, ":") {
		result.warn("metrics listen address '%s' should include port (e.g., ':9090' or 'localhost:9090')", config.Metrics.ListenAddr)
	}

	for field, path := range map[string]string{
		"metrics.path":      config.Metrics.Path,
		"metrics.feed_path": config.Metrics.FeedPath,
	} {
		if strings.TrimSpace(path) == "" {
			if field == "metrics.path" {
				result.fail(field, path, "metrics path cannot be empty when metrics are enabled")
			}
			continue
		}
		if !strings.HasPrefix(path, "/") {
			result.warn("%s '%s' should start with '/' for proper HTTP routing", field, path)
		}
	}

	if config.Metrics.FeedPath != "" && config.Metrics.FeedPath == config.Metrics.Path {
		result.fail("metrics.feed_path", config.Metrics.FeedPath, "feed path must differ from the metrics path")
	}
	if config.Metrics.FeedInterval < 0 {
		result.fail("metrics.feed_interval", config.Metrics.FeedInterval, "feed interval cannot be negative")
	}
}
