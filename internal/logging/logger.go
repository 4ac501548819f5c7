package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging capabilities
type Logger struct {
	*slog.Logger
}

// LogLevel represents log level constants
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config represents logger configuration
type Config struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// NewLogger creates a new structured logger. Unknown levels fall back to
// info and a nil Output writes to stderr, leaving stdout for results.
func NewLogger(config Config) *Logger {
	level, ok := slogLevels[config.Level]
	if !ok {
		level = slog.LevelInfo
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	if config.Format == "json" {
		return &Logger{Logger: slog.New(slog.NewJSONHandler(output, opts))}
	}
	return &Logger{Logger: slog.New(slog.NewTextHandler(output, opts))}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewLogger(Config{Level: LevelError, Output: io.Discard})
}

// WithContext adds contextual fields to the logger
func (l *Logger) WithContext(args ...any) *Logger {
	return &Logger{
		Logger: l.With(args...),
	}
}

// WithWorker adds worker ID context
func (l *Logger) WithWorker(workerID int) *Logger {
	return l.WithContext("worker", workerID)
}

// WithProxy adds proxy context
func (l *Logger) WithProxy(proxy string) *Logger {
	return l.WithContext("proxy", proxy)
}

// WithRun adds scan run context
func (l *Logger) WithRun(runID string) *Logger {
	return l.WithContext("run", runID)
}

// ConfigLoaded logs successful configuration loading
func (l *Logger) ConfigLoaded(file string) {
	l.Info("Configuration loaded", "file", file)
}

// ConfigNotFound logs when config file is not found
func (l *Logger) ConfigNotFound(file string) {
	l.Warn("Config file not found, using defaults", "file", file)
}

// CandidatesImported logs the outcome of importing a candidate list
func (l *Logger) CandidatesImported(file string, loaded, bad, duplicate, dangerous int) {
	l.Info("Candidates imported",
		"file", file,
		"loaded", loaded,
		"bad", bad,
		"duplicate", duplicate,
		"dangerous", dangerous,
	)
}

// ScanStart logs start of a scan run
func (l *Logger) ScanStart(total int, workers int) {
	l.Info("Starting scan", "total", total, "workers", workers)
}

// ScanComplete logs completion of a scan run
func (l *Logger) ScanComplete(scanned, alive int64, elapsed time.Duration) {
	l.Info("Scan complete", "scanned", scanned, "alive", alive, "elapsed", elapsed.Round(time.Millisecond))
}

// ProxyAlive logs a candidate that answered through one of the protocols
func (l *Logger) ProxyAlive(proxy, protocol, anonymity string, latencyMs int) {
	l.WithProxy(proxy).Info("Proxy alive",
		"protocol", protocol,
		"anonymity", anonymity,
		"latency_ms", latencyMs,
	)
}

// ProxyDead logs a candidate that failed every protocol
func (l *Logger) ProxyDead(proxy string, attempts int, lastErr error) {
	logger := l.WithProxy(proxy).WithContext("attempts", attempts)
	if lastErr != nil {
		logger = logger.WithContext("error", lastErr)
	}
	logger.Debug("Proxy dead")
}

// WorkerStart logs worker startup
func (l *Logger) WorkerStart(workerID int) {
	l.WithWorker(workerID).Debug("Worker started")
}

// WorkerStop logs worker shutdown
func (l *Logger) WorkerStop(workerID int) {
	l.WithWorker(workerID).Debug("Worker stopped")
}

// ScanPaused logs a pause request
func (l *Logger) ScanPaused() {
	l.Info("Scan paused")
}

// ScanResumed logs a resume request
func (l *Logger) ScanResumed() {
	l.Info("Scan resumed")
}

// ShutdownReceived logs shutdown signal
func (l *Logger) ShutdownReceived() {
	l.Info("Shutdown signal received, cleaning up...")
}

// ShutdownComplete logs shutdown completion
func (l *Logger) ShutdownComplete() {
	l.Info("Shutdown complete")
}

// ResultsSaved logs when results are saved to file
func (l *Logger) ResultsSaved(file string, format string) {
	l.Info("Results saved", "file", file, "format", format)
}

// SummaryStats logs summary statistics
func (l *Logger) SummaryStats(total, alive, http, socks, anonymous int) {
	l.Info("Summary statistics",
		"total_proxies", total,
		"alive_proxies", alive,
		"http_proxies", http,
		"socks_proxies", socks,
		"anonymous_proxies", anonymous,
	)
}
