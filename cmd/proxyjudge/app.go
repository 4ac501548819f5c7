package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	"github.com/ResistanceIsUseless/proxyjudge/internal/config"
	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/feed"
	"github.com/ResistanceIsUseless/proxyjudge/internal/filter"
	"github.com/ResistanceIsUseless/proxyjudge/internal/geo"
	"github.com/ResistanceIsUseless/proxyjudge/internal/loader"
	"github.com/ResistanceIsUseless/proxyjudge/internal/logging"
	"github.com/ResistanceIsUseless/proxyjudge/internal/metrics"
	"github.com/ResistanceIsUseless/proxyjudge/internal/output"
	"github.com/ResistanceIsUseless/proxyjudge/internal/pool"
	"github.com/ResistanceIsUseless/proxyjudge/internal/prober"
	progresspkg "github.com/ResistanceIsUseless/proxyjudge/internal/progress"
	"github.com/ResistanceIsUseless/proxyjudge/internal/queue"
	"github.com/ResistanceIsUseless/proxyjudge/internal/scanner"
	"github.com/ResistanceIsUseless/proxyjudge/internal/ui"
)

// app owns everything that outlives a single scan run
type app struct {
	flags      *cliFlags
	logger     *logging.Logger
	scanLogger *logging.Logger
	sink       *eventSink

	configPath string
	fileConfig *config.Config
	watcher    *config.ConfigWatcher

	queue     *queue.Manager
	geo       *geo.Tagger
	collector *metrics.Collector
	hub       *feed.Hub

	mutex      sync.RWMutex
	scanner    *scanner.Scanner
	pool       *pool.ConnectionPool
	ownIP      *prober.OwnIP
	runConfig  *config.Config
	generation uint64
}

func newApp(flags *cliFlags, logger, scanLogger *logging.Logger, sink *eventSink) (*app, error) {
	a := &app{
		flags:      flags,
		logger:     logger,
		scanLogger: scanLogger,
		sink:       sink,
		queue:      queue.NewManager(),
	}

	if flags.configFile != "" {
		if _, err := os.Stat(flags.configFile); os.IsNotExist(err) {
			return nil, errors.NewConfigError(errors.ErrorConfigNotFound, "config file not found", err).
				WithDetail("path", flags.configFile)
		}
	}

	a.configPath = config.GetConfigPath(flags.configFile)
	if a.configPath == "" {
		logger.ConfigNotFound(config.GetUserConfigPath())
		a.fileConfig = config.GetDefaultConfig()
	} else {
		cfg, result, err := config.ValidateAndLoad(a.configPath)
		if err != nil {
			return nil, err
		}
		for _, warning := range result.Warnings {
			logger.Warn("Configuration validation warning", "warning", warning)
		}
		a.fileConfig = cfg
		logger.ConfigLoaded(a.configPath)
	}

	cfg := a.currentConfig()
	if err := config.ValidateConfig(cfg).Err(); err != nil {
		return nil, err
	}

	if flags.hotReload {
		if a.configPath == "" {
			logger.Warn("Hot reload needs a config file, continuing without it")
		} else if err := a.watch(); err != nil {
			logger.Warn("Failed to enable configuration hot-reloading", "error", err)
		}
	}

	var err error
	var dangerous *filter.Filter
	if cfg.DangerousRangesFile != "" {
		if dangerous, err = filter.Load(cfg.DangerousRangesFile); err != nil {
			return nil, err
		}
		logger.Info("Dangerous ranges loaded", "file", cfg.DangerousRangesFile, "ranges", dangerous.Len())
	}

	imported, err := loader.LoadCandidates(flags.proxyList, loader.Options{
		KeepMalformed: cfg.KeepMalformed,
		Filter:        dangerous,
	})
	if err != nil {
		return nil, err
	}
	logger.CandidatesImported(flags.proxyList, len(imported.Candidates), imported.Bad, imported.Duplicate, imported.Dangerous)
	for _, warning := range imported.Warnings {
		logger.Debug("Candidate import warning", "warning", warning)
	}
	a.queue.Initialize(imported.Candidates)

	if a.geo, err = geo.Open(cfg.GeoIPDB); err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.collector = metrics.NewCollector()
		a.hub = feed.NewHub(a, feed.Options{
			Interval:   cfg.Metrics.FeedInterval,
			Controller: a,
			Logger:     logger,
		})
	}

	return a, nil
}

func (a *app) watch() error {
	watcher, err := config.NewConfigWatcher(a.configPath, config.WatcherConfig{
		DebounceDelay: time.Second,
		OnReload: func(cfg *config.Config, result *config.ValidationResult) {
			for _, warning := range result.Warnings {
				a.logger.Warn("Configuration warning after reload", "warning", warning)
			}
			a.logger.Info("Configuration reloaded, changes apply to the next scan", "file", a.configPath)
		},
		OnError: func(err error) {
			a.logger.Error("Configuration reload failed", "error", err)
		},
	})
	if err != nil {
		return err
	}
	a.watcher = watcher
	a.logger.Info("Configuration hot-reloading enabled", "file", watcher.Path())
	return nil
}

// currentConfig returns a private copy of the latest configuration with the
// command line overrides applied
func (a *app) currentConfig() *config.Config {
	var cfg config.Config
	if a.watcher != nil {
		cfg = *a.watcher.Current()
	} else {
		cfg = *a.fileConfig
	}
	a.flags.apply(&cfg)
	return &cfg
}

// reloadPending reports whether the config file changed since the last run
func (a *app) reloadPending() bool {
	if a.watcher == nil {
		return false
	}
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.watcher.Generation() != a.generation
}

// startServices brings up the metrics endpoint and the live feed
func (a *app) startServices(ctx context.Context) {
	if a.collector == nil {
		return
	}
	cfg := a.currentConfig()

	go a.hub.Run(ctx)
	if err := a.collector.StartServer(metrics.ServerConfig{
		Addr:     cfg.Metrics.ListenAddr,
		Path:     cfg.Metrics.Path,
		FeedPath: cfg.Metrics.FeedPath,
		Feed:     a.hub,
	}); err != nil {
		a.logger.Warn("Failed to start metrics server", "error", err, "addr", cfg.Metrics.ListenAddr)
		return
	}
	a.logger.Info("Metrics server started", "addr", a.collector.Addr(), "path", cfg.Metrics.Path, "feed", cfg.Metrics.FeedPath)

	go a.trackQueue(ctx)
}

func (a *app) trackQueue(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.collector.SetQueueRemaining(a.queue.Remaining())
			a.collector.SetPaused(a.Stats().Paused)
		}
	}
}

// startRun captures the configuration and starts a scan over the unscanned
// part of the queue
func (a *app) startRun(ctx context.Context) error {
	cfg := a.currentConfig()
	if err := config.ValidateConfig(cfg).Err(); err != nil {
		return err
	}

	a.mutex.RLock()
	previous, known := a.pool, ""
	if a.ownIP != nil {
		known = a.ownIP.Known()
	}
	a.mutex.RUnlock()

	if previous != nil {
		previous.CloseIdleConnections()
	}
	clients := pool.NewConnectionPool(cfg.PoolConfig())

	ownIP := prober.NewOwnIP(clients.GetDirectClient(), cfg.OwnIPURL, cfg.JudgeURL)
	if known != "" {
		ownIP.Set(known)
	} else {
		ip, err := lookupOwnIP(ctx, ownIP, cfg.Timeout())
		if err != nil && errors.IsRetryable(err) && ctx.Err() == nil {
			ip, err = lookupOwnIP(ctx, ownIP, cfg.Timeout())
		}
		if err != nil {
			ownIP.MarkUnavailable(err)
			a.logger.Warn("Own IP unknown, transparent proxies will not be detected", "error", err)
		} else {
			a.logger.Info("Own IP resolved", "ip", ip)
		}
	}

	options := scanner.Options{
		RatePerSecond: cfg.RateLimitPerSecond,
		RateBurst:     cfg.RateLimitBurst,
		Logger:        a.scanLogger,
		Recorder:      a,
	}
	if a.geo != nil {
		options.Enricher = a.geo
	}
	s := scanner.New(prober.New(cfg.ScanConfig(), clients, ownIP), options)

	a.mutex.Lock()
	if a.watcher != nil {
		a.generation = a.watcher.Generation()
	}
	a.pool = clients
	a.ownIP = ownIP
	a.scanner = s
	a.runConfig = cfg
	a.mutex.Unlock()

	return s.Start(ctx, a.queue, cfg.Concurrency)
}

func lookupOwnIP(ctx context.Context, ownIP *prober.OwnIP, timeout time.Duration) (string, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ownIP.Get(lookupCtx)
}

// RecordProbe forwards outcomes to the metrics collector and the event log
func (a *app) RecordProbe(c *candidate.Candidate, report prober.Report, duration time.Duration) {
	if a.collector != nil {
		a.collector.RecordProbe(c, report, duration)
	}
	if a.sink == nil {
		return
	}
	if c.Alive {
		a.sink.push(ui.AliveEvent(c.Key(), string(c.Protocol), string(c.Anonymity), c.Latency,
			output.Band(c.Latency, a.runTimeout())))
	} else if a.flags.debug {
		a.sink.push(fmt.Sprintf("%s %s %v", ui.IconError, c.Key(), report.LastError()))
	}
}

func (a *app) SetWorkersActive(count int) {
	if a.collector != nil {
		a.collector.SetWorkersActive(count)
	}
}

func (a *app) current() *scanner.Scanner {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.scanner
}

// Stats reports the current run, or an idle snapshot before the first run
func (a *app) Stats() scanner.Stats {
	if s := a.current(); s != nil {
		return s.Stats()
	}
	return scanner.Stats{Total: int64(a.queue.Remaining())}
}

func (a *app) Pause() {
	if s := a.current(); s != nil {
		s.Pause()
	}
}

func (a *app) Resume() {
	if s := a.current(); s != nil {
		s.Resume()
	}
}

func (a *app) TogglePause() {
	if s := a.current(); s != nil {
		s.TogglePause()
	}
}

func (a *app) Terminate() {
	if s := a.current(); s != nil {
		s.Terminate()
	}
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (a *app) Done() <-chan struct{} {
	if s := a.current(); s != nil {
		return s.Done()
	}
	return closedDone
}

func (a *app) runTimeout() time.Duration {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.runConfig != nil {
		return a.runConfig.Timeout()
	}
	return config.GetDefaultConfig().Timeout()
}

// finish summarizes the last run and writes the requested outputs
func (a *app) finish() (output.SummaryOutput, error) {
	a.mutex.RLock()
	cfg := a.runConfig
	runID := ""
	if a.scanner != nil {
		runID = a.scanner.RunID()
	}
	a.mutex.RUnlock()
	if cfg == nil {
		cfg = a.currentConfig()
	}

	var scanned []*candidate.Candidate
	for _, c := range a.queue.Candidates() {
		if c.Tested {
			scanned = append(scanned, c)
		}
	}

	summary := output.GenerateSummary(runID, scanned, cfg.Timeout(), a.flags.filter)
	a.logger.SummaryStats(summary.TotalProxies, summary.WorkingProxies, summary.HTTPProxies, summary.SOCKSProxies, summary.AnonymousProxies)

	writers := []struct {
		file   string
		format string
		write  func(string) error
	}{
		{a.flags.outputFile, "text", func(f string) error { return output.WriteTextReport(f, summary) }},
		{a.flags.jsonFile, "json", func(f string) error { return output.WriteJSONReport(f, summary) }},
		{a.flags.workingFile, "list", func(f string) error { return output.WriteProxyList(f, summary.Results) }},
	}
	for _, w := range writers {
		if w.file == "" {
			continue
		}
		if err := w.write(w.file); err != nil {
			return summary, err
		}
		a.logger.ResultsSaved(w.file, w.format)
	}

	return summary, nil
}

// rescan rearms the queue so the same list can be scanned again
func (a *app) rescan() {
	a.queue.Initialize(nil)
}

func (a *app) close() {
	a.Terminate()
	<-a.Done()

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Error stopping config watcher", "error", err)
		}
	}
	if a.collector != nil {
		if err := a.collector.StopServer(); err != nil {
			a.logger.Warn("Error stopping metrics server", "error", err)
		}
	}

	a.mutex.RLock()
	if a.pool != nil {
		a.pool.CloseIdleConnections()
	}
	a.mutex.RUnlock()

	if err := a.geo.Close(); err != nil {
		a.logger.Warn("Error closing geoip database", "error", err)
	}
	a.logger.ShutdownComplete()
}

// runHeadless scans once without the terminal UI
func runHeadless(ctx context.Context, a *app, indicator progresspkg.ProgressIndicator) (output.SummaryOutput, error) {
	if err := a.startRun(ctx); err != nil {
		return output.SummaryOutput{}, err
	}
	indicator.Start(a.queue.Count())

	progresspkg.Follow(ctx, indicator, a, 0)
	if ctx.Err() != nil {
		a.logger.ShutdownReceived()
		a.Terminate()
		<-a.Done()
	}

	summary, err := a.finish()
	indicator.Finish(output.FoundMessage(summary))
	return summary, err
}
