package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

// WatcherConfig holds configuration for the config file watcher
type WatcherConfig struct {
	// Debounce delay to collapse the burst of events an editor save produces
	DebounceDelay time.Duration
	// Called after a valid file replaced the current configuration
	OnReload func(config *Config, result *ValidationResult)
	// Called when a reload fails. The previous configuration stays current.
	OnError func(err error)
}

// DefaultWatcherConfig returns default watcher configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDelay: 500 * time.Millisecond,
		OnReload:      func(*Config, *ValidationResult) {},
		OnError:       func(error) {},
	}
}

// ConfigWatcher keeps the latest valid configuration from a file. A reload
// never touches a running scan: callers take a Current snapshot when a run
// starts, and Generation tells them whether it changed since.
type ConfigWatcher struct {
	path    string
	opts    WatcherConfig
	watcher *fsnotify.Watcher

	current    atomic.Pointer[Config]
	generation atomic.Uint64

	mu       sync.Mutex
	debounce *time.Timer
	stopped  bool

	stop chan struct{}
	done chan struct{}
}

// NewConfigWatcher loads path and starts watching it. The initial load must
// be valid.
func NewConfigWatcher(path string, opts WatcherConfig) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrorConfigInvalid, "failed to resolve config path", err)
	}
	if opts.OnReload == nil {
		opts.OnReload = func(*Config, *ValidationResult) {}
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}

	initial, result, err := ValidateAndLoad(absPath)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrorSystemResourceExhausted, "failed to create file watcher", err)
	}
	// The directory is watched so editors that replace the file by rename
	// are still seen
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, errors.NewFileError(errors.ErrorFileReadFailed, "failed to watch config directory", absPath, err)
	}

	cw := &ConfigWatcher{
		path:    absPath,
		opts:    opts,
		watcher: watcher,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	cw.current.Store(initial)

	go cw.watch()
	return cw, nil
}

// Current returns the latest valid configuration
func (cw *ConfigWatcher) Current() *Config {
	return cw.current.Load()
}

// Generation counts successful reloads
func (cw *ConfigWatcher) Generation() uint64 {
	return cw.generation.Load()
}

// Path returns the absolute path being watched
func (cw *ConfigWatcher) Path() string {
	return cw.path
}

func (cw *ConfigWatcher) watch() {
	defer close(cw.done)

	for {
		select {
		case <-cw.stop:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				cw.schedule(event.Op.String())
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.opts.OnError(fmt.Errorf("watcher error: %w", err))
		}
	}
}

func (cw *ConfigWatcher) schedule(operation string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.stopped {
		return
	}
	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.debounce = time.AfterFunc(cw.opts.DebounceDelay, func() {
		cw.reload(operation)
	})
}

func (cw *ConfigWatcher) reload(operation string) {
	next, result, err := ValidateAndLoad(cw.path)
	if err != nil {
		cw.opts.OnError(fmt.Errorf("failed to reload config after %s: %w", operation, err))
		return
	}
	if err := result.Err(); err != nil {
		cw.opts.OnError(fmt.Errorf("config rejected after %s: %w", operation, err))
		return
	}

	cw.current.Store(next)
	cw.generation.Add(1)
	cw.opts.OnReload(next, result)
}

// Stop ends watching. Pending reloads are dropped.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return nil
	}
	cw.stopped = true
	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.mu.Unlock()

	close(cw.stop)
	err := cw.watcher.Close()
	<-cw.done
	return err
}
