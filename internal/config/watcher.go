package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ReloadCallback is invoked with the previous and newly loaded reloadable
// configuration whenever the watched file changes.
type ReloadCallback func(old, new *ReloadableConfig)

// Watcher hot-reloads the ReloadableConfig subset of a Config from a YAML
// file, leaving connection-level settings (endpoints, table names) fixed
// for the process lifetime.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu        sync.RWMutex
	current   ReloadableConfig
	callbacks []ReloadCallback

	stopCh chan struct{}
}

// NewWatcher creates a Watcher for path, seeding it with the config's
// current reloadable values. An empty path disables watching.
func NewWatcher(path string, seed ReloadableConfig, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		path:    path,
		logger:  logger,
		current: seed,
		stopCh:  make(chan struct{}),
	}
	if path == "" {
		return w, nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new fsnotify watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.watcher = fw
	return w, nil
}

// OnChange registers a callback fired after every successful reload.
func (w *Watcher) OnChange(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Current returns the most recently loaded reloadable configuration.
func (w *Watcher) Current() ReloadableConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start runs the watch loop in a background goroutine. It is a no-op if
// the watcher was constructed with an empty path.
func (w *Watcher) Start(ctx context.Context) {
	if w.watcher == nil {
		return
	}
	go w.loop(ctx)
}

// Stop tears down the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("config reload: read failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	var full Config
	if err := yaml.Unmarshal(raw, &full); err != nil {
		w.logger.Warn("config reload: parse failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	next := full.Reloadable()
	if err := validateReloadable(&next); err != nil {
		w.logger.Warn("config reload: rejected", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = next
	cbs := append([]ReloadCallback(nil), w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("config reloaded",
		zap.Int("phase1_workers", next.GraphWriter.Phase1Workers),
		zap.Int("top_k_chunks", next.Query.TopKChunks),
	)
	for _, cb := range cbs {
		go cb(&old, &next)
	}
}

func validateReloadable(rc *ReloadableConfig) error {
	if rc.GraphWriter.Phase1Workers <= 0 {
		return fmt.Errorf("graph_writer.phase1_workers must be positive")
	}
	if rc.GraphWriter.MaxAttempts <= 0 {
		return fmt.Errorf("graph_writer.max_attempts must be positive")
	}
	if rc.Query.TopKChunks <= 0 {
		return fmt.Errorf("query.top_k_chunks must be positive")
	}
	return nil
}
