package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/campuserp/abac-core/internal/metrics"
)

// ReloadedEvent reports the outcome of a policy directory reload.
type ReloadedEvent struct {
	Timestamp time.Time
	PolicyIDs []string
	Error     error
}

// FileWatcher monitors a policy directory and swaps the memory store's rule
// set when files change. Events are debounced so editors that write multiple
// times per save trigger a single reload.
type FileWatcher struct {
	watcher         *fsnotify.Watcher
	path            string
	loader          *Loader
	store           *MemoryStore
	logger          *zap.Logger
	metrics         *metrics.Metrics
	debounceTimeout time.Duration
	debounceTimer   *time.Timer
	eventChan       chan ReloadedEvent
	stopChan        chan struct{}
	mu              sync.RWMutex
	isWatching      bool
}

// NewFileWatcher creates a new watcher over a policy directory.
func NewFileWatcher(path string, store *MemoryStore, loader *Loader, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:         watcher,
		path:            path,
		loader:          loader,
		store:           store,
		logger:          logger,
		debounceTimeout: 500 * time.Millisecond,
		eventChan:       make(chan ReloadedEvent, 10),
		stopChan:        make(chan struct{}),
	}, nil
}

// Watch starts watching the policy directory for changes.
func (fw *FileWatcher) Watch(ctx context.Context) error {
	fw.mu.Lock()
	if fw.isWatching {
		fw.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	fw.isWatching = true
	fw.mu.Unlock()

	if err := fw.watcher.Add(fw.path); err != nil {
		fw.mu.Lock()
		fw.isWatching = false
		fw.mu.Unlock()
		return fmt.Errorf("add path to watcher: %w", err)
	}

	fw.logger.Info("Starting policy file watcher",
		zap.String("path", fw.path),
		zap.Duration("debounce", fw.debounceTimeout),
	)

	go fw.watchLoop(ctx)
	return nil
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer func() {
		fw.mu.Lock()
		fw.isWatching = false
		fw.mu.Unlock()
		fw.logger.Info("Policy file watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopChan:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if isPolicyFile(event.Name) {
				fw.handleEvent(event)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

func isPolicyFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}

// handleEvent schedules a reload, resetting the debounce timer.
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.logger.Debug("Policy file change detected",
		zap.String("file", event.Name),
		zap.String("op", event.Op.String()),
	)

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounceTimeout, fw.performReload)
}

// performReload loads all policy files and swaps the store's rule set.
func (fw *FileWatcher) performReload() {
	fw.logger.Info("Reloading policies from disk", zap.String("path", fw.path))

	rules, err := fw.loader.LoadFromDirectory(fw.path)
	if err != nil {
		fw.logger.Error("Failed to load policies",
			zap.String("path", fw.path),
			zap.Error(err),
		)
		fw.metrics.RecordPolicyReload("failure")
		fw.emit(ReloadedEvent{Timestamp: time.Now(), Error: err})
		return
	}

	fw.store.ReplaceAll(rules)

	ids := make([]string, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
	}

	fw.logger.Info("Policies reloaded successfully", zap.Int("count", len(rules)))
	fw.metrics.RecordPolicyReload("success")
	fw.emit(ReloadedEvent{Timestamp: time.Now(), PolicyIDs: ids})
}

// emit delivers a reload event without blocking when nobody is listening.
func (fw *FileWatcher) emit(ev ReloadedEvent) {
	select {
	case fw.eventChan <- ev:
	default:
	}
}

// EventChan returns a channel for receiving reload events.
func (fw *FileWatcher) EventChan() <-chan ReloadedEvent {
	return fw.eventChan
}

// Stop stops watching for file changes.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.isWatching {
		return nil
	}

	close(fw.stopChan)
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	return fw.watcher.Close()
}

// SetMetrics attaches reload counters. Nil is fine.
func (fw *FileWatcher) SetMetrics(m *metrics.Metrics) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.metrics = m
}

// SetDebounceTimeout sets the debounce interval for reloads.
func (fw *FileWatcher) SetDebounceTimeout(d time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.debounceTimeout = d
}

// IsWatching reports whether the watcher is active.
func (fw *FileWatcher) IsWatching() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.isWatching
}
