package file

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/pda/internal/logger"
)

// PromptWatcher reloads a PromptStore whenever a template file in its
// directory is created, written, removed or renamed.
type PromptWatcher struct {
	mu      sync.Mutex
	store   *PromptStore
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	reloads atomic.Int64
}

// NewPromptWatcher creates a watcher for the store's directory.
func NewPromptWatcher(store *PromptStore) (*PromptWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prompt watcher: %w", err)
	}
	return &PromptWatcher{
		store:   store,
		watcher: w,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; events are handled until ctx
// is cancelled or Stop is called.
func (pw *PromptWatcher) Start(ctx context.Context) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.running {
		return nil
	}

	if err := os.MkdirAll(pw.store.Dir(), 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	if err := pw.watcher.Add(pw.store.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", pw.store.Dir(), err)
	}
	pw.running = true

	logger.Debug("Watching prompt templates in %s", pw.store.Dir())
	go pw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (pw *PromptWatcher) Stop() {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		_ = pw.watcher.Close()
		return
	}
	pw.running = false
	pw.mu.Unlock()

	close(pw.stopCh)
	<-pw.doneCh
	if err := pw.watcher.Close(); err != nil {
		logger.Warn("Closing prompt watcher: %v", err)
	}
}

// Reloads returns how many times the store has been reloaded.
func (pw *PromptWatcher) Reloads() int64 {
	return pw.reloads.Load()
}

func (pw *PromptWatcher) run(ctx context.Context) {
	defer close(pw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-pw.stopCh:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handle(event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Prompt watcher error: %v", err)
		}
	}
}

func (pw *PromptWatcher) handle(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".txt") {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	pw.store.Reload()
	pw.reloads.Add(1)
	logger.Info("Prompt template changed: %s", event.Name)
}
