package session

import (
	"context"
	"sync"
	"time"

	"audiencedeck/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the credential store when another process rewrites the
// entries on disk (a login or logout from a second terminal). Events are
// debounced so a save of both files triggers a single reload.
type Watcher struct {
	mu       sync.Mutex
	store    *Store
	watcher  *fsnotify.Watcher
	onChange func()

	debounceDur time.Duration
	pending     *time.Timer

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher over the store's credential directory.
// onChange may be nil; when set it runs after each reload.
func NewWatcher(store *Store, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:       store,
		watcher:     fw,
		onChange:    onChange,
		debounceDur: 250 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watcher runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.store.Dir()); err != nil {
		// The run loop starts anyway so Stop always has a goroutine to
		// join; external changes just go unnoticed until the next run.
		logging.Session("cannot watch credential dir %s: %v", w.store.Dir(), err)
	} else {
		logging.Session("watching credential dir: %s", w.store.Dir())
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Session("credential watcher error: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDur, func() {
		if err := w.store.reload(); err != nil {
			logging.Session("credential reload failed: %v", err)
			return
		}
		logging.SessionDebug("credentials reloaded from disk")
		if w.onChange != nil {
			w.onChange()
		}
	})
}
