package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay debounces editors that write the file several times in
// quick succession.
const reloadDelay = 500 * time.Millisecond

// Watcher keeps an Inventory current with its file on disk. A reload
// that fails validation keeps the previous inventory, so a bad edit
// never takes the process down.
type Watcher struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	onLoad  func(*Inventory)

	mu      sync.RWMutex
	current *Inventory
}

// NewWatcher loads the inventory once and returns a watcher over it.
// onLoad, if non-nil, is called with every successfully loaded
// inventory, the initial one included.
func NewWatcher(path string, logger zerolog.Logger, onLoad func(*Inventory)) (*Watcher, error) {
	inv, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:    path,
		logger:  logger.With().Str("component", "inventory-watcher").Logger(),
		onLoad:  onLoad,
		current: inv,
	}
	if onLoad != nil {
		onLoad(inv)
	}
	return w, nil
}

// Current returns the most recently loaded valid inventory.
func (w *Watcher) Current() *Inventory {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching the file until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	go w.processEvents(ctx)

	w.logger.Info().Str("path", w.path).Msg("Started watching inventory")
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Inventory file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Inventory watcher error")
		}
	}
}

func (w *Watcher) reload() {
	inv, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload inventory, keeping previous")
		return
	}
	w.mu.Lock()
	w.current = inv
	w.mu.Unlock()

	w.logger.Info().Int("targets", len(inv.Targets)).Msg("Inventory reloaded")
	if w.onLoad != nil {
		w.onLoad(inv)
	}
}
