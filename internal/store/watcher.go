package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relayproj/relay/internal/logging"
)

// DebounceDelay is the delay for coalescing bursts of file system events.
const DebounceDelay = 100 * time.Millisecond

// Watcher observes the run file of a FileStore for changes made outside
// this process (for example, another client instance clearing the run id)
// and invokes a callback after each change settles.
//
// The watch is placed on the containing directory because the store writes
// the file via rename, which replaces the watched inode.
type Watcher struct {
	watcher  *fsnotify.Watcher
	file     string
	onChange func()

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	doneCh  chan struct{}
	closeMu sync.Once
}

// NewWatcher starts watching the store's run file. onChange is invoked from
// a background goroutine, debounced by DebounceDelay.
func NewWatcher(s *FileStore, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(s.Path())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		file:     filepath.Base(s.Path()),
		onChange: onChange,
		doneCh:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// loop drains fsnotify events until the watcher closes.
func (w *Watcher) loop() {
	log := logging.Store()
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.file {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("run file changed on disk", "op", ev.Op.String())
			w.scheduleNotify()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("run file watcher error", "error", err)
		case <-w.doneCh:
			return
		}
	}
}

// scheduleNotify (re)arms the debounce timer.
func (w *Watcher) scheduleNotify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(DebounceDelay, func() {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if !closed && w.onChange != nil {
			w.onChange()
		}
	})
}

// Close stops watching. Callbacks already past the closed check may still
// complete, but no new ones are scheduled after Close returns.
func (w *Watcher) Close() error {
	var err error
	w.closeMu.Do(func() {
		w.mu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		close(w.doneCh)
		err = w.watcher.Close()
	})
	return err
}
