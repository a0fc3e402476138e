// Package watch implements `arcana --watch`: after a run, watch every
// directory under the given roots (the CLI passes the working
// directory) and re-plan and re-run when a file under them changes,
// debounced to absorb editor-save bursts. Changes are not filtered
// against the jobs' track_inputs: any write, create, remove or rename
// under a watched directory triggers a re-run.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arcanabuilder/arcana/internal/arcerr"
)

const defaultDebounce = 150 * time.Millisecond

// Watcher watches a fixed set of directories and fires Trigger, at
// most once per debounce window, whenever a file under any of them
// changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	pendingMu sync.Mutex
	pending   map[string]time.Time

	Trigger func()
}

// New creates a Watcher that recursively watches every directory
// reachable from roots, skipping `.arcana`, `.git`, `vendor`, and
// `node_modules`.
func New(roots []string, debounce time.Duration, trigger func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &arcerr.IOError{Message: "creating file watcher", Cause: err}
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		pending:  map[string]time.Time{},
		Trigger:  trigger,
	}

	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func shouldSkipDir(rel string) bool {
	if rel == "." {
		return false
	}
	for _, skip := range []string{".arcana", ".git", "vendor", "node_modules"} {
		if rel == skip || strings.HasPrefix(rel, skip+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Start begins watching; it is a no-op if already running.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	go w.processEvents()
	go w.processDebounced()
}

// Stop ends watching and releases the underlying file handles.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fsw.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[ev.Name] = time.Now()
			w.pendingMu.Unlock()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.flushStable()
		}
	}
}

func (w *Watcher) flushStable() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	fired := false
	for path, ts := range w.pending {
		if now.Sub(ts) < w.debounce {
			continue
		}
		delete(w.pending, path)
		fired = true
	}
	if fired && w.Trigger != nil {
		w.Trigger()
	}
}
