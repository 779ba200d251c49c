// Package watcher keeps watched drop folders in sync with the chunk store.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultDebounce is how long a file must stay quiet before it is ingested.
// Editors and network copies produce bursts of write events for one save.
const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories with fsnotify and invokes callbacks when
// ingestable files change or disappear. Roots are fixed at construction.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onIngest   func(path string)
	onRemove   func(path string)
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher over roots. onIngest fires after a changed file has
// been quiet for the debounce window; onRemove fires when a matching file is
// deleted. extensions filter which files count (empty = all).
func New(roots, extensions []string, recursive bool, onIngest, onRemove func(path string), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		onIngest:   onIngest,
		onRemove:   onRemove,
		debounce:   defaultDebounce,
		logger:     logger,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
}

// Start begins watching. Missing roots are created. Runs until Stop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := addRoot(fsw, root, w.recursive); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.started = true
	w.logger.Info("watching directories",
		zap.Strings("roots", w.roots),
		zap.Bool("recursive", w.recursive))
	go w.run(fsw)
	return nil
}

func addRoot(fsw *fsnotify.Watcher, root string, recursive bool) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addNewDirectory(path)
			return
		}
		if w.matches(path) {
			w.scheduleIngest(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.matches(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// addNewDirectory starts watching a directory created under a recursive root
// and ingests the files it arrived with.
func (w *Watcher) addNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	recursive := w.recursive
	w.mu.Unlock()
	if fsw == nil || !recursive {
		return
	}
	if err := addRoot(fsw, dir, true); err != nil {
		w.logger.Warn("watch new directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.syncDirectory(dir)
}

func (w *Watcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if w.onIngest != nil {
			w.onIngest(path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// SyncExistingFiles invokes onIngest for every matching file already present
// under the watched roots. Call after Start to pick up files that predate the
// watcher.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.roots {
		w.syncDirectory(root)
	}
}

func (w *Watcher) syncDirectory(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.matches(path) && w.onIngest != nil {
			w.onIngest(path)
		}
		return nil
	})
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops watching and cancels pending ingests.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
