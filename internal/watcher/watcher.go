// Package watcher keeps the news index current by watching the corpus
// directory with fsnotify and re-indexing documents as they change.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/newsvec/internal/corpus"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Handler receives debounced document changes. The indexer satisfies it.
type Handler interface {
	IndexFile(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error
	// DeleteDirectory drops every document stored under dir.
	DeleteDirectory(ctx context.Context, dir string) error
}

// Watcher watches one corpus root, recursively.
type Watcher struct {
	root       string
	extensions []string
	handler    Handler
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	dirs    map[string]struct{}
	ctx     context.Context
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for watch events and handler failures.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a path must stay quiet before it is re-indexed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher returns a watcher for root that passes documents with one of
// extensions (all files when empty) to h.
func NewWatcher(root string, extensions []string, h Handler, opts ...Option) *Watcher {
	w := &Watcher{
		root:       filepath.Clean(root),
		extensions: extensions,
		handler:    h,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		dirs:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Start creates the root if missing, registers it and every subdirectory,
// and handles events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	added, err := addTree(fsw, w.root)
	if err != nil {
		_ = fsw.Close()
		return err
	}
	for _, dir := range added {
		w.dirs[dir] = struct{}{}
	}
	w.fsw = fsw
	w.ctx = ctx
	w.done = make(chan struct{})
	w.started = true
	w.logger.Info("watching news directory",
		zap.String("root", w.root),
		zap.Strings("extensions", w.extensions),
		zap.Duration("debounce", w.debounce),
	)
	w.wg.Add(1)
	go w.run(ctx, fsw, w.done)
	return nil
}

// addTree watches dir and its subdirectories and returns the ones added.
func addTree(fsw *fsnotify.Watcher, dir string) ([]string, error) {
	var added []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		added = append(added, filepath.Clean(path))
		return nil
	})
	return added, err
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			go w.Stop()
			return
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !inDir(w.root, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(fsw, path)
			return
		}
		if info.Mode().IsRegular() && corpus.HasExtension(path, w.extensions) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if w.forgetDirectory(fsw, path) {
			w.removeDirectory(path)
			return
		}
		w.cancel(path)
		if corpus.HasExtension(path, w.extensions) {
			w.remove(path)
		}
	}
}

// forgetDirectory reports whether path was a watched directory. If so, it and
// its subdirectories stop being tracked and their pending re-indexes are dropped.
func (w *Watcher) forgetDirectory(fsw *fsnotify.Watcher, path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[path]; !ok || path == w.root {
		return false
	}
	for dir := range w.dirs {
		if inDir(path, dir) {
			delete(w.dirs, dir)
			// Deleted directories are already unwatched; renamed ones are not.
			_ = fsw.Remove(dir)
		}
	}
	for p, t := range w.pending {
		if inDir(path, p) {
			t.Stop()
			delete(w.pending, p)
		}
	}
	return true
}

// handleNewDirectory watches a directory created or moved under the root and
// schedules the documents already inside it.
func (w *Watcher) handleNewDirectory(fsw *fsnotify.Watcher, dir string) {
	added, err := addTree(fsw, dir)
	if err != nil {
		w.logger.Warn("watch new directory", zap.String("path", dir), zap.Error(err))
	}
	w.mu.Lock()
	for _, d := range added {
		w.dirs[d] = struct{}{}
	}
	w.mu.Unlock()
	paths, err := corpus.Discover(dir, w.extensions)
	if err != nil {
		w.logger.Warn("scan new directory", zap.String("path", dir), zap.Error(err))
		return
	}
	for _, p := range paths {
		w.schedule(p)
	}
}

func inDir(dir, path string) bool {
	if dir == path {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		if err := w.handler.IndexFile(ctx, path); err != nil {
			w.logger.Warn("re-index document", zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Debug("document re-indexed", zap.String("path", path))
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) remove(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		return
	}
	if err := w.handler.DeleteFile(ctx, path); err != nil {
		w.logger.Warn("remove document", zap.String("path", path), zap.Error(err))
	}
}

func (w *Watcher) removeDirectory(dir string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		return
	}
	if err := w.handler.DeleteDirectory(ctx, dir); err != nil {
		w.logger.Warn("remove directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.logger.Debug("directory removed", zap.String("path", dir))
}

// Sync schedules every matching document under the root, for documents that
// changed while nothing was watching.
func (w *Watcher) Sync() error {
	paths, err := corpus.Discover(w.root, w.extensions)
	if err != nil {
		return err
	}
	for _, p := range paths {
		w.schedule(p)
	}
	return nil
}

// Stop stops watching and drops pending re-indexes. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	fsw := w.fsw
	w.fsw = nil
	w.dirs = make(map[string]struct{})
	w.started = false
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
	if err := fsw.Close(); err != nil {
		w.logger.Debug("close fsnotify watcher", zap.Error(err))
	}
}
