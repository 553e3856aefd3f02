// Package watcher follows a working directory's text tree with fsnotify and reports which lots
// changed, debounced per lot.
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
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// Watcher watches <workdir>/txt recursively. Every lot is a direct subdirectory named by its ID;
// a change anywhere below it schedules one onLot call after the debounce interval.
type Watcher struct {
	root        string
	onLot       func(lotID string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	lotLocks    map[string]*sync.Mutex
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a lot must be quiet before onLot runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for the text root. onLot is called from a timer goroutine,
// at most once per quiet period per lot.
func NewWatcher(root string, onLot func(lotID string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        filepath.Clean(root),
		onLot:       onLot,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		lotLocks:    make(map[string]*sync.Mutex),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start creates the root if needed, watches every directory under it and returns.
// Events are handled until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addTree(fw, w.root); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.started = true
	w.logger.Debug("watcher starting", zap.String("root", w.root))
	go w.run(ctx, fw)
	return nil
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	lotID, ok := LotOf(w.root, ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Files created before the watch was added are picked up by the lot resync.
			if err := addTree(fw, ev.Name); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", ev.Name), zap.Error(err))
			}
			w.schedule(lotID)
			return
		}
	}
	if ev.Op.Has(fsnotify.Chmod) && !ev.Op.Has(fsnotify.Write) {
		return
	}
	// Removing or renaming a directory produces an event without a .txt suffix.
	if strings.EqualFold(filepath.Ext(ev.Name), ".txt") || ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.schedule(lotID)
	}
}

// LotOf returns the lot ID of path: its first path element below root. Paths outside root and
// root itself report false.
func LotOf(root, path string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	first, _, _ := strings.Cut(rel, string(filepath.Separator))
	return first, true
}

func (w *Watcher) schedule(lotID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[lotID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() { w.fire(lotID, t) })
	w.debounceMap[lotID] = t
}

// fire runs onLot for a timer that is still the lot's pending one. A timer replaced by a later
// schedule or dropped by Stop does nothing. Calls for the same lot never overlap.
func (w *Watcher) fire(lotID string, t *time.Timer) {
	w.mu.Lock()
	if w.debounceMap[lotID] != t {
		w.mu.Unlock()
		return
	}
	delete(w.debounceMap, lotID)
	lock, ok := w.lotLocks[lotID]
	if !ok {
		lock = &sync.Mutex{}
		w.lotLocks[lotID] = lock
	}
	w.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	w.logger.Debug("watcher lot changed", zap.String("lot_id", lotID))
	if w.onLot != nil {
		w.onLot(lotID)
	}
}

// Stop stops the watcher and drops pending callbacks.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for lotID, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, lotID)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
