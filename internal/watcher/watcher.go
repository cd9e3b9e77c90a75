package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zheng/callmap/internal/mapper"
)

// Target re-maps changed files
type Target interface {
	Handles(path string) bool
	Invalidate(path string)
	MapFile(ctx context.Context, path string) (*mapper.FileResult, error)
	Remove(ctx context.Context, path string) error
}

// Watcher watches for file changes and re-maps the files that changed
type Watcher struct {
	root      string
	target    Target
	fsWatcher *fsnotify.Watcher
	ctx       context.Context

	// Debouncing
	debounceDelay time.Duration
	pendingFiles  map[string]struct{}
	pendingMu     sync.Mutex
	debounceTimer *time.Timer

	// Serializes batches so a slow batch never overlaps the next one
	runMu sync.Mutex

	// Callbacks
	onMapStart func(files []string)
	onMapDone  func(sum mapper.Summary, duration time.Duration)
	onError    func(error)

	// Control
	done chan struct{}
}

// WatcherOption configures the watcher
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithOnMapStart sets the callback for when a batch of files is re-mapped
func WithOnMapStart(fn func(files []string)) WatcherOption {
	return func(w *Watcher) {
		w.onMapStart = fn
	}
}

// WithOnMapDone sets the callback for when a batch completes
func WithOnMapDone(fn func(sum mapper.Summary, duration time.Duration)) WatcherOption {
	return func(w *Watcher) {
		w.onMapDone = fn
	}
}

// WithOnError sets the callback for errors
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a new Watcher over every directory below root
func New(root string, target Target, opts ...WatcherOption) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:          root,
		target:        target,
		fsWatcher:     fsWatcher,
		ctx:           context.Background(),
		debounceDelay: 500 * time.Millisecond,
		pendingFiles:  make(map[string]struct{}),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirs(root); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to add directories to watch: %w", err)
	}

	return w, nil
}

// addDirs recursively adds all directories below dir to the watcher
func (w *Watcher) addDirs(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		// Skip hidden directories and common non-source directories
		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" || name == "testdata") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start begins watching for changes. Re-mapping uses ctx.
func (w *Watcher) Start(ctx context.Context) {
	w.ctx = ctx
	go w.eventLoop()
}

// Stop stops the watcher and waits for a batch that is already running
func (w *Watcher) Stop() error {
	close(w.done)
	w.pendingMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.pendingMu.Unlock()

	w.runMu.Lock()
	defer w.runMu.Unlock()
	return w.fsWatcher.Close()
}

// eventLoop handles file system events
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// handleEvent processes a single file system event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Only care about write/create/remove events
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories are watched too
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirs(event.Name); err != nil {
				w.reportError(err)
			}
			return
		}
	}

	if !w.target.Handles(event.Name) {
		return
	}

	// Add to pending files and reset debounce timer
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pendingFiles[event.Name] = struct{}{}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
}

// flush re-maps the pending files after the debounce delay
func (w *Watcher) flush() {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for f := range w.pendingFiles {
		files = append(files, f)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 {
		return
	}
	sort.Strings(files)

	w.runMu.Lock()
	defer w.runMu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	if w.onMapStart != nil {
		w.onMapStart(files)
	}

	startTime := time.Now()
	sum := w.remap(files)

	if w.onMapDone != nil {
		w.onMapDone(sum, time.Since(startTime))
	}
}

// remap maps every file that still exists and removes the others
func (w *Watcher) remap(files []string) mapper.Summary {
	var sum mapper.Summary
	for _, f := range files {
		if w.ctx.Err() != nil {
			break
		}
		w.target.Invalidate(f)

		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			if err := w.target.Remove(w.ctx, f); err != nil {
				w.reportError(fmt.Errorf("failed to remove %s: %w", f, err))
			}
			continue
		}

		sum.Files++
		res, err := w.target.MapFile(w.ctx, f)
		if err != nil {
			sum.Failed++
			w.reportError(fmt.Errorf("failed to map %s: %w", f, err))
		}
		if res != nil {
			sum.Stats.Add(res.Stats)
			if res.Export != nil && res.Export.RenderErr != nil {
				sum.RenderFailures++
			}
		}
	}
	return sum
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
