// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch turns a directory into a drop folder: image files written
// there are attached to the chat session automatically.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
)

// DefaultDebounce is how long a file must stay quiet before it is submitted.
// Copies and downloads emit many write events; only the last one counts.
const DefaultDebounce = 500 * time.Millisecond

// ErrNotDirectory is returned when the drop folder is not a directory.
var ErrNotDirectory = errors.New("watch path is not a directory")

// partialSuffixes mark files that are still being written by another program.
var partialSuffixes = []string{".part", ".partial", ".crdownload", ".download", ".tmp", "~"}

// Submitter receives file batches. *intake.Intake satisfies it.
type Submitter interface {
	SubmitPaths(ctx context.Context, paths []string) ([]intake.UploadedImage, error)
}

// Event reports one submitted file.
type Event struct {
	Path   string
	Images []intake.UploadedImage
	Err    error
}

// =============================================================================
// WATCHER
// =============================================================================

// Watcher submits each settled file in a directory as a one-file batch.
type Watcher struct {
	dir      string
	target   Submitter
	debounce time.Duration

	watcher *fsnotify.Watcher
	events  chan Event

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event
	seen    map[string]time.Time // path -> mod time when submitted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for dir. Call Start to begin watching.
func New(dir string, target Submitter) (*Watcher, error) {
	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:      abs,
		target:   target,
		debounce: DefaultDebounce,
		events:   make(chan Event, 16),
		pending:  make(map[string]time.Time),
		seen:     make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// WithDebounce sets the quiet period. Call before Start.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Dir returns the absolute path being watched.
func (w *Watcher) Dir() string {
	return w.dir
}

// Events delivers one Event per submitted file. Events are dropped when
// nobody reads them; the intake notifier still reports the outcome.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. Files already in the directory are ignored.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.watcher = fw

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()

	log.Printf("WATCH_START | dir=%s debounce=%s", w.dir, w.debounce)
	return nil
}

// Close stops watching and waits for the workers to exit.
func (w *Watcher) Close() error {
	w.cancel()
	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
	}
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WATCH_PANIC | dir=%s panic=%v", w.dir, r)
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				w.touch(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.forget(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WATCH_ERROR | dir=%s error=%v", w.dir, err)
		}
	}
}

func (w *Watcher) touch(path string) {
	if ignored(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	delete(w.seen, path)
	w.mu.Unlock()
}

func (w *Watcher) processPending() {
	defer w.wg.Done()

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.settled(time.Now()) {
				w.submit(path)
			}
		}
	}
}

// settled removes and returns the pending paths that have been quiet for
// the debounce period.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *Watcher) submit(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	// A second write burst with no content change (touch, metadata) is
	// not a new image.
	w.mu.Lock()
	if mod, ok := w.seen[path]; ok && mod.Equal(info.ModTime()) {
		w.mu.Unlock()
		return
	}
	w.seen[path] = info.ModTime()
	w.mu.Unlock()

	ev := Event{Path: path}
	ev.Images, ev.Err = w.target.SubmitPaths(w.ctx, []string{path})

	if ev.Err != nil {
		log.Printf("WATCH_REJECT | file=%s error=%v", filepath.Base(path), ev.Err)
	} else {
		log.Printf("WATCH_SUBMIT | file=%s size=%d", filepath.Base(path), info.Size())
	}

	select {
	case w.events <- ev:
	default:
	}
}

// ignored reports whether a path is hidden or still being written.
func ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	lower := strings.ToLower(base)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
