// Package watcher triggers re-analysis when watched input files change.
package watcher

import (
	"archgraph/internal/shared/observability"
	"archgraph/internal/shared/util"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

type Options struct {
	// Debounce is the quiet period after the last event before onChange runs.
	Debounce time.Duration
	// MinInterval is the minimum time between two onChange calls. Changes
	// arriving sooner are held back, not dropped.
	MinInterval time.Duration
}

type target struct {
	dir string
	// literal is the slash-separated absolute path, matched exactly.
	literal string
	// pattern is set when the base name has wildcards; the directory part is
	// quoted so glob metacharacters in it match themselves.
	pattern glob.Glob
}

// Watcher watches individual files, or base-name globs inside one directory.
// Parent directories are watched rather than the files themselves so that
// editors replacing a file by rename are still seen.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	targets    []target
	debounce   time.Duration
	retryAfter time.Duration
	limiter    *util.Limiter
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

// NewWatcher compiles the file patterns. Relative patterns are made absolute.
// Only the base name may be a glob; a file whose literal name contains glob
// characters still matches itself.
func NewWatcher(patterns []string, opts Options, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || len(patterns) == 0 {
		return nil, os.ErrInvalid
	}

	targets := make([]target, 0, len(patterns))
	for _, p := range patterns {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		t := target{dir: filepath.Dir(abs), literal: filepath.ToSlash(abs)}
		if base := filepath.Base(abs); strings.ContainsAny(base, "*?[]{}") {
			expr := glob.QuoteMeta(filepath.ToSlash(t.dir)) + "/" + base
			if g, err := glob.Compile(expr, '/'); err == nil {
				t.pattern = g
			}
		}
		targets = append(targets, t)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:  fsw,
		targets:    targets,
		debounce:   opts.Debounce,
		retryAfter: opts.MinInterval,
		limiter:    util.NewLimiterEvery(opts.MinInterval),
		onChange:   onChange,
		pending:    make(map[string]time.Time),
	}, nil
}

// Watch registers the parent directories and starts the event loop.
func (w *Watcher) Watch() error {
	seen := make(map[string]bool, len(w.targets))
	for _, t := range w.targets {
		if seen[t.dir] {
			continue
		}
		seen[t.dir] = true
		if err := w.fsWatcher.Add(t.dir); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if !w.matches(event.Name) {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				w.scheduleChange(event.Name, w.debounce)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	slashed := filepath.ToSlash(abs)
	for _, t := range w.targets {
		if slashed == t.literal || (t.pattern != nil && t.pattern.Match(slashed)) {
			return true
		}
	}
	return false
}

func (w *Watcher) scheduleChange(path string, delay time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.closed {
		return
	}

	if path != "" {
		w.pending[path] = time.Now()
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(delay, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	if !w.limiter.Allow(1) {
		w.pendingMu.Unlock()
		observability.WatcherThrottledTotal.Inc()
		slog.Debug("re-analysis throttled", "retry_after", w.retryAfter)
		w.scheduleChange("", w.retryAfter)
		return
	}
	paths := util.SortedStringKeys(w.pending)
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
