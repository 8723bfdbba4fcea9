// Package watch re-runs an action when files under a set of directories
// change, coalescing bursts of events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/minios-linux/langsync/extract"
)

// Options configures a Watcher.
type Options struct {
	// Paths are watched recursively; missing paths are ignored.
	Paths []string
	// Extensions limits which file changes count (with leading dot).
	// Empty accepts every file.
	Extensions []string
	// Debounce is the quiet period after the last event before the
	// action runs.
	Debounce time.Duration
}

// Watcher runs an action after file changes settle.
type Watcher struct {
	opts   Options
	exts   map[string]bool
	fs     *fsnotify.Watcher
	logger *log.Logger
}

// New creates a Watcher and registers every directory under opts.Paths.
func New(opts Options, logger *log.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		opts:   opts,
		exts:   make(map[string]bool, len(opts.Extensions)),
		fs:     fw,
		logger: logger,
	}
	for _, e := range opts.Extensions {
		w.exts[strings.ToLower(e)] = true
	}
	for _, p := range opts.Paths {
		if err := w.addTree(p); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// WatchList returns the directories being watched.
func (w *Watcher) WatchList() []string {
	return w.fs.WatchList()
}

func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return w.fs.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && extract.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(ev.Name))]
}

// Run calls action after each settled burst of relevant changes until ctx
// is cancelled. Action errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, action func(context.Context) error) error {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("cannot watch new directory", "path", ev.Name, "err", err)
					}
					continue
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.opts.Debounce)
			pending = true

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case <-timer.C:
			pending = false
			if err := action(ctx); err != nil {
				w.logger.Error("action after change failed", "err", err)
			}
		}
	}
}
