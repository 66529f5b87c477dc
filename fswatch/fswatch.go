// Package fswatch watches a directory tree and reports batches of changed
// paths once activity settles.
package fswatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a batch is
// delivered.
const DefaultDebounce = 750 * time.Millisecond

// Config configures Watch.
type Config struct {
	Root     string
	Debounce time.Duration
	// Ignore filters paths before they reach a batch. Hidden files and
	// editor temporaries are always ignored.
	Ignore func(path string) bool
	Logger *slog.Logger
}

// Ignored reports whether a path looks like a hidden or temporary file.
func Ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".tmp")
}

// Watch blocks until ctx is done, calling onChange with the distinct paths
// changed during each quiet period. Directories created under Root are
// watched as they appear.
func Watch(ctx context.Context, cfg Config, onChange func(paths []string)) error {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, cfg.Root); err != nil {
		return err
	}
	log.Info("watching", "root", cfg.Root)

	pending := map[string]struct{}{}
	timer := time.NewTimer(cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if Ignored(ev.Name) || (cfg.Ignore != nil && cfg.Ignore(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						log.Warn("watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(cfg.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			onChange(paths)
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && Ignored(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
