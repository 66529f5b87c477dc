package assets

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/eringen/folio/fswatch"
)

// Watch reprocesses albums whose content folder changes until ctx is done.
func (p *Pipeline) Watch(ctx context.Context, debounce time.Duration) error {
	if err := p.Preflight(); err != nil {
		return err
	}
	log := p.opts.Logger
	return fswatch.Watch(ctx, fswatch.Config{
		Root:     p.opts.ContentRoot,
		Debounce: debounce,
		Logger:   log,
	}, func(paths []string) {
		for _, folder := range albumFolders(p.opts.ContentRoot, paths) {
			_, err := p.ProcessAlbum(ctx, folder)
			var sk *SkipError
			switch {
			case err == nil:
			case errors.As(err, &sk):
				log.Info("album skipped", "folder", folder, "reason", sk.Reason)
			default:
				log.Error("album failed", "folder", folder, "error", err)
			}
		}
	})
}

// albumFolders maps changed paths to the distinct album folders that
// contain them, sorted.
func albumFolders(root string, paths []string) []string {
	var out []string
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		folder, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		if !slices.Contains(out, folder) {
			out = append(out, folder)
		}
	}
	slices.Sort(out)
	return out
}
