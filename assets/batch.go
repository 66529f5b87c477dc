package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Skip is an album left untouched because of missing or malformed inputs.
type Skip struct {
	Folder string
	Reason string
}

// Failure is an album whose processing hit an unexpected error.
type Failure struct {
	Folder string
	Err    error
}

// Summary collects the outcome of a batch run.
type Summary struct {
	Processed []Result
	Skipped   []Skip
	Failed    []Failure
}

// Err is non-nil when at least one album failed.
func (s Summary) Err() error {
	if len(s.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Failed))
	for _, f := range s.Failed {
		errs = append(errs, f.Err)
	}
	return fmt.Errorf("%d album(s) failed: %w", len(s.Failed), errors.Join(errs...))
}

// Table renders the summary for a terminal.
func (s Summary) Table() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Album", "Status", "Images", "Detail"})
	for _, r := range s.Processed {
		tw.AppendRow(table.Row{r.Folder, "processed", strconv.Itoa(r.Images), r.Slug})
	}
	for _, sk := range s.Skipped {
		tw.AppendRow(table.Row{sk.Folder, "skipped", "", sk.Reason})
	}
	for _, f := range s.Failed {
		tw.AppendRow(table.Row{f.Folder, "failed", "", f.Err.Error()})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d/%d", len(s.Processed), len(s.Skipped), len(s.Failed)), "", "processed/skipped/failed"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

// Run processes every folder under the content root, or only target when
// it is non-empty. Skips and per-album failures are recorded in the
// summary and never stop the batch. The returned error covers setup
// problems: a missing codec, a missing content root or an unknown target.
func (p *Pipeline) Run(ctx context.Context, target string) (Summary, error) {
	if err := p.Preflight(); err != nil {
		return Summary{}, err
	}

	entries, err := os.ReadDir(p.opts.ContentRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Summary{}, fmt.Errorf("albums root %s does not exist", p.opts.ContentRoot)
		}
		return Summary{}, err
	}
	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, e.Name())
		}
	}
	slices.Sort(folders)

	if target != "" {
		if !slices.Contains(folders, target) {
			return Summary{}, fmt.Errorf("%w: %s", ErrAlbumNotFound, target)
		}
		folders = []string{target}
	}
	if len(folders) == 0 {
		return Summary{}, fmt.Errorf("no album folders in %s", p.opts.ContentRoot)
	}

	if err := os.MkdirAll(p.opts.PublicRoot, 0o755); err != nil {
		return Summary{}, err
	}

	log := p.opts.Logger
	var sum Summary
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := p.ProcessAlbum(ctx, folder)
		var sk *SkipError
		switch {
		case err == nil:
			sum.Processed = append(sum.Processed, res)
		case errors.As(err, &sk):
			log.Info("album skipped", "folder", folder, "reason", sk.Reason)
			sum.Skipped = append(sum.Skipped, Skip{Folder: folder, Reason: sk.Reason})
		case errors.Is(err, context.Canceled):
			return sum, err
		default:
			log.Error("album failed", "folder", folder, "error", err)
			sum.Failed = append(sum.Failed, Failure{Folder: folder, Err: err})
		}
	}
	return sum, nil
}
