package folio

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/fswatch"
	"github.com/eringen/folio/posts"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	maxQueryLen        = 256
)

// SearchHit is one search result.
type SearchHit struct {
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type searchDoc struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Body    string   `json:"body"`
}

// SearchIndex is an in-memory full-text index over public notes. Rebuild
// swaps in a fresh index so searches never see a half-built one.
type SearchIndex struct {
	reader *posts.Reader
	logger *slog.Logger

	mu     sync.RWMutex
	index  bleve.Index
	titles map[string]string
}

// NewSearchIndex returns an empty index over the notes read by r.
func NewSearchIndex(r *posts.Reader, logger *slog.Logger) *SearchIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchIndex{reader: r, logger: logger, titles: map[string]string{}}
}

// Rebuild re-reads every note and replaces the index. Drafts and
// password-protected notes are never indexed.
func (s *SearchIndex) Rebuild() error {
	list, err := s.reader.ListAll(false)
	if err != nil {
		return err
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	titles := make(map[string]string, len(list))
	batch := index.NewBatch()
	for _, p := range list {
		if !p.Public() {
			continue
		}
		doc := searchDoc{Title: p.Title, Summary: p.Summary, Tags: p.Tags, Body: p.Body}
		if err := batch.Index(p.URL, doc); err != nil {
			index.Close()
			return err
		}
		titles[p.URL] = p.Title
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return err
	}

	s.mu.Lock()
	old := s.index
	s.index, s.titles = index, titles
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	s.logger.Debug("search index rebuilt", "documents", len(titles))
	return nil
}

// Search runs a match query and returns at most limit hits, best first.
func (s *SearchIndex) Search(q string, limit int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := []SearchHit{}
	if s.index == nil || strings.TrimSpace(q) == "" {
		return hits, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(q))
	req.Size = limit
	res, err := s.index.Search(req)
	if err != nil {
		return nil, err
	}
	for _, h := range res.Hits {
		hits = append(hits, SearchHit{URL: h.ID, Title: s.titles[h.ID], Score: h.Score})
	}
	return hits, nil
}

// Watch rebuilds the index whenever files under root change, until ctx is
// done.
func (s *SearchIndex) Watch(ctx context.Context, root string) error {
	return fswatch.Watch(ctx, fswatch.Config{Root: root, Logger: s.logger}, func(paths []string) {
		if err := s.Rebuild(); err != nil {
			s.logger.Warn("search reindex failed", "error", err)
			return
		}
		s.logger.Info("search index refreshed", "changed", len(paths))
	})
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (a *App) handleSearch(c echo.Context) error {
	if a.Config.NotesPassword != "" && !IsUnlocked(c, SectionNotes) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Notes are locked."})
	}
	q := c.QueryParam("q")
	if len(q) > maxQueryLen {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Query too long."})
	}
	limit := defaultSearchLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid limit."})
		}
		limit = min(n, maxSearchLimit)
	}
	hits, err := a.Search.Search(q, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hits)
}
