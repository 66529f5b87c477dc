package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// topPagesLimit caps the number of paths returned by GetStats.
const topPagesLimit = 10

// Store persists visits and settings in SQLite.
type Store struct {
	db *sql.DB
}

// migrations are applied in order; the settings row "schema_version"
// records how many have run.
var migrations = []string{
	`CREATE TABLE visits (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		ip_hash TEXT NOT NULL,
		browser TEXT NOT NULL,
		os      TEXT NOT NULL,
		device  TEXT NOT NULL,
		path    TEXT NOT NULL,
		ts      INTEGER NOT NULL
	);
	CREATE INDEX idx_visits_ts ON visits(ts);
	CREATE INDEX idx_visits_path ON visits(path);`,
}

const schemaVersionKey = "schema_version"

// NewStore opens the analytics database at dbPath, creating and migrating
// it as needed.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(10 * time.Minute)

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create settings: %w", err)
	}
	return s.migrate(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	raw, err := s.GetSetting(ctx, schemaVersionKey)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	applied := 0
	if raw != "" {
		if applied, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("parse schema version %q: %w", raw, err)
		}
	}
	if applied > len(migrations) {
		return fmt.Errorf("schema version %d is newer than supported %d", applied, len(migrations))
	}

	for i := applied; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, upsertSetting, schemaVersionKey, strconv.Itoa(i+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const upsertSetting = `INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, upsertSetting, key, value)
	return err
}

// SaveVisit stores a new visit.
func (s *Store) SaveVisit(ctx context.Context, v *Visit) error {
	ts := v.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (ip_hash, browser, os, device, path, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		v.IPHash, v.Browser, v.OS, v.Device, v.Path, ts.UTC().Unix())
	return err
}

// GetStats returns aggregated statistics for visits in [from, to).
func (s *Store) GetStats(ctx context.Context, from, to time.Time) (*Stats, error) {
	stats := &Stats{
		Period:     from.UTC().Format("2006-01-02") + " to " + to.UTC().Format("2006-01-02"),
		TopPages:   []PageStat{},
		DailyViews: []DailyView{},
	}
	lo, hi := from.UTC().Unix(), to.UTC().Unix()

	// each query writes its own field
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*), COUNT(DISTINCT ip_hash) FROM visits WHERE ts >= ? AND ts < ?`, lo, hi).
			Scan(&stats.TotalViews, &stats.UniqueVisitors)
		if err != nil {
			return fmt.Errorf("count views: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT path, COUNT(*) AS views FROM visits WHERE ts >= ? AND ts < ?
			 GROUP BY path ORDER BY views DESC, path ASC LIMIT ?`, lo, hi, topPagesLimit)
		if err != nil {
			return fmt.Errorf("top pages: %w", err)
		}
		defer rows.Close()
		pages := []PageStat{}
		for rows.Next() {
			var p PageStat
			if err := rows.Scan(&p.Path, &p.Views); err != nil {
				return fmt.Errorf("top pages: %w", err)
			}
			pages = append(pages, p)
		}
		stats.TopPages = pages
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT date(ts, 'unixepoch') AS day, COUNT(*) FROM visits WHERE ts >= ? AND ts < ?
			 GROUP BY day ORDER BY day ASC`, lo, hi)
		if err != nil {
			return fmt.Errorf("daily views: %w", err)
		}
		defer rows.Close()
		days := []DailyView{}
		for rows.Next() {
			var d DailyView
			if err := rows.Scan(&d.Date, &d.Views); err != nil {
				return fmt.Errorf("daily views: %w", err)
			}
			days = append(days, d)
		}
		stats.DailyViews = days
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// CleanupOldVisits deletes visits older than retentionDays and returns how
// many were removed.
func (s *Store) CleanupOldVisits(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup visits: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanupScheduler prunes old visits every interval until the
// returned stop function is called. Stop is safe to call more than once.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			switch n, err := s.CleanupOldVisits(ctx, retentionDays); {
			case err != nil && ctx.Err() == nil:
				logger.Error("analytics cleanup failed", "error", err)
			case n > 0:
				logger.Info("analytics cleanup", "deleted", n)
			}
		}
	}()
	return cancel
}
