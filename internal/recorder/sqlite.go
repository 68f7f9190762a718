package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"PivotScreener/internal/model"
)

// SQLiteRecorder keeps a history of scan runs, their matches and outcome counts.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// RunSummary is one row of scan_runs.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Status       string    `json:"status"`
	Provenance   string    `json:"provenance"`
	TotalScanned int       `json:"total_scanned"`
	Matches      int       `json:"matches"`
	DurationMS   int64     `json:"duration_ms"`
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read history while a scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			run_id        TEXT PRIMARY KEY,
			timestamp     INTEGER NOT NULL,
			last_updated  TEXT,
			status        TEXT,
			provenance    TEXT,
			universe      INTEGER,
			total_scanned INTEGER,
			match_count   INTEGER,
			duration_ms   INTEGER,
			error         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON scan_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS scan_matches (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL,
			ticker        TEXT NOT NULL,
			price         REAL,
			range_pct     REAL,
			strategies    TEXT,
			pattern       TEXT,
			cpr_width     REAL,
			cam_center    REAL,
			daily_pivot   REAL,
			ema_fast      REAL,
			ema_slow      REAL,
			granularity   TEXT,
			curr_h3       REAL,
			prev_h3       REAL,
			curr_l3       REAL,
			prev_l3       REAL,
			curr_h4       REAL,
			prev_h4       REAL,
			curr_l4       REAL,
			prev_l4       REAL,
			monthly_pivot REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_run ON scan_matches(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_ticker ON scan_matches(ticker)`,

		`CREATE TABLE IF NOT EXISTS scan_outcomes (
			run_id TEXT NOT NULL,
			status TEXT NOT NULL,
			count  INTEGER NOT NULL,
			PRIMARY KEY (run_id, status)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScan(res *model.ScanResult) error {
	if res == nil || res.Report == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rep := res.Report
	diag := res.Diagnostics
	_, err = tx.Exec(`INSERT INTO scan_runs
		(run_id, timestamp, last_updated, status, provenance, universe, total_scanned, match_count, duration_ms, error)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rep.RunID, res.GeneratedAt.Unix(), rep.LastUpdated, string(res.Status), string(diag.Provenance),
		diag.Universe, rep.TotalScanned, len(rep.Stocks), diag.Duration.Milliseconds(), diag.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, m := range rep.Stocks {
		tags := make([]string, len(m.Strategies))
		for i, t := range m.Strategies {
			tags[i] = string(t)
		}
		_, err = tx.Exec(`INSERT INTO scan_matches
			(run_id, ticker, price, range_pct, strategies, pattern,
			 cpr_width, cam_center, daily_pivot, ema_fast, ema_slow,
			 granularity, curr_h3, prev_h3, curr_l3, prev_l3, curr_h4, prev_h4, curr_l4, prev_l4, monthly_pivot)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			rep.RunID, m.Ticker, m.Price, m.RangePct, strings.Join(tags, ","), string(m.Daily.Pattern),
			m.Daily.CPRWidth, m.Daily.CamCenter, m.Daily.Pivot, m.Daily.EMAFast, m.Daily.EMASlow,
			string(m.Monthly.Granularity), m.Monthly.CurrH3, m.Monthly.PrevH3, m.Monthly.CurrL3, m.Monthly.PrevL3,
			m.Monthly.CurrH4, m.Monthly.PrevH4, m.Monthly.CurrL4, m.Monthly.PrevL4, m.Monthly.Pivot,
		)
		if err != nil {
			return fmt.Errorf("insert match %s: %w", m.Ticker, err)
		}
	}

	for status, n := range diag.Outcomes {
		if _, err := tx.Exec(`INSERT INTO scan_outcomes (run_id, status, count) VALUES (?,?,?)`,
			rep.RunID, string(status), n); err != nil {
			return fmt.Errorf("insert outcome %s: %w", status, err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	rows, err := r.db.Query(`SELECT run_id, timestamp, status, provenance, total_scanned, match_count, duration_ms
		FROM scan_runs ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var ts int64
		if err := rows.Scan(&s.RunID, &ts, &s.Status, &s.Provenance, &s.TotalScanned, &s.Matches, &s.DurationMS); err != nil {
			return nil, err
		}
		s.GeneratedAt = time.Unix(ts, 0)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// TickerHistory returns the run IDs and strategy tags of every stored match for ticker, newest first.
func (r *SQLiteRecorder) TickerHistory(ticker string, limit int) ([]TickerMatch, error) {
	rows, err := r.db.Query(`SELECT m.run_id, r.timestamp, m.price, m.strategies
		FROM scan_matches m JOIN scan_runs r ON r.run_id = m.run_id
		WHERE m.ticker = ? ORDER BY r.timestamp DESC, m.id DESC LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickerMatch
	for rows.Next() {
		var m TickerMatch
		var ts int64
		var tags string
		if err := rows.Scan(&m.RunID, &ts, &m.Price, &tags); err != nil {
			return nil, err
		}
		m.GeneratedAt = time.Unix(ts, 0)
		if tags != "" {
			m.Strategies = strings.Split(tags, ",")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TickerMatch is one historical match of a ticker.
type TickerMatch struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Price       float64   `json:"price"`
	Strategies  []string  `json:"strategies"`
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
