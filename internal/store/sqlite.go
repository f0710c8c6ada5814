package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// JournalEntry records the outcome of one snapshot request.
type JournalEntry struct {
	ID          int64   `json:"id"`
	TS          int64   `json:"ts"`
	RequestID   string  `json:"request_id"`
	Route       string  `json:"route"`
	Status      string  `json:"status"`
	IndexCount  int     `json:"index_count"`
	GainerCount int     `json:"gainer_count"`
	LoserCount  int     `json:"loser_count"`
	Advances    int     `json:"advances"`
	Declines    int     `json:"declines"`
	Unchanged   int     `json:"unchanged"`
	Ratio       float64 `json:"ratio"`
	Error       string  `json:"error"`
	DurationMs  int64   `json:"duration_ms"`
	CreatedAt   string  `json:"created_at"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/journal.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshot_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			request_id TEXT,
			route TEXT,
			status TEXT,
			index_count INTEGER,
			gainer_count INTEGER,
			loser_count INTEGER,
			advances INTEGER,
			declines INTEGER,
			unchanged INTEGER,
			ratio REAL,
			error TEXT,
			duration_ms INTEGER,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshot_journal_ts ON snapshot_journal(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshot_journal_status ON snapshot_journal(status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// InsertJournal is a no-op on a nil store so callers can leave the
// journal disabled.
func (s *Store) InsertJournal(e JournalEntry) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if e.TS == 0 {
		e.TS = time.Now().Unix()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().Format(time.RFC3339)
	}
	res, err := s.db.Exec(
		`INSERT INTO snapshot_journal (ts, request_id, route, status, index_count, gainer_count, loser_count, advances, declines, unchanged, ratio, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TS, e.RequestID, e.Route, e.Status, e.IndexCount, e.GainerCount, e.LoserCount, e.Advances, e.Declines, e.Unchanged, e.Ratio, e.Error, e.DurationMs, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// QueryJournal lists entries newest first, optionally filtered by status.
func (s *Store) QueryJournal(status string, limit int, offset int) ([]JournalEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, ts, request_id, route, status, index_count, gainer_count, loser_count, advances, declines, unchanged, ratio, error, duration_ms, created_at
		FROM snapshot_journal`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	out := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.RequestID, &e.Route, &e.Status, &e.IndexCount, &e.GainerCount, &e.LoserCount, &e.Advances, &e.Declines, &e.Unchanged, &e.Ratio, &e.Error, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows journal: %w", err)
	}
	return out, nil
}
