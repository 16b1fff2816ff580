package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"SwingSentinel/internal/model"
)

// SQLiteRecorder persists runs, swings and snapshots to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so readers (dashboards) do not block the snapshot task.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT,
			resolution  TEXT,
			start_ts    INTEGER,
			end_ts      INTEGER,
			raw_count   INTEGER,
			removed     INTEGER,
			bar_count   INTEGER,
			swing_count INTEGER,
			status      TEXT,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS swings (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			bar_index   INTEGER NOT NULL,
			bar_ts      INTEGER NOT NULL,
			price       REAL,
			kind        TEXT,
			window_size INTEGER,
			UNIQUE(run_id, bar_index, window_size, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_swings_run ON swings(run_id, bar_ts)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			run_id         TEXT,
			version        INTEGER,
			bar_count      INTEGER,
			swing_count    INTEGER,
			last_bar_ts    INTEGER,
			pending_index  INTEGER,
			pending_kind   TEXT,
			paused         INTEGER,
			buffered       INTEGER,
			stale          INTEGER,
			fault          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordRun(run *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(id, timestamp, symbol, resolution, start_ts, end_ts, raw_count, removed, bar_count, swing_count, status, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, time.Now().Unix(), run.Symbol, run.Resolution,
		unixOrZero(run.Start), unixOrZero(run.End),
		run.RawCount, run.Removed, run.BarCount, run.SwingCount,
		run.Status, run.Error,
	)
	return err
}

// RecordSwings stores swings for a run. Already recorded swings are skipped,
// so the snapshot task can pass the full list each time.
func (r *SQLiteRecorder) RecordSwings(runID string, swings []model.SwingPoint) error {
	if len(swings) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO swings
		(run_id, bar_index, bar_ts, price, kind, window_size)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range swings {
		if _, err := stmt.Exec(runID, s.Index, s.Timestamp, s.Price, s.Kind.String(), s.Window); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert swing %d: %w", s.Index, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordSnapshot(snap *SnapshotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := snap.State
	var pendingIndex sql.NullInt64
	var pendingKind sql.NullString
	if st.Pending != nil {
		pendingIndex = sql.NullInt64{Int64: int64(st.Pending.Index), Valid: true}
		pendingKind = sql.NullString{String: st.Pending.Kind.String(), Valid: true}
	}
	_, err := r.db.Exec(`INSERT INTO snapshots
		(timestamp, run_id, version, bar_count, swing_count, last_bar_ts,
		 pending_index, pending_kind, paused, buffered, stale, fault)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), snap.RunID, int64(st.Version), st.BarCount, len(st.Swings), st.LastTimestamp,
		pendingIndex, pendingKind, st.Paused, st.Buffered, st.Stale, st.Fault,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
