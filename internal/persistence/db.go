// Package persistence stores simulation runs and their monthly records in
// SQLite, and writes compressed JSONL journals of the same records.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/graindeer/internal/config"
	"github.com/talgya/graindeer/internal/engine"
)

// Run status values.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Run is one stored simulation run.
type Run struct {
	ID         string `db:"id"`
	Seed       string `db:"seed"` // decimal; uint64 does not fit SQLite INTEGER
	StartYear  int    `db:"start_year"`
	EndYear    int    `db:"end_year"`
	ConfigJSON string `db:"config_json"`
	Status     string `db:"status"`
	Error      string `db:"error"`
	FinalJSON  string `db:"final_json"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		start_year INTEGER NOT NULL,
		end_year INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		final_json TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL REFERENCES runs(id),
		month_index INTEGER NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		temp_f REAL NOT NULL,
		temp_c REAL NOT NULL,
		precip_in REAL NOT NULL,
		precip_cm REAL NOT NULL,
		population INTEGER NOT NULL,
		resource_in REAL NOT NULL,
		resource_cm REAL NOT NULL,
		popularity REAL NOT NULL,
		PRIMARY KEY (run_id, month_index)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun stores a new run for cfg and returns its id.
func (db *DB) BeginRun(ctx context.Context, cfg config.Config) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.ExecContext(ctx, `INSERT INTO runs
		(id, seed, start_year, end_year, config_json, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, strconv.FormatUint(cfg.Seed, 10), cfg.StartYear, cfg.EndYear,
		string(cfgJSON), StatusRunning, now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	slog.Info("run started", "run_id", id, "seed", cfg.Seed)
	return id, nil
}

// FinishRun marks a run finished (or failed, when runErr is non-nil) and
// stores its final state.
func (db *DB) FinishRun(ctx context.Context, id string, final engine.State, runErr error) error {
	finalJSON, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}

	status, msg := StatusFinished, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}

	res, err := db.conn.ExecContext(ctx,
		"UPDATE runs SET status = ?, error = ?, final_json = ?, finished_at = ? WHERE id = ?",
		status, msg, string(finalJSON), now(), id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: no such run", id)
	}
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := db.conn.GetContext(ctx, &r, "SELECT * FROM runs WHERE id = ?", id)
	if err != nil {
		return r, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// Recorder returns an engine.Recorder that stores records under run id.
func (db *DB) Recorder(id string) *RunRecorder {
	return &RunRecorder{db: db, runID: id}
}

// RunRecorder inserts one row per record.
type RunRecorder struct {
	db    *DB
	runID string
}

type recordRow struct {
	RunID string `db:"run_id"`
	engine.Record
}

func (r *RunRecorder) Record(ctx context.Context, rec engine.Record) error {
	_, err := r.db.conn.NamedExecContext(ctx, `INSERT INTO records
		(run_id, month_index, year, month, temp_f, temp_c, precip_in, precip_cm,
		 population, resource_in, resource_cm, popularity)
		VALUES (:run_id, :month_index, :year, :month, :temp_f, :temp_c, :precip_in, :precip_cm,
		 :population, :resource_in, :resource_cm, :popularity)`,
		recordRow{RunID: r.runID, Record: rec},
	)
	if err != nil {
		return fmt.Errorf("insert record %d: %w", rec.MonthIndex, err)
	}
	return nil
}

// Records returns the stored records of a run in month order.
func (db *DB) Records(ctx context.Context, id string) ([]engine.Record, error) {
	var recs []engine.Record
	err := db.conn.SelectContext(ctx, &recs, `SELECT
		month_index, year, month, temp_f, temp_c, precip_in, precip_cm,
		population, resource_in, resource_cm, popularity
		FROM records WHERE run_id = ? ORDER BY month_index`, id)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	return recs, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
