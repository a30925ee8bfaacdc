// Package manifest keeps a SQLite ledger of generation runs and the state of every
// partition they wrote.
package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

// Run states
const (
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	workers     INTEGER NOT NULL,
	state       TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS partitions (
	run_id          TEXT NOT NULL REFERENCES runs(run_id),
	partition_index INTEGER NOT NULL,
	file            TEXT NOT NULL,
	rows            INTEGER NOT NULL,
	state           TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	seconds         REAL NOT NULL DEFAULT 0,
	object_key      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, partition_index)
);
`

// Run is one invocation of the generation harness.
type Run struct {
	RunID      string `db:"run_id"`
	Input      string `db:"input"`
	Workers    int    `db:"workers"`
	State      string `db:"state"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
}

// Partition is the outcome of one worker.
type Partition struct {
	RunID     string  `db:"run_id"`
	Index     int     `db:"partition_index"`
	File      string  `db:"file"`
	Rows      int     `db:"rows"`
	State     string  `db:"state"`
	Error     string  `db:"error"`
	Seconds   float64 `db:"seconds"`
	ObjectKey string  `db:"object_key"`
}

// Manifest is safe for concurrent use; writes are serialized over one connection.
type Manifest struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Manifest, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeIO, err, fmt.Sprintf("opening manifest %s", path))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, kerrors.WithCode(kerrors.CodeIO, err, fmt.Sprintf("creating manifest schema in %s", path))
	}
	return &Manifest{db: db}, nil
}

func (m *Manifest) Close() error {
	return m.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// StartRun registers a run in the running state.
func (m *Manifest) StartRun(ctx context.Context, runID, input string, workers int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, input, workers, state, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, input, workers, StateRunning, now())
	if err != nil {
		return kerrors.WithCode(kerrors.CodeIO, err, "recording run start")
	}
	return nil
}

// RecordPartition inserts or replaces the outcome of one partition.
func (m *Manifest) RecordPartition(ctx context.Context, p Partition) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO partitions (run_id, partition_index, file, rows, state, error, seconds, object_key)
		VALUES (:run_id, :partition_index, :file, :rows, :state, :error, :seconds, :object_key)
	`, p)
	if err != nil {
		return kerrors.WithCode(kerrors.CodeIO, err, fmt.Sprintf("recording partition %d", p.Index))
	}
	return nil
}

// FinishRun marks the run done or failed.
func (m *Manifest) FinishRun(ctx context.Context, runID, state string) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, finished_at = ? WHERE run_id = ?
	`, state, now(), runID)
	if err != nil {
		return kerrors.WithCode(kerrors.CodeIO, err, "recording run end")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return kerrors.DataFormat("run %s is not in the manifest", runID)
	}
	return nil
}

// GetRun returns the run with the given ID.
func (m *Manifest) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := m.db.GetContext(ctx, &r, `
		SELECT run_id, input, workers, state, started_at, finished_at
		FROM runs
		WHERE run_id = ?
	`, runID)
	if err == sql.ErrNoRows {
		return Run{}, kerrors.DataFormat("run %s is not in the manifest", runID)
	}
	if err != nil {
		return Run{}, kerrors.WithCode(kerrors.CodeIO, err, "reading run")
	}
	return r, nil
}

// Partitions lists the recorded partitions of a run by index.
func (m *Manifest) Partitions(ctx context.Context, runID string) ([]Partition, error) {
	var parts []Partition
	err := m.db.SelectContext(ctx, &parts, `
		SELECT run_id, partition_index, file, rows, state, error, seconds, object_key
		FROM partitions
		WHERE run_id = ?
		ORDER BY partition_index
	`, runID)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeIO, err, "reading partitions")
	}
	return parts, nil
}
