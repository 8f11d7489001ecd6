// File: internal/runstore/journal.go
// Brief: Process-local sqlite journal of runs, tasks and events.

// Package runstore keeps an in-memory sqlite journal of the runs started by
// this process so detached runs can be polled while they execute. Nothing
// is written to disk; the journal disappears with the process.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/taskgraph"
)

var ErrRunNotFound = errors.New("run not found")

type Journal struct {
	db  *sql.DB
	log logr.Logger

	mu      sync.Mutex
	lastErr error
}

type RunMeta struct {
	RunID       string
	Strategy    string
	Fingerprint string
	Tasks       []string
	CreatedAt   time.Time
}

type RunRecord struct {
	RunID       string          `json:"runId"`
	Strategy    string          `json:"strategy"`
	Status      string          `json:"status"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Report      json.RawMessage `json:"report,omitempty"`
}

type TaskRecord struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Open creates a fresh in-memory journal.
func Open(ctx context.Context, log logr.Logger) (*Journal, error) {
	dsn := fmt.Sprintf("file:monopipe-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	j := &Journal{db: db, log: log}
	if err := j.initSchema(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS monopipe_runs (
  run_id TEXT PRIMARY KEY,
  strategy TEXT NOT NULL,
  status TEXT NOT NULL,
  fingerprint TEXT NOT NULL,
  created_at_ns INTEGER NOT NULL,
  updated_at_ns INTEGER NOT NULL,
  report_json TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS monopipe_tasks (
  run_id TEXT NOT NULL,
  task_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  state TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  reason TEXT NOT NULL,
  error TEXT NOT NULL,
  PRIMARY KEY (run_id, task_id),
  FOREIGN KEY (run_id) REFERENCES monopipe_runs(run_id) ON DELETE CASCADE
);`,
		`
CREATE TABLE IF NOT EXISTS monopipe_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  ts_ns INTEGER NOT NULL,
  task_id TEXT NOT NULL,
  type TEXT NOT NULL,
  state TEXT NOT NULL,
  reason TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  message TEXT NOT NULL,
  FOREIGN KEY (run_id) REFERENCES monopipe_runs(run_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_monopipe_events_run_seq ON monopipe_events(run_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (j *Journal) CreateRun(ctx context.Context, meta RunMeta) error {
	created := meta.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.UTC()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO monopipe_runs (run_id, strategy, status, fingerprint, created_at_ns, updated_at_ns, report_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, meta.RunID, meta.Strategy, string(scheduler.StatusPending), meta.Fingerprint, created.UnixNano(), created.UnixNano(), "{}")
	if err != nil {
		return fmt.Errorf("create run %s: %w", meta.RunID, err)
	}
	for i, id := range meta.Tasks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO monopipe_tasks (run_id, task_id, seq, state, attempt, reason, error)
VALUES (?, ?, ?, ?, 0, '', '')
`, meta.RunID, id, i, taskgraph.StatePending.String())
		if err != nil {
			return fmt.Errorf("create run %s: %w", meta.RunID, err)
		}
	}
	return tx.Commit()
}

func (j *Journal) AppendEvent(ctx context.Context, ev scheduler.Event) error {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	state := ""
	if ev.Task != "" {
		state = ev.State.String()
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO monopipe_events (run_id, seq, ts_ns, task_id, type, state, reason, attempt, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, ev.RunID, ev.Seq, ts.UTC().UnixNano(), ev.Task, string(ev.Type), state, string(ev.Reason), ev.Attempt, strings.TrimSpace(ev.Message))
	if err != nil {
		return err
	}
	now := time.Now().UTC().UnixNano()
	switch ev.Type {
	case scheduler.RunStarted:
		_, err = j.db.ExecContext(ctx, `UPDATE monopipe_runs SET status = ?, updated_at_ns = ? WHERE run_id = ?`, string(scheduler.StatusRunning), now, ev.RunID)
	case scheduler.RunCompleted:
		_, err = j.db.ExecContext(ctx, `UPDATE monopipe_runs SET status = ?, updated_at_ns = ? WHERE run_id = ?`, string(ev.Status), now, ev.RunID)
	case scheduler.RetryScheduled:
		_, err = j.db.ExecContext(ctx, `UPDATE monopipe_tasks SET attempt = ?, error = ? WHERE run_id = ? AND task_id = ?`, ev.Attempt, ev.Message, ev.RunID, ev.Task)
	default:
		if ev.Task == "" {
			return nil
		}
		taskErr := ""
		if ev.State == taskgraph.StateFailed {
			taskErr = ev.Message
		}
		_, err = j.db.ExecContext(ctx, `
UPDATE monopipe_tasks
SET state = ?, reason = ?, error = ?, attempt = CASE WHEN ? > attempt THEN ? ELSE attempt END
WHERE run_id = ? AND task_id = ?
`, state, string(ev.Reason), taskErr, ev.Attempt, ev.Attempt, ev.RunID, ev.Task)
		if err == nil {
			_, err = j.db.ExecContext(ctx, `UPDATE monopipe_runs SET updated_at_ns = ? WHERE run_id = ?`, now, ev.RunID)
		}
	}
	return err
}

// Observer records every event. Write errors are logged and kept for Err;
// they never interrupt a run.
func (j *Journal) Observer() scheduler.Observer {
	return scheduler.ObserverFunc(func(ev scheduler.Event) {
		if err := j.AppendEvent(context.Background(), ev); err != nil {
			j.log.Error(err, "journal append failed", "run", ev.RunID, "type", ev.Type)
			j.mu.Lock()
			j.lastErr = err
			j.mu.Unlock()
		}
	})
}

func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// WriteReport stores the sealed report of a run.
func (j *Journal) WriteReport(ctx context.Context, runID string, status scheduler.RunStatus, report any) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, `UPDATE monopipe_runs SET report_json = ?, status = ?, updated_at_ns = ? WHERE run_id = ?`,
		string(raw), string(status), time.Now().UTC().UnixNano(), runID)
	return err
}

func (j *Journal) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `
SELECT run_id, strategy, status, fingerprint, created_at_ns, updated_at_ns, report_json
FROM monopipe_runs WHERE run_id = ?
`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec, err
}

func (j *Journal) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT run_id, strategy, status, fingerprint, created_at_ns, updated_at_ns, report_json
FROM monopipe_runs ORDER BY created_at_ns, run_id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Journal) Tasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT task_id, state, attempt, reason, error FROM monopipe_tasks WHERE run_id = ? ORDER BY seq
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		if err := rows.Scan(&rec.ID, &rec.State, &rec.Attempt, &rec.Reason, &rec.Error); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Events returns events of runID with a sequence number above afterSeq.
func (j *Journal) Events(ctx context.Context, runID string, afterSeq int64) ([]scheduler.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT seq, ts_ns, task_id, type, state, reason, attempt, message
FROM monopipe_events WHERE run_id = ? AND seq > ? ORDER BY seq
`, runID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []scheduler.Event
	for rows.Next() {
		var (
			ev     scheduler.Event
			tsNS   int64
			typ    string
			state  string
			reason string
		)
		if err := rows.Scan(&ev.Seq, &tsNS, &ev.Task, &typ, &state, &reason, &ev.Attempt, &ev.Message); err != nil {
			return nil, err
		}
		ev.RunID = runID
		ev.Time = time.Unix(0, tsNS).UTC()
		ev.Type = scheduler.EventType(typ)
		ev.Reason = scheduler.Reason(reason)
		if state != "" {
			_ = ev.State.UnmarshalText([]byte(state))
		}
		if k, err := taskgraph.ParseKey(ev.Task); err == nil {
			ev.Component = k.Component
			ev.Stage = k.Stage.String()
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec       RunRecord
		createdNS int64
		updatedNS int64
		report    string
	)
	if err := row.Scan(&rec.RunID, &rec.Strategy, &rec.Status, &rec.Fingerprint, &createdNS, &updatedNS, &report); err != nil {
		return RunRecord{}, err
	}
	rec.CreatedAt = time.Unix(0, createdNS).UTC()
	rec.UpdatedAt = time.Unix(0, updatedNS).UTC()
	if report != "" && report != "{}" {
		rec.Report = json.RawMessage(report)
	}
	return rec, nil
}
