package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/onevoice/ivr/backend/internal/model/call"
)

// SQLiteStore is the persistent call log.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens the call log database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer: the analytics sink worker
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			from_masked TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			started_at_ms INTEGER NOT NULL,
			ended_at_ms INTEGER NOT NULL DEFAULT 0,
			turn_count INTEGER NOT NULL DEFAULT 0,
			duration_sec INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'in-progress',
			outcome TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS calls_started_idx ON calls(started_at_ms);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			turn_number INTEGER NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			confidence REAL,
			latency_ms INTEGER,
			urgent INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS turns_call_idx ON turns(call_id, turn_number);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init analytics schema: %w", err)
		}
	}
	return nil
}

// LogCallStart inserts the call row, or fills in caller and mode when it already exists.
func (s *SQLiteStore) LogCallStart(ctx context.Context, id, fromMasked string, mode call.Mode, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, from_masked, mode, started_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_masked = CASE WHEN excluded.from_masked <> '' THEN excluded.from_masked ELSE calls.from_masked END,
			mode = CASE WHEN excluded.mode <> '' THEN excluded.mode ELSE calls.mode END`,
		id, fromMasked, string(mode), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("log call start: %w", err)
	}
	return nil
}

// ResetCall returns a restarted call's row to its just-started state.
// started_at and the turns already logged are kept.
func (s *SQLiteStore) ResetCall(ctx context.Context, id, fromMasked string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, from_masked, started_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_masked = CASE WHEN excluded.from_masked <> '' THEN excluded.from_masked ELSE calls.from_masked END,
			mode = '',
			outcome = '',
			status = 'in-progress',
			ended_at_ms = 0,
			turn_count = 0,
			duration_sec = 0`,
		id, fromMasked, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("reset call: %w", err)
	}
	return nil
}

// LogTurn appends one utterance and advances the call's turn counter.
func (s *SQLiteStore) LogTurn(ctx context.Context, turn call.TurnRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureCall(ctx, tx, turn.CallID, turn.At); err != nil {
		return err
	}

	var confidence sql.NullFloat64
	if turn.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *turn.Confidence, Valid: true}
	}
	var latency sql.NullInt64
	if turn.LatencyMs != nil {
		latency = sql.NullInt64{Int64: *turn.LatencyMs, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (id, call_id, turn_number, role, text, confidence, latency_ms, urgent, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), turn.CallID, turn.Number, string(turn.Role), turn.Text,
		confidence, latency, boolToInt(turn.Urgent), turn.At.UnixMilli()); err != nil {
		return fmt.Errorf("log turn: %w", err)
	}

	if turn.Role == call.RoleUser {
		if _, err := tx.ExecContext(ctx,
			`UPDATE calls SET turn_count = MAX(turn_count, ?) WHERE id = ?`, turn.Number, turn.CallID); err != nil {
			return fmt.Errorf("log turn: %w", err)
		}
	}
	return tx.Commit()
}

// LogCallEnd stamps the final counters and provider status. A call may end twice,
// once from the dialogue and once from the provider's status callback: counters
// never decrease and a backend failure status is kept.
func (s *SQLiteStore) LogCallEnd(ctx context.Context, id string, turnCount, durationSec int, status string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, started_at_ms, ended_at_ms, turn_count, duration_sec, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at_ms = excluded.ended_at_ms,
			turn_count = MAX(calls.turn_count, excluded.turn_count),
			duration_sec = CASE WHEN excluded.duration_sec > 0 THEN excluded.duration_sec ELSE calls.duration_sec END,
			status = CASE WHEN calls.status = 'backend_failure' THEN calls.status ELSE excluded.status END`,
		id, at.UnixMilli(), at.UnixMilli(), turnCount, durationSec, status)
	if err != nil {
		return fmt.Errorf("log call end: %w", err)
	}
	return nil
}

// LogOutcome overwrites the call outcome.
func (s *SQLiteStore) LogOutcome(ctx context.Context, id string, outcome call.Outcome, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, started_at_ms, outcome) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET outcome = excluded.outcome`,
		id, at.UnixMilli(), string(outcome))
	if err != nil {
		return fmt.Errorf("log outcome: %w", err)
	}
	return nil
}

// SetMode records the menu choice.
func (s *SQLiteStore) SetMode(ctx context.Context, id string, mode call.Mode, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, started_at_ms, mode) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET mode = excluded.mode`,
		id, at.UnixMilli(), string(mode))
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

// ReadCallsSince returns calls started at or after since, oldest first.
func (s *SQLiteStore) ReadCallsSince(ctx context.Context, since time.Time) ([]call.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_masked, mode, started_at_ms, ended_at_ms, turn_count, duration_sec, status, outcome
		FROM calls
		WHERE started_at_ms >= ?
		ORDER BY started_at_ms ASC, id ASC`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("read calls: %w", err)
	}
	defer rows.Close()

	var out []call.Record
	for rows.Next() {
		var (
			rec              call.Record
			mode, outcome    string
			startMs, endedMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.FromMasked, &mode, &startMs, &endedMs,
			&rec.TurnCount, &rec.DurationSec, &rec.Status, &outcome); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		rec.Mode = call.Mode(mode)
		rec.StartedAt = time.UnixMilli(startMs).UTC()
		if endedMs > 0 {
			ended := time.UnixMilli(endedMs).UTC()
			rec.EndedAt = &ended
		}
		if outcome != "" {
			o := call.Outcome(outcome)
			rec.Outcome = &o
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read calls: %w", err)
	}
	return out, nil
}

// Turns returns the logged utterances of one call in order.
func (s *SQLiteStore) Turns(ctx context.Context, id string) ([]call.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_number, role, text, confidence, latency_ms, urgent, created_at_ms
		FROM turns WHERE call_id = ?
		ORDER BY created_at_ms ASC, turn_number ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	defer rows.Close()

	var out []call.TurnRecord
	for rows.Next() {
		var (
			turn       = call.TurnRecord{CallID: id}
			role       string
			confidence sql.NullFloat64
			latency    sql.NullInt64
			urgent     int
			atMs       int64
		)
		if err := rows.Scan(&turn.Number, &role, &turn.Text, &confidence, &latency, &urgent, &atMs); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = call.Role(role)
		if confidence.Valid {
			v := confidence.Float64
			turn.Confidence = &v
		}
		if latency.Valid {
			v := latency.Int64
			turn.LatencyMs = &v
		}
		turn.Urgent = urgent != 0
		turn.At = time.UnixMilli(atMs).UTC()
		out = append(out, turn)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureCall(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO calls (id, started_at_ms) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`, id, at.UnixMilli()); err != nil {
		return fmt.Errorf("ensure call row: %w", err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
