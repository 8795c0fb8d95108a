package eventlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adaptco/tetris/internal/event"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// SQLite is the durable Log implementation.
// Uses WAL mode for concurrent read access during writes.
type SQLite struct {
	db *sql.DB
}

var _ Log = (*SQLite)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically. Use ":memory:"
// for an ephemeral log in tests.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// Append writes one event inside its own transaction.
func (s *SQLite) Append(ctx context.Context, tenant, session string, e Entry) (event.Event, error) {
	events, err := s.AppendAll(ctx, tenant, session, []Entry{e})
	if err != nil {
		return event.Event{}, err
	}
	return events[0], nil
}

// AppendAll writes a batch of events in one transaction. The tail of the
// existing chain is read inside the same transaction, so the sealed check
// and the sequence assignment cannot race with another writer.
func (s *SQLite) AppendAll(ctx context.Context, tenant, session string, entries []Entry) ([]event.Event, error) {
	if len(entries) == 0 {
		return []event.Event{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, prevHash, lastState, err := chainTail(ctx, tx, tenant, session)
	if err != nil {
		return nil, err
	}
	if lastState.IsTerminal() {
		return nil, fmt.Errorf("append to %s/%s: %w", tenant, session, ErrSessionSealed)
	}

	events := make([]event.Event, 0, len(entries))
	for i, entry := range entries {
		if entry.Payload == nil {
			return nil, fmt.Errorf("append: entry %d has nil payload", i)
		}
		if lastState.IsTerminal() {
			// A terminal entry earlier in this batch seals the session
			// for the remainder of the batch too.
			return nil, fmt.Errorf("append to %s/%s: %w", tenant, session, ErrSessionSealed)
		}

		seq++
		ev := event.Event{
			Tenant:     tenant,
			Session:    session,
			Seq:        seq,
			State:      entry.State,
			Stage:      entry.Stage,
			Payload:    entry.Payload,
			PrevHash:   prevHash,
			RecordedAt: time.Now().UTC(),
		}

		ev.Hash, err = event.ChainHash(prevHash, ev)
		if err != nil {
			return nil, fmt.Errorf("append: %w", err)
		}

		payloadJSON, err := event.MarshalPayload(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("append: marshal payload seq %d: %w", seq, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events
			(tenant_id, session_id, seq, state, stage, payload, prev_hash, hash, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			tenant,
			session,
			ev.Seq,
			string(ev.State),
			string(ev.Stage),
			string(payloadJSON),
			ev.PrevHash,
			ev.Hash,
			ev.RecordedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, fmt.Errorf("append: insert seq %d: %w", seq, err)
		}

		events = append(events, ev)
		prevHash = ev.Hash
		lastState = entry.State
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append: commit: %w", err)
	}

	return events, nil
}

// chainTail returns the last sequence number, hash, and state tag for a
// session. A session with no events yields (0, "", "").
func chainTail(ctx context.Context, tx *sql.Tx, tenant, session string) (int64, string, event.StateTag, error) {
	var (
		seq   int64
		hash  string
		state string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT seq, hash, state
		FROM events
		WHERE tenant_id = ? AND session_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, tenant, session).Scan(&seq, &hash, &state)
	if err == sql.ErrNoRows {
		return 0, "", "", nil
	}
	if err != nil {
		return 0, "", "", fmt.Errorf("append: read chain tail: %w", err)
	}
	return seq, hash, event.StateTag(state), nil
}

// Read returns the full ordered history for a session.
// Returns an empty slice (not nil) if no events exist.
func (s *SQLite) Read(ctx context.Context, tenant, session string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, state, stage, payload, prev_hash, hash, recorded_at
		FROM events
		WHERE tenant_id = ? AND session_id = ?
		ORDER BY seq ASC
	`, tenant, session)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var (
			ev          event.Event
			state       string
			stage       string
			payloadJSON string
			recordedAt  string
		)
		if err := rows.Scan(&ev.Seq, &state, &stage, &payloadJSON, &ev.PrevHash, &ev.Hash, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Tenant = tenant
		ev.Session = session
		ev.State = event.StateTag(state)
		ev.Stage = event.Stage(stage)

		ev.Payload, err = event.UnmarshalPayload(ev.Stage, []byte(payloadJSON))
		if err != nil {
			return nil, fmt.Errorf("decode payload seq %d: %w", ev.Seq, err)
		}

		ev.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at seq %d: %w", ev.Seq, err)
		}

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// Sessions returns every (tenant, session) pair present in the log, in
// first-append order. Used by the CLI to enumerate stored sessions.
func (s *SQLite) Sessions(ctx context.Context) ([][2]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, session_id, MIN(id) AS first
		FROM events
		GROUP BY tenant_id, session_id
		ORDER BY first ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var tenant, session string
		var first int64
		if err := rows.Scan(&tenant, &session, &first); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, [2]string{tenant, session})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
