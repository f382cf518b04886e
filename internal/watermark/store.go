// Package watermark implements the watermark store (C1): the small
// persistent state that lets incremental resumption survive process
// restarts (spec.md §3 "Watermark record", §4.7).
//
// Grounded on the teacher's internal/storage package (mvp-joe/
// project-cortex): a SQLite file opened once with a single
// idempotent schema pass, plain database/sql statements rather than
// an ORM, mirroring internal/storage/chunk_writer.go's
// NewChunkWriter/Open pattern.
package watermark

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
)

// ActivityRecord is the optional per-run activity-log record of
// spec.md §3: one row per completed (or failed) indexer run.
type ActivityRecord struct {
	ProjectKey   string
	UpdateType   string // "FULL" or "INCREMENTAL"
	Result       string // "OK" or "ERROR"
	StartDate    time.Time
	TimeElapsed  time.Duration
	IssuesUpdated int
	IssuesDeleted int
	ErrorMessage string
}

// Store persists watermark and activity-log records in a dedicated
// SQLite file — the Go-native stand-in for spec.md §6's "dedicated
// private index".
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the watermark store at dbPath and
// applies its schema. Mirrors ChunkWriter.Open in the teacher: a
// single sql.Open, a pragma, then an idempotent schema pass.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open watermark store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadDatetimeValue implements readDatetimeValue (spec.md §4.4):
// reads have already-committed visibility since SQLite writes are
// durable on commit, so there is no separate "refresh" step here
// (the bleve-backed search adapter's Refresh is likewise a no-op, see
// internal/backend).
func (s *Store) ReadDatetimeValue(projectKey, property string) (*time.Time, error) {
	row := s.db.QueryRow(
		`SELECT value FROM river_watermarks WHERE project_key = ? AND property_name = ?`,
		projectKey, property,
	)
	var raw string
	switch err := row.Scan(&raw); err {
	case nil:
		t, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return nil, fmt.Errorf("watermark %s/%s has unparsable value %q: %w", projectKey, property, raw, perr)
		}
		return &t, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("reading watermark %s/%s: %w", projectKey, property, err)
	}
}

// StoreDatetimeValue implements storeDatetimeValue (spec.md §4.7).
// When tx is non-nil the write is appended to the caller's
// transaction ("bulk" in spec.md terms); otherwise it commits
// immediately in its own transaction.
func (s *Store) StoreDatetimeValue(projectKey, property string, value time.Time, tx *sql.Tx) error {
	if tx != nil {
		return storeDatetimeValue(tx, projectKey, property, value)
	}

	txn, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning watermark write: %w", err)
	}
	defer txn.Rollback()

	if err := storeDatetimeValue(txn, projectKey, property, value); err != nil {
		return err
	}
	return txn.Commit()
}

func storeDatetimeValue(tx *sql.Tx, projectKey, property string, value time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO river_watermarks (doc_id, project_key, property_name, value)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_key, property_name) DO UPDATE SET value = excluded.value`,
		docID(projectKey, property), projectKey, property, value.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing watermark %s/%s: %w", projectKey, property, err)
	}
	return nil
}

// DeleteDatetimeValue implements deleteDatetimeValue (spec.md §4.7).
func (s *Store) DeleteDatetimeValue(projectKey, property string) error {
	_, err := s.db.Exec(
		`DELETE FROM river_watermarks WHERE project_key = ? AND property_name = ?`,
		projectKey, property,
	)
	if err != nil {
		return fmt.Errorf("deleting watermark %s/%s: %w", projectKey, property, err)
	}
	return nil
}

// Begin exposes a transaction that a caller can pass to
// StoreDatetimeValue to group a watermark write with other writes
// (the SQLite analogue of spec.md §4.4 step 5's "append a watermark
// update to the bulk"). The project indexer does not use it: it
// passes a nil tx and commits each watermark write on its own, after
// the page's bulk write has succeeded.
func (s *Store) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}

// WriteActivityLog is the best-effort activity-log write of spec.md
// §4.1: "failure to log is logged locally, never propagated" — so
// this returns an error for the caller to log, not to fail the run
// over.
func (s *Store) WriteActivityLog(rec ActivityRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO river_activity_log
			(id, project_key, update_type, result, start_date, time_elapsed_ms, issues_updated, issues_deleted, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.ProjectKey, rec.UpdateType, rec.Result,
		rec.StartDate.UTC().Format(time.RFC3339), rec.TimeElapsed.Milliseconds(),
		rec.IssuesUpdated, rec.IssuesDeleted, nullableString(rec.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("writing activity log for %s: %w", rec.ProjectKey, err)
	}
	return nil
}

// RecentActivity returns the most recent activity-log records for a
// project, most recent first, bounded to limit rows — backs the
// `river status` CLI extension of SPEC_FULL.md §4.
func (s *Store) RecentActivity(projectKey string, limit int) ([]ActivityRecord, error) {
	rows, err := s.db.Query(
		`SELECT project_key, update_type, result, start_date, time_elapsed_ms, issues_updated, issues_deleted, error_message
		 FROM river_activity_log WHERE project_key = ? ORDER BY start_date DESC LIMIT ?`,
		projectKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying activity log for %s: %w", projectKey, err)
	}
	defer rows.Close()

	var out []ActivityRecord
	for rows.Next() {
		var rec ActivityRecord
		var startRaw string
		var elapsedMs int64
		var errMsg sql.NullString
		if err := rows.Scan(&rec.ProjectKey, &rec.UpdateType, &rec.Result, &startRaw, &elapsedMs, &rec.IssuesUpdated, &rec.IssuesDeleted, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning activity log row: %w", err)
		}
		if rec.StartDate, err = time.Parse(time.RFC3339, startRaw); err != nil {
			return nil, fmt.Errorf("unparsable activity log start_date %q: %w", startRaw, err)
		}
		rec.TimeElapsed = time.Duration(elapsedMs) * time.Millisecond
		rec.ErrorMessage = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
