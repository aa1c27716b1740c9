package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements API over a single SQLite file. Nested values
// (rejections, claim trees, strategy outputs) are stored as JSON columns.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ API = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS applications (
	id                   TEXT PRIMARY KEY,
	application_number   TEXT NOT NULL DEFAULT '',
	publication_number   TEXT NOT NULL DEFAULT '',
	owner_id             TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT '',
	filing_date          TEXT NOT NULL DEFAULT '',
	rejections           TEXT NOT NULL DEFAULT '[]',
	claim_statuses       TEXT NOT NULL DEFAULT '[]',
	claims_ingested      INTEGER NOT NULL DEFAULT 0,
	description_ingested INTEGER NOT NULL DEFAULT 0,
	prior_art_ingested   INTEGER NOT NULL DEFAULT 0,
	first_action         INTEGER NOT NULL DEFAULT 0,
	claim_count          INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS applications_owner ON applications (owner_id, created_at);

CREATE TABLE IF NOT EXISTS application_documents (
	application_id   TEXT PRIMARY KEY,
	claim_text       TEXT NOT NULL DEFAULT '',
	description_text TEXT NOT NULL DEFAULT '',
	claim_tree       TEXT NOT NULL DEFAULT '[]',
	prior_art        TEXT NOT NULL DEFAULT '[]',
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dockets (
	rejection_id        TEXT PRIMARY KEY,
	application_id      TEXT NOT NULL,
	claims_rejected     TEXT NOT NULL DEFAULT '[]',
	prior_art           TEXT NOT NULL DEFAULT '[]',
	basis               TEXT NOT NULL,
	finalized_strategy  TEXT NOT NULL DEFAULT '',
	show_finalized_type INTEGER NOT NULL DEFAULT 0,
	created_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS dockets_application ON dockets (application_id);

CREATE TABLE IF NOT EXISTS strategy_results (
	rejection_id       TEXT NOT NULL,
	kind               TEXT NOT NULL,
	application_id     TEXT NOT NULL,
	comparison_table   TEXT NOT NULL DEFAULT '[]',
	amended_claim      TEXT NOT NULL DEFAULT '{}',
	amendment_strategy TEXT NOT NULL DEFAULT '',
	updated_at         TEXT NOT NULL,
	PRIMARY KEY (rejection_id, kind)
);

CREATE TABLE IF NOT EXISTS finalized_amendments (
	rejection_id       TEXT PRIMARY KEY,
	application_id     TEXT NOT NULL,
	kind               TEXT NOT NULL,
	comparison_table   TEXT NOT NULL DEFAULT '[]',
	amended_claim      TEXT NOT NULL DEFAULT '{}',
	amendment_strategy TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	finalized_at       TEXT NOT NULL DEFAULT '',
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS other_responses (
	rejection_id   TEXT PRIMARY KEY,
	application_id TEXT NOT NULL,
	response       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	finalized_at   TEXT NOT NULL DEFAULT '',
	updated_at     TEXT NOT NULL
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- encoding helpers ---

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func timePtrToString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timeToString(*t)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalJSON(column, raw string, out any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
