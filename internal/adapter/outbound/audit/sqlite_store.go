package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/odisys/ces-gate/internal/domain/audit"
)

const schema = `CREATE TABLE IF NOT EXISTS audit_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	request_id TEXT NOT NULL,
	user_id TEXT,
	input TEXT NOT NULL,
	topic TEXT NOT NULL,
	domain TEXT NOT NULL,
	impact TEXT NOT NULL,
	action TEXT NOT NULL,
	draft_id TEXT NOT NULL,
	decision TEXT NOT NULL,
	rule_id TEXT,
	reason TEXT,
	audit_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_records_request_id ON audit_records(request_id);
CREATE INDEX IF NOT EXISTS idx_audit_records_decision ON audit_records(decision);`

// SQLiteStore implements audit.Store on a SQLite database. database/sql
// serializes access, so no extra locking is needed.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the audit database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Compile-time check that SQLiteStore implements audit.Store.
var _ audit.Store = (*SQLiteStore)(nil)

// Write inserts one record.
func (s *SQLiteStore) Write(ctx context.Context, record audit.Record) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_records
		(timestamp, request_id, user_id, input, topic, domain, impact, action, draft_id, decision, rule_id, reason, audit_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.Format(time.RFC3339Nano),
		record.RequestID,
		record.UserID,
		record.Input,
		record.Topic,
		record.Domain,
		record.Impact,
		record.Action,
		record.DraftID,
		record.Decision,
		record.RuleID,
		record.Reason,
		record.AuditHash,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
