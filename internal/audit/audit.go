// Package audit records admin-channel commands to a small Postgres table, so
// operators can answer "who cleared that mark and when" after the fact. It
// carries no core state: a restart still loses every pool/resolved-view/mark
// entry, only the audit trail of admin actions survives.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Config holds the Postgres connection parameters for the audit log.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Enabled  bool
}

// Log writes admin command history to Postgres. A disabled Log (nil db) is
// a no-op. Open returns an error instead of a Log when the database cannot
// be reached; the entrypoint then opens a disabled Log in its place.
type Log struct {
	db *sql.DB
}

// Entry is one admin command's audit record.
type Entry struct {
	ConnID   string
	Action   string
	PlayerID string
	Detail   string
	At       time.Time
}

// Open connects to Postgres and ensures the admin_audit_log table exists. When cfg
// is disabled it returns a Log with a nil db, and every method becomes a
// no-op; callers do not need to branch on cfg.Enabled themselves.
func Open(cfg Config) (*Log, error) {
	if !cfg.Enabled {
		return &Log{}, nil
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping audit db: %w", err)
	}

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewForTesting wraps an already-open *sql.DB (typically a sqlmock
// connection) without running migrate or a ping, mirroring the teacher's
// NewDatabaseForTesting helper.
func NewForTesting(db *sql.DB) *Log {
	return &Log{db: db}
}

func (l *Log) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS admin_audit_log (
		id SERIAL PRIMARY KEY,
		conn_id VARCHAR(64) NOT NULL,
		action VARCHAR(64) NOT NULL,
		player_id VARCHAR(128),
		detail TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// Close closes the underlying connection pool, if one was opened.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record inserts one admin command entry. Failures are returned, not
// swallowed, since the admin REST handler logs and reports them rather than
// letting a broken audit log hide silently.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO admin_audit_log (conn_id, action, player_id, detail) VALUES ($1, $2, $3, $4)`,
		e.ConnID, e.Action, e.PlayerID, e.Detail,
	)
	return err
}

// Recent returns the most recent audit entries, newest first, for the admin
// REST audit-log viewer.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if l.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT conn_id, action, COALESCE(player_id, ''), COALESCE(detail, ''), created_at
		 FROM admin_audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ConnID, &e.Action, &e.PlayerID, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
