// ABOUTME: SQLite implementation of the session Store using modernc.org/sqlite
// ABOUTME: Creates the sessions schema on open and inserts credentials atomically

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/hawkgate/internal/hawk"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" opens a
// private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "session-store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// busy_timeout is set through the DSN so every pooled connection gets it.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite session store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			auth_key     BLOB NOT NULL,
			algorithm    TEXT NOT NULL,
			app          TEXT,
			created_at   TEXT NOT NULL,
			last_used_at TEXT,

			CHECK (algorithm IN ('sha256', 'sha1'))
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite session store")
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Lookup loads the credential for id. Returns ErrNotFound if absent.
func (s *SQLiteStore) Lookup(ctx context.Context, id string) (*hawk.Credential, error) {
	var cred hawk.Credential
	var algorithm, createdAt string
	var app sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, auth_key, algorithm, app, created_at
		FROM sessions
		WHERE id = ?
	`, id).Scan(&cred.ID, &cred.Key, &algorithm, &app, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	cred.Algorithm, err = hawk.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	cred.App = app.String
	cred.CreatedAt = parseTime(createdAt, "created_at", id)
	return &cred, nil
}

// Create inserts cred. A single INSERT keeps creation atomic per id.
func (s *SQLiteStore) Create(ctx context.Context, cred *hawk.Credential) error {
	if cred == nil || cred.ID == "" {
		return fmt.Errorf("creating session: empty id")
	}
	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, auth_key, algorithm, app, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, cred.ID, cred.Key, string(cred.Algorithm), nullString(cred.App), createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "session", *cred)
	return nil
}

// Touch sets last_used_at for id.
func (s *SQLiteStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return requireOneRow(res)
}

// List returns sessions newest first. limit <= 0 returns all.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Info, error) {
	query := `SELECT id, algorithm, app, created_at, last_used_at FROM sessions ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*Info
	for rows.Next() {
		var info Info
		var algorithm, createdAt string
		var app, lastUsed sql.NullString
		if err := rows.Scan(&info.ID, &algorithm, &app, &createdAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		info.Algorithm = hawk.Algorithm(algorithm)
		info.App = app.String
		info.CreatedAt = parseTime(createdAt, "created_at", info.ID)
		if lastUsed.Valid {
			t := parseTime(lastUsed.String, "last_used_at", info.ID)
			info.LastUsedAt = &t
		}
		out = append(out, &info)
	}
	return out, rows.Err()
}

// Delete removes a session. Returns ErrNotFound if absent.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseTime(value, column, id string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		slog.Warn("failed to parse session timestamp", "id", id, "column", column, "error", err)
		return time.Time{}
	}
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
