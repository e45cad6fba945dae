// Package sqlite implements the repository interfaces on top of SQLite.
//
// The driver is modernc.org/sqlite, a pure Go translation of SQLite, so the
// binary builds without CGo. Queries go through sqlx, which scans rows
// straight into the `db:"..."` tagged model structs.
//
// ONE CONNECTION:
// SQLite allows a single writer. The pool is capped at one open connection,
// which also keeps ":memory:" databases (used by the tests) from silently
// splitting into one private database per connection.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	// Importing the driver also registers it with database/sql as "sqlite".
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps an sqlx connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sqlx.DB
	now  func() time.Time
}

// New opens the database at dbPath, applies pragmas and runs migrations.
//
// dbPath examples:
//   - "data/coursemarket.db" → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Course contents and
	// purchases rely on ON DELETE CASCADE.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			name          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			is_student    BOOLEAN NOT NULL DEFAULT 0,
			is_teacher    BOOLEAN NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (NOT (is_student AND is_teacher))
		);

		CREATE TABLE IF NOT EXISTS student_profiles (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
			email      TEXT NOT NULL,
			name       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS teacher_profiles (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
			email      TEXT NOT NULL,
			name       TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating identity tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS courses (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			duration    TEXT NOT NULL DEFAULT '',
			price_cents INTEGER NOT NULL DEFAULT 0,
			teacher_id  TEXT NOT NULL REFERENCES teacher_profiles(id) ON DELETE CASCADE,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_courses_teacher_id ON courses(teacher_id);

		CREATE TABLE IF NOT EXISTS course_contents (
			id         TEXT PRIMARY KEY,
			course_id  TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			body       TEXT NOT NULL DEFAULT '',
			url        TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_course_contents_course_id ON course_contents(course_id);
	`)
	if err != nil {
		return fmt.Errorf("creating catalog tables: %w", err)
	}

	// UNIQUE(student_id, course_id) is what makes concurrent purchase
	// initiation safe; the service-level existence check alone is not.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS purchases (
			id             TEXT PRIMARY KEY,
			student_id     TEXT NOT NULL REFERENCES student_profiles(id) ON DELETE CASCADE,
			teacher_id     TEXT NOT NULL REFERENCES teacher_profiles(id) ON DELETE CASCADE,
			course_id      TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			provider_ref   TEXT NOT NULL DEFAULT '',
			transaction_id TEXT,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			purchased_at   DATETIME,
			UNIQUE (student_id, course_id)
		);
		CREATE INDEX IF NOT EXISTS idx_purchases_course_id ON purchases(course_id);
		CREATE INDEX IF NOT EXISTS idx_purchases_teacher_id ON purchases(teacher_id);
	`)
	if err != nil {
		return fmt.Errorf("creating purchases table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS pending_registrations (
			session_id    TEXT PRIMARY KEY,
			email         TEXT NOT NULL,
			name          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			code          TEXT NOT NULL,
			expires_at    DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating pending_registrations table: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// likePattern turns a user search term into a LIKE pattern matching it as a
// substring. Wildcards in the term are escaped with '\'.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(term)) + "%"
}
