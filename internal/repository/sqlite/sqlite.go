// Package sqlite implements the repository interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go, no cgo).
//
// SCHEMA:
//
//	users          one row per account, email unique (case-insensitive)
//	posts          owner_id → users, cascades on user delete
//	post_likes     (post_id, user_id) primary key: the liker set
//	comments       post_id → posts, author_id → users, both cascade
//	notifications  sender_id / recipient_id → users, both cascade
//
// A post's like count is never stored. It is always COUNT(*) over
// post_likes, so it cannot drift from the liker set.
//
// CONNECTIONS:
// The pool is capped at one connection. SQLite serialises writers anyway,
// PRAGMAs are per connection, and a ":memory:" database only exists on the
// connection that created it. Code holding a transaction must therefore never
// issue a query on db.conn until the transaction ends.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakif/codeshare/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB and implements repository.Store.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/codeshare.db"  → file-based database
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates every table and index. Each statement is idempotent.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id             TEXT PRIMARY KEY,
				full_name      TEXT NOT NULL,
				email          TEXT NOT NULL UNIQUE COLLATE NOCASE,
				password_hash  TEXT NOT NULL,
				profile_pic    TEXT NOT NULL DEFAULT '',
				role           TEXT NOT NULL DEFAULT 'user',
				status         TEXT NOT NULL DEFAULT 'active',
				status_reason  TEXT NOT NULL DEFAULT '',
				auth_provider  TEXT NOT NULL DEFAULT 'email',
				provider_uid   TEXT NOT NULL DEFAULT '',
				last_login     DATETIME,
				login_attempts INTEGER NOT NULL DEFAULT 0,
				lock_until     DATETIME,
				created_at     DATETIME NOT NULL,
				updated_at     DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);
			CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id                   TEXT PRIMARY KEY,
				owner_id             TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				privacy              TEXT NOT NULL,
				programming_language TEXT NOT NULL,
				project_code         TEXT NOT NULL,
				project_name         TEXT NOT NULL,
				created_at           DATETIME NOT NULL,
				updated_at           DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_posts_owner_id ON posts(owner_id);
			CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);`},
		{"post_likes", `
			CREATE TABLE IF NOT EXISTS post_likes (
				post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (post_id, user_id)
			);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				text       TEXT NOT NULL,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);`},
		{"notifications", `
			CREATE TABLE IF NOT EXISTS notifications (
				id           TEXT PRIMARY KEY,
				title        TEXT NOT NULL,
				message      TEXT NOT NULL,
				type         TEXT NOT NULL DEFAULT 'code_share',
				priority     TEXT NOT NULL DEFAULT 'medium',
				sender_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				recipient_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				read         INTEGER NOT NULL DEFAULT 0,
				created_at   DATETIME NOT NULL,
				updated_at   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}

// likePattern turns free text into a LIKE pattern matching it as a substring.
// SQLite's LIKE is case-insensitive for ASCII; queries use ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func clampPage(p repository.Page) (limit, offset int) {
	limit = p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
