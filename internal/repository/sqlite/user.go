package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
)

const userColumns = `id, full_name, email, password_hash, profile_pic, role, status, status_reason,
	auth_provider, provider_uid, last_login, login_attempts, lock_until, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *model.User) error {
	var lastLogin, lockUntil sql.NullTime
	if err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePic,
		&u.Role, &u.Status, &u.StatusReason, &u.AuthProvider, &u.ProviderUID,
		&lastLogin, &u.LoginAttempts, &lockUntil, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return err
	}
	u.LastLogin = timePtr(lastLogin)
	u.LockUntil = timePtr(lockUntil)
	return nil
}

// CreateUser inserts a new account. Email is stored lower-cased.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := db.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.FullName, user.Email, user.PasswordHash, user.ProfilePic,
		user.Role, user.Status, user.StatusReason, user.AuthProvider, user.ProviderUID,
		nullTime(user.LastLogin), user.LoginAttempts, nullTime(user.LockUntil),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Email already exists")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("User")
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("User")
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET full_name = ?, profile_pic = ?, password_hash = ?, role = ?, status = ?,
		     status_reason = ?, auth_provider = ?, provider_uid = ?, last_login = ?,
		     login_attempts = ?, lock_until = ?, updated_at = ?
		 WHERE id = ?`,
		user.FullName, user.ProfilePic, user.PasswordHash, user.Role, user.Status,
		user.StatusReason, user.AuthProvider, user.ProviderUID, nullTime(user.LastLogin),
		user.LoginAttempts, nullTime(user.LockUntil), user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	return requireAffected(result, "User")
}

// DeleteUser relies on ON DELETE CASCADE for posts, comments, likes and notifications.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return requireAffected(result, "User")
}

func (db *DB) ListUsersExcept(ctx context.Context, excludeID string) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id <> ? ORDER BY full_name COLLATE NOCASE`,
		excludeID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// SearchUsers builds the WHERE clause from the filter and returns the page
// plus the total number of matches.
func (db *DB) SearchUsers(ctx context.Context, filter repository.UserFilter) ([]model.UserWithStats, int, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, `(full_name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(s), likePattern(s))
	}
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	limit, offset := clampPage(filter.Page)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+`,
		        (SELECT COUNT(*) FROM posts p WHERE p.owner_id = users.id) AS post_count
		 FROM users`+clause+`
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	users := make([]model.UserWithStats, 0, limit)
	for rows.Next() {
		var (
			u                    model.UserWithStats
			lastLogin, lockUntil sql.NullTime
		)
		if err := rows.Scan(
			&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePic,
			&u.Role, &u.Status, &u.StatusReason, &u.AuthProvider, &u.ProviderUID,
			&lastLogin, &u.LoginAttempts, &lockUntil, &u.CreatedAt, &u.UpdatedAt,
			&u.PostCount,
		); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		u.LastLogin = timePtr(lastLogin)
		u.LockUntil = timePtr(lockUntil)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, total, nil
}

// requireAffected maps "no rows changed" to a NotFound for resource.
func requireAffected(result sql.Result, resource string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource)
	}
	return nil
}
