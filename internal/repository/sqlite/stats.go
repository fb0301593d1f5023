package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/codeshare/internal/model"
)

const (
	topLanguages   = 10
	topActiveUsers = 10
	trendDays      = 30
)

// Dashboard computes the admin overview relative to now.
// "This week" means the seven days before now; the registration trend
// covers the last thirty days, grouped by UTC calendar day.
func (db *DB) Dashboard(ctx context.Context, now time.Time) (*model.Dashboard, error) {
	now = now.UTC()
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -trendDays)

	d := &model.Dashboard{
		PostsByLanguage:       []model.LanguageCount{},
		UserRegistrationTrend: []model.RegistrationDay{},
		MostActiveUsers:       []model.ActiveUser{},
	}

	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM posts),
			(SELECT COUNT(*) FROM users WHERE role = 'admin'),
			(SELECT COUNT(*) FROM users WHERE role = 'moderator'),
			(SELECT COUNT(*) FROM users WHERE created_at >= ?),
			(SELECT COUNT(*) FROM posts WHERE created_at >= ?)`,
		weekAgo, weekAgo,
	).Scan(
		&d.Stats.TotalUsers, &d.Stats.TotalPosts, &d.Stats.TotalAdmins,
		&d.Stats.TotalModerators, &d.Stats.NewUsersThisWeek, &d.Stats.NewPostsThisWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting totals: %w", err)
	}

	if d.PostsByLanguage, err = db.postsByLanguage(ctx); err != nil {
		return nil, err
	}
	if d.UserRegistrationTrend, err = db.registrationTrend(ctx, monthAgo); err != nil {
		return nil, err
	}
	if d.MostActiveUsers, err = db.mostActiveUsers(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (db *DB) postsByLanguage(ctx context.Context) ([]model.LanguageCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT programming_language, COUNT(*) AS n
		FROM posts
		GROUP BY programming_language
		ORDER BY n DESC, programming_language
		LIMIT ?`, topLanguages)
	if err != nil {
		return nil, fmt.Errorf("sqlite: grouping posts by language: %w", err)
	}
	defer rows.Close()

	out := make([]model.LanguageCount, 0, topLanguages)
	for rows.Next() {
		var lc model.LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning language row: %w", err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// registrationTrend groups in Go rather than with strftime: timestamps are
// stored by the driver as text and date() cannot parse every variant of it.
func (db *DB) registrationTrend(ctx context.Context, since time.Time) ([]model.RegistrationDay, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT created_at FROM users WHERE created_at >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.RegistrationDate]int)
	for rows.Next() {
		var created time.Time
		if err := rows.Scan(&created); err != nil {
			return nil, fmt.Errorf("sqlite: scanning registration row: %w", err)
		}
		created = created.UTC()
		day := model.RegistrationDate{Year: created.Year(), Month: int(created.Month()), Day: created.Day()}
		counts[day]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating registrations: %w", err)
	}

	return model.RegistrationTrend(counts), nil
}

func (db *DB) mostActiveUsers(ctx context.Context) ([]model.ActiveUser, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT u.id, u.full_name, u.email, u.profile_pic, COUNT(p.id) AS n
		FROM posts p
		JOIN users u ON u.id = p.owner_id
		GROUP BY u.id
		ORDER BY n DESC, u.full_name
		LIMIT ?`, topActiveUsers)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ranking active users: %w", err)
	}
	defer rows.Close()

	out := make([]model.ActiveUser, 0, topActiveUsers)
	for rows.Next() {
		var a model.ActiveUser
		if err := rows.Scan(&a.UserID, &a.User.FullName, &a.User.Email, &a.User.ProfilePic, &a.PostCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning active user row: %w", err)
		}
		a.User.ID = a.UserID
		out = append(out, a)
	}
	return out, rows.Err()
}
