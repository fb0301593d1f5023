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

// postSelect joins the owner so every post comes back populated.
// The owner columns are LEFT JOINed: a post never outlives its owner
// (ON DELETE CASCADE), but a NULL owner must not break the scan.
const postSelect = `
	SELECT p.id, p.owner_id, p.privacy, p.programming_language, p.project_code,
	       p.project_name, p.created_at, p.updated_at,
	       COALESCE(u.full_name, ''), COALESCE(u.email, ''), COALESCE(u.profile_pic, '')
	FROM posts p
	LEFT JOIN users u ON u.id = p.owner_id`

// postSortColumns whitelists ORDER BY expressions. User input never reaches
// the SQL text directly.
var postSortColumns = map[repository.PostSortField]string{
	repository.SortByCreatedAt:           "p.created_at",
	repository.SortByUpdatedAt:           "p.updated_at",
	repository.SortByLikes:               "(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id)",
	repository.SortByProjectName:         "p.project_name COLLATE NOCASE",
	repository.SortByProgrammingLanguage: "p.programming_language",
}

func scanPost(row rowScanner, p *model.Post) error {
	owner := &model.UserSummary{}
	if err := row.Scan(
		&p.ID, &p.OwnerID, &p.Privacy, &p.ProgrammingLanguage, &p.ProjectCode,
		&p.ProjectName, &p.CreatedAt, &p.UpdatedAt,
		&owner.FullName, &owner.Email, &owner.ProfilePic,
	); err != nil {
		return err
	}
	owner.ID = p.OwnerID
	p.Owner = owner
	p.LikedBy = []string{}
	p.Comments = []model.Comment{}
	return nil
}

func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	now := db.now()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, owner_id, privacy, programming_language, project_code, project_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.OwnerID, post.Privacy, post.ProgrammingLanguage,
		post.ProjectCode, post.ProjectName, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	created, err := db.GetPost(ctx, post.ID)
	if err != nil {
		return err
	}
	*post = *created
	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := scanPost(db.conn.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id), &p)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("Post")
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}

	posts := []model.Post{p}
	if err := db.hydratePosts(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

func (db *DB) ListPosts(ctx context.Context) ([]model.Post, error) {
	posts, err := db.queryPosts(ctx, postSelect+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	if err := db.hydratePosts(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (db *DB) SearchPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, int, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, `(p.project_name LIKE ? ESCAPE '\' OR p.project_code LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(s), likePattern(s))
	}
	if filter.Language != "" {
		where = append(where, "p.programming_language = ?")
		args = append(args, filter.Language)
	}
	if filter.Privacy != "" {
		where = append(where, "p.privacy = ?")
		args = append(args, filter.Privacy)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts p`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}

	order, ok := postSortColumns[filter.SortBy]
	if !ok {
		order = postSortColumns[repository.SortByCreatedAt]
	}
	dir := "ASC"
	if filter.Descending {
		dir = "DESC"
	}

	limit, offset := clampPage(filter.Page)
	posts, err := db.queryPosts(ctx,
		postSelect+clause+` ORDER BY `+order+` `+dir+`, p.id `+dir+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	if err := db.hydratePosts(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (db *DB) DeletePost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return requireAffected(result, "Post")
}

// queryPosts runs a postSelect query and returns the rows, fully read and
// closed, so the caller may issue the next query on the single connection.
func (db *DB) queryPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		var p model.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

// hydratePosts fills LikedBy, Likes and Comments for every post in place,
// with one query for likes and one for comments.
func (db *DB) hydratePosts(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	index := make(map[string]int, len(posts))
	ids := make([]any, len(posts))
	for i := range posts {
		index[posts[i].ID] = i
		ids[i] = posts[i].ID
	}
	in := placeholders(len(ids))

	likeRows, err := db.conn.QueryContext(ctx,
		`SELECT post_id, user_id FROM post_likes WHERE post_id IN (`+in+`) ORDER BY created_at, user_id`,
		ids...)
	if err != nil {
		return fmt.Errorf("sqlite: loading likes: %w", err)
	}
	for likeRows.Next() {
		var postID, userID string
		if err := likeRows.Scan(&postID, &userID); err != nil {
			likeRows.Close()
			return fmt.Errorf("sqlite: scanning like row: %w", err)
		}
		p := &posts[index[postID]]
		p.LikedBy = append(p.LikedBy, userID)
	}
	if err := likeRows.Err(); err != nil {
		likeRows.Close()
		return fmt.Errorf("sqlite: iterating likes: %w", err)
	}
	likeRows.Close()

	comments, err := db.queryComments(ctx,
		commentSelect+` WHERE c.post_id IN (`+in+`) ORDER BY c.created_at, c.id`, ids...)
	if err != nil {
		return err
	}
	for _, c := range comments {
		p := &posts[index[c.PostID]]
		p.Comments = append(p.Comments, c)
	}

	for i := range posts {
		posts[i].Likes = len(posts[i].LikedBy)
	}
	return nil
}
