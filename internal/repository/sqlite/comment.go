package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
)

const commentSelect = `
	SELECT c.id, c.post_id, c.author_id, c.text, c.created_at,
	       COALESCE(u.full_name, ''), COALESCE(u.profile_pic, '')
	FROM comments c
	LEFT JOIN users u ON u.id = c.author_id`

func scanComment(row rowScanner, c *model.Comment) error {
	author := &model.UserSummary{}
	if err := row.Scan(
		&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt,
		&author.FullName, &author.ProfilePic,
	); err != nil {
		return err
	}
	author.ID = c.AuthorID
	c.Author = author
	return nil
}

// AddComment checks the post exists first so a missing post reads as
// "Post not found" rather than a foreign key failure.
func (db *DB) AddComment(ctx context.Context, comment *model.Comment) error {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM posts WHERE id = ?`, comment.PostID).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("Post")
		}
		return fmt.Errorf("sqlite: checking post %s: %w", comment.PostID, err)
	}

	comment.ID = xid.New().String()
	comment.CreatedAt = db.now()

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, author_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		comment.ID, comment.PostID, comment.AuthorID, comment.Text, comment.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: adding comment: %w", err)
	}

	created, err := db.GetComment(ctx, comment.PostID, comment.ID)
	if err != nil {
		return err
	}
	*comment = *created
	return nil
}

func (db *DB) GetComment(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	var c model.Comment
	err := scanComment(db.conn.QueryRowContext(ctx,
		commentSelect+` WHERE c.post_id = ? AND c.id = ?`, postID, commentID), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("Comment")
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", commentID, err)
	}
	return &c, nil
}

func (db *DB) DeleteComment(ctx context.Context, postID, commentID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM comments WHERE post_id = ? AND id = ?`, postID, commentID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", commentID, err)
	}
	return requireAffected(result, "Comment")
}

func (db *DB) queryComments(ctx context.Context, query string, args ...any) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading comments: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}
