package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
)

// ToggleLike flips userID's like on postID inside one transaction:
// a DELETE that removes nothing means the user had not liked the post yet,
// so the row is inserted instead. The liker set is read back in the same
// transaction, so the result reflects exactly this toggle.
func (db *DB) ToggleLike(ctx context.Context, postID, userID string) (*model.LikeResult, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning like tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("Post")
		}
		return nil, fmt.Errorf("sqlite: checking post %s: %w", postID, err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: removing like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	liked := removed == 0
	if liked {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
			postID, userID, db.now()); err != nil {
			return nil, fmt.Errorf("sqlite: adding like: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM post_likes WHERE post_id = ? ORDER BY created_at, user_id`, postID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading likes: %w", err)
	}
	likedBy := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning like row: %w", err)
		}
		likedBy = append(likedBy, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating likes: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET updated_at = ? WHERE id = ?`, db.now(), postID); err != nil {
		return nil, fmt.Errorf("sqlite: touching post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing like: %w", err)
	}

	return &model.LikeResult{
		Likes:   len(likedBy),
		LikedBy: likedBy,
		IsLiked: liked,
	}, nil
}
