package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
)

// toggleAttempts bounds the retry loop in ToggleLike. A retry only happens
// when another request flips the same like between our two conditional updates.
const toggleAttempts = 5

var postSortFields = map[repository.PostSortField]string{
	repository.SortByCreatedAt:           "createdAt",
	repository.SortByUpdatedAt:           "updatedAt",
	repository.SortByLikes:               "likes",
	repository.SortByProjectName:         "projectName",
	repository.SortByProgrammingLanguage: "programmingLanguage",
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	now := s.now()
	doc := postDoc{
		ID:                  xid.New().String(),
		Owner:               post.OwnerID,
		Privacy:             string(post.Privacy),
		ProgrammingLanguage: post.ProgrammingLanguage,
		ProjectCode:         post.ProjectCode,
		ProjectName:         post.ProjectName,
		LikedBy:             []string{},
		Comments:            []commentDoc{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb: creating post: %w", err)
	}

	posts, err := s.populatePosts(ctx, []postDoc{doc})
	if err != nil {
		return err
	}
	*post = posts[0]
	return nil
}

func (s *Store) getPostDoc(ctx context.Context, id string) (*postDoc, error) {
	var d postDoc
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("Post")
		}
		return nil, fmt.Errorf("mongodb: getting post %s: %w", id, err)
	}
	return &d, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	d, err := s.getPostDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	posts, err := s.populatePosts(ctx, []postDoc{*d})
	if err != nil {
		return nil, err
	}
	return &posts[0], nil
}

func (s *Store) findPosts(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Post, error) {
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: listing posts: %w", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decoding posts: %w", err)
	}
	return s.populatePosts(ctx, docs)
}

func (s *Store) ListPosts(ctx context.Context) ([]model.Post, error) {
	return s.findPosts(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) SearchPosts(ctx context.Context, f repository.PostFilter) ([]model.Post, int, error) {
	filter := bson.M{}
	if q := strings.TrimSpace(f.Search); q != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"projectName": re},
			bson.M{"projectCode": re},
		}
	}
	if f.Language != "" {
		filter["programmingLanguage"] = f.Language
	}
	if f.Privacy != "" {
		filter["privacy"] = string(f.Privacy)
	}

	total, err := s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongodb: counting posts: %w", err)
	}

	field, ok := postSortFields[f.SortBy]
	if !ok {
		field = "createdAt"
	}
	dir := 1
	if f.Descending {
		dir = -1
	}
	limit, offset := clampPage(f.Page)
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(offset).
		SetLimit(limit)
	if f.SortBy == repository.SortByProjectName {
		opts.SetCollation(&options.Collation{Locale: "en", Strength: 2})
	}

	posts, err := s.findPosts(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return posts, int(total), nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb: deleting post %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("Post")
	}
	return nil
}

// ToggleLike uses two conditional updates. The first only matches when
// userID is absent from likedBy and adds it; the second only matches when it
// is present and removes it. Each update changes likedBy and likes together,
// so the count never drifts from the set.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (*model.LikeResult, error) {
	after := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likes": 1, "likedBy": 1})

	for range toggleAttempts {
		var d postDoc
		err := s.posts.FindOneAndUpdate(ctx,
			bson.M{"_id": postID, "likedBy": bson.M{"$ne": userID}},
			bson.M{
				"$addToSet": bson.M{"likedBy": userID},
				"$inc":      bson.M{"likes": 1},
				"$set":      bson.M{"updatedAt": s.now()},
			}, after).Decode(&d)
		if err == nil {
			return likeResult(d, true), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("mongodb: adding like: %w", err)
		}

		err = s.posts.FindOneAndUpdate(ctx,
			bson.M{"_id": postID, "likedBy": userID},
			bson.M{
				"$pull": bson.M{"likedBy": userID},
				"$inc":  bson.M{"likes": -1},
				"$set":  bson.M{"updatedAt": s.now()},
			}, after).Decode(&d)
		if err == nil {
			return likeResult(d, false), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("mongodb: removing like: %w", err)
		}

		// Neither matched: the post is gone, or the like flipped under us.
		n, err := s.posts.CountDocuments(ctx, bson.M{"_id": postID})
		if err != nil {
			return nil, fmt.Errorf("mongodb: checking post %s: %w", postID, err)
		}
		if n == 0 {
			return nil, apperror.NotFound("Post")
		}
	}
	return nil, fmt.Errorf("mongodb: toggling like on %s: too much contention", postID)
}

func likeResult(d postDoc, liked bool) *model.LikeResult {
	likedBy := d.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	return &model.LikeResult{Likes: d.Likes, LikedBy: likedBy, IsLiked: liked}
}

func (s *Store) AddComment(ctx context.Context, comment *model.Comment) error {
	doc := commentDoc{
		ID:        xid.New().String(),
		Text:      comment.Text,
		Author:    comment.AuthorID,
		CreatedAt: s.now(),
	}
	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": comment.PostID},
		bson.M{"$push": bson.M{"comments": doc}, "$set": bson.M{"updatedAt": doc.CreatedAt}})
	if err != nil {
		return fmt.Errorf("mongodb: adding comment: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("Post")
	}

	users, err := s.summaries(ctx, []string{doc.Author})
	if err != nil {
		return err
	}
	comment.ID = doc.ID
	comment.CreatedAt = doc.CreatedAt
	comment.Author = commentAuthor(summaryOr(users, doc.Author))
	return nil
}

func (s *Store) GetComment(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	d, err := s.getPostDoc(ctx, postID)
	if err != nil {
		return nil, err
	}
	for _, c := range d.Comments {
		if c.ID != commentID {
			continue
		}
		users, err := s.summaries(ctx, []string{c.Author})
		if err != nil {
			return nil, err
		}
		return &model.Comment{
			ID:        c.ID,
			PostID:    postID,
			Text:      c.Text,
			AuthorID:  c.Author,
			Author:    commentAuthor(summaryOr(users, c.Author)),
			CreatedAt: c.CreatedAt.UTC(),
		}, nil
	}
	return nil, apperror.NotFound("Comment")
}

func (s *Store) DeleteComment(ctx context.Context, postID, commentID string) error {
	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": postID, "comments._id": commentID},
		bson.M{"$pull": bson.M{"comments": bson.M{"_id": commentID}}, "$set": bson.M{"updatedAt": s.now()}})
	if err != nil {
		return fmt.Errorf("mongodb: deleting comment %s: %w", commentID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("Comment")
	}
	return nil
}
