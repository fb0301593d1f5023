package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/executor"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
)

// Post validation limits.
const (
	MaxProjectNameLength = 100
	MaxProjectCodeLength = 10000
	MaxCommentLength     = 500
)

// PostService handles the feed: posts, likes, comments and runs.
type PostService struct {
	users  repository.UserRepository
	posts  repository.PostRepository
	exec   executor.Executor
	logger zerolog.Logger
}

// NewPostService creates a PostService. exec may be nil when no sandbox is
// configured; Run then reports the feature as unavailable.
func NewPostService(users repository.UserRepository, posts repository.PostRepository, exec executor.Executor, logger zerolog.Logger) *PostService {
	return &PostService{
		users:  users,
		posts:  posts,
		exec:   exec,
		logger: logger.With().Str("component", "posts").Logger(),
	}
}

// SidebarUsers lists every user except viewerID.
func (s *PostService) SidebarUsers(ctx context.Context, viewerID string) ([]model.User, error) {
	users, err := s.users.ListUsersExcept(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing sidebar users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// List returns the whole feed, newest first, as viewerID may see it.
func (s *PostService) List(ctx context.Context, viewerID string) ([]model.Post, error) {
	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	out := make([]model.Post, len(posts))
	for i, p := range posts {
		out[i] = p.VisibleTo(viewerID)
	}
	return out, nil
}

// CreatePostInput is the body of POST /posts/send.
type CreatePostInput struct {
	ProjectName         string
	ProgrammingLanguage string
	ProjectCode         string
	Privacy             string
}

func (s *PostService) Create(ctx context.Context, ownerID string, in CreatePostInput) (*model.Post, error) {
	name := strings.TrimSpace(in.ProjectName)
	lang := strings.TrimSpace(in.ProgrammingLanguage)

	if name == "" || lang == "" || strings.TrimSpace(in.ProjectCode) == "" || in.Privacy == "" {
		return nil, apperror.ValidationFailed("", "All fields are required")
	}
	if err := maxChars("projectName", "Project name", name, MaxProjectNameLength); err != nil {
		return nil, err
	}
	if err := maxChars("projectCode", "Project code", in.ProjectCode, MaxProjectCodeLength); err != nil {
		return nil, err
	}
	privacy, err := model.ParsePrivacy(in.Privacy)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		OwnerID:             ownerID,
		ProjectName:         name,
		ProgrammingLanguage: lang,
		ProjectCode:         in.ProjectCode,
		Privacy:             privacy,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info().Str("postId", post.ID).Str("ownerId", ownerID).Msg("post created")
	return post, nil
}

// ToggleLike likes postID for userID, or takes the like back.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (*model.LikeResult, error) {
	return s.posts.ToggleLike(ctx, postID, userID)
}

// AddComment stores a trimmed comment by authorID.
func (s *PostService) AddComment(ctx context.Context, postID, authorID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "Comment text is required")
	}
	if err := maxChars("text", "Comment", text, MaxCommentLength); err != nil {
		return nil, err
	}

	comment := &model.Comment{PostID: postID, AuthorID: authorID, Text: text}
	if err := s.posts.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment. Only its author may do so.
func (s *PostService) DeleteComment(ctx context.Context, postID, commentID, userID string) error {
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return err
	}
	comment, err := s.posts.GetComment(ctx, postID, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != userID {
		return apperror.Forbidden("Not authorized to delete this comment")
	}
	return s.posts.DeleteComment(ctx, postID, commentID)
}

// Run executes a post's code in the sandbox. Private posts only run for
// their owner.
func (s *PostService) Run(ctx context.Context, postID, userID string) (*executor.ExecutionResult, error) {
	if s.exec == nil {
		return nil, apperror.Unavailable("Code execution is not enabled on this server")
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Privacy == model.PrivacyPrivate && !post.IsOwnedBy(userID) {
		return nil, apperror.Forbidden("Only the owner can run a private post")
	}
	lang, err := executor.ParseLanguage(post.ProgrammingLanguage)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("postId", postID).Str("language", string(lang)).Msg("running post")
	result, err := s.exec.Execute(ctx, executor.ExecutionRequest{Language: lang, Code: post.ProjectCode})
	if err != nil {
		return nil, fmt.Errorf("running post %s: %w", postID, err)
	}
	return result, nil
}
