// Package repository declares the storage contracts used by the service layer.
//
// Two implementations exist: repository/sqlite (embedded, the default) and
// repository/mongodb (document store). Services depend only on these
// interfaces, so the backend is chosen once in server.New.
package repository

import (
	"context"
	"time"

	"github.com/sakif/codeshare/internal/model"
)

// Page bounds a listing. Limit <= 0 means "use the default".
type Page struct {
	Limit  int
	Offset int
}

// UserFilter narrows the admin user listing.
// Search matches fullName or email, case-insensitively.
type UserFilter struct {
	Search string
	Role   model.Role
	Status model.Status
	Page   Page
}

// PostSortField is a column the admin post listing may be sorted by.
type PostSortField string

const (
	SortByCreatedAt           PostSortField = "createdAt"
	SortByUpdatedAt           PostSortField = "updatedAt"
	SortByLikes               PostSortField = "likes"
	SortByProjectName         PostSortField = "projectName"
	SortByProgrammingLanguage PostSortField = "programmingLanguage"
)

// Valid reports whether f is one of the sortable fields.
func (f PostSortField) Valid() bool {
	switch f {
	case SortByCreatedAt, SortByUpdatedAt, SortByLikes, SortByProjectName, SortByProgrammingLanguage:
		return true
	}
	return false
}

// PostFilter narrows the admin post listing.
// Search matches projectName or projectCode, case-insensitively.
type PostFilter struct {
	Search     string
	Language   string
	Privacy    model.Privacy
	SortBy     PostSortField
	Descending bool
	Page       Page
}

// UserRepository stores accounts.
type UserRepository interface {
	// CreateUser assigns ID and timestamps. A duplicate email yields apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateUser writes every mutable field of user.
	UpdateUser(ctx context.Context, user *model.User) error
	// DeleteUser removes the user together with their posts, comments, likes and notifications.
	DeleteUser(ctx context.Context, id string) error
	// ListUsersExcept returns every user but excludeID, ordered by full name.
	ListUsersExcept(ctx context.Context, excludeID string) ([]model.User, error)
	// SearchUsers returns one page of matches (newest first) and the total match count.
	SearchUsers(ctx context.Context, filter UserFilter) ([]model.UserWithStats, int, error)
}

// PostRepository stores posts and their comments and likes.
// Read methods return posts with Owner and comment Authors populated.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	// ListPosts returns every post, newest first.
	ListPosts(ctx context.Context) ([]model.Post, error)
	SearchPosts(ctx context.Context, filter PostFilter) ([]model.Post, int, error)
	// DeletePost removes the post with its comments and likes.
	DeletePost(ctx context.Context, id string) error

	// ToggleLike adds userID to the post's likers, or removes it if already
	// present, as one atomic step.
	ToggleLike(ctx context.Context, postID, userID string) (*model.LikeResult, error)

	// AddComment appends comment to its post, assigning ID and CreatedAt and
	// populating Author.
	AddComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, postID, commentID string) (*model.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID string) error
}

// NotificationRepository stores notifications.
// Read methods return records with Sender and Recipient populated.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	// ListNotifications returns the recipient's notifications, newest first.
	ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
	SetNotificationRead(ctx context.Context, id string, read bool) error
	// MarkAllRead flips every unread notification of recipientID and returns how many changed.
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, id string) error
	// PruneReadNotifications deletes read notifications created before cutoff.
	PruneReadNotifications(ctx context.Context, cutoff time.Time) (int, error)
}

// StatsRepository computes the admin dashboard aggregates.
type StatsRepository interface {
	Dashboard(ctx context.Context, now time.Time) (*model.Dashboard, error)
}

// Store bundles every repository a storage backend provides.
type Store interface {
	UserRepository
	PostRepository
	NotificationRepository
	StatsRepository
	Close() error
}
