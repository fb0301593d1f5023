package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
	"github.com/sakif/codeshare/internal/sysinfo"
)

// SystemProbe reports host health. *sysinfo.Collector implements it.
type SystemProbe interface {
	Collect(ctx context.Context) (*sysinfo.Snapshot, error)
}

// AdminService backs the moderation console.
type AdminService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	stats    repository.StatsRepository
	probe    SystemProbe
	settings Settings
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAdminService(
	users repository.UserRepository,
	posts repository.PostRepository,
	stats repository.StatsRepository,
	probe SystemProbe,
	settings Settings,
	logger zerolog.Logger,
) *AdminService {
	return &AdminService{
		users:    users,
		posts:    posts,
		stats:    stats,
		probe:    probe,
		settings: settings,
		logger:   logger.With().Str("component", "admin").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AdminService) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	d, err := s.stats.Dashboard(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("building dashboard: %w", err)
	}
	return d, nil
}

// UserQuery is the query string of GET /admin/users.
type UserQuery struct {
	Page   int
	Limit  int
	Search string
	Role   string
	Status string
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users       []model.UserWithStats `json:"users"`
	CurrentPage int                   `json:"currentPage"`
	TotalPages  int                   `json:"totalPages"`
	TotalUsers  int                   `json:"totalUsers"`
}

func (s *AdminService) Users(ctx context.Context, q UserQuery) (*UserPage, error) {
	page, limit, offset := pageBounds(q.Page, q.Limit)
	filter := repository.UserFilter{
		Search: strings.TrimSpace(q.Search),
		Page:   repository.Page{Limit: limit, Offset: offset},
	}
	if q.Role != "" {
		role, err := model.ParseRole(q.Role)
		if err != nil {
			return nil, err
		}
		filter.Role = role
	}
	if q.Status != "" {
		status, err := model.ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	users, total, err := s.users.SearchUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	if users == nil {
		users = []model.UserWithStats{}
	}
	return &UserPage{
		Users:       users,
		CurrentPage: page,
		TotalPages:  totalPages(total, limit),
		TotalUsers:  total,
	}, nil
}

// UpdateUserInput changes a user's role and standing. Empty fields are kept.
type UpdateUserInput struct {
	Role   string
	Status string
	Reason string
}

// UpdateUser applies in to targetID on behalf of actorID. Admins cannot
// change their own role.
func (s *AdminService) UpdateUser(ctx context.Context, actorID, targetID string, in UpdateUserInput) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if in.Role != "" {
		role, err := model.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		if targetID == actorID && role != user.Role {
			return nil, apperror.ValidationFailed("role", "Cannot change your own role")
		}
		user.Role = role
	}
	if in.Status != "" {
		status, err := model.ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		user.Status = status
	}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		user.StatusReason = reason
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user %s: %w", targetID, err)
	}

	s.logger.Info().
		Str("actorId", actorID).
		Str("userId", targetID).
		Str("role", string(user.Role)).
		Str("status", string(user.Status)).
		Msg("user updated by admin")
	return user, nil
}

// DeleteUser removes targetID with everything they own.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if targetID == actorID {
		return apperror.ValidationFailed("userId", "Cannot delete your own account")
	}
	if err := s.users.DeleteUser(ctx, targetID); err != nil {
		return err
	}
	s.logger.Info().Str("actorId", actorID).Str("userId", targetID).Msg("user deleted by admin")
	return nil
}

// PostQuery is the query string of GET /admin/posts.
type PostQuery struct {
	Page      int
	Limit     int
	Search    string
	Language  string
	Privacy   string
	SortBy    string
	SortOrder string
}

// PostPage is one page of the admin post listing.
type PostPage struct {
	Posts       []model.Post `json:"posts"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
	TotalPosts  int          `json:"totalPosts"`
}

// Posts lists every post, private code included, for moderation.
func (s *AdminService) Posts(ctx context.Context, q PostQuery) (*PostPage, error) {
	page, limit, offset := pageBounds(q.Page, q.Limit)
	filter := repository.PostFilter{
		Search:     strings.TrimSpace(q.Search),
		Language:   strings.TrimSpace(q.Language),
		SortBy:     repository.SortByCreatedAt,
		Descending: q.SortOrder != "asc",
		Page:       repository.Page{Limit: limit, Offset: offset},
	}
	if q.Privacy != "" {
		privacy, err := model.ParsePrivacy(q.Privacy)
		if err != nil {
			return nil, err
		}
		filter.Privacy = privacy
	}
	if q.SortBy != "" {
		field := repository.PostSortField(q.SortBy)
		if !field.Valid() {
			return nil, apperror.ValidationFailed("sortBy", "Invalid sort field")
		}
		filter.SortBy = field
	}

	posts, total, err := s.posts.SearchPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching posts: %w", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return &PostPage{
		Posts:       posts,
		CurrentPage: page,
		TotalPages:  totalPages(total, limit),
		TotalPosts:  total,
	}, nil
}

// DeletePost removes any post. reason is only recorded in the log.
func (s *AdminService) DeletePost(ctx context.Context, actorID, postID, reason string) error {
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return err
	}
	s.logger.Info().
		Str("actorId", actorID).
		Str("postId", postID).
		Str("reason", reason).
		Msg("post removed by moderator")
	return nil
}

// Settings is the read-only site configuration shown on the admin page.
type Settings struct {
	SiteName            string        `json:"siteName"`
	Version             string        `json:"version"`
	Maintenance         bool          `json:"maintenance"`
	RegistrationEnabled bool          `json:"registrationEnabled"`
	MaxFileSize         string        `json:"maxFileSize"`
	AllowedFileTypes    []string      `json:"allowedFileTypes"`
	RateLimit           RateSettings  `json:"rateLimit"`
	EmailSettings       EmailSettings `json:"emailSettings"`
	Security            Security      `json:"security"`
	Features            Features      `json:"features"`
}

type RateSettings struct {
	WindowMs int64 `json:"windowMs"`
	Max      int   `json:"max"`
}

type EmailSettings struct {
	Provider string `json:"provider"`
	Enabled  bool   `json:"enabled"`
}

type Security struct {
	CaptchaEnabled   bool `json:"captchaEnabled"`
	MaxLoginAttempts int  `json:"maxLoginAttempts"`
	LockoutDuration  int  `json:"lockoutDuration"` // minutes
}

type Features struct {
	SocialLogin    bool `json:"socialLogin"`
	ImageUploads   bool `json:"imageUploads"`
	CodeExecution  bool `json:"codeExecution"`
	EventStreaming bool `json:"eventStreaming"`
}

// DefaultSettings returns the static settings with the runtime feature
// switches filled in.
func DefaultSettings(captcha, email bool, features Features) Settings {
	return Settings{
		SiteName:            "CodeShare",
		Version:             "1.0.0",
		RegistrationEnabled: true,
		MaxFileSize:         "10MB",
		AllowedFileTypes:    []string{"js", "py", "java", "cpp", "html", "css"},
		RateLimit:           RateSettings{WindowMs: (15 * time.Minute).Milliseconds(), Max: 100},
		EmailSettings:       EmailSettings{Provider: "smtp", Enabled: email},
		Security: Security{
			CaptchaEnabled:   captcha,
			MaxLoginAttempts: MaxLoginAttempts,
			LockoutDuration:  int(LockoutDuration / time.Minute),
		},
		Features: features,
	}
}

func (s *AdminService) Settings() Settings {
	return s.settings
}

// System takes a host and process health snapshot.
func (s *AdminService) System(ctx context.Context) (*sysinfo.Snapshot, error) {
	snap, err := s.probe.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting system info: %w", err)
	}
	return snap, nil
}
