package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/mail"
	"github.com/sakif/codeshare/internal/media"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/otp"
	"github.com/sakif/codeshare/internal/repository"
)

// Login lockout policy.
const (
	MaxLoginAttempts = 5
	LockoutDuration  = 30 * time.Minute
	MinPasswordLen   = 6
)

const msgInvalidCredentials = "Invalid credentials"

// AuthDeps are the collaborators of an AuthService.
type AuthDeps struct {
	Users     repository.UserRepository
	Posts     repository.PostRepository
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	OTP       *otp.Manager
	Mailer    mail.Mailer
	Uploader  media.Uploader
	Logger    zerolog.Logger
}

// AuthService owns the account lifecycle: sign-up, password and social login,
// email verification codes and profile updates.
//
// It does NOT touch cookies or read requests. It hands back an AuthResult and
// the handler decides how to deliver the token.
type AuthService struct {
	users     repository.UserRepository
	posts     repository.PostRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	otp       *otp.Manager
	mailer    mail.Mailer
	uploader  media.Uploader
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		users:     deps.Users,
		posts:     deps.Posts,
		tokens:    deps.Tokens,
		passwords: deps.Passwords,
		otp:       deps.OTP,
		mailer:    deps.Mailer,
		uploader:  deps.Uploader,
		logger:    deps.Logger.With().Str("component", "auth").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AuthResult bundles the user with a freshly issued session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignupInput is the body of POST /signup.
type SignupInput struct {
	FullName string
	Email    string
	Password string
}

// Signup creates an email/password account with role user and status active.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := normalizeEmail(in.Email)

	if fullName == "" || email == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("", "All fields are required")
	}
	if len([]rune(fullName)) < 2 {
		return nil, apperror.ValidationFailed("fullName", "Full name must be at least 2 characters long")
	}
	if !validEmail(email) {
		return nil, apperror.ValidationFailed("email", "Invalid email format")
	}
	if len(in.Password) < MinPasswordLen {
		return nil, apperror.ValidationFailed("password", "Password must be at least 6 characters")
	}
	if len(in.Password) > 72 {
		return nil, apperror.ValidationFailed("password", "Password must be at most 72 bytes")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.ValidationFailed("email", "Email already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       model.StatusActive,
		AuthProvider: model.ProviderEmail,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same address.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", "Email already exists")
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info().Str("userId", user.ID).Msg("user signed up")
	return s.issue(user)
}

// Login checks email and password.
//
// Every failure reads "Invalid credentials", whether the email is unknown,
// the password is wrong or the account is locked. Five consecutive failures
// lock the account for thirty minutes.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "All fields are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("", msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	now := s.now()
	if user.IsLocked(now) {
		s.logger.Warn().Str("userId", user.ID).Msg("login attempt on locked account")
		return nil, apperror.ValidationFailed("", msgInvalidCredentials)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, fmt.Errorf("service/auth: verifying password: %w", err)
		}
		if err := s.recordFailedLogin(ctx, user, now); err != nil {
			return nil, err
		}
		return nil, apperror.ValidationFailed("", msgInvalidCredentials)
	}

	if !user.Status.AllowsLogin() {
		return nil, apperror.Forbidden("Account is suspended or banned")
	}

	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: recording login: %w", err)
	}

	return s.issue(user)
}

func (s *AuthService) recordFailedLogin(ctx context.Context, user *model.User, now time.Time) error {
	user.LoginAttempts++
	if user.LoginAttempts >= MaxLoginAttempts {
		until := now.Add(LockoutDuration)
		user.LockUntil = &until
		user.LoginAttempts = 0
		s.logger.Warn().Str("userId", user.ID).Time("lockUntil", until).Msg("account locked after repeated login failures")
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("service/auth: recording failed login: %w", err)
	}
	return nil
}

// Check returns the current state of an authenticated user.
func (s *AuthService) Check(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// UpdateProfile uploads a new profile picture and stores its URL.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, profilePic string) (*model.User, error) {
	if strings.TrimSpace(profilePic) == "" {
		return nil, apperror.ValidationFailed("profilePic", "Profile pic is required")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.uploader.Upload(ctx, profilePic)
	if err != nil {
		return nil, err
	}

	user.ProfilePic = url
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: saving profile: %w", err)
	}
	return user, nil
}

// SendOTP issues a verification code for email and mails it.
func (s *AuthService) SendOTP(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperror.ValidationFailed("email", "Email is required")
	}
	if !validEmail(email) {
		return "", apperror.ValidationFailed("email", "Invalid email format")
	}

	code, err := s.otp.Issue(ctx, email)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("otp email failed")
		return "", apperror.Upstream("Failed to send OTP email")
	}
	return email, nil
}

// VerifyOTP consumes the code issued to email.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return apperror.ValidationFailed("", "Email and OTP are required")
	}
	return s.otp.Verify(ctx, email, code)
}

// SocialAuth signs in a user vouched for by Google or Facebook.
//
// An account with the same email is reused: it gets the provider identity if
// it had none, and the picture if it had none. Otherwise a new account is
// created with an unusable random password. created reports which happened.
func (s *AuthService) SocialAuth(ctx context.Context, p auth.SocialProfile) (*AuthResult, bool, error) {
	email := normalizeEmail(p.Email)
	fullName := strings.TrimSpace(p.FullName)
	if p.ProviderUID == "" || email == "" || fullName == "" || p.Provider == "" {
		return nil, false, apperror.ValidationFailed("", "Missing required social auth data")
	}
	provider, err := model.ParseAuthProvider(string(p.Provider))
	if err != nil {
		return nil, false, err
	}
	if !provider.IsSocial() {
		return nil, false, apperror.ValidationFailed("provider", "Unsupported auth provider")
	}

	now := s.now()
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.Status.AllowsLogin() {
			return nil, false, apperror.Forbidden("Account is suspended or banned")
		}
		if p.ProfilePic != "" && (user.ProfilePic == "" || user.ProfilePic == p.ProfilePic) {
			user.ProfilePic = p.ProfilePic
		}
		if user.ProviderUID == "" {
			user.ProviderUID = p.ProviderUID
			user.AuthProvider = provider
		}
		user.LastLogin = &now
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, false, fmt.Errorf("service/auth: updating social user: %w", err)
		}
		res, err := s.issue(user)
		return res, false, err

	case errors.Is(err, apperror.ErrNotFound):
		random, err := auth.RandomPassword()
		if err != nil {
			return nil, false, fmt.Errorf("service/auth: %w", err)
		}
		hash, err := s.passwords.Hash(random)
		if err != nil {
			return nil, false, fmt.Errorf("service/auth: hashing password: %w", err)
		}
		user = &model.User{
			FullName:     fullName,
			Email:        email,
			PasswordHash: hash,
			ProfilePic:   p.ProfilePic,
			Role:         model.RoleUser,
			Status:       model.StatusActive,
			AuthProvider: provider,
			ProviderUID:  p.ProviderUID,
			LastLogin:    &now,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, false, fmt.Errorf("service/auth: creating social user: %w", err)
		}
		s.logger.Info().Str("userId", user.ID).Str("provider", string(provider)).Msg("user signed up via social login")
		res, err := s.issue(user)
		return res, true, err

	default:
		return nil, false, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
}

// DeleteOwnPost deletes postID if userID owns it.
func (s *AuthService) DeleteOwnPost(ctx context.Context, userID, postID string) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if !post.IsOwnedBy(userID) {
		return apperror.Forbidden("You can only delete your own posts")
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("service/auth: deleting post %s: %w", postID, err)
	}
	s.logger.Info().Str("userId", userID).Str("postId", postID).Msg("post deleted by owner")
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
