package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
)

// StaffAccount describes a privileged account that must exist.
type StaffAccount struct {
	Email    string
	Password string
	FullName string
	Role     model.Role
}

// SeedOutcome says what EnsureStaff did.
type SeedOutcome string

const (
	SeedCreated   SeedOutcome = "created"
	SeedPromoted  SeedOutcome = "promoted"
	SeedUnchanged SeedOutcome = "unchanged"
)

// Seeder creates or promotes staff accounts. Running it twice is harmless.
type Seeder struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    zerolog.Logger
}

func NewSeeder(users repository.UserRepository, passwords *auth.PasswordService, logger zerolog.Logger) *Seeder {
	return &Seeder{users: users, passwords: passwords, logger: logger.With().Str("component", "seed").Logger()}
}

// EnsureStaff makes sure acct exists with its role and an active status.
// An existing account keeps its password; Password is only used to create one.
func (s *Seeder) EnsureStaff(ctx context.Context, acct StaffAccount) (SeedOutcome, error) {
	email := normalizeEmail(acct.Email)
	if !validEmail(email) {
		return "", apperror.ValidationFailed("email", "Invalid email format")
	}
	if !acct.Role.CanModerate() {
		return "", apperror.ValidationFailed("role", "Staff accounts must be admin or moderator")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Role == acct.Role && user.Status == model.StatusActive {
			return SeedUnchanged, nil
		}
		user.Role = acct.Role
		user.Status = model.StatusActive
		user.StatusReason = ""
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return "", fmt.Errorf("seed: promoting %s: %w", email, err)
		}
		s.logger.Info().Str("email", email).Str("role", string(acct.Role)).Msg("staff account promoted")
		return SeedPromoted, nil

	case errors.Is(err, apperror.ErrNotFound):
		if len(acct.Password) < MinPasswordLen {
			return "", apperror.ValidationFailed("password", "Password must be at least 6 characters")
		}
		hash, err := s.passwords.Hash(acct.Password)
		if err != nil {
			return "", fmt.Errorf("seed: hashing password: %w", err)
		}
		name := strings.TrimSpace(acct.FullName)
		if name == "" {
			name = defaultStaffName(acct.Role)
		}
		user = &model.User{
			FullName:     name,
			Email:        email,
			PasswordHash: hash,
			Role:         acct.Role,
			Status:       model.StatusActive,
			AuthProvider: model.ProviderEmail,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return "", fmt.Errorf("seed: creating %s: %w", email, err)
		}
		s.logger.Info().Str("email", email).Str("role", string(acct.Role)).Msg("staff account created")
		return SeedCreated, nil

	default:
		return "", fmt.Errorf("seed: looking up %s: %w", email, err)
	}
}

func defaultStaffName(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return "Admin"
	case model.RoleModerator:
		return "Moderator"
	case model.RoleUser:
		return "User"
	}
	return "Staff"
}
