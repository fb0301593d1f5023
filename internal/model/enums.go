package model

import (
	"github.com/sakif/codeshare/internal/apperror"
)

// CLOSED ENUMERATIONS:
// Each enumerated field is its own string type with a fixed set of constants.
// Values coming from the outside (JSON bodies, query strings, database rows)
// go through ParseX, which rejects anything not in the set. Inside the program
// a Role is therefore always one of the three roles, and switches over it
// list every case.

// Role is a user's privilege level.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole converts s to a Role or returns a validation error.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", apperror.ValidationFailed("role", "Invalid role")
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r grants full administrative access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// CanModerate reports whether r may manage other users' content.
func (r Role) CanModerate() bool {
	switch r {
	case RoleAdmin, RoleModerator:
		return true
	case RoleUser:
		return false
	}
	return false
}

// Status is the account standing of a user.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", apperror.ValidationFailed("status", "Invalid status")
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBanned:
		return true
	}
	return false
}

// AllowsLogin reports whether an account in this status may use the API.
func (s Status) AllowsLogin() bool {
	switch s {
	case StatusActive:
		return true
	case StatusSuspended, StatusBanned:
		return false
	}
	return false
}

// AuthProvider records how an account was created.
type AuthProvider string

const (
	ProviderEmail    AuthProvider = "email"
	ProviderGoogle   AuthProvider = "google"
	ProviderFacebook AuthProvider = "facebook"
)

func ParseAuthProvider(s string) (AuthProvider, error) {
	p := AuthProvider(s)
	if !p.Valid() {
		return "", apperror.ValidationFailed("provider", "Unsupported auth provider")
	}
	return p, nil
}

func (p AuthProvider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderFacebook:
		return true
	}
	return false
}

// IsSocial reports whether the account authenticates through a third party.
func (p AuthProvider) IsSocial() bool {
	switch p {
	case ProviderGoogle, ProviderFacebook:
		return true
	case ProviderEmail:
		return false
	}
	return false
}

// Privacy controls who can read a post's code.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

func ParsePrivacy(s string) (Privacy, error) {
	p := Privacy(s)
	if !p.Valid() {
		return "", apperror.ValidationFailed("privacy", "Privacy must be either public or private")
	}
	return p, nil
}

func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyPrivate:
		return true
	}
	return false
}

// NotificationType categorises a notification for display.
type NotificationType string

const (
	NotificationCodeShare    NotificationType = "code_share"
	NotificationAnnouncement NotificationType = "announcement"
	NotificationUpdate       NotificationType = "update"
	NotificationReminder     NotificationType = "reminder"
	NotificationAppreciation NotificationType = "appreciation"
	NotificationAchievement  NotificationType = "achievement"
)

// ParseNotificationType maps "" to the default code_share type.
func ParseNotificationType(s string) (NotificationType, error) {
	if s == "" {
		return NotificationCodeShare, nil
	}
	t := NotificationType(s)
	if !t.Valid() {
		return "", apperror.ValidationFailed("type", "Invalid notification type")
	}
	return t, nil
}

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationCodeShare, NotificationAnnouncement, NotificationUpdate,
		NotificationReminder, NotificationAppreciation, NotificationAchievement:
		return true
	}
	return false
}

// Priority orders notifications by urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps "" to the default medium priority.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", apperror.ValidationFailed("priority", "Invalid priority")
	}
	return p, nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
