package model

import "time"

// User is a CodeShare account.
//
// JSON TAGS:
// The field names on the wire follow the web client (`_id`, `fullName`,
// `profilePic`). PasswordHash is tagged "-" so it can never leak into a
// response, no matter which handler serialises the struct.
type User struct {
	ID            string       `json:"_id" db:"id"`
	FullName      string       `json:"fullName" db:"full_name"`
	Email         string       `json:"email" db:"email"`
	PasswordHash  string       `json:"-" db:"password_hash"`
	ProfilePic    string       `json:"profilePic" db:"profile_pic"`
	Role          Role         `json:"role" db:"role"`
	Status        Status       `json:"status" db:"status"`
	StatusReason  string       `json:"statusReason" db:"status_reason"`
	AuthProvider  AuthProvider `json:"authProvider" db:"auth_provider"`
	ProviderUID   string       `json:"firebaseUid,omitempty" db:"provider_uid"`
	LastLogin     *time.Time   `json:"lastLogin" db:"last_login"`
	LoginAttempts int          `json:"loginAttempts" db:"login_attempts"`
	LockUntil     *time.Time   `json:"lockUntil,omitempty" db:"lock_until"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
}

// IsLocked reports whether failed logins have locked the account at time now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// Summary returns the public projection used when a user is embedded in
// another record (post owner, comment author, notification sender).
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}

// UserSummary is the populated reference to a user.
type UserSummary struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic"`
}

// UserWithStats is a user row in the admin listing.
type UserWithStats struct {
	User
	PostCount int `json:"postCount"`
}
