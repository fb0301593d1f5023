package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/apperror"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"moderator", RoleModerator, false},
		{"admin", RoleAdmin, false},
		{"Admin", "", true},
		{"root", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperror.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleModerator.IsAdmin())
	assert.True(t, RoleAdmin.CanModerate())
	assert.True(t, RoleModerator.CanModerate())
	assert.False(t, RoleUser.CanModerate())
	assert.False(t, Role("ghost").CanModerate())
}

func TestStatusAllowsLogin(t *testing.T) {
	assert.True(t, StatusActive.AllowsLogin())
	assert.False(t, StatusSuspended.AllowsLogin())
	assert.False(t, StatusBanned.AllowsLogin())

	_, err := ParseStatus("deleted")
	assert.Error(t, err)
}

func TestParseNotificationDefaults(t *testing.T) {
	typ, err := ParseNotificationType("")
	require.NoError(t, err)
	assert.Equal(t, NotificationCodeShare, typ)

	prio, err := ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, prio)

	_, err = ParseNotificationType("spam")
	assert.Error(t, err)
	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestAuthProviderIsSocial(t *testing.T) {
	assert.False(t, ProviderEmail.IsSocial())
	assert.True(t, ProviderGoogle.IsSocial())
	assert.True(t, ProviderFacebook.IsSocial())

	_, err := ParseAuthProvider("github")
	assert.Error(t, err)
}

func TestPostVisibleTo(t *testing.T) {
	post := Post{
		ID:          "p1",
		OwnerID:     "owner",
		Privacy:     PrivacyPrivate,
		ProjectCode: "secret()",
	}

	t.Run("owner sees code", func(t *testing.T) {
		assert.Equal(t, "secret()", post.VisibleTo("owner").ProjectCode)
	})

	t.Run("other user sees placeholder", func(t *testing.T) {
		assert.Equal(t, PrivateCodePlaceholder, post.VisibleTo("someone").ProjectCode)
	})

	t.Run("anonymous sees placeholder", func(t *testing.T) {
		assert.Equal(t, PrivateCodePlaceholder, post.VisibleTo("").ProjectCode)
	})

	t.Run("original is untouched", func(t *testing.T) {
		_ = post.VisibleTo("someone")
		assert.Equal(t, "secret()", post.ProjectCode)
	})

	t.Run("public post is never masked", func(t *testing.T) {
		public := post
		public.Privacy = PrivacyPublic
		assert.Equal(t, "secret()", public.VisibleTo("someone").ProjectCode)
	})
}

func TestUserIsLocked(t *testing.T) {
	now := time.Now()
	u := &User{}
	assert.False(t, u.IsLocked(now))

	future := now.Add(10 * time.Minute)
	u.LockUntil = &future
	assert.True(t, u.IsLocked(now))

	past := now.Add(-time.Minute)
	u.LockUntil = &past
	assert.False(t, u.IsLocked(now))
}
