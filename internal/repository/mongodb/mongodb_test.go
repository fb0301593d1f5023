package mongodb

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
)

// These tests need a running MongoDB. Set MONGO_TEST_URI, e.g.
//
//	MONGO_TEST_URI=mongodb://localhost:27017 go test ./internal/repository/mongodb/
//
// Each test gets its own throwaway database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	dbName := "codeshare_test_" + xid.New().String()
	s, err := New(ctx, uri, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.client.Database(dbName).Drop(context.Background())
		s.Close()
	})
	return s
}

func mkUser(t *testing.T, s *Store, name string) *model.User {
	t.Helper()
	u := &model.User{
		FullName:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Role:         model.RoleUser,
		Status:       model.StatusActive,
		AuthProvider: model.ProviderEmail,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func mkPost(t *testing.T, s *Store, owner *model.User, name string) *model.Post {
	t.Helper()
	p := &model.Post{
		OwnerID:             owner.ID,
		Privacy:             model.PrivacyPublic,
		ProgrammingLanguage: "go",
		ProjectCode:         "package main",
		ProjectName:         name,
	}
	require.NoError(t, s.CreatePost(context.Background(), p))
	return p
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mkUser(t, s, "alice")
	mkUser(t, s, "bob")

	dup := &model.User{FullName: "x", Email: "ALICE@example.com", Role: model.RoleUser, Status: model.StatusActive}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), apperror.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	got.LastLogin = &now
	got.Role = model.RoleModerator
	require.NoError(t, s.UpdateUser(ctx, got))
	got, err = s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, got.Role)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(now))

	others, err := s.ListUsersExcept(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "bob", others[0].FullName)

	mkPost(t, s, alice, "p")
	users, total, err := s.SearchUsers(ctx, repository.UserFilter{Search: "ali"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, 1, users[0].PostCount)
}

func TestToggleLike_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := mkUser(t, s, "owner")
	post := mkPost(t, s, owner, "popular")

	const fans = 8
	var wg sync.WaitGroup
	for i := range fans {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for range 3 {
				_, err := s.ToggleLike(ctx, post.ID, id)
				assert.NoError(t, err)
			}
		}(xid.New().String() + string(rune('a'+i)))
	}
	wg.Wait()

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, fans, got.Likes)
	assert.Len(t, got.LikedBy, fans)

	_, err = s.ToggleLike(ctx, "missing", owner.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCommentsAndCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := mkUser(t, s, "owner")
	reader := mkUser(t, s, "reader")
	post := mkPost(t, s, owner, "discussed")

	c := &model.Comment{PostID: post.ID, AuthorID: reader.ID, Text: "nice"}
	require.NoError(t, s.AddComment(ctx, c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "reader", c.Author.FullName)

	_, err := s.ToggleLike(ctx, post.ID, reader.ID)
	require.NoError(t, err)

	n := &model.Notification{Title: "t", Message: "m", Type: model.NotificationUpdate,
		Priority: model.PriorityLow, SenderID: owner.ID, RecipientID: reader.ID}
	require.NoError(t, s.CreateNotification(ctx, n))

	require.NoError(t, s.DeleteUser(ctx, reader.ID))

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Comments)
	assert.Equal(t, 0, got.Likes)
	assert.Empty(t, got.LikedBy)

	_, err = s.GetNotification(ctx, n.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	admin := mkUser(t, s, "admin")
	user := mkUser(t, s, "user")

	for _, title := range []string{"a", "b"} {
		n := &model.Notification{Title: title, Message: "m", Type: model.NotificationCodeShare,
			Priority: model.PriorityMedium, SenderID: admin.ID, RecipientID: user.ID}
		require.NoError(t, s.CreateNotification(ctx, n))
		assert.Equal(t, "admin", n.Sender.FullName)
	}

	list, err := s.ListNotifications(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	modified, err := s.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, modified)

	pruned, err := s.PruneReadNotifications(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)
}

func TestDashboard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mkUser(t, s, "writer")
	mkPost(t, s, u, "one")
	mkPost(t, s, u, "two")

	d, err := s.Dashboard(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Stats.TotalUsers)
	assert.Equal(t, 2, d.Stats.TotalPosts)
	assert.Equal(t, 2, d.Stats.NewPostsThisWeek)
	require.Len(t, d.PostsByLanguage, 1)
	assert.Equal(t, "go", d.PostsByLanguage[0].Language)
	require.Len(t, d.UserRegistrationTrend, 1)
	assert.Equal(t, 1, d.UserRegistrationTrend[0].Count)
	require.Len(t, d.MostActiveUsers, 1)
	assert.Equal(t, 2, d.MostActiveUsers[0].PostCount)
}
