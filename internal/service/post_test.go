package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/executor"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository/sqlite"
)

// fakeExecutor echoes the request back as stdout.
type fakeExecutor struct {
	got executor.ExecutionRequest
}

func (e *fakeExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	e.got = req
	return &executor.ExecutionResult{Stdout: req.Code, ExitCode: 0}, nil
}

func newPostFixture(t *testing.T, exec executor.Executor) (*PostService, *sqlite.DB) {
	t.Helper()
	store := newTestStore(t)
	return NewPostService(store, store, exec, nopLogger()), store
}

func TestPostCreate(t *testing.T) {
	svc, store := newPostFixture(t, nil)
	owner := seedUser(t, store, "Owner", model.RoleUser)

	post, err := svc.Create(context.Background(), owner.ID, CreatePostInput{
		ProjectName:         "  Fizz Buzz ",
		ProgrammingLanguage: "python",
		ProjectCode:         "print('fizz')",
		Privacy:             "public",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "Fizz Buzz", post.ProjectName)
	require.NotNil(t, post.Owner)
	assert.Equal(t, owner.ID, post.Owner.ID)
	assert.Equal(t, 0, post.Likes)
	assert.Empty(t, post.Comments)
}

func TestPostCreate_Validation(t *testing.T) {
	valid := CreatePostInput{ProjectName: "n", ProgrammingLanguage: "go", ProjectCode: "x", Privacy: "public"}

	tests := []struct {
		name   string
		mutate func(*CreatePostInput)
		msg    string
	}{
		{"missing name", func(in *CreatePostInput) { in.ProjectName = " " }, "All fields are required"},
		{"missing language", func(in *CreatePostInput) { in.ProgrammingLanguage = "" }, "All fields are required"},
		{"missing code", func(in *CreatePostInput) { in.ProjectCode = "" }, "All fields are required"},
		{"missing privacy", func(in *CreatePostInput) { in.Privacy = "" }, "All fields are required"},
		{"bad privacy", func(in *CreatePostInput) { in.Privacy = "friends" }, "Privacy must be either public or private"},
		{"long name", func(in *CreatePostInput) { in.ProjectName = strings.Repeat("n", 101) }, "Project name must be less than 100 characters"},
		{"long code", func(in *CreatePostInput) { in.ProjectCode = strings.Repeat("x", 10001) }, "Project code must be less than 10,000 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newPostFixture(t, nil)
			owner := seedUser(t, store, "Owner", model.RoleUser)
			in := valid
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), owner.ID, in)
			assertAppError(t, err, apperror.ErrValidation, tt.msg)
		})
	}
}

func TestPostList_MasksPrivateCode(t *testing.T) {
	svc, store := newPostFixture(t, nil)
	owner := seedUser(t, store, "Owner", model.RoleUser)
	viewer := seedUser(t, store, "Viewer", model.RoleUser)
	seedPost(t, store, owner, "open", model.PrivacyPublic)
	seedPost(t, store, owner, "secret", model.PrivacyPrivate)

	codeByName := func(posts []model.Post) map[string]string {
		out := map[string]string{}
		for _, p := range posts {
			out[p.ProjectName] = p.ProjectCode
		}
		return out
	}

	asViewer, err := svc.List(context.Background(), viewer.ID)
	require.NoError(t, err)
	require.Len(t, asViewer, 2)
	assert.Equal(t, model.PrivateCodePlaceholder, codeByName(asViewer)["secret"])
	assert.Equal(t, "print('open')", codeByName(asViewer)["open"])

	asOwner, err := svc.List(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "print('secret')", codeByName(asOwner)["secret"])
}

func TestSidebarUsers(t *testing.T) {
	svc, store := newPostFixture(t, nil)
	me := seedUser(t, store, "Me", model.RoleUser)
	seedUser(t, store, "Bea", model.RoleUser)
	seedUser(t, store, "Al", model.RoleUser)

	users, err := svc.SidebarUsers(context.Background(), me.ID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Al", users[0].FullName)
	assert.Equal(t, "Bea", users[1].FullName)
}

func TestToggleLike_ConcurrentUsersConverge(t *testing.T) {
	svc, store := newPostFixture(t, nil)
	owner := seedUser(t, store, "Owner", model.RoleUser)
	a := seedUser(t, store, "A", model.RoleUser)
	b := seedUser(t, store, "B", model.RoleUser)
	post := seedPost(t, store, owner, "liked", model.PrivacyPublic)

	var wg sync.WaitGroup
	for _, u := range []*model.User{a, b} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.ToggleLike(context.Background(), post.ID, id)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()

	got, err := store.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Likes)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, got.LikedBy)

	// Toggling again takes the like back; the count never drops below zero.
	res, err := svc.ToggleLike(context.Background(), post.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, res.IsLiked)
	assert.Equal(t, 1, res.Likes)
	assert.Equal(t, []string{b.ID}, res.LikedBy)
}

func TestComments(t *testing.T) {
	svc, store := newPostFixture(t, nil)
	ctx := context.Background()
	owner := seedUser(t, store, "Owner", model.RoleUser)
	author := seedUser(t, store, "Author", model.RoleUser)
	post := seedPost(t, store, owner, "discussed", model.PrivacyPublic)

	_, err := svc.AddComment(ctx, post.ID, author.ID, "   ")
	assertAppError(t, err, apperror.ErrValidation, "Comment text is required")

	_, err = svc.AddComment(ctx, post.ID, author.ID, strings.Repeat("c", 501))
	assertAppError(t, err, apperror.ErrValidation, "Comment must be less than 500 characters")

	_, err = svc.AddComment(ctx, "missing", author.ID, "hi")
	assertAppError(t, err, apperror.ErrNotFound, "Post not found")

	c, err := svc.AddComment(ctx, post.ID, author.ID, "  nice one  ")
	require.NoError(t, err)
	assert.Equal(t, "nice one", c.Text)
	require.NotNil(t, c.Author)
	assert.Equal(t, "Author", c.Author.FullName)

	err = svc.DeleteComment(ctx, post.ID, c.ID, owner.ID)
	assertAppError(t, err, apperror.ErrForbidden, "Not authorized to delete this comment")

	err = svc.DeleteComment(ctx, "missing", c.ID, author.ID)
	assertAppError(t, err, apperror.ErrNotFound, "Post not found")

	err = svc.DeleteComment(ctx, post.ID, "missing", author.ID)
	assertAppError(t, err, apperror.ErrNotFound, "Comment not found")

	require.NoError(t, svc.DeleteComment(ctx, post.ID, c.ID, author.ID))
	got, err := store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Comments)
}

func TestRun(t *testing.T) {
	exec := &fakeExecutor{}
	svc, store := newPostFixture(t, exec)
	ctx := context.Background()
	owner := seedUser(t, store, "Owner", model.RoleUser)
	other := seedUser(t, store, "Other", model.RoleUser)
	public := seedPost(t, store, owner, "pub", model.PrivacyPublic)
	private := seedPost(t, store, owner, "priv", model.PrivacyPrivate)

	res, err := svc.Run(ctx, public.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "print('pub')", res.Stdout)
	assert.Equal(t, executor.Python, exec.got.Language)

	_, err = svc.Run(ctx, private.ID, other.ID)
	assertAppError(t, err, apperror.ErrForbidden, "")

	_, err = svc.Run(ctx, private.ID, owner.ID)
	require.NoError(t, err)

	cobol := &model.Post{OwnerID: owner.ID, ProjectName: "old", ProgrammingLanguage: "cobol", ProjectCode: "x", Privacy: model.PrivacyPublic}
	require.NoError(t, store.CreatePost(ctx, cobol))
	_, err = svc.Run(ctx, cobol.ID, owner.ID)
	assertAppError(t, err, apperror.ErrValidation, "")
}

func TestRun_NoSandbox(t *testing.T) {
	svc, store := newPostFixture(t, nil)
	owner := seedUser(t, store, "Owner", model.RoleUser)
	post := seedPost(t, store, owner, "pub", model.PrivacyPublic)

	_, err := svc.Run(context.Background(), post.ID, owner.ID)
	assertAppError(t, err, apperror.ErrUnavailable, "")
}
