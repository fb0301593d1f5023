package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
	"github.com/sakif/codeshare/internal/repository/sqlite"
	"github.com/sakif/codeshare/internal/sysinfo"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. It hands out
// copies so a test can only change stored state through the interface.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]model.User
	nextID int

	// set to simulate a database failure
	getErr    error
	updateErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("Email already exists")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("User")
	}
	return &u, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("User")
}

func (f *fakeUserRepo) UpdateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("User")
	}
	user.UpdatedAt = time.Now().UTC()
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("User")
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) ListUsersExcept(_ context.Context, excludeID string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for id, u := range f.users {
		if id != excludeID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeUserRepo) SearchUsers(context.Context, repository.UserFilter) ([]model.UserWithStats, int, error) {
	return nil, 0, errors.New("fakeUserRepo: SearchUsers not supported")
}

// get reads the stored copy of a user, bypassing getErr.
func (f *fakeUserRepo) get(t *testing.T, id string) model.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	require.True(t, ok, "user %s not stored", id)
	return u
}

// recordingMailer remembers the last code it was asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	to   string
	code string
	err  error
}

func (m *recordingMailer) SendOTP(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.to, m.code = to, code
	return nil
}

// fakeDispatcher records pushes and reports recipients in online as live.
type fakeDispatcher struct {
	mu     sync.Mutex
	online map[string]bool
	pushed []string
}

func (d *fakeDispatcher) Dispatch(recipientID string, _ *model.Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.online[recipientID] {
		return false
	}
	d.pushed = append(d.pushed, recipientID)
	return true
}

// fakePublisher records published notifications or fails with err.
type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) PublishNotification(_ context.Context, n *model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, n.ID)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeProbe struct {
	snap *sysinfo.Snapshot
	err  error
}

func (p fakeProbe) Collect(context.Context) (*sysinfo.Snapshot, error) {
	return p.snap, p.err
}

// newTestStore opens a fresh in-memory SQLite store for one test.
func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, users repository.UserRepository, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		FullName:     name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Status:       model.StatusActive,
		AuthProvider: model.ProviderEmail,
	}
	require.NoError(t, users.CreateUser(context.Background(), u))
	return u
}

func seedPost(t *testing.T, posts repository.PostRepository, owner *model.User, name string, privacy model.Privacy) *model.Post {
	t.Helper()
	p := &model.Post{
		OwnerID:             owner.ID,
		ProjectName:         name,
		ProgrammingLanguage: "python",
		ProjectCode:         "print('" + name + "')",
		Privacy:             privacy,
	}
	require.NoError(t, posts.CreatePost(context.Background(), p))
	return p
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }
