package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/media"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/otp"
	"github.com/sakif/codeshare/internal/repository"
)

type authFixture struct {
	svc    *AuthService
	users  *fakeUserRepo
	tokens *auth.TokenService
	mailer *recordingMailer
	clock  *time.Time
}

// newAuthFixture returns an AuthService wired with fakes. posts may be nil
// for tests that never touch posts.
func newAuthFixture(t *testing.T, posts repository.PostRepository) *authFixture {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	users := newFakeUserRepo()
	mailer := &recordingMailer{}
	svc := NewAuthService(AuthDeps{
		Users:  users,
		Posts:  posts,
		Tokens: ts,
		// Cost 4 is the bcrypt minimum, which keeps tests fast.
		Passwords: auth.NewPasswordServiceForTest(4),
		OTP:       otp.NewManager(otp.NewMemoryStore()),
		Mailer:    mailer,
		Uploader:  media.Passthrough{},
		Logger:    nopLogger(),
	})

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return &authFixture{svc: svc, users: users, tokens: ts, mailer: mailer, clock: &clock}
}

func (f *authFixture) signup(t *testing.T, name, email, password string) *model.User {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), SignupInput{FullName: name, Email: email, Password: password})
	require.NoError(t, err)
	return res.User
}

func assertAppError(t *testing.T, err error, sentinel error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel), "want %v, got %v", sentinel, err)
	if msg != "" {
		assert.Equal(t, msg, err.Error())
	}
}

// =========================================================================
// Signup
// =========================================================================

func TestSignup_Success(t *testing.T) {
	f := newAuthFixture(t, nil)

	res, err := f.svc.Signup(context.Background(), SignupInput{
		FullName: "  Ada Lovelace ",
		Email:    "Ada@Example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)

	u := res.User
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Ada Lovelace", u.FullName)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, model.StatusActive, u.Status)
	assert.Equal(t, model.ProviderEmail, u.AuthProvider)

	assert.NotEqual(t, "hunter22", u.PasswordHash)
	assert.NoError(t, auth.NewPasswordServiceForTest(4).Verify(u.PasswordHash, "hunter22"))

	subject, err := f.tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, subject)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   SignupInput
		msg  string
	}{
		{"missing name", SignupInput{Email: "a@b.co", Password: "secret1"}, "All fields are required"},
		{"missing email", SignupInput{FullName: "Al", Password: "secret1"}, "All fields are required"},
		{"missing password", SignupInput{FullName: "Al", Email: "a@b.co"}, "All fields are required"},
		{"short name", SignupInput{FullName: "A", Email: "a@b.co", Password: "secret1"}, "Full name must be at least 2 characters long"},
		{"bad email", SignupInput{FullName: "Al", Email: "not-an-email", Password: "secret1"}, "Invalid email format"},
		{"short password", SignupInput{FullName: "Al", Email: "a@b.co", Password: "12345"}, "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, nil)
			_, err := f.svc.Signup(context.Background(), tt.in)
			assertAppError(t, err, apperror.ErrValidation, tt.msg)
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.signup(t, "First", "dup@example.com", "secret1")

	_, err := f.svc.Signup(context.Background(), SignupInput{
		FullName: "Second", Email: "DUP@example.com", Password: "secret2",
	})
	assertAppError(t, err, apperror.ErrValidation, "Email already exists")
}

// =========================================================================
// Login
// =========================================================================

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	u := f.signup(t, "Grace", "grace@example.com", "cobol1959")

	res, err := f.svc.Login(context.Background(), "GRACE@example.com", "cobol1959")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	stored := f.users.get(t, u.ID)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(*f.clock))
	assert.Zero(t, stored.LoginAttempts)
}

func TestLogin_GenericFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.signup(t, "Grace", "grace@example.com", "cobol1959")

	_, wrongPassword := f.svc.Login(context.Background(), "grace@example.com", "fortran")
	_, unknownEmail := f.svc.Login(context.Background(), "nobody@example.com", "cobol1959")

	assertAppError(t, wrongPassword, apperror.ErrValidation, "Invalid credentials")
	assertAppError(t, unknownEmail, apperror.ErrValidation, "Invalid credentials")
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture(t, nil)
	u := f.signup(t, "Linus", "linus@example.com", "penguin42")
	ctx := context.Background()

	for i := 1; i < MaxLoginAttempts; i++ {
		_, err := f.svc.Login(ctx, "linus@example.com", "wrong")
		assertAppError(t, err, apperror.ErrValidation, "Invalid credentials")
		assert.Equal(t, i, f.users.get(t, u.ID).LoginAttempts)
	}

	_, err := f.svc.Login(ctx, "linus@example.com", "wrong")
	assertAppError(t, err, apperror.ErrValidation, "Invalid credentials")
	stored := f.users.get(t, u.ID)
	require.NotNil(t, stored.LockUntil)
	assert.True(t, stored.LockUntil.Equal(f.clock.Add(LockoutDuration)))

	// Locked: even the right password is refused, with the same message.
	_, err = f.svc.Login(ctx, "linus@example.com", "penguin42")
	assertAppError(t, err, apperror.ErrValidation, "Invalid credentials")

	*f.clock = f.clock.Add(LockoutDuration + time.Minute)
	_, err = f.svc.Login(ctx, "linus@example.com", "penguin42")
	require.NoError(t, err)
	stored = f.users.get(t, u.ID)
	assert.Nil(t, stored.LockUntil)
	assert.Zero(t, stored.LoginAttempts)
}

func TestLogin_SuspendedAccount(t *testing.T) {
	f := newAuthFixture(t, nil)
	u := f.signup(t, "Mallory", "mallory@example.com", "secret1")

	stored := f.users.get(t, u.ID)
	stored.Status = model.StatusSuspended
	require.NoError(t, f.users.UpdateUser(context.Background(), &stored))

	_, err := f.svc.Login(context.Background(), "mallory@example.com", "secret1")
	assertAppError(t, err, apperror.ErrForbidden, "")
}

func TestLogin_StoreFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.users.getErr = errors.New("database is on fire")

	_, err := f.svc.Login(context.Background(), "a@example.com", "secret1")
	require.Error(t, err)
	var appErr *apperror.AppError
	assert.False(t, errors.As(err, &appErr), "store failures must not look like domain errors")
}

// =========================================================================
// Profile
// =========================================================================

func TestUpdateProfile(t *testing.T) {
	f := newAuthFixture(t, nil)
	u := f.signup(t, "Pic", "pic@example.com", "secret1")
	ctx := context.Background()

	_, err := f.svc.UpdateProfile(ctx, u.ID, "  ")
	assertAppError(t, err, apperror.ErrValidation, "Profile pic is required")

	_, err = f.svc.UpdateProfile(ctx, u.ID, "ftp://example.com/me.png")
	assertAppError(t, err, apperror.ErrValidation, "")

	updated, err := f.svc.UpdateProfile(ctx, u.ID, "https://cdn.example.com/me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/me.png", updated.ProfilePic)
	assert.Equal(t, "https://cdn.example.com/me.png", f.users.get(t, u.ID).ProfilePic)

	_, err = f.svc.UpdateProfile(ctx, "missing", "https://cdn.example.com/me.png")
	assertAppError(t, err, apperror.ErrNotFound, "User not found")
}

// =========================================================================
// OTP
// =========================================================================

func TestOTP_SendAndVerify(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	email, err := f.svc.SendOTP(ctx, " Someone@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", email)
	assert.Equal(t, "someone@example.com", f.mailer.to)
	assert.Len(t, f.mailer.code, 6)

	require.NoError(t, f.svc.VerifyOTP(ctx, "someone@example.com", f.mailer.code))

	err = f.svc.VerifyOTP(ctx, "someone@example.com", f.mailer.code)
	assertAppError(t, err, apperror.ErrValidation, "OTP not found or expired")
}

func TestOTP_Validation(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, "")
	assertAppError(t, err, apperror.ErrValidation, "Email is required")

	_, err = f.svc.SendOTP(ctx, "nope")
	assertAppError(t, err, apperror.ErrValidation, "Invalid email format")

	err = f.svc.VerifyOTP(ctx, "a@example.com", "")
	assertAppError(t, err, apperror.ErrValidation, "Email and OTP are required")
}

func TestOTP_MailFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.mailer.err = errors.New("smtp: 421 try later")

	_, err := f.svc.SendOTP(context.Background(), "a@example.com")
	assertAppError(t, err, apperror.ErrUpstream, "Failed to send OTP email")
}

// =========================================================================
// Social login
// =========================================================================

func TestSocialAuth_CreatesUser(t *testing.T) {
	f := newAuthFixture(t, nil)

	res, created, err := f.svc.SocialAuth(context.Background(), auth.SocialProfile{
		Provider:    model.ProviderGoogle,
		ProviderUID: "g-123",
		Email:       "New@Example.com",
		FullName:    "New Person",
		ProfilePic:  "https://lh3.example.com/p.jpg",
	})
	require.NoError(t, err)
	assert.True(t, created)

	u := res.User
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, model.ProviderGoogle, u.AuthProvider)
	assert.Equal(t, "g-123", u.ProviderUID)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, model.StatusActive, u.Status)
	assert.NotEmpty(t, u.PasswordHash)
	require.NotNil(t, u.LastLogin)
}

func TestSocialAuth_LinksExistingAccount(t *testing.T) {
	f := newAuthFixture(t, nil)
	existing := f.signup(t, "Old Name", "linked@example.com", "secret1")

	res, created, err := f.svc.SocialAuth(context.Background(), auth.SocialProfile{
		Provider:    model.ProviderFacebook,
		ProviderUID: "fb-9",
		Email:       "linked@example.com",
		FullName:    "Other Name",
		ProfilePic:  "https://graph.example.com/pic.jpg",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, res.User.ID)

	stored := f.users.get(t, existing.ID)
	assert.Equal(t, "Old Name", stored.FullName)
	assert.Equal(t, "fb-9", stored.ProviderUID)
	assert.Equal(t, model.ProviderFacebook, stored.AuthProvider)
	assert.Equal(t, "https://graph.example.com/pic.jpg", stored.ProfilePic)

	// A picture the user set themselves is kept.
	stored.ProfilePic = "https://cdn.example.com/custom.png"
	require.NoError(t, f.users.UpdateUser(context.Background(), &stored))
	_, _, err = f.svc.SocialAuth(context.Background(), auth.SocialProfile{
		Provider: model.ProviderFacebook, ProviderUID: "fb-9", Email: "linked@example.com",
		FullName: "Other Name", ProfilePic: "https://graph.example.com/new.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/custom.png", f.users.get(t, existing.ID).ProfilePic)
}

func TestSocialAuth_Validation(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, _, err := f.svc.SocialAuth(ctx, auth.SocialProfile{Provider: model.ProviderGoogle, Email: "a@b.co", FullName: "A"})
	assertAppError(t, err, apperror.ErrValidation, "Missing required social auth data")

	_, _, err = f.svc.SocialAuth(ctx, auth.SocialProfile{Provider: "github", ProviderUID: "1", Email: "a@b.co", FullName: "A"})
	assertAppError(t, err, apperror.ErrValidation, "Unsupported auth provider")

	_, _, err = f.svc.SocialAuth(ctx, auth.SocialProfile{Provider: model.ProviderEmail, ProviderUID: "1", Email: "a@b.co", FullName: "A"})
	assertAppError(t, err, apperror.ErrValidation, "Unsupported auth provider")
}

// =========================================================================
// Owner post deletion
// =========================================================================

func TestDeleteOwnPost(t *testing.T) {
	store := newTestStore(t)
	f := newAuthFixture(t, store)
	ctx := context.Background()

	owner := seedUser(t, store, "Owner", model.RoleUser)
	other := seedUser(t, store, "Other", model.RoleUser)
	post := seedPost(t, store, owner, "mine", model.PrivacyPublic)

	err := f.svc.DeleteOwnPost(ctx, other.ID, post.ID)
	assertAppError(t, err, apperror.ErrForbidden, "You can only delete your own posts")

	require.NoError(t, f.svc.DeleteOwnPost(ctx, owner.ID, post.ID))
	_, err = store.GetPost(ctx, post.ID)
	assertAppError(t, err, apperror.ErrNotFound, "Post not found")

	err = f.svc.DeleteOwnPost(ctx, owner.ID, post.ID)
	assertAppError(t, err, apperror.ErrNotFound, "Post not found")
}
