package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/handler"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository/sqlite"
)

// testEnv is the shared backing of the handler tests: a fresh in-memory
// store and a Responder that exposes error detail.
type testEnv struct {
	store *sqlite.DB
	rs    *handler.Responder
	log   zerolog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := zerolog.Nop()
	return &testEnv{store: db, rs: handler.NewResponder(log, true), log: log}
}

func (e *testEnv) user(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		FullName:     name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Status:       model.StatusActive,
		AuthProvider: model.ProviderEmail,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) post(t *testing.T, owner *model.User, name string, privacy model.Privacy) *model.Post {
	t.Helper()
	p := &model.Post{
		OwnerID:             owner.ID,
		ProjectName:         name,
		ProgrammingLanguage: "python",
		ProjectCode:         "print('" + name + "')",
		Privacy:             privacy,
	}
	require.NoError(t, e.store.CreatePost(context.Background(), p))
	return p
}

// call is one request against a single route.
type call struct {
	method  string
	pattern string // chi route pattern, e.g. /posts/{id}/like
	target  string // concrete URL
	handler http.HandlerFunc
	user    *model.User // stored in the context as RequireAuth would
	body    any         // nil, a raw string, or a value to marshal
	cookies []*http.Cookie
}

func serve(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(c.method, c.pattern, c.handler)

	var body io.Reader = http.NoBody
	switch b := c.body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	target := c.target
	if target == "" {
		target = c.pattern
	}
	req := httptest.NewRequest(c.method, target, body)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), c.user))
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decode[handler.ErrorResponse](t, rr)
}

// sessionCookie returns the "jwt" cookie set on rr, or nil.
func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

// codeMailer captures the last verification code instead of sending it.
type codeMailer struct {
	mu   sync.Mutex
	code string
}

func (m *codeMailer) SendOTP(_ context.Context, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
	return nil
}

func (m *codeMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}
