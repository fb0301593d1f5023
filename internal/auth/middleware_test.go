package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
)

type stubUsers map[string]*model.User

func (s stubUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if id == "broken" {
		return nil, errors.New("database is on fire")
	}
	u, ok := s[id]
	if !ok {
		return nil, apperror.NotFound("User")
	}
	return u, nil
}

var users = stubUsers{
	"alice": {ID: "alice", Role: model.RoleUser, Status: model.StatusActive},
	"admin": {ID: "admin", Role: model.RoleAdmin, Status: model.StatusActive},
	"mod":   {ID: "mod", Role: model.RoleModerator, Status: model.StatusActive},
	"banned": {ID: "banned", Role: model.RoleUser, Status: model.StatusBanned,
		StatusReason: "spam"},
	"suspended": {ID: "suspended", Role: model.RoleUser, Status: model.StatusSuspended},
}

// whoami echoes the authenticated user's ID.
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		w.Write([]byte("anonymous"))
		return
	}
	w.Write([]byte(u.ID))
})

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	h := RequireAuth(ts, users, zerolog.Nop())(whoami)

	token := func(id string) string {
		tok, err := ts.Generate(id)
		require.NoError(t, err)
		return tok
	}
	expired, err := ts.GenerateWithDuration("alice", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantMsg    string
		wantReason string
	}{
		{"no cookie", "", http.StatusUnauthorized, "Unauthorized - No Token Provided", ""},
		{"garbage", "abc.def.ghi", http.StatusUnauthorized, "Unauthorized - Invalid Token", ""},
		{"expired", expired, http.StatusUnauthorized, "Unauthorized - Token Expired", ""},
		{"deleted user", token("ghost"), http.StatusNotFound, "User not found", ""},
		{"store failure", token("broken"), http.StatusInternalServerError, "An internal error occurred", ""},
		{"banned", token("banned"), http.StatusForbidden, "Account is suspended or banned", "spam"},
		{"suspended", token("suspended"), http.StatusForbidden, "Account is suspended or banned", "No reason provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, requestWithToken(tt.token))

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body authError
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Equal(t, tt.wantReason, body.Reason)
		})
	}

	t.Run("valid", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, requestWithToken(token("alice")))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "alice", rr.Body.String())
	})
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	h := OptionalAuth(ts, users)(whoami)

	good, _ := ts.Generate("alice")
	banned, _ := ts.Generate("banned")

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"anonymous", "", "anonymous"},
		{"invalid token", "nope", "anonymous"},
		{"banned user", banned, "anonymous"},
		{"valid", good, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, requestWithToken(tt.token))
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, rr.Body.String())
		})
	}
}

func TestRequireRole(t *testing.T) {
	adminOnly := RequireRole(model.RoleAdmin)(whoami)
	staff := RequireRole(model.RoleAdmin, model.RoleModerator)(whoami)

	serve := func(h http.Handler, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		if userID != "" {
			req = req.WithContext(WithUser(req.Context(), users[userID]))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, serve(adminOnly, "admin").Code)
	assert.Equal(t, http.StatusOK, serve(staff, "admin").Code)
	assert.Equal(t, http.StatusOK, serve(staff, "mod").Code)

	rr := serve(adminOnly, "mod")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Admin access required")

	rr = serve(staff, "alice")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Admin or moderator access required")

	assert.Equal(t, http.StatusUnauthorized, serve(staff, "").Code)
}

func TestSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "tok", true)
	ClearSessionCookie(rr, true)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, int(TokenTTL.Seconds()), cookies[0].MaxAge)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
