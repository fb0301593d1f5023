package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
)

// contextKey is unexported so no other package can read or shadow the
// values stored here.
type contextKey string

const userKey contextKey = "user"

// UserLoader fetches the account a token belongs to.
// repository.UserRepository satisfies it.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth protects a route. It reads the "jwt" cookie, validates it,
// loads the user and stores it in the request context.
//
//	no cookie                 → 401 "Unauthorized - No Token Provided"
//	bad signature / garbage   → 401 "Unauthorized - Invalid Token"
//	expired                   → 401 "Unauthorized - Token Expired"
//	user deleted since login  → 404 "User not found"
//	suspended or banned       → 403 with the status reason
func RequireAuth(tokens *TokenService, users UserLoader, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized - No Token Provided", "")
				return
			}

			userID, err := tokens.Validate(cookie.Value)
			if err != nil {
				msg := "Unauthorized - Invalid Token"
				if errors.Is(err, ErrTokenExpired) {
					msg = "Unauthorized - Token Expired"
				}
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", msg, "")
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					writeAuthError(w, http.StatusNotFound, "not_found", "User not found", "")
					return
				}
				log.Error().Err(err).Str("userId", userID).Msg("auth: loading user")
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred", "")
				return
			}

			if !user.Status.AllowsLogin() {
				reason := user.StatusReason
				if reason == "" {
					reason = "No reason provided"
				}
				writeAuthError(w, http.StatusForbidden, "forbidden", "Account is suspended or banned", reason)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the user when a valid session cookie is present
// and lets the request through either way.
func OptionalAuth(tokens *TokenService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
				if userID, err := tokens.Validate(cookie.Value); err == nil {
					if user, err := users.GetUserByID(r.Context(), userID); err == nil && user.Status.AllowsLogin() {
						r = r.WithContext(WithUser(r.Context(), user))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole must run after RequireAuth. It lets through users whose role
// is one of roles and answers 403 otherwise.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	msg := "Admin access required"
	if len(roles) > 1 {
		msg = "Admin or moderator access required"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated", "")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, http.StatusForbidden, "forbidden", msg, "")
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or false on an anonymous
// request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func writeAuthError(w http.ResponseWriter, status int, kind, msg, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(authError{Error: kind, Message: msg, Reason: reason})
}
