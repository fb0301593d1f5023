package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/captcha"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler serves /api/auth: account creation, the three ways to log in,
// email verification codes and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - decode and shape-check the body
//   - verify the captcha on signup and login
//   - call AuthService
//   - deliver the token as the "jwt" cookie
//
// Business rules (lockout, duplicate emails, status checks) live in the
// service; this type never decides whether a login is valid.
type AuthHandler struct {
	svc       *service.AuthService
	captcha   captcha.Verifier
	providers map[string]*auth.OAuthProvider
	clientURL string
	secure    bool
	rs        *Responder
	logger    zerolog.Logger
}

// AuthHandlerConfig carries the settings an AuthHandler needs from config.
type AuthHandlerConfig struct {
	ClientURL string
	// SecureCookies marks cookies Secure. Enable it whenever the API is
	// served over HTTPS.
	SecureCookies bool
	Providers     []*auth.OAuthProvider
}

func NewAuthHandler(
	svc *service.AuthService,
	verifier captcha.Verifier,
	cfg AuthHandlerConfig,
	rs *Responder,
	logger zerolog.Logger,
) *AuthHandler {
	providers := make(map[string]*auth.OAuthProvider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p != nil {
			providers[string(p.Name())] = p
		}
	}
	if verifier == nil {
		verifier = captcha.Disabled{}
	}
	return &AuthHandler{
		svc:       svc,
		captcha:   verifier,
		providers: providers,
		clientURL: cfg.ClientURL,
		secure:    cfg.SecureCookies,
		rs:        rs,
		logger:    logger.With().Str("component", "auth-handler").Logger(),
	}
}

// captchaFields are the extra fields the web client posts with signup and
// login forms.
type captchaFields struct {
	CaptchaToken   string `json:"captchaToken"`
	ExpectedAction string `json:"expectedAction"`
}

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	captchaFields
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	captchaFields
}

// sessionUser is the body returned by signup and login.
type sessionUser struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

func newSessionUser(u *model.User) sessionUser {
	return sessionUser{ID: u.ID, FullName: u.FullName, Email: u.Email, ProfilePic: u.ProfilePic}
}

// socialUser adds the account standing to sessionUser.
type socialUser struct {
	sessionUser
	Role   model.Role   `json:"role"`
	Status model.Status `json:"status"`
}

// verifyCaptcha runs the configured verifier against the client's token.
func (h *AuthHandler) verifyCaptcha(r *http.Request, f captchaFields) error {
	return h.captcha.Verify(r.Context(), captcha.Challenge{
		Token:          f.CaptchaToken,
		RemoteIP:       remoteIP(r),
		ExpectedAction: f.ExpectedAction,
	})
}

// HandleSignup creates an email/password account and logs it in.
//
// HTTP: POST /api/auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if err := h.verifyCaptcha(r, req.captchaFields); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	res, err := h.svc.Signup(r.Context(), service.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secure)
	writeJSON(w, http.StatusCreated, newSessionUser(res.User))
}

// HandleLogin checks email and password.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if err := h.verifyCaptcha(r, req.captchaFields); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secure)
	writeJSON(w, http.StatusOK, newSessionUser(res.User))
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
//
// Sessions are stateless JWTs, so the token stays valid until it expires;
// without the cookie the browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// HandleCheck returns the logged-in user.
//
// HTTP: GET /api/auth/check (protected)
func (h *AuthHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	fresh, err := h.svc.Check(r.Context(), user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fresh)
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// HandleUpdateProfile uploads a new profile picture.
//
// HTTP: PUT /api/auth/update-profile (protected)
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), user.ID, req.ProfilePic)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type sendOTPResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// HandleSendOTP emails a fresh verification code.
//
// HTTP: POST /api/auth/send-otp
func (h *AuthHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	email, err := h.svc.SendOTP(r.Context(), req.Email)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendOTPResponse{Message: "OTP sent successfully", Email: email})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type verifyOTPResponse struct {
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

// HandleVerifyOTP checks a code sent by HandleSendOTP.
//
// HTTP: POST /api/auth/verify-otp
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{Message: "Email verified successfully", Verified: true})
}

type socialAuthRequest struct {
	FirebaseUID string `json:"firebaseUid"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	ProfilePic  string `json:"profilePic"`
	Provider    string `json:"provider"`
}

// HandleSocialAuth logs in (or registers) a user the client authenticated
// with Google or Facebook.
//
// HTTP: POST /api/auth/social-auth
//
// 201 when the account was created by this call, 200 otherwise.
func (h *AuthHandler) HandleSocialAuth(w http.ResponseWriter, r *http.Request) {
	var req socialAuthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	res, created, err := h.svc.SocialAuth(r.Context(), auth.SocialProfile{
		Provider:    model.AuthProvider(req.Provider),
		ProviderUID: req.FirebaseUID,
		Email:       req.Email,
		FullName:    req.FullName,
		ProfilePic:  req.ProfilePic,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secure)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, socialUser{
		sessionUser: newSessionUser(res.User),
		Role:        res.User.Role,
		Status:      res.User.Status,
	})
}

// HandleOAuthLogin starts the server-side OAuth2 code flow.
//
// HTTP: GET /api/auth/oauth/{provider}/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when the two match.
func (h *AuthHandler) HandleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleOAuthCallback completes the code flow and redirects to the client.
//
// HTTP: GET /api/auth/oauth/{provider}/callback?code=...&state=...
//
// FLOW:
//  1. Check the state cookie (CSRF)
//  2. Exchange the code for a profile
//  3. Run the same social-auth operation as POST /social-auth
//  4. Set the session cookie and redirect to CLIENT_URL
//
// Failures after the state check redirect to CLIENT_URL with ?auth=<reason>
// so the SPA can show a message instead of a raw JSON error.
func (h *AuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn().Str("provider", string(p.Name())).Msg("oauth callback: state mismatch")
		h.rs.Error(w, r, apperror.ValidationFailed("state", "Invalid OAuth state"))
		return
	}
	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info().Str("error", errParam).Msg("oauth callback: user denied authorization")
		h.redirectToClient(w, r, "denied")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		h.rs.Error(w, r, apperror.ValidationFailed("code", "Missing OAuth code"))
		return
	}

	profile, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Str("provider", string(p.Name())).Msg("oauth callback: exchange failed")
		h.redirectToClient(w, r, "failed")
		return
	}

	res, _, err := h.svc.SocialAuth(r.Context(), *profile)
	if err != nil {
		h.logger.Warn().Err(err).Str("email", profile.Email).Msg("oauth callback: social auth rejected")
		h.redirectToClient(w, r, "failed")
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secure)
	h.redirectToClient(w, r, "")
}

func (h *AuthHandler) provider(w http.ResponseWriter, r *http.Request) (*auth.OAuthProvider, bool) {
	p, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		h.rs.Error(w, r, apperror.NotFound("OAuth provider"))
		return nil, false
	}
	return p, true
}

func (h *AuthHandler) redirectToClient(w http.ResponseWriter, r *http.Request, outcome string) {
	target := h.clientURL
	if target == "" {
		target = "/"
	}
	if outcome != "" {
		target += "?auth=" + outcome
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleDeletePost deletes one of the caller's own posts.
//
// HTTP: DELETE /api/auth/deletePosts/{postId} (protected)
func (h *AuthHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	if err := h.svc.DeleteOwnPost(r.Context(), user.ID, chi.URLParam(r, "postId")); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully"})
}

// currentUser returns the user RequireAuth stored in the context. On a
// route that forgot the middleware it answers 401 and returns false.
func currentUser(w http.ResponseWriter, r *http.Request, rs *Responder) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		rs.Error(w, r, apperror.Unauthorized("User not authenticated"))
		return nil, false
	}
	return user, true
}

// remoteIP strips the port from RemoteAddr. chi's RealIP middleware has
// already replaced it with X-Forwarded-For / X-Real-IP when present.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
