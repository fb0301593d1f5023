// Package captcha checks the human-verification tokens sent with signup and
// login.
//
// Two providers are supported, Google reCAPTCHA (v2 and v3) and hCaptcha.
// Both expose a "siteverify" endpoint that takes the secret, the client token
// and the client IP as form fields and answers with {"success": bool, ...}.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/codeshare/internal/apperror"
)

const (
	RecaptchaURL = "https://www.google.com/recaptcha/api/siteverify"
	HCaptchaURL  = "https://hcaptcha.com/siteverify"

	// MinScore is the lowest reCAPTCHA v3 score accepted as human.
	MinScore = 0.5

	verifyTimeout = 10 * time.Second
)

// ErrNotConfigured is returned when a provider has no secret key.
var ErrNotConfigured = errors.New("captcha: Server configuration error")

// Challenge is what the client submitted alongside the form.
type Challenge struct {
	Token          string
	RemoteIP       string
	ExpectedAction string // reCAPTCHA v3 only; empty skips the check
}

// Verifier decides whether a challenge was solved by a human.
type Verifier interface {
	Verify(ctx context.Context, c Challenge) error
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// SiteVerifier talks to a siteverify endpoint.
type SiteVerifier struct {
	endpoint string
	secret   string
	checkV3  bool
	client   *http.Client
}

// NewRecaptcha verifies against Google reCAPTCHA, enforcing MinScore and the
// expected action when the response carries them.
func NewRecaptcha(secret string) *SiteVerifier {
	return &SiteVerifier{endpoint: RecaptchaURL, secret: secret, checkV3: true, client: &http.Client{Timeout: verifyTimeout}}
}

// NewHCaptcha verifies against hCaptcha. Only the success flag matters.
func NewHCaptcha(secret string) *SiteVerifier {
	return &SiteVerifier{endpoint: HCaptchaURL, secret: secret, client: &http.Client{Timeout: verifyTimeout}}
}

// WithEndpoint points the verifier at another URL. Tests use it with httptest.
func (v *SiteVerifier) WithEndpoint(endpoint string) *SiteVerifier {
	v.endpoint = endpoint
	return v
}

func (v *SiteVerifier) Verify(ctx context.Context, c Challenge) error {
	if strings.TrimSpace(c.Token) == "" {
		return apperror.ValidationFailed("captchaToken", "CAPTCHA verification required")
	}
	if v.secret == "" {
		return ErrNotConfigured
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", c.Token)
	if c.RemoteIP != "" {
		form.Set("remoteip", c.RemoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("captcha: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha: %v: %w", err, apperror.Upstream("CAPTCHA verification error"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha: siteverify returned %d: %w", resp.StatusCode, apperror.Upstream("CAPTCHA verification error"))
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("captcha: decoding response: %v: %w", err, apperror.Upstream("CAPTCHA verification error"))
	}

	if !body.Success || (v.checkV3 && body.Score != nil && *body.Score < MinScore) {
		return apperror.ValidationFailed("captchaToken", "CAPTCHA verification failed. Please try again.")
	}
	if v.checkV3 && body.Action != "" && c.ExpectedAction != "" && body.Action != c.ExpectedAction {
		return apperror.ValidationFailed("captchaToken", "Invalid CAPTCHA action")
	}
	return nil
}

// Disabled accepts every challenge. It stands in when no provider is configured.
type Disabled struct{}

func (Disabled) Verify(context.Context, Challenge) error { return nil }

// New picks a provider from the configured secrets, preferring reCAPTCHA.
// With neither set it returns Disabled.
func New(recaptchaSecret, hcaptchaSecret string) Verifier {
	switch {
	case recaptchaSecret != "":
		return NewRecaptcha(recaptchaSecret)
	case hcaptchaSecret != "":
		return NewHCaptcha(hcaptchaSecret)
	}
	return Disabled{}
}
