package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/sakif/codeshare/internal/model"
)

const (
	googleUserInfoURL   = "https://www.googleapis.com/oauth2/v3/userinfo"
	facebookUserInfoURL = "https://graph.facebook.com/v19.0/me?fields=id,name,email,picture.type(large)"
)

// SocialProfile is what a provider tells us about the user after login.
type SocialProfile struct {
	Provider    model.AuthProvider
	ProviderUID string
	Email       string
	FullName    string
	ProfilePic  string
}

// OAuthProvider runs the authorization code flow against Google or Facebook.
//
// FLOW:
//  1. AuthURL sends the browser to the provider with a random state value.
//  2. The provider redirects back to the callback with ?code=&state=.
//  3. Exchange trades the code for an access token (server to server, with
//     the client secret) and fetches the user's profile with it.
type OAuthProvider struct {
	provider    model.AuthProvider
	config      *oauth2.Config
	userInfoURL string
	decode      func(*http.Response) (*SocialProfile, error)
}

// NewGoogleProvider requests the OpenID profile and email scopes.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return &OAuthProvider{
		provider: model.ProviderGoogle,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
		decode:      decodeGoogle,
	}
}

// NewFacebookProvider requests the public profile and email.
func NewFacebookProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return &OAuthProvider{
		provider: model.ProviderFacebook,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"public_profile", "email"},
			Endpoint:     endpoints.Facebook,
		},
		userInfoURL: facebookUserInfoURL,
		decode:      decodeFacebook,
	}
}

func (p *OAuthProvider) Name() model.AuthProvider {
	return p.provider
}

// AuthURL is where to send the browser. state must come back unchanged on
// the callback; the handler keeps a copy in a short-lived cookie.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow and returns the provider's profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*SocialProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s code: %w", p.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching %s profile: %w", p.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s profile returned status %d", p.provider, resp.StatusCode)
	}

	profile, err := p.decode(resp)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding %s profile: %w", p.provider, err)
	}
	if profile.ProviderUID == "" || profile.Email == "" {
		return nil, fmt.Errorf("auth: %s profile has no id or email", p.provider)
	}
	return profile, nil
}

func decodeGoogle(resp *http.Response) (*SocialProfile, error) {
	var body struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &SocialProfile{
		Provider:    model.ProviderGoogle,
		ProviderUID: body.Sub,
		Email:       body.Email,
		FullName:    body.Name,
		ProfilePic:  body.Picture,
	}, nil
}

func decodeFacebook(resp *http.Response) (*SocialProfile, error) {
	var body struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &SocialProfile{
		Provider:    model.ProviderFacebook,
		ProviderUID: body.ID,
		Email:       body.Email,
		FullName:    body.Name,
		ProfilePic:  body.Picture.Data.URL,
	}, nil
}
