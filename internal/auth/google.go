package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/identity"
	"github.com/sakif/wishlist/internal/model"
)

// googleUserInfoURL is the OpenID Connect userinfo endpoint.
const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleUser is the portion of the OpenID userinfo response we care about.
type GoogleUser struct {
	Sub     string `json:"sub"` // stable account ID, never reused
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code
// flow and implements identity.Authenticator for the "google" method.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. The server redirects the browser to Google with our ClientID and scopes.
//  2. The user approves the request on Google.
//  3. Google redirects back to the callback URL with a short-lived "code".
//  4. The server exchanges the code for an access token (server-to-server,
//     using the ClientSecret, so the token never reaches the browser).
//  5. The server calls the userinfo endpoint with that token.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

var _ identity.Authenticator = (*GoogleProvider)(nil)

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// callbackURL must match an "Authorized redirect URI" of the OAuth client
// exactly, e.g. "http://localhost:8080/auth/google/callback".
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The state is a random value we also put in a short-lived cookie. The
// callback compares the two, which stops an attacker from completing an
// OAuth flow for their own account in someone else's browser (CSRF).
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Authenticate exchanges creds.Code for a Google profile.
//
// A code Google refuses (expired, replayed, forged) is an apperror.ErrAuth;
// failing to reach Google is returned as-is.
func (p *GoogleProvider) Authenticate(ctx context.Context, creds identity.Credentials) (*model.User, error) {
	if creds.Code == "" {
		return nil, apperror.AuthFailed("missing authorization code", nil)
	}

	oauthToken, err := p.config.Exchange(ctx, creds.Code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, apperror.AuthFailed("google rejected the sign-in", err)
		}
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	gUser, err := p.fetchUserInfo(ctx, oauthToken)
	if err != nil {
		return nil, err
	}

	return &model.User{
		UID:         "google-" + gUser.Sub,
		DisplayName: gUser.Name,
		Email:       gUser.Email,
		PhotoURL:    gUser.Picture,
	}, nil
}

// fetchUserInfo calls the userinfo endpoint. oauth2.Config.Client returns an
// *http.Client that adds "Authorization: Bearer <token>" to every request.
func (p *GoogleProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUser, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var gUser GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo: %w", err)
	}
	if gUser.Sub == "" {
		return nil, apperror.AuthFailed("google returned an account without an ID", nil)
	}

	return &gUser, nil
}
