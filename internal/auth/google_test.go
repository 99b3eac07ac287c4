package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/identity"
)

// newFakeGoogle serves the token and userinfo endpoints. The only code it
// accepts is "good-code".
func newFakeGoogle(t *testing.T, userinfo map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleProvider(srv *httptest.Server) *GoogleProvider {
	p := NewGoogleProvider("client-id", "client-secret", "http://localhost:8080/auth/google/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userInfoURL = srv.URL + "/userinfo"
	return p
}

func TestGoogleAuthURL_CarriesStateAndClient(t *testing.T) {
	p := NewGoogleProvider("client-id", "secret", "http://localhost:8080/auth/google/callback")

	u, err := url.Parse(p.AuthURL("state-xyz"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/google/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogleAuthenticate_Success(t *testing.T) {
	srv := newFakeGoogle(t, map[string]string{
		"sub":     "1234567890",
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"picture": "https://example.com/ada.png",
	})
	p := newTestGoogleProvider(srv)

	user, err := p.Authenticate(context.Background(), identity.Credentials{Code: "good-code"})
	require.NoError(t, err)

	assert.Equal(t, "google-1234567890", user.UID)
	assert.Equal(t, "Ada Lovelace", user.DisplayName)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "https://example.com/ada.png", user.PhotoURL)
}

func TestGoogleAuthenticate_RejectedCodeIsAuthError(t *testing.T) {
	srv := newFakeGoogle(t, map[string]string{"sub": "1"})
	p := newTestGoogleProvider(srv)

	_, err := p.Authenticate(context.Background(), identity.Credentials{Code: "forged"})
	assert.True(t, errors.Is(err, apperror.ErrAuth), "want ErrAuth, got %v", err)
}

func TestGoogleAuthenticate_MissingCode(t *testing.T) {
	p := NewGoogleProvider("id", "secret", "http://localhost/cb")

	_, err := p.Authenticate(context.Background(), identity.Credentials{})
	assert.True(t, errors.Is(err, apperror.ErrAuth))
}

func TestGoogleAuthenticate_AccountWithoutID(t *testing.T) {
	srv := newFakeGoogle(t, map[string]string{"name": "Nobody"})
	p := newTestGoogleProvider(srv)

	_, err := p.Authenticate(context.Background(), identity.Credentials{Code: "good-code"})
	assert.True(t, errors.Is(err, apperror.ErrAuth))
}
