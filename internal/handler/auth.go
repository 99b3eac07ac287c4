package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/auth"
	"github.com/sakif/wishlist/internal/identity"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/service"
)

// Cookie names and lifetimes.
const (
	// SessionCookie identifies the browser session. Every tab of a browser
	// shares it, and with it one identity.Provider.
	SessionCookie = "sid"
	stateCookie   = "oauth_state"

	sessionMaxAge = 365 * 24 * time.Hour
	stateMaxAge   = 10 * time.Minute
)

// AuthHandler manages sign-in, sign-out and the current identity.
//
// HANDLER RESPONSIBILITIES:
//   - HandleDemoLogin      → sign in with the demo method
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → exchange the code, sign in, issue JWT
//   - HandleFirebaseLogin  → sign in with a Firebase ID token
//   - HandleLogout         → sign the session out and clear the JWT cookie
//   - HandleMe             → return the session's signed-in user
//
// TWO COOKIES:
// "sid" names the browser session and lives for a year; the identity
// Provider for that session decides who is signed in. "token" is the JWT
// the API routes check on every request without touching storage.
type AuthHandler struct {
	auth   *service.AuthService
	google *auth.GoogleProvider // nil when Google sign-in is not configured
	secure bool
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil. secure marks
// every cookie Secure, which the deployment needs when served over HTTPS.
func NewAuthHandler(authSvc *service.AuthService, google *auth.GoogleProvider, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authSvc,
		google: google,
		secure: secure,
		logger: logger,
	}
}

type demoLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type firebaseLoginRequest struct {
	IDToken string `json:"idToken"`
}

// HandleDemoLogin signs the session in with the demo method.
//
// HTTP: POST /auth/demo/login
// REQUEST BODY: {"username": "optional", "password": "when DEMO_PASSWORD_HASH is set"}
func (h *AuthHandler) HandleDemoLogin(w http.ResponseWriter, r *http.Request) {
	var req demoLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.signIn(w, r, identity.Credentials{
		Method:   "demo",
		Username: req.Username,
		Password: req.Password,
	})
}

// HandleFirebaseLogin signs the session in with a Firebase ID token obtained
// by the browser's Firebase SDK.
//
// HTTP: POST /auth/firebase/login
// REQUEST BODY: {"idToken": "..."}
func (h *AuthHandler) HandleFirebaseLogin(w http.ResponseWriter, r *http.Request) {
	var req firebaseLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.signIn(w, r, identity.Credentials{
		Method:  "firebase",
		IDToken: req.IDToken,
	})
}

// HandleGoogleLogin redirects the user to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived cookie and into the redirect.
// HandleGoogleCallback only proceeds when both match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the Google sign-in.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Sign the session in with the code (the Provider exchanges it)
//  3. Issue the JWT cookie
//  4. Redirect to the app home page
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Steps 2 and 3 ---
	sid := h.sessionID(w, r)
	result, err := h.auth.SignIn(r.Context(), sid, identity.Credentials{
		Method: "google",
		Code:   r.URL.Query().Get("code"),
	})
	if err != nil {
		if errors.Is(err, apperror.ErrAuth) {
			http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
			return
		}
		h.logger.Error("auth callback: sign-in failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	h.setToken(w, result.Token)

	// --- Step 4 ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout signs the browser session out and clears the JWT cookie.
// Every other tab of the session is notified.
//
// HTTP: POST /auth/logout
//
// Signing out never fails: a storage problem while forgetting the session
// is logged, and the session is signed out in memory regardless.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if err := h.auth.SignOut(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("sign-out failed", slog.String("error", err.Error()))
		}
	}
	h.clearToken(w)

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the user the browser session is signed in as.
//
// HTTP: GET /api/me
// Auth: Required
//
// The JWT alone is not enough: the session must still be signed in as the
// same user. A token that outlived a sign-out in another tab is cleared.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)

	current, err := h.current(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if current == nil || current.UID != user.UID {
		h.clearToken(w)
		writeError(w, apperror.AuthFailed("session is signed out", nil))
		return
	}

	writeJSON(w, http.StatusOK, current)
}

// signIn runs a sign-in for the request's browser session and answers with
// the user, setting the JWT cookie on success.
func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, creds identity.Credentials) {
	sid := h.sessionID(w, r)

	result, err := h.auth.SignIn(r.Context(), sid, creds)
	if err != nil {
		writeError(w, err)
		return
	}
	h.setToken(w, result.Token)

	writeJSON(w, http.StatusOK, result.User)
}

// current returns the session's user, or nil when the request carries no
// session cookie or the session is signed out.
func (h *AuthHandler) current(r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return h.auth.CurrentUser(r.Context(), cookie.Value)
}

// sessionID returns the browser session id, minting one (and its cookie)
// on the first visit.
func (h *AuthHandler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	cookie := newSessionCookie(h.secure)
	http.SetCookie(w, cookie)
	return cookie.Value
}

func (h *AuthHandler) setToken(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// newSessionCookie mints a fresh browser session id.
func newSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    xid.New().String(),
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
