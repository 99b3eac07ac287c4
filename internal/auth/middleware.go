package auth

import (
	"context"
	"net/http"

	"github.com/sakif/wishlist/internal/model"
)

// TokenCookie is the HttpOnly cookie the JWT travels in.
const TokenCookie = "token"

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the user stored under it.
type contextKey string

const userKey contextKey = "user"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "token" HttpOnly cookie, validates it, and
// stores the user in the request context. If the token is missing or
// invalid, it returns 401 Unauthorized and stops the request chain.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := extractUser(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth extracts the user if a valid token is present, but does NOT
// block the request if it's missing or invalid.
//
// Used on the share routes: anyone holding the link may read, and the owner
// additionally gets to see that the list is theirs.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := extractUser(r, tokens); err == nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
//
// Returns (nil, false) if the request is anonymous.
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil && user.UID != ""
}

// extractUser reads the JWT cookie and validates it.
func extractUser(r *http.Request, tokens *TokenService) (*model.User, error) {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		// http.ErrNoCookie: anonymous
		return nil, err
	}

	return tokens.Validate(cookie.Value)
}
