package identity

import (
	"context"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/model"
)

// Credentials carries whatever a sign-in method needs. Method selects the
// Authenticator when several are registered (see Methods); each
// authenticator reads only the fields it understands.
type Credentials struct {
	Method   string
	Username string // demo: optional stable identity
	Password string // demo: shared password, when one is configured
	Code     string // google: OAuth authorization code
	IDToken  string // firebase: ID token minted by the client SDK
}

// Authenticator turns credentials into a user. Rejections are reported as
// apperror.ErrAuth; anything else is treated as a provider outage.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*model.User, error)
}

// AuthenticatorFunc adapts a plain function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, creds Credentials) (*model.User, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, creds Credentials) (*model.User, error) {
	return f(ctx, creds)
}

// Methods dispatches on Credentials.Method.
type Methods map[string]Authenticator

func (m Methods) Authenticate(ctx context.Context, creds Credentials) (*model.User, error) {
	a, ok := m[creds.Method]
	if !ok {
		return nil, apperror.AuthFailed("sign-in method "+creds.Method+" is not enabled", nil)
	}
	return a.Authenticate(ctx, creds)
}
