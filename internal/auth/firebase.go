package auth

import (
	"context"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/identity"
	"github.com/sakif/wishlist/internal/model"
)

// TokenVerifier is the slice of the Firebase Admin auth client we use.
// *firebase.google.com/go/v4/auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseAuthenticator is the hosted-mode sign-in method. The browser signs
// in with the Firebase client SDK (Google popup) and posts the resulting ID
// token; we verify its signature, audience and expiry with the Admin SDK.
type FirebaseAuthenticator struct {
	verifier TokenVerifier
}

var _ identity.Authenticator = (*FirebaseAuthenticator)(nil)

// NewFirebaseAuthenticator wraps an Admin SDK auth client.
func NewFirebaseAuthenticator(verifier TokenVerifier) *FirebaseAuthenticator {
	return &FirebaseAuthenticator{verifier: verifier}
}

func (f *FirebaseAuthenticator) Authenticate(ctx context.Context, creds identity.Credentials) (*model.User, error) {
	if creds.IDToken == "" {
		return nil, apperror.AuthFailed("missing ID token", nil)
	}

	tok, err := f.verifier.VerifyIDToken(ctx, creds.IDToken)
	if err != nil {
		return nil, apperror.AuthFailed("invalid ID token", err)
	}

	return &model.User{
		UID:         tok.UID,
		DisplayName: claimString(tok.Claims, "name"),
		Email:       claimString(tok.Claims, "email"),
		PhotoURL:    claimString(tok.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}
