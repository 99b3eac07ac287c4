package service

// AuthService is the business logic layer for authentication:
//
//	AuthHandler (HTTP) → AuthService → identity.Registry → identity.Provider → Authenticator
//	                                 ↘ TokenService (JWT)
//
// It keeps the sign-in rules in one place: which session a sign-in belongs
// to, what token it earns, and when a session's Provider can be let go.
// Cookies and redirects stay in the handler.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/auth"
	"github.com/sakif/wishlist/internal/identity"
	"github.com/sakif/wishlist/internal/metrics"
	"github.com/sakif/wishlist/internal/model"
)

// AuthService handles the authentication business logic.
type AuthService struct {
	sessions *identity.Registry
	tokens   *auth.TokenService
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAuthService creates an AuthService. m may be nil.
func NewAuthService(sessions *identity.Registry, tokens *auth.TokenService, m *metrics.Metrics, logger *slog.Logger) *AuthService {
	return &AuthService{
		sessions: sessions,
		tokens:   tokens,
		metrics:  m,
		logger:   logger,
	}
}

// AuthResult bundles the signed-in user and the issued JWT so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignIn signs the browser session sid in with creds. Every other tab of the
// session is notified through the session's Provider.
func (s *AuthService) SignIn(ctx context.Context, sid string, creds identity.Credentials) (*AuthResult, error) {
	provider, err := s.sessions.Provider(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("service/auth: opening session: %w", err)
	}

	user, err := provider.SignIn(ctx, creds)
	if err != nil {
		// A rejected sign-in on a fresh session leaves an idle Provider.
		s.sessions.Release(sid)
		s.metrics.SignIn(creds.Method, Outcome(err))
		if errors.Is(err, apperror.ErrAuth) {
			s.logger.Info("sign-in rejected",
				slog.String("method", creds.Method),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}
	s.metrics.SignIn(creds.Method, "ok")

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.UID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// SignOut signs the session out. It always succeeds, like the Provider's
// SignOut.
func (s *AuthService) SignOut(ctx context.Context, sid string) error {
	provider, err := s.sessions.Provider(ctx, sid)
	if err != nil {
		// The stored session could not even be read; there is nobody to
		// notify and nothing more we can clear.
		s.logger.Warn("sign-out without a readable session",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := provider.SignOut(ctx); err != nil {
		return err
	}
	s.sessions.Release(sid)
	return nil
}

// CurrentUser returns the session's signed-in user, or nil.
func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*model.User, error) {
	provider, err := s.sessions.Provider(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("service/auth: opening session: %w", err)
	}
	user := provider.CurrentUser()
	s.sessions.Release(sid)
	return user, nil
}

// Subscribe registers fn on the session's Provider. fn is called right away
// with the current user and then on every sign-in and sign-out in any tab.
// The returned func unsubscribes and lets an idle session go.
func (s *AuthService) Subscribe(ctx context.Context, sid string, fn identity.Listener) (func(), error) {
	unsubscribe, err := s.sessions.Subscribe(ctx, sid, fn)
	if err != nil {
		return nil, fmt.Errorf("service/auth: opening session: %w", err)
	}
	return unsubscribe, nil
}

// TokenTTL is how long an issued token stays valid.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// IssueToken signs a fresh JWT for user.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT string and returns the user it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (*model.User, error) {
	user, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return user, nil
}
