// Package identity holds the session-side half of authentication: who is
// signed in to a browser session, and who wants to hear about it.
//
// A Provider is an explicit observable subject. It owns exactly two pieces of
// state, the current user and an ordered list of listeners, and every change
// to the first is pushed to the second:
//
//	unsubscribe := p.Subscribe(func(u *model.User) {
//	    // called now with the current user (or nil), then on every change
//	})
//	defer unsubscribe()
//
// Providers are created per browser session by a Registry and closed with it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/repository"
)

// Listener receives the current user, or nil when signed out.
type Listener func(user *model.User)

type subscriber struct {
	id uint64
	fn Listener
}

// Provider tracks the signed-in user of one session.
//
// Listeners run synchronously, in subscription order, on the goroutine that
// caused the change. A listener must not call SignIn, SignOut or Subscribe
// on the same Provider; it may call the unsubscribe func it was given.
type Provider struct {
	sid      string
	auth     Authenticator
	sessions repository.SessionRepository // optional
	logger   *slog.Logger

	// deliver serialises notification rounds so a new subscriber's initial
	// call can never interleave with (or arrive after) a later change.
	deliver sync.Mutex

	mu      sync.Mutex
	current *model.User
	subs    []subscriber
	nextID  uint64
	closed  bool
}

// NewProvider creates a signed-out Provider for session sid. sessions may be
// nil, in which case the identity lives only in memory.
func NewProvider(sid string, auth Authenticator, sessions repository.SessionRepository, logger *slog.Logger) *Provider {
	return &Provider{
		sid:      sid,
		auth:     auth,
		sessions: sessions,
		logger:   logger,
	}
}

// Restore loads the session's user from session storage without notifying
// anyone. It is meant to run once, before the Provider is handed out.
func (p *Provider) Restore(ctx context.Context) error {
	if p.sessions == nil {
		return nil
	}
	user, err := p.sessions.LoadSession(ctx, p.sid)
	if err != nil {
		return fmt.Errorf("identity: restoring session: %w", err)
	}

	p.mu.Lock()
	p.current = user
	p.mu.Unlock()
	return nil
}

// SignIn authenticates, stores the user in session storage, and notifies
// every listener. A rejection is an apperror.ErrAuth and leaves the session
// untouched.
func (p *Provider) SignIn(ctx context.Context, creds Credentials) (*model.User, error) {
	user, err := p.auth.Authenticate(ctx, creds)
	if err != nil {
		if errors.Is(err, apperror.ErrAuth) {
			return nil, err
		}
		return nil, apperror.AuthFailed("sign-in failed, please try again", err)
	}
	if user == nil || user.UID == "" {
		return nil, apperror.AuthFailed("sign-in failed, please try again",
			errors.New("identity: authenticator returned no user"))
	}

	if p.sessions != nil {
		if err := p.sessions.SaveSession(ctx, p.sid, user); err != nil {
			return nil, fmt.Errorf("identity: saving session: %w", err)
		}
	}

	p.logger.Info("signed in",
		slog.String("uid", user.UID),
		slog.String("method", creds.Method),
	)

	p.set(user)
	return user.Clone(), nil
}

// SignOut clears the session and notifies listeners with nil. It always
// succeeds: a session-storage failure is logged, not returned, because the
// in-memory session is already gone.
func (p *Provider) SignOut(ctx context.Context) error {
	if p.sessions != nil {
		if err := p.sessions.DeleteSession(ctx, p.sid); err != nil {
			p.logger.Warn("failed to clear stored session",
				slog.String("sid", p.sid),
				slog.String("error", err.Error()),
			)
		}
	}

	p.set(nil)
	return nil
}

// CurrentUser is a synchronous snapshot of the signed-in user, or nil.
func (p *Provider) CurrentUser() *model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

// Subscribe registers fn and immediately calls it with the current user.
// The returned func removes the subscription; calling it more than once is
// harmless. Subscribing to a closed Provider only delivers the current user.
func (p *Provider) Subscribe(fn Listener) (unsubscribe func()) {
	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	current := p.current.Clone()
	if p.closed {
		p.mu.Unlock()
		fn(current)
		return func() {}
	}
	p.nextID++
	id := p.nextID
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { p.remove(id) })
	}
}

// Subscribers reports how many listeners are registered.
func (p *Provider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Idle reports whether nobody is signed in and nobody is listening, i.e.
// whether the Provider can be dropped without losing anything.
func (p *Provider) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current == nil && len(p.subs) == 0
}

// Close drops every listener. The current user stays readable.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.subs = nil
}

func (p *Provider) remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s.id == id {
			p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
			return
		}
	}
}

// set swaps the current user and runs one notification round.
func (p *Provider) set(user *model.User) {
	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	p.current = user.Clone()
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, s := range subs {
		s.fn(user.Clone())
	}
}
