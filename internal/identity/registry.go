package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/wishlist/internal/repository"
)

// Registry hands out one Provider per browser session. Every tab of a
// browser shares the session cookie, so every tab shares a Provider and sees
// the same sign-in and sign-out events.
type Registry struct {
	auth     Authenticator
	sessions repository.SessionRepository
	logger   *slog.Logger

	mu        sync.Mutex
	providers map[string]*Provider
}

// NewRegistry creates an empty registry. sessions may be nil.
func NewRegistry(auth Authenticator, sessions repository.SessionRepository, logger *slog.Logger) *Registry {
	return &Registry{
		auth:      auth,
		sessions:  sessions,
		logger:    logger,
		providers: make(map[string]*Provider),
	}
}

// Provider returns the session's Provider, creating it (and restoring its
// user from session storage) on first use.
func (r *Registry) Provider(ctx context.Context, sid string) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.provider(ctx, sid)
}

// Subscribe registers fn on the session's Provider. The lookup and the
// subscription happen under one lock, so a concurrent Release cannot close
// the Provider in between. fn's first call happens under that lock, so fn
// must not call back into the Registry. The returned func unsubscribes and
// releases the session if that left it idle.
func (r *Registry) Subscribe(ctx context.Context, sid string, fn Listener) (func(), error) {
	r.mu.Lock()
	p, err := r.provider(ctx, sid)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	unsubscribe := p.Subscribe(fn)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			r.Release(sid)
		})
	}, nil
}

// provider is Provider with r.mu held.
func (r *Registry) provider(ctx context.Context, sid string) (*Provider, error) {
	if p, ok := r.providers[sid]; ok {
		return p, nil
	}

	p := NewProvider(sid, r.auth, r.sessions, r.logger.With(slog.String("sid", sid)))
	if err := p.Restore(ctx); err != nil {
		return nil, err
	}
	r.providers[sid] = p
	return p, nil
}

// Release drops the session's Provider if nothing depends on it any more.
// Every caller that obtained a Provider through Provider should Release the
// session when done with it, or signed-out sessions accumulate.
func (r *Registry) Release(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[sid]
	if !ok || !p.Idle() {
		return
	}
	p.Close()
	delete(r.providers, sid)
}

// Len reports how many sessions currently hold a Provider.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// Close closes every Provider. Stored sessions are left alone so a restart
// restores them.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sid, p := range r.providers {
		p.Close()
		delete(r.providers, sid)
	}
}
