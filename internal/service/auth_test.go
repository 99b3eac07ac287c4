package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/auth"
	"github.com/sakif/wishlist/internal/identity"
	"github.com/sakif/wishlist/internal/metrics"
	"github.com/sakif/wishlist/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeSessionRepo is an in-memory repository.SessionRepository.
type fakeSessionRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	loadErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{users: make(map[string]*model.User)}
}

func (f *fakeSessionRepo) LoadSession(ctx context.Context, sid string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.users[sid].Clone(), nil
}

func (f *fakeSessionRepo) SaveSession(ctx context.Context, sid string, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[sid] = user.Clone()
	return nil
}

func (f *fakeSessionRepo) DeleteSession(ctx context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, sid)
	return nil
}

// newTestAuthService wires an AuthService around the real demo method and a
// fake session store. The TokenService uses a short secret, suitable for
// tests only.
func newTestAuthService(t *testing.T, sessions *fakeSessionRepo) (*AuthService, *identity.Registry) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	methods := identity.Methods{
		"demo": auth.NewDemoAuthenticator(auth.NewPasswordServiceForTest(4), ""),
	}
	registry := identity.NewRegistry(methods, sessions, logger)
	return NewAuthService(registry, ts, metrics.New(), logger), registry
}

// =========================================================================
// SignIn TESTS
// =========================================================================

func TestSignIn_DemoIssuesUserAndToken(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeSessionRepo())

	result, err := svc.SignIn(context.Background(), "sid-1", identity.Credentials{Method: "demo"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if !strings.HasPrefix(result.User.UID, "mock-user-") {
		t.Errorf("UID = %q, want mock-user- prefix", result.User.UID)
	}
	if result.User.DisplayName != "Demo User" {
		t.Errorf("DisplayName = %q, want %q", result.User.DisplayName, "Demo User")
	}
	if result.Token == "" {
		t.Fatal("SignIn() returned empty Token")
	}

	// The token must decode back to the same user
	user, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if *user != *result.User {
		t.Errorf("token user = %+v, want %+v", user, result.User)
	}
}

func TestSignIn_UnknownMethodIsAuthError(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeSessionRepo())

	_, err := svc.SignIn(context.Background(), "sid-1", identity.Credentials{Method: "carrier-pigeon"})
	if !errors.Is(err, apperror.ErrAuth) {
		t.Fatalf("SignIn() error = %v, want ErrAuth", err)
	}
}

func TestSignIn_PersistsForLaterRequests(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc, _ := newTestAuthService(t, sessions)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, "sid-1", identity.Credentials{Method: "demo", Username: "alice"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	// A fresh service over the same session storage, as after a restart
	restarted, _ := newTestAuthService(t, sessions)
	user, err := restarted.CurrentUser(ctx, "sid-1")
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user == nil || user.UID != result.User.UID {
		t.Errorf("CurrentUser() = %+v, want uid %q", user, result.User.UID)
	}
}

func TestSignIn_SessionStorageDown(t *testing.T) {
	sessions := newFakeSessionRepo()
	sessions.loadErr = apperror.StorageFailed("reading session", errors.New("locked"))
	svc, _ := newTestAuthService(t, sessions)

	_, err := svc.SignIn(context.Background(), "sid-1", identity.Credentials{Method: "demo"})
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("SignIn() error = %v, want ErrStorage", err)
	}
}

func TestSignIn_RejectedSessionsAreNotKept(t *testing.T) {
	svc, registry := newTestAuthService(t, newFakeSessionRepo())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		sid := fmt.Sprintf("rejected-%d", i)
		if _, err := svc.SignIn(ctx, sid, identity.Credentials{Method: "carrier-pigeon"}); !errors.Is(err, apperror.ErrAuth) {
			t.Fatalf("SignIn() error = %v, want ErrAuth", err)
		}
	}
	for i := 0; i < 50; i++ {
		user, err := svc.CurrentUser(ctx, fmt.Sprintf("visitor-%d", i))
		if err != nil || user != nil {
			t.Fatalf("CurrentUser() = %+v, %v; want nil, nil", user, err)
		}
	}

	if registry.Len() != 0 {
		t.Errorf("registry.Len() = %d, want 0 after rejected sign-ins and signed-out lookups", registry.Len())
	}
}

func TestCurrentUser_KeepsSignedInSession(t *testing.T) {
	svc, registry := newTestAuthService(t, newFakeSessionRepo())
	ctx := context.Background()

	if _, err := svc.SignIn(ctx, "sid-1", identity.Credentials{Method: "demo", Username: "carol"}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	user, err := svc.CurrentUser(ctx, "sid-1")
	if err != nil || user == nil || user.UID != "demo-carol" {
		t.Fatalf("CurrentUser() = %+v, %v; want demo-carol", user, err)
	}
	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1 for a signed-in session", registry.Len())
	}
}

// =========================================================================
// SUBSCRIBE / SIGN-OUT TESTS
// =========================================================================

func TestSubscribe_SeesSignInAndSignOut(t *testing.T) {
	svc, registry := newTestAuthService(t, newFakeSessionRepo())
	ctx := context.Background()

	var seen []string
	unsubscribe, err := svc.Subscribe(ctx, "sid-1", func(u *model.User) {
		if u == nil {
			seen = append(seen, "signed-out")
			return
		}
		seen = append(seen, u.UID)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if _, err := svc.SignIn(ctx, "sid-1", identity.Credentials{Method: "demo", Username: "bob"}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := svc.SignOut(ctx, "sid-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	want := []string{"signed-out", "demo-bob", "signed-out"}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Errorf("listener saw %v, want %v", seen, want)
	}

	// Still subscribed, so the session stays around until we leave
	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1 while subscribed", registry.Len())
	}
	unsubscribe()
	if registry.Len() != 0 {
		t.Errorf("registry.Len() = %d, want 0 after unsubscribe", registry.Len())
	}
}

func TestSignOut_ReleasesIdleSession(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc, registry := newTestAuthService(t, sessions)
	ctx := context.Background()

	if _, err := svc.SignIn(ctx, "sid-1", identity.Credentials{Method: "demo"}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := svc.SignOut(ctx, "sid-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	if registry.Len() != 0 {
		t.Errorf("registry.Len() = %d, want 0", registry.Len())
	}
	if len(sessions.users) != 0 {
		t.Error("stored session should be cleared")
	}

	user, _ := svc.CurrentUser(ctx, "sid-1")
	if user != nil {
		t.Errorf("CurrentUser() after sign-out = %+v, want nil", user)
	}
}

func TestSignOut_NeverFails(t *testing.T) {
	sessions := newFakeSessionRepo()
	sessions.loadErr = errors.New("storage unavailable")
	svc, _ := newTestAuthService(t, sessions)

	if err := svc.SignOut(context.Background(), "sid-1"); err != nil {
		t.Fatalf("SignOut() error = %v, want nil", err)
	}
}

// =========================================================================
// TOKEN TESTS
// =========================================================================

func TestIssueToken_RoundTrip(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeSessionRepo())

	token, err := svc.IssueToken(&model.User{UID: "u1", DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	user, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if user.UID != "u1" || user.DisplayName != "Ada" {
		t.Errorf("ValidateToken() = %+v", user)
	}
}

func TestValidateToken_InvalidToken(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeSessionRepo())

	_, err := svc.ValidateToken("this.is.garbage")
	if err == nil {
		t.Fatal("ValidateToken() should return error for garbage token")
	}
}
