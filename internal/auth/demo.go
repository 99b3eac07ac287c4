package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/identity"
	"github.com/sakif/wishlist/internal/model"
)

// Demo profile handed to every demo sign-in.
const (
	DemoDisplayName = "Demo User"
	DemoEmail       = "demo@example.com"
	DemoPhotoURL    = "https://api.dicebear.com/7.x/avataaars/svg?seed=Felix"
)

// DemoAuthenticator is the mock-mode sign-in method. It never talks to an
// external provider.
//
// Without a username every sign-in mints a fresh "mock-user-<xid>" identity,
// so a signed-out browser loses access to what it created. With a username
// the uid is stable ("demo-<username>"), which lets a demo user come back to
// their lists.
//
// When a password hash is configured, every sign-in must present the shared
// password.
type DemoAuthenticator struct {
	passwords    *PasswordService
	passwordHash string
}

var _ identity.Authenticator = (*DemoAuthenticator)(nil)

// NewDemoAuthenticator creates the demo method. passwordHash may be empty.
func NewDemoAuthenticator(passwords *PasswordService, passwordHash string) *DemoAuthenticator {
	return &DemoAuthenticator{passwords: passwords, passwordHash: passwordHash}
}

func (d *DemoAuthenticator) Authenticate(ctx context.Context, creds identity.Credentials) (*model.User, error) {
	if d.passwordHash != "" {
		if err := d.passwords.Verify(d.passwordHash, creds.Password); err != nil {
			if errors.Is(err, ErrInvalidPassword) {
				return nil, apperror.AuthFailed("wrong demo password", nil)
			}
			return nil, err
		}
	}

	uid := "mock-user-" + xid.New().String()
	if name := strings.TrimSpace(creds.Username); name != "" {
		uid = "demo-" + strings.ToLower(name)
	}

	return &model.User{
		UID:         uid,
		DisplayName: DemoDisplayName,
		Email:       DemoEmail,
		PhotoURL:    DemoPhotoURL,
	}, nil
}
